// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/noticewala/notice-engine/internal/dedup"
	"github.com/noticewala/notice-engine/internal/dispatch"
	"github.com/noticewala/notice-engine/internal/extract"
	"github.com/noticewala/notice-engine/internal/fetch"
	"github.com/noticewala/notice-engine/internal/pipeline"
	"github.com/noticewala/notice-engine/internal/score"
	"github.com/noticewala/notice-engine/internal/store"
	"github.com/noticewala/notice-engine/pkg/types"
)

// pipelineConfig assembles the full stage configuration from the config file,
// environment, and .secrets/. Unset values take the stage defaults.
func pipelineConfig() types.PipelineConfig {
	viper.SetDefault("store.path", "notice.db")
	viper.SetDefault("fetch.user_agent", "notice-engine/"+version)
	viper.SetDefault("dispatch.exchange", "notice.match")

	return types.PipelineConfig{
		Fetch: types.FetchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("fetch.timeout"),
				UserAgent: viper.GetString("fetch.user_agent"),
			},
			MinInterval:      viper.GetDuration("fetch.min_interval"),
			MaxConcurrent:    viper.GetInt("fetch.max_concurrent"),
			MaxAttempts:      viper.GetInt("fetch.max_attempts"),
			FailureThreshold: viper.GetInt("fetch.failure_threshold"),
			Cooldown:         viper.GetDuration("fetch.cooldown"),
			MaxBodyBytes:     viper.GetInt64("fetch.max_body_bytes"),
		},
		Extraction: types.ExtractionConfig{
			AIConfig: types.AIConfig{
				Endpoint:   viper.GetString("extraction.endpoint"),
				Model:      viper.GetString("extraction.model"),
				APIKey:     secretDefault("ai-api-key", viper.GetString("extraction.api_key")),
				Timeout:    viper.GetDuration("extraction.timeout"),
				MaxRetries: viper.GetInt("extraction.max_retries"),
			},
			AITrigger:       viper.GetFloat64("extraction.ai_trigger"),
			DegradedCeiling: viper.GetFloat64("extraction.degraded_ceiling"),
		},
		Dedup: types.DedupConfig{
			Window:              viper.GetDuration("dedup.window"),
			SimilarityThreshold: viper.GetFloat64("dedup.similarity_threshold"),
			AuditMargin:         viper.GetFloat64("dedup.audit_margin"),
		},
		Score: types.ScoreConfig{
			DeadlineWeight:   viper.GetFloat64("score.deadline_weight"),
			TrustWeight:      viper.GetFloat64("score.trust_weight"),
			ConfidenceWeight: viper.GetFloat64("score.confidence_weight"),
			CategoryWeight:   viper.GetFloat64("score.category_weight"),
			Horizon:          viper.GetDuration("score.horizon"),
			CategoryBoosts:   getStringMapFloat64("score.category_boosts"),
		},
		Dispatch: types.DispatchConfig{
			AMQPURL:  secretDefault("amqp-url", viper.GetString("dispatch.amqp_url")),
			Exchange: viper.GetString("dispatch.exchange"),
		},
		Store: types.StoreConfig{
			Path:       viper.GetString("store.path"),
			MaxResults: viper.GetInt("store.max_results"),
		},
		Logging: types.LoggingConfig{
			Level: viper.GetString("logging.level"),
		},
	}
}

// getStringMapFloat64 returns the value associated with the key as a map of
// string to float64. Viper has no GetStringMapFloat64 getter, so this applies
// the same cast-based conversion viper's other map getters use.
func getStringMapFloat64(key string) map[string]float64 {
	raw := viper.GetStringMap(key)
	if raw == nil {
		return nil
	}
	m := make(map[string]float64, len(raw))
	for k, v := range raw {
		m[k] = cast.ToFloat64(v)
	}
	return m
}

// newLogger builds the process logger at the configured level.
func newLogger(cfg types.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore opens the SQLite store from configuration.
func openStore(cfg types.PipelineConfig) (*store.Store, error) {
	return store.Open(cfg.Store)
}

// newPipeline assembles the full pipeline. The returned cleanup closes the
// emitter; the caller closes the store.
func newPipeline(cfg types.PipelineConfig, st *store.Store, logger *slog.Logger) (*pipeline.Pipeline, func(), error) {
	var backend extract.AIBackend
	if cfg.Extraction.APIKey != "" || cfg.Extraction.Endpoint != "" {
		backend = extract.NewClaudeBackend(cfg.Extraction.AIConfig)
	} else {
		logger.Warn("no AI credentials configured, extraction runs rule-only")
	}

	var emitter dispatch.Emitter
	if cfg.Dispatch.AMQPURL != "" {
		var err error
		emitter, err = dispatch.NewAMQPEmitter(cfg.Dispatch)
		if err != nil {
			return nil, nil, err
		}
	} else {
		emitter = dispatch.NewLogEmitter(logger)
	}

	fetcher := fetch.New(nil, st, cfg.Fetch, logger)
	extractor := extract.New(backend, cfg.Extraction, logger)
	deduper := dedup.New(st, cfg.Dedup, logger)
	scorer := score.New(cfg.Score)

	p := pipeline.New(st, fetcher, extractor, deduper, scorer, emitter, cfg.Fetch.MaxConcurrent, logger)
	cleanup := func() {
		if err := emitter.Close(); err != nil {
			logger.Warn("closing emitter", "error", err)
		}
	}
	return p, cleanup, nil
}

// parseDurationFlag parses a duration flag value, accepting a "d" suffix for
// days on top of the standard duration syntax.
func parseDurationFlag(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	if strings.HasSuffix(s, "d") {
		if n, err := strconv.Atoi(strings.TrimSuffix(s, "d")); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}
