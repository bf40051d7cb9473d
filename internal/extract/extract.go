// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns normalized text into structured announcement drafts.
// A deterministic rule pass always runs first; the AI pass runs only when the
// rule pass is not confident enough or left critical fields empty, and its
// output is merged field-by-field with the rule result. When the AI pass is
// needed but unavailable, the draft degrades gracefully with capped
// confidence instead of being dropped.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/noticewala/notice-engine/pkg/types"
)

// ErrNoContent reports a document with neither a title candidate nor body
// text. Such documents cannot become drafts and are skipped.
var ErrNoContent = errors.New("document has no extractable content")

// AIBackend abstracts the Generative AI API so tests can supply a mock.
// Each implementation handles one document and returns structured fields.
type AIBackend interface {
	Extract(ctx context.Context, document string) (AIResponse, error)
}

// AIResponse is the structured response from the AI backend for one document.
// Dates are RFC 3339 or YYYY-MM-DD strings; unparseable dates are dropped at
// conversion.
type AIResponse struct {
	Title               string             `json:"title"`
	Summary             string             `json:"summary"`
	PublishDate         string             `json:"publish_date"`
	ExamDates           []AIResponseDate   `json:"exam_dates"`
	ApplicationDeadline string             `json:"application_deadline"`
	Eligibility         string             `json:"eligibility"`
	Location            types.Location     `json:"location"`
	Categories          []string           `json:"categories"`
	Tags                []string           `json:"tags"`
	Confidence          map[string]float64 `json:"confidence"`
}

// AIResponseDate is a single dated milestone as returned by the AI backend.
type AIResponseDate struct {
	Type  string `json:"type"`
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
	Note  string `json:"note,omitempty"`
}

// Extractor runs the two-pass extraction over normalized documents.
type Extractor struct {
	backend AIBackend
	cfg     types.ExtractionConfig
	logger  *slog.Logger
}

// New builds an extractor. A nil backend disables the AI pass entirely; the
// rule pass still runs and degraded drafts still flow through.
func New(backend AIBackend, cfg types.ExtractionConfig, logger *slog.Logger) *Extractor {
	if cfg.AITrigger <= 0 {
		cfg.AITrigger = 0.6
	}
	if cfg.DegradedCeiling <= 0 {
		cfg.DegradedCeiling = 0.5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{backend: backend, cfg: cfg, logger: logger}
}

// Extract produces a draft for one normalized document. The result is a pure
// function of the inputs and the backend's behavior: re-running extraction on
// the same document yields the same draft.
func (e *Extractor) Extract(ctx context.Context, nt types.NormalizedText, src types.Source) (types.AnnouncementDraft, error) {
	draft := Rules(nt, src)

	if !draft.Title.IsSet() && strings.TrimSpace(draft.BodyText) == "" {
		return types.AnnouncementDraft{}, fmt.Errorf("%s (%s): %w", src.ID, nt.SourceURL, ErrNoContent)
	}

	if !e.needsAI(draft) {
		return draft, nil
	}
	if e.backend == nil || strings.TrimSpace(nt.PlainText) == "" {
		return e.degrade(draft), nil
	}

	resp, err := callWithRetry(ctx, e.backend, nt.PlainText, e.cfg.MaxRetries)
	if err != nil {
		e.logger.Warn("ai extraction unavailable, degrading",
			"source", src.ID, "url", nt.SourceURL, "error", err)
		return e.degrade(draft), nil
	}

	merged := Merge(draft, fromAIResponse(resp))
	return merged, nil
}

// needsAI reports whether the rule pass left the draft too weak to stand on
// its own: low aggregate confidence or missing critical fields.
func (e *Extractor) needsAI(draft types.AnnouncementDraft) bool {
	if draft.AggregateConfidence() < e.cfg.AITrigger {
		return true
	}
	if !draft.Title.IsSet() {
		return true
	}
	if !draft.ApplicationDeadline.IsSet() && len(draft.ExamDates) == 0 {
		return true
	}
	return false
}

// degrade caps every field confidence at the configured ceiling. The draft
// keeps its rule-pass values and method so re-extraction can improve it later.
func (e *Extractor) degrade(draft types.AnnouncementDraft) types.AnnouncementDraft {
	ceiling := e.cfg.DegradedCeiling
	draft.Title.Confidence = math.Min(draft.Title.Confidence, ceiling)
	draft.Summary.Confidence = math.Min(draft.Summary.Confidence, ceiling)
	draft.PublishDate.Confidence = math.Min(draft.PublishDate.Confidence, ceiling)
	draft.ApplicationDeadline.Confidence = math.Min(draft.ApplicationDeadline.Confidence, ceiling)
	draft.Eligibility.Confidence = math.Min(draft.Eligibility.Confidence, ceiling)
	draft.DatesConfidence = math.Min(draft.DatesConfidence, ceiling)
	draft.LocationConfidence = math.Min(draft.LocationConfidence, ceiling)
	return draft
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the AI backend with exponential backoff.
func callWithRetry(ctx context.Context, backend AIBackend, document string, maxRetries int) (AIResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return AIResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := backend.Extract(ctx, document)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return AIResponse{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
