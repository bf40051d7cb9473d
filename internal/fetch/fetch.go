// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves raw documents from registered sources with
// politeness controls: a per-source rate limit, a global concurrency cap,
// conditional requests, and retry with backoff. All crawl-state mutation
// flows through a single recorder so no two workers ever read-modify-write
// the same source row.
package fetch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/noticewala/notice-engine/internal/httputil"
	"github.com/noticewala/notice-engine/internal/store"
	"github.com/noticewala/notice-engine/pkg/types"
)

// ErrNotModified reports that the source's content is unchanged since the
// last crawl (HTTP 304). The attempt still counts as a successful crawl.
var ErrNotModified = errors.New("content not modified")

// ErrSourceDisabled reports that a source is administratively disabled.
var ErrSourceDisabled = errors.New("source is disabled")

// ErrCoolingDown reports that an errored source has not finished its
// cooldown and is skipped this cycle.
var ErrCoolingDown = errors.New("source is cooling down after repeated failures")

// ErrNotDue reports that a source's crawl interval has not elapsed.
var ErrNotDue = errors.New("source crawl interval has not elapsed")

// Error is a fetch failure with enough context for the crawl summary.
type Error struct {
	SourceID string
	URL      string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s (%s): HTTP %d", e.SourceID, e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.SourceID, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StateRecorder applies crawl outcomes to source rows. *store.Store
// implements it.
type StateRecorder interface {
	RecordCrawlOutcome(ctx context.Context, sourceID string, out store.CrawlOutcome) (types.Source, error)
}

// Fetcher retrieves documents for sources.
type Fetcher struct {
	client   *http.Client
	recorder StateRecorder
	cfg      types.FetchConfig
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// sem caps concurrent fetches across all sources.
	sem chan struct{}
}

// New builds a fetcher. A nil client gets a default with the configured
// timeout; a nil logger discards output.
func New(client *http.Client, recorder StateRecorder, cfg types.FetchConfig, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "notice-engine/0.1"
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 2 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 6 * time.Hour
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Fetcher{
		client:   client,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		sem:      make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Eligible reports whether a source should be crawled now. force bypasses
// the interval check but never the disabled state or an active cooldown.
func (f *Fetcher) Eligible(src types.Source, now time.Time, force bool) error {
	switch src.Status {
	case types.SourceDisabled:
		return ErrSourceDisabled
	case types.SourceError:
		if now.Sub(src.LastCrawledAt) < f.cfg.Cooldown {
			return ErrCoolingDown
		}
	}
	if !force && !src.LastCrawledAt.IsZero() && now.Sub(src.LastCrawledAt) < src.CrawlInterval {
		return ErrNotDue
	}
	return nil
}

// Fetch retrieves the source's entry document. It returns the updated
// source row alongside the document; on ErrNotModified the document is
// empty but the source is still current. Every attempt, success or failure,
// advances the source's crawl state exactly once.
func (f *Fetcher) Fetch(ctx context.Context, src types.Source) (types.RawDocument, types.Source, error) {
	doc, err := f.get(ctx, src, src.URL, true)

	outcome := store.CrawlOutcome{
		At:               time.Now().UTC(),
		Success:          err == nil || errors.Is(err, ErrNotModified),
		FailureThreshold: f.cfg.FailureThreshold,
	}
	if err == nil {
		outcome.ETag = doc.ETag
		outcome.LastModified = doc.LastModified
	} else if errors.Is(err, ErrNotModified) {
		// Keep the validators that produced the 304.
		outcome.ETag = src.ETag
		outcome.LastModified = src.LastModified
	}

	updated, recErr := f.recorder.RecordCrawlOutcome(ctx, src.ID, outcome)
	if recErr != nil {
		f.logger.Error("recording crawl outcome failed", "source", src.ID, "error", recErr)
		if err == nil {
			err = recErr
		}
		updated = src
	}

	if err != nil {
		return types.RawDocument{}, updated, err
	}
	return doc, updated, nil
}

// FetchURL retrieves a secondary document (e.g. a sitemap entry or a PDF
// linked from an index page) under the same source's rate limit. It does
// not touch crawl state; the entry fetch already accounted for the cycle.
func (f *Fetcher) FetchURL(ctx context.Context, src types.Source, url string) (types.RawDocument, error) {
	return f.get(ctx, src, url, false)
}

func (f *Fetcher) get(ctx context.Context, src types.Source, url string, conditional bool) (types.RawDocument, error) {
	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return types.RawDocument{}, ctx.Err()
	}

	if err := f.limiter(src.ID).Wait(ctx); err != nil {
		return types.RawDocument{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.RawDocument{}, &Error{SourceID: src.ID, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if conditional {
		if src.ETag != "" {
			req.Header.Set("If-None-Match", src.ETag)
		}
		if src.LastModified != "" {
			req.Header.Set("If-Modified-Since", src.LastModified)
		}
	}

	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.cfg.MaxAttempts-1)
	if err != nil {
		return types.RawDocument{}, &Error{SourceID: src.ID, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		io.Copy(io.Discard, resp.Body)
		return types.RawDocument{}, ErrNotModified
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return types.RawDocument{}, &Error{
			SourceID: src.ID, URL: url, Status: resp.StatusCode,
			Err: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return types.RawDocument{}, &Error{SourceID: src.ID, URL: url, Err: err}
	}

	f.logger.Debug("fetched document", "source", src.ID, "url", url, "bytes", len(body))

	return types.RawDocument{
		SourceID:     src.ID,
		URL:          url,
		FetchedAt:    time.Now().UTC(),
		Content:      body,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Hash:         fmt.Sprintf("%x", sha256.Sum256(body)),
	}, nil
}

func (f *Fetcher) limiter(sourceID string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[sourceID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(f.cfg.MinInterval), 1)
		f.limiters[sourceID] = lim
	}
	return lim
}
