// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline wires the crawl stages together: fetch, normalize,
// extract, deduplicate, score, match, dispatch. Sources are processed by a
// bounded worker pool; one bad source or document never aborts the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/noticewala/notice-engine/internal/dedup"
	"github.com/noticewala/notice-engine/internal/dispatch"
	"github.com/noticewala/notice-engine/internal/extract"
	"github.com/noticewala/notice-engine/internal/fetch"
	"github.com/noticewala/notice-engine/internal/match"
	"github.com/noticewala/notice-engine/internal/normalize"
	"github.com/noticewala/notice-engine/internal/score"
	"github.com/noticewala/notice-engine/internal/store"
	"github.com/noticewala/notice-engine/pkg/types"
)

// maxSitemapEntries caps how many sitemap pages expand per crawl cycle.
const maxSitemapEntries = 25

// Pipeline runs crawl cycles over registered sources.
type Pipeline struct {
	store     *store.Store
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	dedup     *dedup.Deduplicator
	scorer    *score.Scorer
	emitter   dispatch.Emitter
	workers   int
	logger    *slog.Logger
}

// New assembles a pipeline from its stages. A nil emitter falls back to the
// structured log.
func New(st *store.Store, f *fetch.Fetcher, ex *extract.Extractor, dd *dedup.Deduplicator,
	sc *score.Scorer, em dispatch.Emitter, workers int, logger *slog.Logger) *Pipeline {
	if em == nil {
		em = dispatch.NewLogEmitter(logger)
	}
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		store:     st,
		fetcher:   f,
		extractor: ex,
		dedup:     dd,
		scorer:    sc,
		emitter:   em,
		workers:   workers,
		logger:    logger,
	}
}

// RunAll crawls every registered source that is due.
func (p *Pipeline) RunAll(ctx context.Context, force bool) (types.CrawlSummary, error) {
	sources, err := p.store.ListSources(ctx, "")
	if err != nil {
		return types.CrawlSummary{}, err
	}
	return p.run(ctx, sources, force)
}

// RunByCategory crawls the sources registered under one category.
func (p *Pipeline) RunByCategory(ctx context.Context, category string, force bool) (types.CrawlSummary, error) {
	sources, err := p.store.ListSources(ctx, category)
	if err != nil {
		return types.CrawlSummary{}, err
	}
	return p.run(ctx, sources, force)
}

// RunSingle crawls one source on demand, bypassing the interval check.
func (p *Pipeline) RunSingle(ctx context.Context, sourceID string) (types.CrawlSummary, error) {
	src, err := p.store.GetSource(ctx, sourceID)
	if err != nil {
		return types.CrawlSummary{}, err
	}
	return p.run(ctx, []types.Source{src}, true)
}

// run processes sources through a bounded worker pool and aggregates the
// per-source outcomes.
func (p *Pipeline) run(ctx context.Context, sources []types.Source, force bool) (types.CrawlSummary, error) {
	start := time.Now()

	subs, err := p.store.ActiveSubscriptions(ctx)
	if err != nil {
		return types.CrawlSummary{}, err
	}

	summary := types.CrawlSummary{SourcesAttempted: len(sources)}
	var mu sync.Mutex

	jobs := make(chan types.Source)
	var wg sync.WaitGroup
	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				outcome := p.processSource(ctx, src, subs, force)
				mu.Lock()
				summary.Succeeded += outcome.succeeded
				summary.Failed += outcome.failed
				summary.Skipped += outcome.skipped
				summary.AnnouncementsInserted += outcome.inserted
				summary.Merged += outcome.merged
				summary.Discarded += outcome.discarded
				summary.MatchEvents += outcome.matchEvents
				mu.Unlock()
			}
		}()
	}

	for _, src := range sources {
		select {
		case jobs <- src:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			summary.Duration = time.Since(start)
			return summary, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	summary.Duration = time.Since(start)
	p.logger.Info("crawl cycle finished",
		"attempted", summary.SourcesAttempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"inserted", summary.AnnouncementsInserted,
		"merged", summary.Merged,
		"discarded", summary.Discarded,
		"match_events", summary.MatchEvents,
		"duration", summary.Duration,
	)
	return summary, nil
}

type sourceOutcome struct {
	succeeded, failed, skipped               int
	inserted, merged, discarded, matchEvents int
}

func (p *Pipeline) processSource(ctx context.Context, src types.Source, subs []types.Subscription, force bool) sourceOutcome {
	var out sourceOutcome

	if err := p.fetcher.Eligible(src, time.Now(), force); err != nil {
		p.logger.Debug("source skipped", "source", src.ID, "reason", err)
		out.skipped = 1
		return out
	}

	lastCrawl := src.LastCrawledAt

	doc, _, err := p.fetcher.Fetch(ctx, src)
	if errors.Is(err, fetch.ErrNotModified) {
		p.logger.Debug("source unchanged", "source", src.ID)
		out.succeeded = 1
		return out
	}
	if err != nil {
		p.logger.Warn("fetch failed", "source", src.ID, "error", err)
		out.failed = 1
		return out
	}

	texts, err := p.collectTexts(ctx, src, doc, lastCrawl)
	if err != nil {
		p.logger.Warn("normalization failed", "source", src.ID, "error", err)
		out.failed = 1
		return out
	}

	for _, nt := range texts {
		if err := p.processDocument(ctx, src, nt, subs, &out); err != nil {
			p.logger.Warn("document skipped", "source", src.ID, "url", nt.SourceURL, "error", err)
		}
	}

	out.succeeded = 1
	return out
}

// collectTexts normalizes the entry document, expanding sitemap sources into
// per-page sub-fetches.
func (p *Pipeline) collectTexts(ctx context.Context, src types.Source, doc types.RawDocument, lastCrawl time.Time) ([]types.NormalizedText, error) {
	if src.Format != types.FormatSitemap {
		return normalize.Document(doc, src.Format)
	}

	entries, err := normalize.SitemapURLs(doc)
	if err != nil {
		return nil, err
	}

	var texts []types.NormalizedText
	expanded := 0
	for _, entry := range entries {
		if expanded >= maxSitemapEntries {
			break
		}
		// Pages untouched since the previous crawl carry nothing new.
		if !entry.LastMod.IsZero() && !lastCrawl.IsZero() && entry.LastMod.Before(lastCrawl) {
			continue
		}
		page, err := p.fetcher.FetchURL(ctx, src, entry.Loc)
		if err != nil {
			p.logger.Warn("sitemap page fetch failed", "source", src.ID, "url", entry.Loc, "error", err)
			continue
		}
		expanded++
		nt, err := normalize.HTML(page)
		if err != nil {
			p.logger.Warn("sitemap page normalization failed", "source", src.ID, "url", entry.Loc, "error", err)
			continue
		}
		texts = append(texts, nt)
	}
	return texts, nil
}

// processDocument runs one normalized text through extract, dedup, score,
// match, and dispatch.
func (p *Pipeline) processDocument(ctx context.Context, src types.Source, nt types.NormalizedText, subs []types.Subscription, out *sourceOutcome) error {
	draft, err := p.extractor.Extract(ctx, nt, src)
	if err != nil {
		return err
	}

	// Source-level default categories supplement whatever extraction found.
	draft.Categories = mergeCategories(src.Categories, draft.Categories)

	decision, ann, err := p.dedup.Process(ctx, draft)
	if err != nil {
		return err
	}

	switch decision.Action {
	case dedup.ActionInsert:
		out.inserted++
	case dedup.ActionMerge:
		out.merged++
	case dedup.ActionDiscard:
		out.discarded++
		return nil
	}

	priority := p.scorer.Score(ann, src, time.Now())
	if priority != ann.PriorityScore {
		if err := p.store.UpdatePriority(ctx, ann.ID, priority); err != nil {
			return err
		}
		ann.PriorityScore = priority
	}

	candidate := match.NewCandidate(ann)
	for _, event := range match.Matches(subs, candidate) {
		fresh, err := p.store.TryMarkEmitted(ctx, event.SubscriptionID, event.AnnouncementID)
		if err != nil {
			return err
		}
		if !fresh {
			continue
		}
		if err := p.emitter.Emit(ctx, event, ann); err != nil {
			return fmt.Errorf("emitting match event %s: %w", event.ID, err)
		}
		out.matchEvents++
	}
	return nil
}

func mergeCategories(defaults, found []string) []string {
	out := make([]string, 0, len(defaults)+len(found))
	seen := make(map[string]bool)
	for _, c := range append(append([]string{}, found...), defaults...) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
