// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noticewala/notice-engine/internal/store"
	"github.com/noticewala/notice-engine/pkg/types"
)

// Action is the deduplicator's verdict for one draft.
type Action string

const (
	// ActionInsert created a new canonical announcement.
	ActionInsert Action = "insert"
	// ActionMerge backfilled an existing canonical announcement.
	ActionMerge Action = "merge"
	// ActionDiscard recognized a duplicate that had nothing new to offer.
	ActionDiscard Action = "discard"
)

// Decision reports what happened to a draft and why.
type Decision struct {
	Action      Action
	CanonicalID string

	// Score is the similarity that drove a semantic-tier decision; exact-tier
	// merges report 1.0.
	Score float64

	// Ambiguous marks decisions that fell inside the audit band around the
	// similarity threshold.
	Ambiguous bool
}

// Deduplicator serializes draft admission per shard and applies the two-tier
// duplicate check.
type Deduplicator struct {
	store  *store.Store
	cfg    types.DedupConfig
	logger *slog.Logger

	mu     sync.Mutex
	shards map[string]*sync.Mutex
}

// New builds a deduplicator with documented defaults for unset config.
func New(st *store.Store, cfg types.DedupConfig, logger *slog.Logger) *Deduplicator {
	if cfg.Window <= 0 {
		cfg.Window = 30 * 24 * time.Hour
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.85
	}
	if cfg.AuditMargin <= 0 {
		cfg.AuditMargin = 0.05
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Deduplicator{
		store:  st,
		cfg:    cfg,
		logger: logger,
		shards: make(map[string]*sync.Mutex),
	}
}

// Process admits one draft. It returns the decision and the resulting
// canonical announcement (newly inserted, or the merged existing record).
//
// Admission for a shard is serialized under a mutex keyed by (category, ISO
// week), so two drafts of the same notice arriving concurrently cannot both
// insert. The partial unique index on fingerprint backs this up across
// shards: a lost race surfaces as ErrFingerprintExists and converts to a
// merge.
func (d *Deduplicator) Process(ctx context.Context, draft types.AnnouncementDraft) (Decision, types.Announcement, error) {
	fingerprint := Fingerprint(draft.Title.Value, draft.SourceName, draft.PublishDate.Value)

	shard := d.shard(shardKey(draft))
	shard.Lock()
	defer shard.Unlock()

	// Exact tier.
	canonical, found, err := d.store.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return Decision{}, types.Announcement{}, err
	}
	if found {
		merged, changed, err := d.merge(ctx, canonical, draft)
		if err != nil {
			return Decision{}, types.Announcement{}, err
		}
		action := ActionMerge
		if !changed {
			action = ActionDiscard
		}
		return Decision{Action: action, CanonicalID: merged.ID, Score: 1.0}, merged, nil
	}

	// Semantic tier over the recent canonical window.
	candidates, err := d.store.RecentCanonical(ctx, time.Now().Add(-d.cfg.Window))
	if err != nil {
		return Decision{}, types.Announcement{}, err
	}

	best, bestScore := pickBest(draft, candidates)
	ambiguous := bestScore >= d.cfg.SimilarityThreshold-d.cfg.AuditMargin &&
		bestScore < d.cfg.SimilarityThreshold+d.cfg.AuditMargin

	if bestScore >= d.cfg.SimilarityThreshold {
		if ambiguous {
			d.logger.Info("ambiguous duplicate merged",
				"canonical", best.ID, "score", bestScore, "title", draft.Title.Value)
		}
		merged, changed, err := d.merge(ctx, best, draft)
		if err != nil {
			return Decision{}, types.Announcement{}, err
		}
		action := ActionMerge
		if !changed {
			action = ActionDiscard
		}
		return Decision{Action: action, CanonicalID: merged.ID, Score: bestScore, Ambiguous: ambiguous}, merged, nil
	}

	if ambiguous {
		d.logger.Info("near-threshold draft inserted as new",
			"closest", best.ID, "score", bestScore, "title", draft.Title.Value)
	}

	ann := fromDraft(draft, fingerprint)
	err = d.store.InsertAnnouncement(ctx, ann)
	if errors.Is(err, store.ErrFingerprintExists) {
		// Lost a cross-shard race; the other writer's record is canonical now.
		canonical, found, gerr := d.store.GetByFingerprint(ctx, fingerprint)
		if gerr != nil || !found {
			return Decision{}, types.Announcement{}, fmt.Errorf("resolving fingerprint race for %s: %w", fingerprint, err)
		}
		merged, _, merr := d.merge(ctx, canonical, draft)
		if merr != nil {
			return Decision{}, types.Announcement{}, merr
		}
		return Decision{Action: ActionMerge, CanonicalID: merged.ID, Score: 1.0}, merged, nil
	}
	if err != nil {
		return Decision{}, types.Announcement{}, err
	}
	return Decision{Action: ActionInsert, CanonicalID: ann.ID, Score: bestScore, Ambiguous: ambiguous}, ann, nil
}

// pickBest returns the highest-scoring candidate; ties break toward the
// earliest created record so clusters stay anchored to one canonical.
func pickBest(draft types.AnnouncementDraft, candidates []types.Announcement) (types.Announcement, float64) {
	draftText := draft.Title.Value + " " + draft.Summary.Value

	var best types.Announcement
	bestScore := -1.0
	for _, cand := range candidates {
		score := Similarity(draftText, cand.Title+" "+cand.Summary)
		if score > bestScore || (score == bestScore && cand.CreatedAt.Before(best.CreatedAt)) {
			best = cand
			bestScore = score
		}
	}
	if bestScore < 0 {
		return types.Announcement{}, 0
	}
	return best, bestScore
}

// merge backfills a canonical record from a draft: empty fields are filled,
// and set fields are replaced only when the draft is more confident. The
// merged record is persisted when anything changed.
func (d *Deduplicator) merge(ctx context.Context, canonical types.Announcement, draft types.AnnouncementDraft) (types.Announcement, bool, error) {
	if canonical.Confidence == nil {
		canonical.Confidence = make(map[string]float64)
	}
	changed := false

	takeText := func(field string, current *string, f types.TextField) {
		if !f.IsSet() {
			return
		}
		if *current == "" || f.Confidence > canonical.Confidence[field] {
			*current = f.Value
			canonical.Confidence[field] = f.Confidence
			changed = true
		}
	}
	takeTime := func(field string, current *time.Time, f types.TimeField) {
		if !f.IsSet() {
			return
		}
		if current.IsZero() || f.Confidence > canonical.Confidence[field] {
			*current = f.Value
			canonical.Confidence[field] = f.Confidence
			changed = true
		}
	}

	takeText("title", &canonical.Title, draft.Title)
	takeText("summary", &canonical.Summary, draft.Summary)
	takeText("eligibility", &canonical.Eligibility, draft.Eligibility)
	takeTime("publish_date", &canonical.PublishDate, draft.PublishDate)
	takeTime("application_deadline", &canonical.ApplicationDeadline, draft.ApplicationDeadline)

	if len(draft.ExamDates) > 0 &&
		(len(canonical.ExamDates) == 0 || draft.DatesConfidence > canonical.Confidence["exam_dates"]) {
		canonical.ExamDates = draft.ExamDates
		canonical.Confidence["exam_dates"] = draft.DatesConfidence
		changed = true
	}
	if !draft.Location.IsZero() &&
		(canonical.Location.IsZero() || draft.LocationConfidence > canonical.Confidence["location"]) {
		canonical.Location = draft.Location
		canonical.Confidence["location"] = draft.LocationConfidence
		changed = true
	}

	if cats := unionStrings(canonical.Categories, draft.Categories); len(cats) != len(canonical.Categories) {
		canonical.Categories = cats
		changed = true
	}
	if tags := unionStrings(canonical.Tags, draft.Tags); len(tags) != len(canonical.Tags) {
		canonical.Tags = tags
		changed = true
	}
	if canonical.BodyText == "" && draft.BodyText != "" {
		canonical.BodyText = draft.BodyText
		changed = true
	}
	if changed && canonical.Method != draft.Method {
		canonical.Method = types.MethodHybrid
	}

	if !changed {
		return canonical, false, nil
	}
	if err := d.store.UpdateAnnouncement(ctx, canonical); err != nil {
		return types.Announcement{}, false, err
	}
	return canonical, true, nil
}

// fromDraft materializes a draft as a fresh canonical announcement.
func fromDraft(draft types.AnnouncementDraft, fingerprint string) types.Announcement {
	return types.Announcement{
		ID:                  uuid.NewString(),
		Title:               draft.Title.Value,
		Summary:             draft.Summary.Value,
		BodyText:            draft.BodyText,
		SourceID:            draft.SourceID,
		SourceName:          draft.SourceName,
		SourceURL:           draft.SourceURL,
		PublishDate:         draft.PublishDate.Value,
		ExamDates:           draft.ExamDates,
		ApplicationDeadline: draft.ApplicationDeadline.Value,
		Eligibility:         draft.Eligibility.Value,
		Location:            draft.Location,
		Categories:          draft.Categories,
		Tags:                draft.Tags,
		Language:            draft.Language,
		Confidence:          draft.ConfidenceVector(),
		Method:              draft.Method,
		Fingerprint:         fingerprint,
		CreatedAt:           time.Now().UTC(),
	}
}

// shardKey groups drafts likely to collide: same leading category, same ISO
// week of publish. Drafts that dodge the shard are still caught by the
// fingerprint index.
func shardKey(draft types.AnnouncementDraft) string {
	category := "uncategorized"
	if len(draft.Categories) > 0 {
		category = draft.Categories[0]
	}
	week := "undated"
	if draft.PublishDate.IsSet() {
		y, w := draft.PublishDate.Value.UTC().ISOWeek()
		week = fmt.Sprintf("%04d-W%02d", y, w)
	}
	return category + "/" + week
}

func (d *Deduplicator) shard(key string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.shards[key]
	if !ok {
		m = &sync.Mutex{}
		d.shards[key] = m
	}
	return m
}

func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
