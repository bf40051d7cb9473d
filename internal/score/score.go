// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score computes announcement priority: a deterministic weighted
// blend of deadline proximity, source trust, extraction confidence, and
// category importance, each normalized to [0,1].
package score

import (
	"math"
	"time"

	"github.com/noticewala/notice-engine/pkg/types"
)

// Scorer computes priority scores under one weight configuration.
type Scorer struct {
	cfg types.ScoreConfig
}

// New builds a scorer, filling unset weights with the documented defaults.
func New(cfg types.ScoreConfig) *Scorer {
	if cfg.DeadlineWeight <= 0 {
		cfg.DeadlineWeight = 0.45
	}
	if cfg.TrustWeight <= 0 {
		cfg.TrustWeight = 0.2
	}
	if cfg.ConfidenceWeight <= 0 {
		cfg.ConfidenceWeight = 0.2
	}
	if cfg.CategoryWeight <= 0 {
		cfg.CategoryWeight = 0.15
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 60 * 24 * time.Hour
	}
	return &Scorer{cfg: cfg}
}

// expiredFactor collapses the blended score once every milestone has passed.
// Relative order among expired records is preserved.
const expiredFactor = 0.1

// horizonTail is the deadline term at exactly the horizon; beyond it the
// term keeps decaying toward zero so far-future deadlines still order.
const horizonTail = 0.1

// Score computes the priority of an announcement at a given instant. The
// result is in [0,1], and for fixed inputs it is a pure function of now, so
// re-scoring is always safe.
func (s *Scorer) Score(a types.Announcement, src types.Source, now time.Time) float64 {
	deadline, dated := a.NearestDeadline(now)

	score := s.cfg.DeadlineWeight*s.deadlineTerm(deadline, dated, now) +
		s.cfg.TrustWeight*trustTerm(src) +
		s.cfg.ConfidenceWeight*confidenceTerm(a) +
		s.cfg.CategoryWeight*s.categoryTerm(a)
	score = clamp01(score / s.weightSum())

	// An expired notice ranks near zero regardless of the other terms.
	if dated && deadline.Before(now) {
		score *= expiredFactor
	}
	return score
}

func (s *Scorer) weightSum() float64 {
	return s.cfg.DeadlineWeight + s.cfg.TrustWeight + s.cfg.ConfidenceWeight + s.cfg.CategoryWeight
}

// deadlineTerm decays linearly from 1.0 at "due now" to horizonTail at the
// horizon, then asymptotically toward zero. Undated announcements sit in the
// middle; expired ones contribute nothing here because Score collapses the
// whole blend for them.
func (s *Scorer) deadlineTerm(deadline time.Time, dated bool, now time.Time) float64 {
	if !dated {
		return 0.5
	}
	remaining := float64(deadline.Sub(now))
	if remaining < 0 {
		return 0
	}
	horizon := float64(s.cfg.Horizon)
	if remaining >= horizon {
		return horizonTail * horizon / remaining
	}
	return 1 - (1-horizonTail)*remaining/horizon
}

// trustTerm maps the 1..3 trust tier to 1.0, 0.6, 0.3.
func trustTerm(src types.Source) float64 {
	switch src.TrustTier {
	case 1:
		return 1.0
	case 2:
		return 0.6
	default:
		return 0.3
	}
}

// confidenceTerm is the mean of the per-field extraction confidences.
func confidenceTerm(a types.Announcement) float64 {
	if len(a.Confidence) == 0 {
		return 0
	}
	var sum float64
	for _, v := range a.Confidence {
		sum += v
	}
	return clamp01(sum / float64(len(a.Confidence)))
}

// categoryTerm takes the highest configured boost among the announcement's
// categories; unknown or missing categories default to 0.5.
func (s *Scorer) categoryTerm(a types.Announcement) float64 {
	best := 0.5
	found := false
	for _, cat := range a.Categories {
		if boost, ok := s.cfg.CategoryBoosts[cat]; ok {
			if !found || boost > best {
				best = boost
				found = true
			}
		}
	}
	return clamp01(best)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
