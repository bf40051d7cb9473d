// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package score

import (
	"testing"
	"time"

	"github.com/noticewala/notice-engine/pkg/types"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func announcement(deadline time.Time) types.Announcement {
	return types.Announcement{
		ID:                  "a1",
		Title:               "Test Notice",
		ApplicationDeadline: deadline,
		Categories:          []string{"government"},
		Confidence:          map[string]float64{"title": 0.9, "application_deadline": 0.9},
	}
}

func tier1() types.Source { return types.Source{ID: "s1", TrustTier: 1} }

func TestScoreDeterministic(t *testing.T) {
	s := New(types.ScoreConfig{})
	a := announcement(now.AddDate(0, 0, 10))
	if s.Score(a, tier1(), now) != s.Score(a, tier1(), now) {
		t.Error("identical inputs produced different scores")
	}
}

func TestScoreRange(t *testing.T) {
	s := New(types.ScoreConfig{})
	cases := []types.Announcement{
		announcement(now.AddDate(0, 0, 1)),
		announcement(now.AddDate(0, 0, 90)),
		announcement(now.AddDate(0, 0, -5)),
		announcement(time.Time{}),
		{ID: "bare"},
	}
	for _, a := range cases {
		got := s.Score(a, tier1(), now)
		if got < 0 || got > 1 {
			t.Errorf("Score(%s) = %v, out of [0,1]", a.ID, got)
		}
	}
}

func TestScoreDeadlineMonotonic(t *testing.T) {
	s := New(types.ScoreConfig{})

	near := s.Score(announcement(now.AddDate(0, 0, 2)), tier1(), now)
	far := s.Score(announcement(now.AddDate(0, 0, 10)), tier1(), now)
	if near <= far {
		t.Errorf("deadline 2 days away scored %v, 10 days away scored %v; want near > far", near, far)
	}

	// Every day closer must never lower the score.
	prev := -1.0
	for days := 59; days >= 0; days-- {
		got := s.Score(announcement(now.AddDate(0, 0, days)), tier1(), now)
		if got < prev {
			t.Fatalf("score decreased as deadline approached: %v at %d days, %v at %d days", prev, days+1, got, days)
		}
		prev = got
	}
}

func TestScoreExpiredNearZero(t *testing.T) {
	s := New(types.ScoreConfig{})

	// Ten days past deadline, best-case everything else: top trust tier and
	// 0.9 field confidences must not keep an expired notice afloat.
	expired := s.Score(announcement(now.AddDate(0, 0, -10)), tier1(), now)
	if expired > 0.05 {
		t.Errorf("expired notice scored %v, want near zero (<= 0.05)", expired)
	}
	if expired <= 0 {
		t.Errorf("expired notice scored %v, want a small positive value", expired)
	}

	// Even a live notice from the weakest source outranks it.
	live := announcement(now.AddDate(0, 0, 5))
	live.Confidence = nil
	if got := s.Score(live, types.Source{TrustTier: 3}, now); expired >= got {
		t.Errorf("expired (tier 1) scored %v, live (tier 3) scored %v; want live higher", expired, got)
	}

	// Ordering among expired notices is preserved.
	older := s.Score(announcement(now.AddDate(0, 0, -30)), tier1(), now)
	if older > expired {
		t.Errorf("expired 30d ago scored %v, 10d ago scored %v; want the older one no higher", older, expired)
	}
}

func TestScoreFarDeadlinesStillOrdered(t *testing.T) {
	s := New(types.ScoreConfig{})

	d90 := s.Score(announcement(now.AddDate(0, 0, 90)), tier1(), now)
	d120 := s.Score(announcement(now.AddDate(0, 0, 120)), tier1(), now)
	if d90 <= d120 {
		t.Errorf("90-day deadline scored %v, 120-day scored %v; want nearer one higher beyond the horizon", d90, d120)
	}
}

func TestScoreTrustTiers(t *testing.T) {
	s := New(types.ScoreConfig{})
	a := announcement(now.AddDate(0, 0, 10))

	t1 := s.Score(a, types.Source{TrustTier: 1}, now)
	t2 := s.Score(a, types.Source{TrustTier: 2}, now)
	t3 := s.Score(a, types.Source{TrustTier: 3}, now)
	if !(t1 > t2 && t2 > t3) {
		t.Errorf("trust ordering violated: tier1=%v tier2=%v tier3=%v", t1, t2, t3)
	}
}

func TestScoreCategoryBoost(t *testing.T) {
	s := New(types.ScoreConfig{
		CategoryBoosts: map[string]float64{"government": 1.0, "certification": 0.2},
	})
	gov := announcement(now.AddDate(0, 0, 10))
	cert := announcement(now.AddDate(0, 0, 10))
	cert.Categories = []string{"certification"}

	if sg, sc := s.Score(gov, tier1(), now), s.Score(cert, tier1(), now); sg <= sc {
		t.Errorf("government=%v certification=%v; want boost to dominate", sg, sc)
	}

	// Unknown categories take the neutral default rather than zero.
	unknown := announcement(now.AddDate(0, 0, 10))
	unknown.Categories = []string{"misc"}
	if got := s.Score(unknown, tier1(), now); got <= s.Score(cert, tier1(), now) {
		t.Errorf("unknown category scored %v, want above heavily down-boosted one", got)
	}
}

func TestScoreUsesExamDateWhenNoDeadline(t *testing.T) {
	s := New(types.ScoreConfig{})
	a := announcement(time.Time{})
	a.ExamDates = []types.ExamDate{{Type: "exam", Start: now.AddDate(0, 0, 3)}}

	undated := announcement(time.Time{})
	if s.Score(a, tier1(), now) <= s.Score(undated, tier1(), now) {
		t.Error("an imminent exam date must outrank a fully undated notice")
	}
}
