// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"strings"
	"testing"

	"github.com/noticewala/notice-engine/pkg/types"
)

func candidate() Candidate {
	return NewCandidate(types.Announcement{
		ID:          "ann-1",
		Title:       "UPSC Civil Services Examination 2026",
		Summary:     "Applications close on 15 March 2026.",
		Eligibility: "Degree holders may apply.",
		SourceID:    "upsc",
		Categories:  []string{"government"},
		Tags:        []string{"civil-services"},
		Location:    types.Location{Country: "India", State: "Uttar Pradesh"},
		PriorityScore: 0.8,
	})
}

func sub(filter types.FilterSet) types.Subscription {
	return types.Subscription{ID: "sub-1", UserID: "user-1", Filter: filter, NotificationEnabled: true}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		filter types.FilterSet
		want   bool
	}{
		{"empty filter matches everything", types.FilterSet{}, true},
		{"category match", types.FilterSet{Categories: []string{"government"}}, true},
		{"category non-match", types.FilterSet{Categories: []string{"scholarship"}}, false},
		{"category case-insensitive", types.FilterSet{Categories: []string{"Government"}}, true},
		{"keyword in title", types.FilterSet{Keywords: []string{"civil services"}}, true},
		{"keyword in tag", types.FilterSet{Keywords: []string{"civil-services"}}, true},
		{"keyword non-match", types.FilterSet{Keywords: []string{"neet"}}, false},
		{"any keyword suffices", types.FilterSet{Keywords: []string{"neet", "upsc"}}, true},
		{"location state match", types.FilterSet{Locations: []string{"uttar pradesh"}}, true},
		{"location non-match", types.FilterSet{Locations: []string{"kerala"}}, false},
		{"source match", types.FilterSet{Sources: []string{"UPSC"}}, true},
		{"source non-match", types.FilterSet{Sources: []string{"ssc"}}, false},
		{"min priority met", types.FilterSet{MinPriority: 0.5}, true},
		{"min priority not met", types.FilterSet{MinPriority: 0.9}, false},
		{
			"conjunction passes when all clauses pass",
			types.FilterSet{Categories: []string{"government"}, Keywords: []string{"upsc"}, MinPriority: 0.5},
			true,
		},
		{
			"conjunction fails when one clause fails",
			types.FilterSet{Categories: []string{"government"}, Keywords: []string{"neet"}},
			false,
		},
	}

	c := candidate()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Evaluate(sub(tt.filter), c)
			if ok != tt.want {
				t.Fatalf("Evaluate = %v, want %v", ok, tt.want)
			}
			if ok {
				if ev.SubscriptionID != "sub-1" || ev.AnnouncementID != "ann-1" {
					t.Errorf("event IDs wrong: %+v", ev)
				}
				if ev.Reason == "" {
					t.Error("matched event must carry a reason")
				}
			}
		})
	}
}

func TestEvaluateReasonNamesClauses(t *testing.T) {
	ev, ok := Evaluate(sub(types.FilterSet{
		Categories: []string{"government"},
		Keywords:   []string{"upsc"},
	}), candidate())
	if !ok {
		t.Fatal("want match")
	}
	if !strings.Contains(ev.Reason, "category") || !strings.Contains(ev.Reason, "keyword") {
		t.Errorf("Reason = %q, want both clause names", ev.Reason)
	}
}

func TestMatchesOneEventPerSubscription(t *testing.T) {
	subs := []types.Subscription{
		sub(types.FilterSet{Categories: []string{"government"}}),
		{ID: "sub-2", UserID: "user-2", Filter: types.FilterSet{Categories: []string{"scholarship"}}},
		{ID: "sub-3", UserID: "user-3", Filter: types.FilterSet{}},
	}

	events := Matches(subs, candidate())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	seen := map[string]bool{}
	for _, ev := range events {
		if seen[ev.SubscriptionID] {
			t.Errorf("duplicate event for subscription %s", ev.SubscriptionID)
		}
		seen[ev.SubscriptionID] = true
	}
	if !seen["sub-1"] || !seen["sub-3"] {
		t.Errorf("wrong subscriptions matched: %v", seen)
	}
}
