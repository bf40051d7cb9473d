// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match evaluates announcements against subscription filters. A
// filter is a conjunction of clauses; an empty clause is vacuously true, so
// an empty filter matches everything.
package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noticewala/notice-engine/pkg/types"
)

// Candidate is an announcement prepared for repeated filter evaluation:
// the text fields are lowercased once instead of per subscription.
type Candidate struct {
	ann        types.Announcement
	searchText string
	categories map[string]bool
	location   []string
}

// NewCandidate precomputes the matchable view of an announcement.
func NewCandidate(a types.Announcement) Candidate {
	cats := make(map[string]bool, len(a.Categories))
	for _, c := range a.Categories {
		cats[strings.ToLower(c)] = true
	}

	var loc []string
	for _, part := range []string{a.Location.Country, a.Location.State, a.Location.City} {
		if part != "" {
			loc = append(loc, strings.ToLower(part))
		}
	}

	var text strings.Builder
	text.WriteString(strings.ToLower(a.Title))
	text.WriteByte('\n')
	text.WriteString(strings.ToLower(a.Summary))
	text.WriteByte('\n')
	text.WriteString(strings.ToLower(a.Eligibility))
	for _, tag := range a.Tags {
		text.WriteByte('\n')
		text.WriteString(strings.ToLower(tag))
	}

	return Candidate{
		ann:        a,
		searchText: text.String(),
		categories: cats,
		location:   loc,
	}
}

// Announcement returns the underlying record.
func (c Candidate) Announcement() types.Announcement { return c.ann }

// Evaluate checks one subscription against a candidate. All present clauses
// must pass; the returned reason names the clauses that did.
func Evaluate(sub types.Subscription, c Candidate) (types.MatchEvent, bool) {
	f := sub.Filter
	var reasons []string

	if len(f.Categories) > 0 {
		if !matchCategories(f.Categories, c.categories) {
			return types.MatchEvent{}, false
		}
		reasons = append(reasons, "category")
	}
	if len(f.Keywords) > 0 {
		if !matchKeywords(f.Keywords, c.searchText) {
			return types.MatchEvent{}, false
		}
		reasons = append(reasons, "keyword")
	}
	if len(f.Locations) > 0 {
		if !matchLocations(f.Locations, c.location) {
			return types.MatchEvent{}, false
		}
		reasons = append(reasons, "location")
	}
	if len(f.Sources) > 0 {
		if !hasFold(f.Sources, c.ann.SourceID) {
			return types.MatchEvent{}, false
		}
		reasons = append(reasons, "source")
	}
	if f.MinPriority > 0 {
		if c.ann.PriorityScore < f.MinPriority {
			return types.MatchEvent{}, false
		}
		reasons = append(reasons, "priority")
	}

	reason := "all announcements"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "+")
	}
	return types.MatchEvent{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		AnnouncementID: c.ann.ID,
		MatchedAt:      time.Now().UTC(),
		Reason:         fmt.Sprintf("matched on %s", reason),
	}, true
}

// Matches evaluates all subscriptions against one candidate, producing at
// most one event per subscription.
func Matches(subs []types.Subscription, c Candidate) []types.MatchEvent {
	var events []types.MatchEvent
	for _, sub := range subs {
		if ev, ok := Evaluate(sub, c); ok {
			events = append(events, ev)
		}
	}
	return events
}

func matchCategories(want []string, have map[string]bool) bool {
	for _, w := range want {
		if have[strings.ToLower(w)] {
			return true
		}
	}
	return false
}

func matchKeywords(keywords []string, text string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func matchLocations(want []string, have []string) bool {
	for _, w := range want {
		w = strings.ToLower(strings.TrimSpace(w))
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

func hasFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
