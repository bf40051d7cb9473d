// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// FilterSet is the conjunction of clauses a subscription applies to
// announcements. An empty clause is vacuously satisfied.
type FilterSet struct {
	// Categories matches when the announcement carries at least one of these.
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// Keywords matches when title or summary contains at least one keyword
	// (case-insensitive).
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Locations matches against the announcement's country, state, or city.
	Locations []string `json:"locations,omitempty" yaml:"locations,omitempty"`

	// Sources is an allow-list of source IDs.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	// MinPriority is the lowest priority score that still matches.
	MinPriority float64 `json:"min_priority" yaml:"min_priority"`
}

// IsEmpty reports whether no clause is specified at all.
func (f FilterSet) IsEmpty() bool {
	return len(f.Categories) == 0 && len(f.Keywords) == 0 &&
		len(f.Locations) == 0 && len(f.Sources) == 0 && f.MinPriority == 0
}

// QuietHours is delivery-window configuration passed through to the dispatch
// layer; the pipeline itself never evaluates it.
type QuietHours struct {
	Start string `json:"start" yaml:"start"` // "22:00"
	End   string `json:"end" yaml:"end"`     // "07:00"
}

// Subscription is a user's standing filter over incoming announcements.
// The pipeline evaluates subscriptions read-only and never mutates them.
type Subscription struct {
	ID     string `json:"id" yaml:"id"`
	UserID string `json:"user_id" yaml:"user_id"`

	Filter FilterSet `json:"filter" yaml:"filter"`

	NotificationEnabled bool        `json:"notification_enabled" yaml:"notification_enabled"`
	QuietHours          *QuietHours `json:"quiet_hours,omitempty" yaml:"quiet_hours,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// MatchEvent records that one subscription's filters are satisfied by one
// announcement. Events are ephemeral: emitted to the dispatch layer, which
// enforces at-most-once delivery per (subscription, announcement) key.
type MatchEvent struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	AnnouncementID string    `json:"announcement_id"`
	MatchedAt      time.Time `json:"matched_at"`

	// Reason names the clauses that matched, for audit (e.g.
	// "category:government,keyword:upsc").
	Reason string `json:"match_reason"`
}

// DedupKey is the idempotency key the dispatch layer uses to suppress
// repeated delivery of the same match.
func (e MatchEvent) DedupKey() string {
	return e.SubscriptionID + ":" + e.AnnouncementID
}
