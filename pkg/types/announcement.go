// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ExtractionMethod records which pass produced a draft.
type ExtractionMethod string

const (
	MethodRule   ExtractionMethod = "rule"
	MethodAI     ExtractionMethod = "ai"
	MethodHybrid ExtractionMethod = "hybrid"
)

// FieldOrigin identifies which extraction pass supplied a field value.
type FieldOrigin string

const (
	OriginRule FieldOrigin = "rule"
	OriginAI   FieldOrigin = "ai"
)

// TextField is a tagged string value: the value itself, the extractor's
// confidence in it, and which pass produced it. The merge between the rule
// and AI passes operates on these tags rather than on ad hoc map lookups.
type TextField struct {
	Value      string      `json:"value" yaml:"value"`
	Confidence float64     `json:"confidence" yaml:"confidence"`
	Origin     FieldOrigin `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// IsSet reports whether the field holds a value.
func (f TextField) IsSet() bool { return f.Value != "" }

// TimeField is a tagged time value. A zero Value means the field is unset.
type TimeField struct {
	Value      time.Time   `json:"value" yaml:"value"`
	Confidence float64     `json:"confidence" yaml:"confidence"`
	Origin     FieldOrigin `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// IsSet reports whether the field holds a value.
func (f TimeField) IsSet() bool { return !f.Value.IsZero() }

// ExamDate is one dated milestone inside an announcement.
type ExamDate struct {
	// Type classifies the milestone (e.g. "exam", "application_start").
	Type  string     `json:"type" yaml:"type"`
	Start time.Time  `json:"start" yaml:"start"`
	End   *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
	Note  string     `json:"note,omitempty" yaml:"note,omitempty"`
}

// Location is a coarse geographic scope for an announcement.
type Location struct {
	Country string `json:"country,omitempty" yaml:"country,omitempty"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
}

// IsZero reports whether no location component is set.
func (l Location) IsZero() bool {
	return l.Country == "" && l.State == "" && l.City == ""
}

// AnnouncementDraft is the extractor's output for one document: structured
// fields with per-field confidence tags. Drafts are immutable and transient;
// the deduplicator decides whether one becomes (or backfills) a canonical
// Announcement.
type AnnouncementDraft struct {
	Title   TextField `json:"title" yaml:"title"`
	Summary TextField `json:"summary" yaml:"summary"`

	BodyText string `json:"body_text" yaml:"body_text"`

	SourceID   string `json:"source_id" yaml:"source_id"`
	SourceName string `json:"source_name" yaml:"source_name"`
	SourceURL  string `json:"source_url" yaml:"source_url"`

	PublishDate TimeField `json:"publish_date" yaml:"publish_date"`

	ExamDates       []ExamDate `json:"exam_dates,omitempty" yaml:"exam_dates,omitempty"`
	DatesConfidence float64    `json:"dates_confidence" yaml:"dates_confidence"`

	ApplicationDeadline TimeField `json:"application_deadline" yaml:"application_deadline"`

	Eligibility TextField `json:"eligibility" yaml:"eligibility"`

	Location           Location `json:"location" yaml:"location"`
	LocationConfidence float64  `json:"location_confidence" yaml:"location_confidence"`

	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	Method ExtractionMethod `json:"extraction_method" yaml:"extraction_method"`
}

// ConfidenceVector flattens the tagged fields into the field→score map that
// is persisted on the canonical record.
func (d AnnouncementDraft) ConfidenceVector() map[string]float64 {
	return map[string]float64{
		"title":                d.Title.Confidence,
		"summary":              d.Summary.Confidence,
		"publish_date":         d.PublishDate.Confidence,
		"exam_dates":           d.DatesConfidence,
		"application_deadline": d.ApplicationDeadline.Confidence,
		"eligibility":          d.Eligibility.Confidence,
		"location":             d.LocationConfidence,
	}
}

// AggregateConfidence is the mean of the confidence vector.
func (d AnnouncementDraft) AggregateConfidence() float64 {
	vec := d.ConfidenceVector()
	var sum float64
	for _, v := range vec {
		sum += v
	}
	return sum / float64(len(vec))
}

// Announcement is the canonical persisted record. Exactly one canonical
// announcement exists per fingerprint cluster; duplicates point at it via
// DuplicateOf and are never independently matched or notified.
type Announcement struct {
	ID string `json:"id" yaml:"id"`

	Title    string `json:"title" yaml:"title"`
	Summary  string `json:"summary" yaml:"summary"`
	BodyText string `json:"body_text" yaml:"body_text"`

	SourceID   string `json:"source_id" yaml:"source_id"`
	SourceName string `json:"source_name" yaml:"source_name"`
	SourceURL  string `json:"source_url" yaml:"source_url"`

	PublishDate         time.Time  `json:"publish_date,omitempty" yaml:"publish_date,omitempty"`
	ExamDates           []ExamDate `json:"exam_dates,omitempty" yaml:"exam_dates,omitempty"`
	ApplicationDeadline time.Time  `json:"application_deadline,omitempty" yaml:"application_deadline,omitempty"`

	Eligibility string   `json:"eligibility,omitempty" yaml:"eligibility,omitempty"`
	Location    Location `json:"location" yaml:"location"`

	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Language   string   `json:"language,omitempty" yaml:"language,omitempty"`

	Confidence map[string]float64 `json:"confidence" yaml:"confidence"`
	Method     ExtractionMethod   `json:"extraction_method" yaml:"extraction_method"`

	// Fingerprint is the exact-duplicate key: a stable hash over the
	// normalized title, source, and week-rounded publish date.
	Fingerprint string `json:"content_fingerprint" yaml:"content_fingerprint"`

	PriorityScore float64 `json:"priority_score" yaml:"priority_score"`

	// DuplicateOf holds the canonical announcement ID when this record was
	// retroactively demoted to a duplicate.
	DuplicateOf string `json:"is_duplicate_of,omitempty" yaml:"is_duplicate_of,omitempty"`

	IsVerified bool      `json:"is_verified" yaml:"is_verified"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// HasCategory reports whether the announcement carries the given category.
func (a Announcement) HasCategory(cat string) bool {
	for _, c := range a.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// NearestDeadline returns the soonest future milestone at or after now,
// considering the application deadline and all exam dates. The second return
// is false when no dated milestone exists at all.
func (a Announcement) NearestDeadline(now time.Time) (time.Time, bool) {
	var nearest time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if nearest.IsZero() || t.Before(nearest) {
			nearest = t
		}
	}

	if !a.ApplicationDeadline.IsZero() && !a.ApplicationDeadline.Before(now) {
		consider(a.ApplicationDeadline)
	}
	for _, d := range a.ExamDates {
		if !d.Start.Before(now) {
			consider(d.Start)
		}
	}
	if !nearest.IsZero() {
		return nearest, true
	}

	// All milestones are in the past: report the latest one so the scorer
	// can tell "expired" from "undated".
	var latest time.Time
	expired := func(t time.Time) {
		if !t.IsZero() && t.After(latest) {
			latest = t
		}
	}
	expired(a.ApplicationDeadline)
	for _, d := range a.ExamDates {
		expired(d.Start)
	}
	return latest, !latest.IsZero()
}
