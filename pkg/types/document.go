// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RawDocument is the immutable result of one fetch. It lives only for the
// duration of a pipeline pass; long-term persistence is out of scope.
type RawDocument struct {
	SourceID string `json:"source_id"`

	// URL is the concrete document URL, which may differ from the source
	// entry point when a sitemap or feed expands into sub-fetches.
	URL string `json:"url"`

	FetchedAt time.Time `json:"fetched_at"`

	Content     []byte `json:"-"`
	ContentType string `json:"content_type"`

	// ETag and LastModified echo response validators for conditional refetch.
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`

	// Hash is the hex SHA-256 of Content.
	Hash string `json:"hash"`
}

// NormalizedText is the format-independent view of a RawDocument. It is a
// pure derivation: identical raw bytes always normalize to identical output.
type NormalizedText struct {
	SourceID  string `json:"source_id"`
	SourceURL string `json:"source_url"`

	// RawHash ties the normalized text back to the raw document it came from.
	RawHash string `json:"raw_hash"`

	PlainText string `json:"plain_text"`

	// Language is a detected ISO 639-1 code, empty when unknown.
	Language string `json:"language,omitempty"`

	// TitleCandidate is the first heading-like line, when one was found.
	TitleCandidate string `json:"title_candidate,omitempty"`

	// DateSpans are substrings that look like dates, preserved as hints for
	// the extractor's rule pass.
	DateSpans []string `json:"date_spans,omitempty"`

	// Links are absolute URLs found in the document.
	Links []string `json:"links,omitempty"`

	// Published is the item publish time when the format carries one (RSS).
	Published time.Time `json:"published,omitempty"`

	// LowTextConfidence marks documents whose text layer was absent or
	// unusable (e.g. image-only PDFs). Such documents pass through with an
	// empty body rather than being dropped.
	LowTextConfidence bool `json:"low_text_confidence,omitempty"`
}
