// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourceFormat identifies how a source's documents are structured.
type SourceFormat string

const (
	FormatHTML    SourceFormat = "html"
	FormatRSS     SourceFormat = "rss"
	FormatSitemap SourceFormat = "sitemap"
	FormatPDF     SourceFormat = "pdf"
)

// SourceStatus is the crawl lifecycle state of a source.
type SourceStatus string

const (
	SourceActive   SourceStatus = "active"
	SourceError    SourceStatus = "error"
	SourceDisabled SourceStatus = "disabled"
)

// Source is a registered crawl target. The fetcher is the only component
// that mutates crawl state (last crawl time, failure counter, validators);
// everything else reads sources as configuration.
type Source struct {
	// ID is a stable slug (e.g. "upsc-notifications").
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable source name.
	Name string `json:"name" yaml:"name"`

	// URL is the crawl entry point.
	URL string `json:"url" yaml:"url"`

	// Format selects the normalizer backend: html, rss, sitemap, or pdf.
	Format SourceFormat `json:"format" yaml:"format"`

	// Categories are default categories applied to announcements from this source.
	Categories []string `json:"categories" yaml:"categories"`

	// Region is an optional geographic hint (e.g. "IN").
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// TrustTier ranks source reliability from 1 (highest) to 3 (lowest).
	// It feeds the priority scorer.
	TrustTier int `json:"trust_tier" yaml:"trust_tier"`

	// CrawlInterval is the minimum time between scheduled crawls.
	CrawlInterval time.Duration `json:"crawl_interval" yaml:"crawl_interval"`

	// LastCrawledAt is updated on every fetch attempt, success or failure.
	LastCrawledAt time.Time `json:"last_crawled_at,omitempty" yaml:"last_crawled_at,omitempty"`

	// ETag and LastModified are conditional-fetch validators from the most
	// recent successful response.
	ETag         string `json:"etag,omitempty" yaml:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`

	Status SourceStatus `json:"status" yaml:"status"`

	// ConsecutiveFailures counts fetch failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures" yaml:"consecutive_failures"`

	// TotalCrawls counts all fetch attempts over the source's lifetime.
	TotalCrawls int `json:"total_crawls" yaml:"total_crawls"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// CrawlSummary reports the outcome of a pipeline run across sources.
type CrawlSummary struct {
	SourcesAttempted      int           `json:"sources_attempted"`
	Succeeded             int           `json:"succeeded"`
	Failed                int           `json:"failed"`
	Skipped               int           `json:"skipped"`
	AnnouncementsInserted int           `json:"announcements_inserted"`
	Merged                int           `json:"merged"`
	Discarded             int           `json:"discarded"`
	MatchEvents           int           `json:"match_events"`
	Duration              time.Duration `json:"duration"`
}

// Total returns the number of sources processed.
func (s CrawlSummary) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// HasFailures reports whether any sources failed.
func (s CrawlSummary) HasFailures() bool {
	return s.Failed > 0
}
