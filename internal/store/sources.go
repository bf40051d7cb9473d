// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/noticewala/notice-engine/pkg/types"
)

// CrawlOutcome is the fetcher's report for one crawl attempt. All crawl
// state on a source row changes through RecordCrawlOutcome and nowhere else.
type CrawlOutcome struct {
	At      time.Time
	Success bool

	// ETag and LastModified replace the stored validators on success.
	ETag         string
	LastModified string

	// FailureThreshold is the consecutive-failure count at which the source
	// transitions to the error state.
	FailureThreshold int
}

// SeedSources loads a YAML file of sources and upserts their configuration.
// Crawl state (status, counters, validators) on existing rows is preserved.
func (s *Store) SeedSources(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading sources file %s: %w", path, err)
	}

	var seed struct {
		Sources []types.Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parsing sources file %s: %w", path, err)
	}

	for i, src := range seed.Sources {
		if src.ID == "" || src.URL == "" {
			return 0, fmt.Errorf("source %d: id and url are required", i)
		}
		if err := s.UpsertSource(ctx, src); err != nil {
			return 0, err
		}
	}
	return len(seed.Sources), nil
}

// UpsertSource inserts a source or updates its configuration fields.
func (s *Store) UpsertSource(ctx context.Context, src types.Source) error {
	if src.Format == "" {
		src.Format = types.FormatHTML
	}
	if src.TrustTier <= 0 {
		src.TrustTier = 2
	}
	if src.CrawlInterval <= 0 {
		src.CrawlInterval = 24 * time.Hour
	}
	if src.Status == "" {
		src.Status = types.SourceActive
	}

	catsJSON, _ := json.Marshal(src.Categories)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, url, format, categories, region, trust_tier, crawl_interval_secs, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, url=excluded.url, format=excluded.format,
			categories=excluded.categories, region=excluded.region,
			trust_tier=excluded.trust_tier, crawl_interval_secs=excluded.crawl_interval_secs`,
		src.ID, src.Name, src.URL, string(src.Format), string(catsJSON), src.Region,
		src.TrustTier, int64(src.CrawlInterval/time.Second), string(src.Status),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting source %s: %w", src.ID, err)
	}
	return nil
}

// GetSource returns one source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (types.Source, error) {
	row := s.db.QueryRowContext(ctx, sourceSelect+` WHERE id = ?`, id)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return types.Source{}, fmt.Errorf("source %q not found", id)
	}
	return src, err
}

// ListSources returns all sources, optionally filtered by category.
func (s *Store) ListSources(ctx context.Context, category string) ([]types.Source, error) {
	rows, err := s.db.QueryContext(ctx, sourceSelect+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []types.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		if category != "" && !hasString(src.Categories, category) {
			continue
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// RecordCrawlOutcome applies one crawl attempt to a source row. It always
// advances last_crawled_at and total_crawls; on success it resets the
// failure counter and stores fresh validators, on failure it increments the
// counter and flips the source to error once the threshold is reached.
func (s *Store) RecordCrawlOutcome(ctx context.Context, sourceID string, out CrawlOutcome) (types.Source, error) {
	threshold := out.FailureThreshold
	if threshold <= 0 {
		threshold = 3
	}
	at := out.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var err error
	if out.Success {
		_, err = s.db.ExecContext(ctx,
			`UPDATE sources SET
				last_crawled_at = ?,
				total_crawls = total_crawls + 1,
				consecutive_failures = 0,
				status = CASE WHEN status = 'error' THEN 'active' ELSE status END,
				etag = ?,
				last_modified = ?
			 WHERE id = ?`,
			at.UTC().Format(time.RFC3339), out.ETag, out.LastModified, sourceID,
		)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE sources SET
				last_crawled_at = ?,
				total_crawls = total_crawls + 1,
				consecutive_failures = consecutive_failures + 1,
				status = CASE
					WHEN status != 'disabled' AND consecutive_failures + 1 >= ? THEN 'error'
					ELSE status
				END
			 WHERE id = ?`,
			at.UTC().Format(time.RFC3339), threshold, sourceID,
		)
	}
	if err != nil {
		return types.Source{}, fmt.Errorf("recording crawl outcome for %s: %w", sourceID, err)
	}

	return s.GetSource(ctx, sourceID)
}

// SetSourceStatus overrides a source's lifecycle state (admin surface).
func (s *Store) SetSourceStatus(ctx context.Context, id string, status types.SourceStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET status = ?, consecutive_failures = 0 WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("setting status for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %q not found", id)
	}
	return nil
}

const sourceSelect = `SELECT id, name, url, format, categories, region, trust_tier,
	crawl_interval_secs, last_crawled_at, etag, last_modified, status,
	consecutive_failures, total_crawls, created_at FROM sources`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (types.Source, error) {
	var (
		src                                     types.Source
		format, status                          string
		cats                                    sql.NullString
		region, lastCrawled, etag, lastMod, cAt sql.NullString
		intervalSecs                            int64
	)
	err := row.Scan(&src.ID, &src.Name, &src.URL, &format, &cats, &region,
		&src.TrustTier, &intervalSecs, &lastCrawled, &etag, &lastMod, &status,
		&src.ConsecutiveFailures, &src.TotalCrawls, &cAt)
	if err != nil {
		return types.Source{}, err
	}

	src.Format = types.SourceFormat(format)
	src.Status = types.SourceStatus(status)
	src.Region = region.String
	src.ETag = etag.String
	src.LastModified = lastMod.String
	src.CrawlInterval = time.Duration(intervalSecs) * time.Second
	if cats.Valid && cats.String != "" {
		_ = json.Unmarshal([]byte(cats.String), &src.Categories)
	}
	src.LastCrawledAt = parseTime(lastCrawled.String)
	src.CreatedAt = parseTime(cAt.String)
	return src, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func hasString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
