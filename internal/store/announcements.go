// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/noticewala/notice-engine/pkg/types"
)

// ErrFingerprintExists is returned when an insert would create a second
// canonical announcement for a fingerprint that already has one. It is the
// compare-and-swap backstop behind the deduplicator's shard locks.
var ErrFingerprintExists = errors.New("canonical announcement with this fingerprint already exists")

// InsertAnnouncement persists a new canonical announcement.
func (s *Store) InsertAnnouncement(ctx context.Context, a types.Announcement) error {
	examJSON, _ := json.Marshal(a.ExamDates)
	locJSON, _ := json.Marshal(a.Location)
	catsJSON, _ := json.Marshal(a.Categories)
	tagsJSON, _ := json.Marshal(a.Tags)
	confJSON, _ := json.Marshal(a.Confidence)

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO announcements (id, title, summary, body_text, source_id, source_name,
			source_url, publish_date, exam_dates, application_deadline, eligibility,
			location, categories, tags, language, confidence, method, fingerprint,
			priority_score, duplicate_of, is_verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Summary, a.BodyText, a.SourceID, a.SourceName,
		a.SourceURL, timeString(a.PublishDate), string(examJSON),
		timeString(a.ApplicationDeadline), a.Eligibility, string(locJSON),
		string(catsJSON), string(tagsJSON), a.Language, string(confJSON),
		string(a.Method), a.Fingerprint, a.PriorityScore, a.DuplicateOf,
		boolInt(a.IsVerified), createdAt.Format(time.RFC3339),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrFingerprintExists
		}
		return fmt.Errorf("inserting announcement %s: %w", a.ID, err)
	}
	return nil
}

// UpdateAnnouncement rewrites the mutable fields of a canonical record after
// a dedup merge backfilled it.
func (s *Store) UpdateAnnouncement(ctx context.Context, a types.Announcement) error {
	examJSON, _ := json.Marshal(a.ExamDates)
	locJSON, _ := json.Marshal(a.Location)
	catsJSON, _ := json.Marshal(a.Categories)
	tagsJSON, _ := json.Marshal(a.Tags)
	confJSON, _ := json.Marshal(a.Confidence)

	res, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET
			title = ?, summary = ?, body_text = ?, publish_date = ?, exam_dates = ?,
			application_deadline = ?, eligibility = ?, location = ?, categories = ?,
			tags = ?, language = ?, confidence = ?, method = ?, priority_score = ?
		 WHERE id = ?`,
		a.Title, a.Summary, a.BodyText, timeString(a.PublishDate), string(examJSON),
		timeString(a.ApplicationDeadline), a.Eligibility, string(locJSON),
		string(catsJSON), string(tagsJSON), a.Language, string(confJSON),
		string(a.Method), a.PriorityScore, a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating announcement %s: %w", a.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("announcement %q not found", a.ID)
	}
	return nil
}

// MarkDuplicate demotes an announcement to a duplicate of the canonical ID.
// Demoted rows drop out of the fingerprint index and are never matched again.
func (s *Store) MarkDuplicate(ctx context.Context, id, canonicalID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET duplicate_of = ? WHERE id = ? AND duplicate_of = ''`,
		canonicalID, id,
	)
	if err != nil {
		return fmt.Errorf("marking %s duplicate of %s: %w", id, canonicalID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("announcement %q not found or already a duplicate", id)
	}
	return nil
}

// UpdatePriority stores a re-scored priority for one announcement.
func (s *Store) UpdatePriority(ctx context.Context, id string, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET priority_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return fmt.Errorf("updating priority for %s: %w", id, err)
	}
	return nil
}

// GetAnnouncement returns one announcement by ID.
func (s *Store) GetAnnouncement(ctx context.Context, id string) (types.Announcement, error) {
	row := s.db.QueryRowContext(ctx, announcementSelect+` WHERE id = ?`, id)
	a, err := scanAnnouncement(row)
	if err == sql.ErrNoRows {
		return types.Announcement{}, fmt.Errorf("announcement %q not found", id)
	}
	return a, err
}

// GetByFingerprint returns the canonical announcement for a fingerprint, or
// sql.ErrNoRows wrapped when none exists.
func (s *Store) GetByFingerprint(ctx context.Context, fingerprint string) (types.Announcement, bool, error) {
	row := s.db.QueryRowContext(ctx,
		announcementSelect+` WHERE fingerprint = ? AND duplicate_of = ''`, fingerprint)
	a, err := scanAnnouncement(row)
	if err == sql.ErrNoRows {
		return types.Announcement{}, false, nil
	}
	if err != nil {
		return types.Announcement{}, false, err
	}
	return a, true, nil
}

// RecentCanonical returns all canonical announcements created at or after
// the cutoff. This is the deduplicator's candidate window.
func (s *Store) RecentCanonical(ctx context.Context, since time.Time) ([]types.Announcement, error) {
	rows, err := s.db.QueryContext(ctx,
		announcementSelect+` WHERE duplicate_of = '' AND created_at >= ? ORDER BY created_at`,
		since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent announcements: %w", err)
	}
	return collectAnnouncements(rows)
}

// Search runs an FTS5 query over title, summary, and body text of canonical
// announcements, ranked best-first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]types.Announcement, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	rows, err := s.db.QueryContext(ctx,
		announcementSelect+` WHERE rowid IN (
			SELECT rowid FROM announcements_fts WHERE announcements_fts MATCH ? ORDER BY rank
		 ) AND duplicate_of = '' LIMIT ?`,
		ftsQuote(query), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching announcements: %w", err)
	}
	return collectAnnouncements(rows)
}

// Upcoming returns canonical announcements with an application deadline
// inside the window, ordered by priority then deadline.
func (s *Store) Upcoming(ctx context.Context, now time.Time, within time.Duration, limit int) ([]types.Announcement, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	rows, err := s.db.QueryContext(ctx,
		announcementSelect+` WHERE duplicate_of = ''
			AND application_deadline != ''
			AND application_deadline >= ?
			AND application_deadline <= ?
		 ORDER BY priority_score DESC, application_deadline ASC LIMIT ?`,
		now.UTC().Format(time.RFC3339), now.Add(within).UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying upcoming deadlines: %w", err)
	}
	return collectAnnouncements(rows)
}

// ftsQuote wraps each term in double quotes so user input cannot inject
// FTS5 query syntax.
func ftsQuote(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, ``) + `"`
	}
	return strings.Join(terms, " ")
}

const announcementSelect = `SELECT id, title, summary, body_text, source_id, source_name,
	source_url, publish_date, exam_dates, application_deadline, eligibility, location,
	categories, tags, language, confidence, method, fingerprint, priority_score,
	duplicate_of, is_verified, created_at FROM announcements`

func scanAnnouncement(row rowScanner) (types.Announcement, error) {
	var (
		a                                       types.Announcement
		summary, body, srcName, srcURL          sql.NullString
		pubDate, exams, deadline, elig, loc     sql.NullString
		cats, tags, lang, conf, method, created sql.NullString
		verified                                int
	)
	err := row.Scan(&a.ID, &a.Title, &summary, &body, &a.SourceID, &srcName,
		&srcURL, &pubDate, &exams, &deadline, &elig, &loc, &cats, &tags, &lang,
		&conf, &method, &a.Fingerprint, &a.PriorityScore, &a.DuplicateOf,
		&verified, &created)
	if err != nil {
		return types.Announcement{}, err
	}

	a.Summary = summary.String
	a.BodyText = body.String
	a.SourceName = srcName.String
	a.SourceURL = srcURL.String
	a.Eligibility = elig.String
	a.Language = lang.String
	a.Method = types.ExtractionMethod(method.String)
	a.IsVerified = verified != 0
	a.PublishDate = parseTime(pubDate.String)
	a.ApplicationDeadline = parseTime(deadline.String)
	a.CreatedAt = parseTime(created.String)

	if exams.Valid && exams.String != "" {
		_ = json.Unmarshal([]byte(exams.String), &a.ExamDates)
	}
	if loc.Valid && loc.String != "" {
		_ = json.Unmarshal([]byte(loc.String), &a.Location)
	}
	if cats.Valid && cats.String != "" {
		_ = json.Unmarshal([]byte(cats.String), &a.Categories)
	}
	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &a.Tags)
	}
	if conf.Valid && conf.String != "" {
		_ = json.Unmarshal([]byte(conf.String), &a.Confidence)
	}
	return a, nil
}

func collectAnnouncements(rows *sql.Rows) ([]types.Announcement, error) {
	defer rows.Close()
	var out []types.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
