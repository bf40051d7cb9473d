// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists sources, canonical announcements, and subscriptions
// in SQLite, and provides the recent-window queries the deduplicator needs.
//
// The announcement search uses an FTS5 virtual table, so the module must be
// built with the sqlite_fts5 tag (the mage Build and Test targets pass it).
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/noticewala/notice-engine/pkg/types"
)

// Store manages the pipeline's SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// Open opens or creates the SQLite database at cfg.Path and creates the
// schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = "notice.db"
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			format TEXT NOT NULL,
			categories TEXT,
			region TEXT,
			trust_tier INTEGER DEFAULT 2,
			crawl_interval_secs INTEGER DEFAULT 86400,
			last_crawled_at TEXT,
			etag TEXT,
			last_modified TEXT,
			status TEXT DEFAULT 'active',
			consecutive_failures INTEGER DEFAULT 0,
			total_crawls INTEGER DEFAULT 0,
			created_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS announcements (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			summary TEXT,
			body_text TEXT,
			source_id TEXT NOT NULL REFERENCES sources(id),
			source_name TEXT,
			source_url TEXT,
			publish_date TEXT,
			exam_dates TEXT,
			application_deadline TEXT,
			eligibility TEXT,
			location TEXT,
			categories TEXT,
			tags TEXT,
			language TEXT,
			confidence TEXT,
			method TEXT,
			fingerprint TEXT NOT NULL,
			priority_score REAL DEFAULT 0,
			duplicate_of TEXT DEFAULT '',
			is_verified INTEGER DEFAULT 0,
			created_at TEXT
		)`,
		// One canonical row per fingerprint; demoted duplicates fall out of
		// the index so the constraint only guards canonical inserts.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_ann_fingerprint
			ON announcements(fingerprint) WHERE duplicate_of = ''`,
		`CREATE INDEX IF NOT EXISTS idx_ann_created ON announcements(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ann_source ON announcements(source_id)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			filter TEXT NOT NULL,
			notification_enabled INTEGER DEFAULT 1,
			quiet_hours TEXT,
			created_at TEXT
		)`,
		// Idempotency record for match-event emission: at most one event per
		// (subscription, announcement) pair ever leaves the dispatcher.
		`CREATE TABLE IF NOT EXISTS match_keys (
			subscription_id TEXT NOT NULL,
			announcement_id TEXT NOT NULL,
			emitted_at TEXT,
			PRIMARY KEY (subscription_id, announcement_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='announcements_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE announcements_fts USING fts5(title, summary, body_text, content=announcements, content_rowid=rowid)`,
			`CREATE TRIGGER announcements_ai AFTER INSERT ON announcements BEGIN
				INSERT INTO announcements_fts(rowid, title, summary, body_text)
				VALUES (new.rowid, new.title, new.summary, new.body_text);
			END`,
			`CREATE TRIGGER announcements_ad AFTER DELETE ON announcements BEGIN
				INSERT INTO announcements_fts(announcements_fts, rowid, title, summary, body_text)
				VALUES('delete', old.rowid, old.title, old.summary, old.body_text);
			END`,
			`CREATE TRIGGER announcements_au AFTER UPDATE ON announcements BEGIN
				INSERT INTO announcements_fts(announcements_fts, rowid, title, summary, body_text)
				VALUES('delete', old.rowid, old.title, old.summary, old.body_text);
				INSERT INTO announcements_fts(rowid, title, summary, body_text)
				VALUES (new.rowid, new.title, new.summary, new.body_text);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}
