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

// SeedSubscriptions loads a YAML file of subscriptions and upserts them.
// Intended for local runs and tests; production subscriptions are owned by
// the external API layer.
func (s *Store) SeedSubscriptions(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading subscriptions file %s: %w", path, err)
	}

	var seed struct {
		Subscriptions []types.Subscription `yaml:"subscriptions"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parsing subscriptions file %s: %w", path, err)
	}

	for i, sub := range seed.Subscriptions {
		if sub.ID == "" || sub.UserID == "" {
			return 0, fmt.Errorf("subscription %d: id and user_id are required", i)
		}
		if err := s.UpsertSubscription(ctx, sub); err != nil {
			return 0, err
		}
	}
	return len(seed.Subscriptions), nil
}

// UpsertSubscription inserts or replaces one subscription.
func (s *Store) UpsertSubscription(ctx context.Context, sub types.Subscription) error {
	filterJSON, err := json.Marshal(sub.Filter)
	if err != nil {
		return fmt.Errorf("marshaling filter for %s: %w", sub.ID, err)
	}
	var quietJSON []byte
	if sub.QuietHours != nil {
		quietJSON, _ = json.Marshal(sub.QuietHours)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, filter, notification_enabled, quiet_hours, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			user_id=excluded.user_id, filter=excluded.filter,
			notification_enabled=excluded.notification_enabled,
			quiet_hours=excluded.quiet_hours`,
		sub.ID, sub.UserID, string(filterJSON), boolInt(sub.NotificationEnabled),
		string(quietJSON), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting subscription %s: %w", sub.ID, err)
	}
	return nil
}

// ActiveSubscriptions returns all subscriptions with notifications enabled.
func (s *Store) ActiveSubscriptions(ctx context.Context) ([]types.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, filter, notification_enabled, quiet_hours, created_at
		 FROM subscriptions WHERE notification_enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []types.Subscription
	for rows.Next() {
		var (
			sub            types.Subscription
			filter         string
			quiet, created sql.NullString
			enabled        int
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &filter, &enabled, &quiet, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(filter), &sub.Filter); err != nil {
			return nil, fmt.Errorf("parsing filter for subscription %s: %w", sub.ID, err)
		}
		sub.NotificationEnabled = enabled != 0
		if quiet.Valid && quiet.String != "" {
			var qh types.QuietHours
			if err := json.Unmarshal([]byte(quiet.String), &qh); err == nil {
				sub.QuietHours = &qh
			}
		}
		sub.CreatedAt = parseTime(created.String)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// TryMarkEmitted records the (subscription, announcement) idempotency key.
// It returns true when the key was new, false when an event for the pair was
// already emitted by an earlier run.
func (s *Store) TryMarkEmitted(ctx context.Context, subscriptionID, announcementID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO match_keys (subscription_id, announcement_id, emitted_at)
		 VALUES (?, ?, ?)`,
		subscriptionID, announcementID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("recording match key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
