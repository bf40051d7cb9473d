// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dispatch delivers match events to downstream notification
// consumers. Delivery is at-most-once per (subscription, announcement) pair;
// the idempotency key lives in the store and is claimed before emission.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/noticewala/notice-engine/pkg/types"
)

// Emitter sends one match event to a sink.
type Emitter interface {
	Emit(ctx context.Context, event types.MatchEvent, ann types.Announcement) error
	Close() error
}

// LogEmitter writes match events to the structured log. It is the default
// sink for local runs where no broker is configured.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter builds a log-backed emitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit logs the event.
func (e *LogEmitter) Emit(ctx context.Context, event types.MatchEvent, ann types.Announcement) error {
	e.logger.Info("match event",
		"subscription", event.SubscriptionID,
		"announcement", event.AnnouncementID,
		"title", ann.Title,
		"reason", event.Reason,
	)
	return nil
}

// Close implements Emitter.
func (e *LogEmitter) Close() error { return nil }
