// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dispatch

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/noticewala/notice-engine/pkg/types"
)

func TestLogEmitter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := NewLogEmitter(logger)
	defer e.Close()

	err := e.Emit(context.Background(), types.MatchEvent{
		ID:             "ev-1",
		SubscriptionID: "sub-1",
		AnnouncementID: "ann-1",
		Reason:         "matched on category",
	}, types.Announcement{ID: "ann-1", Title: "UPSC CSE 2026"})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"sub-1", "ann-1", "UPSC CSE 2026", "matched on category"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestRoutingKey(t *testing.T) {
	tests := []struct {
		name string
		ann  types.Announcement
		want string
	}{
		{"categorized", types.Announcement{Categories: []string{"government", "entrance"}}, "match.government"},
		{"uncategorized", types.Announcement{}, "match.uncategorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := routingKey(tt.ann); got != tt.want {
				t.Errorf("routingKey = %q, want %q", got, tt.want)
			}
		})
	}
}
