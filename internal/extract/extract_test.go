// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/noticewala/notice-engine/pkg/types"
)

// mockBackend implements AIBackend with canned responses or errors.
type mockBackend struct {
	resp  AIResponse
	err   error
	calls int
}

func (m *mockBackend) Extract(ctx context.Context, document string) (AIResponse, error) {
	m.calls++
	if m.err != nil {
		return AIResponse{}, m.err
	}
	return m.resp, nil
}

const noticeText = `Union Public Service Commission. Civil Services Examination 2026.
The Commission will hold the examination on 24 May 2026 at centres across India.
The last date for receipt of applications is 15 March 2026.
Eligibility: candidates must hold a degree from a recognised university.
Candidates from Uttar Pradesh may choose Lucknow as a centre.`

func normalizedNotice() types.NormalizedText {
	return types.NormalizedText{
		SourceID:       "upsc",
		SourceURL:      "https://upsc.gov.in/cse-2026",
		RawHash:        "abc123",
		PlainText:      noticeText,
		Language:       "en",
		TitleCandidate: "Civil Services Examination 2026",
		DateSpans:      []string{"24 May 2026", "15 March 2026"},
	}
}

func testSource() types.Source {
	return types.Source{ID: "upsc", Name: "UPSC", TrustTier: 1}
}

func TestRules(t *testing.T) {
	draft := Rules(normalizedNotice(), testSource())

	if draft.Title.Value != "Civil Services Examination 2026" {
		t.Errorf("Title = %q", draft.Title.Value)
	}
	if draft.Title.Confidence < 0.8 {
		t.Errorf("Title.Confidence = %v, want >= 0.8 for heading-derived title", draft.Title.Confidence)
	}
	if draft.Title.Origin != types.OriginRule {
		t.Errorf("Title.Origin = %q", draft.Title.Origin)
	}

	wantDeadline := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !draft.ApplicationDeadline.Value.Equal(wantDeadline) {
		t.Errorf("ApplicationDeadline = %v, want %v", draft.ApplicationDeadline.Value, wantDeadline)
	}

	if len(draft.ExamDates) != 1 {
		t.Fatalf("ExamDates = %v, want one exam milestone", draft.ExamDates)
	}
	wantExam := time.Date(2026, 5, 24, 0, 0, 0, 0, time.UTC)
	if !draft.ExamDates[0].Start.Equal(wantExam) || draft.ExamDates[0].Type != "exam" {
		t.Errorf("ExamDates[0] = %+v", draft.ExamDates[0])
	}
	if draft.DatesConfidence < 0.8 {
		t.Errorf("DatesConfidence = %v, want >= 0.8 with explicit cues", draft.DatesConfidence)
	}

	if !strings.Contains(strings.ToLower(draft.Eligibility.Value), "degree") {
		t.Errorf("Eligibility = %q", draft.Eligibility.Value)
	}
	if !hasString(draft.Categories, "government") {
		t.Errorf("Categories = %v, want government", draft.Categories)
	}
	if draft.Location.State != "Uttar Pradesh" || draft.Location.Country != "India" {
		t.Errorf("Location = %+v", draft.Location)
	}
	if draft.Method != types.MethodRule {
		t.Errorf("Method = %q", draft.Method)
	}
}

func TestRulesDeterministic(t *testing.T) {
	nt, src := normalizedNotice(), testSource()
	first := Rules(nt, src)
	second := Rules(nt, src)
	if !reflect.DeepEqual(first, second) {
		t.Error("rule pass is not deterministic")
	}
}

func TestParseDateSpan(t *testing.T) {
	tests := []struct {
		span string
		want time.Time
		ok   bool
	}{
		{"15 March 2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"15th March 2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"March 15, 2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"2026-03-15", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"15/03/2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"15-03-2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"15.03.2026", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"1 Jan 2027", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"not a date", time.Time{}, false},
		{"32/13/2026", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.span, func(t *testing.T) {
			got, ok := ParseDateSpan(tt.span)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractSkipsAIWhenConfident(t *testing.T) {
	backend := &mockBackend{}
	e := New(backend, types.ExtractionConfig{AITrigger: 0.3}, nil)

	draft, err := e.Extract(context.Background(), normalizedNotice(), testSource())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times, want 0 for a confident rule pass", backend.calls)
	}
	if draft.Method != types.MethodRule {
		t.Errorf("Method = %q, want rule", draft.Method)
	}
}

func TestExtractMergesAIFields(t *testing.T) {
	// A document the rule pass cannot date: no cue words, no spans.
	nt := types.NormalizedText{
		SourceID:       "board",
		SourceURL:      "https://board.example/notice",
		PlainText:      "Notification regarding the upcoming state board examination schedule.",
		TitleCandidate: "Board Notification",
	}
	backend := &mockBackend{resp: AIResponse{
		Title:               "State Board Examination Schedule 2026",
		Summary:             "The state board has released its 2026 examination schedule.",
		ApplicationDeadline: "2026-04-01",
		ExamDates:           []AIResponseDate{{Type: "exam", Start: "2026-06-10"}},
		Categories:          []string{"university"},
		Confidence: map[string]float64{
			"title": 0.95, "application_deadline": 0.9, "exam_dates": 0.9,
		},
	}}

	e := New(backend, types.ExtractionConfig{}, nil)
	draft, err := e.Extract(context.Background(), nt, types.Source{ID: "board", Name: "Board"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if backend.calls == 0 {
		t.Fatal("backend not called for a weak rule pass")
	}
	if draft.Method != types.MethodHybrid {
		t.Errorf("Method = %q, want hybrid", draft.Method)
	}
	if draft.Title.Value != "State Board Examination Schedule 2026" {
		t.Errorf("Title = %q, want AI title to win at higher confidence", draft.Title.Value)
	}
	if draft.Title.Origin != types.OriginAI {
		t.Errorf("Title.Origin = %q, want ai", draft.Title.Origin)
	}
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if !draft.ApplicationDeadline.Value.Equal(want) {
		t.Errorf("ApplicationDeadline = %v, want %v", draft.ApplicationDeadline.Value, want)
	}
	if !hasString(draft.Categories, "university") {
		t.Errorf("Categories = %v", draft.Categories)
	}
	// Rule-side provenance must survive the merge.
	if draft.SourceID != "board" || draft.BodyText == "" {
		t.Errorf("provenance lost: SourceID=%q BodyText=%q", draft.SourceID, draft.BodyText)
	}
}

func TestExtractDegradesWhenAIUnavailable(t *testing.T) {
	saved := backoffBase
	backoffBase = time.Millisecond
	defer func() { backoffBase = saved }()

	nt := types.NormalizedText{
		SourceID:       "board",
		SourceURL:      "https://board.example/notice",
		PlainText:      "Notification regarding the upcoming examination.",
		TitleCandidate: "Board Notification",
	}
	backend := &mockBackend{err: errors.New("deadline exceeded")}

	e := New(backend, types.ExtractionConfig{AIConfig: types.AIConfig{MaxRetries: 2}}, nil)
	draft, err := e.Extract(context.Background(), nt, types.Source{ID: "board"})
	if err != nil {
		t.Fatalf("Extract must not fail when AI is unavailable: %v", err)
	}

	if backend.calls != 3 {
		t.Errorf("backend called %d times, want 3 (initial + 2 retries)", backend.calls)
	}
	if draft.Method != types.MethodRule {
		t.Errorf("Method = %q, want rule after degraded fallback", draft.Method)
	}
	for field, conf := range draft.ConfidenceVector() {
		if conf > 0.5 {
			t.Errorf("confidence[%s] = %v, want <= 0.5 when degraded", field, conf)
		}
	}
}

func TestExtractNoContent(t *testing.T) {
	e := New(nil, types.ExtractionConfig{}, nil)
	_, err := e.Extract(context.Background(), types.NormalizedText{SourceID: "x"}, types.Source{ID: "x"})
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("err = %v, want ErrNoContent", err)
	}
}

func TestExtractLowTextPDFPassesThrough(t *testing.T) {
	nt := types.NormalizedText{
		SourceID:          "board",
		SourceURL:         "https://board.example/scan.pdf",
		TitleCandidate:    "Scanned Notice",
		LowTextConfidence: true,
	}
	e := New(&mockBackend{}, types.ExtractionConfig{}, nil)
	draft, err := e.Extract(context.Background(), nt, types.Source{ID: "board"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if draft.Title.Confidence > 0.5 {
		t.Errorf("Title.Confidence = %v, want degraded for image-only document", draft.Title.Confidence)
	}
}

func TestMergeRuleWinsAtHigherConfidence(t *testing.T) {
	rule := types.AnnouncementDraft{
		Title: types.TextField{Value: "Rule Title", Confidence: 0.9, Origin: types.OriginRule},
	}
	ai := types.AnnouncementDraft{
		Title: types.TextField{Value: "AI Title", Confidence: 0.6, Origin: types.OriginAI},
	}
	merged := Merge(rule, ai)
	if merged.Title.Value != "Rule Title" {
		t.Errorf("Title = %q, want rule value at higher confidence", merged.Title.Value)
	}
	if merged.Method != types.MethodHybrid {
		t.Errorf("Method = %q", merged.Method)
	}
}

func TestMergeDropsFieldWhenBothPassesAreLow(t *testing.T) {
	rule := types.AnnouncementDraft{
		Eligibility: types.TextField{Value: "rule guess", Confidence: 0.2, Origin: types.OriginRule},
		ApplicationDeadline: types.TimeField{
			Value: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), Confidence: 0.1, Origin: types.OriginRule,
		},
	}
	ai := types.AnnouncementDraft{
		Eligibility: types.TextField{Value: "ai guess", Confidence: 0.25, Origin: types.OriginAI},
		Title:       types.TextField{Value: "AI Title", Confidence: 0.9, Origin: types.OriginAI},
	}

	merged := Merge(rule, ai)
	if merged.Eligibility.IsSet() {
		t.Errorf("Eligibility = %+v, want empty when both passes are low-confidence", merged.Eligibility)
	}
	if merged.ApplicationDeadline.IsSet() {
		t.Errorf("ApplicationDeadline = %+v, want empty for a low-confidence sole guess", merged.ApplicationDeadline)
	}
	if merged.Title.Value != "AI Title" {
		t.Errorf("Title = %q, want confident value kept", merged.Title.Value)
	}
}

func TestClaudeBackend(t *testing.T) {
	aiResp := AIResponse{
		Title:      "SSC CGL 2026",
		Categories: []string{"government"},
		Confidence: map[string]float64{"title": 0.9},
	}
	text, _ := json.Marshal(aiResp)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		var req claudeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Notice text:") {
			t.Errorf("prompt missing document section")
		}
		fmt.Fprintf(w, `{"content":[{"type":"text","text":%q}]}`, string(text))
	}))
	defer server.Close()

	backend := NewClaudeBackend(types.AIConfig{
		Endpoint: server.URL, Model: "claude-test", APIKey: "test-key",
	})
	resp, err := backend.Extract(context.Background(), "Staff Selection Commission notice body")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if resp.Title != "SSC CGL 2026" {
		t.Errorf("Title = %q", resp.Title)
	}
}

func TestClaudeBackendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	backend := NewClaudeBackend(types.AIConfig{Endpoint: server.URL})
	if _, err := backend.Extract(context.Background(), "body"); err == nil {
		t.Fatal("want error for non-200 response")
	}
}
