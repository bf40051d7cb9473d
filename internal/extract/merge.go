// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"time"

	"github.com/noticewala/notice-engine/pkg/types"
)

// aiDefaultConfidence applies when the AI response omits a field's score.
const aiDefaultConfidence = 0.7

// fromAIResponse converts the backend's response into a draft with AI-tagged
// fields. Unparseable dates are dropped rather than guessed at.
func fromAIResponse(resp AIResponse) types.AnnouncementDraft {
	conf := func(field string) float64 {
		if v, ok := resp.Confidence[field]; ok && v >= 0 && v <= 1 {
			return v
		}
		return aiDefaultConfidence
	}

	draft := types.AnnouncementDraft{
		Categories: resp.Categories,
		Tags:       resp.Tags,
		Method:     types.MethodAI,
	}

	if resp.Title != "" {
		draft.Title = types.TextField{Value: resp.Title, Confidence: conf("title"), Origin: types.OriginAI}
	}
	if resp.Summary != "" {
		draft.Summary = types.TextField{Value: resp.Summary, Confidence: conf("summary"), Origin: types.OriginAI}
	}
	if resp.Eligibility != "" {
		draft.Eligibility = types.TextField{Value: resp.Eligibility, Confidence: conf("eligibility"), Origin: types.OriginAI}
	}
	if t, ok := parseAIDate(resp.PublishDate); ok {
		draft.PublishDate = types.TimeField{Value: t, Confidence: conf("publish_date"), Origin: types.OriginAI}
	}
	if t, ok := parseAIDate(resp.ApplicationDeadline); ok {
		draft.ApplicationDeadline = types.TimeField{Value: t, Confidence: conf("application_deadline"), Origin: types.OriginAI}
	}

	for _, d := range resp.ExamDates {
		start, ok := parseAIDate(d.Start)
		if !ok {
			continue
		}
		ed := types.ExamDate{Type: d.Type, Start: start, Note: d.Note}
		if ed.Type == "" {
			ed.Type = "exam"
		}
		if end, ok := parseAIDate(d.End); ok {
			ed.End = &end
		}
		draft.ExamDates = append(draft.ExamDates, ed)
	}
	if len(draft.ExamDates) > 0 {
		draft.DatesConfidence = conf("exam_dates")
	}

	if !resp.Location.IsZero() {
		draft.Location = resp.Location
		draft.LocationConfidence = conf("location")
	}

	return draft
}

func parseAIDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range [...]string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// mergeFloor is the lowest confidence the merge accepts for a field: when
// neither pass clears it, the field stays empty rather than guessing.
const mergeFloor = 0.3

// Merge combines the rule draft with the AI draft field by field: the value
// with the higher confidence wins as long as it clears mergeFloor, list
// fields union, and provenance fields (source, body, language) always come
// from the rule side, which saw the actual document. The result is tagged
// hybrid.
func Merge(rule, ai types.AnnouncementDraft) types.AnnouncementDraft {
	out := rule
	out.Method = types.MethodHybrid

	out.Title = pickText(rule.Title, ai.Title)
	out.Summary = pickText(rule.Summary, ai.Summary)
	out.Eligibility = pickText(rule.Eligibility, ai.Eligibility)
	out.PublishDate = pickTime(rule.PublishDate, ai.PublishDate)
	out.ApplicationDeadline = pickTime(rule.ApplicationDeadline, ai.ApplicationDeadline)

	if ai.DatesConfidence > rule.DatesConfidence && len(ai.ExamDates) > 0 {
		out.ExamDates = ai.ExamDates
		out.DatesConfidence = ai.DatesConfidence
	}
	if ai.LocationConfidence > rule.LocationConfidence && !ai.Location.IsZero() {
		out.Location = ai.Location
		out.LocationConfidence = ai.LocationConfidence
	}

	out.Categories = unionStrings(rule.Categories, ai.Categories)
	out.Tags = unionStrings(rule.Tags, ai.Tags)

	return out
}

func pickText(rule, ai types.TextField) types.TextField {
	best := rule
	if ai.IsSet() && (!rule.IsSet() || ai.Confidence > rule.Confidence) {
		best = ai
	}
	if best.IsSet() && best.Confidence < mergeFloor {
		return types.TextField{}
	}
	return best
}

func pickTime(rule, ai types.TimeField) types.TimeField {
	best := rule
	if ai.IsSet() && (!rule.IsSet() || ai.Confidence > rule.Confidence) {
		best = ai
	}
	if best.IsSet() && best.Confidence < mergeFloor {
		return types.TimeField{}
	}
	return best
}

func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !hasString(out, s) {
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !hasString(out, s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
