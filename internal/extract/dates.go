// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/noticewala/notice-engine/pkg/types"
)

// dateLayouts covers the shapes the normalizer's date-span scanner emits.
// Numeric day-first layouts reflect the DD/MM/YYYY convention of the sources.
var dateLayouts = []string{
	"2 January 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
}

var ordinalPattern = regexp.MustCompile(`(?i)(\d{1,2})(st|nd|rd|th)\b`)

// ParseDateSpan parses one date-shaped substring into a UTC midnight time.
func ParseDateSpan(span string) (time.Time, bool) {
	s := ordinalPattern.ReplaceAllString(strings.TrimSpace(span), "$1")
	s = strings.Join(strings.Fields(s), " ")

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// milestone is a classified date occurrence.
type milestone struct {
	kind string // "application_deadline", "application_start", "exam", "result", "other"
	at   time.Time
	// strong marks classifications backed by an explicit context keyword.
	strong bool
}

var deadlineCues = []string{
	"last date", "closing date", "apply before", "applications close",
	"application deadline", "deadline", "apply by", "closes on", "close on",
}

var startCues = []string{
	"apply from", "applications open", "opening date", "opens on",
	"commencement of application", "registration starts",
}

var examCues = []string{
	"exam will be held", "examination will be held", "held on", "exam date",
	"examination date", "date of examination", "conducted on", "test on",
	"interview on", "scheduled for", "scheduled on",
}

var resultCues = []string{
	"result", "results declared", "merit list",
}

// classifyDates resolves each date span against its surrounding text. The 80
// characters before an occurrence carry the cue ("last date to apply is ...",
// "the examination will be held on ..."); spans with no cue default to weak
// exam milestones.
func classifyDates(text string, spans []string) []milestone {
	lower := strings.ToLower(text)
	var out []milestone

	for _, span := range spans {
		at, ok := ParseDateSpan(span)
		if !ok {
			continue
		}

		idx := strings.Index(lower, strings.ToLower(span))
		window := ""
		if idx >= 0 {
			start := idx - 80
			if start < 0 {
				start = 0
			}
			window = lower[start:idx]
		}

		m := milestone{kind: "exam", at: at}
		switch {
		case containsAny(window, deadlineCues):
			m.kind = "application_deadline"
			m.strong = true
		case containsAny(window, startCues):
			m.kind = "application_start"
			m.strong = true
		case containsAny(window, examCues):
			m.kind = "exam"
			m.strong = true
		case containsAny(window, resultCues):
			m.kind = "result"
			m.strong = true
		}
		out = append(out, m)
	}
	return out
}

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}

// milestonesToFields splits classified milestones into the deadline field and
// the exam-date list, with a shared confidence reflecting cue strength.
func milestonesToFields(milestones []milestone) (deadline types.TimeField, dates []types.ExamDate, confidence float64) {
	if len(milestones) == 0 {
		return types.TimeField{}, nil, 0
	}

	anyStrong := false
	for _, m := range milestones {
		if m.strong {
			anyStrong = true
		}
		if m.kind == "application_deadline" {
			// Keep the latest stated deadline when a notice repeats it.
			if !deadline.IsSet() || m.at.After(deadline.Value) {
				deadline = types.TimeField{Value: m.at, Origin: types.OriginRule}
			}
			continue
		}
		dates = append(dates, types.ExamDate{Type: m.kind, Start: m.at})
	}

	confidence = 0.6
	if anyStrong {
		confidence = 0.9
	}
	if deadline.IsSet() {
		deadline.Confidence = confidence
	}
	return deadline, dates, confidence
}
