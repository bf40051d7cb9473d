// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"strings"

	"github.com/noticewala/notice-engine/pkg/types"
)

// categoryCues maps keyword cues to announcement categories. Cues are matched
// against the lowercased title and body.
var categoryCues = map[string][]string{
	"government": {
		"upsc", "ssc", "civil services", "recruitment", "vacancy", "vacancies",
		"public service commission", "railway", "defence", "police",
	},
	"entrance": {
		"jee", "neet", "gate", "entrance exam", "entrance test", "cuet", "clat",
	},
	"university": {
		"university", "college", "semester", "admission", "degree", "convocation",
	},
	"scholarship": {
		"scholarship", "fellowship", "stipend", "financial assistance",
	},
	"certification": {
		"certification", "certificate course", "skill test",
	},
}

// indianStates is the lookup for coarse location tagging.
var indianStates = []string{
	"andhra pradesh", "arunachal pradesh", "assam", "bihar", "chhattisgarh",
	"goa", "gujarat", "haryana", "himachal pradesh", "jharkhand", "karnataka",
	"kerala", "madhya pradesh", "maharashtra", "manipur", "meghalaya",
	"mizoram", "nagaland", "odisha", "punjab", "rajasthan", "sikkim",
	"tamil nadu", "telangana", "tripura", "uttar pradesh", "uttarakhand",
	"west bengal", "delhi", "jammu and kashmir", "ladakh", "puducherry",
}

var eligibilityCues = []string{
	"eligibility", "eligible candidates", "qualification", "age limit",
	"candidates must", "applicants must",
}

// Rules runs the deterministic extraction pass over one normalized document.
// The output depends only on the inputs, so the pass is safe to re-run.
func Rules(nt types.NormalizedText, src types.Source) types.AnnouncementDraft {
	draft := types.AnnouncementDraft{
		BodyText:   nt.PlainText,
		SourceID:   src.ID,
		SourceName: src.Name,
		SourceURL:  nt.SourceURL,
		Language:   nt.Language,
		Method:     types.MethodRule,
	}

	draft.Title = ruleTitle(nt)
	draft.Summary = ruleSummary(nt.PlainText)

	if !nt.Published.IsZero() {
		draft.PublishDate = types.TimeField{
			Value: nt.Published, Confidence: 0.95, Origin: types.OriginRule,
		}
	}

	searchText := nt.TitleCandidate + "\n" + nt.PlainText
	deadline, examDates, datesConf := milestonesToFields(classifyDates(searchText, nt.DateSpans))
	draft.ApplicationDeadline = deadline
	draft.ExamDates = examDates
	draft.DatesConfidence = datesConf

	draft.Eligibility = ruleEligibility(nt.PlainText)
	draft.Categories, draft.Tags = ruleCategories(searchText)
	draft.Location, draft.LocationConfidence = ruleLocation(searchText)

	return draft
}

func ruleTitle(nt types.NormalizedText) types.TextField {
	if t := strings.TrimSpace(nt.TitleCandidate); t != "" {
		return types.TextField{Value: t, Confidence: 0.85, Origin: types.OriginRule}
	}
	// Fall back to the first substantial line of the body.
	for _, line := range strings.Split(nt.PlainText, "\n") {
		line = strings.TrimSpace(line)
		if len(line) >= 12 {
			return types.TextField{Value: truncate(line, 160), Confidence: 0.4, Origin: types.OriginRule}
		}
	}
	return types.TextField{}
}

// ruleSummary takes the leading sentences of the body, up to ~280 characters.
func ruleSummary(text string) types.TextField {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return types.TextField{}
	}

	var summary string
	rest := text
	for len(summary) < 200 && rest != "" {
		sentence, remainder := nextSentence(rest)
		if sentence == "" {
			break
		}
		if summary != "" {
			summary += " "
		}
		summary += sentence
		rest = remainder
	}
	if summary == "" {
		summary = text
	}
	return types.TextField{Value: truncate(summary, 280), Confidence: 0.5, Origin: types.OriginRule}
}

func nextSentence(text string) (sentence, rest string) {
	for i := 0; i < len(text); i++ {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			// Avoid splitting on decimals and common abbreviations.
			if i+1 < len(text) && text[i+1] != ' ' {
				continue
			}
			return strings.TrimSpace(text[:i+1]), strings.TrimSpace(text[i+1:])
		}
	}
	return strings.TrimSpace(text), ""
}

// ruleEligibility returns the first sentence mentioning an eligibility cue.
func ruleEligibility(text string) types.TextField {
	rest := strings.Join(strings.Fields(text), " ")
	lower := strings.ToLower(rest)
	for _, cue := range eligibilityCues {
		idx := strings.Index(lower, cue)
		if idx < 0 {
			continue
		}
		// Back up to the start of the containing sentence.
		start := strings.LastIndexByte(lower[:idx], '.') + 1
		sentence, _ := nextSentence(rest[start:])
		if sentence != "" {
			return types.TextField{Value: truncate(sentence, 300), Confidence: 0.6, Origin: types.OriginRule}
		}
	}
	return types.TextField{}
}

// ruleCategories maps cue hits to categories and reuses the matched cues as
// tags. Both lists are ordered and deduplicated for determinism.
func ruleCategories(text string) (categories, tags []string) {
	lower := strings.ToLower(text)
	// Stable iteration: categories in a fixed order, not map order.
	for _, cat := range [...]string{"government", "entrance", "university", "scholarship", "certification"} {
		matched := false
		for _, cue := range categoryCues[cat] {
			if strings.Contains(lower, cue) {
				matched = true
				if !hasString(tags, cue) {
					tags = append(tags, cue)
				}
			}
		}
		if matched {
			categories = append(categories, cat)
		}
	}
	return categories, tags
}

func ruleLocation(text string) (types.Location, float64) {
	lower := strings.ToLower(text)
	for _, state := range indianStates {
		if strings.Contains(lower, state) {
			return types.Location{Country: "India", State: titleCase(state)}, 0.7
		}
	}
	if strings.Contains(lower, "india") {
		return types.Location{Country: "India"}, 0.5
	}
	return types.Location{}, 0
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "and" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndexByte(s[:max], ' ')
	if cut <= 0 {
		cut = max
	}
	return s[:cut]
}

func hasString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
