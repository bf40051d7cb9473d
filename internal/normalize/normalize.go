// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize converts raw fetched documents into plain text plus
// structural hints (title candidate, date spans, links). Normalization is a
// pure derivation: the same raw bytes always produce the same output, so a
// re-run over stored documents is always safe.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/noticewala/notice-engine/pkg/types"
)

// Error is a per-document normalization failure. The pipeline skips the
// document and carries on with the rest of the batch.
type Error struct {
	SourceID string
	URL      string
	Format   types.SourceFormat
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s document from %s (%s): %v", e.Format, e.SourceID, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Document normalizes one raw document according to the source's declared
// format. Feed documents expand into one NormalizedText per item; other
// formats yield exactly one.
func Document(doc types.RawDocument, format types.SourceFormat) ([]types.NormalizedText, error) {
	switch format {
	case types.FormatHTML, types.FormatSitemap:
		// Sitemap sources normalize their expanded pages as HTML; the index
		// itself goes through SitemapURLs, not here.
		nt, err := HTML(doc)
		if err != nil {
			return nil, err
		}
		return []types.NormalizedText{nt}, nil
	case types.FormatRSS:
		return Feed(doc)
	case types.FormatPDF:
		nt, err := PDF(doc)
		if err != nil {
			return nil, err
		}
		return []types.NormalizedText{nt}, nil
	default:
		return nil, &Error{
			SourceID: doc.SourceID, URL: doc.URL, Format: format,
			Err: fmt.Errorf("unsupported source format %q", format),
		}
	}
}

// datePattern matches the date shapes that appear in Indian exam notices:
// "15 March 2026", "March 15, 2026", "15/03/2026", "2026-03-15",
// "15-03-2026", and bare "15.03.2026".
var datePattern = regexp.MustCompile(
	`(?i)\b(?:\d{1,2}(?:st|nd|rd|th)?\s+(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?,?\s+\d{4}` +
		`|(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}` +
		`|\d{4}-\d{2}-\d{2}` +
		`|\d{1,2}[/.-]\d{1,2}[/.-]\d{4})\b`)

// dateSpans extracts date-shaped substrings in document order, deduplicated.
func dateSpans(text string) []string {
	matches := datePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// collapseWhitespace reduces runs of spaces and tabs to single spaces and
// runs of blank lines to single newlines, trimming each line.
func collapseWhitespace(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastBlank := true
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			lastBlank = true
			continue
		}
		if !lastBlank {
			b.WriteByte('\n')
		} else if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		lastBlank = false
	}
	return b.String()
}

// detectLanguage makes a coarse script-based guess. Notices in the corpus
// are overwhelmingly English or Hindi; anything Devanagari-dominant is
// tagged "hi", otherwise Latin text is tagged "en" and unknown scripts
// are left untagged.
func detectLanguage(text string) string {
	var latin, devanagari, letters int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Devanagari, r):
			devanagari++
		case r < 0x250:
			latin++
		}
		if letters >= 2000 {
			break
		}
	}
	if letters == 0 {
		return ""
	}
	if devanagari*2 > letters {
		return "hi"
	}
	if latin*2 > letters {
		return "en"
	}
	return ""
}
