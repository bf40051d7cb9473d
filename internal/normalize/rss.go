// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"bytes"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/noticewala/notice-engine/pkg/types"
)

// Feed parses an RSS or Atom document into one NormalizedText per item.
// Item descriptions frequently carry embedded HTML, so each body goes
// through the HTML normalizer's text path as well.
func Feed(doc types.RawDocument) ([]types.NormalizedText, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(doc.Content))
	if err != nil {
		return nil, &Error{
			SourceID: doc.SourceID, URL: doc.URL, Format: types.FormatRSS, Err: err,
		}
	}

	out := make([]types.NormalizedText, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		body := item.Content
		if body == "" {
			body = item.Description
		}
		text := collapseWhitespace(stripInlineHTML(body))

		nt := types.NormalizedText{
			SourceID:       doc.SourceID,
			SourceURL:      doc.URL,
			RawHash:        doc.Hash,
			PlainText:      text,
			TitleCandidate: strings.TrimSpace(item.Title),
			DateSpans:      dateSpans(item.Title + "\n" + text),
		}
		nt.Language = detectLanguage(nt.TitleCandidate + " " + text)
		if item.Link != "" {
			nt.SourceURL = item.Link
			nt.Links = []string{item.Link}
		}
		if item.PublishedParsed != nil {
			nt.Published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			nt.Published = item.UpdatedParsed.UTC()
		}
		out = append(out, nt)
	}
	return out, nil
}

// stripInlineHTML removes markup from feed item bodies without a full parse;
// descriptions are small and often malformed fragments.
func stripInlineHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	out := b.String()
	for _, e := range [...][2]string{
		{"&nbsp;", " "}, {"&amp;", "&"}, {"&lt;", "<"}, {"&gt;", ">"},
		{"&quot;", `"`}, {"&#39;", "'"},
	} {
		out = strings.ReplaceAll(out, e[0], e[1])
	}
	return out
}
