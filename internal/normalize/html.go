// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/noticewala/notice-engine/pkg/types"
)

// HTML strips markup from an HTML document and collects the title candidate,
// date spans, and absolute links.
func HTML(doc types.RawDocument) (types.NormalizedText, error) {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Content))
	if err != nil {
		return types.NormalizedText{}, &Error{
			SourceID: doc.SourceID, URL: doc.URL, Format: types.FormatHTML, Err: err,
		}
	}

	gq.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	title := firstHeading(gq)
	text := collapseWhitespace(gq.Find("body").Text())
	if text == "" {
		// Fragments without a body element still normalize.
		text = collapseWhitespace(gq.Text())
	}

	return types.NormalizedText{
		SourceID:       doc.SourceID,
		SourceURL:      doc.URL,
		RawHash:        doc.Hash,
		PlainText:      text,
		Language:       detectLanguage(text),
		TitleCandidate: title,
		DateSpans:      dateSpans(text),
		Links:          absoluteLinks(gq, doc.URL),
	}, nil
}

// firstHeading returns the first h1..h3 with text, falling back to <title>.
func firstHeading(gq *goquery.Document) string {
	var title string
	gq.Find("h1, h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			title = strings.Join(strings.Fields(t), " ")
			return false
		}
		return true
	})
	if title == "" {
		title = strings.TrimSpace(gq.Find("title").First().Text())
	}
	return title
}

// absoluteLinks resolves every anchor href against the document URL and
// returns the unique http(s) results in document order.
func absoluteLinks(gq *goquery.Document, docURL string) []string {
	base, err := url.Parse(docURL)
	if err != nil {
		base = nil
	}

	seen := make(map[string]bool)
	var links []string
	gq.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		abs := ref.String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	return links
}
