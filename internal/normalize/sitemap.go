// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"encoding/xml"
	"time"

	"github.com/noticewala/notice-engine/pkg/types"
)

// SitemapEntry is one <url> element of a sitemap index page.
type SitemapEntry struct {
	Loc     string
	LastMod time.Time
}

// SitemapURLs parses a sitemap document into its page entries. The fetcher
// expands each entry into a sub-fetch; entries with a LastMod older than the
// source's last crawl can be skipped by the caller.
func SitemapURLs(doc types.RawDocument) ([]SitemapEntry, error) {
	var parsed struct {
		URLs []struct {
			Loc     string `xml:"loc"`
			LastMod string `xml:"lastmod"`
		} `xml:"url"`
	}
	if err := xml.Unmarshal(doc.Content, &parsed); err != nil {
		return nil, &Error{
			SourceID: doc.SourceID, URL: doc.URL, Format: types.FormatSitemap, Err: err,
		}
	}

	entries := make([]SitemapEntry, 0, len(parsed.URLs))
	for _, u := range parsed.URLs {
		if u.Loc == "" {
			continue
		}
		e := SitemapEntry{Loc: u.Loc}
		for _, layout := range [...]string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, u.LastMod); err == nil {
				e.LastMod = t.UTC()
				break
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
