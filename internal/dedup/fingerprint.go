// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup decides whether an announcement draft becomes a new canonical
// record, backfills an existing one, or is discarded. Exact duplicates are
// caught by a stable content fingerprint; near-duplicates by token similarity
// over a recent window.
package dedup

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// NormalizeTitle lowercases a title, strips punctuation, and collapses
// whitespace so cosmetic differences ("U.P.S.C." vs "UPSC") do not defeat
// the exact tier.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Fingerprint derives the exact-duplicate key for an announcement: the first
// 12 hex characters of SHA-256 over the normalized title, the source name,
// and the ISO week of the publish date. Week rounding tolerates the small
// publish-date drift between mirrors of the same notice; an unset date hashes
// to a fixed marker.
func Fingerprint(title, sourceName string, publish time.Time) string {
	week := "undated"
	if !publish.IsZero() {
		y, w := publish.UTC().ISOWeek()
		week = fmt.Sprintf("%04d-W%02d", y, w)
	}

	h := sha256.New()
	h.Write([]byte(NormalizeTitle(title)))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(sourceName))))
	h.Write([]byte{'\n'})
	h.Write([]byte(week))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}
