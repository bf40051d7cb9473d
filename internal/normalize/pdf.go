// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/noticewala/notice-engine/pkg/types"
)

// PDF extracts the text layer of a PDF notice. Image-only PDFs (scanned
// notices with no text layer) normalize to an empty body marked
// LowTextConfidence instead of failing; the extractor degrades gracefully
// from there.
func PDF(doc types.RawDocument) (nt types.NormalizedText, err error) {
	// The pdf library panics on some malformed inputs; a broken upstream
	// document must never take down a batch run.
	defer func() {
		if r := recover(); r != nil {
			nt = types.NormalizedText{}
			err = &Error{
				SourceID: doc.SourceID, URL: doc.URL, Format: types.FormatPDF,
				Err: fmt.Errorf("pdf parser panic: %v", r),
			}
		}
	}()

	nt = types.NormalizedText{
		SourceID:  doc.SourceID,
		SourceURL: doc.URL,
		RawHash:   doc.Hash,
	}

	reader, err := pdf.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return types.NormalizedText{}, &Error{
			SourceID: doc.SourceID, URL: doc.URL, Format: types.FormatPDF, Err: err,
		}
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		nt.LowTextConfidence = true
		return nt, nil
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		nt.LowTextConfidence = true
		return nt, nil
	}

	text := collapseWhitespace(string(raw))
	if text == "" {
		nt.LowTextConfidence = true
		return nt, nil
	}

	nt.PlainText = text
	nt.Language = detectLanguage(text)
	nt.TitleCandidate = firstLine(text)
	nt.DateSpans = dateSpans(text)
	return nt, nil
}

// firstLine returns the first line long enough to plausibly be a title.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if len(line) >= 8 {
			return line
		}
	}
	return ""
}
