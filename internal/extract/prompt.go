// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"
)

// extractionPromptTmpl is the prompt sent to the AI API for one notice. It
// instructs the model to return the announcement fields as a single JSON
// object so the response parses directly into AIResponse.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are an exam notice extraction system. Analyze the following announcement text from an official exam or admission source and extract structured fields.

Return a JSON object with these fields:
- title: the official notice title (preserve exact wording, do not paraphrase)
- summary: a 1-2 sentence plain-language summary
- publish_date: the notice publication date as YYYY-MM-DD, or "" if not stated
- exam_dates: an array of {"type": one of "exam", "application_start", "result", "other", "start": "YYYY-MM-DD", "end": "YYYY-MM-DD" or omitted, "note": optional free text}
- application_deadline: the last date to apply as YYYY-MM-DD, or "" if not stated
- eligibility: the eligibility criteria as stated, or ""
- location: {"country": ..., "state": ..., "city": ...} with "" for unknown parts
- categories: lowercase labels from: government, entrance, university, scholarship, certification
- tags: lowercase hyphenated topic labels drawn from the notice's vocabulary
- confidence: an object mapping each of title, summary, publish_date, exam_dates, application_deadline, eligibility, location to a float between 0.0 and 1.0

Do not include any text outside the JSON object. Use "" or empty arrays for fields the notice does not state; never invent dates.

Notice text:
{{.Document}}
`))

// renderPrompt executes the extraction prompt template for one document.
func renderPrompt(document string) (string, error) {
	var buf bytes.Buffer
	if err := extractionPromptTmpl.Execute(&buf, struct{ Document string }{Document: document}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
