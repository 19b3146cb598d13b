package search

import (
	"strings"

	"golang.org/x/text/cases"
)

// Result types.
const (
	TypePage = "page"
	TypeText = "text"
)

// Result is one search hit.
type Result struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

const snippetRadius = 60

// Search returns the entries containing every term of query, compared
// case-insensitively, as page hits in index order. When the terms only match
// in the body, a text hit with a snippet around the first term follows the
// page hit. An empty query matches nothing.
func Search(entries []Entry, query string, limit int) []Result {
	fold := cases.Fold()
	terms := strings.Fields(fold.String(query))
	out := []Result{}
	if len(terms) == 0 {
		return out
	}

	for _, e := range entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		head := fold.String(e.Title + " " + e.Description)
		var body strings.Builder
		for _, c := range e.StructuredData.Contents {
			body.WriteString(c.Content)
			body.WriteByte(' ')
		}
		bodyText := strings.TrimSpace(body.String())
		foldedBody := fold.String(bodyText)

		inHead, all := true, true
		for _, t := range terms {
			h := strings.Contains(head, t)
			if !h && !strings.Contains(foldedBody, t) {
				all = false
				break
			}
			inHead = inHead && h
		}
		if !all {
			continue
		}

		out = append(out, Result{ID: e.ID, Type: TypePage, Content: e.Title, URL: e.URL})
		if !inHead && (limit <= 0 || len(out) < limit) {
			if s := snippet(bodyText, foldedBody, terms[0]); s != "" {
				out = append(out, Result{ID: e.ID + "-text", Type: TypeText, Content: s, URL: e.URL})
			}
		}
	}
	return out
}

// snippet cuts text around the first occurrence of term. Case folding can
// change byte lengths, so the window falls back to the text start when the
// folded offset does not line up.
func snippet(text, folded, term string) string {
	i := strings.Index(folded, term)
	if i < 0 {
		return ""
	}
	if len(folded) != len(text) {
		i = 0
	}
	start := max(i-snippetRadius, 0)
	end := min(i+len(term)+snippetRadius, len(text))
	for start > 0 && !isRuneStart(text[start]) {
		start--
	}
	for end < len(text) && !isRuneStart(text[end]) {
		end++
	}
	s := strings.TrimSpace(text[start:end])
	if start > 0 {
		s = "…" + s
	}
	if end < len(text) {
		s += "…"
	}
	return s
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
