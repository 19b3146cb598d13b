// Package search builds the site search index from published documents and
// answers queries against it.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docsite/internal/content"
	"github.com/dgallion1/docsite/internal/docpath"
	"github.com/dgallion1/docsite/internal/llmtext"
	"github.com/dgallion1/docsite/internal/richtext"
)

// Entry is one indexed page.
type Entry struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	URL            string         `json:"url"`
	StructuredData StructuredData `json:"structuredData"`
}

type StructuredData struct {
	Headings []Heading `json:"headings"`
	Contents []Content `json:"contents"`
}

type Heading struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Content is a block of searchable text under a heading.
type Content struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// NewEntry builds the entry for a document at url. The whole body goes into a
// single content block headed by the title.
func NewEntry(d content.Document, url string) Entry {
	return Entry{
		ID:          url,
		Title:       d.Title,
		Description: d.Description,
		URL:         url,
		StructuredData: StructuredData{
			Headings: []Heading{},
			Contents: []Content{{
				Heading: d.Title,
				Content: richtext.PlainText(d.Content),
			}},
		},
	}
}

// BuildIndex indexes every document of every category. Documents whose path
// cannot be resolved, or whose path is taken by an earlier document, are
// skipped since no URL reaches them.
func BuildIndex(ctx context.Context, repo content.Repository, limit int, log *slog.Logger) ([]Entry, error) {
	cats, err := repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	var out []Entry
	for _, cat := range cats {
		docs, err := repo.DocsInCategory(ctx, cat.ID, limit)
		if err != nil {
			return nil, fmt.Errorf("docs in category %s: %w", cat.Slug, err)
		}
		if limit > 0 && len(docs) >= limit {
			log.Warn("category hit document limit, index may be incomplete",
				"category", cat.Slug, "limit", limit)
		}

		for _, e := range docpath.NewIndex(docs).Entries() {
			switch {
			case e.Err != nil:
				log.Warn("skipping document with unresolvable path",
					"category", cat.Slug, "doc_id", e.Doc.ID, "error", e.Err)
				continue
			case e.Shadow:
				log.Warn("skipping document shadowed by an earlier path",
					"category", cat.Slug, "doc_id", e.Doc.ID, "path", e.Path)
				continue
			}
			out = append(out, NewEntry(e.Doc, llmtext.URL(cat.Slug, e.Path)))
		}
	}
	return out, nil
}
