// Package content defines the published records read from the CMS and the
// repository contract the site uses to fetch them.
package content

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/dgallion1/docsite/internal/richtext"
)

// ErrNotFound is returned when a category or document does not exist.
var ErrNotFound = errors.New("not found")

// Category groups documents under a unique slug.
type Category struct {
	ID          string `json:"id" yaml:"id"`
	Slug        string `json:"slug" yaml:"slug"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Document is a published page. ParentID is empty for top-level documents.
type Document struct {
	ID          string
	Slug        string
	Title       string
	Description string
	CategoryID  string
	ParentID    string
	Content     *richtext.Root
	UpdatedAt   time.Time
}

// IndexSlug marks a section landing page; it contributes no path segment.
const IndexSlug = "index"

// Repository is the read side of the content store.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	// CategoryBySlug returns ErrNotFound if no category has slug.
	CategoryBySlug(ctx context.Context, slug string) (Category, error)
	// DocsInCategory returns at most limit documents in a stable order.
	DocsInCategory(ctx context.Context, categoryID string, limit int) ([]Document, error)
}

// SortDocuments orders docs by id, numerically when both ids are integers.
func SortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return lessID(docs[i].ID, docs[j].ID)
	})
}

func lessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
