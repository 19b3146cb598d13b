// Package memory serves content from a YAML seed file held in memory.
package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dgallion1/docsite/internal/content"
	"github.com/dgallion1/docsite/internal/richtext"
	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk layout. Document content is the editor's JSON tree
// written as YAML.
type seedFile struct {
	Categories []content.Category `yaml:"categories"`
	Docs       []seedDoc          `yaml:"docs"`
}

type seedDoc struct {
	ID          string    `yaml:"id"`
	Slug        string    `yaml:"slug"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Category    string    `yaml:"category"`
	Parent      string    `yaml:"parent"`
	UpdatedAt   time.Time `yaml:"updatedAt"`
	Content     any       `yaml:"content"`
}

// Store is a content.Repository over an in-memory snapshot.
type Store struct {
	mu         sync.RWMutex
	path       string
	categories []content.Category
	docs       []content.Document
}

// New builds a store from records. Documents are kept in id order.
func New(categories []content.Category, docs []content.Document) *Store {
	s := &Store{}
	s.set(categories, docs)
	return s
}

// Load reads a seed file.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// Parse reads seed YAML from r.
func Parse(r io.Reader) (*Store, error) {
	cats, docs, err := decode(r)
	if err != nil {
		return nil, err
	}
	return New(cats, docs), nil
}

// Reload re-reads the seed file the store was loaded from. Stores built
// with New or Parse have nothing to reload.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	cats, docs, err := decode(f)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	s.set(cats, docs)
	return nil
}

func decode(r io.Reader) ([]content.Category, []content.Document, error) {
	var seed seedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("decode seed: %w", err)
	}

	slugs := make(map[string]bool, len(seed.Categories))
	for _, c := range seed.Categories {
		if c.ID == "" || c.Slug == "" {
			return nil, nil, fmt.Errorf("category %q: id and slug are required", c.Title)
		}
		if slugs[c.Slug] {
			return nil, nil, fmt.Errorf("duplicate category slug %q", c.Slug)
		}
		slugs[c.Slug] = true
	}

	docs := make([]content.Document, 0, len(seed.Docs))
	for _, d := range seed.Docs {
		if d.ID == "" || d.Slug == "" {
			return nil, nil, fmt.Errorf("doc %q: id and slug are required", d.Title)
		}
		docs = append(docs, content.Document{
			ID:          d.ID,
			Slug:        d.Slug,
			Title:       d.Title,
			Description: d.Description,
			CategoryID:  d.Category,
			ParentID:    d.Parent,
			UpdatedAt:   d.UpdatedAt,
			Content:     richtext.FromValue(d.Content),
		})
	}
	return seed.Categories, docs, nil
}

func (s *Store) set(categories []content.Category, docs []content.Document) {
	cats := append([]content.Category(nil), categories...)
	ds := append([]content.Document(nil), docs...)
	content.SortDocuments(ds)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = cats
	s.docs = ds
}

func (s *Store) ListCategories(ctx context.Context) ([]content.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]content.Category(nil), s.categories...), nil
}

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (content.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			return c, nil
		}
	}
	return content.Category{}, content.ErrNotFound
}

func (s *Store) DocsInCategory(ctx context.Context, categoryID string, limit int) ([]content.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []content.Document
	for _, d := range s.docs {
		if d.CategoryID != categoryID {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, d)
	}
	return out, nil
}
