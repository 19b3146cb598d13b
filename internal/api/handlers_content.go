package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/docsite/internal/content"
	"github.com/dgallion1/docsite/internal/docpath"
	"github.com/dgallion1/docsite/internal/llmtext"
	"github.com/dgallion1/docsite/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/zeebo/blake3"
)

// resolved is a document found by category slug and path.
type resolved struct {
	category content.Category
	index    *docpath.Index
	doc      content.Document
	path     string
}

var errNoMatch = errors.New("no document matches")

// resolve finds the document at docPath in the category. Unknown categories
// and paths both yield errNoMatch.
func (s *Server) resolve(ctx context.Context, categorySlug, docPath string) (*resolved, error) {
	cat, err := s.repo.CategoryBySlug(ctx, categorySlug)
	if errors.Is(err, content.ErrNotFound) {
		return nil, errNoMatch
	}
	if err != nil {
		return nil, fmt.Errorf("find category %s: %w", categorySlug, err)
	}

	docs, err := s.repo.DocsInCategory(ctx, cat.ID, s.cfg.MaxDocsPerCategory)
	if err != nil {
		return nil, fmt.Errorf("docs in category %s: %w", categorySlug, err)
	}

	ix := docpath.NewIndex(docs)
	doc, err := ix.Lookup(docPath)
	if errors.Is(err, docpath.ErrNotFound) {
		return nil, errNoMatch
	}
	if err != nil {
		return nil, err
	}
	return &resolved{category: cat, index: ix, doc: doc, path: docPath}, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	categorySlug := chi.URLParam(r, "category")
	docPath := chi.URLParam(r, "*")

	res, err := s.resolve(r.Context(), categorySlug, docPath)
	if errors.Is(err, errNoMatch) {
		s.metrics.ExportsTotal.WithLabelValues(metrics.ResultNotFound).Inc()
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.metrics.ExportsTotal.WithLabelValues(metrics.ResultError).Inc()
		s.log.Error("export failed", "category", categorySlug, "path", docPath, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body := llmtext.Render(res.doc.Title, llmtext.URL(categorySlug, docPath), res.doc.Content)
	etag := contentETag(body)
	s.metrics.ExportsTotal.WithLabelValues(metrics.ResultOK).Inc()

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")
	if !res.doc.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", res.doc.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(body))
}

// contentETag is a strong validator over the rendered body.
func contentETag(body string) string {
	sum := blake3.Sum256([]byte(body))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatches implements the weak comparison If-None-Match uses.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.repo.ListCategories(r.Context())
	if err != nil {
		s.log.Error("list categories failed", "error", err)
		jsonError(w, "failed to list categories", http.StatusInternalServerError)
		return
	}
	if cats == nil {
		cats = []content.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

type treeDoc struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	ParentID string `json:"parent,omitempty"`
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
	Shadowed bool   `json:"shadowed,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleCategoryTree lists every document of a category with its computed
// path, flagging documents no URL can reach.
func (s *Server) handleCategoryTree(w http.ResponseWriter, r *http.Request) {
	categorySlug := chi.URLParam(r, "category")
	cat, err := s.repo.CategoryBySlug(r.Context(), categorySlug)
	if errors.Is(err, content.ErrNotFound) {
		jsonError(w, "category not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("find category failed", "category", categorySlug, "error", err)
		jsonError(w, "failed to load category", http.StatusInternalServerError)
		return
	}
	docs, err := s.repo.DocsInCategory(r.Context(), cat.ID, s.cfg.MaxDocsPerCategory)
	if err != nil {
		s.log.Error("list docs failed", "category", categorySlug, "error", err)
		jsonError(w, "failed to list documents", http.StatusInternalServerError)
		return
	}

	ix := docpath.NewIndex(docs)
	out := make([]treeDoc, 0, ix.Len())
	for _, e := range ix.Entries() {
		td := treeDoc{
			ID:       e.Doc.ID,
			Slug:     e.Doc.Slug,
			Title:    e.Doc.Title,
			ParentID: e.Doc.ParentID,
			Path:     e.Path,
			Shadowed: e.Shadow,
		}
		switch {
		case e.Err != nil:
			td.Error = e.Err.Error()
		case !e.Shadow:
			td.URL = llmtext.URL(cat.Slug, e.Path)
		}
		out = append(out, td)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"category":   cat,
		"docs":       out,
		"duplicates": ix.Duplicates(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
