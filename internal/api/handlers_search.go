package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dgallion1/docsite/internal/events"
	"github.com/dgallion1/docsite/internal/search"
	"github.com/gorilla/schema"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type searchQuery struct {
	Query string `schema:"query"`
	Limit int    `schema:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q searchQuery
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&q, r.URL.Query()); err != nil {
		jsonError(w, "invalid query parameters", http.StatusBadRequest)
		return
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultSearchLimit
	case q.Limit > maxSearchLimit:
		q.Limit = maxSearchLimit
	}

	entries, err := s.search.Entries(r.Context())
	if err != nil {
		s.log.Error("load search index failed", "error", err)
		jsonError(w, "search index unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, search.Search(entries, q.Query, q.Limit))
}

func (s *Server) handleSearchIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := s.search.Entries(r.Context())
	if err != nil {
		s.log.Error("load search index failed", "error", err)
		jsonError(w, "search index unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleRevalidate is called by the CMS after content changes. It reloads
// the repository when it supports that, drops the search index and tells
// other instances to do the same.
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	var ev events.Event
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&ev); err != nil {
			jsonError(w, "invalid event body", http.StatusBadRequest)
			return
		}
	}

	if rl, ok := s.repo.(Reloader); ok {
		if err := rl.Reload(); err != nil {
			s.log.Error("reload content failed", "error", err)
			jsonError(w, "reload failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}
	s.search.Invalidate()

	published := false
	if s.publisher != nil {
		if err := s.publisher.Publish(ev); err != nil {
			s.log.Warn("publish change event failed", "error", err)
		} else {
			published = true
		}
	}

	s.log.Info("revalidated", "collection", ev.Collection, "doc_id", ev.ID, "published", published)
	writeJSON(w, http.StatusOK, map[string]any{
		"revalidated": true,
		"published":   published,
		"now":         time.Now().UnixMilli(),
	})
}
