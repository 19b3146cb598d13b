package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsite/internal/access"
	"github.com/dgallion1/docsite/internal/importer"
	"github.com/dgallion1/docsite/internal/metrics"
	"github.com/dgallion1/docsite/internal/richtext"
	"github.com/google/uuid"
)

type importResponse struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Slug       string          `json:"slug"`
	Format     string          `json:"format"`
	Filename   string          `json:"filename"`
	Content    json.RawMessage `json:"content"`
	Markdown   string          `json:"markdown"`
	ImportedBy string          `json:"importedBy,omitempty"`
}

// handleImport converts an uploaded file into editor JSON the admin can
// save as a new document, with a Markdown preview of the export.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !importer.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	imp, err := importer.ForFile(filename, importer.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := imp.Import(bytes.NewReader(data), filename)
	if err != nil {
		s.metrics.ImportsTotal.WithLabelValues(imp.Format(), metrics.ResultError).Inc()
		s.log.Warn("import failed", "filename", filename, "format", imp.Format(), "error", err)
		jsonError(w, "could not read file: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if res.Root.IsEmpty() {
		s.metrics.ImportsTotal.WithLabelValues(imp.Format(), metrics.ResultError).Inc()
		jsonError(w, "no content found in file", http.StatusUnprocessableEntity)
		return
	}

	lexical, err := richtext.Encode(res.Root)
	if err != nil {
		jsonError(w, "failed to encode content", http.StatusInternalServerError)
		return
	}

	title := res.Title
	if t := strings.TrimSpace(r.FormValue("title")); t != "" {
		title = t
	}

	out := importResponse{
		ID:       uuid.NewString(),
		Title:    title,
		Slug:     importer.Slug(title),
		Format:   imp.Format(),
		Filename: filename,
		Content:  lexical,
		Markdown: richtext.Markdown(res.Root),
	}
	if u := access.UserFrom(r.Context()); u != nil {
		out.ImportedBy = u.Email
	}

	s.metrics.ImportsTotal.WithLabelValues(imp.Format(), metrics.ResultOK).Inc()
	s.log.Info("imported document",
		"import_id", out.ID,
		"filename", filename,
		"format", out.Format,
		"blocks", len(res.Root.Children),
		"user", out.ImportedBy,
	)
	writeJSON(w, http.StatusOK, out)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
