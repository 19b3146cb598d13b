package api

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/dgallion1/docsite/internal/llmtext"
	"github.com/dgallion1/docsite/internal/richtext"
	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown renders page bodies. Raw HTML in content is dropped.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} | {{.Category}}</title>
{{if .Description}}<meta name="description" content="{{.Description}}">{{end}}
{{if .Canonical}}<link rel="canonical" href="{{.Canonical}}">{{end}}
<link rel="alternate" type="text/markdown" href="{{.Export}}">
</head>
<body>
<nav>
<a href="/docs/{{.CategorySlug}}">{{.Category}}</a>
<ul>
{{range .Nav}}<li{{if .Current}} aria-current="page"{{end}}><a href="{{.URL}}">{{.Title}}</a></li>
{{end}}</ul>
</nav>
<main>
<h1>{{.Title}}</h1>
{{if .Description}}<p class="description">{{.Description}}</p>{{end}}
{{.Body}}
</main>
</body>
</html>
`))

type navItem struct {
	Title   string
	URL     string
	Current bool
}

type pageData struct {
	Title        string
	Description  string
	Category     string
	CategorySlug string
	Canonical    string
	Export       string
	Nav          []navItem
	Body         template.HTML
}

func (s *Server) handleDocPage(w http.ResponseWriter, r *http.Request) {
	categorySlug := chi.URLParam(r, "category")
	docPath := chi.URLParam(r, "*")

	res, err := s.resolve(r.Context(), categorySlug, docPath)
	if errors.Is(err, errNoMatch) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.Error("render page failed", "category", categorySlug, "path", docPath, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(richtext.Markdown(res.doc.Content)), &body); err != nil {
		s.log.Error("convert markdown failed", "doc_id", res.doc.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	url := llmtext.URL(categorySlug, docPath)
	data := pageData{
		Title:        res.doc.Title,
		Description:  res.doc.Description,
		Category:     res.category.Title,
		CategorySlug: categorySlug,
		Export:       "/llms.mdx" + url[len(llmtext.DocsPrefix):],
		Body:         template.HTML(body.String()),
	}
	if s.cfg.SiteURL != "" {
		data.Canonical = s.cfg.SiteURL + url
	}
	for _, e := range res.index.Entries() {
		if e.Err != nil || e.Shadow {
			continue
		}
		data.Nav = append(data.Nav, navItem{
			Title:   e.Doc.Title,
			URL:     llmtext.URL(categorySlug, e.Path),
			Current: e.Doc.ID == res.doc.ID,
		})
	}

	var page bytes.Buffer
	if err := pageTemplate.Execute(&page, data); err != nil {
		s.log.Error("execute page template failed", "doc_id", res.doc.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page.Bytes())
}
