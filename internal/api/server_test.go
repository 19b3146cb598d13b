package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/docsite/internal/access"
	"github.com/dgallion1/docsite/internal/config"
	"github.com/dgallion1/docsite/internal/content"
	"github.com/dgallion1/docsite/internal/content/memory"
	"github.com/dgallion1/docsite/internal/events"
	"github.com/dgallion1/docsite/internal/metrics"
	"github.com/dgallion1/docsite/internal/richtext"
	"github.com/dgallion1/docsite/internal/search"
)

const (
	testAPIKey = "revalidate-key"
	testSecret = "payload-secret"
)

func para(text string) *richtext.Root {
	return &richtext.Root{Children: []richtext.Node{
		&richtext.Paragraph{Children: []richtext.Node{&richtext.Text{Text: text}}},
	}}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *fakePublisher) Publish(ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type testEnv struct {
	srv       *Server
	verifier  *access.Verifier
	publisher *fakePublisher
	builds    *atomic.Int32
}

func newTestEnv(t *testing.T, tweak func(*config.Config)) *testEnv {
	t.Helper()
	cats := []content.Category{{ID: "c1", Slug: "guides", Title: "Guides"}}
	docs := []content.Document{
		{ID: "d1", Slug: "index", Title: "Overview", CategoryID: "c1", Content: para("Welcome to the guides.")},
		{
			ID: "d2", Slug: "setup", Title: "Setup", Description: "Install steps", CategoryID: "c1",
			UpdatedAt: time.Date(2026, 1, 6, 9, 30, 0, 0, time.UTC), Content: para("Install the CLI."),
		},
		{ID: "d3", Slug: "setup", Title: "Setup Again", CategoryID: "c1", Content: para("Shadowed install notes.")},
	}
	repo := memory.New(cats, docs)

	cfg := config.Config{
		SiteURL:            "https://docs.example.com",
		RevalidateAPIKey:   testAPIKey,
		PayloadSecret:      testSecret,
		SearchRateLimit:    1000,
		SearchRateBurst:    1000,
		MaxDocsPerCategory: 100,
		MaxUploadBytes:     1 << 20,
	}
	if tweak != nil {
		tweak(&cfg)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New("test")
	builds := &atomic.Int32{}
	cache := search.NewCache(func(ctx context.Context) ([]search.Entry, error) {
		builds.Add(1)
		return search.BuildIndex(ctx, repo, cfg.MaxDocsPerCategory, log)
	}, time.Hour, log, search.WithMetrics(m))

	v := access.NewVerifier(cfg.PayloadSecret)
	pub := &fakePublisher{}
	srv := NewServer(Deps{
		Repo:      repo,
		Search:    cache,
		Verifier:  v,
		Metrics:   m,
		Publisher: pub,
	}, log, cfg)
	return &testEnv{srv: srv, verifier: v, publisher: pub, builds: builds}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.get("/llms.mdx/guides/setup")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	want := "# Setup\nURL: /docs/guides/setup\n\nInstall the CLI."
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if lm := rec.Header().Get("Last-Modified"); lm != "Tue, 06 Jan 2026 09:30:00 GMT" {
		t.Errorf("last modified = %q", lm)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/llms.mdx/guides/setup", nil)
	req.Header.Set("If-None-Match", "W/"+etag)
	rec = env.do(req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("304 body = %q", rec.Body.String())
	}
}

func TestExport_CategoryLandingPage(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/llms.mdx/guides")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "# Overview\nURL: /docs/guides\n\n") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestExport_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/llms.mdx/guides/missing", "/llms.mdx/nope/setup", "/llms.mdx/guides/index"} {
		if rec := env.get(path); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestDocPage(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/docs/guides/setup")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<title>Setup | Guides</title>",
		"<h1>Setup</h1>",
		"<p>Install the CLI.</p>",
		`<link rel="canonical" href="https://docs.example.com/docs/guides/setup">`,
		`href="/llms.mdx/guides/setup"`,
		`<a href="/docs/guides">Overview</a>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "Setup Again") {
		t.Error("shadowed document listed in nav")
	}

	if rec := env.get("/docs/guides/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("missing page status = %d", rec.Code)
	}
}

func TestListCategories(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/api/categories")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Categories []content.Category `json:"categories"`
	}
	decodeBody(t, rec, &out)
	if len(out.Categories) != 1 || out.Categories[0].Slug != "guides" {
		t.Errorf("categories = %+v", out.Categories)
	}
}

func TestCategoryTree(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/api/categories/guides/tree")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Docs       []treeDoc           `json:"docs"`
		Duplicates map[string][]string `json:"duplicates"`
	}
	decodeBody(t, rec, &out)
	if len(out.Docs) != 3 {
		t.Fatalf("docs = %+v", out.Docs)
	}
	if out.Docs[0].URL != "/docs/guides" || out.Docs[1].URL != "/docs/guides/setup" {
		t.Errorf("urls = %q, %q", out.Docs[0].URL, out.Docs[1].URL)
	}
	if !out.Docs[2].Shadowed || out.Docs[2].URL != "" {
		t.Errorf("d3 = %+v, want shadowed without url", out.Docs[2])
	}
	dup := out.Duplicates["setup"]
	if len(dup) != 2 || dup[0] != "d2" || dup[1] != "d3" {
		t.Errorf("duplicates = %v", out.Duplicates)
	}

	if rec := env.get("/api/categories/nope/tree"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown category status = %d", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/api/search?query=install&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var results []search.Result
	decodeBody(t, rec, &results)
	if len(results) == 0 {
		t.Fatal("no results")
	}
	if results[0].URL != "/docs/guides/setup" || results[0].Type != search.TypePage {
		t.Errorf("first result = %+v", results[0])
	}
	for _, r := range results {
		if strings.Contains(r.Content, "Shadowed") {
			t.Errorf("shadowed document in results: %+v", r)
		}
	}

	rec = env.get("/api/search?limit=abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}

	rec = env.get("/api/search")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty query: %d %q", rec.Code, rec.Body.String())
	}
}

func TestSearch_RateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.SearchRateLimit = 0.001
		c.SearchRateBurst = 2
	})
	for i := 0; i < 2; i++ {
		if rec := env.get("/api/search?query=setup"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := env.get("/api/search?query=setup")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	// Other endpoints are not limited.
	if rec := env.get("/api/search/index"); rec.Code != http.StatusOK {
		t.Errorf("index status = %d", rec.Code)
	}
}

func TestSearchIndex(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.get("/api/search/index")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []search.Entry
	decodeBody(t, rec, &entries)
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want 2 (shadowed skipped)", entries)
	}
	if entries[0].URL != "/docs/guides" || entries[1].URL != "/docs/guides/setup" {
		t.Errorf("urls = %q, %q", entries[0].URL, entries[1].URL)
	}
}

func TestRevalidate(t *testing.T) {
	env := newTestEnv(t, nil)

	env.get("/api/search/index")
	env.get("/api/search/index")
	if n := env.builds.Load(); n != 1 {
		t.Fatalf("builds before revalidate = %d, want 1", n)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/revalidate",
		strings.NewReader(`{"collection":"docs","operation":"update","id":"d2"}`))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	var out map[string]any
	decodeBody(t, rec, &out)
	if out["revalidated"] != true || out["published"] != true {
		t.Errorf("response = %v", out)
	}
	if len(env.publisher.events) != 1 || env.publisher.events[0].ID != "d2" {
		t.Errorf("published = %+v", env.publisher.events)
	}

	env.get("/api/search/index")
	if n := env.builds.Load(); n != 2 {
		t.Errorf("builds after revalidate = %d, want 2", n)
	}
}

func TestRevalidate_EmptyBodyAndPublishFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.publisher.err = errors.New("nats down")

	req := httptest.NewRequest(http.MethodPost, "/api/revalidate", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]any
	decodeBody(t, rec, &out)
	if out["published"] != false {
		t.Errorf("published = %v, want false", out["published"])
	}
}

func TestRevalidate_Auth(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testAPIKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/revalidate", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if rec := env.do(req); rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
	if len(env.publisher.events) != 0 {
		t.Errorf("rejected requests published %d events", len(env.publisher.events))
	}
}

func uploadRequest(t *testing.T, filename, body, title string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(body))
	if title != "" {
		mw.WriteField("title", title)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (e *testEnv) token(t *testing.T, role access.Role) string {
	t.Helper()
	tok, err := e.verifier.Sign(access.User{ID: "u1", Email: "ada@example.com", Collection: "users", Role: role}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestImport(t *testing.T) {
	env := newTestEnv(t, nil)
	req := uploadRequest(t, "guide.md", "# Getting Started\n\nRead this first.\n\n- one\n- two\n", "")
	req.Header.Set("Authorization", "JWT "+env.token(t, access.RoleAdmin))

	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	var out importResponse
	decodeBody(t, rec, &out)
	if out.Title != "Getting Started" || out.Slug != "getting-started" {
		t.Errorf("title/slug = %q/%q", out.Title, out.Slug)
	}
	if out.Format != "markdown" {
		t.Errorf("format = %q", out.Format)
	}
	if out.ImportedBy != "ada@example.com" {
		t.Errorf("importedBy = %q", out.ImportedBy)
	}
	if out.ID == "" {
		t.Error("missing id")
	}
	if !strings.Contains(out.Markdown, "Read this first.") || !strings.Contains(out.Markdown, "- one") {
		t.Errorf("markdown = %q", out.Markdown)
	}

	root, err := richtext.Decode(out.Content)
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if richtext.Markdown(root) != out.Markdown {
		t.Errorf("content and markdown disagree:\n%q\n%q", richtext.Markdown(root), out.Markdown)
	}
}

func TestImport_TitleOverride(t *testing.T) {
	env := newTestEnv(t, nil)
	req := uploadRequest(t, "notes.txt", "Plain notes.", "Release Notes")
	req.Header.Set("Authorization", "Bearer "+env.token(t, access.RoleOwner))

	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	var out importResponse
	decodeBody(t, rec, &out)
	if out.Title != "Release Notes" || out.Slug != "release-notes" {
		t.Errorf("title/slug = %q/%q", out.Title, out.Slug)
	}
}

func TestImport_Rejections(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.MaxUploadBytes = 64 })

	tests := []struct {
		name     string
		filename string
		body     string
		role     access.Role
		noToken  bool
		want     int
	}{
		{name: "no token", filename: "a.md", body: "hi", noToken: true, want: http.StatusUnauthorized},
		{name: "editor cannot create", filename: "a.md", body: "hi", role: access.RoleEditor, want: http.StatusForbidden},
		{name: "unsupported type", filename: "a.exe", body: "hi", role: access.RoleAdmin, want: http.StatusBadRequest},
		{name: "too large", filename: "a.txt", body: strings.Repeat("x", 65), role: access.RoleAdmin, want: http.StatusRequestEntityTooLarge},
		{name: "empty document", filename: "a.txt", body: "\n\n  \n", role: access.RoleAdmin, want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := uploadRequest(t, tt.filename, tt.body, "")
			if !tt.noToken {
				req.Header.Set("Authorization", "JWT "+env.token(t, tt.role))
			}
			if rec := env.do(req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %q)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.get("/health")
	env.get("/llms.mdx/guides/setup")

	rec := env.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`docsite_http_requests_total{method="GET",route="/health",status="200"} 1`,
		`docsite_exports_total{result="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestEtagMatches(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{`"abc"`, true},
		{`W/"abc"`, true},
		{`"x", "abc"`, true},
		{`*`, true},
		{`"abcd"`, false},
	}
	for _, tt := range tests {
		if got := etagMatches(tt.header, `"abc"`); got != tt.want {
			t.Errorf("etagMatches(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"dir/sub/file.md", "file.md"},
		{"a..b.txt", "a_b.txt"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIPLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newIPLimiter(1, 1)
	l.now = func() time.Time { return now }

	if !l.allow("a") {
		t.Fatal("first request denied")
	}
	if l.allow("a") {
		t.Fatal("second request allowed within the same instant")
	}
	if !l.allow("b") {
		t.Fatal("other client denied")
	}
	now = now.Add(time.Second)
	if !l.allow("a") {
		t.Fatal("request denied after refill")
	}
}

func TestIPLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Unix(1000, 0)
	l := newIPLimiter(1, 1)
	l.now = func() time.Time { return now }

	for i := 0; i < limiterMaxClients; i++ {
		l.allow("10.0.0." + strconv.Itoa(i))
	}
	now = now.Add(limiterIdle + time.Minute)
	l.allow("fresh")
	if len(l.clients) != 1 {
		t.Errorf("clients = %d, want 1 after eviction", len(l.clients))
	}
}
