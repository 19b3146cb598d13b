package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docsite/internal/access"
	"github.com/dgallion1/docsite/internal/config"
	"github.com/dgallion1/docsite/internal/content"
	"github.com/dgallion1/docsite/internal/events"
	"github.com/dgallion1/docsite/internal/metrics"
	"github.com/dgallion1/docsite/internal/search"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
)

// Publisher fans a change event out to other instances.
type Publisher interface {
	Publish(ev events.Event) error
}

// Reloader is implemented by repositories that can re-read their source.
type Reloader interface {
	Reload() error
}

// Deps are the collaborators the server is built from. Publisher may be nil.
type Deps struct {
	Repo      content.Repository
	Search    *search.Cache
	Verifier  *access.Verifier
	Metrics   *metrics.Metrics
	Publisher Publisher
}

// Server is the HTTP server for the docs site.
type Server struct {
	router    chi.Router
	repo      content.Repository
	search    *search.Cache
	verifier  *access.Verifier
	metrics   *metrics.Metrics
	publisher Publisher
	limiter   *ipLimiter
	log       *slog.Logger
	cfg       config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		repo:      deps.Repo,
		search:    deps.Search,
		verifier:  deps.Verifier,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
		limiter:   newIPLimiter(cfg.SearchRateLimit, cfg.SearchRateBurst),
		log:       log,
		cfg:       cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(Metrics(s.metrics))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	// Public content.
	r.Group(func(r chi.Router) {
		r.Use(compress)

		r.Get("/llms.mdx/{category}", s.handleExport)
		r.Get("/llms.mdx/{category}/*", s.handleExport)
		r.Get("/docs/{category}", s.handleDocPage)
		r.Get("/docs/{category}/*", s.handleDocPage)

		r.Get("/api/categories", s.handleListCategories)
		r.Get("/api/categories/{category}/tree", s.handleCategoryTree)
		r.Get("/api/search/index", s.handleSearchIndex)

		r.With(RateLimit(s.limiter)).Get("/api/search", s.handleSearch)
	})

	// CMS change hook.
	r.With(AuthMiddleware(s.cfg.RevalidateAPIKey, s.log)).Post("/api/revalidate", s.handleRevalidate)

	// Admin endpoints authenticated with the CMS session.
	r.Group(func(r chi.Router) {
		r.Use(access.Middleware(s.verifier, access.Docs.Create, s.log))

		r.Post("/api/admin/import", s.handleImport)
	})

	s.router = r
}

func compress(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
