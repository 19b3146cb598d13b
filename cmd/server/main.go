package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docsite/internal/access"
	"github.com/dgallion1/docsite/internal/api"
	"github.com/dgallion1/docsite/internal/config"
	"github.com/dgallion1/docsite/internal/content"
	"github.com/dgallion1/docsite/internal/content/cms"
	"github.com/dgallion1/docsite/internal/content/memory"
	"github.com/dgallion1/docsite/internal/content/mongo"
	"github.com/dgallion1/docsite/internal/events"
	"github.com/dgallion1/docsite/internal/metrics"
	"github.com/dgallion1/docsite/internal/search"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		log.Error("open content repository failed", "backend", cfg.ContentBackend, "error", err)
		os.Exit(1)
	}

	m := metrics.New(version)
	cache := search.NewCache(func(ctx context.Context) ([]search.Entry, error) {
		return search.BuildIndex(ctx, repo, cfg.MaxDocsPerCategory, log)
	}, cfg.SearchCacheTTL, log, search.WithMetrics(m))

	deps := api.Deps{
		Repo:     repo,
		Search:   cache,
		Verifier: access.NewVerifier(cfg.PayloadSecret),
		Metrics:  m,
	}

	// Change events from other instances. Without NATS each instance only
	// hears its own revalidate hook.
	var sub *events.Subscriber
	if cfg.NATSURL != "" {
		sub = events.NewSubscriber(cfg.NATSURL, cfg.NATSSubject, log, m, cache)
		if err := sub.Start(); err != nil {
			log.Error("connect nats failed", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		deps.Publisher = sub
	}

	srv := api.NewServer(deps, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if sub != nil {
			sub.Close()
		}
		if err := closeRepo.Close(); err != nil {
			log.Warn("close content repository", "error", err)
		}
		cancel()
	}()

	log.Info("starting docsite", "port", cfg.Port, "backend", cfg.ContentBackend, "version", version)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openRepository(ctx context.Context, cfg config.Config, log *slog.Logger) (content.Repository, io.Closer, error) {
	noop := closerFunc(func() error { return nil })

	switch cfg.ContentBackend {
	case config.BackendMemory:
		store, err := memory.Load(cfg.ContentSeedFile)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		store, err := mongo.New(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return store, closerFunc(func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return store.Close(closeCtx)
		}), nil
	case config.BackendCMS:
		client := cms.NewClient(cfg.CMSURL, cfg.CMSAPIKey, log)
		return client, closerFunc(func() error {
			client.Close()
			return nil
		}), nil
	default:
		return nil, nil, fmt.Errorf("unknown content backend %q", cfg.ContentBackend)
	}
}
