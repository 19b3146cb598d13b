package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Content backends.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendCMS    = "cms"
)

type Config struct {
	Port     string
	SiteURL  string
	LogLevel slog.Level

	// Content repository
	ContentBackend  string
	ContentSeedFile string
	MongoURI        string
	MongoDatabase   string
	CMSURL          string
	CMSAPIKey       string

	// Auth
	PayloadSecret    string
	RevalidateAPIKey string

	// Change events
	NATSURL     string
	NATSSubject string

	// Search
	SearchCacheTTL  time.Duration
	SearchRateLimit float64
	SearchRateBurst int

	// Repository page size
	MaxDocsPerCategory int

	// Import
	MaxUploadBytes       int64
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port:     envOr("PORT", "3000"),
		SiteURL:  strings.TrimRight(os.Getenv("SITE_URL"), "/"),
		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),

		ContentBackend:  strings.ToLower(envOr("CONTENT_BACKEND", BackendMemory)),
		ContentSeedFile: envOr("CONTENT_SEED_FILE", "content/seed.yaml"),
		MongoURI:        envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   envOr("MONGO_DATABASE", "docsite"),
		CMSURL:          strings.TrimRight(envOr("CMS_URL", "http://localhost:3001"), "/"),
		CMSAPIKey:       os.Getenv("CMS_API_KEY"),

		PayloadSecret:    os.Getenv("PAYLOAD_SECRET"),
		RevalidateAPIKey: os.Getenv("REVALIDATE_API_KEY"),

		NATSURL:     os.Getenv("NATS_URL"),
		NATSSubject: envOr("NATS_SUBJECT", "docs.changed"),

		SearchCacheTTL:  envDuration("SEARCH_CACHE_TTL", 5*time.Minute),
		SearchRateLimit: envFloat("SEARCH_RATE_LIMIT", 20),
		SearchRateBurst: envInt("SEARCH_RATE_BURST", 40),

		MaxDocsPerCategory: envInt("MAX_DOCS_PER_CATEGORY", 1000),

		MaxUploadBytes:       envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB
		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.SearchCacheTTL <= 0 {
		cfg.SearchCacheTTL = 5 * time.Minute
	}
	if cfg.SearchRateLimit <= 0 {
		cfg.SearchRateLimit = 20
	}
	if cfg.SearchRateBurst <= 0 {
		cfg.SearchRateBurst = 40
	}
	if cfg.MaxDocsPerCategory <= 0 {
		cfg.MaxDocsPerCategory = 1000
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.ContentBackend {
	case BackendMemory:
		if c.ContentSeedFile == "" {
			return fmt.Errorf("CONTENT_SEED_FILE is required for the memory backend")
		}
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DATABASE are required for the mongo backend")
		}
	case BackendCMS:
		if _, err := url.ParseRequestURI(c.CMSURL); err != nil {
			return fmt.Errorf("CMS_URL is invalid: %w", err)
		}
	default:
		return fmt.Errorf("CONTENT_BACKEND %q is not one of memory, mongo, cms", c.ContentBackend)
	}
	if c.SiteURL != "" {
		if _, err := url.ParseRequestURI(c.SiteURL); err != nil {
			return fmt.Errorf("SITE_URL is invalid: %w", err)
		}
	}
	if c.RevalidateAPIKey == "" {
		return fmt.Errorf("REVALIDATE_API_KEY is required")
	}
	if c.PayloadSecret == "" {
		return fmt.Errorf("PAYLOAD_SECRET is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}
