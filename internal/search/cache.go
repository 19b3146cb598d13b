package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docsite/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// BuildFunc produces a fresh index.
type BuildFunc func(ctx context.Context) ([]Entry, error)

const buildKey = "index"

// Cache holds the last built index for a TTL. Concurrent misses share one
// build. A failed rebuild keeps serving the previous index when there is one.
type Cache struct {
	build   BuildFunc
	ttl     time.Duration
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries []Entry
	builtAt time.Time
	gen     uint64
}

type Option func(*Cache)

// WithMetrics records builds and invalidations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithBuildTimeout bounds a single rebuild. Default 30s.
func WithBuildTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

func NewCache(build BuildFunc, ttl time.Duration, log *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		build:   build,
		ttl:     ttl,
		timeout: 30 * time.Second,
		log:     log,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Entries returns the cached index, rebuilding it when stale. ctx only bounds
// the wait; the shared build runs to completion for the other callers.
func (c *Cache) Entries(ctx context.Context) ([]Entry, error) {
	c.mu.RLock()
	entries, fresh := c.entries, c.fresh()
	c.mu.RUnlock()
	if fresh {
		return entries, nil
	}

	ch := c.group.DoChan(buildKey, func() (any, error) {
		return c.rebuild(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Entry), nil
	}
}

func (c *Cache) fresh() bool {
	return c.entries != nil && c.now().Sub(c.builtAt) < c.ttl
}

func (c *Cache) rebuild(ctx context.Context) ([]Entry, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	entries, err := c.build(ctx)
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.observe(metrics.ResultError, elapsed, 0)
		if c.entries != nil {
			c.log.Warn("search index rebuild failed, serving previous index",
				"error", err, "entries", len(c.entries))
			return c.entries, nil
		}
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	c.observe(metrics.ResultOK, elapsed, len(entries))
	c.log.Info("search index built", "entries", len(entries), "duration_ms", elapsed.Milliseconds())

	// An invalidation during the build means the content may have changed
	// under it; hand the result to the callers waiting on it but don't keep it.
	if c.gen == gen {
		c.entries = entries
		c.builtAt = c.now()
	}
	return entries, nil
}

func (c *Cache) observe(result string, elapsed time.Duration, n int) {
	if c.metrics == nil {
		return
	}
	c.metrics.SearchIndexBuildsTotal.WithLabelValues(result).Inc()
	c.metrics.SearchIndexBuildSeconds.Observe(elapsed.Seconds())
	if result == metrics.ResultOK {
		c.metrics.SearchIndexEntries.Set(float64(n))
	}
}

// Invalidate drops the cached index; the next call to Entries rebuilds it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = nil
	c.gen++
	c.mu.Unlock()
	c.group.Forget(buildKey)

	if c.metrics != nil {
		c.metrics.SearchCacheInvalidations.Inc()
	}
}
