// Package metrics defines the Prometheus collectors exported by the site.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the site collectors on an isolated registry, so tests can
// build as many instances as they need.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	SearchIndexBuildsTotal   *prometheus.CounterVec
	SearchIndexBuildSeconds  prometheus.Histogram
	SearchIndexEntries       prometheus.Gauge
	SearchCacheInvalidations prometheus.Counter
	ExportsTotal             *prometheus.CounterVec
	ContentEventsTotal       *prometheus.CounterVec
	ImportsTotal             *prometheus.CounterVec
	BuildInfo                *prometheus.GaugeVec
}

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"
)

// New registers every collector plus the Go runtime and process collectors.
func New(version string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsite_http_requests_total",
				Help: "HTTP requests by method, route pattern and status code.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docsite_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route pattern.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		SearchIndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsite_search_index_builds_total",
				Help: "Search index rebuilds by result.",
			},
			[]string{"result"},
		),
		SearchIndexBuildSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docsite_search_index_build_seconds",
				Help:    "Time spent rebuilding the search index.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		SearchIndexEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docsite_search_index_entries",
				Help: "Entries in the most recently built search index.",
			},
		),
		SearchCacheInvalidations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docsite_search_cache_invalidations_total",
				Help: "Explicit search cache invalidations.",
			},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsite_exports_total",
				Help: "Plain-text document exports by result.",
			},
			[]string{"result"},
		),
		ContentEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsite_content_events_total",
				Help: "Content change events received by subject.",
			},
			[]string{"subject"},
		),
		ImportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docsite_imports_total",
				Help: "Document imports by format and result.",
			},
			[]string{"format", "result"},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "docsite_info",
				Help: "Build information for the running docsite instance.",
			},
			[]string{"version"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.SearchIndexBuildsTotal,
		m.SearchIndexBuildSeconds,
		m.SearchIndexEntries,
		m.SearchCacheInvalidations,
		m.ExportsTotal,
		m.ContentEventsTotal,
		m.ImportsTotal,
		m.BuildInfo,
	)

	m.BuildInfo.WithLabelValues(version).Set(1)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
