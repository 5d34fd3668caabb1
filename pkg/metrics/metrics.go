// Package metrics defines the Prometheus collectors used by the indexer and
// searcher services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DocsProcessedTotal   *prometheus.CounterVec
	EntitiesMergedTotal  prometheus.Counter
	ExtractionDuration   *prometheus.HistogramVec
	MergeQueueDepth      prometheus.Gauge
	FlaggedDocsTotal     prometheus.Counter
	BuildsTotal          *prometheus.CounterVec
	SnapshotBytes        prometheus.Gauge
	SnapshotDuration     *prometheus.HistogramVec
	IndexEntities        prometheus.Gauge
	RecognizerRequests   *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	SnapshotReloadsTotal *prometheus.CounterVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() so that repeated construction does
// not panic on duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entity_index_documents_total",
				Help: "Documents processed by the build pipeline, by outcome (merged, failed).",
			},
			[]string{"outcome"},
		),
		EntitiesMergedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "entity_index_mentions_merged_total",
				Help: "Entity mentions folded into the index.",
			},
		),
		ExtractionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entity_extraction_duration_seconds",
				Help:    "Per-document entity extraction latency by backend.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"backend"},
		),
		MergeQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "entity_index_merge_queue_depth",
				Help: "Extraction results waiting for the merge consumer.",
			},
		),
		FlaggedDocsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "entity_index_flagged_documents_total",
				Help: "Documents whose distinct entity count exceeded the warning threshold.",
			},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entity_index_builds_total",
				Help: "Index builds by status (complete, partial, failed).",
			},
			[]string{"status"},
		),
		SnapshotBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "entity_index_snapshot_bytes",
				Help: "Size of the last saved or loaded snapshot blob.",
			},
		),
		SnapshotDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entity_index_snapshot_duration_seconds",
				Help:    "Snapshot save/load latency.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"op"},
		),
		IndexEntities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "entity_index_entities",
				Help: "Distinct entities in the served index.",
			},
		),
		RecognizerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recognizer_requests_total",
				Help: "Requests to the recognition backend by backend and status.",
			},
			[]string{"backend", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entity_queries_total",
				Help: "Entity queries by kind (search, top, related) and result type (hit, empty, fallback, error).",
			},
			[]string{"kind", "result_type"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entity_query_latency_seconds",
				Help:    "Entity query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"kind", "cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entity_query_results_count",
				Help:    "Number of results returned per entity query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
			[]string{"kind"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		SnapshotReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entity_index_reloads_total",
				Help: "Snapshot reloads in the searcher by status.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocsProcessedTotal,
		m.EntitiesMergedTotal,
		m.ExtractionDuration,
		m.MergeQueueDepth,
		m.FlaggedDocsTotal,
		m.BuildsTotal,
		m.SnapshotBytes,
		m.SnapshotDuration,
		m.IndexEntities,
		m.RecognizerRequests,
		m.CircuitBreakerState,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.SnapshotReloadsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
