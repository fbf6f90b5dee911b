// Package metrics provides Prometheus metrics for ragspan
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for ragspan.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Embedding cache metrics
	CacheLookupsTotal  *prometheus.CounterVec
	EmbeddingsComputed prometheus.Counter
	EmbeddingDuration  prometheus.Histogram
	CacheStoreFailures *prometheus.CounterVec

	// Indexing metrics
	IndexBuildsTotal   *prometheus.CounterVec
	IndexBuildDuration prometheus.Histogram
	DocumentsIndexed   prometheus.Counter
	DocumentsFailed    prometheus.Counter
	IndexChunks        prometheus.Gauge

	// Search metrics
	SearchQueriesTotal *prometheus.CounterVec
	SearchDuration     prometheus.Histogram
	SearchResultsTotal prometheus.Counter
}

// New creates all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.CacheLookupsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragspan_cache_lookups_total",
			Help: "Embedding cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	m.EmbeddingsComputed = f.NewCounter(
		prometheus.CounterOpts{
			Name: "ragspan_embeddings_computed_total",
			Help: "Total number of embeddings computed by the embedder",
		},
	)

	m.EmbeddingDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragspan_embedding_duration_seconds",
			Help:    "Duration of embedding computations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	m.CacheStoreFailures = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragspan_cache_store_failures_total",
			Help: "Persistent cache store operations that failed",
		},
		[]string{"operation"},
	)

	m.IndexBuildsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragspan_index_builds_total",
			Help: "Total number of index builds",
		},
		[]string{"status"},
	)

	m.IndexBuildDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragspan_index_build_duration_seconds",
			Help:    "Duration of index builds in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.DocumentsIndexed = f.NewCounter(
		prometheus.CounterOpts{
			Name: "ragspan_documents_indexed_total",
			Help: "Total number of documents indexed",
		},
	)

	m.DocumentsFailed = f.NewCounter(
		prometheus.CounterOpts{
			Name: "ragspan_documents_failed_total",
			Help: "Total number of documents left out of an index",
		},
	)

	m.IndexChunks = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragspan_index_chunks",
			Help: "Number of chunks in the most recently built index",
		},
	)

	m.SearchQueriesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragspan_search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"status"},
	)

	m.SearchDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragspan_search_duration_seconds",
			Help:    "Duration of search queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.SearchResultsTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "ragspan_search_results_total",
			Help: "Total number of search results returned",
		},
	)

	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCacheLookup records a lookup outcome: "memory", "store", "miss" or "shared".
func (m *Metrics) RecordCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordEmbedding records one embedder call.
func (m *Metrics) RecordEmbedding(duration time.Duration) {
	if m == nil {
		return
	}
	m.EmbeddingsComputed.Inc()
	m.EmbeddingDuration.Observe(duration.Seconds())
}

// RecordStoreFailure records a failed persistent cache operation.
func (m *Metrics) RecordStoreFailure(operation string) {
	if m == nil {
		return
	}
	m.CacheStoreFailures.WithLabelValues(operation).Inc()
}

// RecordIndexBuild records a finished index build.
func (m *Metrics) RecordIndexBuild(status string, indexed, failed, chunks int, duration time.Duration) {
	if m == nil {
		return
	}
	m.IndexBuildsTotal.WithLabelValues(status).Inc()
	m.IndexBuildDuration.Observe(duration.Seconds())
	m.DocumentsIndexed.Add(float64(indexed))
	m.DocumentsFailed.Add(float64(failed))
	if status == "ok" {
		m.IndexChunks.Set(float64(chunks))
	}
}

// RecordSearch records a search query with its status.
func (m *Metrics) RecordSearch(status string, results int, duration time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(status).Inc()
	m.SearchDuration.Observe(duration.Seconds())
	m.SearchResultsTotal.Add(float64(results))
}
