// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contexter_api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contexter_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Ingestion metrics
var (
	// IngestRunsTotal counts ingestion runs by outcome: ok, noop or error.
	IngestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contexter_ingest_runs_total",
			Help: "Ingestion runs by outcome",
		},
		[]string{"outcome"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contexter_ingest_duration_seconds",
			Help:    "Ingestion run duration",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	IngestChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contexter_ingest_chunks_total",
			Help: "Chunks embedded by ingestion",
		},
	)

	KnowledgeBaseChunks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contexter_knowledge_base_chunks",
			Help: "Chunks in the knowledge base after the last ingestion",
		},
	)
)

// Query metrics
var (
	// QueriesTotal counts queries by outcome: answered, no_kb, no_chunks, no_evidence or error.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contexter_queries_total",
			Help: "Queries by outcome",
		},
		[]string{"outcome"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contexter_query_duration_seconds",
			Help:    "Query duration including generation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// EmbeddingErrorsTotal counts embedding failures by stage: ingest or query.
	EmbeddingErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contexter_embedding_errors_total",
			Help: "Embedding failures by stage",
		},
		[]string{"stage"},
	)
)
