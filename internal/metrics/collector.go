// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records pipeline metrics. A nil *Collector is valid
// and records nothing, so components can run without metrics wired in.
type Collector struct {
	// Ingestion
	pagesCrawled  *prometheus.CounterVec
	chunksCreated prometheus.Counter
	embedBatches  *prometheus.CounterVec
	pointsUpsert  prometheus.Counter

	// Retrieval
	searchesTotal     *prometheus.CounterVec
	queryEmbedSeconds prometheus.Histogram
	searchSeconds     prometheus.Histogram

	logger *zap.Logger
}

// NewCollector creates a collector with all metrics registered under the
// given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.pagesCrawled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_crawled_total",
			Help:      "Total number of pages crawled",
		},
		[]string{"status"}, // ok, failed, skipped
	)

	c.chunksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_created_total",
			Help:      "Total number of chunks produced by the chunker",
		},
	)

	c.embedBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_batches_total",
			Help:      "Total number of embedding batches by outcome",
		},
		[]string{"status"}, // ok, failed
	)

	c.pointsUpsert = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_upserted_total",
			Help:      "Total number of points written to the vector index",
		},
	)

	c.searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of search requests by outcome",
		},
		[]string{"status"}, // success, error
	)

	c.queryEmbedSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_embedding_duration_seconds",
			Help:      "Query embedding duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	c.searchSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vector_search_duration_seconds",
			Help:      "Vector search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordPageCrawled counts one crawled page by outcome (ok, failed, skipped).
func (c *Collector) RecordPageCrawled(status string) {
	if c == nil {
		return
	}
	c.pagesCrawled.WithLabelValues(status).Inc()
}

// RecordChunksCreated counts chunks produced from one page.
func (c *Collector) RecordChunksCreated(n int) {
	if c == nil {
		return
	}
	c.chunksCreated.Add(float64(n))
}

// RecordEmbedBatch counts one embedding batch by outcome (ok, failed).
func (c *Collector) RecordEmbedBatch(status string) {
	if c == nil {
		return
	}
	c.embedBatches.WithLabelValues(status).Inc()
}

// RecordPointsUpserted counts points acknowledged by the vector index.
func (c *Collector) RecordPointsUpserted(n int) {
	if c == nil {
		return
	}
	c.pointsUpsert.Add(float64(n))
}

// RecordSearch records one search request outcome with its stage timings.
func (c *Collector) RecordSearch(status string, embedTime, searchTime time.Duration) {
	if c == nil {
		return
	}
	c.searchesTotal.WithLabelValues(status).Inc()
	if embedTime > 0 {
		c.queryEmbedSeconds.Observe(embedTime.Seconds())
	}
	if searchTime > 0 {
		c.searchSeconds.Observe(searchTime.Seconds())
	}
}
