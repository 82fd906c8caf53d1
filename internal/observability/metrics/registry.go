// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)
)

// Feed metrics track rendering of syndication documents
var (
	// FeedRendersTotal counts feed renders by format and result
	FeedRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_renders_total",
			Help: "Total number of feed documents rendered",
		},
		[]string{"format", "result"}, // result: success, not_found, error
	)

	// FeedRenderDuration measures time to build and serialize a feed
	FeedRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_render_duration_seconds",
			Help:    "Time taken to render a feed document",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"format", "mode"},
	)

	// FeedItemsRendered measures items per rendered feed after filtering
	FeedItemsRendered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_items_rendered",
			Help:    "Number of items in a rendered feed",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 50, 100},
		},
	)
)

// Content metrics track the full-text pipeline
var (
	// ContentCacheRequestsTotal counts content cache lookups by result
	ContentCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_requests_total",
			Help: "Total number of content cache lookups",
		},
		[]string{"result"}, // result: hit, miss
	)

	// ContentCacheEntries tracks the number of cached article bodies
	ContentCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "content_cache_entries",
			Help: "Number of article bodies held in the content cache",
		},
	)

	// ContentCacheEvictionsTotal counts entries evicted for capacity
	ContentCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "content_cache_evictions_total",
			Help: "Total number of content cache evictions",
		},
	)

	// ContentFetchAttemptsTotal counts content fetch attempts by result
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of content fetch attempts",
		},
		[]string{"result"}, // result: success, failure
	)

	// ContentFetchDuration measures time to fetch article content
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to fetch article content",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8, 25.6},
		},
	)

	// ContentFetchSize measures fetched content size in bytes
	ContentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "content_fetch_size_bytes",
			Help: "Fetched article content size in bytes",
			Buckets: []float64{
				100, 400, 1600, 6400, 25600, 102400,
				409600, 1638400, 6553600, // up to ~6MB
			},
		},
	)
)

// Refresh metrics track the scheduled walk over active sources
var (
	// SourceRefreshTotal counts per-source refresh attempts by result
	SourceRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_refresh_total",
			Help: "Total number of source refresh attempts",
		},
		[]string{"result"}, // result: success, failure
	)

	// SourceRefreshDuration measures time to refresh one source
	SourceRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "source_refresh_duration_seconds",
			Help:    "Time taken to refresh one source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// ArticlesIngestedTotal counts articles newly stored by refreshes
	ArticlesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_ingested_total",
			Help: "Total number of new articles stored by source refreshes",
		},
		[]string{"source_id"},
	)
)

// Store metrics track persistence backend performance
var (
	// StoreOperationDuration measures persistence operation duration
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Persistence operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)
)

// CircuitBreakerState reports each breaker as 0 closed, 1 half-open, 2 open
var CircuitBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	},
	[]string{"name"},
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named persistence operation
func RecordOperationDuration(operation string, duration time.Duration) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetCircuitBreakerState records the numeric state of a named breaker.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
