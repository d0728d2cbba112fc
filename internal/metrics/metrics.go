// Package metrics defines Prometheus instruments for the cache core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache store metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses (including expired entries)",
		},
		[]string{"namespace"},
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_writes_total",
			Help: "Total number of cache writes",
		},
		[]string{"namespace"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of cache entries removed before natural use",
		},
		[]string{"namespace", "reason"}, // reason: expired, delete, clear, pattern, prune
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of entries in the cache store",
		},
	)

	// Cached-call strategy metrics
	CachedCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cached_calls_total",
			Help: "Total number of cache-aware client calls",
		},
		[]string{"resource", "strategy", "source"}, // source: cache, network, fallback
	)

	// Warmer metrics
	WarmTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warm_tasks_total",
			Help: "Total number of warm tasks executed",
		},
		[]string{"status"}, // status: success, failed, timeout
	)

	WarmTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warm_task_duration_seconds",
			Help:    "Duration of individual warm tasks in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"task"},
	)

	WarmRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warm_run_duration_seconds",
			Help:    "Duration of full warm runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Upstream API client metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_client_requests_total",
			Help: "Total number of HTTP requests made to the learning API",
		},
		[]string{"status"}, // status: success, retry, error
	)

	APIRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_client_retries_total",
			Help: "Total number of HTTP request retries against the learning API",
		},
	)

	APIRetryAfterWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "api_client_retry_after_wait_seconds",
			Help:    "Duration of Retry-After waits in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Warm-progress stream metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of connected warm-progress subscribers",
		},
	)
)
