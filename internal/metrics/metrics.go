package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClicksEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_clicks_enqueued_total",
			Help: "Total number of click events accepted into the recorder buffer",
		},
	)

	ClicksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_clicks_dropped_total",
			Help: "Total number of click events dropped",
		},
		[]string{"reason"}, // "buffer_full" or "flush_failed"
	)

	FlushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_click_flush_failures_total",
			Help: "Total number of failed click batch flush attempts",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_cache_hits_total",
			Help: "Total number of redirect lookups served from cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_cache_misses_total",
			Help: "Total number of redirect lookups that fell through to the database",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlink_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
)
