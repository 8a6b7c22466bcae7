// Package metrics exposes prometheus collectors for the dashboard's upstream calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "riskboard"

var (
	// UpstreamRequests counts completed upstream HTTP calls by service and status code.
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream HTTP requests by service and status code.",
		},
		[]string{"service", "code"},
	)

	// UpstreamDuration observes upstream call latency.
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// CacheLookups counts response cache lookups by result (hit or miss).
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result.",
		},
		[]string{"result"},
	)

	// GuardRejections counts requests refused locally because the quota was exhausted.
	GuardRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Hosting API requests refused by the rate limit guard.",
		},
	)

	// RateLimitRemaining is the last observed hosting API quota.
	RateLimitRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "remaining",
			Help:      "Remaining hosting API requests in the current window.",
		},
	)

	// BackendFallbacks counts fallback payloads served in place of backend responses.
	BackendFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "fallbacks_total",
			Help:      "Fallback payloads served because the analysis backend was unreachable.",
		},
		[]string{"endpoint"},
	)

	// CacheInvalidations counts pull request events that invalidated cached responses.
	CacheInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "invalidations_total",
			Help:      "Pull request events that invalidated cached responses.",
		},
	)

	// Analyses counts dashboard analyses by outcome (complete, partial, stale).
	Analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Pull request analyses by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		UpstreamRequests,
		UpstreamDuration,
		CacheLookups,
		GuardRejections,
		RateLimitRemaining,
		BackendFallbacks,
		CacheInvalidations,
		Analyses,
	)
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
