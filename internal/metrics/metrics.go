// Package metrics provides the Prometheus collectors for pillscan.
//   - pillscan_upstream_requests_total: Counter with upstream and status labels
//   - pillscan_id_resolution_attempts: Histogram of browser attempts per resolved drug
//   - http_request_total / http_request_duration_seconds / http_request_in_flight:
//     server request metrics
//   - rate_limiter_buckets_total: Gauge of clients tracked by the server rate limiter
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pillscan_upstream_requests_total",
			Help: "Requests made to upstream sites and APIs",
		},
		[]string{"upstream", "status"},
	)

	IDResolutionAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pillscan_id_resolution_attempts",
			Help:    "Browser attempts needed to resolve a drug site ID",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)

	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Clients currently tracked by the rate limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(UpstreamRequests)
	prometheus.MustRegister(IDResolutionAttempts)
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBuckets)
}

// ObserveUpstream counts one upstream response. status 0 means the request
// failed before a response arrived.
func ObserveUpstream(upstream string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequests.WithLabelValues(upstream, label).Inc()
}
