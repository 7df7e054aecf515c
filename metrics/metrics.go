// Package metrics provides Prometheus metrics collection for the normal form service.
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Domain metrics cover normalization latency and failures, and release reloads.
//
// All metrics are automatically registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
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
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	// form is "long" or "short"
	NormalizationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "normal_form_duration_seconds",
			Help:    "Normal form computation latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"form"},
	)

	NormalizationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "normal_form_errors_total",
			Help: "Failed normal form computations by error kind",
		},
		[]string{"form", "kind"},
	)

	ReleaseReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "release_reloads_total",
			Help: "Release reload attempts by result",
		},
		[]string{"result"},
	)

	ReleaseConcepts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "release_concepts",
			Help: "Active concepts in the served release",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(NormalizationDuration)
	prometheus.MustRegister(NormalizationErrors)
	prometheus.MustRegister(ReleaseReloads)
	prometheus.MustRegister(ReleaseConcepts)
}
