/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector represents a collector of metrics to analyze how the limiter paces requests.
type MetricsCollector interface {
	// IncRequests increments the total number of governed requests for the destination.
	IncRequests(destination string)

	// IncThrottled increments the total number of requests that had to wait for a token.
	IncThrottled(destination string)

	// ObserveWaitTime observes the delay imposed on a throttled request.
	ObserveWaitTime(destination string, wait time.Duration)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for the rate limiter.
type PrometheusMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	ThrottledTotal  *prometheus.CounterVec
	WaitTimeSeconds *prometheus.HistogramVec
}

const metricsLabelDestination = "destination"

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limiter_requests_total",
			Help:        "Number of requests governed by the rate limiter.",
			ConstLabels: opts.ConstLabels,
		},
		[]string{metricsLabelDestination},
	)

	throttledTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limiter_throttled_total",
			Help:        "Number of requests that had to wait for a token.",
			ConstLabels: opts.ConstLabels,
		},
		[]string{metricsLabelDestination},
	)

	waitTimeSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limiter_wait_time_seconds",
			Help:        "Delay imposed on throttled requests.",
			ConstLabels: opts.ConstLabels,
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60, 300},
		},
		[]string{metricsLabelDestination},
	)

	return &PrometheusMetrics{
		RequestsTotal:   requestsTotal,
		ThrottledTotal:  throttledTotal,
		WaitTimeSeconds: waitTimeSeconds,
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.RequestsTotal,
		pm.ThrottledTotal,
		pm.WaitTimeSeconds,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.RequestsTotal)
	prometheus.Unregister(pm.ThrottledTotal)
	prometheus.Unregister(pm.WaitTimeSeconds)
}

// IncRequests increments the total number of governed requests for the destination.
func (pm *PrometheusMetrics) IncRequests(destination string) {
	pm.RequestsTotal.WithLabelValues(destination).Inc()
}

// IncThrottled increments the total number of requests that had to wait for a token.
func (pm *PrometheusMetrics) IncThrottled(destination string) {
	pm.ThrottledTotal.WithLabelValues(destination).Inc()
}

// ObserveWaitTime observes the delay imposed on a throttled request.
func (pm *PrometheusMetrics) ObserveWaitTime(destination string, wait time.Duration) {
	pm.WaitTimeSeconds.WithLabelValues(destination).Observe(wait.Seconds())
}

type disabledMetrics struct{}

func (disabledMetrics) IncRequests(string)                    {}
func (disabledMetrics) IncThrottled(string)                   {}
func (disabledMetrics) ObserveWaitTime(string, time.Duration) {}
