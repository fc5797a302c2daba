/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil provides helpers for tests that assert on Prometheus
// metrics collected by the rate limiter and the cache store.
package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tHelper interface {
	Helper()
}

// AssertCounterValue asserts that the counter for the passed label values has the wanted value.
func AssertCounterValue(t assert.TestingT, vec *prometheus.CounterVec, labels prometheus.Labels, want int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	m, err := vec.GetMetricWith(labels)
	if !assert.NoError(t, err) {
		return false
	}
	var got dto.Metric
	if !assert.NoError(t, m.Write(&got)) {
		return false
	}
	return assert.Equal(t, want, int(got.GetCounter().GetValue()))
}

// RequireCounterValue calls AssertCounterValue and fails the test immediately in case of error.
func RequireCounterValue(t require.TestingT, vec *prometheus.CounterVec, labels prometheus.Labels, want int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertCounterValue(t, vec, labels, want) {
		return
	}
	t.FailNow()
}

// AssertSamplesCountInHistogram asserts that the histogram for the passed label values
// contains the specified number of samples.
func AssertSamplesCountInHistogram(
	t assert.TestingT, vec *prometheus.HistogramVec, labels prometheus.Labels, wantSamplesCount int,
) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	m, err := vec.GetMetricWith(labels)
	if !assert.NoError(t, err) {
		return false
	}
	var got dto.Metric
	if !assert.NoError(t, m.(prometheus.Histogram).Write(&got)) {
		return false
	}
	return assert.Equal(t, wantSamplesCount, int(got.GetHistogram().GetSampleCount()))
}

// RequireSamplesCountInHistogram calls AssertSamplesCountInHistogram
// and fails the test immediately in case of error.
func RequireSamplesCountInHistogram(
	t require.TestingT, vec *prometheus.HistogramVec, labels prometheus.Labels, wantSamplesCount int,
) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertSamplesCountInHistogram(t, vec, labels, wantSamplesCount) {
		return
	}
	t.FailNow()
}
