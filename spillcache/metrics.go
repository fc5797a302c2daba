/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze how (effectively or not) cache is used.
type MetricsCollector interface {
	// SetAmount sets the number of entries held in memory and on disk.
	SetAmount(memEntries, diskEntries int)

	// IncHits increments the total number of successfully found keys in the cache.
	IncHits()

	// IncMisses increments the total number of not found keys in the cache.
	IncMisses()

	// AddEvictions increments the total number of evicted entries.
	AddEvictions(int)

	// IncSpills increments the total number of values spilled to disk.
	IncSpills()

	// IncDiskReads increments the total number of values read back from disk.
	IncDiskReads()
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents a Prometheus metrics for the cache.
type PrometheusMetrics struct {
	MemEntriesAmount  *prometheus.GaugeVec
	DiskEntriesAmount *prometheus.GaugeVec
	HitsTotal         *prometheus.CounterVec
	MissesTotal       *prometheus.CounterVec
	EvictionsTotal    *prometheus.CounterVec
	SpillsTotal       *prometheus.CounterVec
	DiskReadsTotal    *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	newCounter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        name,
				Help:        help,
				ConstLabels: opts.ConstLabels,
			},
			nil,
		)
	}
	newGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   opts.Namespace,
				Name:        name,
				Help:        help,
				ConstLabels: opts.ConstLabels,
			},
			nil,
		)
	}
	return &PrometheusMetrics{
		MemEntriesAmount:  newGauge("cache_mem_entries_amount", "Number of entries held in memory."),
		DiskEntriesAmount: newGauge("cache_disk_entries_amount", "Number of entries spilled to disk."),
		HitsTotal:         newCounter("cache_hits_total", "Number of successfully found keys in the cache."),
		MissesTotal:       newCounter("cache_misses_total", "Number of not found keys in the cache."),
		EvictionsTotal:    newCounter("cache_evictions_total", "Number of evicted entries."),
		SpillsTotal:       newCounter("cache_spills_total", "Number of values spilled to disk."),
		DiskReadsTotal:    newCounter("cache_disk_reads_total", "Number of values read back from disk."),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.MemEntriesAmount,
		pm.DiskEntriesAmount,
		pm.HitsTotal,
		pm.MissesTotal,
		pm.EvictionsTotal,
		pm.SpillsTotal,
		pm.DiskReadsTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.MemEntriesAmount)
	prometheus.Unregister(pm.DiskEntriesAmount)
	prometheus.Unregister(pm.HitsTotal)
	prometheus.Unregister(pm.MissesTotal)
	prometheus.Unregister(pm.EvictionsTotal)
	prometheus.Unregister(pm.SpillsTotal)
	prometheus.Unregister(pm.DiskReadsTotal)
}

// SetAmount sets the number of entries held in memory and on disk.
func (pm *PrometheusMetrics) SetAmount(memEntries, diskEntries int) {
	pm.MemEntriesAmount.With(nil).Set(float64(memEntries))
	pm.DiskEntriesAmount.With(nil).Set(float64(diskEntries))
}

// IncHits increments the total number of successfully found keys in the cache.
func (pm *PrometheusMetrics) IncHits() {
	pm.HitsTotal.With(nil).Inc()
}

// IncMisses increments the total number of not found keys in the cache.
func (pm *PrometheusMetrics) IncMisses() {
	pm.MissesTotal.With(nil).Inc()
}

// AddEvictions increments the total number of evicted entries.
func (pm *PrometheusMetrics) AddEvictions(n int) {
	pm.EvictionsTotal.With(nil).Add(float64(n))
}

// IncSpills increments the total number of values spilled to disk.
func (pm *PrometheusMetrics) IncSpills() {
	pm.SpillsTotal.With(nil).Inc()
}

// IncDiskReads increments the total number of values read back from disk.
func (pm *PrometheusMetrics) IncDiskReads() {
	pm.DiskReadsTotal.With(nil).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(int, int) {}
func (disabledMetrics) IncHits()           {}
func (disabledMetrics) IncMisses()         {}
func (disabledMetrics) AddEvictions(int)   {}
func (disabledMetrics) IncSpills()         {}
func (disabledMetrics) IncDiskReads()      {}
