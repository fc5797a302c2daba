/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	memEntries  int
	diskEntries int
	hits        int
	misses      int
	evictions   int
	spills      int
	diskReads   int
}

func (m *countingMetrics) SetAmount(memEntries, diskEntries int) {
	m.memEntries, m.diskEntries = memEntries, diskEntries
}
func (m *countingMetrics) IncHits()           { m.hits++ }
func (m *countingMetrics) IncMisses()         { m.misses++ }
func (m *countingMetrics) AddEvictions(n int) { m.evictions += n }
func (m *countingMetrics) IncSpills()         { m.spills++ }
func (m *countingMetrics) IncDiskReads()      { m.diskReads++ }

func TestMetricsCollector(t *testing.T) {
	mc := &countingMetrics{}
	s := newRawStore(t, 100, StoreOpts[[]byte]{
		OverflowToDisk:   true,
		MetricsCollector: mc,
	})

	require.NoError(t, s.Set("a", make([]byte, 40)))
	require.NoError(t, s.Set("b", make([]byte, 40)))
	require.NoError(t, s.Set("c", make([]byte, 40))) // evicts "a"
	require.Equal(t, 1, mc.evictions)
	require.Equal(t, 2, mc.memEntries)

	require.NoError(t, s.SetToDisk("d", make([]byte, 10)))
	require.Equal(t, 1, mc.spills)
	require.Equal(t, 1, mc.diskEntries)

	_, _, err := s.Get("b")
	require.NoError(t, err)
	_, _, err = s.Get("d")
	require.NoError(t, err)
	_, _, err = s.Get("missing")
	require.NoError(t, err)
	require.Equal(t, 2, mc.hits)
	require.Equal(t, 1, mc.misses)
	require.Equal(t, 1, mc.diskReads)

	s.Clear()
	require.Equal(t, 0, mc.memEntries)
	require.Equal(t, 0, mc.diskEntries)
}

func TestPrometheusMetricsRegistration(t *testing.T) {
	pm := NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{Namespace: "scraper_test"})
	pm.MustRegister()
	defer pm.Unregister()

	pm.SetAmount(3, 1)
	pm.IncHits()
	pm.IncMisses()
	pm.AddEvictions(2)
	pm.IncSpills()
	pm.IncDiskReads()
}
