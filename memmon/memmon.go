/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package memmon samples process and system memory usage and classifies it
// against configured warning and critical thresholds. It is consumed by
// spillcache for proactive eviction under memory pressure.
package memmon

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// Default threshold values, in percent of used system memory.
const (
	DefaultWarningThreshold  = 80.0
	DefaultCriticalThreshold = 90.0
)

// Stats is an immutable point-in-time snapshot of system memory usage.
type Stats struct {
	// TotalBytes is the total amount of system memory.
	TotalBytes uint64

	// UsedBytes is the amount of memory in use.
	UsedBytes uint64

	// UsedPercent is the used share of total memory, in [0, 100].
	UsedPercent float64
}

// String implements fmt.Stringer interface.
func (s Stats) String() string {
	return fmt.Sprintf("%.1fMB used / %.1fMB total (%.1f%%)",
		float64(s.UsedBytes)/1024/1024, float64(s.TotalBytes)/1024/1024, s.UsedPercent)
}

// Level classifies a snapshot against the monitor thresholds.
type Level int

// Memory pressure levels.
const (
	LevelOK Level = iota
	LevelWarning
	LevelCritical
)

// Monitor reports memory snapshots and threshold classifications.
type Monitor struct {
	// WarningThreshold and CriticalThreshold are percentages of used memory
	// at which the corresponding levels are reported.
	WarningThreshold  float64
	CriticalThreshold float64

	// sample is swapped in tests to simulate memory pressure.
	sample func() (Stats, error)
}

// New creates a new Monitor with the passed warning and critical thresholds (percentages).
func New(warningThreshold, criticalThreshold float64) (*Monitor, error) {
	if warningThreshold < 0 || warningThreshold > 100 {
		return nil, fmt.Errorf("warning threshold must be in range [0..100], got %v", warningThreshold)
	}
	if criticalThreshold < 0 || criticalThreshold > 100 {
		return nil, fmt.Errorf("critical threshold must be in range [0..100], got %v", criticalThreshold)
	}
	if warningThreshold > criticalThreshold {
		return nil, fmt.Errorf("warning threshold %v must not exceed critical threshold %v",
			warningThreshold, criticalThreshold)
	}
	return &Monitor{
		WarningThreshold:  warningThreshold,
		CriticalThreshold: criticalThreshold,
		sample:            sampleVirtualMemory,
	}, nil
}

// NewDefault creates a new Monitor with the default thresholds.
func NewDefault() *Monitor {
	m, _ := New(DefaultWarningThreshold, DefaultCriticalThreshold)
	return m
}

// GetStats returns the current memory snapshot.
// If sampling fails, a zero snapshot is returned instead of an error:
// memory monitoring is advisory and must never fail its consumer.
func (m *Monitor) GetStats() Stats {
	s, err := m.sample()
	if err != nil {
		return Stats{}
	}
	return s
}

// Level classifies the passed snapshot against the monitor thresholds.
func (m *Monitor) Level(s Stats) Level {
	switch {
	case s.UsedPercent >= m.CriticalThreshold:
		return LevelCritical
	case s.UsedPercent >= m.WarningThreshold:
		return LevelWarning
	default:
		return LevelOK
	}
}

// SetSampleFunc replaces the memory sampling function.
// It is intended for tests that need to simulate memory pressure.
func (m *Monitor) SetSampleFunc(sample func() (Stats, error)) {
	m.sample = sample
}

func sampleVirtualMemory() (Stats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalBytes:  vm.Total,
		UsedBytes:   vm.Used,
		UsedPercent: vm.UsedPercent,
	}, nil
}
