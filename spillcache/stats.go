/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import "github.com/acronis/go-scrapekit/memmon"

// CacheStats is a read-only snapshot of the store state.
type CacheStats struct {
	// Items is the number of entries held in memory.
	Items int

	// DiskItems is the number of entries spilled to disk.
	DiskItems int

	// MemBytes is the serialized size of all in-memory entries.
	MemBytes uint64

	// MaxBytes is the configured in-memory byte ceiling.
	MaxBytes uint64

	// Memory is the system memory snapshot taken at stats time.
	Memory memmon.Stats
}

// MemSizeMB returns the in-memory size in megabytes.
func (cs CacheStats) MemSizeMB() float64 {
	return float64(cs.MemBytes) / 1024 / 1024
}

// Stats returns a snapshot of the store state together with a fresh memory
// monitor snapshot. It does not mutate the store.
func (s *Store[V]) Stats() CacheStats {
	return CacheStats{
		Items:     len(s.mem),
		DiskItems: len(s.disk),
		MemBytes:  s.memBytes,
		MaxBytes:  s.maxBytes,
		Memory:    s.monitor.GetStats(),
	}
}
