/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/bytefmt"
	"github.com/rs/xid"

	"github.com/acronis/go-scrapekit/log"
	"github.com/acronis/go-scrapekit/memmon"
)

type memEntry[V any] struct {
	key   string
	value V
	size  uint64
}

// Store is a bounded key-value cache with LRU eviction and disk overflow.
//
// A key is held in exactly one tier: either in memory (counted against the
// byte ceiling) or in a spill file on disk (not counted). Store is designed
// for single-owner use and is not safe for concurrent mutation without
// external synchronization, but every operation leaves the internal state
// consistent even when it fails partway.
type Store[V any] struct {
	maxBytes    uint64
	overflow    bool
	tempDir     string
	autoCleanup bool

	id      string
	codec   Codec[V]
	monitor *memmon.Monitor

	lruList  *list.List               // front is the most recently used entry
	mem      map[string]*list.Element // in-memory tier, value is a lruList element
	disk     map[string]string        // disk tier, value is the spill file path
	memBytes uint64

	logger           log.FieldLogger
	metricsCollector MetricsCollector
}

// StoreOpts represents an options for Store.
type StoreOpts[V any] struct {
	// OverflowToDisk enables automatic spilling of values that cannot be
	// admitted in memory. Without it such values evict the LRU tail instead.
	OverflowToDisk bool

	// TempDir is the directory for spill files. Defaults to os.TempDir().
	TempDir string

	// AutoCleanup enables proactive eviction when the memory monitor reports
	// critical system memory pressure.
	AutoCleanup bool

	// Monitor provides memory snapshots for Stats and AutoCleanup.
	// A monitor with default thresholds is used if not set.
	Monitor *memmon.Monitor

	// Codec serializes values for size accounting and disk spilling.
	// GobCodec is used if not set.
	Codec Codec[V]

	// Logger is used for logging cache events. Disabled if not set.
	Logger log.FieldLogger

	// MetricsCollector is used to collect statistics about cache usage.
	// Disabled if not set.
	MetricsCollector MetricsCollector
}

// New creates a new Store with the passed in-memory byte ceiling.
func New[V any](maxSizeBytes uint64) (*Store[V], error) {
	return NewWithOpts(maxSizeBytes, StoreOpts[V]{})
}

// NewWithOpts creates a new Store with the passed in-memory byte ceiling and options.
func NewWithOpts[V any](maxSizeBytes uint64, opts StoreOpts[V]) (*Store[V], error) {
	if maxSizeBytes == 0 {
		return nil, fmt.Errorf("max size must be greater than 0")
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Monitor == nil {
		opts.Monitor = memmon.NewDefault()
	}
	if opts.Codec == nil {
		opts.Codec = GobCodec[V]{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	return &Store[V]{
		maxBytes:         maxSizeBytes,
		overflow:         opts.OverflowToDisk,
		tempDir:          opts.TempDir,
		autoCleanup:      opts.AutoCleanup,
		id:               xid.New().String(),
		codec:            opts.Codec,
		monitor:          opts.Monitor,
		lruList:          list.New(),
		mem:              make(map[string]*list.Element),
		disk:             make(map[string]string),
		logger:           opts.Logger,
		metricsCollector: opts.MetricsCollector,
	}, nil
}

// Set stores the value under the key, keeping it in memory when it fits and
// spilling it to disk otherwise (see StoreOpts.OverflowToDisk).
// Overwriting an existing key releases its previous location first.
func (s *Store[V]) Set(key string, value V) error {
	return s.set(key, value, false)
}

// SetToDisk stores the value under the key directly in the disk tier,
// bypassing memory admission. It works regardless of OverflowToDisk:
// the flag governs automatic spilling only.
func (s *Store[V]) SetToDisk(key string, value V) error {
	return s.set(key, value, true)
}

func (s *Store[V]) set(key string, value V, forceDisk bool) error {
	data, err := s.codec.Encode(value)
	if err != nil {
		return &SerializationError{Key: key, Inner: err}
	}
	size := uint64(len(data))

	s.remove(key)

	if forceDisk || (s.overflow && size > s.maxBytes/2 && s.memBytes+size > s.maxBytes) {
		return s.spill(key, data, size)
	}

	if s.autoCleanup {
		s.cleanupOnMemoryPressure()
	}

	evicted := 0
	for s.memBytes+size > s.maxBytes && len(s.mem) > 0 {
		s.evictOldest()
		evicted++
	}
	if evicted > 0 {
		s.metricsCollector.AddEvictions(evicted)
	}
	if s.memBytes+size > s.maxBytes && s.overflow {
		// The ceiling cannot be met even with an empty index.
		return s.spill(key, data, size)
	}

	s.mem[key] = s.lruList.PushFront(&memEntry[V]{key: key, value: value, size: size})
	s.memBytes += size
	s.metricsCollector.SetAmount(len(s.mem), len(s.disk))
	s.logger.Debug("cached value in memory",
		log.String("key", key), log.String("size", bytefmt.ByteSize(size)))
	return nil
}

// Get returns the value stored under the key.
// An in-memory hit moves the entry to the most-recently-used position.
// A disk hit decodes the spilled file without promoting the entry back into
// memory. A missing key reports found=false with a nil error; a failure to
// read or decode a spilled entry reports the error so the caller can re-fetch.
func (s *Store[V]) Get(key string) (value V, found bool, err error) {
	if elem, ok := s.mem[key]; ok {
		s.lruList.MoveToFront(elem)
		s.metricsCollector.IncHits()
		return elem.Value.(*memEntry[V]).value, true, nil
	}

	if path, ok := s.disk[key]; ok {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			s.metricsCollector.IncMisses()
			return value, false, &StorageError{Key: key, Path: path, Op: "read", Inner: readErr}
		}
		v, decodeErr := s.codec.Decode(data)
		if decodeErr != nil {
			s.metricsCollector.IncMisses()
			return value, false, &SerializationError{Key: key, Inner: decodeErr}
		}
		s.metricsCollector.IncHits()
		s.metricsCollector.IncDiskReads()
		return v, true, nil
	}

	s.metricsCollector.IncMisses()
	return value, false, nil
}

// GetOrDefault returns the value stored under the key,
// or def when the key is absent or its spilled file cannot be read back.
func (s *Store[V]) GetOrDefault(key string, def V) V {
	v, found, err := s.Get(key)
	if !found || err != nil {
		return def
	}
	return v
}

// Delete removes the key from whichever tier holds it and unlinks its spill
// file if any. Deleting an absent key is a no-op.
func (s *Store[V]) Delete(key string) {
	if s.remove(key) {
		s.metricsCollector.SetAmount(len(s.mem), len(s.disk))
	}
}

// Clear empties both tiers, resets the byte accounting and deletes every
// tracked spill file. It is idempotent.
func (s *Store[V]) Clear() {
	for key, path := range s.disk {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to delete spill file",
				log.String("key", key), log.String("path", path), log.Error(err))
		}
	}
	s.disk = make(map[string]string)
	s.mem = make(map[string]*list.Element)
	s.lruList.Init()
	s.memBytes = 0
	s.metricsCollector.SetAmount(0, 0)
}

// Close releases the store: it clears both tiers and removes all spill files.
func (s *Store[V]) Close() {
	s.Clear()
}

// Len returns the number of keys held in memory and on disk.
func (s *Store[V]) Len() int {
	return len(s.mem) + len(s.disk)
}

// MemBytes returns the serialized size of all in-memory entries.
// Disk-resident entries are not counted.
func (s *Store[V]) MemBytes() uint64 {
	return s.memBytes
}

// remove drops the key from whichever tier holds it and returns whether it was present.
func (s *Store[V]) remove(key string) bool {
	if elem, ok := s.mem[key]; ok {
		s.memBytes -= elem.Value.(*memEntry[V]).size
		s.lruList.Remove(elem)
		delete(s.mem, key)
		return true
	}
	if path, ok := s.disk[key]; ok {
		delete(s.disk, key)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to delete spill file",
				log.String("key", key), log.String("path", path), log.Error(err))
		}
		return true
	}
	return false
}

func (s *Store[V]) evictOldest() {
	elem := s.lruList.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*memEntry[V])
	s.lruList.Remove(elem)
	delete(s.mem, entry.key)
	s.memBytes -= entry.size
	s.logger.Debug("evicted LRU cache entry",
		log.String("key", entry.key), log.String("size", bytefmt.ByteSize(entry.size)))
}

// cleanupOnMemoryPressure evicts down to half occupancy when system memory
// usage is at or above the critical threshold. At warning level the condition
// is only logged.
func (s *Store[V]) cleanupOnMemoryPressure() {
	stats := s.monitor.GetStats()
	switch s.monitor.Level(stats) {
	case memmon.LevelCritical:
		target := s.maxBytes / 2
		evicted := 0
		for s.memBytes > target && len(s.mem) > 0 {
			s.evictOldest()
			evicted++
		}
		if evicted > 0 {
			s.metricsCollector.AddEvictions(evicted)
			s.logger.Warn("evicted cache entries on critical memory pressure",
				log.Int("evicted", evicted), log.String("memory", stats.String()))
		}
	case memmon.LevelWarning:
		s.logger.Warn("memory usage above warning threshold", log.String("memory", stats.String()))
	case memmon.LevelOK:
	}
}

// spill writes the encoded value to its spill file and records it in the disk
// tier. The index entry is inserted only after a fully successful write, and a
// partially written file is removed, so a failed spill never leaves the index
// pointing at a missing or truncated file.
func (s *Store[V]) spill(key string, data []byte, size uint64) error {
	if err := os.MkdirAll(s.tempDir, 0o700); err != nil {
		return &StorageError{Key: key, Path: s.tempDir, Op: "prepare directory for", Inner: err}
	}
	path := s.spillPath(key)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.Remove(path)
		return &StorageError{Key: key, Path: path, Op: "write", Inner: err}
	}
	s.disk[key] = path
	s.metricsCollector.IncSpills()
	s.metricsCollector.SetAmount(len(s.mem), len(s.disk))
	s.logger.Debug("spilled cache value to disk",
		log.String("key", key), log.String("path", path), log.String("size", bytefmt.ByteSize(size)))
	return nil
}

// spillPath derives a deterministic fixed-width file name from the cache key.
// Hashing prevents path traversal via hostile keys, and the per-store id
// prefix keeps concurrent stores sharing a directory from clobbering each
// other's files.
func (s *Store[V]) spillPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.tempDir, s.id+"-"+hex.EncodeToString(sum[:16])+".bin")
}
