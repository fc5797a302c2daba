/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-scrapekit/memmon"
)

// rawCodec stores []byte values verbatim so tests control sizes exactly.
type rawCodec struct{}

func (rawCodec) Encode(v []byte) ([]byte, error)    { return v, nil }
func (rawCodec) Decode(data []byte) ([]byte, error) { return data, nil }

func newRawStore(t *testing.T, maxSize uint64, opts StoreOpts[[]byte]) *Store[[]byte] {
	t.Helper()
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	opts.Codec = rawCodec{}
	s, err := NewWithOpts(maxSize, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func spillFileCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestNewStoreValidation(t *testing.T) {
	_, err := New[string](0)
	require.Error(t, err)

	s, err := New[string](1024)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, uint64(1024), s.Stats().MaxBytes)
}

func TestSetGetRoundTrip(t *testing.T) {
	s, err := New[string](1024 * 1024)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("page:1", "<html>hello</html>"))

	v, found, err := s.Get("page:1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "<html>hello</html>", v)

	_, found, err = s.Get("page:2")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetOrDefault(t *testing.T) {
	s, err := New[int](1024)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("answer", 42))
	require.Equal(t, 42, s.GetOrDefault("answer", -1))
	require.Equal(t, -1, s.GetOrDefault("missing", -1))
}

func TestLRUEviction(t *testing.T) {
	s := newRawStore(t, 100, StoreOpts[[]byte]{})

	require.NoError(t, s.Set("a", make([]byte, 40)))
	require.NoError(t, s.Set("b", make([]byte, 40)))

	// Touch "a" so "b" becomes the least recently used entry.
	_, found, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, s.Set("c", make([]byte, 40)))

	_, found, err = s.Get("b")
	require.NoError(t, err)
	require.False(t, found, "LRU entry should have been evicted")

	for _, key := range []string{"a", "c"} {
		_, found, err = s.Get(key)
		require.NoError(t, err)
		require.True(t, found, "key %q should have survived", key)
	}
	require.Equal(t, uint64(80), s.MemBytes())
}

func TestOverwriteReleasesOldLocation(t *testing.T) {
	tempDir := t.TempDir()
	s := newRawStore(t, 100, StoreOpts[[]byte]{OverflowToDisk: true, TempDir: tempDir})

	require.NoError(t, s.Set("k", make([]byte, 40)))
	require.Equal(t, uint64(40), s.MemBytes())

	require.NoError(t, s.Set("k", make([]byte, 10)))
	require.Equal(t, uint64(10), s.MemBytes())
	require.Equal(t, 1, s.Len())

	// Disk to memory: the spill file must be removed on overwrite.
	require.NoError(t, s.SetToDisk("k", make([]byte, 30)))
	require.Equal(t, uint64(0), s.MemBytes())
	require.Equal(t, 1, spillFileCount(t, tempDir))

	require.NoError(t, s.Set("k", make([]byte, 10)))
	require.Equal(t, uint64(10), s.MemBytes())
	require.Equal(t, 0, spillFileCount(t, tempDir))
	require.Equal(t, 1, s.Len())
}

func TestSetToDisk(t *testing.T) {
	tempDir := t.TempDir()
	// OverflowToDisk is intentionally off: SetToDisk must not depend on it.
	s := newRawStore(t, 1024, StoreOpts[[]byte]{TempDir: tempDir})

	require.NoError(t, s.SetToDisk("big", []byte("spilled value")))
	require.Equal(t, uint64(0), s.MemBytes())
	require.Equal(t, 1, spillFileCount(t, tempDir))

	stats := s.Stats()
	require.Equal(t, 0, stats.Items)
	require.Equal(t, 1, stats.DiskItems)

	v, found, err := s.Get("big")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("spilled value"), v)

	// Reading a spilled entry must not promote it back into memory.
	stats = s.Stats()
	require.Equal(t, 0, stats.Items)
	require.Equal(t, 1, stats.DiskItems)
	require.Equal(t, uint64(0), s.MemBytes())
}

func TestOversizedValueSpillsDirectly(t *testing.T) {
	tempDir := t.TempDir()
	s := newRawStore(t, 100, StoreOpts[[]byte]{OverflowToDisk: true, TempDir: tempDir})

	require.NoError(t, s.Set("a", make([]byte, 60)))
	require.Equal(t, uint64(60), s.MemBytes())

	// 60 bytes exceed half the ceiling and do not fit next to "a",
	// so the value goes straight to disk without evicting "a".
	require.NoError(t, s.Set("b", make([]byte, 60)))
	require.Equal(t, uint64(60), s.MemBytes())
	require.Equal(t, 1, spillFileCount(t, tempDir))

	_, found, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, found)

	v, found, err := s.Get("b")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, v, 60)
}

func TestLargeValueFitsWhenIndexEmpty(t *testing.T) {
	tempDir := t.TempDir()
	s := newRawStore(t, 100, StoreOpts[[]byte]{OverflowToDisk: true, TempDir: tempDir})

	// 60 bytes exceed half the ceiling but fit into an empty index,
	// so no spilling happens.
	require.NoError(t, s.Set("a", make([]byte, 60)))
	require.Equal(t, uint64(60), s.MemBytes())
	require.Equal(t, 0, spillFileCount(t, tempDir))
}

func TestValueLargerThanCeilingWithOverflow(t *testing.T) {
	tempDir := t.TempDir()
	s := newRawStore(t, 100, StoreOpts[[]byte]{OverflowToDisk: true, TempDir: tempDir})

	require.NoError(t, s.Set("small", make([]byte, 10)))
	require.NoError(t, s.Set("huge", make([]byte, 150)))

	require.Equal(t, uint64(10), s.MemBytes(), "resident entries stay untouched")
	require.Equal(t, 1, spillFileCount(t, tempDir))

	v, found, err := s.Get("huge")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, v, 150)
}

func TestValueLargerThanCeilingWithoutOverflow(t *testing.T) {
	s := newRawStore(t, 100, StoreOpts[[]byte]{})

	require.NoError(t, s.Set("a", make([]byte, 40)))
	require.NoError(t, s.Set("huge", make([]byte, 150)))

	// With overflow disabled the value is admitted after draining the index.
	_, found, err := s.Get("a")
	require.NoError(t, err)
	require.False(t, found)

	v, found, err := s.Get("huge")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, v, 150)
	require.Equal(t, uint64(150), s.MemBytes())
}

func TestDeleteIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()
	s := newRawStore(t, 100, StoreOpts[[]byte]{OverflowToDisk: true, TempDir: tempDir})

	require.NoError(t, s.Set("m", make([]byte, 10)))
	require.NoError(t, s.SetToDisk("d", make([]byte, 10)))
	require.Equal(t, 2, s.Len())

	s.Delete("m")
	s.Delete("m")
	require.Equal(t, uint64(0), s.MemBytes())

	s.Delete("d")
	s.Delete("d")
	require.Equal(t, 0, s.Len())
	require.Equal(t, 0, spillFileCount(t, tempDir))

	s.Delete("never-existed")
}

func TestClearRemovesSpillFiles(t *testing.T) {
	tempDir := t.TempDir()
	s := newRawStore(t, 100, StoreOpts[[]byte]{OverflowToDisk: true, TempDir: tempDir})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("m%d", i), make([]byte, 10)))
		require.NoError(t, s.SetToDisk(fmt.Sprintf("d%d", i), make([]byte, 10)))
	}
	require.Equal(t, 6, s.Len())
	require.Equal(t, 3, spillFileCount(t, tempDir))

	s.Clear()
	require.Equal(t, 0, s.Len())
	require.Equal(t, uint64(0), s.MemBytes())
	require.Equal(t, 0, spillFileCount(t, tempDir))

	s.Clear() // idempotent

	// The store stays usable after Clear.
	require.NoError(t, s.Set("again", make([]byte, 10)))
	require.Equal(t, 1, s.Len())
}

func TestFailedSpillLeavesNoIndexEntry(t *testing.T) {
	// A regular file in place of the temp directory makes every write fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s := newRawStore(t, 100, StoreOpts[[]byte]{OverflowToDisk: true, TempDir: blocker})

	err := s.SetToDisk("k", make([]byte, 10))
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "k", storageErr.Key)

	require.Equal(t, 0, s.Len())
	_, found, err := s.Get("k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDiskReadFailure(t *testing.T) {
	tempDir := t.TempDir()
	s := newRawStore(t, 100, StoreOpts[[]byte]{OverflowToDisk: true, TempDir: tempDir})

	require.NoError(t, s.SetToDisk("k", make([]byte, 10)))

	// Simulate an external cleaner removing the spill file.
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, os.Remove(filepath.Join(tempDir, entries[0].Name())))

	_, found, err := s.Get("k")
	require.False(t, found)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "read", storageErr.Op)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSerializationError(t *testing.T) {
	s, err := New[chan int](1024) // channels are not gob-encodable
	require.NoError(t, err)
	defer s.Close()

	err = s.Set("ch", make(chan int))
	var serErr *SerializationError
	require.ErrorAs(t, err, &serErr)
	require.Equal(t, "ch", serErr.Key)
	require.Equal(t, 0, s.Len())
}

func TestAutoCleanupOnCriticalPressure(t *testing.T) {
	monitor := memmon.NewDefault()
	usedPercent := 10.0
	monitor.SetSampleFunc(func() (memmon.Stats, error) {
		return memmon.Stats{TotalBytes: 100, UsedBytes: uint64(usedPercent), UsedPercent: usedPercent}, nil
	})

	s := newRawStore(t, 100, StoreOpts[[]byte]{AutoCleanup: true, Monitor: monitor})

	for i := 0; i < 8; i++ {
		require.NoError(t, s.Set(fmt.Sprintf("k%d", i), make([]byte, 10)))
	}
	require.Equal(t, uint64(80), s.MemBytes())

	// Critical pressure: the next Set evicts down to half occupancy first.
	usedPercent = 95
	require.NoError(t, s.Set("k8", make([]byte, 10)))
	require.LessOrEqual(t, s.MemBytes(), uint64(60))

	// The newest entries survive; the oldest are gone.
	_, found, err := s.Get("k8")
	require.NoError(t, err)
	require.True(t, found)
	_, found, err = s.Get("k0")
	require.NoError(t, err)
	require.False(t, found)
}

func TestAutoCleanupDisabled(t *testing.T) {
	monitor := memmon.NewDefault()
	monitor.SetSampleFunc(func() (memmon.Stats, error) {
		return memmon.Stats{UsedPercent: 99}, nil
	})

	s := newRawStore(t, 100, StoreOpts[[]byte]{Monitor: monitor})

	require.NoError(t, s.Set("a", make([]byte, 10)))
	require.NoError(t, s.Set("b", make([]byte, 10)))
	require.Equal(t, uint64(20), s.MemBytes(), "no proactive eviction without AutoCleanup")
}

func TestStats(t *testing.T) {
	monitor := memmon.NewDefault()
	monitor.SetSampleFunc(func() (memmon.Stats, error) {
		return memmon.Stats{TotalBytes: 1 << 30, UsedBytes: 1 << 29, UsedPercent: 50}, nil
	})

	s := newRawStore(t, 100, StoreOpts[[]byte]{OverflowToDisk: true, Monitor: monitor})

	require.NoError(t, s.Set("m1", make([]byte, 10)))
	require.NoError(t, s.Set("m2", make([]byte, 20)))
	require.NoError(t, s.SetToDisk("d1", make([]byte, 30)))

	stats := s.Stats()
	require.Equal(t, 2, stats.Items)
	require.Equal(t, 1, stats.DiskItems)
	require.Equal(t, uint64(30), stats.MemBytes)
	require.Equal(t, uint64(100), stats.MaxBytes)
	require.Equal(t, 50.0, stats.Memory.UsedPercent)
	require.InDelta(t, 30.0/1024/1024, stats.MemSizeMB(), 1e-9)
}

func TestTwoStoresShareTempDir(t *testing.T) {
	tempDir := t.TempDir()
	s1 := newRawStore(t, 100, StoreOpts[[]byte]{TempDir: tempDir})
	s2 := newRawStore(t, 100, StoreOpts[[]byte]{TempDir: tempDir})

	require.NoError(t, s1.SetToDisk("same-key", []byte("from s1")))
	require.NoError(t, s2.SetToDisk("same-key", []byte("from s2")))
	require.Equal(t, 2, spillFileCount(t, tempDir))

	v, found, err := s1.Get("same-key")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("from s1"), v)

	v, found, err = s2.Get("same-key")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("from s2"), v)

	s1.Close()
	require.Equal(t, 1, spillFileCount(t, tempDir), "closing one store must not touch the other's files")
}

func TestScoped(t *testing.T) {
	tempDir := t.TempDir()
	opts := StoreOpts[string]{OverflowToDisk: true, TempDir: tempDir}

	err := Scoped(1024, opts, func(s *Store[string]) error {
		if err := s.SetToDisk("k", "value"); err != nil {
			return err
		}
		require.Equal(t, 1, spillFileCount(t, tempDir))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, spillFileCount(t, tempDir))

	wantErr := errors.New("scraping failed")
	err = Scoped(1024, opts, func(s *Store[string]) error {
		_ = s.SetToDisk("k", "value")
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 0, spillFileCount(t, tempDir))
}

func TestScopedCleansUpOnPanic(t *testing.T) {
	tempDir := t.TempDir()
	opts := StoreOpts[string]{OverflowToDisk: true, TempDir: tempDir}

	require.Panics(t, func() {
		_ = Scoped(1024, opts, func(s *Store[string]) error {
			_ = s.SetToDisk("k", "value")
			panic("boom")
		})
	})
	require.Equal(t, 0, spillFileCount(t, tempDir))
}
