/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package spillcache provides a memory-bounded key-value store with LRU
// eviction and transparent disk overflow for oversized values.
//
// Scraping pipelines use it to stash large intermediate artifacts without
// exhausting process memory: values that fit stay in memory under a byte
// ceiling, values that do not are spilled to files under a temp directory and
// read back on demand. Disk-resident values are not promoted back into memory
// on access, which keeps a handful of oversized artifacts from thrashing the
// in-memory working set.
package spillcache
