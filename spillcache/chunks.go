/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import "iter"

// Chunks re-groups the source sequence into ordered slices of exactly size
// elements, with the final chunk holding the remainder. The grouping is lazy:
// elements are pulled from the source only as chunks are consumed, so callers
// can bound peak memory while processing large result sets.
//
// The returned sequence makes a single pass over the source and is not
// restartable. A size below 1 is treated as 1.
func Chunks[T any](source iter.Seq[T], size int) iter.Seq[[]T] {
	if size < 1 {
		size = 1
	}
	return func(yield func([]T) bool) {
		chunk := make([]T, 0, size)
		for v := range source {
			chunk = append(chunk, v)
			if len(chunk) == size {
				if !yield(chunk) {
					return
				}
				chunk = make([]T, 0, size)
			}
		}
		if len(chunk) > 0 {
			yield(chunk)
		}
	}
}
