/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

// Scoped runs fn with a temporary store and guarantees that the store is
// cleared, including removal of all spill files, on every exit path: normal
// return, error return, or a panic inside fn.
func Scoped[V any](maxSizeBytes uint64, opts StoreOpts[V], fn func(*Store[V]) error) error {
	s, err := NewWithOpts(maxSizeBytes, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
