/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import "fmt"

// SerializationError is returned when a cache value cannot be encoded for
// storage or decoded back from a spilled file.
type SerializationError struct {
	Key   string
	Inner error
}

// Error implements error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize cache value for key %q: %s", e.Key, e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *SerializationError) Unwrap() error {
	return e.Inner
}

// StorageError is returned when reading or writing a spilled entry fails.
// A caller that receives it from Get should re-fetch the artifact instead of
// treating the entry as missing.
type StorageError struct {
	Key   string
	Path  string
	Op    string
	Inner error
}

// Error implements error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s spilled cache entry for key %q (%s): %s", e.Op, e.Key, e.Path, e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *StorageError) Unwrap() error {
	return e.Inner
}
