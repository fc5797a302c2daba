/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package spillcache

import (
	"bytes"
	"encoding/gob"
)

// Codec serializes cache values for disk spilling and size accounting.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// GobCodec is the default Codec implementation based on encoding/gob.
type GobCodec[V any] struct{}

// Encode implements Codec interface.
func (GobCodec[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode implements Codec interface.
func (GobCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v)
	return v, err
}
