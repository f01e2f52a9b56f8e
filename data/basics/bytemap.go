// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

package basics

import (
	"encoding/hex"

	"golang.org/x/exp/slices"
)

// Cloneable is implemented by values stored in a ByteMap.
type Cloneable[T any] interface {
	Clone() T
	Equal(T) bool
}

// ByteMapEntry is a key/value pair of a ByteMap.
type ByteMapEntry[T any] struct {
	Key   []byte
	Value T
}

// ByteMap is a map keyed by byte sequences. Keys are compared by content:
// internally each key is stored under its hex encoding.
// The zero value is an empty map ready to use.
type ByteMap[T Cloneable[T]] struct {
	m map[string]ByteMapEntry[T]
}

// NewByteMap returns an empty ByteMap.
func NewByteMap[T Cloneable[T]]() *ByteMap[T] {
	return &ByteMap[T]{}
}

func byteMapKey(key []byte) string {
	return hex.EncodeToString(key)
}

// Len returns the number of entries.
func (bm *ByteMap[T]) Len() int {
	return len(bm.m)
}

// Get returns the value stored under key.
func (bm *ByteMap[T]) Get(key []byte) (value T, ok bool) {
	e, ok := bm.m[byteMapKey(key)]
	return e.Value, ok
}

// Has reports whether key is present.
func (bm *ByteMap[T]) Has(key []byte) bool {
	_, ok := bm.m[byteMapKey(key)]
	return ok
}

// Set stores value under key, replacing any previous value.
func (bm *ByteMap[T]) Set(key []byte, value T) {
	if bm.m == nil {
		bm.m = make(map[string]ByteMapEntry[T])
	}
	bm.m[byteMapKey(key)] = ByteMapEntry[T]{Key: append([]byte{}, key...), Value: value}
}

// Delete removes key and reports whether it was present.
func (bm *ByteMap[T]) Delete(key []byte) bool {
	k := byteMapKey(key)
	if _, ok := bm.m[k]; !ok {
		return false
	}
	delete(bm.m, k)
	return true
}

// Entries returns all entries ordered by key bytes.
func (bm *ByteMap[T]) Entries() []ByteMapEntry[T] {
	keys := make([]string, 0, len(bm.m))
	for k := range bm.m {
		keys = append(keys, k)
	}
	// hex encoding preserves the byte order of keys
	slices.Sort(keys)
	res := make([]ByteMapEntry[T], len(keys))
	for i, k := range keys {
		res[i] = bm.m[k]
	}
	return res
}

// Clone returns a deep copy of the map. Keys and values are copied, so
// mutating either map never affects the other.
func (bm *ByteMap[T]) Clone() *ByteMap[T] {
	res := &ByteMap[T]{}
	if bm.m == nil {
		return res
	}
	res.m = make(map[string]ByteMapEntry[T], len(bm.m))
	for k, e := range bm.m {
		res.m[k] = ByteMapEntry[T]{Key: append([]byte{}, e.Key...), Value: e.Value.Clone()}
	}
	return res
}

// Equal reports whether both maps hold the same keys with equal values.
func (bm *ByteMap[T]) Equal(o *ByteMap[T]) bool {
	if bm.Len() != o.Len() {
		return false
	}
	for k, e := range bm.m {
		oe, ok := o.m[k]
		if !ok || !e.Value.Equal(oe.Value) {
			return false
		}
	}
	return true
}
