// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package slotmap provides an arena of values addressed by
// generation-checked keys.
//
// Removing a value invalidates its key: the slot is recycled for a later
// insertion but with a new generation, so that stale keys never alias
// the new value.
package slotmap

// Key addresses a value in a map.
// The zero key is never valid.
type Key struct {
	index uint32
	gen   uint32
}

// Index of the slot in the arena.
func (k Key) Index() int {
	return int(k.index)
}

// IsZero returns true if the key is the zero key.
func (k Key) IsZero() bool {
	return k.gen == 0
}

type slot[T any] struct {
	val T
	// gen is odd when the slot is occupied.
	gen  uint32
	next uint32
}

// Map stores values of type T.
type Map[T any] struct {
	slots []slot[T]
	free  []uint32
	size  int
}

// Insert a value in the map and returns its key.
func (m *Map[T]) Insert(val T) Key {
	var index uint32
	if n := len(m.free); n > 0 {
		index = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		index = uint32(len(m.slots))
		m.slots = append(m.slots, slot[T]{})
	}
	s := &m.slots[index]
	s.gen++
	s.val = val
	m.size++
	return Key{index: index, gen: s.gen}
}

// Contains returns true if the key addresses a value in the map.
func (m *Map[T]) Contains(k Key) bool {
	if k.IsZero() || int(k.index) >= len(m.slots) {
		return false
	}
	return m.slots[k.index].gen == k.gen
}

// Get returns a pointer to the value stored at a key.
// The pointer is only valid until the next insertion.
func (m *Map[T]) Get(k Key) (*T, bool) {
	if !m.Contains(k) {
		return nil, false
	}
	return &m.slots[k.index].val, true
}

// Remove the value addressed by a key.
// It returns false if the key was not valid.
func (m *Map[T]) Remove(k Key) bool {
	if !m.Contains(k) {
		return false
	}
	s := &m.slots[k.index]
	var zero T
	s.val = zero
	s.gen++
	m.free = append(m.free, k.index)
	m.size--
	return true
}

// Len returns the number of values in the map.
func (m *Map[T]) Len() int {
	return m.size
}
