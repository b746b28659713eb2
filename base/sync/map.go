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

// Package sync provides a typed synchronized map.
package sync

import (
	"iter"
	"sync"
)

// Map is a typed wrapper around sync.Map.
// The zero value is an empty map ready to use.
type Map[K comparable, V any] struct {
	m sync.Map
}

// Store a value for a key.
func (sm *Map[K, V]) Store(k K, v V) {
	sm.m.Store(k, v)
}

// Load returns the value stored for a key.
func (sm *Map[K, V]) Load(k K) (v V, ok bool) {
	vAny, ok := sm.m.Load(k)
	if !ok {
		return v, false
	}
	return vAny.(V), true
}

// LoadOrStore returns the value stored for a key if present.
// Otherwise, it stores v and returns it. loaded is true if the value was present.
func (sm *Map[K, V]) LoadOrStore(k K, v V) (actual V, loaded bool) {
	vAny, loaded := sm.m.LoadOrStore(k, v)
	return vAny.(V), loaded
}

// Delete the value stored for a key.
func (sm *Map[K, V]) Delete(k K) {
	sm.m.Delete(k)
}

// All iterates over the pairs of the map in no particular order.
func (sm *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		sm.m.Range(func(k, v any) bool {
			return yield(k.(K), v.(V))
		})
	}
}
