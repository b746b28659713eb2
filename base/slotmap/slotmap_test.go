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

package slotmap_test

import (
	"testing"

	"github.com/gx-org/graphc/base/slotmap"
)

func TestStaleKey(t *testing.T) {
	var m slotmap.Map[string]
	a := m.Insert("a")
	b := m.Insert("b")
	if got, _ := m.Get(a); *got != "a" {
		t.Errorf("got %q but want %q", *got, "a")
	}
	if !m.Remove(a) {
		t.Fatalf("cannot remove %v", a)
	}
	if m.Contains(a) {
		t.Errorf("key %v still valid after removal", a)
	}
	c := m.Insert("c")
	if c.Index() != a.Index() {
		t.Errorf("slot %d not recycled: got %d", a.Index(), c.Index())
	}
	if m.Contains(a) {
		t.Errorf("stale key %v aliases recycled slot", a)
	}
	if _, ok := m.Get(a); ok {
		t.Errorf("stale key %v returned a value", a)
	}
	if got, _ := m.Get(c); *got != "c" {
		t.Errorf("got %q but want %q", *got, "c")
	}
	if m.Remove(a) {
		t.Errorf("removing a stale key succeeded")
	}
	if m.Len() != 2 {
		t.Errorf("got %d elements but want 2", m.Len())
	}
	var zero slotmap.Key
	if m.Contains(zero) {
		t.Errorf("zero key is valid")
	}
	_ = b
}
