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

package vn

import (
	"slices"

	"github.com/emirpasic/gods/v2/sets/treeset"

	"github.com/gx-org/graphc/base/ordered"
	"github.com/gx-org/graphc/ir"
)

// ID identifies a value.
type ID int

// Table maps the instructions of a module to values.
type Table struct {
	reg *Registry

	opcodes *ordered.Map[string, int]
	values  map[ir.Ref]ID
	points  map[int]ir.Ref
	encoded map[string]ID
	numVals int

	instructions map[ID]*treeset.Set[int]
	inputs       map[ID]*treeset.Set[ID]
	outputs      map[ID]*treeset.Set[ID]
}

// Run numbers the values of a module with the default registry.
func Run(m *ir.Module) *Table {
	return NewRegistry().Run(m)
}

// Run numbers the values of a module.
func (reg *Registry) Run(m *ir.Module) *Table {
	t := &Table{
		reg:          reg,
		opcodes:      ordered.NewMap[string, int](),
		values:       make(map[ir.Ref]ID),
		points:       make(map[int]ir.Ref),
		encoded:      make(map[string]ID),
		instructions: make(map[ID]*treeset.Set[int]),
		inputs:       make(map[ID]*treeset.Set[ID]),
		outputs:      make(map[ID]*treeset.Set[ID]),
	}
	point := 0
	for r := range m.All() {
		t.process(r, point)
		point++
	}
	return t
}

func (t *Table) newValue() ID {
	id := ID(t.numVals)
	t.numVals++
	t.instructions[id] = treeset.New[int]()
	t.inputs[id] = treeset.New[ID]()
	t.outputs[id] = treeset.New[ID]()
	return id
}

func (t *Table) process(r ir.Ref, point int) {
	enc := t.reg.Encoder(r.Name())(t, r)
	id, found := ID(0), false
	if enc.Valid {
		id, found = t.encoded[enc.Key]
	}
	if !found {
		id = t.newValue()
		if enc.Valid {
			t.encoded[enc.Key] = id
		}
	}
	t.values[r] = id
	t.points[point] = r
	t.instructions[id].Add(point)
	for _, in := range r.Inputs() {
		inID := t.mustValue(in)
		t.inputs[id].Add(inID)
		t.outputs[inID].Add(id)
	}
}

// Opcode interns the canonical string of an operator.
func (t *Table) Opcode(op ir.Operation) int {
	s := op.String()
	if id, ok := t.opcodes.Load(s); ok {
		return id
	}
	id := t.opcodes.Size()
	t.opcodes.Store(s, id)
	return id
}

// Opcodes returns the interned operators in the order they were first seen.
func (t *Table) Opcodes() []string {
	return slices.Collect(t.opcodes.Keys())
}

// NumValues returns the number of distinct values.
func (t *Table) NumValues() int {
	return t.numVals
}

// Value returns the value computed by an instruction.
func (t *Table) Value(r ir.Ref) (ID, bool) {
	id, ok := t.values[r]
	return id, ok
}

func (t *Table) mustValue(r ir.Ref) ID {
	id, ok := t.values[r]
	if !ok {
		panic(ir.Internalf("instruction %v has not been numbered", r))
	}
	return id
}

// Instructions returns the instructions computing a value in program order.
func (t *Table) Instructions(id ID) []ir.Ref {
	points, ok := t.instructions[id]
	if !ok {
		return nil
	}
	refs := make([]ir.Ref, 0, points.Size())
	for _, p := range points.Values() {
		refs = append(refs, t.points[p])
	}
	return refs
}

// Inputs returns the values used to compute a value.
func (t *Table) Inputs(id ID) []ID {
	if s, ok := t.inputs[id]; ok {
		return s.Values()
	}
	return nil
}

// Outputs returns the values computed from a value.
func (t *Table) Outputs(id ID) []ID {
	if s, ok := t.outputs[id]; ok {
		return s.Values()
	}
	return nil
}

// Equivalent returns true if two instructions compute the same value.
func (t *Table) Equivalent(a, b ir.Ref) bool {
	va, okA := t.values[a]
	vb, okB := t.values[b]
	return okA && okB && va == vb
}

// Classes returns the groups of instructions computing the same value.
// Only values computed by more than one instruction are returned.
func (t *Table) Classes() [][]ir.Ref {
	var classes [][]ir.Ref
	for id := range ID(t.numVals) {
		if t.instructions[id].Size() < 2 {
			continue
		}
		classes = append(classes, t.Instructions(id))
	}
	return classes
}
