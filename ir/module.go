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

package ir

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/gx-org/graphc/base/slotmap"
	"github.com/gx-org/graphc/base/stringseq"
)

// Module is a list of instructions forming a dataflow graph.
//
// Instructions are stored in an arena and linked in a list in program order.
// Every instruction appears after all its inputs.
type Module struct {
	name       string
	arena      slotmap.Map[instruction]
	head, tail slotmap.Key
}

// NewModule returns a new empty module.
func NewModule(name string) *Module {
	return &Module{name: name}
}

// Name of the module.
func (m *Module) Name() string {
	return m.name
}

// Size returns the number of instructions in the module.
func (m *Module) Size() int {
	return m.arena.Len()
}

func (m *Module) ref(key slotmap.Key) Ref {
	return Ref{mod: m, key: key}
}

// Begin returns the first instruction or End() if the module is empty.
func (m *Module) Begin() Ref {
	return m.ref(m.head)
}

// End returns the position after the last instruction.
func (m *Module) End() Ref {
	return Ref{mod: m}
}

// Last returns the last instruction or End() if the module is empty.
func (m *Module) Last() Ref {
	return m.ref(m.tail)
}

// HasInstruction returns true if the reference points to an instruction of the module.
func (m *Module) HasInstruction(r Ref) bool {
	return r.mod == m && m.arena.Contains(r.key)
}

func (m *Module) get(r Ref) *instruction {
	if r.mod != m {
		panicf("instruction %v does not belong to module %q", r, m.name)
	}
	return r.ins()
}

// Next returns the instruction after r.
func (m *Module) Next(r Ref) Ref {
	if r.IsEnd() {
		return m.End()
	}
	return m.ref(m.get(r).next)
}

// Prev returns the instruction before r.
// The instruction before End() is the last instruction.
// The instruction before the first instruction is End().
func (m *Module) Prev(r Ref) Ref {
	if r.IsEnd() {
		return m.Last()
	}
	return m.ref(m.get(r).prev)
}

// All iterates over the instructions in program order.
// The instruction being visited can be replaced or removed by the caller.
// The iteration stops if both the visited instruction and the instruction
// following it are removed.
func (m *Module) All() iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		key := m.head
		for !key.IsZero() {
			ins, ok := m.arena.Get(key)
			if !ok {
				return
			}
			next := ins.next
			if !yield(m.ref(key)) {
				return
			}
			if cur, ok := m.arena.Get(key); ok {
				next = cur.next
			}
			key = next
		}
	}
}

// Backward iterates over the instructions in reverse program order.
func (m *Module) Backward() iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		key := m.tail
		for !key.IsZero() {
			ins, ok := m.arena.Get(key)
			if !ok {
				return
			}
			prev := ins.prev
			if !yield(m.ref(key)) {
				return
			}
			if cur, ok := m.arena.Get(key); ok {
				prev = cur.prev
			}
			key = prev
		}
	}
}

// Instructions returns all the instructions in program order.
func (m *Module) Instructions() []Ref {
	return slices.Collect(m.All())
}

// Index returns the position of an instruction in the module or -1.
func (m *Module) Index(r Ref) int {
	i := 0
	for ins := range m.All() {
		if ins == r {
			return i
		}
		i++
	}
	return -1
}

func (m *Module) unlink(key slotmap.Key) {
	ins, _ := m.arena.Get(key)
	prev, next := ins.prev, ins.next
	ins.prev, ins.next = slotmap.Key{}, slotmap.Key{}
	if prev.IsZero() {
		m.head = next
	} else {
		p, _ := m.arena.Get(prev)
		p.next = next
	}
	if next.IsZero() {
		m.tail = prev
	} else {
		n, _ := m.arena.Get(next)
		n.prev = prev
	}
}

// linkBefore links key before pos. A zero pos appends key at the end.
func (m *Module) linkBefore(key, pos slotmap.Key) {
	var prev slotmap.Key
	if pos.IsZero() {
		prev = m.tail
	} else {
		p, _ := m.arena.Get(pos)
		prev = p.prev
	}
	ins, _ := m.arena.Get(key)
	ins.prev, ins.next = prev, pos
	if prev.IsZero() {
		m.head = key
	} else {
		p, _ := m.arena.Get(prev)
		p.next = key
	}
	if pos.IsZero() {
		m.tail = key
	} else {
		p, _ := m.arena.Get(pos)
		p.prev = key
	}
}

func (m *Module) checkPosition(pos Ref) {
	if pos.IsEnd() {
		if pos.mod != m {
			panicf("end position does not belong to module %q", m.name)
		}
		return
	}
	if !m.HasInstruction(pos) {
		panicf("position %v is not an instruction of module %q", pos, m.name)
	}
}

func (m *Module) checkInputs(inputs []Ref) {
	for i, in := range inputs {
		if !m.HasInstruction(in) {
			panicf("input %d (%v) is not an instruction of module %q", i, in, m.name)
		}
	}
}

func inputShapes(inputs []Ref) []Shape {
	shapes := make([]Shape, len(inputs))
	for i, in := range inputs {
		shapes[i] = in.Shape()
	}
	return shapes
}

func computeShape(op Operation, inputs []Ref, mods []*Module) (Shape, error) {
	shapes := inputShapes(inputs)
	var s Shape
	var err error
	if shaper, ok := op.(ModuleShaper); ok {
		s, err = shaper.ComputeShapeWithModules(shapes, mods)
	} else {
		s, err = op.ComputeShape(shapes)
	}
	if err != nil {
		return Shape{}, &ShapeMismatchError{Op: op.String(), Inputs: shapes, Err: err}
	}
	return s, nil
}

func (m *Module) insert(pos Ref, ins instruction) Ref {
	inputs := ins.inputs
	key := m.arena.Insert(ins)
	m.linkBefore(key, pos.key)
	r := m.ref(key)
	for _, in := range inputs {
		in.ins().addOutput(r)
	}
	return r
}

// AddInstruction appends an instruction at the end of the module.
func (m *Module) AddInstruction(op Operation, inputs ...Ref) (Ref, error) {
	return m.InsertInstructionWithModules(m.End(), op, inputs, nil)
}

// AddInstructionWithModules appends an instruction owning sub-modules at the end of the module.
func (m *Module) AddInstructionWithModules(op Operation, inputs []Ref, mods []*Module) (Ref, error) {
	return m.InsertInstructionWithModules(m.End(), op, inputs, mods)
}

// InsertInstruction inserts an instruction before pos.
// Inputs must be positioned before pos.
func (m *Module) InsertInstruction(pos Ref, op Operation, inputs ...Ref) (Ref, error) {
	return m.InsertInstructionWithModules(pos, op, inputs, nil)
}

// InsertInstructionWithModules inserts an instruction owning sub-modules before pos.
func (m *Module) InsertInstructionWithModules(pos Ref, op Operation, inputs []Ref, mods []*Module) (Ref, error) {
	m.checkPosition(pos)
	m.checkInputs(inputs)
	s, err := computeShape(op, inputs, mods)
	if err != nil {
		return m.End(), err
	}
	return m.insert(pos, instruction{
		op:     op,
		shape:  s,
		inputs: slices.Clone(inputs),
		mods:   slices.Clone(mods),
	}), nil
}

// AddLiteral adds a constant at the beginning of the module.
func (m *Module) AddLiteral(lit Argument) Ref {
	return m.insert(m.Begin(), instruction{
		op:    LiteralOp{},
		shape: lit.Shape(),
		lit:   lit,
	})
}

// AddParameter adds a named parameter to the module.
// Parameters are kept at the beginning of the module in declaration order.
func (m *Module) AddParameter(name string, s Shape) Ref {
	if _, ok := m.Parameter(name); ok {
		panicf("parameter %q already defined in module %q", name, m.name)
	}
	pos := m.Begin()
	for !pos.IsEnd() && (pos.Name() == ParamName || pos.Name() == LiteralName) {
		pos = m.Next(pos)
	}
	return m.insert(pos, instruction{
		op:    ParamOp{Param: name},
		shape: s,
	})
}

// AddReturn appends a return instruction at the end of the module.
func (m *Module) AddReturn(inputs ...Ref) (Ref, error) {
	return m.AddInstruction(ReturnOp{}, inputs...)
}

// Parameter returns the parameter instruction given its name.
func (m *Module) Parameter(name string) (Ref, bool) {
	for ins := range m.All() {
		if op, ok := ins.Op().(ParamOp); ok && op.Param == name {
			return ins, true
		}
	}
	return m.End(), false
}

// ParameterNames returns the names of the parameters in declaration order.
func (m *Module) ParameterNames() []string {
	var names []string
	for ins := range m.All() {
		if op, ok := ins.Op().(ParamOp); ok {
			names = append(names, op.Param)
		}
	}
	return names
}

// ParameterShapes returns the shapes of the parameters given their names.
func (m *Module) ParameterShapes() map[string]Shape {
	shapes := make(map[string]Shape)
	for ins := range m.All() {
		if op, ok := ins.Op().(ParamOp); ok {
			shapes[op.Param] = ins.Shape()
		}
	}
	return shapes
}

// Outputs returns the instructions computing the results of the module:
// the inputs of the return instruction if the module ends with one,
// the last instruction otherwise.
func (m *Module) Outputs() []Ref {
	last := m.Last()
	if last.IsEnd() {
		return nil
	}
	if last.Name() == ReturnName {
		return last.Inputs()
	}
	return []Ref{last}
}

// OutputShapes returns the shapes of the results of the module.
func (m *Module) OutputShapes() []Shape {
	return inputShapes(m.Outputs())
}

func (m *Module) setInputs(r Ref, inputs []Ref) {
	ins := r.ins()
	old := ins.inputs
	ins.inputs = slices.Clone(inputs)
	for _, in := range old {
		if !slices.Contains(inputs, in) {
			in.ins().removeOutput(r)
		}
	}
	for _, in := range inputs {
		in.ins().addOutput(r)
	}
}

// propagateShape recomputes the shapes of the transitive consumers of r
// until they stop changing.
func (m *Module) propagateShape(r Ref) {
	work := r.Outputs()
	for len(work) > 0 {
		out := work[0]
		work = work[1:]
		ins := out.ins()
		s, err := computeShape(ins.op, ins.inputs, ins.mods)
		if err != nil {
			panic(Internal(err))
		}
		if s.Equal(ins.shape) {
			continue
		}
		ins.shape = s
		work = append(work, ins.outputs...)
	}
}

// ReplaceInstruction changes the operation and the inputs of an instruction in place.
// The reference stays valid and consumers see the new result.
// An error is returned, and the module is unchanged, if the new shape cannot be computed.
func (m *Module) ReplaceInstruction(r Ref, op Operation, inputs ...Ref) (Ref, error) {
	return m.ReplaceInstructionWithModules(r, op, inputs, nil)
}

// ReplaceInstructionWithModules changes the operation, the inputs and the sub-modules
// of an instruction in place.
func (m *Module) ReplaceInstructionWithModules(r Ref, op Operation, inputs []Ref, mods []*Module) (Ref, error) {
	ins := m.get(r)
	m.checkInputs(inputs)
	if slices.Contains(inputs, r) {
		panicf("instruction %v cannot be its own input", r)
	}
	s, err := computeShape(op, inputs, mods)
	if err != nil {
		return r, err
	}
	changed := !s.Equal(ins.shape)
	ins.op = op
	ins.shape = s
	ins.lit = Argument{}
	ins.mods = slices.Clone(mods)
	m.setInputs(r, inputs)
	if changed {
		m.propagateShape(r)
	}
	return r, nil
}

// ReplaceArgument replaces all occurrences of old in the inputs of r by rep.
func (m *Module) ReplaceArgument(r, old, rep Ref) error {
	ins := m.get(r)
	m.checkInputs([]Ref{rep})
	inputs := slices.Clone(ins.inputs)
	for i, in := range inputs {
		if in == old {
			inputs[i] = rep
		}
	}
	s, err := computeShape(ins.op, inputs, ins.mods)
	if err != nil {
		return err
	}
	changed := !s.Equal(ins.shape)
	ins.shape = s
	m.setInputs(r, inputs)
	if changed {
		m.propagateShape(r)
	}
	return nil
}

// Replace redirects all consumers of old to rep and returns the instruction
// now computing the value of old.
//
// If old is the last instruction of the module, old is changed in place
// into the identity of rep so that it still computes the result of the module.
// rep must be positioned before the consumers of old.
func (m *Module) Replace(old, rep Ref) (Ref, error) {
	m.get(old)
	m.checkInputs([]Ref{rep})
	if old == rep {
		return rep, nil
	}
	if old == m.Last() {
		return m.ReplaceInstruction(old, IdentityOp{}, rep)
	}
	for _, out := range old.Outputs() {
		if out == rep {
			continue
		}
		if err := m.ReplaceArgument(out, old, rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// MoveInstruction moves an instruction before pos.
// The caller is responsible for keeping inputs before their consumers.
func (m *Module) MoveInstruction(r, pos Ref) {
	m.get(r)
	m.checkPosition(pos)
	if r == pos {
		return
	}
	m.unlink(r.key)
	m.linkBefore(r.key, pos.key)
}

// ClearInputs removes all the inputs of an instruction.
func (m *Module) ClearInputs(r Ref) {
	m.get(r)
	m.setInputs(r, nil)
}

// RemoveInstruction removes an instruction without consumers from the module.
func (m *Module) RemoveInstruction(r Ref) {
	ins := m.get(r)
	if len(ins.outputs) > 0 {
		panicf("cannot remove %v: still used by %v", r, ins.outputs)
	}
	m.setInputs(r, nil)
	m.unlink(r.key)
	m.arena.Remove(r.key)
}

// RemoveInstructions removes all the instructions from first (inclusive) to last (exclusive).
// Instructions in the range may use each other but no instruction outside
// of the range can use them.
func (m *Module) RemoveInstructions(first, last Ref) {
	m.checkPosition(first)
	m.checkPosition(last)
	var rng []Ref
	for r := first; r != last; r = m.Next(r) {
		if r.IsEnd() {
			panicf("%v is not positioned after %v", last, first)
		}
		rng = append(rng, r)
	}
	for _, r := range rng {
		m.setInputs(r, nil)
	}
	for _, r := range rng {
		if outs := r.ins().outputs; len(outs) > 0 {
			panicf("cannot remove %v: still used by %v outside of the range", r, outs)
		}
	}
	for _, r := range rng {
		m.unlink(r.key)
		m.arena.Remove(r.key)
	}
}

func (m *Module) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module: %q\n", m.name)
	ids := make(map[Ref]int)
	for r := range m.All() {
		ids[r] = len(ids)
		ins := r.ins()
		fmt.Fprintf(&b, "%%%d = %s", ids[r], ins.op.String())
		if len(ins.inputs) > 0 {
			args := stringseq.Map(slices.Values(ins.inputs), func(in Ref) string {
				return fmt.Sprintf("%%%d", ids[in])
			})
			fmt.Fprintf(&b, "(%s)", stringseq.Join(args, ", "))
		}
		if len(ins.mods) > 0 {
			fmt.Fprintf(&b, " [%s]", stringseq.Join(stringseq.Map(slices.Values(ins.mods), (*Module).Name), ", "))
		}
		if !ins.shape.Empty() {
			fmt.Fprintf(&b, " -> %s", ins.shape.String())
		}
		b.WriteString("\n")
	}
	return b.String()
}
