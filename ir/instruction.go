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
	"slices"

	"github.com/gx-org/graphc/base/slotmap"
)

type instruction struct {
	op      Operation
	shape   Shape
	lit     Argument
	inputs  []Ref
	outputs []Ref
	mods    []*Module

	prev, next slotmap.Key
}

// Ref is a stable reference to an instruction in a module.
//
// A reference stays valid until its instruction is removed from the module.
// Accessing the instruction of an invalid reference is a contract violation.
type Ref struct {
	mod *Module
	key slotmap.Key
}

func (r Ref) ins() *instruction {
	if r.mod == nil || r.key.IsZero() {
		panicf("use of the end of a module as an instruction")
	}
	ins, ok := r.mod.arena.Get(r.key)
	if !ok {
		panicf("use of removed instruction at slot %d in module %q", r.key.Index(), r.mod.name)
	}
	return ins
}

// Module owning the instruction.
func (r Ref) Module() *Module {
	return r.mod
}

// IsEnd returns true if the reference is the end of a module (or the zero reference).
func (r Ref) IsEnd() bool {
	return r.key.IsZero()
}

// Valid returns true if the reference points to an instruction of its module.
func (r Ref) Valid() bool {
	return r.mod != nil && r.mod.HasInstruction(r)
}

// Name of the operator applied by the instruction.
func (r Ref) Name() string {
	return r.ins().op.Name()
}

// Op returns the operation applied by the instruction.
func (r Ref) Op() Operation {
	return r.ins().op
}

// Shape of the result of the instruction.
func (r Ref) Shape() Shape {
	return r.ins().shape
}

// Inputs of the instruction, in order.
func (r Ref) Inputs() []Ref {
	return slices.Clone(r.ins().inputs)
}

// NumInputs returns the number of inputs.
func (r Ref) NumInputs() int {
	return len(r.ins().inputs)
}

// Input returns the i-th input.
func (r Ref) Input(i int) Ref {
	return r.ins().inputs[i]
}

// Outputs returns the instructions consuming the result of the instruction.
// Each consumer appears once, in the order in which it started to consume the result.
func (r Ref) Outputs() []Ref {
	return slices.Clone(r.ins().outputs)
}

// NumOutputs returns the number of consumers.
func (r Ref) NumOutputs() int {
	return len(r.ins().outputs)
}

// Literal returns the value embedded in a literal instruction.
func (r Ref) Literal() (Argument, bool) {
	ins := r.ins()
	if ins.op.Name() != LiteralName {
		return Argument{}, false
	}
	return ins.lit, true
}

// Modules returns the modules owned by a control flow instruction.
func (r Ref) Modules() []*Module {
	return slices.Clone(r.ins().mods)
}

func (r Ref) String() string {
	if !r.Valid() {
		return "@end"
	}
	return fmt.Sprintf("%s#%d", r.Name(), r.key.Index())
}

func (ins *instruction) addOutput(out Ref) {
	if !slices.Contains(ins.outputs, out) {
		ins.outputs = append(ins.outputs, out)
	}
}

func (ins *instruction) removeOutput(out Ref) {
	ins.outputs = slices.DeleteFunc(ins.outputs, func(o Ref) bool { return o == out })
}
