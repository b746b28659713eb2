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

// Package dce removes instructions whose results are never used.
package dce

import (
	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/pass"
)

// Pass removes dead instructions from modules, and unreachable modules from programs.
//
// The last instruction of a module is always live. Parameters are never removed.
// Instructions producing no data are kept because they are executed for
// their effects, unless they are builtins, undefined or identity.
type Pass struct{}

var (
	_ pass.ModulePass  = Pass{}
	_ pass.ProgramPass = Pass{}
)

// Name of the pass.
func (Pass) Name() string { return "dead_code_elimination" }

func keepEffects(r ir.Ref) bool {
	if r.Shape().Elements() > 0 {
		return false
	}
	switch name := r.Name(); {
	case ir.IsBuiltin(name):
		return false
	case name == "undefined" || name == ir.IdentityName:
		return false
	}
	return true
}

// Apply removes the dead instructions of a module.
func (Pass) Apply(m *ir.Module) error {
	if m.Size() == 0 {
		return nil
	}
	last := m.Last()
	dead := make(map[ir.Ref]bool)
	var order []ir.Ref
	for _, r := range m.Instructions() {
		if r == last {
			break
		}
		if dead[r] || keepEffects(r) {
			continue
		}
		work := []ir.Ref{r}
		for len(work) > 0 {
			leaf := work[len(work)-1]
			work = work[:len(work)-1]
			if leaf == last || dead[leaf] || leaf.NumOutputs() > 0 {
				continue
			}
			inputs := leaf.Inputs()
			m.ClearInputs(leaf)
			if leaf.Name() != ir.ParamName {
				dead[leaf] = true
				order = append(order, leaf)
			}
			work = append(work, inputs...)
		}
	}
	for _, r := range order {
		m.RemoveInstruction(r)
	}
	return nil
}

// ApplyProgram removes the modules which cannot be reached from the main module.
func (Pass) ApplyProgram(p *ir.Program) error {
	p.RemoveUnusedModules()
	return nil
}
