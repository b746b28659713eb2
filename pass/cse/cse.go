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

// Package cse merges instructions computing the same value.
package cse

import (
	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/pass"
	"github.com/gx-org/graphc/pass/vn"
)

// Pass replaces the uses of every instruction by the first instruction
// computing the same value. Replaced instructions are left for dead-code elimination.
type Pass struct {
	// Registry of value numbering encoders. The default registry is used if nil.
	Registry *vn.Registry
}

var _ pass.ModulePass = Pass{}

// Name of the pass.
func (Pass) Name() string { return "common_subexpression_elimination" }

// Apply merges the equivalent instructions of a module.
func (p Pass) Apply(m *ir.Module) error {
	reg := p.Registry
	if reg == nil {
		reg = vn.NewRegistry()
	}
	table := reg.Run(m)
	for _, class := range table.Classes() {
		first := class[0]
		for _, r := range class[1:] {
			if _, err := m.Replace(r, first); err != nil {
				return err
			}
		}
	}
	return nil
}
