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
	"github.com/gx-org/graphc/internal/logutil"
	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/pass"
)

// Pass numbers the values of modules. It does not modify the module.
type Pass struct {
	// Registry of encoders. The default registry is used if nil.
	Registry *Registry
	// Table of the last module processed by the pass.
	Table *Table
}

var _ pass.ModulePass = (*Pass)(nil)

// Name of the pass.
func (*Pass) Name() string { return "value_numbering" }

// Apply numbers the values of a module.
func (p *Pass) Apply(m *ir.Module) error {
	reg := p.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	p.Table = reg.Run(m)
	if logutil.TraceEnabled() {
		logutil.Trace("value numbering", "module", m.Name(), "instructions", m.Size(), "values", p.Table.NumValues(), "classes", len(p.Table.Classes()))
	}
	return nil
}
