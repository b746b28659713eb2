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

// Package insertpad replaces the asymmetric padding of spatial operators
// by an explicit pad instruction on their image input.
package insertpad

import (
	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/match"
	"github.com/gx-org/graphc/op"
	"github.com/gx-org/graphc/pass"
)

// Pass inserts pad instructions.
type Pass struct{}

var _ pass.ModulePass = Pass{}

// Name of the pass.
func (Pass) Name() string { return "insert_pad" }

// Apply the pass to a module.
func (Pass) Apply(m *ir.Module) error {
	return match.FindMatches(m, match.MakeRule("insert_pad",
		match.Name(op.Convolution{}.Name(), op.Im2Col{}.Name(), op.Pooling{}.Name()).With(
			match.Predicate(func(r ir.Ref) bool {
				_, _, ok := split(r.Op())
				return ok
			})),
		apply))
}

// split returns the operation without padding, the explicit padding, and
// true if the operation has an asymmetric padding. The padding value is 0.
func split(o ir.Operation) (ir.Operation, op.Pad, bool) {
	var w op.Window
	switch o := o.(type) {
	case op.Convolution:
		w = o.Window
	case op.Im2Col:
		w = o.Window
	case op.Pooling:
		// Average pooling excludes padding from the window size.
		if o.Mode != "max" {
			return nil, op.Pad{}, false
		}
		w = o.Window
	default:
		return nil, op.Pad{}, false
	}
	if len(w.Padding) != 4 || op.SymmetricPadding(w.Padding) {
		return nil, op.Pad{}, false
	}
	p := w.Padding
	pad := op.Pad{Pads: []int{0, 0, p[0], p[1], 0, 0, p[2], p[3]}}
	w.Padding = []int{0, 0, 0, 0}
	switch o := o.(type) {
	case op.Convolution:
		o.Window = w
		return o, pad, true
	case op.Im2Col:
		o.Window = w
		return o, pad, true
	case op.Pooling:
		o.Window = w
		return o, pad, true
	}
	return nil, op.Pad{}, false
}

func apply(m *ir.Module, res match.Result) error {
	r := res.Result
	o, pad, _ := split(r.Op())
	inputs := r.Inputs()
	if _, isPooling := o.(op.Pooling); isPooling {
		pad.Value = op.Lowest(inputs[0].Shape().DType)
	}
	padded, err := m.InsertInstruction(r, pad, inputs[0])
	if err != nil {
		return err
	}
	inputs[0] = padded
	_, err = m.ReplaceInstruction(r, o, inputs...)
	return err
}
