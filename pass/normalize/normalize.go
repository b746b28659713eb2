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

// Package normalize rewrites operator attributes into a canonical form:
// positive axes and 4-element padding.
package normalize

import (
	"slices"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/match"
	"github.com/gx-org/graphc/op"
	"github.com/gx-org/graphc/pass"
)

// Pass normalizes the attributes of the instructions of a module.
type Pass struct{}

var _ pass.ModulePass = Pass{}

// Name of the pass.
func (Pass) Name() string { return "normalize_ops" }

// Apply the normalization to every instruction of a module.
func (Pass) Apply(m *ir.Module) error {
	return match.FindMatches(m,
		match.MakeRule("normalize_axes", match.Predicate(func(r ir.Ref) bool {
			_, ok := axes(r)
			return ok
		}), replace(axes)),
		match.MakeRule("expand_padding", match.Predicate(func(r ir.Ref) bool {
			_, ok := padding(r)
			return ok
		}), replace(padding)),
	)
}

func replace(normalize func(ir.Ref) (ir.Operation, bool)) func(*ir.Module, match.Result) error {
	return func(m *ir.Module, res match.Result) error {
		r := res.Result
		o, _ := normalize(r)
		_, err := m.ReplaceInstruction(r, o, r.Inputs()...)
		return err
	}
}

// positive returns the positive axes and true if an axis was negative.
func positive(axs []int, rank int) ([]int, bool) {
	if !slices.ContainsFunc(axs, func(a int) bool { return a < 0 }) {
		return axs, false
	}
	out, err := op.NormalizeAxes(axs, rank)
	if err != nil {
		return axs, false
	}
	return out, true
}

// axes returns the operation of an instruction with positive axes.
func axes(r ir.Ref) (ir.Operation, bool) {
	if r.NumInputs() == 0 {
		return nil, false
	}
	rank := r.Input(0).Shape().Rank()
	var ok bool
	switch o := r.Op().(type) {
	case op.Slice:
		o.Axes, ok = positive(o.Axes, rank)
		return o, ok
	case op.Squeeze:
		o.Axes, ok = positive(o.Axes, rank)
		return o, ok
	case op.Unsqueeze:
		o.Axes, ok = positive(o.Axes, rank+len(o.Axes))
		return o, ok
	case op.Concat:
		if o.Axis >= 0 {
			return o, false
		}
		axis, err := op.NormalizeAxis(o.Axis, rank)
		if err != nil {
			return o, false
		}
		o.Axis = axis
		return o, true
	}
	return nil, false
}

func expand(w op.Window) (op.Window, bool) {
	if len(w.Padding) == 4 {
		return w, false
	}
	p, err := op.ExpandPadding(w.Padding)
	if err != nil {
		return w, false
	}
	w.Padding = p
	return w, true
}

// padding returns the operation of an instruction with a 4-element padding.
func padding(r ir.Ref) (ir.Operation, bool) {
	var ok bool
	switch o := r.Op().(type) {
	case op.Convolution:
		o.Window, ok = expand(o.Window)
		return o, ok
	case op.Im2Col:
		o.Window, ok = expand(o.Window)
		return o, ok
	case op.Pooling:
		o.Window, ok = expand(o.Window)
		return o, ok
	}
	return nil, false
}
