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

package op

import (
	"slices"
	"sort"

	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"

	"github.com/gx-org/graphc/ir"
)

// Multinomial samples classes given cumulative distributions [batch, classes]
// and uniform random values [batch, samples].
//
// The random values are drawn by another instruction, so two multinomial
// instructions are never considered equivalent.
type Multinomial struct {
	DType dtype.DataType
}

var (
	_ ir.Computer = Multinomial{}
	_ ir.Impure   = Multinomial{}
)

// Name of the operator.
func (Multinomial) Name() string { return "multinomial" }

func (op Multinomial) dtype() dtype.DataType {
	if op.DType == dtype.Invalid {
		return dtype.Int32
	}
	return op.DType
}

// ComputeShape returns [batch, samples].
func (op Multinomial) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 2); err != nil {
		return ir.Shape{}, err
	}
	cdf, dist := inputs[0], inputs[1]
	if cdf.Rank() != 2 || dist.Rank() != 2 {
		return ir.Shape{}, errors.Errorf("inputs must have rank 2")
	}
	return ir.NewShape(op.dtype(), cdf.Lens[0], dist.Lens[1]), nil
}

// Compute the index of the first class whose cumulative probability
// is above every random value scaled by the total probability.
func (Multinomial) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	cdf, dist := args[0].Data(), args[1].Data()
	classes := args[0].Shape().Lens[1]
	samples := out.Lens[1]
	vals := make([]float64, out.Elements())
	for i := range vals {
		row := cdf[(i/samples)*classes : (i/samples+1)*classes]
		target := dist[i] * row[classes-1]
		vals[i] = float64(sort.Search(classes, func(c int) bool { return row[c] > target }))
	}
	return ir.NewArgument(out, vals)
}

// Impure returns true.
func (Multinomial) Impure() bool { return true }

func (op Multinomial) String() string { return attrs(op.Name(), "dtype", op.dtype()) }

// If evaluates one of its two sub-modules given a boolean condition.
//
// The first input is the condition. The other inputs are bound to the
// parameters of the sub-modules in declaration order.
type If struct{}

var (
	_ ir.ModuleShaper   = If{}
	_ ir.ModuleComputer = If{}
)

// Name of the operator.
func (If) Name() string { return "if" }

// ComputeShape fails: the shape of an if depends on its sub-modules.
func (op If) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return ir.Shape{}, errors.Errorf("%s requires sub-modules", op.Name())
}

func checkModuleParams(mod *ir.Module, inputs []ir.Shape) error {
	names := mod.ParameterNames()
	if len(names) != len(inputs) {
		return errors.Errorf("module %q has %d parameters but got %d inputs", mod.Name(), len(names), len(inputs))
	}
	shapes := mod.ParameterShapes()
	for i, name := range names {
		if !shapes[name].SameLens(inputs[i]) {
			return errors.Errorf("module %q: parameter %q has shape {%s} but got {%s}", mod.Name(), name, shapes[name], inputs[i])
		}
	}
	return nil
}

// ComputeShapeWithModules returns the shape of the result of both sub-modules.
func (op If) ComputeShapeWithModules(inputs []ir.Shape, mods []*ir.Module) (ir.Shape, error) {
	if err := checkMinArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	if len(mods) != 2 {
		return ir.Shape{}, errors.Errorf("%s requires 2 sub-modules but got %d", op.Name(), len(mods))
	}
	if !inputs[0].Scalar() {
		return ir.Shape{}, errors.Errorf("condition must be a scalar but got {%s}", inputs[0])
	}
	var outs [][]ir.Shape
	for _, mod := range mods {
		if err := checkModuleParams(mod, inputs[1:]); err != nil {
			return ir.Shape{}, err
		}
		outs = append(outs, mod.OutputShapes())
	}
	if len(outs[0]) != 1 {
		return ir.Shape{}, errors.Errorf("module %q must return a single value but returns %d", mods[0].Name(), len(outs[0]))
	}
	if !slices.EqualFunc(outs[0], outs[1], ir.Shape.SameLens) {
		return ir.Shape{}, errors.Errorf("modules %q and %q return different shapes", mods[0].Name(), mods[1].Name())
	}
	return outs[0][0].AsStandard(), nil
}

// ComputeModules evaluates the selected sub-module.
func (op If) ComputeModules(out ir.Shape, args []ir.Argument, mods []*ir.Module, run ir.RunModule) (ir.Argument, error) {
	mod := mods[1]
	if args[0].Data()[0] != 0 {
		mod = mods[0]
	}
	params := make(map[string]ir.Argument)
	for i, name := range mod.ParameterNames() {
		params[name] = args[i+1]
	}
	res, err := run(mod, params)
	if err != nil {
		return ir.Argument{}, err
	}
	return res[0].Reshape(out)
}

func (op If) String() string { return op.Name() }

// Unknown is a placeholder for an operator which is not supported.
// Its result has the shape Out.
type Unknown struct {
	OpName string
	Out    ir.Shape
}

var _ ir.Impure = Unknown{}

// Name of the operator.
func (op Unknown) Name() string { return op.OpName }

// ComputeShape returns Out.
func (op Unknown) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return op.Out, nil
}

// Impure returns true: the behavior of an unsupported operator is not known.
func (Unknown) Impure() bool { return true }

func (op Unknown) String() string { return attrs("unknown", "name", op.OpName, "out", op.Out) }
