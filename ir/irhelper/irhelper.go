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

// Package irhelper provides operations and helper functions to build modules programmatically in tests.
package irhelper

import (
	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"

	"github.com/gx-org/graphc/ir"
)

type (
	// SumOp adds two arguments of the same shape.
	SumOp struct{}

	// MinusOp subtracts two arguments of the same shape.
	MinusOp struct{}

	// PassOp forwards the shape and the value of its first input, if any.
	PassOp struct{}

	// NopOp takes any number of inputs and produces no data.
	NopOp struct{}

	// RandOp is an impure nullary operation.
	RandOp struct{}
)

var (
	_ ir.Computer = SumOp{}
	_ ir.Computer = MinusOp{}
	_ ir.Computer = PassOp{}
	_ ir.Impure   = RandOp{}
)

func binaryShape(name string, inputs []ir.Shape) (ir.Shape, error) {
	if len(inputs) != 2 {
		return ir.Shape{}, errors.Errorf("%s requires 2 inputs but got %d", name, len(inputs))
	}
	if !inputs[0].SameLens(inputs[1]) || inputs[0].DType != inputs[1].DType {
		return ir.Shape{}, errors.Errorf("%s requires inputs of the same shape", name)
	}
	return inputs[0].AsStandard(), nil
}

func binaryCompute(out ir.Shape, args []ir.Argument, f func(x, y float64) float64) (ir.Argument, error) {
	x, y := args[0].Data(), args[1].Data()
	vals := make([]float64, len(x))
	for i := range vals {
		vals[i] = f(x[i], y[i])
	}
	return ir.NewArgument(out, vals)
}

// Name of the operator.
func (SumOp) Name() string { return "sum" }

// ComputeShape returns the shape of the inputs.
func (op SumOp) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return binaryShape(op.Name(), inputs)
}

// Compute the sum of two arguments.
func (SumOp) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	return binaryCompute(out, args, func(x, y float64) float64 { return x + y })
}

func (op SumOp) String() string { return op.Name() }

// Name of the operator.
func (MinusOp) Name() string { return "minus" }

// ComputeShape returns the shape of the inputs.
func (op MinusOp) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return binaryShape(op.Name(), inputs)
}

// Compute the difference of two arguments.
func (MinusOp) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	return binaryCompute(out, args, func(x, y float64) float64 { return x - y })
}

func (op MinusOp) String() string { return op.Name() }

// Name of the operator.
func (PassOp) Name() string { return "pass" }

// ComputeShape returns the shape of the first input.
func (PassOp) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if len(inputs) == 0 {
		return ir.EmptyShape(), nil
	}
	return inputs[0], nil
}

// Compute returns the first argument.
func (PassOp) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	if len(args) == 0 {
		return ir.EmptyArgument(), nil
	}
	return args[0], nil
}

func (op PassOp) String() string { return op.Name() }

// Name of the operator.
func (NopOp) Name() string { return "nop" }

// ComputeShape returns an empty shape.
func (NopOp) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return ir.EmptyShape(), nil
}

func (op NopOp) String() string { return op.Name() }

// Name of the operator.
func (RandOp) Name() string { return "rand" }

// ComputeShape returns a float32 scalar.
func (RandOp) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return ir.NewShape(dtype.Float32, 1), nil
}

// Impure returns true.
func (RandOp) Impure() bool { return true }

func (op RandOp) String() string { return op.Name() }

// Float32 adds a float32 scalar literal to a module.
func Float32(m *ir.Module, v float64) ir.Ref {
	return m.AddLiteral(ir.Scalar(dtype.Float32, v))
}

// Must panics if err is not nil and returns the reference otherwise.
func Must(r ir.Ref, err error) ir.Ref {
	if err != nil {
		panic(err)
	}
	return r
}

// Eval evaluates a module without parameters and returns its single result.
func Eval(m *ir.Module) (ir.Argument, error) {
	res, err := m.Eval(nil)
	if err != nil {
		return ir.Argument{}, err
	}
	if len(res) != 1 {
		return ir.Argument{}, errors.Errorf("module %q returned %d results", m.Name(), len(res))
	}
	return res[0], nil
}
