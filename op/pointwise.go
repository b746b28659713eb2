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

	"github.com/pkg/errors"

	"github.com/gx-org/graphc/backend/kernels"
	"github.com/gx-org/graphc/ir"
)

// Undefined is a placeholder for an optional input which has not been provided.
type Undefined struct{}

var _ ir.Computer = Undefined{}

// Name of the operator.
func (Undefined) Name() string { return "undefined" }

// ComputeShape returns an empty shape.
func (op Undefined) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 0); err != nil {
		return ir.Shape{}, err
	}
	return ir.EmptyShape(), nil
}

// Compute returns an empty argument.
func (Undefined) Compute(ir.Shape, []ir.Argument) (ir.Argument, error) {
	return ir.EmptyArgument(), nil
}

func (op Undefined) String() string { return op.Name() }

// IsUndefined returns true if an instruction is an undefined placeholder.
func IsUndefined(r ir.Ref) bool {
	return r.Name() == "undefined"
}

var unaryKinds = []string{"tanh", "sigmoid", "relu", "exp", "neg"}

// Unary is an elementwise operator with a single input.
type Unary struct {
	Kind string
}

var _ ir.Computer = Unary{}

// Tanh returns the hyperbolic tangent operator.
func Tanh() Unary { return Unary{Kind: "tanh"} }

// Sigmoid returns the logistic function operator.
func Sigmoid() Unary { return Unary{Kind: "sigmoid"} }

// Relu returns the rectified linear unit operator.
func Relu() Unary { return Unary{Kind: "relu"} }

// Name of the operator.
func (op Unary) Name() string { return op.Kind }

// ComputeShape returns the standard shape of the input.
func (op Unary) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	if !slices.Contains(unaryKinds, op.Kind) {
		return ir.Shape{}, errors.Errorf("unknown unary operator %q", op.Kind)
	}
	return inputs[0].AsStandard(), nil
}

// Compute applies the function to every element.
func (op Unary) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	f, ok := kernels.Activation(op.Kind)
	if !ok {
		return ir.Argument{}, errors.Errorf("no kernel for %q", op.Kind)
	}
	vals, err := kernels.Unary(args[0].Data(), f)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, kernels.Convert(vals, out.DType))
}

// Attributes of the operator.
func (Unary) Attributes() map[string]any { return pointwise }

func (op Unary) String() string { return op.Name() }

var binaryKinds = []string{"add", "sub", "mul", "div"}

// Binary is an elementwise operator with two inputs of the same shape.
type Binary struct {
	Kind string
}

var _ ir.Computer = Binary{}

// Add returns the addition operator.
func Add() Binary { return Binary{Kind: "add"} }

// Sub returns the subtraction operator.
func Sub() Binary { return Binary{Kind: "sub"} }

// Mul returns the multiplication operator.
func Mul() Binary { return Binary{Kind: "mul"} }

// Div returns the division operator.
func Div() Binary { return Binary{Kind: "div"} }

// Name of the operator.
func (op Binary) Name() string { return op.Kind }

// ComputeShape checks that both inputs have the same type and lengths.
func (op Binary) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 2); err != nil {
		return ir.Shape{}, err
	}
	x, y := inputs[0], inputs[1]
	if x.DType != y.DType {
		return ir.Shape{}, errors.Errorf("type %s and %s differ", x.DType, y.DType)
	}
	if !x.SameLens(y) {
		return ir.Shape{}, errors.Errorf("lengths %v and %v differ", x.Lens, y.Lens)
	}
	return x.AsStandard(), nil
}

// Compute applies the operator to every pair of elements.
func (op Binary) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	var f func(x, y float64) float64
	switch op.Kind {
	case "add":
		f = kernels.Add
	case "sub":
		f = kernels.Sub
	case "mul":
		f = kernels.Mul
	case "div":
		f = kernels.Div
	default:
		return ir.Argument{}, errors.Errorf("no kernel for %q", op.Kind)
	}
	vals, err := kernels.Binary(args[0].Data(), args[1].Data(), f)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, kernels.Convert(vals, out.DType))
}

// Attributes of the operator.
func (Binary) Attributes() map[string]any { return pointwise }

func (op Binary) String() string { return op.Name() }

// Dot is a (batched) matrix product.
type Dot struct{}

var _ ir.Computer = Dot{}

// Name of the operator.
func (Dot) Name() string { return "dot" }

// ComputeShape returns [batch..., m, n] for inputs [batch..., m, k] and [batch..., k, n].
func (op Dot) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 2); err != nil {
		return ir.Shape{}, err
	}
	a, b := inputs[0], inputs[1]
	if a.DType != b.DType {
		return ir.Shape{}, errors.Errorf("type %s and %s differ", a.DType, b.DType)
	}
	rank := a.Rank()
	if rank < 2 || b.Rank() != rank {
		return ir.Shape{}, errors.Errorf("inputs must have the same rank, at least 2")
	}
	if !slices.Equal(a.Lens[:rank-2], b.Lens[:rank-2]) {
		return ir.Shape{}, errors.Errorf("batch lengths %v and %v differ", a.Lens[:rank-2], b.Lens[:rank-2])
	}
	if a.Lens[rank-1] != b.Lens[rank-2] {
		return ir.Shape{}, errors.Errorf("inner lengths %d and %d differ", a.Lens[rank-1], b.Lens[rank-2])
	}
	lens := slices.Clone(a.Lens)
	lens[rank-1] = b.Lens[rank-1]
	return ir.NewShape(a.DType, lens...), nil
}

// Compute the matrix product.
func (Dot) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	vals, err := kernels.Dot(args[0].Data(), args[1].Data(), args[0].Shape().Lens, args[1].Shape().Lens)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, kernels.Convert(vals, out.DType))
}

func (op Dot) String() string { return op.Name() }
