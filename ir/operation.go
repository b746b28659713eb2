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
	"strings"

	"github.com/pkg/errors"
)

type (
	// Operation applied by an instruction.
	Operation interface {
		// Name of the operator.
		Name() string
		// ComputeShape returns the shape of the result given the shapes of the inputs.
		ComputeShape(inputs []Shape) (Shape, error)
		// String returns the canonical representation of the operation,
		// including its attributes.
		String() string
	}

	// Computer is an operation which can be evaluated on the host.
	Computer interface {
		Operation
		Compute(out Shape, args []Argument) (Argument, error)
	}

	// ModuleShaper is an operation owning sub-modules (control flow)
	// whose shape depends on the sub-modules.
	ModuleShaper interface {
		Operation
		ComputeShapeWithModules(inputs []Shape, mods []*Module) (Shape, error)
	}

	// RunModule evaluates a module given its parameters.
	RunModule func(mod *Module, params map[string]Argument) ([]Argument, error)

	// ModuleComputer is an operation evaluating sub-modules.
	ModuleComputer interface {
		Operation
		ComputeModules(out Shape, args []Argument, mods []*Module, run RunModule) (Argument, error)
	}

	// Impure is implemented by operations which must never be merged
	// with another instruction, for example because they are not deterministic.
	Impure interface {
		Impure() bool
	}

	// Attributed is implemented by operations declaring attributes,
	// for example "pointwise".
	Attributed interface {
		Attributes() map[string]any
	}
)

// IsImpure returns true if an operation is impure.
func IsImpure(op Operation) bool {
	im, ok := op.(Impure)
	return ok && im.Impure()
}

// HasAttribute returns true if an operation declares an attribute.
func HasAttribute(op Operation, name string) bool {
	attr, ok := op.(Attributed)
	if !ok {
		return false
	}
	_, has := attr.Attributes()[name]
	return has
}

// Builtin operators names.
const (
	LiteralName = "@literal"
	ParamName   = "@param"
	ReturnName  = "@return"
)

// IsBuiltin returns true if the name of an operator is a builtin name.
func IsBuiltin(name string) bool {
	return strings.HasPrefix(name, "@")
}

// LiteralOp is the operator of instructions embedding a constant.
type LiteralOp struct{}

// Name of the operator.
func (LiteralOp) Name() string { return LiteralName }

// ComputeShape returns an error: the shape of a literal is the shape of its value.
func (LiteralOp) ComputeShape(inputs []Shape) (Shape, error) {
	return Shape{}, errors.Errorf("the shape of a literal is set by its value")
}

func (LiteralOp) String() string { return LiteralName }

// ParamOp is the operator of instructions bound to an argument
// when a module is evaluated.
type ParamOp struct {
	Param string
}

// Name of the operator.
func (ParamOp) Name() string { return ParamName }

// ComputeShape returns an error: the shape of a parameter is set when the parameter is created.
func (ParamOp) ComputeShape(inputs []Shape) (Shape, error) {
	return Shape{}, errors.Errorf("the shape of a parameter is set by the caller")
}

func (op ParamOp) String() string { return fmt.Sprintf("%s:%s", ParamName, op.Param) }

// ReturnOp marks the outputs of a module.
type ReturnOp struct{}

// Name of the operator.
func (ReturnOp) Name() string { return ReturnName }

// ComputeShape returns an empty shape.
func (ReturnOp) ComputeShape(inputs []Shape) (Shape, error) {
	return EmptyShape(), nil
}

func (ReturnOp) String() string { return ReturnName }

// IdentityName is the name of the identity operator.
const IdentityName = "identity"

// IdentityOp forwards its first input.
type IdentityOp struct{}

// Name of the operator.
func (IdentityOp) Name() string { return IdentityName }

// ComputeShape returns the shape of the first input.
func (IdentityOp) ComputeShape(inputs []Shape) (Shape, error) {
	if len(inputs) == 0 {
		return Shape{}, errors.Errorf("identity requires at least one input")
	}
	return inputs[0], nil
}

// Compute returns the first argument.
func (IdentityOp) Compute(out Shape, args []Argument) (Argument, error) {
	return args[0], nil
}

func (IdentityOp) String() string { return IdentityName }
