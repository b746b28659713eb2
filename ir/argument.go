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
	"math"
	"slices"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"
)

// Argument is a tensor stored in host memory.
//
// Values are always stored in the logical (row-major) order of the lens
// of the shape, independently of its strides. Integer and boolean values
// are stored as exact float64 values.
type Argument struct {
	shape  Shape
	values []float64
}

// NewArgument returns a new argument given a shape and its values.
// It returns an error if the number of values does not match the shape.
func NewArgument(s Shape, values []float64) (Argument, error) {
	if len(values) != s.Elements() {
		return Argument{}, errors.Errorf("shape %s has %d elements but got %d values", s.String(), s.Elements(), len(values))
	}
	return Argument{shape: s, values: values}, nil
}

// MustArgument returns a new argument and panics if the values do not match the shape.
func MustArgument(s Shape, values []float64) Argument {
	arg, err := NewArgument(s, values)
	if err != nil {
		panic(Internal(err))
	}
	return arg
}

// Zeros returns an argument with all values set to 0.
func Zeros(s Shape) Argument {
	return Fill(s, 0)
}

// Fill returns an argument with all values set to v.
func Fill(s Shape, v float64) Argument {
	values := make([]float64, s.Elements())
	for i := range values {
		values[i] = v
	}
	return Argument{shape: s.AsStandard(), values: values}
}

// Scalar returns a rank 1 argument with a single value.
func Scalar(dt dtype.DataType, v float64) Argument {
	return Argument{shape: NewShape(dt, 1), values: []float64{v}}
}

// Values returns an argument of rank 1 with the given values.
func Values[T ~int | ~int32 | ~int64 | ~float32 | ~float64](dt dtype.DataType, vals ...T) Argument {
	values := make([]float64, len(vals))
	for i, v := range vals {
		values[i] = float64(v)
	}
	return Argument{shape: NewShape(dt, len(vals)), values: values}
}

// EmptyArgument returns an argument with no data.
func EmptyArgument() Argument {
	return Argument{shape: EmptyShape()}
}

// Shape of the argument.
func (a Argument) Shape() Shape {
	return a.shape
}

// Data returns the values of the argument in logical order.
// The returned slice must not be modified.
func (a Argument) Data() []float64 {
	return a.values
}

// Ints returns the values of the argument converted to integers.
func (a Argument) Ints() []int {
	ints := make([]int, len(a.values))
	for i, v := range a.values {
		ints[i] = int(v)
	}
	return ints
}

// Empty returns true if the argument does not hold any data.
func (a Argument) Empty() bool {
	return a.shape.Empty()
}

// At returns the value at a multi-dimensional index.
func (a Argument) At(idx ...int) float64 {
	return a.values[a.shape.Index(idx)]
}

// Reshape returns the same values with a different shape.
func (a Argument) Reshape(s Shape) (Argument, error) {
	if s.Elements() != len(a.values) {
		return Argument{}, errors.Errorf("cannot reshape %s into %s", a.shape.String(), s.String())
	}
	return Argument{shape: s, values: a.values}, nil
}

// Equal returns true if both arguments have the same lens and values.
func (a Argument) Equal(other Argument) bool {
	return a.shape.SameLens(other.shape) && slices.Equal(a.values, other.values)
}

// AllClose returns true if both arguments have the same lens and all
// their values are within tol of each other.
func (a Argument) AllClose(other Argument, tol float64) bool {
	if !a.shape.SameLens(other.shape) {
		return false
	}
	for i, v := range a.values {
		if math.Abs(v-other.values[i]) > tol {
			return false
		}
	}
	return true
}

// String representation of the argument.
func (a Argument) String() string {
	if a.Empty() {
		return "{}"
	}
	ss := make([]string, len(a.values))
	for i, v := range a.values {
		ss[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(ss, ", ") + "}"
}
