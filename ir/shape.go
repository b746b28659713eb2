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
	"slices"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
)

// Shape of the result of an instruction.
//
// Lens are the length of each axis. Strides give, for each axis, the
// distance between two consecutive elements in a packed buffer. Operators
// changing only the layout of a tensor (transpose, broadcast, slice) only
// change the strides, such that the logical order of the elements is
// always derived from Lens.
type Shape struct {
	DType   dtype.DataType
	Lens    []int
	Strides []int
}

// NewShape returns a standard (packed row-major) shape.
func NewShape(dt dtype.DataType, lens ...int) Shape {
	return Shape{
		DType:   dt,
		Lens:    slices.Clone(lens),
		Strides: StandardStrides(lens),
	}
}

// NewShapeWithStrides returns a shape with explicit strides.
func NewShapeWithStrides(dt dtype.DataType, lens, strides []int) Shape {
	return Shape{
		DType:   dt,
		Lens:    slices.Clone(lens),
		Strides: slices.Clone(strides),
	}
}

// StandardStrides returns the strides of a packed row-major layout.
func StandardStrides(lens []int) []int {
	strides := make([]int, len(lens))
	stride := 1
	for i := len(lens) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= max(lens[i], 1)
	}
	return strides
}

// Backend returns the shape as understood by the backend.
func (s Shape) Backend() *shape.Shape {
	return &shape.Shape{
		DType:       s.DType,
		AxisLengths: s.Lens,
	}
}

// Elements returns the number of elements in the shape.
// An empty shape has no element.
func (s Shape) Elements() int {
	if s.Empty() {
		return 0
	}
	return s.Backend().Size()
}

// Empty returns true if the shape does not describe any data,
// for example the shape of a return instruction.
func (s Shape) Empty() bool {
	return s.DType == dtype.Invalid
}

// Scalar returns true if the shape has a single element.
func (s Shape) Scalar() bool {
	return !s.Empty() && s.Elements() == 1
}

// Rank returns the number of axes.
func (s Shape) Rank() int {
	return len(s.Lens)
}

// Standard returns true if the strides are packed and row-major.
func (s Shape) Standard() bool {
	if s.Empty() {
		return true
	}
	if s.Broadcasted() {
		return false
	}
	want := StandardStrides(s.Lens)
	for i, l := range s.Lens {
		if l == 1 {
			// The stride of an axis of length 1 is never used.
			continue
		}
		if s.Strides[i] != want[i] {
			return false
		}
	}
	return true
}

// Broadcasted returns true if an axis of the shape is a broadcast,
// that is if an axis has a zero stride.
func (s Shape) Broadcasted() bool {
	for i, st := range s.Strides {
		if st == 0 && s.Lens[i] > 1 {
			return true
		}
	}
	return false
}

// Transposed returns true if the strides are not in decreasing order.
func (s Shape) Transposed() bool {
	if s.Broadcasted() {
		return false
	}
	prev := -1
	for i, st := range s.Strides {
		if s.Lens[i] == 1 {
			continue
		}
		if prev >= 0 && st > prev {
			return true
		}
		prev = st
	}
	return false
}

// AsStandard returns a standard shape with the same type and lens.
func (s Shape) AsStandard() Shape {
	if s.Empty() {
		return s
	}
	return NewShape(s.DType, s.Lens...)
}

// WithType returns a standard shape with a different element type.
func (s Shape) WithType(dt dtype.DataType) Shape {
	return NewShape(dt, s.Lens...)
}

// Equal returns true if both shapes have the same type, lens, and strides.
func (s Shape) Equal(other Shape) bool {
	return s.DType == other.DType &&
		slices.Equal(s.Lens, other.Lens) &&
		slices.Equal(s.Strides, other.Strides)
}

// SameLens returns true if both shapes have the same type and lens.
func (s Shape) SameLens(other Shape) bool {
	return s.DType == other.DType && slices.Equal(s.Lens, other.Lens)
}

// Multi returns the multi-dimensional index of the i-th element in logical order.
func (s Shape) Multi(i int) []int {
	idx := make([]int, len(s.Lens))
	for axis := len(s.Lens) - 1; axis >= 0; axis-- {
		l := s.Lens[axis]
		if l == 0 {
			continue
		}
		idx[axis] = i % l
		i /= l
	}
	return idx
}

// Index returns the logical position of an element given its multi-dimensional index.
func (s Shape) Index(idx []int) int {
	pos := 0
	for axis, l := range s.Lens {
		pos = pos*l + idx[axis]
	}
	return pos
}

func (s Shape) String() string {
	if s.Empty() {
		return "{}"
	}
	return fmt.Sprintf("%s, %s, %s", s.DType.String(), formatInts(s.Lens), formatInts(s.Strides))
}

func formatInts(v []int) string {
	ss := make([]string, len(v))
	for i, x := range v {
		ss[i] = fmt.Sprint(x)
	}
	return "{" + strings.Join(ss, ", ") + "}"
}

// EmptyShape returns the shape of an instruction producing no data.
func EmptyShape() Shape {
	return Shape{DType: dtype.Invalid}
}
