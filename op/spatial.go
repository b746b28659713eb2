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
	"math"

	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"

	"github.com/gx-org/graphc/backend/kernels"
	"github.com/gx-org/graphc/ir"
)

// Window attributes of spatial operators over NCHW images.
//
// Padding has either 2 elements (symmetric padding per spatial axis) or
// 4 elements [top, left, bottom, right].
type Window struct {
	Padding  []int
	Stride   []int
	Dilation []int
}

// DefaultWindow returns a window without padding with unit strides and dilations.
func DefaultWindow() Window {
	return Window{
		Padding:  []int{0, 0, 0, 0},
		Stride:   []int{1, 1},
		Dilation: []int{1, 1},
	}
}

// ExpandPadding returns a 4-element padding.
func ExpandPadding(padding []int) ([]int, error) {
	switch len(padding) {
	case 0:
		return []int{0, 0, 0, 0}, nil
	case 2:
		return []int{padding[0], padding[1], padding[0], padding[1]}, nil
	case 4:
		return padding, nil
	}
	return nil, errors.Errorf("padding %v must have 2 or 4 elements", padding)
}

// SymmetricPadding returns true if the padding before and after every axis is the same.
func SymmetricPadding(padding []int) bool {
	if len(padding) != 4 {
		return true
	}
	return padding[0] == padding[2] && padding[1] == padding[3]
}

func (w Window) kernel() (kernels.Window, error) {
	var win kernels.Window
	padding, err := ExpandPadding(w.Padding)
	if err != nil {
		return win, err
	}
	copy(win.Padding[:], padding)
	win.Stride = [2]int{1, 1}
	win.Dilation = [2]int{1, 1}
	if len(w.Stride) != 0 && len(w.Stride) != 2 {
		return win, errors.Errorf("stride %v must have 2 elements", w.Stride)
	}
	if len(w.Dilation) != 0 && len(w.Dilation) != 2 {
		return win, errors.Errorf("dilation %v must have 2 elements", w.Dilation)
	}
	copy(win.Stride[:], w.Stride)
	copy(win.Dilation[:], w.Dilation)
	return win, nil
}

// Canonical returns the window with a 4-element padding and explicit
// strides and dilations.
func (w Window) Canonical() (Window, error) {
	win, err := w.kernel()
	if err != nil {
		return Window{}, err
	}
	return Window{
		Padding:  win.Padding[:],
		Stride:   win.Stride[:],
		Dilation: win.Dilation[:],
	}, nil
}

func (w Window) attrs() []any {
	return []any{"padding", ints(w.Padding), "stride", ints(w.Stride), "dilation", ints(w.Dilation)}
}

func checkImage(name string, in ir.Shape) error {
	if in.Rank() != 4 {
		return errors.Errorf("%s only supports 2D NCHW images but got lengths %v", name, in.Lens)
	}
	return nil
}

// Convolution is a grouped 2D convolution.
type Convolution struct {
	Window
	Group int
}

var _ ir.Computer = Convolution{}

// Name of the operator.
func (Convolution) Name() string { return "convolution" }

// ComputeShape returns [n, filters, out_h, out_w].
func (op Convolution) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 2); err != nil {
		return ir.Shape{}, err
	}
	x, w := inputs[0], inputs[1]
	if err := checkImage(op.Name(), x); err != nil {
		return ir.Shape{}, err
	}
	if w.Rank() != 4 {
		return ir.Shape{}, errors.Errorf("weights must have rank 4 but got %v", w.Lens)
	}
	group := max(op.Group, 1)
	if x.Lens[1] != w.Lens[1]*group {
		return ir.Shape{}, errors.Errorf("%d input channels do not match %d weight channels in %d groups", x.Lens[1], w.Lens[1], group)
	}
	win, err := op.kernel()
	if err != nil {
		return ir.Shape{}, err
	}
	return ir.NewShape(x.DType, x.Lens[0], w.Lens[0], win.OutputSize(0, x.Lens[2], w.Lens[2]), win.OutputSize(1, x.Lens[3], w.Lens[3])), nil
}

// Compute the convolution.
func (op Convolution) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	win, err := op.kernel()
	if err != nil {
		return ir.Argument{}, err
	}
	vals, _, err := kernels.Convolution(args[0].Data(), args[1].Data(), args[0].Shape().Lens, args[1].Shape().Lens, win, op.Group)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, kernels.Convert(vals, out.DType))
}

func (op Convolution) String() string {
	return attrs(op.Name(), append(op.Window.attrs(), "group", op.Group)...)
}

// Im2Col unrolls the convolution windows of an image into rows.
// Inputs are the image and the weights (only used for the kernel size).
type Im2Col struct {
	Window
}

var _ ir.Computer = Im2Col{}

// Name of the operator.
func (Im2Col) Name() string { return "im2col" }

// ComputeShape returns [out_h*out_w, c*kh*kw].
func (op Im2Col) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 2); err != nil {
		return ir.Shape{}, err
	}
	x, w := inputs[0], inputs[1]
	if err := checkImage(op.Name(), x); err != nil {
		return ir.Shape{}, err
	}
	if w.Rank() != 4 {
		return ir.Shape{}, errors.Errorf("weights must have rank 4 but got %v", w.Lens)
	}
	win, err := op.kernel()
	if err != nil {
		return ir.Shape{}, err
	}
	oh, ow := win.OutputSize(0, x.Lens[2], w.Lens[2]), win.OutputSize(1, x.Lens[3], w.Lens[3])
	return ir.NewShape(x.DType, oh*ow, x.Lens[1]*w.Lens[2]*w.Lens[3]), nil
}

// Compute the unrolled windows of the first image.
func (op Im2Col) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	win, err := op.kernel()
	if err != nil {
		return ir.Argument{}, err
	}
	wLens := args[1].Shape().Lens
	vals, _, err := kernels.Im2Col(args[0].Data(), args[0].Shape().Lens, wLens[2], wLens[3], win)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, vals)
}

func (op Im2Col) String() string { return attrs(op.Name(), op.Window.attrs()...) }

// Pooling computes the maximum or the average of every window.
type Pooling struct {
	Window
	Mode    string
	Lengths []int
}

var _ ir.Computer = Pooling{}

// Name of the operator.
func (Pooling) Name() string { return "pooling" }

// ComputeShape returns [n, c, out_h, out_w].
func (op Pooling) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	x := inputs[0]
	if err := checkImage(op.Name(), x); err != nil {
		return ir.Shape{}, err
	}
	if op.Mode != "max" && op.Mode != "average" {
		return ir.Shape{}, errors.Errorf("unknown pooling mode %q", op.Mode)
	}
	if len(op.Lengths) != 2 {
		return ir.Shape{}, errors.Errorf("pooling lengths %v must have 2 elements", op.Lengths)
	}
	win, err := op.kernel()
	if err != nil {
		return ir.Shape{}, err
	}
	return ir.NewShape(x.DType, x.Lens[0], x.Lens[1], win.OutputSize(0, x.Lens[2], op.Lengths[0]), win.OutputSize(1, x.Lens[3], op.Lengths[1])), nil
}

// Compute the pooling.
func (op Pooling) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	win, err := op.kernel()
	if err != nil {
		return ir.Argument{}, err
	}
	vals, _, err := kernels.Pooling(args[0].Data(), args[0].Shape().Lens, op.Mode, op.Lengths[0], op.Lengths[1], win)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, vals)
}

func (op Pooling) String() string {
	return attrs(op.Name(), append(op.Window.attrs(), "mode", op.Mode, "lengths", ints(op.Lengths))...)
}

// Lowest returns the lowest finite value of an element type.
func Lowest(dt dtype.DataType) float64 {
	switch dt {
	case dtype.Float32:
		return -math.MaxFloat32
	case dtype.Int32:
		return math.MinInt32
	case dtype.Int64:
		return math.MinInt64
	case dtype.Uint32, dtype.Uint64, dtype.Bool:
		return 0
	}
	return -math.MaxFloat64
}
