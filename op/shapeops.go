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
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/gx-org/graphc/backend/kernels"
	"github.com/gx-org/graphc/ir"
)

func ints(v []int) string {
	return fmt.Sprint(v)
}

// Concat concatenates its inputs along an axis.
type Concat struct {
	Axis int
}

var _ ir.Computer = Concat{}

// Name of the operator.
func (Concat) Name() string { return "concat" }

// ComputeShape checks that all inputs have the same lengths except along the axis.
func (op Concat) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkMinArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	first := inputs[0]
	axis, err := NormalizeAxis(op.Axis, first.Rank())
	if err != nil {
		return ir.Shape{}, err
	}
	lens := slices.Clone(first.Lens)
	lens[axis] = 0
	for i, in := range inputs {
		if in.DType != first.DType || in.Rank() != first.Rank() {
			return ir.Shape{}, errors.Errorf("input %d has type %s and rank %d but want %s and %d", i, in.DType, in.Rank(), first.DType, first.Rank())
		}
		for a, l := range in.Lens {
			if a != axis && l != first.Lens[a] {
				return ir.Shape{}, errors.Errorf("input %d has length %d along axis %d but want %d", i, l, a, first.Lens[a])
			}
		}
		lens[axis] += in.Lens[axis]
	}
	return ir.NewShape(first.DType, lens...), nil
}

// Compute the concatenation.
func (op Concat) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	axis, err := NormalizeAxis(op.Axis, out.Rank())
	if err != nil {
		return ir.Argument{}, err
	}
	xs := make([][]float64, len(args))
	lens := make([][]int, len(args))
	for i, arg := range args {
		xs[i] = arg.Data()
		lens[i] = arg.Shape().Lens
	}
	vals, err := kernels.Concat(xs, lens, axis)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, vals)
}

func (op Concat) String() string { return attrs(op.Name(), "axis", op.Axis) }

// Slice extracts [Starts, Ends) along Axes.
// Negative starts and ends count from the end of an axis. Values are clamped.
type Slice struct {
	Axes, Starts, Ends []int
}

var _ ir.Computer = Slice{}

// Name of the operator.
func (Slice) Name() string { return "slice" }

func (op Slice) bounds(in ir.Shape) (axes, starts, ends []int, err error) {
	if len(op.Axes) != len(op.Starts) || len(op.Axes) != len(op.Ends) {
		return nil, nil, nil, errors.Errorf("%d axes, %d starts, and %d ends", len(op.Axes), len(op.Starts), len(op.Ends))
	}
	if axes, err = NormalizeAxes(op.Axes, in.Rank()); err != nil {
		return nil, nil, nil, err
	}
	clamp := func(v, l int) int {
		if v < 0 {
			v += l
		}
		return min(max(v, 0), l)
	}
	starts = make([]int, len(axes))
	ends = make([]int, len(axes))
	for i, axis := range axes {
		l := in.Lens[axis]
		starts[i] = clamp(op.Starts[i], l)
		ends[i] = max(clamp(op.Ends[i], l), starts[i])
	}
	return axes, starts, ends, nil
}

// ComputeShape returns the lengths of the slice.
func (op Slice) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	in := inputs[0]
	axes, starts, ends, err := op.bounds(in)
	if err != nil {
		return ir.Shape{}, err
	}
	lens := slices.Clone(in.Lens)
	for i, axis := range axes {
		lens[axis] = ends[i] - starts[i]
	}
	return ir.NewShape(in.DType, lens...), nil
}

// Compute the slice.
func (op Slice) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	in := args[0].Shape()
	axes, starts, ends, err := op.bounds(in)
	if err != nil {
		return ir.Argument{}, err
	}
	vals, err := kernels.Slice(args[0].Data(), in.Lens, axes, starts, ends)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, vals)
}

func (op Slice) String() string {
	return attrs(op.Name(), "axes", ints(op.Axes), "starts", ints(op.Starts), "ends", ints(op.Ends))
}

// Squeeze removes axes of length 1.
// All axes of length 1 are removed if Axes is empty.
type Squeeze struct {
	Axes []int
}

var _ ir.Computer = Squeeze{}

// Name of the operator.
func (Squeeze) Name() string { return "squeeze" }

// ComputeShape removes the axes.
func (op Squeeze) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	in := inputs[0]
	axes, err := NormalizeAxes(op.Axes, in.Rank())
	if err != nil {
		return ir.Shape{}, err
	}
	var lens []int
	for axis, l := range in.Lens {
		remove := slices.Contains(axes, axis)
		if remove && l != 1 {
			return ir.Shape{}, errors.Errorf("cannot squeeze axis %d of length %d", axis, l)
		}
		if len(axes) == 0 && l == 1 {
			remove = true
		}
		if !remove {
			lens = append(lens, l)
		}
	}
	return ir.NewShape(in.DType, lens...), nil
}

// Compute returns the input with new lengths.
func (Squeeze) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	return args[0].Reshape(out)
}

func (op Squeeze) String() string { return attrs(op.Name(), "axes", ints(op.Axes)) }

// Unsqueeze inserts axes of length 1. Axes are positions in the result.
type Unsqueeze struct {
	Axes []int
}

var _ ir.Computer = Unsqueeze{}

// Name of the operator.
func (Unsqueeze) Name() string { return "unsqueeze" }

// ComputeShape inserts the axes.
func (op Unsqueeze) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	in := inputs[0]
	rank := in.Rank() + len(op.Axes)
	axes, err := NormalizeAxes(op.Axes, rank)
	if err != nil {
		return ir.Shape{}, err
	}
	lens := make([]int, 0, rank)
	next := 0
	for axis := range rank {
		if slices.Contains(axes, axis) {
			lens = append(lens, 1)
			continue
		}
		if next >= in.Rank() {
			return ir.Shape{}, errors.Errorf("invalid axes %v for rank %d", op.Axes, in.Rank())
		}
		lens = append(lens, in.Lens[next])
		next++
	}
	return ir.NewShape(in.DType, lens...), nil
}

// Compute returns the input with new lengths.
func (Unsqueeze) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	return args[0].Reshape(out)
}

func (op Unsqueeze) String() string { return attrs(op.Name(), "axes", ints(op.Axes)) }

// Transpose permutes the axes of its input: axis i of the result is axis Perm[i].
// The result is a view of the input: only the strides are permuted.
type Transpose struct {
	Perm []int
}

var _ ir.Computer = Transpose{}

// Name of the operator.
func (Transpose) Name() string { return "transpose" }

// ComputeShape permutes the lengths and the strides.
func (op Transpose) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	in := inputs[0]
	if len(op.Perm) != in.Rank() {
		return ir.Shape{}, errors.Errorf("permutation %v for rank %d", op.Perm, in.Rank())
	}
	sorted := slices.Sorted(slices.Values(op.Perm))
	for i, p := range sorted {
		if p != i {
			return ir.Shape{}, errors.Errorf("%v is not a permutation", op.Perm)
		}
	}
	lens := make([]int, len(op.Perm))
	strides := make([]int, len(op.Perm))
	for i, p := range op.Perm {
		lens[i] = in.Lens[p]
		strides[i] = in.Strides[p]
	}
	return ir.NewShapeWithStrides(in.DType, lens, strides), nil
}

// Compute returns the transposed values in logical order.
func (op Transpose) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	vals, err := kernels.Transpose(args[0].Data(), args[0].Shape().Lens, op.Perm)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, vals)
}

func (op Transpose) String() string { return attrs(op.Name(), "permutation", ints(op.Perm)) }

// Broadcast maps the axes of its input to the axes [Axis, Axis+rank) of OutLens.
type Broadcast struct {
	Axis    int
	OutLens []int
}

var _ ir.Computer = Broadcast{}

// Name of the operator.
func (Broadcast) Name() string { return "broadcast" }

func (op Broadcast) strides(in ir.Shape, strides []int) ([]int, error) {
	if op.Axis < 0 || op.Axis+in.Rank() > len(op.OutLens) {
		return nil, errors.Errorf("cannot broadcast rank %d at axis %d to %v", in.Rank(), op.Axis, op.OutLens)
	}
	out := make([]int, len(op.OutLens))
	for i, l := range in.Lens {
		axis := op.Axis + i
		if l != op.OutLens[axis] && l != 1 {
			return nil, errors.Errorf("cannot broadcast length %d to %d", l, op.OutLens[axis])
		}
		if l == op.OutLens[axis] {
			out[axis] = strides[i]
		}
	}
	return out, nil
}

// ComputeShape returns a shape with zero strides along broadcast axes.
func (op Broadcast) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	strides, err := op.strides(inputs[0], inputs[0].Strides)
	if err != nil {
		return ir.Shape{}, err
	}
	return ir.NewShapeWithStrides(inputs[0].DType, op.OutLens, strides), nil
}

// Compute materializes the broadcast values.
func (op Broadcast) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	in := args[0].Shape()
	strides, err := op.strides(in, kernels.Strides(in.Lens))
	if err != nil {
		return ir.Argument{}, err
	}
	vals, err := kernels.Broadcast(args[0].Data(), op.OutLens, strides)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, vals)
}

func (op Broadcast) String() string {
	return attrs(op.Name(), "axis", op.Axis, "out_lens", ints(op.OutLens))
}

// MultiBroadcast broadcasts its input to OutLens, aligning the last axes.
type MultiBroadcast struct {
	OutLens []int
}

var _ ir.Computer = MultiBroadcast{}

// Name of the operator.
func (MultiBroadcast) Name() string { return "multibroadcast" }

func (op MultiBroadcast) strides(in ir.Shape, strides []int) ([]int, error) {
	offset := len(op.OutLens) - in.Rank()
	if offset < 0 {
		return nil, errors.Errorf("cannot broadcast rank %d to %v", in.Rank(), op.OutLens)
	}
	return Broadcast{Axis: offset, OutLens: op.OutLens}.strides(in, strides)
}

// ComputeShape returns a shape with zero strides along broadcast axes.
func (op MultiBroadcast) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	strides, err := op.strides(inputs[0], inputs[0].Strides)
	if err != nil {
		return ir.Shape{}, err
	}
	return ir.NewShapeWithStrides(inputs[0].DType, op.OutLens, strides), nil
}

// Compute materializes the broadcast values.
func (op MultiBroadcast) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	in := args[0].Shape()
	strides, err := op.strides(in, kernels.Strides(in.Lens))
	if err != nil {
		return ir.Argument{}, err
	}
	vals, err := kernels.Broadcast(args[0].Data(), op.OutLens, strides)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, vals)
}

func (op MultiBroadcast) String() string { return attrs(op.Name(), "out_lens", ints(op.OutLens)) }

// Contiguous returns its input with a standard layout.
type Contiguous struct{}

var _ ir.Computer = Contiguous{}

// Name of the operator.
func (Contiguous) Name() string { return "contiguous" }

// ComputeShape returns the standard shape of the input.
func (op Contiguous) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	return inputs[0].AsStandard(), nil
}

// Compute returns the values of the input which are always stored in logical order.
func (Contiguous) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	return args[0].Reshape(out)
}

func (op Contiguous) String() string { return op.Name() }

// Reshape changes the lengths of its input.
// A dimension 0 copies the input length and a single -1 is inferred.
type Reshape struct {
	Dims []int
}

var _ ir.Computer = Reshape{}

// Name of the operator.
func (Reshape) Name() string { return "reshape" }

// ComputeShape returns the new lengths.
func (op Reshape) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	in := inputs[0]
	lens := slices.Clone(op.Dims)
	infer := -1
	known := 1
	for i, d := range lens {
		switch {
		case d == 0 && i < in.Rank():
			lens[i] = in.Lens[i]
		case d == -1 && infer < 0:
			infer = i
			continue
		case d <= 0:
			return ir.Shape{}, errors.Errorf("invalid dimensions %v", op.Dims)
		}
		known *= lens[i]
	}
	if infer >= 0 {
		if known == 0 || in.Elements()%known != 0 {
			return ir.Shape{}, errors.Errorf("cannot infer dimension %d of %v for %d elements", infer, op.Dims, in.Elements())
		}
		lens[infer] = in.Elements() / known
	}
	out := ir.NewShape(in.DType, lens...)
	if out.Elements() != in.Elements() {
		return ir.Shape{}, errors.Errorf("cannot reshape %v to %v", in.Lens, lens)
	}
	return out, nil
}

// Compute returns the input with new lengths.
func (Reshape) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	return args[0].Reshape(out)
}

func (op Reshape) String() string { return attrs(op.Name(), "dims", ints(op.Dims)) }

// Pad adds Pads[i] elements before and Pads[rank+i] elements after axis i.
type Pad struct {
	Pads  []int
	Value float64
}

var _ ir.Computer = Pad{}

// Name of the operator.
func (Pad) Name() string { return "pad" }

// ComputeShape returns the padded lengths.
func (op Pad) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 1); err != nil {
		return ir.Shape{}, err
	}
	in := inputs[0]
	rank := in.Rank()
	if len(op.Pads) != 2*rank {
		return ir.Shape{}, errors.Errorf("%d pads for rank %d", len(op.Pads), rank)
	}
	lens := make([]int, rank)
	for i, l := range in.Lens {
		lens[i] = l + op.Pads[i] + op.Pads[rank+i]
		if lens[i] < 0 {
			return ir.Shape{}, errors.Errorf("negative length along axis %d", i)
		}
	}
	return ir.NewShape(in.DType, lens...), nil
}

// Compute the padded tensor.
func (op Pad) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	for _, p := range op.Pads {
		if p < 0 {
			return ir.Argument{}, errors.Errorf("negative pads are not supported by the host kernel")
		}
	}
	vals, err := kernels.Pad(args[0].Data(), args[0].Shape().Lens, op.Pads, op.Value)
	if err != nil {
		return ir.Argument{}, err
	}
	return ir.NewArgument(out, vals)
}

func (op Pad) String() string { return attrs(op.Name(), "pads", ints(op.Pads), "value", op.Value) }
