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

package kernels

import (
	"slices"

	"github.com/pkg/errors"
)

// Transpose permutes the axes of a tensor: axis i of the result is axis perm[i] of x.
func Transpose(x []float64, lens, perm []int) ([]float64, error) {
	inStrides := Strides(lens)
	outLens := make([]int, len(perm))
	strides := make([]int, len(perm))
	for i, p := range perm {
		outLens[i] = lens[p]
		strides[i] = inStrides[p]
	}
	return gather(x, outLens, strides, 0)
}

// gather reads a tensor of lengths lens from x given the strides of every axis and an offset.
func gather(x []float64, lens, strides []int, offset int) ([]float64, error) {
	out := make([]float64, Size(lens))
	err := ParFor(len(out), func(i int) error {
		idx := make([]int, len(lens))
		Multi(i, lens, idx)
		at := offset + Flat(idx, strides)
		if at < 0 || at >= len(x) {
			return errors.Errorf("index %v out of range of %d elements", idx, len(x))
		}
		out[i] = x[at]
		return nil
	})
	return out, err
}

// Slice extracts the sub-tensor [starts, ends) along the given axes.
// Starts and ends must have been clamped to the axis lengths.
func Slice(x []float64, lens, axes, starts, ends []int) ([]float64, error) {
	strides := Strides(lens)
	outLens := slices.Clone(lens)
	offset := 0
	for i, axis := range axes {
		outLens[axis] = ends[i] - starts[i]
		offset += starts[i] * strides[axis]
	}
	return gather(x, outLens, strides, offset)
}

// Broadcast broadcasts x to outLens given the stride of every output axis in x.
// A stride of 0 repeats the values along an axis.
func Broadcast(x []float64, outLens, strides []int) ([]float64, error) {
	return gather(x, outLens, strides, 0)
}

// Concat concatenates tensors along an axis.
func Concat(xs [][]float64, lens [][]int, axis int) ([]float64, error) {
	if len(xs) == 0 {
		return nil, errors.Errorf("concat requires at least one tensor")
	}
	outLens := slices.Clone(lens[0])
	outLens[axis] = 0
	for _, l := range lens {
		outLens[axis] += l[axis]
	}
	// outer is the number of blocks before the axis.
	outer := Size(outLens[:axis])
	out := make([]float64, 0, Size(outLens))
	for o := range outer {
		for i, x := range xs {
			block := Size(lens[i][axis:])
			out = append(out, x[o*block:(o+1)*block]...)
		}
	}
	return out, nil
}

// Pad adds pads[i] values before and pads[rank+i] values after every axis i.
func Pad(x []float64, lens, pads []int, value float64) ([]float64, error) {
	rank := len(lens)
	outLens := make([]int, rank)
	for i, l := range lens {
		outLens[i] = l + pads[i] + pads[rank+i]
	}
	out := make([]float64, Size(outLens))
	outStrides := Strides(outLens)
	if err := ParFor(len(out), func(i int) error {
		out[i] = value
		return nil
	}); err != nil {
		return nil, err
	}
	err := ParFor(len(x), func(i int) error {
		idx := make([]int, rank)
		Multi(i, lens, idx)
		for axis := range idx {
			idx[axis] += pads[axis]
		}
		out[Flat(idx, outStrides)] = x[i]
		return nil
	})
	return out, err
}
