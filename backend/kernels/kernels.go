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

// Package kernels implement host kernels for the reference evaluator.
//
// Tensors are dense float64 slices stored in row-major order of their lengths.
// Integer element types are stored as exact float64 values.
package kernels

import (
	"runtime"

	"github.com/gx-org/backend/dtype"
	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"

	"github.com/gx-org/graphc/internal/envconfig"
)

// minChunk is the minimum number of iterations executed by a goroutine.
const minChunk = 1024

// Size returns the number of elements given axis lengths.
func Size(lens []int) int {
	n := 1
	for _, l := range lens {
		n *= l
	}
	return n
}

// Strides returns the row-major strides of axis lengths.
func Strides(lens []int) []int {
	strides := make([]int, len(lens))
	acc := 1
	for i := len(lens) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= lens[i]
	}
	return strides
}

// Multi converts a flat index into a multi-dimensional index.
func Multi(i int, lens []int, idx []int) {
	for axis := len(lens) - 1; axis >= 0; axis-- {
		if lens[axis] == 0 {
			idx[axis] = 0
			continue
		}
		idx[axis] = i % lens[axis]
		i /= lens[axis]
	}
}

// Flat converts a multi-dimensional index into a flat index.
func Flat(idx, strides []int) int {
	pos := 0
	for axis, i := range idx {
		pos += i * strides[axis]
	}
	return pos
}

func parallelism() int {
	if n := int(envconfig.Parallelism()); n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// ParFor calls f for each index in [0, n), splitting the range in chunks
// processed by concurrent goroutines. The first error returned by f is returned.
func ParFor(n int, f func(i int) error) error {
	workers := min(parallelism(), (n+minChunk-1)/minChunk)
	if workers <= 1 {
		for i := range n {
			if err := f(i); err != nil {
				return err
			}
		}
		return nil
	}
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := f(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Cast converts all values to T and back to float64.
func Cast[T constraints.Integer | constraints.Float](vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(T(v))
	}
	return out
}

// Convert rounds values to the precision of an element type.
func Convert(vals []float64, dt dtype.DataType) []float64 {
	switch dt {
	case dtype.Float32:
		return Cast[float32](vals)
	case dtype.Int32:
		return Cast[int32](vals)
	case dtype.Int64:
		return Cast[int64](vals)
	case dtype.Uint32:
		return Cast[uint32](vals)
	case dtype.Uint64:
		return Cast[uint64](vals)
	case dtype.Bool:
		out := make([]float64, len(vals))
		for i, v := range vals {
			if v != 0 {
				out[i] = 1
			}
		}
		return out
	}
	return vals
}
