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
	"gonum.org/v1/gonum/mat"
)

// Dot computes a batched matrix product.
// a has lengths [batch..., m, k] and b has lengths [batch..., k, n].
func Dot(a, b []float64, aLens, bLens []int) ([]float64, error) {
	rank := len(aLens)
	if rank < 2 || len(bLens) != rank {
		return nil, errors.Errorf("dot: invalid ranks %d and %d", rank, len(bLens))
	}
	if !slices.Equal(aLens[:rank-2], bLens[:rank-2]) {
		return nil, errors.Errorf("dot: batch dimensions %v and %v differ", aLens[:rank-2], bLens[:rank-2])
	}
	m, k, n := aLens[rank-2], aLens[rank-1], bLens[rank-1]
	if bLens[rank-2] != k {
		return nil, errors.Errorf("dot: inner dimensions %d and %d differ", k, bLens[rank-2])
	}
	batch := Size(aLens[:rank-2])
	out := make([]float64, batch*m*n)
	if m == 0 || n == 0 || k == 0 {
		return out, nil
	}
	err := ParFor(batch, func(i int) error {
		x := mat.NewDense(m, k, a[i*m*k:(i+1)*m*k])
		y := mat.NewDense(k, n, b[i*k*n:(i+1)*k*n])
		z := mat.NewDense(m, n, out[i*m*n:(i+1)*m*n])
		z.Mul(x, y)
		return nil
	})
	return out, err
}
