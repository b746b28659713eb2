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
	"math"

	"github.com/pkg/errors"
)

// Unary applies f to every value.
func Unary(x []float64, f func(float64) float64) ([]float64, error) {
	out := make([]float64, len(x))
	err := ParFor(len(x), func(i int) error {
		out[i] = f(x[i])
		return nil
	})
	return out, err
}

// Binary applies f to every pair of values of two tensors with the same number of elements.
func Binary(x, y []float64, f func(float64, float64) float64) ([]float64, error) {
	if len(x) != len(y) {
		return nil, errors.Errorf("binary kernel: got %d and %d elements", len(x), len(y))
	}
	out := make([]float64, len(x))
	err := ParFor(len(x), func(i int) error {
		out[i] = f(x[i], y[i])
		return nil
	})
	return out, err
}

// Add returns x+y.
func Add(x, y float64) float64 { return x + y }

// Sub returns x-y.
func Sub(x, y float64) float64 { return x - y }

// Mul returns x*y.
func Mul(x, y float64) float64 { return x * y }

// Div returns x/y.
func Div(x, y float64) float64 { return x / y }

// Neg returns -x.
func Neg(x float64) float64 { return -x }

// Sigmoid returns 1/(1+exp(-x)).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Relu returns max(x, 0).
func Relu(x float64) float64 {
	return math.Max(x, 0)
}

// Activation returns the function of an activation operator given its name.
func Activation(name string) (func(float64) float64, bool) {
	switch name {
	case "tanh":
		return math.Tanh, true
	case "sigmoid":
		return Sigmoid, true
	case "relu":
		return Relu, true
	case "exp":
		return math.Exp, true
	case "neg":
		return Neg, true
	}
	return nil, false
}
