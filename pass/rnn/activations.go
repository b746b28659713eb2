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

package rnn

import (
	"github.com/pkg/errors"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/op"
)

const (
	sigmoid = "sigmoid"
	tanh    = "tanh"
)

func repeat(name string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = name
	}
	return names
}

// makeActivations returns the activation operators given their names.
// perDir is the number of activations required by a single direction.
func makeActivations(o op.Recurrent, names []string, perDir int) ([]ir.Operation, error) {
	want := perDir * o.Direction.NumDirections()
	if len(names) != want {
		return nil, errors.Errorf("%s %v: got %d activation functions but want %d", o.Direction, o.Activations, len(names), want)
	}
	ops := make([]ir.Operation, len(names))
	for i, name := range names {
		var err error
		if ops[i], err = op.Make(name); err != nil {
			return nil, errors.Wrapf(err, "activation function %d", i)
		}
	}
	return ops, nil
}

func (c vanilla) activations() ([]ir.Operation, error) {
	names := c.op.Activations
	if c.op.Direction == op.Bidirectional {
		switch len(names) {
		case 0:
			names = []string{tanh, tanh}
		case 1:
			names = repeat(names[0], 2)
		}
	} else if len(names) == 0 {
		names = []string{tanh}
	}
	return makeActivations(c.op.Recurrent, names, 1)
}

func (c gru) activations() ([]ir.Operation, error) {
	a := c.op.Activations
	names := a
	if c.op.Direction == op.Bidirectional {
		switch len(a) {
		case 0:
			names = []string{sigmoid, tanh, sigmoid, tanh}
		case 1:
			names = repeat(a[0], 4)
		case 2:
			names = []string{a[0], a[1], a[0], a[1]}
		case 3:
			names = []string{a[0], a[1], a[2], a[0]}
		}
	} else {
		switch len(a) {
		case 0:
			names = []string{sigmoid, tanh}
		case 1:
			names = repeat(a[0], 2)
		}
	}
	return makeActivations(c.op.Recurrent, names, 2)
}

func (c lstm) activations() ([]ir.Operation, error) {
	a := c.op.Activations
	names := a
	if c.op.Direction == op.Bidirectional {
		switch len(a) {
		case 0:
			names = []string{sigmoid, tanh, tanh, sigmoid, tanh, tanh}
		case 1:
			names = repeat(a[0], 6)
		case 2:
			names = []string{a[0], a[1], a[1], a[0], a[1], a[1]}
		case 3:
			names = []string{a[0], a[1], a[2], a[0], a[1], a[2]}
		case 4:
			names = []string{a[0], a[1], a[2], a[3], a[3], a[3]}
		case 5:
			names = []string{a[0], a[1], a[2], a[3], a[4], a[4]}
		}
	} else {
		switch len(a) {
		case 0:
			names = []string{sigmoid, tanh, tanh}
		case 1:
			names = repeat(a[0], 3)
		case 2:
			names = []string{a[0], a[1], a[1]}
		}
	}
	return makeActivations(c.op.Recurrent, names, 3)
}
