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

package main

import (
	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/op"
)

// sample describes a program computing a single recurrent operator.
type sample struct {
	op                        string
	direction                 string
	seq, batch, input, hidden int
	seqLens                   []int
	activations               []string
	bias, linearBeforeReset   bool
}

func (s sample) gates() (int, error) {
	switch s.op {
	case "rnn":
		return 1, nil
	case "gru":
		return 3, nil
	case "lstm":
		return 4, nil
	}
	return 0, errors.Errorf("unknown recurrent operator %q: want rnn, gru, or lstm", s.op)
}

func (s sample) operation(dir op.Direction) ir.Operation {
	rec := op.Recurrent{HiddenSize: s.hidden, Direction: dir, Activations: s.activations}
	switch s.op {
	case "gru":
		lbr := 0
		if s.linearBeforeReset {
			lbr = 1
		}
		return op.GRU{Recurrent: rec, LinearBeforeReset: lbr}
	case "lstm":
		return op.LSTM{Recurrent: rec}
	}
	return op.RNN{Recurrent: rec}
}

// ramp returns an argument with values evenly spread in [-0.5, 0.5].
func ramp(s ir.Shape) ir.Argument {
	n := s.Elements()
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)/float64(max(n-1, 1)) - 0.5
	}
	return ir.MustArgument(s, vals)
}

// build returns the program and the value of its input parameter x.
// The program returns the hidden states and the last hidden state.
func (s sample) build() (*ir.Program, map[string]ir.Argument, error) {
	gates, err := s.gates()
	if err != nil {
		return nil, nil, err
	}
	dir, err := op.ParseDirection(s.direction)
	if err != nil {
		return nil, nil, err
	}
	dirs := dir.NumDirections()
	p := ir.NewProgram()
	m := p.MainModule()
	xShape := ir.NewShape(dtype.Float32, s.seq, s.batch, s.input)
	inputs := []ir.Ref{
		m.AddParameter("x", xShape),
		m.AddLiteral(ramp(ir.NewShape(dtype.Float32, dirs, gates*s.hidden, s.input))),
		m.AddLiteral(ramp(ir.NewShape(dtype.Float32, dirs, gates*s.hidden, s.hidden))),
	}
	if s.bias || len(s.seqLens) > 0 {
		inputs = append(inputs, m.AddLiteral(ramp(ir.NewShape(dtype.Float32, dirs, 2*gates*s.hidden))))
	}
	if len(s.seqLens) > 0 {
		inputs = append(inputs, m.AddLiteral(ir.Values(dtype.Int32, s.seqLens...)))
	}
	rec, err := m.AddInstruction(s.operation(dir), inputs...)
	if err != nil {
		return nil, nil, err
	}
	last, err := m.AddInstruction(op.RNNLastHSOutput{}, rec)
	if err != nil {
		return nil, nil, err
	}
	if _, err := m.AddReturn(rec, last); err != nil {
		return nil, nil, err
	}
	return p, map[string]ir.Argument{"x": ramp(xShape)}, nil
}
