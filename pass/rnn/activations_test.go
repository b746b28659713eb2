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
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/op"
)

func names(ops []ir.Operation) []string {
	ns := make([]string, len(ops))
	for i, o := range ops {
		ns[i] = o.Name()
	}
	return ns
}

func TestActivations(t *testing.T) {
	rec := func(dir op.Direction, actv ...string) op.Recurrent {
		return op.Recurrent{HiddenSize: 1, Direction: dir, Activations: actv}
	}
	tests := []struct {
		desc string
		c    cell
		want []string
	}{
		{
			desc: "rnn default",
			c:    newVanilla(op.RNN{Recurrent: rec(op.Forward)}),
			want: []string{"tanh"},
		},
		{
			desc: "rnn bidirectional single",
			c:    newVanilla(op.RNN{Recurrent: rec(op.Bidirectional, "relu")}),
			want: []string{"relu", "relu"},
		},
		{
			desc: "gru default",
			c:    newGRU(op.GRU{Recurrent: rec(op.Reverse)}),
			want: []string{"sigmoid", "tanh"},
		},
		{
			desc: "gru bidirectional pair",
			c:    newGRU(op.GRU{Recurrent: rec(op.Bidirectional, "relu", "tanh")}),
			want: []string{"relu", "tanh", "relu", "tanh"},
		},
		{
			desc: "gru bidirectional three",
			c:    newGRU(op.GRU{Recurrent: rec(op.Bidirectional, "relu", "tanh", "exp")}),
			want: []string{"relu", "tanh", "exp", "relu"},
		},
		{
			desc: "lstm default bidirectional",
			c:    newLSTM(op.LSTM{Recurrent: rec(op.Bidirectional)}),
			want: []string{"sigmoid", "tanh", "tanh", "sigmoid", "tanh", "tanh"},
		},
		{
			desc: "lstm bidirectional four",
			c:    newLSTM(op.LSTM{Recurrent: rec(op.Bidirectional, "sigmoid", "tanh", "relu", "exp")}),
			want: []string{"sigmoid", "tanh", "relu", "exp", "exp", "exp"},
		},
		{
			desc: "lstm bidirectional five",
			c:    newLSTM(op.LSTM{Recurrent: rec(op.Bidirectional, "sigmoid", "tanh", "relu", "exp", "neg")}),
			want: []string{"sigmoid", "tanh", "relu", "exp", "neg", "neg"},
		},
		{
			desc: "lstm pair",
			c:    newLSTM(op.LSTM{Recurrent: rec(op.Forward, "relu", "exp")}),
			want: []string{"relu", "exp", "exp"},
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			ops, err := test.c.activations()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, names(ops)); diff != "" {
				t.Errorf("unexpected activations (-want +got):\n%s", diff)
			}
		})
	}
}

func TestActivationErrors(t *testing.T) {
	rec := op.Recurrent{HiddenSize: 1, Direction: op.Forward, Activations: []string{"tanh", "tanh"}}
	if _, err := newVanilla(op.RNN{Recurrent: rec}).activations(); err == nil {
		t.Error("rnn with two activations in one direction: expected an error")
	}
	rec.Activations = []string{"cosine"}
	if _, err := newGRU(op.GRU{Recurrent: rec}).activations(); err == nil {
		t.Error("unknown activation: expected an error")
	}
}
