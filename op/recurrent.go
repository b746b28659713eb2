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
	"strings"

	"github.com/pkg/errors"

	"github.com/gx-org/graphc/ir"
)

// Recurrent attributes shared by the rnn, gru, and lstm operators.
type Recurrent struct {
	HiddenSize int
	// Activations are operator names, for example "sigmoid" or "tanh".
	// A nil list selects the default activations of the operator.
	Activations []string
	Direction   Direction
	Clip        float64
}

func (r Recurrent) attrs(extra ...any) []any {
	kvs := []any{
		"hidden_size", r.HiddenSize,
		"actv_func", "{" + strings.Join(r.Activations, ",") + "}",
		"direction", r.Direction,
		"clip", r.Clip,
	}
	return append(kvs, extra...)
}

// recurrentShape checks the inputs [x, w, r, ...] of a recurrent operator
// and returns the shape of the hidden state history [seq, dirs, batch, hidden].
func (r Recurrent) recurrentShape(name string, inputs []ir.Shape, gates int) (ir.Shape, error) {
	if err := checkMinArity(name, inputs, 3); err != nil {
		return ir.Shape{}, err
	}
	x, w, rec := inputs[0], inputs[1], inputs[2]
	if x.Rank() != 3 || w.Rank() != 3 || rec.Rank() != 3 {
		return ir.Shape{}, errors.Errorf("input, weights, and recurrence weights must have rank 3")
	}
	dirs := r.Direction.NumDirections()
	if w.Lens[0] != dirs || rec.Lens[0] != dirs {
		return ir.Shape{}, errors.Errorf("%s weights have %d directions but want %d", r.Direction, w.Lens[0], dirs)
	}
	if r.HiddenSize <= 0 || rec.Lens[2] != r.HiddenSize {
		return ir.Shape{}, errors.Errorf("hidden size %d does not match recurrence weights %v", r.HiddenSize, rec.Lens)
	}
	if w.Lens[1] != gates*r.HiddenSize || rec.Lens[1] != gates*r.HiddenSize {
		return ir.Shape{}, errors.Errorf("weights must have %d rows for %d gates", gates*r.HiddenSize, gates)
	}
	if w.Lens[2] != x.Lens[2] {
		return ir.Shape{}, errors.Errorf("input size %d does not match weights %v", x.Lens[2], w.Lens)
	}
	batch, hs := x.Lens[1], r.HiddenSize
	optional := []struct {
		what string
		lens []int
	}{
		{"bias", []int{dirs, 2 * gates * hs}},
		{"sequence lengths", []int{batch}},
		{"initial hidden state", []int{dirs, batch, hs}},
		{"initial cell state", []int{dirs, batch, hs}},
		{"peephole weights", []int{dirs, 3 * hs}},
	}
	maxInputs := 6
	if gates == 4 {
		maxInputs = 8
	}
	if len(inputs) > maxInputs {
		return ir.Shape{}, errors.Errorf("%s accepts at most %d inputs but got %d", name, maxInputs, len(inputs))
	}
	for i, in := range inputs[3:] {
		if in.Empty() {
			continue
		}
		want := optional[i]
		if !slices.Equal(in.Lens, want.lens) {
			return ir.Shape{}, errors.Errorf("%s %s has lengths %v but want %v", name, want.what, in.Lens, want.lens)
		}
	}
	return ir.NewShape(x.DType, x.Lens[0], dirs, batch, hs), nil
}

// RNN is a vanilla recurrent network: Ht = f(Xt*W^T + Ht-1*R^T + Wb + Rb).
// Inputs are x, w, r, and optionally bias, sequence lengths, and initial hidden state.
type RNN struct {
	Recurrent
}

// Name of the operator.
func (RNN) Name() string { return "rnn" }

// ComputeShape returns [seq, dirs, batch, hidden].
func (op RNN) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return op.recurrentShape(op.Name(), inputs, 1)
}

func (op RNN) String() string { return attrs(op.Name(), op.attrs()...) }

// GRU is a gated recurrent unit with gates z, r, and h.
type GRU struct {
	Recurrent
	LinearBeforeReset int
}

// Name of the operator.
func (GRU) Name() string { return "gru" }

// ComputeShape returns [seq, dirs, batch, hidden].
func (op GRU) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return op.recurrentShape(op.Name(), inputs, 3)
}

func (op GRU) String() string {
	return attrs(op.Name(), op.attrs("linear_before_reset", op.LinearBeforeReset)...)
}

// LSTM is a long short-term memory unit with gates i, o, f, and c.
// It accepts two more optional inputs: the initial cell state and the peephole weights.
type LSTM struct {
	Recurrent
	InputForget int
}

// Name of the operator.
func (LSTM) Name() string { return "lstm" }

// ComputeShape returns [seq, dirs, batch, hidden].
func (op LSTM) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return op.recurrentShape(op.Name(), inputs, 4)
}

func (op LSTM) String() string {
	return attrs(op.Name(), op.attrs("input_forget", op.InputForget)...)
}

// lastShape returns [dirs, batch, hidden] given a history [seq, dirs, batch, hidden].
func lastShape(name string, inputs []ir.Shape, arity int) (ir.Shape, error) {
	if err := checkArity(name, inputs, arity); err != nil {
		return ir.Shape{}, err
	}
	in := inputs[0]
	if in.Rank() != 4 {
		return ir.Shape{}, errors.Errorf("%s requires a history of rank 4 but got %v", name, in.Lens)
	}
	return ir.NewShape(in.DType, in.Lens[1:]...), nil
}

// RNNLastHSOutput is the last hidden state of a recurrent operator.
type RNNLastHSOutput struct{}

// Name of the operator.
func (RNNLastHSOutput) Name() string { return "rnn_last_hs_output" }

// ComputeShape returns [dirs, batch, hidden].
func (op RNNLastHSOutput) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return lastShape(op.Name(), inputs, 1)
}

func (op RNNLastHSOutput) String() string { return op.Name() }

// RNNLastCellOutput is the last cell state of an lstm operator.
type RNNLastCellOutput struct{}

// Name of the operator.
func (RNNLastCellOutput) Name() string { return "rnn_last_cell_output" }

// ComputeShape returns [dirs, batch, hidden].
func (op RNNLastCellOutput) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return lastShape(op.Name(), inputs, 1)
}

func (op RNNLastCellOutput) String() string { return op.Name() }

func seqLens(arg ir.Argument, batch int) ([]int, error) {
	lens := arg.Ints()
	if len(lens) != batch {
		return nil, errors.Errorf("got %d sequence lengths for a batch of %d", len(lens), batch)
	}
	return lens, nil
}

// RNNVarSLShiftSequence moves the padding of every sequence of an input
// [seq, batch, ...] given its length from the end to the beginning.
type RNNVarSLShiftSequence struct{}

var _ ir.Computer = RNNVarSLShiftSequence{}

// Name of the operator.
func (RNNVarSLShiftSequence) Name() string { return "rnn_var_sl_shift_sequence" }

// ComputeShape returns the shape of the input.
func (op RNNVarSLShiftSequence) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 2); err != nil {
		return ir.Shape{}, err
	}
	if inputs[0].Rank() < 2 {
		return ir.Shape{}, errors.Errorf("input must have at least rank 2")
	}
	return inputs[0].AsStandard(), nil
}

// Compute the shifted sequences.
func (RNNVarSLShiftSequence) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	maxLen, batch := out.Lens[0], out.Lens[1]
	lens, err := seqLens(args[1], batch)
	if err != nil {
		return ir.Argument{}, err
	}
	in := args[0].Data()
	vals := make([]float64, len(in))
	for i := range vals {
		idx := out.Multi(i)
		shift := maxLen - min(lens[idx[1]], maxLen)
		if idx[0] < shift {
			continue
		}
		idx[0] -= shift
		vals[i] = in[out.Index(idx)]
	}
	return ir.NewArgument(out, vals)
}

func (op RNNVarSLShiftSequence) String() string { return op.Name() }

// isReverse returns true if the direction at index d of a history is reverse.
func isReverse(dir Direction, d int) bool {
	return dir == Reverse || (dir == Bidirectional && d == 1)
}

// RNNVarSLShiftOutput aligns the outputs of every direction of a history
// [seq, dirs, batch, hidden] computed with variable sequence lengths at the beginning
// of the history and sets the padding to 0.
type RNNVarSLShiftOutput struct {
	OutputName string
	Direction  Direction
}

var _ ir.Computer = RNNVarSLShiftOutput{}

// Name of the operator.
func (RNNVarSLShiftOutput) Name() string { return "rnn_var_sl_shift_output" }

// ComputeShape returns the shape of the history.
func (op RNNVarSLShiftOutput) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	if err := checkArity(op.Name(), inputs, 2); err != nil {
		return ir.Shape{}, err
	}
	if inputs[0].Rank() != 4 {
		return ir.Shape{}, errors.Errorf("%s requires a history of rank 4 but got %v", op.Name(), inputs[0].Lens)
	}
	return inputs[0].AsStandard(), nil
}

// Compute the aligned history.
func (op RNNVarSLShiftOutput) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	maxLen, batch := out.Lens[0], out.Lens[2]
	lens, err := seqLens(args[1], batch)
	if err != nil {
		return ir.Argument{}, err
	}
	in := args[0].Data()
	vals := make([]float64, len(in))
	for i := range vals {
		idx := out.Multi(i)
		l := min(lens[idx[2]], maxLen)
		if idx[0] >= l {
			continue
		}
		if isReverse(op.Direction, idx[1]) {
			idx[0] += maxLen - l
		}
		vals[i] = in[out.Index(idx)]
	}
	return ir.NewArgument(out, vals)
}

func (op RNNVarSLShiftOutput) String() string {
	return attrs(op.Name(), "output_name", op.OutputName, "direction", op.Direction)
}

// RNNVarSLLastOutput extracts the last output of every sequence from an aligned history.
type RNNVarSLLastOutput struct {
	Direction Direction
}

var _ ir.Computer = RNNVarSLLastOutput{}

// Name of the operator.
func (RNNVarSLLastOutput) Name() string { return "rnn_var_sl_last_output" }

// ComputeShape returns [dirs, batch, hidden].
func (op RNNVarSLLastOutput) ComputeShape(inputs []ir.Shape) (ir.Shape, error) {
	return lastShape(op.Name(), inputs, 2)
}

// Compute the last outputs.
func (op RNNVarSLLastOutput) Compute(out ir.Shape, args []ir.Argument) (ir.Argument, error) {
	in := args[0].Shape()
	lens, err := seqLens(args[1], in.Lens[2])
	if err != nil {
		return ir.Argument{}, err
	}
	data := args[0].Data()
	vals := make([]float64, out.Elements())
	for i := range vals {
		idx := append([]int{0}, out.Multi(i)...)
		if !isReverse(op.Direction, idx[1]) {
			idx[0] = max(min(lens[idx[2]], in.Lens[0])-1, 0)
		}
		vals[i] = data[in.Index(idx)]
	}
	return ir.NewArgument(out, vals)
}

func (op RNNVarSLLastOutput) String() string {
	return attrs(op.Name(), "direction", fmt.Sprint(op.Direction))
}
