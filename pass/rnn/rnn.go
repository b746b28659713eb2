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

// Package rnn lowers the rnn, gru, and lstm operators into an unrolled
// sequence of primitive operators, one cell per time step.
package rnn

import (
	"github.com/pkg/errors"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/op"
	"github.com/gx-org/graphc/pass"
)

// Pass rewrites every recurrent instruction of a module.
type Pass struct{}

var _ pass.ModulePass = Pass{}

// Name of the pass.
func (Pass) Name() string { return "rewrite_rnn" }

// Apply the rewrite to all recurrent instructions.
func (Pass) Apply(m *ir.Module) error {
	for _, r := range m.Instructions() {
		if !m.HasInstruction(r) {
			continue
		}
		var err error
		switch o := r.Op().(type) {
		case op.RNN:
			err = rewrite(m, r, newVanilla(o))
		case op.GRU:
			err = rewrite(m, r, newGRU(o))
		case op.LSTM:
			err = rewrite(m, r, newLSTM(o))
		default:
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "cannot rewrite %s", r)
		}
	}
	return nil
}

// cellInputs are the inputs of a single direction.
type cellInputs struct {
	// state is the shape [batch, hidden] of the hidden state of a step.
	state           ir.Shape
	seq, w, r       ir.Ref
	bias, peephole  ir.Ref
	hasBias, hasPPH bool
	ih, ic          ir.Ref
}

// cellOutputs of a single direction.
// hidden and cells hold all the steps but the last one in sequence order.
// They are only valid if more than one step was computed.
type cellOutputs struct {
	hidden, last    ir.Ref
	cells, lastCell ir.Ref
}

// cell lowers the operator of one direction.
type cell interface {
	// maxInputs returns the maximum number of inputs of the operator.
	maxInputs() int
	// hasCellState returns true if the operator carries a cell state.
	hasCellState() bool
	recurrent() op.Recurrent
	activations() ([]ir.Operation, error)
	// unroll emits the steps of a direction given its activations.
	unroll(rw *rewriter, forward bool, in cellInputs, steps int, actv []ir.Operation) cellOutputs
}

// rewriter inserts instructions before the recurrent instruction.
// The first error is recorded and all following insertions are ignored.
type rewriter struct {
	m     *ir.Module
	pos   ir.Ref
	err   error
	added []ir.Ref
}

func (rw *rewriter) insert(o ir.Operation, inputs ...ir.Ref) ir.Ref {
	if rw.err != nil {
		return ir.Ref{}
	}
	r, err := rw.m.InsertInstruction(rw.pos, o, inputs...)
	if err != nil {
		rw.err = err
		return r
	}
	rw.added = append(rw.added, r)
	return r
}

// rollback removes every instruction added by the rewriter, consumers first.
func (rw *rewriter) rollback() {
	for i := len(rw.added) - 1; i >= 0; i-- {
		rw.m.RemoveInstruction(rw.added[i])
	}
	rw.added = nil
}

func (rw *rewriter) fill(s ir.Shape, v float64) ir.Ref {
	if rw.err != nil {
		return ir.Ref{}
	}
	r := rw.m.AddLiteral(ir.Fill(s, v))
	rw.added = append(rw.added, r)
	return r
}

func (rw *rewriter) slice(x ir.Ref, axis, start, end int) ir.Ref {
	return rw.insert(op.Slice{Axes: []int{axis}, Starts: []int{start}, Ends: []int{end}}, x)
}

func (rw *rewriter) squeeze(x ir.Ref) ir.Ref {
	return rw.insert(op.Squeeze{Axes: []int{0}}, x)
}

func (rw *rewriter) unsqueeze(x ir.Ref) ir.Ref {
	return rw.insert(op.Unsqueeze{Axes: []int{0, 1}}, x)
}

func (rw *rewriter) transpose(x ir.Ref) ir.Ref {
	return rw.insert(op.Transpose{Perm: []int{1, 0}}, x)
}

// squeezeTranspose turns a weight [1, rows, cols] into [cols, rows].
func (rw *rewriter) squeezeTranspose(x ir.Ref) ir.Ref {
	return rw.transpose(rw.squeeze(x))
}

func (rw *rewriter) broadcast(x ir.Ref, lens ...int) ir.Ref {
	return rw.insert(op.Broadcast{Axis: 1, OutLens: lens}, x)
}

func (rw *rewriter) concat(axis int, xs ...ir.Ref) ir.Ref {
	return rw.insert(op.Concat{Axis: axis}, xs...)
}

func (rw *rewriter) add(x, y ir.Ref) ir.Ref { return rw.insert(op.Add(), x, y) }

func (rw *rewriter) sub(x, y ir.Ref) ir.Ref { return rw.insert(op.Sub(), x, y) }

func (rw *rewriter) mul(x, y ir.Ref) ir.Ref { return rw.insert(op.Mul(), x, y) }

func (rw *rewriter) dot(x, y ir.Ref) ir.Ref { return rw.insert(op.Dot{}, x, y) }

// step returns the input of a time step as a matrix [batch, input].
func (rw *rewriter) step(seq ir.Ref, t int) ir.Ref {
	xt := rw.insert(op.Contiguous{}, rw.slice(seq, 0, t, t+1))
	return rw.squeeze(xt)
}

// accumulate appends the output of a step to the outputs of the previous steps.
// The history is kept in sequence order.
func (rw *rewriter) accumulate(forward bool, first bool, history, last ir.Ref) ir.Ref {
	if first {
		return last
	}
	if forward {
		return rw.concat(0, history, last)
	}
	return rw.concat(0, last, history)
}

// inOrder returns the outputs of a direction in sequence order.
func inOrder(forward bool, steps int, history, last ir.Ref) []ir.Ref {
	switch {
	case steps == 1:
		return []ir.Ref{last}
	case forward:
		return []ir.Ref{history, last}
	default:
		return []ir.Ref{last, history}
	}
}

func (rw *rewriter) join(parts []ir.Ref) ir.Ref {
	if len(parts) == 1 {
		return parts[0]
	}
	return rw.concat(0, parts...)
}

func optional(args []ir.Ref, i int) (ir.Ref, bool) {
	if i < len(args) && !op.IsUndefined(args[i]) {
		return args[i], true
	}
	return ir.Ref{}, false
}

// sequenceLength returns whether the sequences have different lengths and the
// number of steps to unroll.
func sequenceLength(x, seqLens ir.Ref, hasSeqLens bool) (variable bool, steps int, err error) {
	maxLen := x.Shape().Lens[0]
	if !hasSeqLens {
		return false, maxLen, nil
	}
	if !seqLens.CanEval() {
		return true, maxLen, nil
	}
	arg, err := seqLens.Eval()
	if err != nil {
		return false, 0, err
	}
	lens := arg.Ints()
	if len(lens) == 0 {
		return false, maxLen, nil
	}
	for _, l := range lens[1:] {
		if l != lens[0] {
			return true, maxLen, nil
		}
	}
	if lens[0] < 1 || lens[0] > maxLen {
		return false, 0, errors.Errorf("sequence length %d out of range [1, %d]", lens[0], maxLen)
	}
	return false, lens[0], nil
}

func rewrite(m *ir.Module, ins ir.Ref, c cell) error {
	args := ins.Inputs()
	if len(args) > c.maxInputs() {
		panic(ir.Internalf("%s has %d inputs but accepts at most %d", ins, len(args), c.maxInputs()))
	}
	actv, err := c.activations()
	if err != nil {
		return err
	}
	rec := c.recurrent()
	dirs := rec.Direction.NumDirections()
	perDir := len(actv) / dirs

	x := args[0]
	xShape := x.Shape()
	maxLen, batch, hs := xShape.Lens[0], xShape.Lens[1], rec.HiddenSize
	seqLens, hasSeqLens := optional(args, 4)
	variable, steps, err := sequenceLength(x, seqLens, hasSeqLens)
	if err != nil {
		return err
	}
	stateShape := ir.NewShape(xShape.DType, 1, batch, hs)

	rw := &rewriter{m: m, pos: ins}
	var histories, last, cells, lastCells []ir.Ref
	for d := range dirs {
		forward := rec.Direction == op.Forward || (rec.Direction == op.Bidirectional && d == 0)
		perDirection := func(a ir.Ref) ir.Ref {
			if rec.Direction != op.Bidirectional {
				return a
			}
			return rw.slice(a, 0, d, d+1)
		}
		in := cellInputs{
			state: ir.NewShape(xShape.DType, batch, hs),
			seq:   x,
			w:     perDirection(args[1]),
			r:     perDirection(args[2]),
		}
		if bias, ok := optional(args, 3); ok {
			in.bias, in.hasBias = perDirection(bias), true
		}
		if ih, ok := optional(args, 5); ok {
			in.ih = perDirection(ih)
		} else {
			in.ih = rw.fill(stateShape, 0)
		}
		if c.hasCellState() {
			if ic, ok := optional(args, 6); ok {
				in.ic = perDirection(ic)
			} else {
				in.ic = rw.fill(stateShape, 0)
			}
			if pph, ok := optional(args, 7); ok {
				in.peephole, in.hasPPH = perDirection(pph), true
			}
		}
		if !forward && variable {
			in.seq = rw.insert(op.RNNVarSLShiftSequence{}, x, seqLens)
		}
		out := c.unroll(rw, forward, in, steps, actv[d*perDir:(d+1)*perDir])
		parts := inOrder(forward, steps, out.hidden, out.last)
		if steps < maxLen {
			parts = append(parts, rw.fill(ir.NewShape(xShape.DType, maxLen-steps, 1, batch, hs), 0))
		}
		if dirs == 1 {
			histories = parts
		} else {
			histories = append(histories, rw.join(parts))
		}
		last = append(last, out.last)
		if c.hasCellState() {
			cells = append(cells, rw.join(inOrder(forward, steps, out.cells, out.lastCell)))
			lastCells = append(lastCells, out.lastCell)
		}
	}
	var lastOutput, cellOutputs, lastCellOutput ir.Ref
	if dirs == 1 {
		lastOutput = rw.squeeze(last[0])
		if c.hasCellState() {
			cellOutputs = cells[0]
			lastCellOutput = rw.squeeze(lastCells[0])
		}
	} else {
		lastOutput = rw.squeeze(rw.concat(1, last...))
		if c.hasCellState() {
			cellOutputs = rw.concat(1, cells...)
			lastCellOutput = rw.squeeze(rw.concat(1, lastCells...))
		}
	}
	if rw.err != nil {
		rw.rollback()
		return rw.err
	}
	// The instruction computing the hidden states is always a concatenation.
	axis := 0
	if dirs > 1 {
		axis = 1
	}
	if _, err := m.ReplaceInstruction(ins, op.Concat{Axis: axis}, histories...); err != nil {
		rw.rollback()
		return err
	}
	result, err := replaceLastHSOutput(m, ins, seqLens, lastOutput, rec.Direction, variable)
	if err != nil {
		return err
	}
	if !c.hasCellState() {
		return nil
	}
	return replaceLastCellOutput(m, result, seqLens, cellOutputs, lastCellOutput, rec.Direction, variable)
}

func consumers(r ir.Ref, name string) []ir.Ref {
	var outs []ir.Ref
	for _, out := range r.Outputs() {
		if out.Name() == name {
			outs = append(outs, out)
		}
	}
	return outs
}

// replaceLastHSOutput redirects the consumers of the last hidden state to the
// last output of every direction. With variable sequence lengths, the hidden
// states are first aligned at the beginning of the sequences.
func replaceLastHSOutput(m *ir.Module, ins, seqLens, lastOutput ir.Ref, dir op.Direction, variable bool) (ir.Ref, error) {
	const lastHS = "rnn_last_hs_output"
	if !variable {
		for _, out := range consumers(ins, lastHS) {
			if _, err := m.Replace(out, lastOutput); err != nil {
				return ins, err
			}
		}
		return ins, nil
	}
	shifted, err := m.InsertInstruction(m.Next(ins), op.RNNVarSLShiftOutput{OutputName: "hidden_states", Direction: dir}, ins, seqLens)
	if err != nil {
		return ins, err
	}
	if _, err := m.Replace(ins, shifted); err != nil {
		return ins, err
	}
	for _, out := range consumers(shifted, lastHS) {
		if _, err := m.ReplaceInstruction(out, op.RNNVarSLLastOutput{Direction: dir}, shifted, seqLens); err != nil {
			return ins, err
		}
	}
	return shifted, nil
}

// replaceLastCellOutput redirects the consumers of the last cell state.
func replaceLastCellOutput(m *ir.Module, ins, seqLens, cellOutputs, lastCellOutput ir.Ref, dir op.Direction, variable bool) error {
	outs := consumers(ins, "rnn_last_cell_output")
	if !variable {
		for _, out := range outs {
			if _, err := m.Replace(out, lastCellOutput); err != nil {
				return err
			}
		}
		return nil
	}
	if len(outs) == 0 {
		return nil
	}
	shifted, err := m.InsertInstruction(m.Next(ins), op.RNNVarSLShiftOutput{OutputName: "cell_outputs", Direction: dir}, cellOutputs, seqLens)
	if err != nil {
		return err
	}
	for _, out := range outs {
		if _, err := m.ReplaceInstruction(out, op.RNNVarSLLastOutput{Direction: dir}, shifted, seqLens); err != nil {
			return err
		}
	}
	return nil
}
