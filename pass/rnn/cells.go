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
	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/op"
)

// vanilla computes Ht = f(Xt*W^T + Ht-1*R^T + Wb + Rb).
type vanilla struct {
	op op.RNN
}

func newVanilla(o op.RNN) vanilla { return vanilla{op: o} }

func (vanilla) maxInputs() int            { return 6 }
func (vanilla) hasCellState() bool        { return false }
func (c vanilla) recurrent() op.Recurrent { return c.op.Recurrent }

func (c vanilla) unroll(rw *rewriter, forward bool, in cellInputs, steps int, actv []ir.Operation) cellOutputs {
	batch, hs := in.state.Lens[0], in.state.Lens[1]
	tw := rw.squeezeTranspose(in.w)
	tr := rw.squeezeTranspose(in.r)
	sih := rw.squeeze(in.ih)
	var bias ir.Ref
	if in.hasBias {
		sb := rw.squeeze(in.bias)
		bias = rw.broadcast(rw.add(rw.slice(sb, 0, 0, hs), rw.slice(sb, 0, hs, 2*hs)), batch, hs)
	}
	var out cellOutputs
	for i := range steps {
		xt := rw.step(in.seq, timeStep(forward, steps, i))
		ht := rw.add(rw.dot(xt, tw), rw.dot(sih, tr))
		if in.hasBias {
			ht = rw.add(ht, bias)
		}
		sih = rw.insert(actv[0], ht)
		out.last = rw.unsqueeze(sih)
		if i < steps-1 {
			out.hidden = rw.accumulate(forward, i == 0, out.hidden, out.last)
		}
	}
	return out
}

// gru computes the gates z, r, and h of a gated recurrent unit.
type gru struct {
	op op.GRU
}

func newGRU(o op.GRU) gru { return gru{op: o} }

func (gru) maxInputs() int            { return 6 }
func (gru) hasCellState() bool        { return false }
func (c gru) recurrent() op.Recurrent { return c.op.Recurrent }

func (c gru) unroll(rw *rewriter, forward bool, in cellInputs, steps int, actv []ir.Operation) cellOutputs {
	batch, hs := in.state.Lens[0], in.state.Lens[1]
	tw := rw.squeezeTranspose(in.w)
	sr := rw.squeeze(in.r)
	trzr := rw.transpose(rw.slice(sr, 0, 0, 2*hs))
	trh := rw.transpose(rw.slice(sr, 0, 2*hs, 3*hs))
	sih := rw.squeeze(in.ih)
	l1 := rw.fill(in.state, 1)
	var bwb, brbZR, brbH ir.Ref
	if in.hasBias {
		sb := rw.squeeze(in.bias)
		bwb = rw.broadcast(rw.slice(sb, 0, 0, 3*hs), batch, 3*hs)
		brbZR = rw.broadcast(rw.slice(sb, 0, 3*hs, 5*hs), batch, 2*hs)
		brbH = rw.broadcast(rw.slice(sb, 0, 5*hs, 6*hs), batch, hs)
	}
	var out cellOutputs
	for i := range steps {
		xt := rw.step(in.seq, timeStep(forward, steps, i))
		xtw := rw.dot(xt, tw)
		rzr := rw.dot(sih, trzr)
		if in.hasBias {
			xtw = rw.add(xtw, bwb)
			rzr = rw.add(rzr, brbZR)
		}
		gate := func(g int) ir.Ref {
			return rw.insert(actv[0], rw.add(rw.slice(xtw, 1, g*hs, (g+1)*hs), rw.slice(rzr, 1, g*hs, (g+1)*hs)))
		}
		zt, rt := gate(0), gate(1)
		var rh ir.Ref
		if c.op.LinearBeforeReset == 0 {
			rh = rw.dot(rw.mul(rt, sih), trh)
			if in.hasBias {
				rh = rw.add(rh, brbH)
			}
		} else {
			rh = rw.dot(sih, trh)
			if in.hasBias {
				rh = rw.add(rh, brbH)
			}
			rh = rw.mul(rt, rh)
		}
		ht := rw.insert(actv[1], rw.add(rw.slice(xtw, 1, 2*hs, 3*hs), rh))
		sih = rw.add(rw.mul(rw.sub(l1, zt), ht), rw.mul(zt, sih))
		out.last = rw.unsqueeze(sih)
		if i < steps-1 {
			out.hidden = rw.accumulate(forward, i == 0, out.hidden, out.last)
		}
	}
	return out
}

// lstm computes the gates i, o, f, and c of a long short-term memory unit.
type lstm struct {
	op op.LSTM
}

func newLSTM(o op.LSTM) lstm { return lstm{op: o} }

func (lstm) maxInputs() int            { return 8 }
func (lstm) hasCellState() bool        { return true }
func (c lstm) recurrent() op.Recurrent { return c.op.Recurrent }

func (c lstm) unroll(rw *rewriter, forward bool, in cellInputs, steps int, actv []ir.Operation) cellOutputs {
	batch, hs := in.state.Lens[0], in.state.Lens[1]
	tsw := rw.squeezeTranspose(in.w)
	tsr := rw.squeezeTranspose(in.r)
	sih := rw.squeeze(in.ih)
	sic := rw.squeeze(in.ic)
	var wrb ir.Ref
	if in.hasBias {
		sb := rw.squeeze(in.bias)
		wrb = rw.broadcast(rw.add(rw.slice(sb, 0, 0, 4*hs), rw.slice(sb, 0, 4*hs, 8*hs)), batch, 4*hs)
	}
	var pi, po, pf ir.Ref
	if in.hasPPH {
		spph := rw.squeeze(in.peephole)
		pi = rw.broadcast(rw.slice(spph, 0, 0, hs), batch, hs)
		po = rw.broadcast(rw.slice(spph, 0, hs, 2*hs), batch, hs)
		pf = rw.broadcast(rw.slice(spph, 0, 2*hs, 3*hs), batch, hs)
	}
	peephole := func(g, p, state ir.Ref) ir.Ref {
		if !in.hasPPH {
			return g
		}
		return rw.add(g, rw.mul(p, state))
	}
	var out cellOutputs
	for i := range steps {
		xt := rw.step(in.seq, timeStep(forward, steps, i))
		g := rw.add(rw.dot(xt, tsw), rw.dot(sih, tsr))
		if in.hasBias {
			g = rw.add(g, wrb)
		}
		gate := func(n int) ir.Ref { return rw.slice(g, 1, n*hs, (n+1)*hs) }
		it := rw.insert(actv[0], peephole(gate(0), pi, sic))
		ft := rw.insert(actv[0], peephole(gate(2), pf, sic))
		ct := rw.insert(actv[1], gate(3))
		sic = rw.add(rw.mul(ft, sic), rw.mul(it, ct))
		ot := rw.insert(actv[0], peephole(gate(1), po, sic))
		sih = rw.mul(ot, rw.insert(actv[2], sic))

		out.last = rw.unsqueeze(sih)
		out.lastCell = rw.unsqueeze(sic)
		if i < steps-1 {
			out.hidden = rw.accumulate(forward, i == 0, out.hidden, out.last)
			out.cells = rw.accumulate(forward, i == 0, out.cells, out.lastCell)
		}
	}
	return out
}

// timeStep returns the index in the sequence of step i.
func timeStep(forward bool, steps, i int) int {
	if forward {
		return i
	}
	return steps - 1 - i
}
