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

package insertpad_test

import (
	"slices"
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/ir/irhelper"
	"github.com/gx-org/graphc/op"
	"github.com/gx-org/graphc/pass"
	"github.com/gx-org/graphc/pass/dce"
	"github.com/gx-org/graphc/pass/insertpad"
	"github.com/gx-org/graphc/pass/normalize"
)

func image(m *ir.Module) ir.Ref {
	return m.AddLiteral(ir.MustArgument(ir.NewShape(dtype.Float32, 1, 1, 2, 2), []float64{0, 1, 2, 3}))
}

func weights(m *ir.Module, lens ...int) ir.Ref {
	s := ir.NewShape(dtype.Float32, lens...)
	vals := make([]float64, s.Elements())
	for i := range vals {
		vals[i] = float64(i%5) - 2
	}
	return m.AddLiteral(ir.MustArgument(s, vals))
}

func names(m *ir.Module) []string {
	var ns []string
	for r := range m.All() {
		ns = append(ns, r.Name())
	}
	return ns
}

func run(t *testing.T, m *ir.Module) {
	t.Helper()
	require.NoError(t, pass.Run(m, normalize.Pass{}, insertpad.Pass{}, dce.Pass{}))
}

func TestRewritePad(t *testing.T) {
	m := ir.NewModule("main")
	img := image(m)
	asym := op.Window{Padding: []int{0, 0, 1, 1}}
	l0 := irhelper.Must(m.AddInstruction(op.Im2Col{Window: asym}, img, weights(m, 1, 1, 1, 1)))
	l1 := irhelper.Must(m.AddInstruction(op.Convolution{Window: asym}, img, weights(m, 4, 1, 3, 3)))
	l2 := irhelper.Must(m.AddInstruction(op.Pooling{Window: asym, Mode: "max", Lengths: []int{2, 2}}, img))
	_, err := m.AddReturn(l0, l1, l2)
	require.NoError(t, err)
	want, err := m.Eval(nil)
	require.NoError(t, err)

	run(t, m)
	ns := names(m)
	assert.Contains(t, ns, "pad")
	for r := range m.All() {
		if slices.Contains([]string{"im2col", "convolution", "pooling"}, r.Name()) {
			assert.Equal(t, "pad", r.Input(0).Name(), "image input of %s", r)
		}
	}
	got, err := m.Eval(nil)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("output %d: got %v but want %v", i, got[i], want[i])
		}
	}
}

func TestRewritePadSymmetric(t *testing.T) {
	m := ir.NewModule("main")
	irhelper.Must(m.AddInstruction(op.Pooling{Window: op.Window{Padding: []int{1, 1, 1, 1}}, Mode: "max", Lengths: []int{2, 2}}, image(m)))
	run(t, m)
	assert.NotContains(t, names(m), "pad")
}

func TestAveragePoolingKeepsPadding(t *testing.T) {
	m := ir.NewModule("main")
	pool := irhelper.Must(m.AddInstruction(op.Pooling{Window: op.Window{Padding: []int{0, 0, 1, 1}}, Mode: "average", Lengths: []int{2, 2}}, image(m)))
	run(t, m)
	assert.NotContains(t, names(m), "pad")
	assert.Equal(t, []int{0, 0, 1, 1}, pool.Op().(op.Pooling).Padding)
}

func TestMaxPoolingPadsWithLowest(t *testing.T) {
	m := ir.NewModule("main")
	pool := irhelper.Must(m.AddInstruction(op.Pooling{Window: op.Window{Padding: []int{1, 1, 0, 0}}, Mode: "max", Lengths: []int{2, 2}}, image(m)))
	run(t, m)
	pad, ok := pool.Input(0).Op().(op.Pad)
	require.True(t, ok, "input of pooling is %s", pool.Input(0))
	assert.Equal(t, op.Lowest(dtype.Float32), pad.Value)
	assert.Equal(t, []int{0, 0, 1, 1, 0, 0, 0, 0}, pad.Pads)
}
