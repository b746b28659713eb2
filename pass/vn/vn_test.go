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

package vn_test

import (
	"fmt"
	"slices"
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/ir/irhelper"
	"github.com/gx-org/graphc/op"
	"github.com/gx-org/graphc/pass"
	"github.com/gx-org/graphc/pass/vn"
)

// checkSoundness evaluates all the instructions of every class and checks that they compute the same value.
func checkSoundness(t *testing.T, table *vn.Table) {
	t.Helper()
	for _, class := range table.Classes() {
		want, err := class[0].Eval()
		require.NoError(t, err)
		for _, r := range class[1:] {
			got, err := r.Eval()
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "%v computes %v but %v computes %v", class[0], want, r, got)
		}
	}
}

func TestStructuralEquivalence(t *testing.T) {
	m := ir.NewModule("test")
	one := irhelper.Float32(m, 1)
	two := irhelper.Float32(m, 2)
	otherOne := irhelper.Float32(m, 1)
	sum1 := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, two))
	sum2 := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, otherOne, two))
	swapped := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, two, one))
	minus := irhelper.Must(m.AddInstruction(irhelper.MinusOp{}, one, two))
	pass1 := irhelper.Must(m.AddInstruction(irhelper.PassOp{}, sum1))
	pass2 := irhelper.Must(m.AddInstruction(irhelper.PassOp{}, sum2))
	irhelper.Must(m.AddInstruction(irhelper.SumOp{}, pass1, pass2))

	table := vn.Run(m)
	assert.True(t, table.Equivalent(one, otherOne))
	assert.False(t, table.Equivalent(one, two))
	assert.True(t, table.Equivalent(sum1, sum2))
	assert.False(t, table.Equivalent(sum1, swapped))
	assert.False(t, table.Equivalent(sum1, minus))
	assert.True(t, table.Equivalent(pass1, pass2))

	id, ok := table.Value(sum2)
	require.True(t, ok)
	assert.Equal(t, []ir.Ref{sum1, sum2}, table.Instructions(id))
	oneID, _ := table.Value(one)
	twoID, _ := table.Value(two)
	assert.ElementsMatch(t, []vn.ID{oneID, twoID}, table.Inputs(id))
	passID, _ := table.Value(pass1)
	assert.Contains(t, table.Outputs(id), passID)
	assert.Len(t, table.Classes(), 3)
	checkSoundness(t, table)
}

func TestImpureOperatorsAreNeverMerged(t *testing.T) {
	m := ir.NewModule("test")
	r1 := irhelper.Must(m.AddInstruction(irhelper.RandOp{}))
	r2 := irhelper.Must(m.AddInstruction(irhelper.RandOp{}))
	p1 := irhelper.Must(m.AddInstruction(irhelper.PassOp{}, r1))
	p2 := irhelper.Must(m.AddInstruction(irhelper.PassOp{}, r2))
	irhelper.Must(m.AddInstruction(irhelper.SumOp{}, p1, p2))

	table := vn.Run(m)
	assert.False(t, table.Equivalent(r1, r2))
	assert.False(t, table.Equivalent(p1, p2))
	assert.Empty(t, table.Classes())
	assert.Equal(t, m.Size(), table.NumValues())
}

func TestUnknownOperators(t *testing.T) {
	m := ir.NewModule("test")
	x := m.AddParameter("x", ir.NewShape(dtype.Float32, 2))
	a := irhelper.Must(m.AddInstruction(op.Unknown{OpName: "roialign", Out: ir.NewShape(dtype.Float32, 2)}, x))
	b := irhelper.Must(m.AddInstruction(op.Unknown{OpName: "roialign", Out: ir.NewShape(dtype.Int32, 7, 7)}, x))
	c := irhelper.Must(m.AddInstruction(op.Unknown{OpName: "roialign", Out: ir.NewShape(dtype.Float32, 2)}, x))

	table := vn.Run(m)
	assert.False(t, table.Equivalent(a, b))
	assert.False(t, table.Equivalent(a, c))
	assert.NotEqual(t, op.Unknown{OpName: "roialign", Out: a.Shape()}.String(), op.Unknown{OpName: "roialign", Out: b.Shape()}.String())
}

func TestParameters(t *testing.T) {
	m := ir.NewModule("test")
	x := m.AddParameter("x", ir.NewShape(dtype.Float32, 1))
	y := m.AddParameter("y", ir.NewShape(dtype.Float32, 1))
	a := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, x, y))
	b := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, x, y))
	c := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, y, y))
	table := vn.Run(m)
	assert.False(t, table.Equivalent(x, y))
	assert.True(t, table.Equivalent(a, b))
	assert.False(t, table.Equivalent(a, c))
}

func TestConvolution(t *testing.T) {
	m := ir.NewModule("test")
	x := m.AddLiteral(ir.Fill(ir.NewShape(dtype.Float32, 1, 1, 4, 4), 1))
	w := m.AddLiteral(ir.Fill(ir.NewShape(dtype.Float32, 1, 1, 3, 3), 0.5))
	symmetric := irhelper.Must(m.AddInstruction(op.Convolution{
		Window: op.Window{Padding: []int{1, 1}},
	}, x, w))
	explicit := irhelper.Must(m.AddInstruction(op.Convolution{
		Window: op.Window{Padding: []int{1, 1, 1, 1}, Stride: []int{1, 1}, Dilation: []int{1, 1}},
		Group:  1,
	}, x, w))
	strided := irhelper.Must(m.AddInstruction(op.Convolution{
		Window: op.Window{Padding: []int{1, 1}, Stride: []int{2, 2}},
	}, x, w))
	table := vn.Run(m)
	assert.True(t, table.Equivalent(symmetric, explicit))
	assert.False(t, table.Equivalent(symmetric, strided))
	checkSoundness(t, table)
}

func TestCustomEncoder(t *testing.T) {
	m := ir.NewModule("test")
	one := irhelper.Float32(m, 1)
	two := irhelper.Float32(m, 2)
	a := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, two))
	b := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, two, one))

	reg := vn.NewRegistry()
	reg.Register("sum", func(table *vn.Table, r ir.Ref) vn.Encoding {
		var ids []int
		for _, in := range r.Inputs() {
			id, _ := table.Value(in)
			ids = append(ids, int(id))
		}
		slices.Sort(ids)
		return vn.Encoding{Key: fmt.Sprintf("sum%v", ids), Valid: true}
	})
	table := reg.Run(m)
	assert.True(t, table.Equivalent(a, b))
	assert.False(t, vn.Run(m).Equivalent(a, b))
	checkSoundness(t, table)
}

func TestPass(t *testing.T) {
	m := ir.NewModule("test")
	one := irhelper.Float32(m, 1)
	irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, one))
	irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, one))
	p := &vn.Pass{}
	require.NoError(t, pass.Run(m, p))
	require.NotNil(t, p.Table)
	assert.Len(t, p.Table.Classes(), 1)
	assert.Equal(t, 3, m.Size())
	assert.Equal(t, []string{"sum"}, p.Table.Opcodes())
}
