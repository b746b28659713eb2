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

package cse_test

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/ir/irhelper"
	"github.com/gx-org/graphc/pass"
	"github.com/gx-org/graphc/pass/cse"
	"github.com/gx-org/graphc/pass/dce"
)

func TestMerge(t *testing.T) {
	m := ir.NewModule("test")
	x := m.AddParameter("x", ir.NewShape(dtype.Float32, 1))
	one := irhelper.Float32(m, 1)
	otherOne := irhelper.Float32(m, 1)
	a := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, x, one))
	b := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, x, otherOne))
	pa := irhelper.Must(m.AddInstruction(irhelper.PassOp{}, a))
	pb := irhelper.Must(m.AddInstruction(irhelper.PassOp{}, b))
	irhelper.Must(m.AddInstruction(irhelper.MinusOp{}, pa, pb))
	params := map[string]ir.Argument{"x": ir.Scalar(dtype.Float32, 4)}
	want, err := m.Eval(params)
	require.NoError(t, err)

	require.NoError(t, pass.Run(m, cse.Pass{}, dce.Pass{}))
	assert.Equal(t, 5, m.Size())
	got, err := m.Eval(params)
	require.NoError(t, err)
	assert.True(t, want[0].Equal(got[0]), "got %v but want %v", got[0], want[0])
	assert.Equal(t, []ir.Ref{pa, pa}, m.Last().Inputs())
}

func TestLastInstruction(t *testing.T) {
	m := ir.NewModule("test")
	one := irhelper.Float32(m, 1)
	a := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, one))
	b := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, one))
	require.NoError(t, pass.Run(m, cse.Pass{}, dce.Pass{}))
	assert.Equal(t, ir.IdentityName, b.Name())
	assert.Equal(t, []ir.Ref{a}, b.Inputs())
	got, err := irhelper.Eval(m)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, got.Data())
}

func TestImpure(t *testing.T) {
	m := ir.NewModule("test")
	r1 := irhelper.Must(m.AddInstruction(irhelper.RandOp{}))
	r2 := irhelper.Must(m.AddInstruction(irhelper.RandOp{}))
	irhelper.Must(m.AddInstruction(irhelper.SumOp{}, r1, r2))
	require.NoError(t, pass.Run(m, cse.Pass{}, dce.Pass{}))
	assert.Equal(t, 3, m.Size())
}
