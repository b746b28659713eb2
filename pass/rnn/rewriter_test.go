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

	"github.com/gx-org/backend/dtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/ir/irhelper"
	"github.com/gx-org/graphc/op"
)

func TestRewriterRollback(t *testing.T) {
	m := ir.NewModule("main")
	x := m.AddParameter("x", ir.NewShape(dtype.Float32, 2, 3))
	y := irhelper.Must(m.AddInstruction(op.Relu(), x))
	_, err := m.AddReturn(y)
	require.NoError(t, err)
	want := m.Instructions()

	rw := &rewriter{m: m, pos: y}
	xt := rw.transpose(x)
	zeros := rw.fill(ir.NewShape(dtype.Float32, 5, 5), 0)
	require.NoError(t, rw.err)
	if got := rw.add(xt, zeros); rw.err == nil {
		t.Fatalf("expected an error when adding %v and %v but got %v", xt.Shape(), zeros.Shape(), got)
	}
	assert.Equal(t, len(want)+2, m.Size())
	rw.rollback()
	assert.Equal(t, want, m.Instructions())
	assert.NoError(t, m.Validate())
}
