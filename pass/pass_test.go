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

package pass_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/ir/irhelper"
	"github.com/gx-org/graphc/pass"
)

type modulePass struct {
	name  string
	apply func(*ir.Module) error
}

func (p modulePass) Name() string { return p.name }

func (p modulePass) Apply(m *ir.Module) error { return p.apply(m) }

type programPass struct {
	name string
}

func (p programPass) Name() string { return p.name }

func (p programPass) ApplyProgram(prog *ir.Program) error {
	prog.CreateModule(p.name)
	return nil
}

func newProgram() *ir.Program {
	p := ir.NewProgram()
	m := p.MainModule()
	one := irhelper.Float32(m, 1)
	irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, one))
	return p
}

func TestRunProgram(t *testing.T) {
	p := newProgram()
	var visited []string
	record := modulePass{name: "record", apply: func(m *ir.Module) error {
		visited = append(visited, m.Name())
		return nil
	}}
	stats, err := pass.RunProgramWithStats(p, record, programPass{name: "other"}, record)
	require.NoError(t, err)
	assert.Equal(t, []string{ir.MainModule, ir.MainModule, "other"}, visited)
	require.Len(t, stats, 4)
	assert.Equal(t, "other", stats[1].Pass)
	assert.Equal(t, 2, stats[0].Before)
	assert.Equal(t, 2, stats[0].After)
}

func TestRunErrors(t *testing.T) {
	fail := modulePass{name: "fail", apply: func(*ir.Module) error {
		return errors.New("failure")
	}}
	err := pass.Run(newProgram().MainModule(), fail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass fail")

	err = pass.Run(newProgram().MainModule(), programPass{name: "program"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be applied to a module")
}

func TestRunRecoversInternalErrors(t *testing.T) {
	remove := modulePass{name: "remove", apply: func(m *ir.Module) error {
		// Removing a literal still in use is a contract violation.
		m.RemoveInstruction(m.Begin())
		return nil
	}}
	err := pass.RunProgram(newProgram(), remove)
	var internal *ir.InternalError
	require.True(t, errors.As(err, &internal), "got %v", err)
}

func TestRunValidates(t *testing.T) {
	move := modulePass{name: "move", apply: func(m *ir.Module) error {
		m.MoveInstruction(m.Begin(), m.End())
		return nil
	}}
	err := pass.Run(newProgram().MainModule(), move)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after pass move")
}
