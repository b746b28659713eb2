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

package ir_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/ir/irhelper"
)

type compilerFunc func(*ir.Program) (any, error)

func (compilerFunc) Name() string { return "test" }

func (f compilerFunc) CompileProgram(p *ir.Program) (any, error) { return f(p) }

func moduleNames(p *ir.Program) []string {
	var ns []string
	for _, mod := range p.Modules() {
		ns = append(ns, mod.Name())
	}
	return ns
}

func TestRemoveUnusedModules(t *testing.T) {
	p := ir.NewProgram()
	then := p.CreateModule("then")
	p.CreateModule("unused")
	nested := p.CreateModule("nested")
	irhelper.Must(then.AddInstructionWithModules(irhelper.NopOp{}, nil, []*ir.Module{nested}))
	main := p.MainModule()
	irhelper.Must(main.AddInstructionWithModules(irhelper.NopOp{}, nil, []*ir.Module{then}))
	p.RemoveUnusedModules()
	if diff := cmp.Diff([]string{"main", "then", "nested"}, moduleNames(p)); diff != "" {
		t.Errorf("unexpected modules (-want +got):\n%s", diff)
	}
}

func TestCompile(t *testing.T) {
	p := ir.NewProgram()
	require.False(t, p.IsCompiled())
	err := p.Compile(compilerFunc(func(*ir.Program) (any, error) {
		return "context", nil
	}))
	require.NoError(t, err)
	assert.True(t, p.IsCompiled())
	assert.Equal(t, "test", p.Target())
	assert.Equal(t, "context", p.Context())
}

func TestCompileInternalError(t *testing.T) {
	p := ir.NewProgram()
	m := p.MainModule()
	one := irhelper.Float32(m, 1)
	irhelper.Must(m.AddInstruction(irhelper.PassOp{}, one))
	err := p.Compile(compilerFunc(func(p *ir.Program) (any, error) {
		p.MainModule().RemoveInstruction(one)
		return nil, nil
	}))
	var internal *ir.InternalError
	if !errors.As(err, &internal) {
		t.Errorf("expected an internal error but got %v", err)
	}
	assert.False(t, p.IsCompiled())
}

func TestCreateModuleTwice(t *testing.T) {
	p := ir.NewProgram()
	mustPanicInternal(t, func() { p.CreateModule(ir.MainModule) })
}
