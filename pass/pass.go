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

// Package pass defines the interfaces of the passes transforming modules and
// programs, and runs pipelines of passes.
package pass

import (
	"time"

	"github.com/pkg/errors"

	"github.com/gx-org/graphc/internal/envconfig"
	"github.com/gx-org/graphc/internal/logutil"
	"github.com/gx-org/graphc/ir"
)

type (
	// Pass is a named transformation.
	Pass interface {
		Name() string
	}

	// ModulePass transforms a module.
	ModulePass interface {
		Pass
		Apply(*ir.Module) error
	}

	// ProgramPass transforms a program.
	ProgramPass interface {
		Pass
		ApplyProgram(*ir.Program) error
	}
)

// Stat records the application of a pass to a module.
type Stat struct {
	Pass    string
	Module  string
	Before  int
	After   int
	Elapsed time.Duration
}

type runner struct {
	trace bool
	stats []Stat
}

func (r *runner) applyModule(p ModulePass, m *ir.Module) error {
	before := m.Size()
	start := time.Now()
	if err := p.Apply(m); err != nil {
		return errors.Wrapf(err, "pass %s: module %s", p.Name(), m.Name())
	}
	r.stats = append(r.stats, Stat{
		Pass:    p.Name(),
		Module:  m.Name(),
		Before:  before,
		After:   m.Size(),
		Elapsed: time.Since(start),
	})
	if r.trace {
		logutil.Trace("pass", "name", p.Name(), "module", m.Name(), "ir", m.String())
	}
	if err := m.Validate(); err != nil {
		return errors.Wrapf(err, "invalid module %s after pass %s", m.Name(), p.Name())
	}
	return nil
}

func (r *runner) applyProgram(p ProgramPass, prog *ir.Program) error {
	before := prog.MainModule().Size()
	start := time.Now()
	if err := p.ApplyProgram(prog); err != nil {
		return errors.Wrapf(err, "pass %s", p.Name())
	}
	r.stats = append(r.stats, Stat{
		Pass:    p.Name(),
		Module:  ir.MainModule,
		Before:  before,
		After:   prog.MainModule().Size(),
		Elapsed: time.Since(start),
	})
	if r.trace {
		logutil.Trace("pass", "name", p.Name(), "ir", prog.String())
	}
	if err := prog.Validate(); err != nil {
		return errors.Wrapf(err, "invalid program after pass %s", p.Name())
	}
	return nil
}

// Run applies module passes in order to a module.
// The module is validated after each pass.
func Run(m *ir.Module, passes ...Pass) (err error) {
	defer ir.Recover(&err)
	r := &runner{trace: envconfig.TracePasses()}
	for _, p := range passes {
		mp, ok := p.(ModulePass)
		if !ok {
			return errors.Errorf("pass %s cannot be applied to a module", p.Name())
		}
		if err := r.applyModule(mp, m); err != nil {
			return err
		}
	}
	return nil
}

// RunProgram applies passes in order to a program.
// A module pass is applied to every module of the program.
// A program pass is applied to the program after the module pass if a pass implements both.
func RunProgram(prog *ir.Program, passes ...Pass) error {
	_, err := RunProgramWithStats(prog, passes...)
	return err
}

// RunProgramWithStats applies passes to a program and returns statistics about
// every application.
func RunProgramWithStats(prog *ir.Program, passes ...Pass) (_ []Stat, err error) {
	defer ir.Recover(&err)
	r := &runner{trace: envconfig.TracePasses()}
	for _, p := range passes {
		mp, isModulePass := p.(ModulePass)
		pp, isProgramPass := p.(ProgramPass)
		if !isModulePass && !isProgramPass {
			return r.stats, errors.Errorf("pass %s is neither a module nor a program pass", p.Name())
		}
		if isModulePass {
			for _, m := range prog.Modules() {
				if err := r.applyModule(mp, m); err != nil {
					return r.stats, err
				}
			}
		}
		if isProgramPass {
			if err := r.applyProgram(pp, prog); err != nil {
				return r.stats, err
			}
		}
	}
	return r.stats, nil
}
