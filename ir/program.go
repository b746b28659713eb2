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

package ir

import (
	"strings"

	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/multierr"
)

// MainModule is the name of the entry module of a program.
const MainModule = "main"

// Compiler lowers a program for a target and returns the context
// used to run the compiled program.
type Compiler interface {
	Name() string
	CompileProgram(p *Program) (any, error)
}

// Program is a set of named modules with a distinguished main module.
type Program struct {
	mods *orderedmap.OrderedMap[string, *Module]

	target  string
	context any
}

// NewProgram returns a program with an empty main module.
func NewProgram() *Program {
	p := &Program{mods: orderedmap.New[string, *Module]()}
	p.CreateModule(MainModule)
	return p
}

// CreateModule creates a new empty module in the program.
// Creating two modules with the same name is a contract violation.
func (p *Program) CreateModule(name string) *Module {
	if _, ok := p.mods.Get(name); ok {
		panicf("module %q already exists", name)
	}
	mod := NewModule(name)
	p.mods.Set(name, mod)
	return mod
}

// Module returns a module given its name.
func (p *Program) Module(name string) (*Module, bool) {
	return p.mods.Get(name)
}

// MainModule returns the entry module.
func (p *Program) MainModule() *Module {
	mod, _ := p.mods.Get(MainModule)
	return mod
}

// Modules returns all the modules in creation order.
func (p *Program) Modules() []*Module {
	mods := make([]*Module, 0, p.mods.Len())
	for pair := p.mods.Oldest(); pair != nil; pair = pair.Next() {
		mods = append(mods, pair.Value)
	}
	return mods
}

// RemoveModule removes a module from the program.
func (p *Program) RemoveModule(name string) {
	if name == MainModule {
		panicf("cannot remove the main module")
	}
	p.mods.Delete(name)
}

// RemoveUnusedModules removes all modules which cannot be reached from
// the main module through the sub-modules of its instructions.
func (p *Program) RemoveUnusedModules() {
	reached := map[*Module]bool{}
	stack := []*Module{p.MainModule()}
	for len(stack) > 0 {
		mod := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[mod] {
			continue
		}
		reached[mod] = true
		for ins := range mod.All() {
			stack = append(stack, ins.ins().mods...)
		}
	}
	for _, mod := range p.Modules() {
		if !reached[mod] {
			p.mods.Delete(mod.Name())
		}
	}
}

// Compile lowers the program with a compiler.
// Internal errors raised while compiling are returned as errors.
func (p *Program) Compile(c Compiler) (err error) {
	defer Recover(&err)
	ctx, err := c.CompileProgram(p)
	if err != nil {
		return errors.Wrapf(err, "cannot compile program for target %s", c.Name())
	}
	p.target = c.Name()
	p.context = ctx
	return nil
}

// IsCompiled returns true if the program has been compiled for a target.
func (p *Program) IsCompiled() bool {
	return p.target != ""
}

// Target returns the name of the target the program has been compiled for.
func (p *Program) Target() string {
	return p.target
}

// Context returns the context created by the target when compiling the program.
func (p *Program) Context() any {
	return p.context
}

// Eval evaluates the main module on the host.
func (p *Program) Eval(params map[string]Argument) (_ []Argument, err error) {
	defer Recover(&err)
	return p.MainModule().Eval(params)
}

// ParameterNames returns the names of the parameters of the main module.
func (p *Program) ParameterNames() []string {
	return p.MainModule().ParameterNames()
}

// ParameterShapes returns the shapes of the parameters of the main module.
func (p *Program) ParameterShapes() map[string]Shape {
	return p.MainModule().ParameterShapes()
}

// OutputShapes returns the shapes of the results of the main module.
func (p *Program) OutputShapes() []Shape {
	return p.MainModule().OutputShapes()
}

// Validate all the modules of the program.
func (p *Program) Validate() error {
	var errs error
	for _, mod := range p.Modules() {
		errs = multierr.Append(errs, mod.Validate())
	}
	return errs
}

func (p *Program) String() string {
	var b strings.Builder
	for i, mod := range p.Modules() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(mod.String())
	}
	return b.String()
}
