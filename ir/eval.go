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
	"github.com/pkg/errors"

	"github.com/gx-org/graphc/internal/envconfig"
	"github.com/gx-org/graphc/internal/logutil"
)

// CanEval returns true if the value of the instruction can be computed
// at compile time, that is if it only depends on literals through
// pure operations that can be computed on the host.
func (r Ref) CanEval() bool {
	memo := make(map[Ref]bool)
	var canEval func(Ref) bool
	canEval = func(r Ref) bool {
		if v, ok := memo[r]; ok {
			return v
		}
		ins := r.ins()
		var v bool
		switch {
		case ins.op.Name() == LiteralName:
			v = true
		case IsBuiltin(ins.op.Name()), IsImpure(ins.op):
			v = false
		default:
			_, v = ins.op.(Computer)
			for _, in := range ins.inputs {
				if !v {
					break
				}
				v = canEval(in)
			}
		}
		memo[r] = v
		return v
	}
	return canEval(r)
}

// Eval computes the value of an instruction at compile time.
// It returns an empty argument and no error if the instruction cannot be evaluated.
func (r Ref) Eval() (Argument, error) {
	if !r.CanEval() {
		return EmptyArgument(), nil
	}
	values := make(map[Ref]Argument)
	var eval func(Ref) (Argument, error)
	eval = func(r Ref) (Argument, error) {
		if v, ok := values[r]; ok {
			return v, nil
		}
		ins := r.ins()
		if ins.op.Name() == LiteralName {
			return ins.lit, nil
		}
		args := make([]Argument, len(ins.inputs))
		for i, in := range ins.inputs {
			var err error
			if args[i], err = eval(in); err != nil {
				return Argument{}, err
			}
		}
		v, err := ins.op.(Computer).Compute(ins.shape, args)
		if err != nil {
			return Argument{}, errors.Wrapf(err, "cannot evaluate %s", ins.op.String())
		}
		values[r] = v
		return v, nil
	}
	return eval(r)
}

// Eval evaluates the module on the host given the values of its parameters.
func (m *Module) Eval(params map[string]Argument) ([]Argument, error) {
	trace := envconfig.TraceEval()
	values := make(map[Ref]Argument)
	for r := range m.All() {
		ins := r.ins()
		var val Argument
		switch op := ins.op.(type) {
		case LiteralOp:
			val = ins.lit
		case ParamOp:
			p, ok := params[op.Param]
			if !ok {
				return nil, errors.Errorf("module %q: missing value for parameter %q", m.name, op.Param)
			}
			if !p.Shape().SameLens(ins.shape) {
				return nil, errors.Errorf("module %q: parameter %q has shape {%s} but got a value of shape {%s}", m.name, op.Param, ins.shape, p.Shape())
			}
			val = p
		case ReturnOp:
			continue
		default:
			args := make([]Argument, len(ins.inputs))
			for i, in := range ins.inputs {
				args[i] = values[in]
			}
			var err error
			if val, err = compute(ins, args); err != nil {
				return nil, errors.Wrapf(err, "module %q: %v", m.name, r)
			}
		}
		if trace {
			logutil.Trace("eval", "module", m.name, "instruction", r, "op", ins.op.String(), "value", val)
		}
		values[r] = val
	}
	outs := m.Outputs()
	results := make([]Argument, len(outs))
	for i, out := range outs {
		results[i] = values[out]
	}
	return results, nil
}

func evalModule(mod *Module, params map[string]Argument) ([]Argument, error) {
	return mod.Eval(params)
}

func compute(ins *instruction, args []Argument) (Argument, error) {
	switch op := ins.op.(type) {
	case ModuleComputer:
		return op.ComputeModules(ins.shape, args, ins.mods, evalModule)
	case Computer:
		return op.Compute(ins.shape, args)
	}
	return Argument{}, errors.Errorf("operator %s cannot be evaluated on the host", ins.op.Name())
}
