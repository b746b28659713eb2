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
	"slices"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Validate checks the consistency of the module and returns all the errors found:
//   - inputs of an instruction are instructions of the module positioned before it,
//   - inputs and outputs are symmetric,
//   - the stored shape of an instruction matches the shape computed from its inputs,
//   - a return instruction can only be the last instruction.
func (m *Module) Validate() error {
	var errs error
	seen := make(map[Ref]bool)
	last := m.Last()
	for r := range m.All() {
		ins := r.ins()
		inputsOK := true
		for i, in := range ins.inputs {
			if !m.HasInstruction(in) {
				errs = multierr.Append(errs, errors.Errorf("%s: %v: input %d is not an instruction of the module", m.name, r, i))
				inputsOK = false
				continue
			}
			if !seen[in] {
				errs = multierr.Append(errs, errors.Errorf("%s: %v: input %d (%v) is not defined before its use", m.name, r, i, in))
			}
			if !slices.Contains(in.ins().outputs, r) {
				errs = multierr.Append(errs, errors.Errorf("%s: %v: missing from the outputs of its input %v", m.name, r, in))
			}
		}
		for _, out := range ins.outputs {
			if !m.HasInstruction(out) {
				errs = multierr.Append(errs, errors.Errorf("%s: %v: output %v is not an instruction of the module", m.name, r, out))
				continue
			}
			if !slices.Contains(out.ins().inputs, r) {
				errs = multierr.Append(errs, errors.Errorf("%s: %v: output %v does not use it", m.name, r, out))
			}
		}
		if ins.op.Name() == ReturnName && r != last {
			errs = multierr.Append(errs, errors.Errorf("%s: %v: return is not the last instruction", m.name, r))
		}
		if inputsOK && !IsBuiltin(ins.op.Name()) {
			s, err := computeShape(ins.op, ins.inputs, ins.mods)
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s: %v", m.name, r))
			} else if !s.Equal(ins.shape) {
				errs = multierr.Append(errs, errors.Errorf("%s: %v: stored shape {%s} does not match computed shape {%s}", m.name, r, ins.shape, s))
			}
		}
		seen[r] = true
	}
	return errs
}
