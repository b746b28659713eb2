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

package match

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/gx-org/graphc/base/ordered"
	"github.com/gx-org/graphc/internal/envconfig"
	"github.com/gx-org/graphc/internal/logutil"
	"github.com/gx-org/graphc/ir"
)

// Result of a match.
type Result struct {
	// Instructions bound by the matcher, in binding order.
	Instructions *ordered.Map[string, ir.Ref]
	// Result is the matched instruction, or the end of the module if there was no match.
	Result ir.Ref
}

// Instruction returns the instruction bound to a name.
func (r Result) Instruction(name string) (ir.Ref, bool) {
	if r.Instructions == nil {
		return ir.Ref{}, false
	}
	return r.Instructions.Load(name)
}

// Matched returns true if the result is a match.
func (r Result) Matched() bool {
	return !r.Result.IsEnd()
}

// Rule rewrites the instructions matched by a matcher.
type Rule interface {
	Matcher() Matcher
	Apply(mod *ir.Module, r Result) error
}

type rule struct {
	name  string
	m     Matcher
	apply func(*ir.Module, Result) error
}

// MakeRule returns a rule from a matcher and a function rewriting the matches.
func MakeRule(name string, m Matcher, apply func(*ir.Module, Result) error) Rule {
	return &rule{name: name, m: m, apply: apply}
}

func (r *rule) Matcher() Matcher { return r.m }

func (r *rule) Apply(mod *ir.Module, res Result) error { return r.apply(mod, res) }

func (r *rule) String() string { return r.name }

type skipRule struct {
	m Matcher
}

// SkipRule returns a rule consuming instructions matched by any of the
// matchers without rewriting them. Later rules do not see these instructions.
func SkipRule(ms ...Matcher) Rule {
	return skipRule{m: AnyOf(ms...)}
}

func (s skipRule) Matcher() Matcher { return s.m }

func (skipRule) Apply(*ir.Module, Result) error { return nil }

func (skipRule) String() string { return "skip" }

// MatchInstruction matches a single instruction of a module.
func MatchInstruction(mod *ir.Module, r ir.Ref, m Matcher) Result {
	ctx := NewContext(mod)
	if _, ok := m.Match(ctx, r); !ok {
		return Result{Result: mod.End()}
	}
	return Result{
		Instructions: ctx.instructions,
		Result:       r,
	}
}

// FindMatch returns the first instruction of a module matched by m.
func FindMatch(mod *ir.Module, m Matcher) Result {
	for r := range mod.All() {
		if res := MatchInstruction(mod, r, m); res.Matched() {
			return res
		}
	}
	return Result{Result: mod.End()}
}

func ruleName(r Rule) string {
	if s, ok := r.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", r)
}

func findMatchesAt(mod *ir.Module, r ir.Ref, trace bool, rules []Rule) error {
	for _, rule := range rules {
		res := MatchInstruction(mod, r, rule.Matcher())
		if !res.Matched() {
			continue
		}
		if trace {
			logutil.Trace("matched", "rule", ruleName(rule), "module", mod.Name(), "instruction", r.String())
		}
		if err := rule.Apply(mod, res); err != nil {
			return errors.Wrapf(err, "rule %s", ruleName(rule))
		}
		return nil
	}
	return nil
}

// FindMatchesAt applies the first rule matching an instruction.
func FindMatchesAt(mod *ir.Module, r ir.Ref, rules ...Rule) error {
	return findMatchesAt(mod, r, envconfig.TraceMatches(), rules)
}

// FindMatches applies, for every instruction of a module, the first rule matching it.
func FindMatches(mod *ir.Module, rules ...Rule) error {
	trace := envconfig.TraceMatches()
	for r := range mod.All() {
		if !mod.HasInstruction(r) {
			continue
		}
		if err := findMatchesAt(mod, r, trace, rules); err != nil {
			return err
		}
	}
	return nil
}
