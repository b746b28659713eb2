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

// Package match implements a combinator library to match patterns of
// instructions in a module, and a protocol to rewrite the matched instructions.
//
// A matcher takes an instruction and returns, on success, the matched
// instruction or an instruction related to it (for example its single consumer).
// Calling With on a matcher applies other matchers to its result.
package match

import (
	"iter"

	"github.com/gx-org/graphc/base/ordered"
	"github.com/gx-org/graphc/ir"
)

// Context of a match: the module being matched and the instructions
// bound to names during the match.
type Context struct {
	mod          *ir.Module
	instructions *ordered.Map[string, ir.Ref]
}

// NewContext returns a new context to match instructions of a module.
func NewContext(mod *ir.Module) *Context {
	return &Context{mod: mod, instructions: ordered.NewMap[string, ir.Ref]()}
}

// HasInstruction returns true if an instruction belongs to the module being matched.
func (ctx *Context) HasInstruction(r ir.Ref) bool {
	if ctx.mod == nil {
		return r.Valid()
	}
	return ctx.mod.HasInstruction(r)
}

// IsLast returns true if r is the last instruction of the module.
func (ctx *Context) IsLast(r ir.Ref) bool {
	return ctx.mod != nil && ctx.mod.Last() == r
}

// Matched returns true if m matches r.
// An instruction which is not in the module never matches.
func (ctx *Context) Matched(m Matcher, r ir.Ref) bool {
	_, ok := m.Match(ctx, r)
	return ok
}

// Instructions returns the instructions bound to names in the order
// the names have been first bound.
func (ctx *Context) Instructions() iter.Seq2[string, ir.Ref] {
	return ctx.instructions.Iter()
}

// mark returns the number of names bound so far.
func (ctx *Context) mark() int {
	return ctx.instructions.Size()
}

// unbind removes the names bound after mark.
func (ctx *Context) unbind(mark int) {
	var names []string
	i := 0
	for name := range ctx.instructions.Keys() {
		if i >= mark {
			names = append(names, name)
		}
		i++
	}
	for _, name := range names {
		ctx.instructions.Delete(name)
	}
}

// Func is the function implementing a matcher.
type Func func(ctx *Context, r ir.Ref) (ir.Ref, bool)

// Matcher matches an instruction.
type Matcher struct {
	f Func
}

// Make returns a matcher from a function.
func Make(f Func) Matcher {
	return Matcher{f: f}
}

// Predicate returns a matcher returning the instruction if p returns true.
func Predicate(p func(ir.Ref) bool) Matcher {
	return Make(func(_ *Context, r ir.Ref) (ir.Ref, bool) {
		if p(r) {
			return r, true
		}
		return r, false
	})
}

// Match an instruction.
func (m Matcher) Match(ctx *Context, r ir.Ref) (ir.Ref, bool) {
	if !ctx.HasInstruction(r) {
		return r, false
	}
	return m.f(ctx, r)
}

// With returns a matcher which succeeds if m succeeds and all the matchers ms
// match the result of m. The result of m is returned.
func (m Matcher) With(ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		res, ok := m.Match(ctx, r)
		if !ok {
			return res, false
		}
		for _, sub := range ms {
			if !ctx.Matched(sub, res) {
				return res, false
			}
		}
		return res, true
	})
}

// Bind returns a matcher recording the instruction given to m under a name if m succeeds.
func (m Matcher) Bind(name string) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		res, ok := m.Match(ctx, r)
		if !ok {
			return res, false
		}
		if !ctx.HasInstruction(r) {
			return res, false
		}
		ctx.instructions.Store(name, r)
		return res, true
	})
}
