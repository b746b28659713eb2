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
	"math"
	"slices"
	"strings"

	"github.com/gx-org/graphc/ir"
)

// Any matches every instruction.
func Any() Matcher {
	return Predicate(func(ir.Ref) bool { return true })
}

// None never matches.
func None() Matcher {
	return Predicate(func(ir.Ref) bool { return false })
}

// Name matches instructions applying one of the named operators.
func Name(names ...string) Matcher {
	return Predicate(func(r ir.Ref) bool {
		return slices.Contains(names, r.Name())
	})
}

// NameContains matches instructions whose operator name contains s.
func NameContains(s string) Matcher {
	return Predicate(func(r ir.Ref) bool {
		return strings.Contains(r.Name(), s)
	})
}

// NArgs matches instructions with n inputs.
func NArgs(n int) Matcher {
	return Predicate(func(r ir.Ref) bool {
		return r.NumInputs() == n
	})
}

// Arg returns the i-th input of an instruction.
func Arg(i int) Matcher {
	return Make(func(_ *Context, r ir.Ref) (ir.Ref, bool) {
		if i < r.NumInputs() {
			return r.Input(i), true
		}
		return r, false
	})
}

// Args matches instructions with exactly len(ms) inputs where input i matches ms[i].
func Args(ms ...Matcher) Matcher {
	all := []Matcher{NArgs(len(ms))}
	for i, m := range ms {
		all = append(all, Arg(i).With(m))
	}
	return AllOf(all...)
}

// EitherArg matches if inputs i and j match m1 and m2, in any order.
func EitherArg(i, j int, m1, m2 Matcher) Matcher {
	return AnyOf(
		AllOf(Arg(i).With(m1), Arg(j).With(m2)),
		AllOf(Arg(j).With(m1), Arg(i).With(m2)),
	)
}

// AnyArg matches if input i or input j matches m.
func AnyArg(i, j int, m Matcher) Matcher {
	return AnyOf(Arg(i).With(m), Arg(j).With(m))
}

// AllOf matches if all matchers match the instruction.
func AllOf(ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		return r, allOf(ctx, r, ms)
	})
}

// AnyOf matches if at least one matcher matches the instruction.
func AnyOf(ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		return r, anyOf(ctx, r, ms)
	})
}

// NoneOf matches if no matcher matches the instruction.
func NoneOf(ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		return r, !anyOf(ctx, r, ms)
	})
}

func allOf(ctx *Context, r ir.Ref, ms []Matcher) bool {
	for _, m := range ms {
		if !ctx.Matched(m, r) {
			return false
		}
	}
	return true
}

// anyOf keeps the bindings of the first matcher which matches only.
func anyOf(ctx *Context, r ir.Ref, ms []Matcher) bool {
	for _, m := range ms {
		mark := ctx.mark()
		if ctx.Matched(m, r) {
			return true
		}
		ctx.unbind(mark)
	}
	return false
}

// Selector returns instructions related to an instruction.
type Selector func(ir.Ref) []ir.Ref

// Inputs selects the inputs of an instruction.
func Inputs() Selector {
	return ir.Ref.Inputs
}

// Outputs selects the consumers of an instruction.
func Outputs() Selector {
	return ir.Ref.Outputs
}

// AllOfOn matches if all matchers match every selected instruction.
func AllOfOn(sel Selector, ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		for _, x := range sel(r) {
			if !allOf(ctx, x, ms) {
				return r, false
			}
		}
		return r, true
	})
}

// AnyOfOn matches if a matcher matches at least one selected instruction.
func AnyOfOn(sel Selector, ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		for _, x := range sel(r) {
			if anyOf(ctx, x, ms) {
				return r, true
			}
		}
		return r, false
	})
}

// NoneOfOn matches if no matcher matches any selected instruction.
func NoneOfOn(sel Selector, ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		for _, x := range sel(r) {
			if anyOf(ctx, x, ms) {
				return r, false
			}
		}
		return r, true
	})
}

// StandardShape matches instructions with a standard shape.
func StandardShape() Matcher {
	return Predicate(func(r ir.Ref) bool { return r.Shape().Standard() })
}

// NotStandardShape matches instructions without a standard shape.
func NotStandardShape() Matcher {
	return Predicate(func(r ir.Ref) bool { return !r.Shape().Standard() })
}

// BroadcastShape matches instructions with a broadcast shape.
func BroadcastShape() Matcher {
	return Predicate(func(r ir.Ref) bool { return r.Shape().Broadcasted() })
}

// TransposeShape matches instructions with a transposed shape.
func TransposeShape() Matcher {
	return Predicate(func(r ir.Ref) bool { return r.Shape().Transposed() })
}

// SameInputShapes matches instructions whose inputs all have the same shape.
func SameInputShapes() Matcher {
	return Predicate(func(r ir.Ref) bool {
		inputs := r.Inputs()
		if len(inputs) == 0 {
			return false
		}
		s := inputs[0].Shape()
		for _, in := range inputs[1:] {
			if !in.Shape().Equal(s) {
				return false
			}
		}
		return true
	})
}

// Output returns the single consumer of an instruction.
func Output() Matcher {
	return Make(func(_ *Context, r ir.Ref) (ir.Ref, bool) {
		if r.NumOutputs() == 1 {
			return r.Outputs()[0], true
		}
		return r, false
	})
}

// UsedOnce matches instructions with a single consumer, or the
// last instruction of the module if it has no consumer.
func UsedOnce() Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		n := r.NumOutputs()
		return r, n == 1 || (n == 0 && ctx.IsLast(r))
	})
}

// IsUnused matches instructions without consumers which are not the last instruction.
func IsUnused() Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		return r, r.NumOutputs() == 0 && !ctx.IsLast(r)
	})
}

// IsConstant matches instructions which can be evaluated at compile time.
func IsConstant() Matcher {
	return Predicate(ir.Ref.CanEval)
}

// Skip walks up the inputs of instructions with a single input matching
// any of the matchers and returns the first instruction which does not.
func Skip(ms ...Matcher) Matcher {
	m := AnyOf(ms...)
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		for r.NumInputs() == 1 && ctx.Matched(m, r) {
			r = r.Input(0)
		}
		return r, true
	})
}

// SkipOutput walks down single consumers matching any of the matchers
// and returns the first consumer which does not match or which does not
// have a single consumer. It fails if the instruction does not have a single consumer.
func SkipOutput(ms ...Matcher) Matcher {
	m := AnyOf(ms...)
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		if r.NumOutputs() != 1 {
			return r, false
		}
		next := r.Outputs()[0]
		for ctx.Matched(m, next) && next.NumOutputs() == 1 {
			next = next.Outputs()[0]
		}
		return next, true
	})
}

// SkipBroadcasts applies the matchers after skipping layout operators.
func SkipBroadcasts(ms ...Matcher) Matcher {
	return Skip(Name("broadcast", "multibroadcast", "contiguous")).With(ms...)
}

// treeLeaves flattens the nested applications of the main matcher into leaves.
func treeLeaves(ctx *Context, main Matcher, r ir.Ref) []ir.Ref {
	var leaves []ir.Ref
	stack := []ir.Ref{r}
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if x.NumInputs() >= 2 && ctx.Matched(main, x) {
			stack = append(stack, x.Input(1), x.Input(0))
			continue
		}
		leaves = append(leaves, x)
	}
	return leaves
}

// Tree matches a tree of nested applications of main whose leaves,
// in order, match ms.
func Tree(main Matcher, ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		leaves := treeLeaves(ctx, main, r)
		if len(leaves) != len(ms) {
			return r, false
		}
		for i, m := range ms {
			if !ctx.Matched(m, leaves[i]) {
				return r, false
			}
		}
		return r, true
	})
}

// UnorderedTree matches a tree of nested applications of main where
// every matcher matches at least one leaf.
func UnorderedTree(main Matcher, ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		leaves := treeLeaves(ctx, main, r)
		if len(leaves) != len(ms) {
			return r, false
		}
		for _, m := range ms {
			found := false
			for _, leaf := range leaves {
				if ctx.Matched(m, leaf) {
					found = true
					break
				}
			}
			if !found {
				return r, false
			}
		}
		return r, true
	})
}

// SameShape matches instructions with the same shape as the results of all the matchers.
func SameShape(ms ...Matcher) Matcher {
	return Make(func(ctx *Context, r ir.Ref) (ir.Ref, bool) {
		for _, m := range ms {
			res, ok := m.Match(ctx, r)
			if !ok || !res.Shape().Equal(r.Shape()) {
				return r, false
			}
		}
		return r, true
	})
}

// DefaultTolerance of HasValue.
const DefaultTolerance = 1e-6

// HasValue matches literals, possibly broadcast, whose values are all x.
func HasValue(x float64) Matcher {
	return HasValueWithTolerance(x, DefaultTolerance)
}

// HasValueWithTolerance matches literals, possibly broadcast, whose values are all within tol of x.
func HasValueWithTolerance(x, tol float64) Matcher {
	return SkipBroadcasts(Predicate(func(r ir.Ref) bool {
		lit, ok := r.Literal()
		if !ok || lit.Empty() {
			return false
		}
		for _, v := range lit.Data() {
			if math.Abs(v-x) >= tol {
				return false
			}
		}
		return true
	}))
}

// HasAttribute matches instructions whose operator declares an attribute.
func HasAttribute(name string) Matcher {
	return Predicate(func(r ir.Ref) bool {
		return ir.HasAttribute(r.Op(), name)
	})
}

// Pointwise matches pointwise operators with one or two inputs.
func Pointwise(ms ...Matcher) Matcher {
	return HasAttribute("pointwise").With(append([]Matcher{AnyOf(NArgs(1), NArgs(2))}, ms...)...)
}
