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

package match_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gx-org/graphc/ir"
	"github.com/gx-org/graphc/ir/irhelper"
	"github.com/gx-org/graphc/match"
	"github.com/gx-org/graphc/op"
)

type sumModule struct {
	mod       *ir.Module
	one, two  ir.Ref
	sum, pass ir.Ref
}

// newSumModule builds pass(sum(1, 2)).
func newSumModule() sumModule {
	m := ir.NewModule("test")
	one := irhelper.Float32(m, 1)
	two := irhelper.Float32(m, 2)
	sum := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, two))
	pass := irhelper.Must(m.AddInstruction(irhelper.PassOp{}, sum))
	return sumModule{mod: m, one: one, two: two, sum: sum, pass: pass}
}

func TestFindMatch(t *testing.T) {
	lit := match.Name(ir.LiteralName)
	tests := []struct {
		desc string
		m    match.Matcher
		want func(sumModule) ir.Ref
	}{
		{
			desc: "standard shape",
			m:    match.StandardShape(),
			want: func(s sumModule) ir.Ref { return s.mod.Begin() },
		},
		{
			desc: "name",
			m:    match.Name("sum"),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "unknown name",
			m:    match.Name("min"),
		},
		{
			desc: "name with shape",
			m:    match.Name("sum").With(match.StandardShape()),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "first argument",
			m:    match.Name("sum").With(match.Arg(0).With(lit), match.StandardShape()),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "first argument mismatch",
			m:    match.Name("sum").With(match.Arg(0).With(match.Name("sum"))),
		},
		{
			desc: "second argument",
			m:    match.Name("sum").With(match.Arg(1).With(lit)),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "argument of pass",
			m:    match.Name("pass").With(match.Arg(0).With(match.Name("sum"))),
			want: func(s sumModule) ir.Ref { return s.pass },
		},
		{
			desc: "argument out of range",
			m:    match.Name("pass").With(match.Arg(1).With(match.Name("sum"))),
		},
		{
			desc: "both arguments",
			m:    match.Name("sum").With(match.Arg(0).With(lit), match.Arg(1).With(lit)),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "args",
			m:    match.Name("sum").With(match.Args(lit, lit), match.StandardShape()),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "args mismatch",
			m:    match.Name("sum").With(match.Args(lit, match.Name("sum"))),
		},
		{
			desc: "args count mismatch",
			m:    match.Name("sum").With(match.Args(lit)),
		},
		{
			desc: "nested args",
			m:    match.Name("pass").With(match.Args(match.Name("sum").With(match.Args(lit, lit)))),
			want: func(s sumModule) ir.Ref { return s.pass },
		},
		{
			desc: "either args",
			m:    match.Name("sum").With(match.EitherArg(0, 1, match.Name("pass"), lit)),
		},
		{
			desc: "all of",
			m:    match.Name("sum").With(match.AllOf(match.Arg(0).With(lit), match.Arg(1).With(lit))),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "all of mismatch",
			m:    match.Name("sum").With(match.AllOf(match.Arg(0).With(match.Name("sum")), match.Arg(1).With(lit))),
		},
		{
			desc: "any of",
			m:    match.Name("sum").With(match.AnyOf(match.Arg(0).With(match.Name("sum")), match.Arg(1).With(lit))),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "any of mismatch",
			m:    match.Name("sum").With(match.AnyOf(match.Arg(0).With(match.Name("sum")), match.Arg(1).With(match.Name("sum")))),
		},
		{
			desc: "none of",
			m:    match.Name("sum").With(match.NoneOf(match.Arg(0).With(match.Name("sum")), match.Arg(1).With(match.Name("sum")))),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "none of mismatch",
			m:    match.Name("sum").With(match.NoneOf(match.Arg(0).With(lit), match.Arg(1).With(lit))),
		},
		{
			desc: "all inputs",
			m:    match.AllOfOn(match.Inputs(), lit).With(match.NArgs(2)),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "any output",
			m:    match.AnyOfOn(match.Outputs(), match.Name("pass")),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "no output",
			m:    match.NoneOfOn(match.Outputs(), match.Any()).With(match.Name("pass")),
			want: func(s sumModule) ir.Ref { return s.pass },
		},
		{
			desc: "output",
			m:    match.Output().With(match.Name("pass")),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "used once",
			m:    match.Name("pass").With(match.UsedOnce()),
			want: func(s sumModule) ir.Ref { return s.pass },
		},
		{
			desc: "constant",
			m:    match.Name("sum").With(match.IsConstant()),
			want: func(s sumModule) ir.Ref { return s.sum },
		},
		{
			desc: "has value",
			m:    match.HasValue(1),
			want: func(s sumModule) ir.Ref { return s.one },
		},
		{
			desc: "skip output",
			m:    match.Name(ir.LiteralName).With(match.SkipOutput(match.Name("sum")).With(match.Name("pass"))),
			want: func(s sumModule) ir.Ref { return s.mod.Begin() },
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			s := newSumModule()
			want := s.mod.End()
			if test.want != nil {
				want = test.want(s)
			}
			got := match.FindMatch(s.mod, test.m)
			if got.Result != want {
				t.Errorf("got %v but want %v", got.Result, want)
			}
		})
	}
}

func TestEitherArg(t *testing.T) {
	m := ir.NewModule("test")
	one := irhelper.Float32(m, 1)
	two := irhelper.Float32(m, 2)
	sum1 := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, two))
	sum2 := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, sum1, two))
	irhelper.Must(m.AddInstruction(irhelper.PassOp{}, sum2))
	lit, sum := match.Name(ir.LiteralName), match.Name("sum")
	assert.Equal(t, sum2, match.FindMatch(m, match.Name("sum").With(match.EitherArg(0, 1, sum, lit))).Result)
	assert.Equal(t, sum2, match.FindMatch(m, match.Name("sum").With(match.EitherArg(0, 1, lit, sum))).Result)
	assert.Equal(t, sum2, match.FindMatch(m, match.Name("sum").With(match.AnyArg(0, 1, sum))).Result)
	assert.Equal(t, sum2, match.FindMatch(m, match.Name("sum").With(match.Args(sum, lit))).Result)
}

func TestBind(t *testing.T) {
	s := newSumModule()
	lit := match.Name(ir.LiteralName)
	m := match.Name("pass").With(
		match.Args(match.Name("sum").With(match.Args(lit.Bind("one"), lit.Bind("two"))).Bind("sum")),
		match.StandardShape(),
	).Bind("pass")
	got := match.FindMatch(s.mod, m)
	wantNames := []string{"one", "two", "sum", "pass"}
	wantRefs := []ir.Ref{s.one, s.two, s.sum, s.pass}
	var names []string
	var refs []ir.Ref
	for name, r := range got.Instructions.Iter() {
		names = append(names, name)
		refs = append(refs, r)
	}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("unexpected binding order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantRefs, refs, cmp.Comparer(func(a, b ir.Ref) bool { return a == b })); diff != "" {
		t.Errorf("unexpected bindings (-want +got):\n%s", diff)
	}
	assert.Equal(t, s.pass, got.Result)
}

func TestBindFailedAlternative(t *testing.T) {
	s := newSumModule()
	lit := match.Name(ir.LiteralName)
	m := match.Name("sum").With(match.AnyOf(
		match.Args(lit.Bind("first"), match.Name("sum")),
		match.Args(lit.Bind("x"), lit.Bind("y")),
	))
	got := match.MatchInstruction(s.mod, s.sum, m)
	require.True(t, got.Matched())
	if _, ok := got.Instruction("first"); ok {
		t.Errorf("name bound by a failed alternative")
	}
	x, ok := got.Instruction("x")
	require.True(t, ok)
	assert.Equal(t, s.one, x)
	assert.Equal(t, 2, got.Instructions.Size())
}

func TestBindFailure(t *testing.T) {
	s := newSumModule()
	m := match.Name("sum").With(match.Arg(0).With(match.Name("sum").Bind("x")))
	got := match.MatchInstruction(s.mod, s.sum, m)
	assert.False(t, got.Matched())
	assert.Empty(t, got.Instructions)
}

func TestRemovedInstructionNeverMatches(t *testing.T) {
	s := newSumModule()
	s.mod.RemoveInstruction(s.pass)
	ctx := match.NewContext(s.mod)
	assert.False(t, ctx.Matched(match.Any(), s.pass))
	assert.True(t, ctx.Matched(match.Any(), s.sum))
}

func TestUsage(t *testing.T) {
	m := ir.NewModule("test")
	one := irhelper.Float32(m, 1)
	unused := irhelper.Must(m.AddInstruction(irhelper.PassOp{}, one))
	last := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, one, one))
	ctx := match.NewContext(m)
	assert.True(t, ctx.Matched(match.IsUnused(), unused))
	assert.False(t, ctx.Matched(match.UsedOnce(), unused))
	assert.False(t, ctx.Matched(match.IsUnused(), last))
	assert.True(t, ctx.Matched(match.UsedOnce(), last))
	assert.False(t, ctx.Matched(match.UsedOnce(), one))
}

func TestTree(t *testing.T) {
	m := ir.NewModule("test")
	x := m.AddParameter("x", ir.NewShape(dtype.Float32, 1))
	y := m.AddParameter("y", ir.NewShape(dtype.Float32, 1))
	z := m.AddParameter("z", ir.NewShape(dtype.Float32, 1))
	xy := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, x, y))
	xyz := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, xy, z))
	param := func(name string) match.Matcher {
		return match.Predicate(func(r ir.Ref) bool { return r.Op() == ir.ParamOp{Param: name} })
	}
	sum := match.Name("sum")
	tests := []struct {
		desc string
		m    match.Matcher
		want bool
	}{
		{
			desc: "ordered leaves",
			m:    match.Tree(sum, param("x"), param("y"), param("z")),
			want: true,
		},
		{
			desc: "wrong order",
			m:    match.Tree(sum, param("z"), param("y"), param("x")),
		},
		{
			desc: "unordered leaves",
			m:    match.UnorderedTree(sum, param("z"), param("x"), param("y")),
			want: true,
		},
		{
			desc: "too few matchers",
			m:    match.Tree(sum, param("x"), param("y")),
		},
		{
			desc: "too many matchers",
			m:    match.UnorderedTree(sum, param("x"), param("y"), param("z"), param("z")),
		},
	}
	ctx := match.NewContext(m)
	for _, test := range tests {
		if got := ctx.Matched(test.m, xyz); got != test.want {
			t.Errorf("%s: got %v but want %v", test.desc, got, test.want)
		}
	}
}

func TestSkip(t *testing.T) {
	m := ir.NewModule("test")
	lit := m.AddLiteral(ir.Values(dtype.Float32, 3.0))
	b := irhelper.Must(m.AddInstruction(op.MultiBroadcast{OutLens: []int{2, 3}}, lit))
	c := irhelper.Must(m.AddInstruction(op.Contiguous{}, b))
	x := m.AddParameter("x", ir.NewShape(dtype.Float32, 2, 3))
	sum := irhelper.Must(m.AddInstruction(irhelper.SumOp{}, x, c))
	ctx := match.NewContext(m)

	got, ok := match.Skip(match.Name("contiguous", "multibroadcast")).Match(ctx, c)
	require.True(t, ok)
	assert.Equal(t, lit, got)
	assert.True(t, ctx.Matched(match.HasValue(3), c))
	assert.False(t, ctx.Matched(match.HasValue(2), c))
	assert.True(t, ctx.Matched(match.HasValueWithTolerance(2.9, 0.5), c))
	assert.True(t, ctx.Matched(match.Name("sum").With(match.AnyArg(0, 1, match.HasValue(3))), sum))
	assert.True(t, ctx.Matched(match.BroadcastShape(), b))
	assert.True(t, ctx.Matched(match.SameShape(match.Arg(0)), sum))
	assert.True(t, ctx.Matched(match.SameInputShapes(), sum))
}

type countRule struct {
	name  string
	count *int
}

func (r countRule) Matcher() match.Matcher { return match.Name(r.name) }

func (r countRule) Apply(_ *ir.Module, res match.Result) error {
	if res.Result.Name() != r.name {
		return errors.Errorf("rule %s applied to %s", r.name, res.Result.Name())
	}
	*r.count++
	return nil
}

func TestFindMatches(t *testing.T) {
	s := newSumModule()
	var sums, lits, anys int
	err := match.FindMatches(s.mod,
		countRule{name: "sum", count: &sums},
		countRule{name: ir.LiteralName, count: &lits},
		match.MakeRule("any", match.Any(), func(*ir.Module, match.Result) error {
			anys++
			return nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, sums)
	assert.Equal(t, 2, lits)
	assert.Equal(t, 1, anys)
}

func TestSkipRule(t *testing.T) {
	s := newSumModule()
	var sums int
	err := match.FindMatches(s.mod,
		match.SkipRule(match.Name("sum")),
		countRule{name: "sum", count: &sums},
	)
	require.NoError(t, err)
	assert.Equal(t, 0, sums)
}

func TestRewrite(t *testing.T) {
	s := newSumModule()
	minus := match.MakeRule("sum_to_minus", match.Name("sum").With(match.Args(match.Any().Bind("x"), match.Any().Bind("y"))),
		func(mod *ir.Module, res match.Result) error {
			x, _ := res.Instruction("x")
			y, _ := res.Instruction("y")
			_, err := mod.ReplaceInstruction(res.Result, irhelper.MinusOp{}, y, x)
			return err
		})
	require.NoError(t, match.FindMatches(s.mod, minus))
	got, err := irhelper.Eval(s.mod)
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{1}, got.Data()); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestRuleError(t *testing.T) {
	s := newSumModule()
	fail := match.MakeRule("fail", match.Name("pass"), func(*ir.Module, match.Result) error {
		return errors.New("failed")
	})
	err := match.FindMatches(s.mod, fail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule fail")
}
