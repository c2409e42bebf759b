package treewalk

import (
	"testing"

	"github.com/corepolicy/rvm/internal/analyzer"
	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/parser"
	"github.com/corepolicy/rvm/internal/source"
	"github.com/corepolicy/rvm/internal/value"
)

type stubBuiltins struct{ names map[string]int }

func (s stubBuiltins) Lookup(name string) (int, bool) {
	idx, ok := s.names[name]
	return idx, ok
}

func (s stubBuiltins) Call(index int, args []value.Value) (value.Value, error) {
	switch index {
	case 0: // count
		switch args[0].Kind() {
		case value.KindArray:
			a, _ := args[0].AsArray()
			return value.IntValue(int64(len(a))), nil
		case value.KindSet:
			set, _ := args[0].AsSet()
			return value.IntValue(int64(set.Len())), nil
		}
		return value.Undefined(), nil
	default:
		return value.Undefined(), nil
	}
}

func defaultBuiltins() stubBuiltins {
	return stubBuiltins{names: map[string]int{"count": 0}}
}

func evaluatorFor(t *testing.T, text string) *Evaluator {
	t.Helper()
	src := source.New("test.policy", text)
	p := parser.New(lexer.New(src), "test.policy")
	mod := p.ParseModule()
	if len(p.Diagnostics()) != 0 {
		t.Fatalf("parse diagnostics: %v", p.Diagnostics())
	}
	ctx := analyzer.Analyze(mod)
	if ctx.HasErrors() {
		t.Fatalf("analyzer diagnostics: %v", ctx.Diagnostics)
	}
	return New(mod, ctx, defaultBuiltins())
}

func TestEvalRuleCompleteDocTrue(t *testing.T) {
	e := evaluatorFor(t, `package app

allow = true { input.user == "admin" }
`)
	e.SetInput(value.NewObject([]value.Pair{{Key: value.Str("user"), Value: value.Str("admin")}}))

	got, err := e.EvalRule("allow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b, _ := got.AsBool(); !b {
		t.Fatalf("expected allow to be true, got %v", got)
	}
}

func TestEvalRuleCompleteDocUndefinedWhenBodyFails(t *testing.T) {
	e := evaluatorFor(t, `package app

allow = true { input.user == "admin" }
`)
	e.SetInput(value.NewObject([]value.Pair{{Key: value.Str("user"), Value: value.Str("guest")}}))

	got, err := e.EvalRule("allow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsUndefined() {
		t.Fatalf("expected Undefined, got %v", got)
	}
}

func TestEvalRuleDefaultFallsBackWhenNoBodyMatches(t *testing.T) {
	e := evaluatorFor(t, `package app

default allow = false

allow = true { input.user == "admin" }
`)
	e.SetInput(value.NewObject([]value.Pair{{Key: value.Str("user"), Value: value.Str("guest")}}))

	got, err := e.EvalRule("allow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b, _ := got.AsBool(); b {
		t.Fatalf("expected default false, got %v", got)
	}
}

func TestEvalRuleElseChain(t *testing.T) {
	e := evaluatorFor(t, `package app

grade = "pass" { input.score >= 60 }
else = "fail"
`)
	e.SetInput(value.NewObject([]value.Pair{{Key: value.Str("score"), Value: value.IntValue(40)}}))

	got, err := e.EvalRule("grade")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := got.AsString(); s != "fail" {
		t.Fatalf("got %q, want fail", s)
	}
}

func TestEvalRulePartialSetUnionsAcrossElements(t *testing.T) {
	e := evaluatorFor(t, `package app

names contains n { some n in input.users }
`)
	e.SetInput(value.NewObject([]value.Pair{{
		Key: value.Str("users"),
		Value: value.NewArray([]value.Value{
			value.Str("alice"), value.Str("bob"),
		}),
	}}))

	got, err := e.EvalRule("names")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, ok := got.AsSet()
	if !ok || s.Len() != 2 {
		t.Fatalf("expected a 2-element set, got %v", got)
	}
}

func TestEvalRulePartialObjectMergesPairs(t *testing.T) {
	e := evaluatorFor(t, `package app

squares[n] = n * n { some n in input.nums }
`)
	e.SetInput(value.NewObject([]value.Pair{{
		Key: value.Str("nums"),
		Value: value.NewArray([]value.Value{
			value.IntValue(2), value.IntValue(3),
		}),
	}}))

	got, err := e.EvalRule("squares")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, ok := got.AsObject()
	if !ok {
		t.Fatalf("expected an object, got %v", got)
	}
	v, _ := o.Get(value.IntValue(2))
	if n, _ := v.AsNumber(); n.AsFloat() != 4 {
		t.Fatalf("squares[2] = %v, want 4", v)
	}
}

func TestEvalRuleFunctionCall(t *testing.T) {
	e := evaluatorFor(t, `package app

double(x) = y { y := x * 2 }

result = double(21)
`)
	got, err := e.EvalRule("result")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := got.AsNumber(); n.AsFloat() != 42 {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestEvalQueryBindsVariables(t *testing.T) {
	e := evaluatorFor(t, `package app
`)
	e.SetInput(value.NewObject([]value.Pair{{
		Key: value.Str("users"),
		Value: value.NewArray([]value.Value{
			value.Str("alice"), value.Str("bob"),
		}),
	}}))

	got, err := e.EvalQuery("some u in input.users", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr, ok := got.AsArray()
	if !ok || len(arr) != 2 {
		t.Fatalf("expected 2 solutions, got %v", got)
	}
}

func TestEvalQueryNoSolutions(t *testing.T) {
	e := evaluatorFor(t, `package app
`)
	got, err := e.EvalQuery("1 == 2", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr, _ := got.AsArray()
	if len(arr) != 0 {
		t.Fatalf("expected no solutions, got %v", got)
	}
}
