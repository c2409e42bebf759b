package parser

import (
	"testing"

	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/source"
)

func parse(t *testing.T, text string) *ast.Module {
	t.Helper()
	src := source.New("test.policy", text)
	p := New(lexer.New(src), "test.policy")
	mod := p.ParseModule()
	if len(p.Diagnostics()) != 0 {
		t.Fatalf("unexpected diagnostics: %v", p.Diagnostics())
	}
	return mod
}

func TestParsePackageAndImport(t *testing.T) {
	mod := parse(t, `package app.rbac
import data.roles as roles
`)
	if mod.Package.String() != "app.rbac" {
		t.Fatalf("got package %q", mod.Package.String())
	}
	if len(mod.Imports) != 1 || mod.Imports[0].Alias != "roles" {
		t.Fatalf("got imports %v", mod.Imports)
	}
}

func TestParseCompleteRule(t *testing.T) {
	mod := parse(t, `package app

default allow = false

allow = true { input.method == "GET" }
`)
	if len(mod.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(mod.Rules))
	}
	if !mod.Rules[0].Default {
		t.Fatal("expected first rule to be default")
	}
	head, ok := mod.Rules[1].Head.(*ast.CompleteRuleHead)
	if !ok {
		t.Fatalf("expected CompleteRuleHead, got %T", mod.Rules[1].Head)
	}
	if head.Name != "allow" {
		t.Fatalf("got name %q", head.Name)
	}
	if len(mod.Rules[1].Body) != 1 {
		t.Fatalf("expected 1 body literal, got %d", len(mod.Rules[1].Body))
	}
}

func TestParsePartialSetRule(t *testing.T) {
	mod := parse(t, `package app

violations contains msg {
	some r in input.requests
	r.denied
	msg := r.reason
}
`)
	head, ok := mod.Rules[0].Head.(*ast.PartialSetRuleHead)
	if !ok {
		t.Fatalf("expected PartialSetRuleHead, got %T", mod.Rules[0].Head)
	}
	if head.Name != "violations" {
		t.Fatalf("got name %q", head.Name)
	}
	if len(mod.Rules[0].Body) != 3 {
		t.Fatalf("expected 3 body literals, got %d", len(mod.Rules[0].Body))
	}
}

func TestParsePartialObjectRule(t *testing.T) {
	mod := parse(t, `package app

scores[user] = score {
	user := input.user
	score := input.score
}
`)
	head, ok := mod.Rules[0].Head.(*ast.PartialObjectRuleHead)
	if !ok {
		t.Fatalf("expected PartialObjectRuleHead, got %T", mod.Rules[0].Head)
	}
	if head.Name != "scores" {
		t.Fatalf("got name %q", head.Name)
	}
}

func TestParseFunctionRule(t *testing.T) {
	mod := parse(t, `package app

double(x) = y {
	y := x * 2
}
`)
	head, ok := mod.Rules[0].Head.(*ast.FunctionRuleHead)
	if !ok {
		t.Fatalf("expected FunctionRuleHead, got %T", mod.Rules[0].Head)
	}
	if len(head.Params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(head.Params))
	}
}

func TestParseElseChain(t *testing.T) {
	mod := parse(t, `package app

grade = "A" { input.score >= 90 } else = "B" { input.score >= 80 } else = "C"
`)
	r := mod.Rules[0]
	if r.Else == nil {
		t.Fatal("expected an else branch")
	}
	if r.Else.Else == nil {
		t.Fatal("expected a chained second else branch")
	}
}

func TestParseEveryLiteral(t *testing.T) {
	mod := parse(t, `package app

all_admins { every u in input.users { u.role == "admin" } }
`)
	lit, ok := mod.Rules[0].Body[0].(*ast.EveryLiteral)
	if !ok {
		t.Fatalf("expected EveryLiteral, got %T", mod.Rules[0].Body[0])
	}
	if len(lit.Body) != 1 {
		t.Fatalf("expected 1 literal in every-body, got %d", len(lit.Body))
	}
}

func TestParseComprehensions(t *testing.T) {
	mod := parse(t, `package app

names = [n | some u in input.users; n := u.name]
evens = {n | some n in input.nums; n % 2 == 0}
by_id = {u.id: u | some u in input.users}
`)
	if _, ok := mod.Rules[0].Head.(*ast.CompleteRuleHead).Value.(*ast.ArrayCompr); !ok {
		t.Fatalf("expected ArrayCompr, got %T", mod.Rules[0].Head.(*ast.CompleteRuleHead).Value)
	}
	if _, ok := mod.Rules[1].Head.(*ast.CompleteRuleHead).Value.(*ast.SetCompr); !ok {
		t.Fatalf("expected SetCompr, got %T", mod.Rules[1].Head.(*ast.CompleteRuleHead).Value)
	}
	if _, ok := mod.Rules[2].Head.(*ast.CompleteRuleHead).Value.(*ast.ObjectCompr); !ok {
		t.Fatalf("expected ObjectCompr, got %T", mod.Rules[2].Head.(*ast.CompleteRuleHead).Value)
	}
}

func TestParseSetEmptyLiteral(t *testing.T) {
	mod := parse(t, `package app

empty = set()
`)
	lit, ok := mod.Rules[0].Head.(*ast.CompleteRuleHead).Value.(*ast.SetLit)
	if !ok || !lit.Empty {
		t.Fatalf("expected empty SetLit, got %#v", mod.Rules[0].Head.(*ast.CompleteRuleHead).Value)
	}
}

func TestParseWithModifier(t *testing.T) {
	mod := parse(t, `package app

allow {
	input.method == "GET" with input.method as "GET"
}
`)
	lit, ok := mod.Rules[0].Body[0].(*ast.ExprLiteral)
	if !ok {
		t.Fatalf("expected ExprLiteral, got %T", mod.Rules[0].Body[0])
	}
	if len(lit.With) != 1 {
		t.Fatalf("expected 1 with modifier, got %d", len(lit.With))
	}
}

func TestParseRefChainAndCall(t *testing.T) {
	mod := parse(t, `package app

x = count(input.users[0].name)
`)
	call, ok := mod.Rules[0].Head.(*ast.CompleteRuleHead).Value.(*ast.Call)
	if !ok {
		t.Fatalf("expected Call, got %T", mod.Rules[0].Head.(*ast.CompleteRuleHead).Value)
	}
	if len(call.Args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(call.Args))
	}
	if _, ok := call.Args[0].(*ast.Ref); !ok {
		t.Fatalf("expected Ref argument, got %T", call.Args[0])
	}
}

func TestParserRecoversAfterBadRule(t *testing.T) {
	src := source.New("test.policy", `package app

+++

allow = true
`)
	p := New(lexer.New(src), "test.policy")
	mod := p.ParseModule()
	if len(p.Diagnostics()) == 0 {
		t.Fatal("expected at least one diagnostic for the malformed rule")
	}
	if len(mod.Rules) != 1 {
		t.Fatalf("expected parser to recover and still parse the trailing rule, got %d rules", len(mod.Rules))
	}
}
