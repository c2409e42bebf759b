package analyzer

import (
	"testing"

	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/parser"
	"github.com/corepolicy/rvm/internal/source"
)

func mustParse(t *testing.T, text string) *Context {
	t.Helper()
	src := source.New("test.policy", text)
	p := parser.New(lexer.New(src), "test.policy")
	mod := p.ParseModule()
	if len(p.Diagnostics()) != 0 {
		t.Fatalf("parse diagnostics: %v", p.Diagnostics())
	}
	return Analyze(mod)
}

func TestFunctionTableTracksArity(t *testing.T) {
	ctx := mustParse(t, `package app

double(x) = y { y := x * 2 }
`)
	entry := ctx.Functions.Lookup("double")
	if entry == nil {
		t.Fatal("expected a function-table entry for double")
	}
	if entry.Kind != KindFunction || entry.Arity != 1 {
		t.Fatalf("got kind=%v arity=%d", entry.Kind, entry.Arity)
	}
}

func TestPreviouslyDefinedConflict(t *testing.T) {
	ctx := mustParse(t, `package app

x = true
x contains 1
`)
	if !ctx.HasErrors() {
		t.Fatal("expected a previously-defined diagnostic")
	}
}

func TestRuleGraphOrdersDependenciesFirst(t *testing.T) {
	ctx := mustParse(t, `package app

a { b }
b = true
`)
	order := ctx.Graph.Order
	posA, posB := indexOf(order, "a"), indexOf(order, "b")
	if posA < 0 || posB < 0 || posB > posA {
		t.Fatalf("expected b before a in %v", order)
	}
}

func TestRuleGraphDetectsCycle(t *testing.T) {
	ctx := mustParse(t, `package app

a { b }
b { a }
`)
	if len(ctx.Graph.Cycles) == 0 {
		t.Fatal("expected a detected cycle")
	}
}

func TestBindingPlanForDestructuredArray(t *testing.T) {
	ctx := mustParse(t, `package app

pair = true {
	[x, y] := input.pair
}
`)
	rule := findRuleWithName(ctx, "pair")
	plans := ctx.Bindings[rule]
	if len(plans) != 1 || plans[0].Kind != BindArray {
		t.Fatalf("expected a single BindArray plan, got %v", plans)
	}
	if len(plans[0].Elements) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(plans[0].Elements))
	}
}

func TestBindingPlanDetectsRebind(t *testing.T) {
	ctx := mustParse(t, `package app

broken = true {
	x := 1
	x := 2
}
`)
	if !ctx.HasErrors() {
		t.Fatal("expected a variable-rebind diagnostic")
	}
}

func indexOf(xs []string, x string) int {
	for i, v := range xs {
		if v == x {
			return i
		}
	}
	return -1
}

func findRuleWithName(ctx *Context, name string) *ast.Rule {
	for r := range ctx.Bindings {
		if h, ok := r.Head.(*ast.CompleteRuleHead); ok && h.Name == name {
			return r
		}
	}
	return nil
}
