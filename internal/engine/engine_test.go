package engine

import (
	"context"
	"testing"

	"github.com/corepolicy/rvm/internal/value"
)

func TestEngineEvalRuleThroughTreewalk(t *testing.T) {
	e := NewEngine()
	if err := e.AddPolicy("app.policy", `package app

allow = true { input.user == "admin" }
`); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	e.SetInput(value.NewObject([]value.Pair{{Key: value.Str("user"), Value: value.Str("admin")}}))

	got, err := e.EvalRule("allow")
	if err != nil {
		t.Fatalf("EvalRule: %v", err)
	}
	if b, _ := got.AsBool(); !b {
		t.Fatalf("expected allow = true, got %v", got)
	}
}

func TestEngineAddDataMergesLastWriteWins(t *testing.T) {
	e := NewEngine()
	if err := e.AddData(value.NewObject([]value.Pair{{Key: value.Str("a"), Value: value.IntValue(1)}})); err != nil {
		t.Fatalf("AddData: %v", err)
	}
	if err := e.AddData(value.NewObject([]value.Pair{{Key: value.Str("b"), Value: value.IntValue(2)}})); err != nil {
		t.Fatalf("AddData: %v", err)
	}

	obj, ok := e.data.AsObject()
	if !ok {
		t.Fatalf("expected data to be an object, got %v", e.data)
	}
	a, _ := obj.Get(value.Str("a"))
	b, _ := obj.Get(value.Str("b"))
	if n, _ := a.AsNumber(); n.AsFloat() != 1 {
		t.Fatalf("a = %v, want 1", a)
	}
	if n, _ := b.AsNumber(); n.AsFloat() != 2 {
		t.Fatalf("b = %v, want 2", b)
	}

	if err := e.AddData(value.NewObject([]value.Pair{{Key: value.Str("a"), Value: value.IntValue(3)}})); err != nil {
		t.Fatalf("AddData: %v", err)
	}
	obj, _ = e.data.AsObject()
	a, _ = obj.Get(value.Str("a"))
	b, _ = obj.Get(value.Str("b"))
	if n, _ := a.AsNumber(); n.AsFloat() != 3 {
		t.Fatalf("a = %v after a second write, want 3", a)
	}
	if n, _ := b.AsNumber(); n.AsFloat() != 2 {
		t.Fatalf("b = %v after writing a, want 2", b)
	}
}

func TestEngineAddDataRejectsNonObject(t *testing.T) {
	e := NewEngine()
	if err := e.AddData(value.IntValue(1)); err == nil {
		t.Fatalf("expected an error for a non-object data document")
	}
}

func TestEngineCompileWithEntrypointUnknownRule(t *testing.T) {
	e := NewEngine()
	if err := e.AddPolicy("app.policy", `package app

allow = true { input.user == "admin" }
`); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}

	if _, err := e.CompileWithEntrypoint("nope"); err == nil {
		t.Fatalf("expected an error for an unknown entry point")
	}
}

func TestEngineEvalManyRunsEntryPointsConcurrently(t *testing.T) {
	e := NewEngine()
	if err := e.AddPolicy("app.policy", `package app

allow = true { input.user == "admin" }

deny = true { input.user != "admin" }
`); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	e.SetInput(value.NewObject([]value.Pair{{Key: value.Str("user"), Value: value.Str("admin")}}))

	results, err := e.EvalMany(context.Background(), []string{"allow", "deny"})
	if err != nil {
		t.Fatalf("EvalMany: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if b, _ := results[0].AsBool(); !b {
		t.Fatalf("allow = %v, want true", results[0])
	}
	if !results[1].IsUndefined() {
		t.Fatalf("deny = %v, want undefined", results[1])
	}
}

func TestEnginePolicySetCacheInvalidatesOnAddPolicy(t *testing.T) {
	e := NewEngine()
	if err := e.AddPolicy("app.policy", `package app

allow = true { input.user == "admin" }
`); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	first, err := e.CompileProgram()
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}

	if err := e.AddPolicy("extra.policy", `package app

deny = true { input.user == "guest" }
`); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	second, err := e.CompileProgram()
	if err != nil {
		t.Fatalf("CompileProgram: %v", err)
	}

	if _, ok := second.EntryPoints["deny/0"]; !ok {
		t.Fatalf("expected deny/0 entry point after adding a second policy")
	}
	if first == second {
		t.Fatalf("expected a fresh Program after the policy set changed")
	}
}
