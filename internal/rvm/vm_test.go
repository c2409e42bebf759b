package rvm

import (
	"testing"

	"github.com/corepolicy/rvm/internal/analyzer"
	"github.com/corepolicy/rvm/internal/compiler"
	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/parser"
	"github.com/corepolicy/rvm/internal/source"
	"github.com/corepolicy/rvm/internal/value"
)

// countingBuiltins resolves a single builtin, "probe", and counts how
// many times it is actually invoked — the CallRule memoization tests
// below use the count to observe whether a cached rule call skipped
// re-executing its body.
type countingBuiltins struct{ calls int }

func (b *countingBuiltins) Lookup(name string) (int, bool) {
	if name == "probe" {
		return 0, true
	}
	return 0, false
}

func (b *countingBuiltins) Call(index int, args []value.Value) (value.Value, error) {
	b.calls++
	return args[0], nil
}

func compileText(t *testing.T, text string, builtins compiler.BuiltinResolver) *compiler.Program {
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
	prog, diags := compiler.Compile(mod, ctx, builtins)
	if len(diags) != 0 {
		t.Fatalf("compile diagnostics: %v", diags)
	}
	return prog
}

func vmFor(builtins Builtins, prog *compiler.Program) *VM {
	vm := New(builtins)
	vm.LoadProgram(prog)
	return vm
}

func TestCallRuleMemoizesRepeatedArguments(t *testing.T) {
	bi := &countingBuiltins{}
	prog := compileText(t, `package app

double(x) = y { z := probe(x); y := z * 2 }

result = double(21) + double(21)
`, bi)

	vm := vmFor(bi, prog)
	state := vm.Execute()
	if state.Kind != Completed {
		t.Fatalf("expected Completed, got %v (err=%v)", state.Kind, state.Err)
	}
	if n, _ := state.Result.AsNumber(); n.AsFloat() != 84 {
		t.Fatalf("result = %v, want 84", state.Result)
	}
	if bi.calls != 1 {
		t.Fatalf("probe called %d times, want 1 (CallRule should have cached the second double(21))", bi.calls)
	}
}

func TestCallRuleDoesNotMemoizeAcrossDifferentArguments(t *testing.T) {
	bi := &countingBuiltins{}
	prog := compileText(t, `package app

double(x) = y { z := probe(x); y := z * 2 }

result = double(21) + double(22)
`, bi)

	vm := vmFor(bi, prog)
	state := vm.Execute()
	if state.Kind != Completed {
		t.Fatalf("expected Completed, got %v (err=%v)", state.Kind, state.Err)
	}
	if bi.calls != 2 {
		t.Fatalf("probe called %d times, want 2 (different arguments must not share a cache entry)", bi.calls)
	}
}

func TestAnyLoopShortCircuitsOnFirstMatch(t *testing.T) {
	prog := compileText(t, `package app

has_admin { "admin" in input.users }
`, stubBuiltins{})

	vm := vmFor(stubBuiltins{}, prog)
	vm.SetInput(value.NewObject([]value.Pair{{
		Key:   value.Str("users"),
		Value: value.NewArray([]value.Value{value.Str("admin"), value.Str("guest")}),
	}}))

	state := vm.Execute()
	if state.Kind != Completed {
		t.Fatalf("expected Completed, got %v (err=%v)", state.Kind, state.Err)
	}
	if b, _ := state.Result.AsBool(); !b {
		t.Fatalf("has_admin = %v, want true", state.Result)
	}
}

func TestEveryLoopFailsWhenOneElementFails(t *testing.T) {
	prog := compileText(t, `package app

all_admins { every u in input.users { u == "admin" } }
`, stubBuiltins{})

	vm := vmFor(stubBuiltins{}, prog)
	vm.SetInput(value.NewObject([]value.Pair{{
		Key:   value.Str("users"),
		Value: value.NewArray([]value.Value{value.Str("admin"), value.Str("guest")}),
	}}))

	state := vm.Execute()
	if state.Kind != Completed {
		t.Fatalf("expected Completed, got %v (err=%v)", state.Kind, state.Err)
	}
	if !state.Result.IsUndefined() {
		t.Fatalf("all_admins = %v, want Undefined (one element failed the every-body)", state.Result)
	}
}

func TestEveryLoopSucceedsWhenAllElementsPass(t *testing.T) {
	prog := compileText(t, `package app

all_admins { every u in input.users { u == "admin" } }
`, stubBuiltins{})

	vm := vmFor(stubBuiltins{}, prog)
	vm.SetInput(value.NewObject([]value.Pair{{
		Key:   value.Str("users"),
		Value: value.NewArray([]value.Value{value.Str("admin"), value.Str("admin")}),
	}}))

	state := vm.Execute()
	if state.Kind != Completed {
		t.Fatalf("expected Completed, got %v (err=%v)", state.Kind, state.Err)
	}
	if b, _ := state.Result.AsBool(); !b {
		t.Fatalf("all_admins = %v, want true", state.Result)
	}
}

func TestForEachLoopAccumulatesPartialSet(t *testing.T) {
	prog := compileText(t, `package app

names contains u { some u in input.users }
`, stubBuiltins{})

	vm := vmFor(stubBuiltins{}, prog)
	vm.SetInput(value.NewObject([]value.Pair{{
		Key:   value.Str("users"),
		Value: value.NewArray([]value.Value{value.Str("alice"), value.Str("bob")}),
	}}))

	state := vm.Execute()
	if state.Kind != Completed {
		t.Fatalf("expected Completed, got %v (err=%v)", state.Kind, state.Err)
	}
	s, ok := state.Result.AsSet()
	if !ok || s.Len() != 2 {
		t.Fatalf("expected a 2-element set, got %v", state.Result)
	}
}

func TestCompleteRuleUndefinedWhenBodyNeverSucceeds(t *testing.T) {
	prog := compileText(t, `package app

allow = true { input.user == "admin" }
`, stubBuiltins{})

	vm := vmFor(stubBuiltins{}, prog)
	vm.SetInput(value.NewObject([]value.Pair{{Key: value.Str("user"), Value: value.Str("guest")}}))

	state := vm.Execute()
	if state.Kind != Completed {
		t.Fatalf("expected Completed, got %v (err=%v)", state.Kind, state.Err)
	}
	if !state.Result.IsUndefined() {
		t.Fatalf("allow = %v, want Undefined", state.Result)
	}
}

// stubBuiltins resolves nothing — used by tests whose policies never
// call a builtin.
type stubBuiltins struct{}

func (stubBuiltins) Lookup(name string) (int, bool)                 { return 0, false }
func (stubBuiltins) Call(index int, args []value.Value) (value.Value, error) {
	return value.Undefined(), nil
}

// manualProgram hand-assembles a single zero-argument rule out of raw
// instructions, for exercising VM control flow (HostAwait suspend /
// resume) the surface language and compiler don't emit yet.
func manualProgram(instrs []compiler.Instruction, numRegs int) *compiler.Program {
	prog := compiler.NewProgram()
	spans := make([]source.Span, len(instrs))
	prog.Instructions = instrs
	prog.Spans = spans
	prog.Rules = []compiler.RuleInfo{{
		Name: "probe_await", Arity: 0, Kind: compiler.RuleComplete,
		EntryPC: 0, EndPC: len(instrs), NumRegs: numRegs,
	}}
	prog.EntryPoints["probe_await/0"] = 0
	return prog
}

func TestHostAwaitSuspendableRoundTrip(t *testing.T) {
	lit := value.Str("ping")
	instrs := []compiler.Instruction{
		compiler.NewA16(compiler.OpLoadConst, 0, 0), // r0 = "ping"
		compiler.NewA16(compiler.OpHostAwait, 0, 0), // r0 = await(r0, id literal #0)
		compiler.NewA(compiler.OpRuleReturn, 0),
	}
	prog := manualProgram(instrs, 1)
	prog.Literals = []value.Value{lit}

	vm := vmFor(stubBuiltins{}, prog)
	vm.SetExecutionMode(Suspendable)

	state := vm.Execute()
	if state.Kind != Suspended {
		t.Fatalf("expected Suspended, got %v (err=%v)", state.Kind, state.Err)
	}
	if id, _ := lit.AsString(); state.AwaitID != id {
		t.Fatalf("await id = %q, want %q", state.AwaitID, id)
	}
	if s, _ := state.AwaitArg.AsString(); s != "ping" {
		t.Fatalf("await arg = %v, want %q", state.AwaitArg, "ping")
	}

	state = vm.Resume(value.Str("pong"))
	if state.Kind != Completed {
		t.Fatalf("expected Completed after resume, got %v (err=%v)", state.Kind, state.Err)
	}
	if s, _ := state.Result.AsString(); s != "pong" {
		t.Fatalf("result = %v, want %q", state.Result, "pong")
	}
}

func TestHostAwaitRunToCompletionConsumesPreregisteredResponse(t *testing.T) {
	lit := value.Str("ping")
	instrs := []compiler.Instruction{
		compiler.NewA16(compiler.OpLoadConst, 0, 0),
		compiler.NewA16(compiler.OpHostAwait, 0, 0),
		compiler.NewA(compiler.OpRuleReturn, 0),
	}
	prog := manualProgram(instrs, 1)
	prog.Literals = []value.Value{lit}

	vm := vmFor(stubBuiltins{}, prog)
	vm.SetHostAwaitResponses(map[string][]value.Value{"ping": {value.Str("pong")}})

	state := vm.Execute()
	if state.Kind != Completed {
		t.Fatalf("expected Completed, got %v (err=%v)", state.Kind, state.Err)
	}
	if s, _ := state.Result.AsString(); s != "pong" {
		t.Fatalf("result = %v, want %q", state.Result, "pong")
	}
}

func TestHostAwaitRunToCompletionWithNoResponseErrors(t *testing.T) {
	lit := value.Str("ping")
	instrs := []compiler.Instruction{
		compiler.NewA16(compiler.OpLoadConst, 0, 0),
		compiler.NewA16(compiler.OpHostAwait, 0, 0),
		compiler.NewA(compiler.OpRuleReturn, 0),
	}
	prog := manualProgram(instrs, 1)
	prog.Literals = []value.Value{lit}

	vm := vmFor(stubBuiltins{}, prog)
	state := vm.Execute()
	if state.Kind != ErrorState {
		t.Fatalf("expected ErrorState, got %v", state.Kind)
	}
}
