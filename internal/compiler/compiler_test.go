package compiler

import (
	"strings"
	"testing"

	"github.com/corepolicy/rvm/internal/analyzer"
	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/parser"
	"github.com/corepolicy/rvm/internal/source"
)

type stubBuiltins struct{ names map[string]int }

func (s stubBuiltins) Lookup(name string) (int, bool) {
	idx, ok := s.names[name]
	return idx, ok
}

func defaultBuiltins() stubBuiltins {
	return stubBuiltins{names: map[string]int{
		"count": 0, "print": 1, "sprintf": 2, "startswith": 3,
	}}
}

func compileText(t *testing.T, text string) (*Program, []error) {
	t.Helper()
	src := source.New("test.policy", text)
	p := parser.New(lexer.New(src), "test.policy")
	mod := p.ParseModule()
	if len(p.Diagnostics()) != 0 {
		t.Fatalf("parse diagnostics: %v", p.Diagnostics())
	}
	ctx := analyzer.Analyze(mod)
	prog, diags := Compile(mod, ctx, defaultBuiltins())
	var errs []error
	for _, d := range diags {
		errs = append(errs, d)
	}
	return prog, errs
}

func TestCompileSimpleCompleteRule(t *testing.T) {
	prog, errs := compileText(t, `package app

allow = true { input.user == "admin" }
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", errs)
	}
	if len(prog.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(prog.Rules))
	}
	if len(prog.Instructions) == 0 {
		t.Fatal("expected emitted instructions")
	}
}

func TestCompileFunctionRuleProducesCallRule(t *testing.T) {
	prog, errs := compileText(t, `package app

double(x) = y { y := x * 2 }

result = double(21)
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", errs)
	}
	foundCall := false
	for _, instr := range prog.Instructions {
		if instr.Op() == OpCallRule {
			foundCall = true
		}
	}
	if !foundCall {
		t.Fatal("expected an OpCallRule instruction")
	}
}

func TestCompileBuiltinCallUsesResolver(t *testing.T) {
	prog, errs := compileText(t, `package app

total = count(input.items)
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", errs)
	}
	found := false
	for _, instr := range prog.Instructions {
		if instr.Op() == OpCallBuiltin {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an OpCallBuiltin instruction")
	}
}

func TestCompileUnknownFunctionIsDiagnosed(t *testing.T) {
	_, errs := compileText(t, `package app

x = nonexistent_thing(1)
`)
	if len(errs) == 0 {
		t.Fatal("expected an unknown-function diagnostic")
	}
}

func TestCompilePartialSetRule(t *testing.T) {
	prog, errs := compileText(t, `package app

names contains x { some x in input.names }
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", errs)
	}
	if len(prog.Rules) != 1 || prog.Rules[0].Name != "names" {
		t.Fatalf("expected a names rule, got %v", prog.Rules)
	}
}

func TestDisassembleIncludesRuleLabelsAndOpcodes(t *testing.T) {
	prog, errs := compileText(t, `package app

allow = true { input.user == "admin" }
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", errs)
	}
	text := prog.Disassemble()
	if !strings.Contains(text, "rule allow") {
		t.Fatalf("expected a rule label in disassembly, got:\n%s", text)
	}
	if !strings.Contains(text, "eq") {
		t.Fatalf("expected an eq instruction in disassembly, got:\n%s", text)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	prog, errs := compileText(t, `package app

allow = true { input.user == "admin" }
deny[msg] { msg := "blocked" }
`)
	if len(errs) != 0 {
		t.Fatalf("unexpected diagnostics: %v", errs)
	}

	data, err := Serialize(prog)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if len(got.Instructions) != len(prog.Instructions) {
		t.Fatalf("instruction count mismatch: got %d want %d", len(got.Instructions), len(prog.Instructions))
	}
	for i := range prog.Instructions {
		if got.Instructions[i] != prog.Instructions[i] {
			t.Fatalf("instruction %d mismatch: got %v want %v", i, got.Instructions[i], prog.Instructions[i])
		}
	}
	if len(got.Literals) != len(prog.Literals) {
		t.Fatalf("literal count mismatch: got %d want %d", len(got.Literals), len(prog.Literals))
	}
	for i := range prog.Literals {
		if got.Literals[i].String() != prog.Literals[i].String() {
			t.Fatalf("literal %d mismatch: got %v want %v", i, got.Literals[i], prog.Literals[i])
		}
	}
	if len(got.Rules) != len(prog.Rules) {
		t.Fatalf("rule count mismatch: got %d want %d", len(got.Rules), len(prog.Rules))
	}
}

func TestInstructionEncodingRoundTrips(t *testing.T) {
	i := NewABC(OpAdd, 3, 5, 9)
	if i.Op() != OpAdd || i.A() != 3 || i.Bhi() != 5 || i.Blo() != 9 {
		t.Fatalf("unexpected decode: op=%v a=%d bhi=%d blo=%d", i.Op(), i.A(), i.Bhi(), i.Blo())
	}
	j := NewA16(OpLoadConst, 2, 0x1234)
	if j.Op() != OpLoadConst || j.A() != 2 || j.B16() != 0x1234 {
		t.Fatalf("unexpected 16-bit decode: %v", j)
	}
}
