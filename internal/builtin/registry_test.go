package builtin

import (
	"bytes"
	"strings"
	"testing"

	"github.com/corepolicy/rvm/internal/value"
)

func TestLookupAndCallRoundTrip(t *testing.T) {
	r := New()
	idx, ok := r.Lookup("upper")
	if !ok {
		t.Fatalf("expected upper to be registered")
	}
	got, err := r.Call(idx, []value.Value{value.Str("hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := got.AsString(); s != "HI" {
		t.Fatalf("got %q, want HI", s)
	}
}

func TestLookupUnknownName(t *testing.T) {
	r := New()
	if _, ok := r.Lookup("does_not_exist"); ok {
		t.Fatalf("expected does_not_exist to be unregistered")
	}
}

func TestCallNonStrictSwallowsContractViolation(t *testing.T) {
	r := New()
	idx, _ := r.Lookup("upper")
	got, err := r.Call(idx, []value.Value{value.IntValue(1)})
	if err != nil {
		t.Fatalf("non-strict mode must swallow the error, got %v", err)
	}
	if !got.IsUndefined() {
		t.Fatalf("expected Undefined, got %v", got)
	}
}

func TestCallStrictPropagatesContractViolation(t *testing.T) {
	r := New()
	r.SetStrict(true)
	idx, _ := r.Lookup("upper")
	_, err := r.Call(idx, []value.Value{value.IntValue(1)})
	if err == nil {
		t.Fatalf("expected strict mode to propagate the contract violation")
	}
}

func TestCallIndexOutOfRangeAlwaysErrors(t *testing.T) {
	r := New()
	if _, err := r.Call(len(r.Names())+1, nil); err == nil {
		t.Fatalf("expected an error for an out-of-range builtin index")
	}
}

func TestPrintConcatenatesArguments(t *testing.T) {
	r := New()
	var buf bytes.Buffer
	r.SetOutput(&buf)
	idx, _ := r.Lookup("print")
	if _, err := r.Call(idx, []value.Value{value.Str("a"), value.IntValue(1), value.Bool(true)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "a 1 true" {
		t.Fatalf("got %q", got)
	}
}

func TestPrintRejectsTooManyArguments(t *testing.T) {
	r := New()
	r.SetStrict(true)
	idx, _ := r.Lookup("print")
	args := make([]value.Value, 256)
	for i := range args {
		args[i] = value.IntValue(int64(i))
	}
	if _, err := r.Call(idx, args); err == nil {
		t.Fatalf("expected print to reject 256 arguments")
	}
}

func TestMinMaxUseTotalOrder(t *testing.T) {
	r := New()
	idx, _ := r.Lookup("min")
	got, err := r.Call(idx, []value.Value{value.IntValue(3), value.IntValue(-5), value.IntValue(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := got.AsNumber(); n.AsFloat() != -5 {
		t.Fatalf("got %v, want -5", got)
	}
}

func TestSetContains(t *testing.T) {
	r := New()
	idx, _ := r.Lookup("set_contains")
	s := value.NewSet([]value.Value{value.Str("a"), value.Str("b")})
	got, err := r.Call(idx, []value.Value{s, value.Str("b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b, _ := got.AsBool(); !b {
		t.Fatalf("expected set_contains to report true")
	}
}

func TestTrimNormalizesBeforeTrimming(t *testing.T) {
	r := New()
	idx, _ := r.Lookup("trim_space")
	got, err := r.Call(idx, []value.Value{value.Str("  hello  ")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := got.AsString(); s != "hello" {
		t.Fatalf("got %q", s)
	}
}
