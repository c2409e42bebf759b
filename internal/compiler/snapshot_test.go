package compiler

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

// TestDisassemblySnapshots pins the disassembly listing of a handful of
// representative rule shapes, the way the teacher pins interpreter output
// with go-snaps (internal/interp/fixture_test.go). A change here either is
// an intentional disassembly-format change (update the snapshot) or a
// regression in code generation.
func TestDisassemblySnapshots(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{
			name: "complete_rule",
			text: `package app

allow = true { input.user == "admin" }
`,
		},
		{
			name: "function_rule",
			text: `package app

double(x) = y { y := x * 2 }
`,
		},
		{
			name: "partial_set_rule",
			text: `package app

names contains x { some x in input.names }
`,
		},
		{
			name: "builtin_call",
			text: `package app

greeting = s { s := sprintf("hi %s", [input.user]) }
`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			prog, errs := compileText(t, c.text)
			if len(errs) != 0 {
				t.Fatalf("unexpected diagnostics: %v", errs)
			}
			snaps.MatchSnapshot(t, prog.Disassemble())
		})
	}
}

// TestSerializeSnapshot pins the gob-encoded size and rule table of a
// compiled Program, catching accidental changes to the wire format that
// TestSerializeRoundTrip's value-by-value comparison wouldn't surface on
// its own (e.g. a new field silently defaulting on decode).
func TestSerializeSnapshot(t *testing.T) {
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

	snaps.MatchSnapshot(t, got.Rules, len(data))
}
