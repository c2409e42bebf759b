package rvm

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/corepolicy/rvm/internal/value"
)

// TestExecutionStateSnapshots pins the final ExecutionState.Result of a
// handful of representative programs, the way the teacher pins interpreter
// output with go-snaps (internal/interp/fixture_test.go in the teacher
// repo). These complement vm_test.go's hand-asserted tests by catching any
// unintended drift in result shape (set vs. object vs. scalar rendering)
// across unrelated changes to the control loop.
func TestExecutionStateSnapshots(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		input value.Value
	}{
		{
			name: "complete_rule_true",
			text: `package app

allow = true { input.user == "admin" }
`,
			input: value.NewObject([]value.Pair{{Key: value.Str("user"), Value: value.Str("admin")}}),
		},
		{
			name: "complete_rule_undefined",
			text: `package app

allow = true { input.user == "admin" }
`,
			input: value.NewObject([]value.Pair{{Key: value.Str("user"), Value: value.Str("guest")}}),
		},
		{
			name: "partial_set_rule",
			text: `package app

names contains u { some u in input.users }
`,
			input: value.NewObject([]value.Pair{{
				Key:   value.Str("users"),
				Value: value.NewArray([]value.Value{value.Str("alice"), value.Str("bob")}),
			}}),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			prog := compileText(t, c.text, stubBuiltins{})
			vm := vmFor(stubBuiltins{}, prog)
			vm.SetInput(c.input)
			state := vm.Execute()
			if state.Kind != Completed {
				t.Fatalf("expected Completed, got %v (err=%v)", state.Kind, state.Err)
			}
			snaps.MatchSnapshot(t, state.Result.String())
		})
	}
}
