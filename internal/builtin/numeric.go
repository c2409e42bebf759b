package builtin

import (
	"fmt"

	"github.com/corepolicy/rvm/internal/value"
)

// registerNumericBuiltins wires the reference numeric builtin set.
// Arithmetic itself is a VM opcode (OpAdd et al., spec §4.5); these are
// the functions a policy author calls as ordinary rule-body terms.
func (r *Registry) registerNumericBuiltins() {
	r.register("abs", builtinAbs)
	r.register("min", builtinMin)
	r.register("max", builtinMax)
	r.register("to_number", builtinToNumber)
}

func builtinAbs(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("abs", args, 1); err != nil {
		return value.Undefined(), err
	}
	n, err := ensureNumeric("abs", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	f := n.AsFloat()
	if f < 0 {
		return value.FloatValue(-f), nil
	}
	return args[0], nil
}

func builtinMin(args []value.Value) (value.Value, error) {
	if err := ensureArgsCountRange("min", args, 1, 255); err != nil {
		return value.Undefined(), err
	}
	return numericFold("min", args, func(c int) bool { return c < 0 })
}

func builtinMax(args []value.Value) (value.Value, error) {
	if err := ensureArgsCountRange("max", args, 1, 255); err != nil {
		return value.Undefined(), err
	}
	return numericFold("max", args, func(c int) bool { return c > 0 })
}

// numericFold picks the element of args that "wins" rel against every
// other element's value.Compare result (spec §3.1's total order).
func numericFold(name string, args []value.Value, rel func(c int) bool) (value.Value, error) {
	best := args[0]
	if _, err := ensureNumeric(name, args, 0); err != nil {
		return value.Undefined(), err
	}
	for i := 1; i < len(args); i++ {
		if _, err := ensureNumeric(name, args, i); err != nil {
			return value.Undefined(), err
		}
		if rel(value.Compare(args[i], best)) {
			best = args[i]
		}
	}
	return best, nil
}

func builtinToNumber(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("to_number", args, 1); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("to_number", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	n, ok := value.ParseNumber(s)
	if !ok {
		return value.Undefined(), fmt.Errorf("to_number: %q is not a valid number", s)
	}
	return value.Num(n), nil
}
