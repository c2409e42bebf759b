package builtin

import (
	"fmt"

	"github.com/corepolicy/rvm/internal/value"
)

// ensureArgsCount checks a builtin's fixed arity (spec §6.3's
// ensure_args_count), returning a uniform diagnostic-shaped error.
func ensureArgsCount(name string, args []value.Value, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s: expected %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

// ensureArgsCountRange checks a variable-arity builtin's bounds (e.g.
// print's up-to-255-arguments contract, spec §6.3).
func ensureArgsCountRange(name string, args []value.Value, min, max int) error {
	if len(args) < min || len(args) > max {
		return fmt.Errorf("%s: expected between %d and %d argument(s), got %d", name, min, max, len(args))
	}
	return nil
}

func ensureString(name string, args []value.Value, i int) (string, error) {
	s, ok := args[i].AsString()
	if !ok {
		return "", fmt.Errorf("%s: argument %d must be a string, got %s", name, i, args[i].Kind())
	}
	return s, nil
}

func ensureNumeric(name string, args []value.Value, i int) (value.Number, error) {
	n, ok := args[i].AsNumber()
	if !ok {
		return value.Number{}, fmt.Errorf("%s: argument %d must be a number, got %s", name, i, args[i].Kind())
	}
	return n, nil
}

func ensureArray(name string, args []value.Value, i int) ([]value.Value, error) {
	a, ok := args[i].AsArray()
	if !ok {
		return nil, fmt.Errorf("%s: argument %d must be an array, got %s", name, i, args[i].Kind())
	}
	return a, nil
}

func ensureSet(name string, args []value.Value, i int) (*value.Set, error) {
	s, ok := args[i].AsSet()
	if !ok {
		return nil, fmt.Errorf("%s: argument %d must be a set, got %s", name, i, args[i].Kind())
	}
	return s, nil
}

func ensureObject(name string, args []value.Value, i int) (*value.Object, error) {
	o, ok := args[i].AsObject()
	if !ok {
		return nil, fmt.Errorf("%s: argument %d must be an object, got %s", name, i, args[i].Kind())
	}
	return o, nil
}

// ensureStringCollection checks that every element of an array or set
// argument is itself a string (spec §6.3), returning the flattened
// string slice a builtin like `concat`/`sprintf`-over-collection needs.
func ensureStringCollection(name string, args []value.Value, i int) ([]string, error) {
	var elems []value.Value
	switch args[i].Kind() {
	case value.KindArray:
		elems, _ = args[i].AsArray()
	case value.KindSet:
		s, _ := args[i].AsSet()
		elems = s.Items()
	default:
		return nil, fmt.Errorf("%s: argument %d must be an array or set of strings, got %s", name, i, args[i].Kind())
	}
	out := make([]string, len(elems))
	for j, e := range elems {
		s, ok := e.AsString()
		if !ok {
			return nil, fmt.Errorf("%s: argument %d element %d must be a string, got %s", name, i, j, e.Kind())
		}
		out[j] = s
	}
	return out, nil
}
