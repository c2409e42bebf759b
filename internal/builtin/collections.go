package builtin

import (
	"github.com/corepolicy/rvm/internal/value"
)

// registerCollectionBuiltins wires array/set/object helpers that are
// ordinary function calls rather than opcodes (union/intersect are
// opcodes, spec §4.5, because the parser treats `|`/`&` as operators;
// these are everything else a policy author reaches for as a term).
func (r *Registry) registerCollectionBuiltins() {
	r.register("keys", builtinKeys)
	r.register("values", builtinValues)
	r.register("array_contains", builtinArrayContains)
	r.register("object_get", builtinObjectGet)
	r.register("set_contains", builtinSetContains)
}

func builtinKeys(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("keys", args, 1); err != nil {
		return value.Undefined(), err
	}
	o, err := ensureObject("keys", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	pairs := o.Pairs()
	keys := make([]value.Value, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	return value.NewSet(keys), nil
}

func builtinValues(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("values", args, 1); err != nil {
		return value.Undefined(), err
	}
	o, err := ensureObject("values", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	pairs := o.Pairs()
	vals := make([]value.Value, len(pairs))
	for i, p := range pairs {
		vals[i] = p.Value
	}
	return value.NewArray(vals), nil
}

func builtinArrayContains(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("array_contains", args, 2); err != nil {
		return value.Undefined(), err
	}
	arr, err := ensureArray("array_contains", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	for _, e := range arr {
		if value.Equal(e, args[1]) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func builtinObjectGet(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("object_get", args, 2); err != nil {
		return value.Undefined(), err
	}
	o, err := ensureObject("object_get", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	if v, ok := o.Get(args[1]); ok {
		return v, nil
	}
	return value.Undefined(), nil
}

func builtinSetContains(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("set_contains", args, 2); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureSet("set_contains", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Bool(s.Contains(args[1])), nil
}
