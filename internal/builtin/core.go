package builtin

import (
	"fmt"
	"strings"

	"github.com/corepolicy/rvm/internal/value"
)

// registerCoreBuiltins wires the side-channel `print` (spec §6.3: up
// to 255 arguments, concatenates textual forms) and a couple of
// type-introspection builtins every policy author reaches for.
func (r *Registry) registerCoreBuiltins() {
	r.register("print", r.builtinPrint)
	r.register("type_name", builtinTypeName)
	r.register("count", builtinCount)
	r.register("sprintf", builtinSprintf)
}

func (r *Registry) builtinPrint(args []value.Value) (value.Value, error) {
	if err := ensureArgsCountRange("print", args, 0, 255); err != nil {
		return value.Undefined(), err
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Fprintln(r.output, strings.Join(parts, " "))
	return value.Bool(true), nil
}

func builtinTypeName(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("type_name", args, 1); err != nil {
		return value.Undefined(), err
	}
	return value.Str(args[0].Kind().String()), nil
}

// builtinCount returns an array/set/object's element count (spec §6.4's
// Count opcode surfaced as a builtin rather than a dedicated
// instruction, since it needs no register-machine-specific lowering).
func builtinCount(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("count", args, 1); err != nil {
		return value.Undefined(), err
	}
	switch args[0].Kind() {
	case value.KindArray:
		a, _ := args[0].AsArray()
		return value.IntValue(int64(len(a))), nil
	case value.KindSet:
		s, _ := args[0].AsSet()
		return value.IntValue(int64(s.Len())), nil
	case value.KindObject:
		o, _ := args[0].AsObject()
		return value.IntValue(int64(o.Len())), nil
	default:
		return value.Undefined(), fmt.Errorf("count: argument must be an array, set, or object, got %s", args[0].Kind())
	}
}

// builtinSprintf formats a template with %v-style verbs against its
// remaining arguments' textual forms, for policies that build
// human-readable violation messages.
func builtinSprintf(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Undefined(), fmt.Errorf("sprintf: expected at least 1 argument, got 0")
	}
	tmpl, err := ensureString("sprintf", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	rest := make([]any, len(args)-1)
	for i, a := range args[1:] {
		rest[i] = a.String()
	}
	return value.Str(fmt.Sprintf(tmpl, rest...)), nil
}
