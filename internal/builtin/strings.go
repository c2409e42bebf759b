package builtin

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/corepolicy/rvm/internal/value"
)

// registerStringBuiltins wires the trim/case/split family. `trim`/
// `trim_space` run their input through unicode/norm's NFC form first
// (SPEC_FULL §11: grounded on the teacher's vm_builtins_string.go,
// which normalizes before trimming so a combining-mark sequence at a
// boundary trims the way a human reading the string expects) — never
// used inside value's total order (§3.1 must stay a raw, locale-
// independent comparison).
func (r *Registry) registerStringBuiltins() {
	r.register("upper", builtinUpper)
	r.register("lower", builtinLower)
	r.register("trim", builtinTrim)
	r.register("trim_space", builtinTrimSpace)
	r.register("concat", builtinConcat)
	r.register("split", builtinSplit)
	r.register("contains", builtinContains)
	r.register("startswith", builtinStartsWith)
	r.register("endswith", builtinEndsWith)
	r.register("replace", builtinReplace)
	r.register("format_int", builtinFormatInt)
}

func builtinUpper(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("upper", args, 1); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("upper", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Str(strings.ToUpper(s)), nil
}

func builtinLower(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("lower", args, 1); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("lower", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Str(strings.ToLower(s)), nil
}

func builtinTrim(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("trim", args, 2); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("trim", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	cutset, err := ensureString("trim", args, 1)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Str(strings.Trim(norm.NFC.String(s), cutset)), nil
}

func builtinTrimSpace(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("trim_space", args, 1); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("trim_space", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Str(strings.TrimSpace(norm.NFC.String(s))), nil
}

func builtinConcat(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("concat", args, 2); err != nil {
		return value.Undefined(), err
	}
	strs, err := ensureStringCollection("concat", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	sep, err := ensureString("concat", args, 1)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Str(strings.Join(strs, sep)), nil
}

func builtinSplit(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("split", args, 2); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("split", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	sep, err := ensureString("split", args, 1)
	if err != nil {
		return value.Undefined(), err
	}
	parts := strings.Split(s, sep)
	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		elems[i] = value.Str(p)
	}
	return value.NewArray(elems), nil
}

func builtinContains(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("contains", args, 2); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("contains", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	sub, err := ensureString("contains", args, 1)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Bool(strings.Contains(s, sub)), nil
}

func builtinStartsWith(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("startswith", args, 2); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("startswith", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	prefix, err := ensureString("startswith", args, 1)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Bool(strings.HasPrefix(s, prefix)), nil
}

func builtinEndsWith(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("endswith", args, 2); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("endswith", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	suffix, err := ensureString("endswith", args, 1)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Bool(strings.HasSuffix(s, suffix)), nil
}

func builtinReplace(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("replace", args, 3); err != nil {
		return value.Undefined(), err
	}
	s, err := ensureString("replace", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	old, err := ensureString("replace", args, 1)
	if err != nil {
		return value.Undefined(), err
	}
	neu, err := ensureString("replace", args, 2)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Str(strings.ReplaceAll(s, old, neu)), nil
}

func builtinFormatInt(args []value.Value) (value.Value, error) {
	if err := ensureArgsCount("format_int", args, 1); err != nil {
		return value.Undefined(), err
	}
	n, err := ensureNumeric("format_int", args, 0)
	if err != nil {
		return value.Undefined(), err
	}
	return value.Str(n.String()), nil
}
