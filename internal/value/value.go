// Package value implements the tagged-union Value described in spec §3.1:
// Null | Bool | Number | String | Array | Set | Object | Undefined, with
// a total order over all values and an exact numeric tower (see number.go).
//
// Grounded on the teacher's bytecode.Value (a tagged-union runtime value
// with typed constructors like NilValue()/BoolValue()) for the overall
// shape; the Set/Object kinds, total order, and Undefined-propagation
// rules are specific to this spec and have no DWScript analog.
package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which alternative of the tagged union a Value holds.
// The declaration order here IS the total order over kinds (spec §3.1):
// Null < Bool < Number < String < Array < Set < Object < Undefined.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindSet
	KindObject
	KindUndefined
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindSet:
		return "set"
	case KindObject:
		return "object"
	case KindUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Value is the runtime representation of any policy document or
// intermediate result. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	num  Number
	str  string
	arr  []Value
	set  *Set
	obj  *Object
}

// Constructors.

func Null() Value { return Value{kind: KindNull} }

func Undefined() Value { return Value{kind: KindUndefined} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Num(n Number) Value { return Value{kind: KindNumber, num: n} }

func IntValue(i int64) Value { return Num(Int(i)) }

func FloatValue(f float64) Value { return Num(Float(f)) }

func Str(s string) Value { return Value{kind: KindString, str: s} }

// NewArray materializes an array. Per spec §3.1, assembling a collection
// with any Undefined element produces Undefined as the whole collection,
// so this returns Undefined() (not an error) when any element is
// undefined — matching the spec's framing of Undefined as propagating
// data, not a failure.
func NewArray(elems []Value) Value {
	for _, e := range elems {
		if e.kind == KindUndefined {
			return Undefined()
		}
	}
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, arr: cp}
}

// NewSet materializes a set from elements, deduplicating and ordering
// them per the total order. Returns Undefined if any element is
// Undefined (same materialization rule as NewArray).
func NewSet(elems []Value) Value {
	for _, e := range elems {
		if e.kind == KindUndefined {
			return Undefined()
		}
	}
	return Value{kind: KindSet, set: newSet(elems)}
}

// NewObject materializes an object from key/value pairs. Returns
// Undefined if any key or value is Undefined.
func NewObject(pairs []Pair) Value {
	for _, p := range pairs {
		if p.Key.kind == KindUndefined || p.Value.kind == KindUndefined {
			return Undefined()
		}
	}
	return Value{kind: KindObject, obj: newObject(pairs)}
}

// Accessors.

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsNumber() (Number, bool) {
	if v.kind != KindNumber {
		return Number{}, false
	}
	return v.num, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

func (v Value) AsSet() (*Set, bool) {
	if v.kind != KindSet {
		return nil, false
	}
	return v.set, true
}

func (v Value) AsObject() (*Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// Truthy implements the boolean-context coercion used by `every`/`some`
// bodies and AssertCondition: only Bool(true) is truthy. Any other kind,
// including Undefined, is not — matching spec §4.5's "AssertCondition...
// on an actually-undefined value...unwinds the current rule body".
func (v Value) Truthy() bool {
	b, ok := v.AsBool()
	return ok && b
}

// ErrUndefinedOperand signals (to a caller deciding strict-vs-non-strict
// behavior) that an operation touched an Undefined operand; per spec
// §4.5 this is never itself an error, only an Undefined result.
var ErrUndefinedOperand = errors.New("operand is undefined")

// ErrTypeMismatch signals an operator applied to incompatible kinds.
var ErrTypeMismatch = errors.New("type mismatch")

// ErrDivByZero signals division or modulo by zero.
var ErrDivByZero = errors.New("division by zero")

// Index implements `.`/`[]` indexing: Object keyed lookup, Array
// positional lookup (Number index), or Undefined propagation. Per spec
// §3.1, indexing with an undefined key yields Undefined, never an error.
func Index(v, key Value) Value {
	if v.kind == KindUndefined || key.kind == KindUndefined {
		return Undefined()
	}
	switch v.kind {
	case KindObject:
		if val, ok := v.obj.Get(key); ok {
			return val
		}
		return Undefined()
	case KindArray:
		n, ok := key.AsNumber()
		if !ok {
			return Undefined()
		}
		i, exact := n.AsInt64()
		if !exact || i < 0 || int(i) >= len(v.arr) {
			return Undefined()
		}
		return v.arr[i]
	default:
		return Undefined()
	}
}

// Arithmetic. Each returns ErrUndefinedOperand when an operand is
// Undefined (callers treat this as "produce Undefined", never a hard
// failure — spec §4.5), ErrTypeMismatch for incompatible kinds, and
// ErrDivByZero for the two operators where that is possible. The VM
// raises the last two as runtime errors and the tree-walk oracle fails
// the literal; neither depends on strict mode.

func binaryNumeric(a, b Value, op func(Number, Number) Number) (Value, error) {
	if a.kind == KindUndefined || b.kind == KindUndefined {
		return Undefined(), ErrUndefinedOperand
	}
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if !aok || !bok {
		return Undefined(), ErrTypeMismatch
	}
	return Num(op(an, bn)), nil
}

func Add(a, b Value) (Value, error) {
	if a.kind == KindString && b.kind == KindString {
		return Str(a.str + b.str), nil
	}
	return binaryNumeric(a, b, numAdd)
}

func Sub(a, b Value) (Value, error) { return binaryNumeric(a, b, numSub) }
func Mul(a, b Value) (Value, error) { return binaryNumeric(a, b, numMul) }

func Div(a, b Value) (Value, error) {
	if a.kind == KindUndefined || b.kind == KindUndefined {
		return Undefined(), ErrUndefinedOperand
	}
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if !aok || !bok {
		return Undefined(), ErrTypeMismatch
	}
	r, ok := numDiv(an, bn)
	if !ok {
		return Undefined(), ErrDivByZero
	}
	return Num(r), nil
}

func Mod(a, b Value) (Value, error) {
	if a.kind == KindUndefined || b.kind == KindUndefined {
		return Undefined(), ErrUndefinedOperand
	}
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if !aok || !bok {
		return Undefined(), ErrTypeMismatch
	}
	r, ok := numMod(an, bn)
	if !ok {
		return Undefined(), ErrDivByZero
	}
	return Num(r), nil
}

// Compare implements the total order of spec §3.1 over any two values.
// It is total: every pair of values (of any kinds) compares, with
// cross-kind comparisons falling out of Kind's declaration order.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b { // false < true
			return -1
		}
		return 1
	case KindNumber:
		return a.num.Compare(b.num)
	case KindString:
		return strings.Compare(a.str, b.str)
	case KindArray:
		return compareSlices(a.arr, b.arr)
	case KindSet:
		return compareSlices(a.set.items, b.set.items)
	case KindObject:
		return a.obj.Compare(b.obj)
	case KindUndefined:
		return 0
	default:
		return 0
	}
}

func compareSlices(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Equal is Compare(a,b) == 0, the equality used by `==` and by
// destructuring's literal-match binding plan variant.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// String renders a Value for debugging and for the `print` builtin's
// textual concatenation contract (spec §6.3).
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return v.num.String()
	case KindString:
		return v.str
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = quoteIfString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindSet:
		parts := make([]string, len(v.set.items))
		for i, e := range v.set.items {
			parts[i] = quoteIfString(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindObject:
		parts := make([]string, len(v.obj.pairs))
		for i, p := range v.obj.pairs {
			parts[i] = fmt.Sprintf("%s: %s", quoteIfString(p.Key), quoteIfString(p.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

func quoteIfString(v Value) string {
	if s, ok := v.AsString(); ok {
		return strconv.Quote(s)
	}
	return v.String()
}
