package value

import (
	"math"
	"math/big"
	"strconv"
)

// Number is the exact numeric tower described in spec §3.1: integer
// literals preserve arbitrary precision, and arithmetic that stays in
// the integer domain never loses precision. It has three internal
// representations, chosen to keep the common case cheap:
//
//   - a plain int64 ("small"), used whenever the value fits;
//   - a *big.Int, used once an operation would overflow int64;
//   - a float64, used once any float participates in an operation.
//
// Every arithmetic helper below re-normalizes its big.Int result back
// down to int64 when it fits, so the representation stays the
// narrowest one that does not lose precision (spec §3.1).
type Number struct {
	isFloat bool
	big     *big.Int // non-nil only when the integer does not fit in int64
	small   int64
	float   float64
}

// Int constructs an exact integer Number from an int64.
func Int(i int64) Number { return Number{small: i} }

// BigInt constructs an exact integer Number from an arbitrary-precision
// integer, normalizing down to int64 when possible.
func BigInt(i *big.Int) Number { return normalizeBig(new(big.Int).Set(i)) }

// Float constructs an inexact floating-point Number.
func Float(f float64) Number { return Number{isFloat: true, float: f} }

// ParseNumber parses a JSON-grammar numeric literal (spec §4.1) into a
// Number, preferring the exact integer representation when the literal
// has no fractional part or exponent.
func ParseNumber(literal string) (Number, bool) {
	if i, ok := new(big.Int).SetString(literal, 10); ok {
		return normalizeBig(i), true
	}
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return Number{}, false
	}
	return Float(f), true
}

// IsFloat reports whether the Number carries an inexact float64.
func (n Number) IsFloat() bool { return n.isFloat }

// IsBig reports whether the Number's exact integer representation
// required arbitrary precision (did not fit in int64).
func (n Number) IsBig() bool { return !n.isFloat && n.big != nil }

// AsFloat converts the Number to a float64, for contexts (comparisons,
// mixed arithmetic) that require it.
func (n Number) AsFloat() float64 {
	if n.isFloat {
		return n.float
	}
	if n.big != nil {
		f, _ := new(big.Float).SetInt(n.big).Float64()
		return f
	}
	return float64(n.small)
}

// AsBigInt returns the exact integer value. Only meaningful when
// !IsFloat(); callers must check IsFloat first.
func (n Number) AsBigInt() *big.Int {
	if n.big != nil {
		return new(big.Int).Set(n.big)
	}
	return big.NewInt(n.small)
}

// AsInt64 returns the exact value as an int64, and whether it fit
// without truncation.
func (n Number) AsInt64() (int64, bool) {
	if n.isFloat {
		return 0, false
	}
	if n.big == nil {
		return n.small, true
	}
	return 0, false
}

func normalizeBig(i *big.Int) Number {
	if i.IsInt64() {
		return Number{small: i.Int64()}
	}
	return Number{big: i}
}

// String renders the Number the way it would be serialized back to
// source: integers print without a decimal point, floats in the
// shortest 'g' form, so a whole-valued float such as 2.0 prints as "2".
func (n Number) String() string {
	if n.isFloat {
		return strconv.FormatFloat(n.float, 'g', -1, 64)
	}
	if n.big != nil {
		return n.big.String()
	}
	return strconv.FormatInt(n.small, 10)
}

// Compare implements the total order over numbers used by value.Compare:
// exact integer comparison when both operands are exact, float
// comparison (with the usual IEEE 754 ordering) otherwise.
func (n Number) Compare(o Number) int {
	if !n.isFloat && !o.isFloat {
		return n.AsBigInt().Cmp(o.AsBigInt())
	}
	a, b := n.AsFloat(), o.AsFloat()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (n Number) Equal(o Number) bool { return n.Compare(o) == 0 }

// arithmetic helpers — each promotes to big.Int on int64 overflow and
// renormalizes back down when the result fits, and promotes to float64
// as soon as either operand is inexact.

func numAdd(a, b Number) Number {
	if a.isFloat || b.isFloat {
		return Float(a.AsFloat() + b.AsFloat())
	}
	if !a.IsBig() && !b.IsBig() {
		sum := a.small + b.small
		if (sum > a.small) == (b.small > 0) { // no overflow
			return Int(sum)
		}
	}
	return normalizeBig(new(big.Int).Add(a.AsBigInt(), b.AsBigInt()))
}

func numSub(a, b Number) Number {
	if a.isFloat || b.isFloat {
		return Float(a.AsFloat() - b.AsFloat())
	}
	if !a.IsBig() && !b.IsBig() {
		diff := a.small - b.small
		if (diff < a.small) == (b.small > 0) {
			return Int(diff)
		}
	}
	return normalizeBig(new(big.Int).Sub(a.AsBigInt(), b.AsBigInt()))
}

func numMul(a, b Number) Number {
	if a.isFloat || b.isFloat {
		return Float(a.AsFloat() * b.AsFloat())
	}
	if !a.IsBig() && !b.IsBig() {
		if a.small == 0 || b.small == 0 {
			return Int(0)
		}
		p := a.small * b.small
		if p/b.small == a.small && !(a.small == math.MinInt64 && b.small == -1) {
			return Int(p)
		}
	}
	return normalizeBig(new(big.Int).Mul(a.AsBigInt(), b.AsBigInt()))
}

// numDiv implements the policy-language `/` operator: exact rational
// results are not representable in this Value model, so division always
// yields a float. A zero divisor returns ok=false, which Div reports as
// ErrDivByZero.
func numDiv(a, b Number) (Number, bool) {
	bf := b.AsFloat()
	if bf == 0 {
		return Number{}, false
	}
	return Float(a.AsFloat() / bf), true
}

func numMod(a, b Number) (Number, bool) {
	if a.isFloat || b.isFloat {
		bf := b.AsFloat()
		if bf == 0 {
			return Number{}, false
		}
		return Float(math.Mod(a.AsFloat(), bf)), true
	}
	bi := b.AsBigInt()
	if bi.Sign() == 0 {
		return Number{}, false
	}
	return normalizeBig(new(big.Int).Mod(a.AsBigInt(), bi)), true
}
