package value

import (
	"math"
	"math/big"
	"testing"
)

func TestArbitraryPrecisionIntegerRoundTrip(t *testing.T) {
	lit := "123456789012345678901234567890"
	n, ok := ParseNumber(lit)
	if !ok {
		t.Fatal("failed to parse big integer literal")
	}
	if !n.IsBig() {
		t.Fatal("expected big representation for an int64-overflowing literal")
	}
	if n.String() != lit {
		t.Fatalf("round trip mismatch: got %s want %s", n.String(), lit)
	}
}

func TestIntegerArithmeticStaysExact(t *testing.T) {
	a := Int(math.MaxInt64)
	b := Int(1)
	sum := numAdd(a, b)
	if !sum.IsBig() {
		t.Fatal("expected overflow to promote to big.Int")
	}
	want := new(big.Int).Add(big.NewInt(math.MaxInt64), big.NewInt(1))
	if sum.AsBigInt().Cmp(want) != 0 {
		t.Fatalf("got %s want %s", sum.AsBigInt(), want)
	}
}

func TestArithmeticNarrowsBackDown(t *testing.T) {
	big1, _ := ParseNumber("9223372036854775808") // MaxInt64 + 1
	back := numSub(big1, Int(1))
	if back.IsBig() {
		t.Fatal("expected result to narrow back to int64")
	}
	if v, ok := back.AsInt64(); !ok || v != math.MaxInt64 {
		t.Fatalf("got %v", back)
	}
}

func TestFloatParticipationPromotesToFloat(t *testing.T) {
	f, _ := ParseNumber("1.5")
	if !f.IsFloat() {
		t.Fatal("expected float representation")
	}
	sum := numAdd(Int(1), f)
	if !sum.IsFloat() {
		t.Fatal("mixing int and float must yield float")
	}
}

func TestModZero(t *testing.T) {
	if _, ok := numMod(Int(4), Int(0)); ok {
		t.Fatal("expected modulo by zero to fail")
	}
}
