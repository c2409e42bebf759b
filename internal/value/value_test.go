package value

import "testing"

func TestTotalOrderAcrossKinds(t *testing.T) {
	ordered := []Value{
		Null(),
		Bool(false),
		Bool(true),
		IntValue(1),
		Str("a"),
		NewArray([]Value{IntValue(1)}),
		NewSet([]Value{IntValue(1)}),
		NewObject([]Pair{{Key: Str("k"), Value: IntValue(1)}}),
		Undefined(),
	}
	for i := 0; i < len(ordered)-1; i++ {
		if Compare(ordered[i], ordered[i+1]) >= 0 {
			t.Fatalf("expected %v < %v", ordered[i], ordered[i+1])
		}
	}
}

func TestUndefinedPropagatesIntoCollections(t *testing.T) {
	if !NewArray([]Value{IntValue(1), Undefined()}).IsUndefined() {
		t.Fatal("array with undefined element must materialize as Undefined")
	}
	if !NewSet([]Value{Undefined()}).IsUndefined() {
		t.Fatal("set with undefined element must materialize as Undefined")
	}
	if !NewObject([]Pair{{Key: Str("k"), Value: Undefined()}}).IsUndefined() {
		t.Fatal("object with undefined value must materialize as Undefined")
	}
}

func TestSetDedupAndOrder(t *testing.T) {
	s := NewSet([]Value{IntValue(3), IntValue(1), IntValue(2), IntValue(1)})
	set, _ := s.AsSet()
	if set.Len() != 3 {
		t.Fatalf("expected 3 distinct elements, got %d", set.Len())
	}
	items := set.Items()
	for i := 0; i < len(items)-1; i++ {
		if Compare(items[i], items[i+1]) >= 0 {
			t.Fatalf("set items not strictly ordered at %d", i)
		}
	}
}

func TestIndexUndefinedKeyYieldsUndefined(t *testing.T) {
	obj := NewObject([]Pair{{Key: Str("a"), Value: IntValue(1)}})
	if !Index(obj, Undefined()).IsUndefined() {
		t.Fatal("indexing with an undefined key must yield Undefined")
	}
	if !Index(obj, Str("missing")).IsUndefined() {
		t.Fatal("indexing a missing key must yield Undefined")
	}
}

func TestArithmeticUndefinedPropagation(t *testing.T) {
	_, err := Add(Undefined(), IntValue(1))
	if err != ErrUndefinedOperand {
		t.Fatalf("expected ErrUndefinedOperand, got %v", err)
	}
}

func TestDivisionByZero(t *testing.T) {
	_, err := Div(IntValue(1), IntValue(0))
	if err != ErrDivByZero {
		t.Fatalf("expected ErrDivByZero, got %v", err)
	}
}

func TestStringConcatViaAdd(t *testing.T) {
	v, err := Add(Str("foo"), Str("bar"))
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := v.AsString(); s != "foobar" {
		t.Fatalf("got %q", s)
	}
}
