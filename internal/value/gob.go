package value

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// GobEncode/GobDecode let a Value (and the Number/Set/Object it wraps,
// all of which keep their fields unexported to protect the total
// order and exact-numeric invariants from external construction) take
// part in encoding/gob's struct-graph traversal: package compiler uses
// gob to (de)serialize a compiled Program (spec §6.5), and Program's
// Literals field is a []Value — gob calls these methods for each
// element instead of reflecting over Value's private fields.
//
// The wire shape is a tag byte followed by a kind-specific payload,
// with nested Values (array elements, set members, object pairs)
// length-prefixed so GobDecode knows where one sub-value ends and the
// next begins.
func (v Value) GobEncode() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(v.kind))
	switch v.kind {
	case KindNull, KindUndefined:
		// no payload
	case KindBool:
		if v.b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindNumber:
		nb, err := v.num.GobEncode()
		if err != nil {
			return nil, err
		}
		writeLenPrefixed(buf, nb)
	case KindString:
		buf.WriteString(v.str)
	case KindArray:
		writeUvarint(buf, uint64(len(v.arr)))
		for _, e := range v.arr {
			eb, err := e.GobEncode()
			if err != nil {
				return nil, err
			}
			writeLenPrefixed(buf, eb)
		}
	case KindSet:
		items := v.set.Items()
		writeUvarint(buf, uint64(len(items)))
		for _, e := range items {
			eb, err := e.GobEncode()
			if err != nil {
				return nil, err
			}
			writeLenPrefixed(buf, eb)
		}
	case KindObject:
		pairs := v.obj.Pairs()
		writeUvarint(buf, uint64(len(pairs)))
		for _, p := range pairs {
			kb, err := p.Key.GobEncode()
			if err != nil {
				return nil, err
			}
			writeLenPrefixed(buf, kb)
			vb, err := p.Value.GobEncode()
			if err != nil {
				return nil, err
			}
			writeLenPrefixed(buf, vb)
		}
	default:
		return nil, fmt.Errorf("value: GobEncode: unknown kind %v", v.kind)
	}
	return buf.Bytes(), nil
}

func (v *Value) GobDecode(data []byte) error {
	r := bytes.NewReader(data)
	kindByte, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("value: GobDecode: %w", err)
	}
	kind := Kind(kindByte)
	switch kind {
	case KindNull:
		*v = Null()
	case KindUndefined:
		*v = Undefined()
	case KindBool:
		b, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("value: GobDecode bool: %w", err)
		}
		*v = Bool(b != 0)
	case KindNumber:
		nb, err := readLenPrefixed(r)
		if err != nil {
			return fmt.Errorf("value: GobDecode number: %w", err)
		}
		var num Number
		if err := num.GobDecode(nb); err != nil {
			return err
		}
		*v = Num(num)
	case KindString:
		rest, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("value: GobDecode string: %w", err)
		}
		*v = Str(string(rest))
	case KindArray:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("value: GobDecode array length: %w", err)
		}
		elems := make([]Value, n)
		for i := range elems {
			eb, err := readLenPrefixed(r)
			if err != nil {
				return fmt.Errorf("value: GobDecode array element %d: %w", i, err)
			}
			if err := elems[i].GobDecode(eb); err != nil {
				return err
			}
		}
		*v = Value{kind: KindArray, arr: elems}
	case KindSet:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("value: GobDecode set length: %w", err)
		}
		items := make([]Value, n)
		for i := range items {
			eb, err := readLenPrefixed(r)
			if err != nil {
				return fmt.Errorf("value: GobDecode set element %d: %w", i, err)
			}
			if err := items[i].GobDecode(eb); err != nil {
				return err
			}
		}
		// items were already unique and total-order-sorted when encoded;
		// rebuild the Set directly rather than re-inserting through
		// newSet so decode stays O(n) instead of O(n log n).
		*v = Value{kind: KindSet, set: &Set{items: items}}
	case KindObject:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("value: GobDecode object length: %w", err)
		}
		pairs := make([]Pair, n)
		index := make(map[string]int, n)
		for i := range pairs {
			kb, err := readLenPrefixed(r)
			if err != nil {
				return fmt.Errorf("value: GobDecode object key %d: %w", i, err)
			}
			if err := pairs[i].Key.GobDecode(kb); err != nil {
				return err
			}
			vb, err := readLenPrefixed(r)
			if err != nil {
				return fmt.Errorf("value: GobDecode object value %d: %w", i, err)
			}
			if err := pairs[i].Value.GobDecode(vb); err != nil {
				return err
			}
			if s, ok := pairs[i].Key.AsString(); ok {
				index[s] = i
			}
		}
		*v = Value{kind: KindObject, obj: &Object{pairs: pairs, index: index}}
	default:
		return fmt.Errorf("value: GobDecode: unknown kind tag %d", kindByte)
	}
	return nil
}

// GobEncode/GobDecode for Number mirror the decimal-text round trip
// String()/ParseNumber already provide, which by construction preserves
// the exact integer tower (spec §3.1) without reaching into big.Int's
// own internals.
func (n Number) GobEncode() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Number) GobDecode(data []byte) error {
	num, ok := ParseNumber(string(data))
	if !ok {
		return fmt.Errorf("value: GobDecode number: invalid literal %q", data)
	}
	*n = num
	return nil
}

func writeUvarint(buf *bytes.Buffer, n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	written := binary.PutUvarint(tmp[:], n)
	buf.Write(tmp[:written])
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
