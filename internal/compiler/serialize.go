package compiler

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Serialize/Deserialize persist a compiled Program across the boundary
// a host cares about (spec §6.5's compile-cache invariant: Serialize(p)
// then Deserialize must reproduce an equal Program, so a cached
// compiled program can stand in for recompiling the same source text).
//
// encoding/gob round-trips Program's struct graph field-for-field; the
// one place that would otherwise defeat it — value.Value's unexported
// internals, carried in Literals — is handled by Value/Number/Set/
// Object's own GobEncode/GobDecode methods (internal/value/gob.go),
// which gob calls automatically for any type that implements them.
func Serialize(p *Program) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("compiler: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

func Deserialize(data []byte) (*Program, error) {
	var p Program
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("compiler: deserialize: %w", err)
	}
	return &p, nil
}
