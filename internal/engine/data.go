package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "github.com/goccy/go-yaml"

	"github.com/corepolicy/rvm/internal/value"
)

// Data returns the engine's current base document, for a caller (e.g.
// the CLI's eval --set patching) that needs to read before it writes.
func (e *Engine) Data() value.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

// AddData merges v into the engine's base document (spec §6.1's
// add_data): v must be an object, and its pairs are layered on top of
// whatever is already loaded, last-write-wins on a shared key (mirrors
// value.Object's own insertion semantics, internal/value/collections.go).
func (e *Engine) AddData(v value.Value) error {
	obj, ok := v.AsObject()
	if !ok {
		return fmt.Errorf("engine: add_data requires an object, got %s", v.Kind())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, _ := e.data.AsObject()
	merged := append(append([]value.Pair{}, existing.Pairs()...), obj.Pairs()...)
	e.data = value.NewObject(merged)
	return nil
}

// SetInput replaces the engine's input document wholesale (spec §6.1's
// set_input) — unlike AddData, there is no merge: a second SetInput call
// simply discards the previous input.
func (e *Engine) SetInput(v value.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.input = v
}

// LoadDataFile reads a JSON or YAML document from path and merges it
// into the engine's data document via AddData. YAML is decoded with
// goccy/go-yaml (SPEC_FULL §11), JSON with the standard library (a
// pack-universal concern no third-party decoder improves on for the
// stdlib's own wire format).
func (e *Engine) LoadDataFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("engine: reading data file %s: %w", path, err)
	}

	var decoded any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("engine: decoding yaml data file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("engine: decoding json data file %s: %w", path, err)
		}
	}

	return e.AddData(value.FromGo(decoded))
}

// LoadPolicyBundle walks dir for .policy files and loads each one via
// AddPolicy, using the path relative to dir as the policy's name.
func (e *Engine) LoadPolicyBundle(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".policy" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("engine: reading policy %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		return e.AddPolicy(rel, string(raw))
	})
}
