// Package builtin implements spec §6.3's builtin collaborator contract:
// uniform arity/type checking (ensure_args_count, ensure_string, …), a
// strict/non-strict error-vs-Undefined split, and a small reference
// builtin set sufficient to exercise the dispatcher end to end — the
// deep builtin library itself stays out of scope (SPEC_FULL §1/§13).
//
// Grounded on the teacher's internal/bytecode vm_builtins*.go family:
// a name -> function table built once by a registerXxxBuiltins method,
// looked up by the VM at call time. Adapted here into a name+index
// registry, since this language's compiler resolves a builtin to a
// fixed integer index at compile time (compiler.BuiltinResolver) and
// the VM dispatches by that index (rvm.Builtins), never by name.
package builtin

import (
	"fmt"
	"io"
	"os"

	"github.com/corepolicy/rvm/internal/value"
)

// Func is one builtin's implementation. strict selects spec §6.3/§7's
// error-vs-Undefined behavior for a type/arity contract violation;
// the function itself only needs to report the violation, not decide
// what to do about it — Registry.Call applies that policy uniformly.
type Func func(args []value.Value) (value.Value, error)

type entry struct {
	name string
	fn   Func
}

// Registry is the reference builtin set: it implements both
// compiler.BuiltinResolver (name -> index, at compile time) and
// rvm.Builtins (index -> result, at run time) on the same concrete
// type, so a host wires one value into both stages.
type Registry struct {
	entries []entry
	index   map[string]int
	strict  bool
	output  io.Writer
}

// New returns a Registry pre-loaded with the reference builtin set,
// non-strict by default (spec §7: builtin errors "swallowed to
// Undefined in non-strict mode"), printing to os.Stdout.
func New() *Registry {
	r := &Registry{index: make(map[string]int), output: os.Stdout}
	r.registerCoreBuiltins()
	r.registerStringBuiltins()
	r.registerNumericBuiltins()
	r.registerCollectionBuiltins()
	return r
}

// SetStrict toggles spec §7's strict/non-strict split for builtin
// errors (SPEC_FULL §12's Engine.SetStrict propagates here). Arithmetic
// errors are not affected: the VM does not consult this flag for them.
func (r *Registry) SetStrict(strict bool) { r.strict = strict }

// SetOutput redirects `print`'s side channel (spec §6.3); defaults to
// os.Stdout.
func (r *Registry) SetOutput(w io.Writer) { r.output = w }

func (r *Registry) register(name string, fn Func) {
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, entry{name: name, fn: fn})
}

// Lookup implements compiler.BuiltinResolver.
func (r *Registry) Lookup(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// Call implements rvm.Builtins. A contract violation (wrong arity,
// wrong argument type) becomes a hard error in strict mode and
// Undefined otherwise (spec §6.3/§7); an index out of range is always
// a hard error — that is an internal VM/compiler inconsistency, not a
// policy-author mistake.
func (r *Registry) Call(index int, args []value.Value) (value.Value, error) {
	if index < 0 || index >= len(r.entries) {
		return value.Undefined(), fmt.Errorf("builtin: index %d out of range", index)
	}
	e := r.entries[index]
	result, err := e.fn(args)
	if err != nil {
		if r.strict {
			return value.Undefined(), err
		}
		return value.Undefined(), nil
	}
	return result, nil
}

// Names lists every registered builtin, in registration order (used by
// tests).
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}
