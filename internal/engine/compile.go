package engine

import (
	"fmt"
	"strings"

	"github.com/corepolicy/rvm/internal/compiler"
	"github.com/corepolicy/rvm/internal/diag"
)

// CompiledPolicy pairs a compiled Program with the entry point a caller
// asked for; it is what CompileWithEntrypoint returns.
type CompiledPolicy struct {
	Program    *compiler.Program
	EntryPoint string
	EntryIndex int
}

// CompileProgram merges every loaded policy source and lowers it to a
// *compiler.Program, reusing a cached Program when the module set and
// strictness are unchanged since the last call (spec §6.1's
// compile_program; SPEC_FULL §11's golang-lru/v2).
func (e *Engine) CompileProgram() (*compiler.Program, error) {
	mod, ctx, key, err := e.mergedModule()
	if err != nil {
		return nil, err
	}

	if prog, ok := e.progCache.Get(key); ok {
		return prog, nil
	}

	e.mu.Lock()
	builtins := e.builtins
	e.mu.Unlock()

	prog, diags := compiler.Compile(mod, ctx, builtins)
	if len(diags) > 0 {
		return nil, fmt.Errorf("engine: compiling policy set: %w", diag.List(diags))
	}

	e.progCache.Add(key, prog)
	return prog, nil
}

// CompileWithEntrypoint compiles the current policy set and resolves
// path (a bare rule name or dotted "data."-prefixed path) to a concrete
// entry point, failing if it isn't present in Program.EntryPoints.
func (e *Engine) CompileWithEntrypoint(path string) (*CompiledPolicy, error) {
	prog, err := e.CompileProgram()
	if err != nil {
		return nil, err
	}

	key := entryPointKey(path)
	idx, ok := prog.EntryPoints[key]
	if !ok {
		return nil, fmt.Errorf("engine: no such entry point %q", path)
	}

	return &CompiledPolicy{Program: prog, EntryPoint: key, EntryIndex: idx}, nil
}

// entryPointKey normalizes a rule reference the way a caller writes it
// ("data.allow" or bare "allow") into the compiler's "name/arity"
// EntryPoints key, assuming the bare-name (zero-argument) form — the
// same "data."-stripping convention internal/treewalk.EvalRule uses.
func entryPointKey(path string) string {
	name := strings.TrimPrefix(path, "data.")
	return fmt.Sprintf("%s/0", name)
}
