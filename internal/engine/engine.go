// Package engine wires the lexer, parser, analyzer, compiler and VM
// into the single host-facing API a caller actually touches (spec
// §6.1): add policy/data sources, compile an entry point, and evaluate
// it — either through the compiled register VM or, for differential
// testing and one-shot ad hoc queries, the internal/treewalk oracle.
//
// Grounded on the teacher's cmd/dwscript/cmd package: the same
// orchestration role (constructing a Lexer, handing it to a Parser,
// feeding the result to whatever runs next) that file split across CLI
// subcommands, collected here into one reusable, embeddable type.
package engine

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/builtin"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/corepolicy/rvm/internal/compiler"
	"github.com/corepolicy/rvm/internal/value"
)

// policySource is one add_policy call's raw material, kept so
// CompileProgram can re-merge every loaded source whenever the set
// changes.
type policySource struct {
	name string
	text string
}

// Engine is the host-facing entry point (spec §6.1/§10.3). Safe for
// concurrent use: every method that touches shared state takes mu.
type Engine struct {
	log       hclog.Logger
	strict    bool
	builtins  *builtin.Registry
	cacheSize int

	mu       sync.Mutex
	policies []policySource
	data     value.Value
	input    value.Value

	mergedMod *ast.Module // cached result of the last successful merge
	mergedErr error
	mergedKey string

	progCache *lru.Cache[string, *compiler.Program]
}

// EngineOption configures an Engine at construction time (SPEC_FULL
// §10.3: the teacher's functional-option idiom, generalized from
// LexerOption/ParserOption to this package's own concerns).
type EngineOption func(*Engine)

// WithLogger installs an explicit hclog.Logger (SPEC_FULL §10.2),
// propagated to every VM and tree-walk Evaluator this Engine creates.
func WithLogger(log hclog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithStrict sets the initial strict-mode flag (spec §12's
// Engine.SetStrict), propagated to the compiler, the VM and the
// tree-walk oracle alike.
func WithStrict(strict bool) EngineOption {
	return func(e *Engine) { e.strict = strict }
}

// WithBuiltins overrides the reference builtin registry (defaults to
// builtin.New()).
func WithBuiltins(b *builtin.Registry) EngineOption {
	return func(e *Engine) { e.builtins = b }
}

// WithProgramCacheSize bounds the compiled-Program LRU cache (SPEC_FULL
// §11: github.com/hashicorp/golang-lru/v2), keyed by a hash of the
// loaded module set plus strictness. Defaults to 32 entries.
func WithProgramCacheSize(n int) EngineOption {
	return func(e *Engine) { e.cacheSize = n }
}

// NewEngine constructs an Engine ready to accept AddPolicy/AddData/
// SetInput calls.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		log:       hclog.NewNullLogger(),
		builtins:  builtin.New(),
		cacheSize: 32,
		data:      value.NewObject(nil),
		input:     value.NewObject(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.strict {
		e.builtins.SetStrict(true)
	}
	cache, _ := lru.New[string, *compiler.Program](e.cacheSize)
	e.progCache = cache
	return e
}

// SetStrict toggles strict mode after construction, propagating to the
// compiler (via the next CompileProgram), the VM, and the tree-walk
// oracle (spec §12).
func (e *Engine) SetStrict(strict bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strict = strict
	e.builtins.SetStrict(strict)
}

// Logger returns the Engine's configured logger, for a host wiring its
// own subordinate components against the same sink.
func (e *Engine) Logger() hclog.Logger { return e.log }
