package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/corepolicy/rvm/internal/analyzer"
	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/diag"
	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/parser"
	"github.com/corepolicy/rvm/internal/source"
)

// AddPolicy parses src under name and stashes it for the next
// CompileProgram/CompileWithEntrypoint call (spec §6.1's add_policy).
// Parsing happens eagerly so a syntax error surfaces at load time, not
// at the first compile.
func (e *Engine) AddPolicy(name, src string) error {
	if _, _, err := parseModule(name, src); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = append(e.policies, policySource{name: name, text: src})
	e.invalidateMergeLocked()
	return nil
}

func (e *Engine) invalidateMergeLocked() {
	e.mergedMod = nil
	e.mergedErr = nil
	e.mergedKey = ""
}

func parseModule(name, src string) (*ast.Module, *analyzer.Context, error) {
	s := source.New(name, src)
	l := lexer.New(s)
	p := parser.New(l, name)
	mod := p.ParseModule()
	if diags := p.Diagnostics(); len(diags) > 0 {
		return nil, nil, diag.List(diags)
	}
	ctx := analyzer.Analyze(mod)
	if ctx.HasErrors() {
		return nil, nil, diag.List(ctx.Diagnostics)
	}
	return mod, ctx, nil
}

// mergedModule parses every loaded policy source fresh and combines
// their rules into one synthetic module (the analyzer and compiler
// both operate on a single *ast.Module), caching the result until the
// next AddPolicy invalidates it. The cache key is also handed to
// progCache, so recompiling an unchanged module set is a cache hit.
func (e *Engine) mergedModule() (*ast.Module, *analyzer.Context, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := moduleSetKey(e.policies, e.strict)
	if e.mergedMod != nil && e.mergedKey == key {
		ctx := analyzer.Analyze(e.mergedMod)
		return e.mergedMod, ctx, key, nil
	}

	var allRules []*ast.Rule
	for _, p := range e.policies {
		mod, _, err := parseModule(p.name, p.text)
		if err != nil {
			return nil, nil, "", fmt.Errorf("engine: policy %q: %w", p.name, err)
		}
		allRules = append(allRules, mod.Rules...)
	}

	merged := ast.NewModule(source.Span{}, ast.Path{}, nil, allRules)
	ctx := analyzer.Analyze(merged)
	if ctx.HasErrors() {
		return nil, nil, "", fmt.Errorf("engine: analyzing merged policy set: %w", diag.List(ctx.Diagnostics))
	}

	e.mergedMod = merged
	e.mergedErr = nil
	e.mergedKey = key
	return merged, ctx, key, nil
}

// moduleSetKey hashes the loaded policy set plus the strict flag, since
// both affect what CompileProgram produces. This is a small bookkeeping
// hash, not a domain concern any pack library addresses, so it uses
// crypto/sha256 directly (SPEC_FULL §11 lists no hashing library for
// this pack; see DESIGN.md).
func moduleSetKey(policies []policySource, strict bool) string {
	sorted := append([]policySource{}, policies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	h := sha256.New()
	for _, p := range sorted {
		h.Write([]byte(p.name))
		h.Write([]byte{0})
		h.Write([]byte(p.text))
		h.Write([]byte{0})
	}
	if strict {
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}
