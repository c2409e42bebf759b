package analyzer

import (
	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/diag"
)

// RuleKind classifies what shape of document a rule name produces,
// for conflict detection (spec §4.2: a name can't be both a complete
// document and a partial-set/object document, and a function's arity
// must be consistent across all of its defining rules).
type RuleKind int

const (
	KindCompleteDoc RuleKind = iota
	KindPartialSet
	KindPartialObject
	KindFunction
)

// FunctionEntry is one name's entry in the FunctionTable.
type FunctionEntry struct {
	Name  string
	Kind  RuleKind
	Arity int // meaningful only when Kind == KindFunction
	Rules []*ast.Rule
}

// FunctionTable maps every top-level rule name to its entry, built by
// FunctionTablePass.
type FunctionTable struct {
	entries map[string]*FunctionEntry
}

func newFunctionTable() *FunctionTable {
	return &FunctionTable{entries: make(map[string]*FunctionEntry)}
}

// Lookup returns the entry for name, or nil if it names no rule.
func (t *FunctionTable) Lookup(name string) *FunctionEntry { return t.entries[name] }

// Names returns every declared rule name, unordered.
func (t *FunctionTable) Names() []string {
	names := make([]string, 0, len(t.entries))
	for n := range t.entries {
		names = append(names, n)
	}
	return names
}

// FunctionTablePass walks the module's rules once, building the
// FunctionTable and reporting PreviouslyDefined conflicts: the same
// name declared with incompatible kinds, or a function declared with
// inconsistent arity across its defining rules.
type FunctionTablePass struct{}

func (FunctionTablePass) Name() string { return "function-table" }

func (p FunctionTablePass) Run(mod *ast.Module, ctx *Context) error {
	table := newFunctionTable()
	for _, r := range mod.Rules {
		name, kind, arity := ruleIdentity(r.Head)
		entry, exists := table.entries[name]
		if !exists {
			table.entries[name] = &FunctionEntry{Name: name, Kind: kind, Arity: arity, Rules: []*ast.Rule{r}}
			continue
		}
		if entry.Kind != kind || (kind == KindFunction && entry.Arity != arity) {
			ctx.errorf(diag.KindPreviouslyDefined, r.Head,
				"rule %q redeclared with a different shape (previously declared at %s)",
				name, entry.Rules[0].Head.Span())
			continue
		}
		entry.Rules = append(entry.Rules, r)
	}
	ctx.Functions = table
	return nil
}

func ruleIdentity(head ast.RuleHead) (name string, kind RuleKind, arity int) {
	switch h := head.(type) {
	case *ast.CompleteRuleHead:
		return h.Name, KindCompleteDoc, 0
	case *ast.PartialSetRuleHead:
		return h.Name, KindPartialSet, 0
	case *ast.PartialObjectRuleHead:
		return h.Name, KindPartialObject, 0
	case *ast.FunctionRuleHead:
		return h.Name, KindFunction, len(h.Params)
	default:
		return "", KindCompleteDoc, 0
	}
}
