// Package treewalk implements a direct, uncompiled evaluator over the
// analyzed AST (spec §12): a reference oracle for differential testing
// against the compiled register VM (internal/rvm), and for answering
// one-shot ad hoc queries without paying for a full compile. It is a
// collaborator of internal/engine, not part of the RVM core.
//
// Grounded on internal/compiler's own lowering (compiler.go): the same
// body/literal/expression shapes are walked here directly instead of
// being lowered to instructions, and the same satisfy-or-fail-silently
// semantics (spec §4.5) apply at each step.
package treewalk

import "github.com/corepolicy/rvm/internal/value"

// env is an immutable, chained variable scope: binding a name never
// mutates an existing frame, it links a new one on top — so a failed
// branch of the search (a body literal whose assertion fails, a
// comprehension element that doesn't match) never leaks a binding into
// a sibling branch that backtracks past it.
type env struct {
	parent *env
	name   string
	value  value.Value
}

func (e *env) lookup(name string) (value.Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.value, true
		}
	}
	return value.Value{}, false
}

// bind returns a new scope with name bound to v, or e unchanged for the
// wildcard "_".
func (e *env) bind(name string, v value.Value) *env {
	if name == "_" {
		return e
	}
	return &env{parent: e, name: name, value: v}
}

// names collects every distinct variable name visible from e, nearest
// binding first — used by EvalQuery to report what a query bound.
func (e *env) names() []string {
	seen := make(map[string]bool)
	var out []string
	for cur := e; cur != nil; cur = cur.parent {
		if !seen[cur.name] {
			seen[cur.name] = true
			out = append(out, cur.name)
		}
	}
	return out
}
