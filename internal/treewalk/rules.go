package treewalk

import (
	"fmt"
	"strings"

	"github.com/corepolicy/rvm/internal/analyzer"
	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/value"
)

// EvalRule evaluates the document produced by the named rule (spec
// §6.1's eval_rule), accepting both a bare rule name and a "data."-
// prefixed path since callers route through the same document space
// the compiled engine does.
func (e *Evaluator) EvalRule(path string) (value.Value, error) {
	name := strings.TrimPrefix(path, "data.")
	if e.ctx == nil || e.ctx.Functions == nil {
		return value.Undefined(), fmt.Errorf("treewalk: no analyzed module loaded")
	}
	entry := e.ctx.Functions.Lookup(name)
	if entry == nil {
		return value.Undefined(), e.errNotFound("rule", name)
	}
	return e.callRule(entry, nil)
}

// callRule evaluates entry against args, dispatching on the rule kind
// the way internal/compiler's compileHeadValue does per RuleHead
// variant, except a tree-walk evaluator enumerates every satisfying
// body binding itself instead of relying on the VM's loop opcodes.
func (e *Evaluator) callRule(entry *analyzer.FunctionEntry, args []value.Value) (value.Value, error) {
	switch entry.Kind {
	case analyzer.KindFunction:
		return e.callFunction(entry, args)
	case analyzer.KindCompleteDoc:
		return e.callCompleteDoc(entry)
	case analyzer.KindPartialSet:
		return e.callPartialSet(entry)
	case analyzer.KindPartialObject:
		return e.callPartialObject(entry)
	default:
		return value.Undefined(), fmt.Errorf("treewalk: unsupported rule kind %v", entry.Kind)
	}
}

func (e *Evaluator) callFunction(entry *analyzer.FunctionEntry, args []value.Value) (value.Value, error) {
	for _, r := range entry.Rules {
		fh, ok := r.Head.(*ast.FunctionRuleHead)
		if !ok || len(fh.Params) != len(args) {
			continue
		}
		var cur *env
		matched := true
		for i, param := range fh.Params {
			var ok2 bool
			cur, ok2 = e.bindPattern(param, args[i], cur)
			if !ok2 {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		result := value.Undefined()
		found := e.solveBody(r.Body, cur, func(benv *env) bool {
			v, err := e.evalExpr(fh.Value, benv)
			if err != nil {
				return false
			}
			result = v
			return true
		})
		if found {
			return result, nil
		}
	}
	return value.Undefined(), nil
}

// callCompleteDoc tries every non-default rule body in turn (following
// each one's else chain on failure), falling back to a default rule
// only when no primary body is satisfied — spec §4.2's default-rule
// semantics.
func (e *Evaluator) callCompleteDoc(entry *analyzer.FunctionEntry) (value.Value, error) {
	var defaultRule *ast.Rule
	for _, r := range entry.Rules {
		if r.Default {
			defaultRule = r
			continue
		}
		if v, ok := e.tryCompleteChain(r); ok {
			return v, nil
		}
	}
	if defaultRule != nil {
		ch, ok := defaultRule.Head.(*ast.CompleteRuleHead)
		if !ok {
			return value.Undefined(), nil
		}
		return e.evalExpr(ch.Value, nil)
	}
	return value.Undefined(), nil
}

// tryCompleteChain attempts r's own body, falling through to r.Else on
// failure (parseRule gives a valueless `else` the value Bool(true), and
// an else clause with no body has an empty body, which always
// "succeeds").
func (e *Evaluator) tryCompleteChain(r *ast.Rule) (value.Value, bool) {
	ch, ok := r.Head.(*ast.CompleteRuleHead)
	if !ok {
		return value.Undefined(), false
	}
	var result value.Value
	satisfied := e.solveBody(r.Body, nil, func(benv *env) bool {
		v, err := e.evalExpr(ch.Value, benv)
		if err != nil {
			return false
		}
		result = v
		return true
	})
	if satisfied {
		return result, true
	}
	if r.Else != nil {
		return e.tryCompleteChain(r.Else)
	}
	return value.Undefined(), false
}

// callPartialSet collects every satisfying body's key into the rule's
// set document, across every defining rule (spec §4.1: `name contains
// key { ... }` contributes one element per body solution, unioned
// across all the rule's clauses).
func (e *Evaluator) callPartialSet(entry *analyzer.FunctionEntry) (value.Value, error) {
	var items []value.Value
	for _, r := range entry.Rules {
		ph, ok := r.Head.(*ast.PartialSetRuleHead)
		if !ok {
			continue
		}
		e.solveBody(r.Body, nil, func(benv *env) bool {
			v, err := e.evalExpr(ph.Key, benv)
			if err == nil {
				items = append(items, v)
			}
			return false
		})
	}
	return value.NewSet(items), nil
}

// callPartialObject merges every satisfying body's key/value pair into
// the rule's object document. A later solution overwriting an earlier
// one's key is a simplification: the compiled engine's merge step
// (spec §4.1) is the authority on object-key-conflict diagnostics, this
// oracle only needs a representative document for differential tests.
func (e *Evaluator) callPartialObject(entry *analyzer.FunctionEntry) (value.Value, error) {
	var pairs []value.Pair
	for _, r := range entry.Rules {
		ph, ok := r.Head.(*ast.PartialObjectRuleHead)
		if !ok {
			continue
		}
		e.solveBody(r.Body, nil, func(benv *env) bool {
			k, err1 := e.evalExpr(ph.Key, benv)
			v, err2 := e.evalExpr(ph.Value, benv)
			if err1 == nil && err2 == nil {
				pairs = append(pairs, value.Pair{Key: k, Value: v})
			}
			return false
		})
	}
	return value.NewObject(pairs), nil
}
