package treewalk

import (
	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/value"
)

// solveBody walks body in order, invoking k once per satisfying
// binding; k returns true to stop the search early (used by callers
// that only need the first solution), false to keep enumerating every
// solution (used by comprehensions and partial-rule bodies). solveBody
// itself returns whether k ever signalled stop.
//
// This is the tree-walk analogue of compiler.Compiler.compileBody: a
// SomeInLiteral opens a generator loop over everything after it (so a
// `some`-bound variable stays in scope for the rest of the body and the
// rule head, spec §4.4), and a failed literal simply returns false
// without trying further alternatives at this position — the backtrack
// happens one level up, at whichever generator loop is still open.
func (e *Evaluator) solveBody(body []ast.Literal, en *env, k func(*env) bool) bool {
	if len(body) == 0 {
		return k(en)
	}

	lit := body[0]
	rest := body[1:]

	switch l := lit.(type) {
	case *ast.ExprLiteral:
		ok, next, err := e.evalBodyExpr(l.Expr, en)
		if err != nil || !ok {
			return false
		}
		return e.solveBody(rest, next, k)

	case *ast.NotLiteral:
		v, err := e.evalExpr(l.Expr, en)
		if err == nil && v.Truthy() {
			return false
		}
		return e.solveBody(rest, en, k)

	case *ast.SomeVarsLiteral:
		next := en
		for _, v := range l.Vars {
			next = next.bind(v.Name, value.Undefined())
		}
		return e.solveBody(rest, next, k)

	case *ast.SomeInLiteral:
		coll, err := e.evalExpr(l.Collection, en)
		if err != nil {
			return false
		}
		stopped := false
		forEachElement(coll, func(key, val value.Value) bool {
			cur := en
			if l.Key != nil {
				if kv, ok := l.Key.(*ast.Var); ok && kv.Name != "_" {
					cur = cur.bind(kv.Name, key)
				}
			}
			cur, matched := e.bindPattern(l.Value, val, cur)
			if !matched {
				return false
			}
			if e.solveBody(rest, cur, k) {
				stopped = true
				return true
			}
			return false
		})
		return stopped

	case *ast.EveryLiteral:
		coll, err := e.evalExpr(l.Collection, en)
		if err != nil {
			return false
		}
		allSatisfied := true
		forEachElement(coll, func(key, val value.Value) bool {
			cur := en
			if l.Key != nil {
				if kv, ok := l.Key.(*ast.Var); ok && kv.Name != "_" {
					cur = cur.bind(kv.Name, key)
				}
			}
			if l.Value != nil {
				if vv, ok := l.Value.(*ast.Var); ok && vv.Name != "_" {
					cur = cur.bind(vv.Name, val)
				}
			}
			satisfied := e.solveBody(l.Body, cur, func(*env) bool { return true })
			if !satisfied {
				allSatisfied = false
				return true
			}
			return false
		})
		if !allSatisfied {
			return false
		}
		return e.solveBody(rest, en, k)

	default:
		return false
	}
}

// evalBodyExpr evaluates one non-declarative body expression, mirroring
// compileBodyExpr: an assignment/unify binds its left-hand pattern
// against the right-hand value; anything else is asserted — a
// comparison/boolean-shaped expression must itself be Bool(true), and a
// reference/call must be both defined and Bool(true) (spec §4.5's
// AssertNonUndefined folded into the same Bool(true) check the compiler
// performs with two opcodes).
func (e *Evaluator) evalBodyExpr(expr ast.Expr, en *env) (bool, *env, error) {
	switch n := expr.(type) {
	case *ast.AssignExpr:
		v, err := e.evalExpr(n.Value, en)
		if err != nil {
			return false, en, nil
		}
		next, ok := e.bindPattern(n.Target, v, en)
		return ok, next, nil
	case *ast.BinaryExpr:
		if n.Op == ast.OpUnify {
			v, err := e.evalExpr(n.Right, en)
			if err != nil {
				return false, en, nil
			}
			next, ok := e.bindPattern(n.Left, v, en)
			return ok, next, nil
		}
	}

	v, err := e.evalExpr(expr, en)
	if err != nil {
		return false, en, nil
	}
	if v.IsUndefined() {
		return false, en, nil
	}
	b, ok := v.AsBool()
	return ok && b, en, nil
}

// bindPattern matches v against pattern, mirroring compileDestructure:
// a bare Var binds (or is ignored for "_"), array/object patterns
// recurse element/key-wise, and a call pattern treats its last argument
// as the actual output binding, asserting the call's return equals v.
func (e *Evaluator) bindPattern(pattern ast.Expr, v value.Value, en *env) (*env, bool) {
	switch p := pattern.(type) {
	case *ast.Var:
		if p.Name == "_" {
			return en, true
		}
		return en.bind(p.Name, v), true

	case *ast.ArrayLit:
		arr, ok := v.AsArray()
		if !ok || len(arr) != len(p.Elems) {
			return en, false
		}
		cur := en
		for i, el := range p.Elems {
			var matched bool
			cur, matched = e.bindPattern(el, arr[i], cur)
			if !matched {
				return en, false
			}
		}
		return cur, true

	case *ast.ObjectLit:
		cur := en
		for _, pr := range p.Pairs {
			keyVal, err := e.evalExpr(pr.Key, cur)
			if err != nil {
				return en, false
			}
			elem := value.Index(v, keyVal)
			if elem.IsUndefined() {
				return en, false
			}
			var matched bool
			cur, matched = e.bindPattern(pr.Value, elem, cur)
			if !matched {
				return en, false
			}
		}
		return cur, true

	case *ast.Call:
		if len(p.Args) == 0 {
			return en, true
		}
		out := p.Args[len(p.Args)-1]
		callExpr := ast.NewCall(p.Span(), p.Func, p.Args[:len(p.Args)-1])
		callVal, err := e.evalExpr(callExpr, en)
		if err != nil || !value.Equal(v, callVal) {
			return en, false
		}
		return e.bindPattern(out, callVal, en)

	default:
		lit, err := e.evalExpr(pattern, en)
		if err != nil || !value.Equal(v, lit) {
			return en, false
		}
		return en, true
	}
}
