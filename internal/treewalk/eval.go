package treewalk

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/corepolicy/rvm/internal/analyzer"
	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/value"
)

// BuiltinResolver is the builtin half of the host API this evaluator
// needs: name-to-index lookup (shared with internal/compiler's
// compiler.BuiltinResolver) plus the index-keyed call internal/rvm's
// Builtins interface already exposes. internal/builtin.Registry
// implements both, so it satisfies this directly.
type BuiltinResolver interface {
	Lookup(name string) (index int, ok bool)
	Call(index int, args []value.Value) (value.Value, error)
}

// Evaluator walks one analyzed module's rules directly against an
// input/data pair, without compiling to bytecode.
type Evaluator struct {
	mod      *ast.Module
	ctx      *analyzer.Context
	builtins BuiltinResolver

	input value.Value
	data  value.Value

	strict bool
	log    hclog.Logger
}

// New returns an Evaluator over mod, sharing ctx (the analyzer.Context
// already built for mod) and builtins with the compiled path so both
// evaluators resolve rule/builtin names identically.
func New(mod *ast.Module, ctx *analyzer.Context, builtins BuiltinResolver) *Evaluator {
	return NewWithLogger(mod, ctx, builtins, hclog.NewNullLogger())
}

// NewWithLogger is New plus an explicit hclog.Logger (SPEC_FULL §10.2),
// mirroring internal/rvm.NewWithLogger's constructor shape.
func NewWithLogger(mod *ast.Module, ctx *analyzer.Context, builtins BuiltinResolver, log hclog.Logger) *Evaluator {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Evaluator{
		mod:      mod,
		ctx:      ctx,
		builtins: builtins,
		input:    value.Null(),
		data:     value.NewObject(nil),
		log:      log,
	}
}

func (e *Evaluator) SetInput(v value.Value) { e.input = v }
func (e *Evaluator) SetData(v value.Value)  { e.data = v }

// SetStrict toggles strict-mode propagation (spec §12: Engine.SetStrict
// must reach both the compiler and the VM; the tree-walk oracle is the
// third evaluator it must reach so differential testing compares like
// against like).
func (e *Evaluator) SetStrict(strict bool) { e.strict = strict }

func (e *Evaluator) errNotFound(kind, name string) error {
	return fmt.Errorf("treewalk: undefined %s %q", kind, name)
}

// evalExpr evaluates a value-producing expression against env, mirroring
// compiler.Compiler.compileExpr's case analysis node for node.
func (e *Evaluator) evalExpr(expr ast.Expr, en *env) (value.Value, error) {
	switch n := expr.(type) {
	case *ast.Var:
		if v, ok := en.lookup(n.Name); ok {
			return v, nil
		}
		switch n.Name {
		case "input":
			return e.input, nil
		case "data":
			return e.data, nil
		}
		return e.evalRuleOrBuiltin(n.Name, nil, en)

	case *ast.NullLit:
		return value.Null(), nil
	case *ast.BoolLit:
		return value.Bool(n.Value), nil
	case *ast.NumberLit:
		num, ok := value.ParseNumber(n.Literal)
		if !ok {
			return value.Undefined(), fmt.Errorf("treewalk: invalid numeric literal %q", n.Literal)
		}
		return value.Num(num), nil
	case *ast.StringLit:
		return value.Str(n.Value), nil

	case *ast.ArrayLit:
		elems := make([]value.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := e.evalExpr(el, en)
			if err != nil {
				return value.Undefined(), err
			}
			elems[i] = v
		}
		return value.NewArray(elems), nil

	case *ast.SetLit:
		elems := make([]value.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := e.evalExpr(el, en)
			if err != nil {
				return value.Undefined(), err
			}
			elems[i] = v
		}
		return value.NewSet(elems), nil

	case *ast.ObjectLit:
		pairs := make([]value.Pair, len(n.Pairs))
		for i, pr := range n.Pairs {
			k, err := e.evalExpr(pr.Key, en)
			if err != nil {
				return value.Undefined(), err
			}
			v, err := e.evalExpr(pr.Value, en)
			if err != nil {
				return value.Undefined(), err
			}
			pairs[i] = value.Pair{Key: k, Value: v}
		}
		return value.NewObject(pairs), nil

	case *ast.ArrayCompr:
		var out []value.Value
		e.solveBody(n.Body, en, func(benv *env) bool {
			v, err := e.evalExpr(n.Term, benv)
			if err == nil {
				out = append(out, v)
			}
			return false
		})
		return value.NewArray(out), nil

	case *ast.SetCompr:
		var out []value.Value
		e.solveBody(n.Body, en, func(benv *env) bool {
			v, err := e.evalExpr(n.Term, benv)
			if err == nil {
				out = append(out, v)
			}
			return false
		})
		return value.NewSet(out), nil

	case *ast.ObjectCompr:
		var pairs []value.Pair
		e.solveBody(n.Body, en, func(benv *env) bool {
			k, err1 := e.evalExpr(n.Key, benv)
			v, err2 := e.evalExpr(n.Value, benv)
			if err1 == nil && err2 == nil {
				pairs = append(pairs, value.Pair{Key: k, Value: v})
			}
			return false
		})
		return value.NewObject(pairs), nil

	case *ast.Ref:
		return e.evalRef(n, en)

	case *ast.Call:
		name, ok := callTargetName(n.Func)
		if !ok {
			return value.Undefined(), fmt.Errorf("treewalk: unsupported call target")
		}
		return e.evalRuleOrBuiltin(name, n.Args, en)

	case *ast.BinaryExpr:
		return e.evalBinary(n, en)

	case *ast.AssignExpr:
		// Only reachable as a nested value expression (body-level assigns
		// go through evalBodyExpr, which threads the resulting env back to
		// the caller); here we can only report the assigned value, not
		// persist the binding, matching compileExpr's own treatment of
		// AssignExpr as a term producing a register rather than a scope
		// mutation.
		return e.evalExpr(n.Value, en)

	case *ast.MembershipExpr:
		return e.evalMembership(n, en)

	default:
		return value.Undefined(), fmt.Errorf("treewalk: unsupported expression %T", expr)
	}
}

func (e *Evaluator) evalRef(n *ast.Ref, en *env) (value.Value, error) {
	cur, err := e.evalExpr(n.Head, en)
	if err != nil {
		return value.Undefined(), err
	}
	for _, t := range n.Terms {
		var key value.Value
		if t.Dot {
			if v, ok := t.Index.(*ast.Var); ok {
				key = value.Str(v.Name)
			} else {
				key, err = e.evalExpr(t.Index, en)
				if err != nil {
					return value.Undefined(), err
				}
			}
		} else {
			key, err = e.evalExpr(t.Index, en)
			if err != nil {
				return value.Undefined(), err
			}
		}
		cur = value.Index(cur, key)
	}
	return cur, nil
}

func callTargetName(expr ast.Expr) (string, bool) {
	switch n := expr.(type) {
	case *ast.Var:
		return n.Name, true
	case *ast.Ref:
		head, ok := n.Head.(*ast.Var)
		if !ok {
			return "", false
		}
		name := head.Name
		for _, t := range n.Terms {
			if !t.Dot {
				return "", false
			}
			v, ok := t.Index.(*ast.Var)
			if !ok {
				return "", false
			}
			name += "." + v.Name
		}
		return name, true
	default:
		return "", false
	}
}

// evalRuleOrBuiltin resolves name against the function table first
// (mirroring compileRuleOrBuiltinRef), then the builtin resolver.
func (e *Evaluator) evalRuleOrBuiltin(name string, args []ast.Expr, en *env) (value.Value, error) {
	argVals := make([]value.Value, len(args))
	for i, a := range args {
		v, err := e.evalExpr(a, en)
		if err != nil {
			return value.Undefined(), err
		}
		argVals[i] = v
	}

	if e.ctx != nil && e.ctx.Functions != nil {
		if entry := e.ctx.Functions.Lookup(name); entry != nil {
			return e.callRule(entry, argVals)
		}
	}

	if e.builtins != nil {
		if idx, ok := e.builtins.Lookup(name); ok {
			v, err := e.builtins.Call(idx, argVals)
			if err != nil {
				if e.strict {
					return value.Undefined(), err
				}
				return value.Undefined(), nil
			}
			return v, nil
		}
	}

	return value.Undefined(), e.errNotFound("rule or builtin", name)
}

func (e *Evaluator) evalBinary(n *ast.BinaryExpr, en *env) (value.Value, error) {
	l, err := e.evalExpr(n.Left, en)
	if err != nil {
		return value.Undefined(), err
	}
	r, err := e.evalExpr(n.Right, en)
	if err != nil {
		return value.Undefined(), err
	}
	switch n.Op {
	case ast.OpAdd:
		return value.Add(l, r)
	case ast.OpSub:
		return value.Sub(l, r)
	case ast.OpMul:
		return value.Mul(l, r)
	case ast.OpDiv:
		return value.Div(l, r)
	case ast.OpMod:
		return value.Mod(l, r)
	case ast.OpEq:
		return value.Bool(value.Equal(l, r)), nil
	case ast.OpNe:
		return value.Bool(!value.Equal(l, r)), nil
	case ast.OpLt:
		return value.Bool(value.Compare(l, r) < 0), nil
	case ast.OpLe:
		return value.Bool(value.Compare(l, r) <= 0), nil
	case ast.OpGt:
		return value.Bool(value.Compare(l, r) > 0), nil
	case ast.OpGe:
		return value.Bool(value.Compare(l, r) >= 0), nil
	case ast.OpAnd:
		return setIntersect(l, r)
	case ast.OpOr:
		return setUnion(l, r)
	default:
		return value.Undefined(), fmt.Errorf("treewalk: unsupported operator %v", n.Op)
	}
}

func setIntersect(a, b value.Value) (value.Value, error) {
	as, ok := a.AsSet()
	if !ok {
		return value.Undefined(), fmt.Errorf("treewalk: & requires sets")
	}
	bs, ok := b.AsSet()
	if !ok {
		return value.Undefined(), fmt.Errorf("treewalk: & requires sets")
	}
	var out []value.Value
	for _, item := range as.Items() {
		if bs.Contains(item) {
			out = append(out, item)
		}
	}
	return value.NewSet(out), nil
}

func setUnion(a, b value.Value) (value.Value, error) {
	as, ok := a.AsSet()
	if !ok {
		return value.Undefined(), fmt.Errorf("treewalk: | requires sets")
	}
	bs, ok := b.AsSet()
	if !ok {
		return value.Undefined(), fmt.Errorf("treewalk: | requires sets")
	}
	out := append([]value.Value{}, as.Items()...)
	out = append(out, bs.Items()...)
	return value.NewSet(out), nil
}

// evalMembership evaluates `[key,] value in collection` as a
// value-producing boolean, mirroring compileMembership's single-shot
// Any-mode loop: true as soon as one element unifies with value.
func (e *Evaluator) evalMembership(n *ast.MembershipExpr, en *env) (value.Value, error) {
	coll, err := e.evalExpr(n.Collection, en)
	if err != nil {
		return value.Undefined(), err
	}
	found := false
	forEachElement(coll, func(key, val value.Value) bool {
		cur := en
		if n.Key != nil {
			if kv, ok := n.Key.(*ast.Var); ok && kv.Name != "_" {
				cur = cur.bind(kv.Name, key)
			}
		}
		cand, err := e.evalExpr(n.Value, cur)
		if err == nil && value.Equal(cand, val) {
			found = true
			return true
		}
		return false
	})
	return value.Bool(found), nil
}

// forEachElement visits an array's (index, element) pairs, a set's
// (element, element) pairs, or an object's (key, value) pairs, stopping
// early when visit returns true.
func forEachElement(coll value.Value, visit func(key, val value.Value) bool) {
	switch coll.Kind() {
	case value.KindArray:
		arr, _ := coll.AsArray()
		for i, v := range arr {
			if visit(value.IntValue(int64(i)), v) {
				return
			}
		}
	case value.KindSet:
		s, _ := coll.AsSet()
		for _, v := range s.Items() {
			if visit(v, v) {
				return
			}
		}
	case value.KindObject:
		o, _ := coll.AsObject()
		for _, p := range o.Pairs() {
			if visit(p.Key, p.Value) {
				return
			}
		}
	}
}
