package analyzer

import (
	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/diag"
)

// BindingPlanKind identifies which destructuring strategy a BindingPlan
// node uses (spec §4.4's binding-plan synthesis).
type BindingPlanKind int

const (
	// BindParameter binds a bare variable to the matched value.
	BindParameter BindingPlanKind = iota
	// BindLiteral requires the matched value to equal a fixed literal,
	// contributing no new binding (e.g. the `0` in `[0, x] := pair`).
	BindLiteral
	// BindArray destructures an array pattern element-by-element.
	BindArray
	// BindObject destructures an object pattern key-by-key.
	BindObject
	// BindFunctionOut binds the trailing "output" parameter of a
	// function-call pattern (`f(a, b, out)`), which receives the
	// callee's return value rather than matching against it.
	BindFunctionOut
)

// BindingPlan is a node of the tree synthesized from a destructuring
// pattern (the left-hand side of `:=`/`=`, a `some`-declared variable
// list, or a function rule's formal parameters). The compiler walks a
// BindingPlan alongside the matched Value to emit the register moves,
// comparisons, and nested-match branches that implement it.
type BindingPlan struct {
	Kind     BindingPlanKind
	Span     ast.Node
	VarName  string        // BindParameter
	Literal  ast.Expr      // BindLiteral
	Elements []*BindingPlan // BindArray
	Keys     []ast.Expr     // BindObject, parallel to Values
	Values   []*BindingPlan // BindObject, parallel to Keys
	Call     *ast.Call      // BindFunctionOut: the call whose result feeds Out
	Out      *BindingPlan   // BindFunctionOut
}

// BindingPlanPass synthesizes a BindingPlan for every pattern position
// in the module: each rule's function parameters, and the left-hand
// side of every `:=`/unify expression and `some`/`every` binder found
// in a rule body. Plans are recorded in ctx.Bindings keyed by the
// owning *ast.Rule, in body order (function-parameter plans, if any,
// come first).
type BindingPlanPass struct{}

func (BindingPlanPass) Name() string { return "binding-plan" }

func (p BindingPlanPass) Run(mod *ast.Module, ctx *Context) error {
	for _, rule := range mod.Rules {
		s := newBindingScope()
		var plans []*BindingPlan

		if fh, ok := rule.Head.(*ast.FunctionRuleHead); ok {
			for _, param := range fh.Params {
				plan, err := synthesize(param, s, ctx, true)
				if err != nil {
					continue
				}
				plans = append(plans, plan)
			}
		}

		for _, lit := range rule.Body {
			plans = append(plans, synthesizeLiteralBindings(lit, s, ctx)...)
		}

		ctx.Bindings[rule] = plans
	}
	return nil
}

// bindingScope tracks which variable names are already bound within
// the rule currently being analyzed, to detect VariableAlreadyDefined
// (re-binding a variable with a second `:=` in the same body, which
// this language treats as an error rather than a unification test —
// unlike `=`, which unifies against an existing binding).
type bindingScope struct {
	declared map[string]bool
}

func newBindingScope() *bindingScope { return &bindingScope{declared: make(map[string]bool)} }

func (s *bindingScope) declare(name string) bool {
	if name == "_" {
		return true // the wildcard never conflicts
	}
	if s.declared[name] {
		return false
	}
	s.declared[name] = true
	return true
}

func synthesizeLiteralBindings(lit ast.Literal, s *bindingScope, ctx *Context) []*BindingPlan {
	var plans []*BindingPlan
	switch l := lit.(type) {
	case *ast.ExprLiteral:
		if target := assignTarget(l.Expr); target != nil {
			if plan, err := synthesize(target, s, ctx, true); err == nil {
				plans = append(plans, plan)
			}
		}
	case *ast.SomeVarsLiteral:
		for _, v := range l.Vars {
			if !s.declare(v.Name) {
				ctx.errorf(diag.KindVariableRebind, v, "variable %q already defined in this rule", v.Name)
				continue
			}
			plans = append(plans, &BindingPlan{Kind: BindParameter, Span: v, VarName: v.Name})
		}
	case *ast.SomeInLiteral:
		if l.Key != nil {
			if plan, err := synthesize(l.Key, s, ctx, true); err == nil {
				plans = append(plans, plan)
			}
		}
		if plan, err := synthesize(l.Value, s, ctx, true); err == nil {
			plans = append(plans, plan)
		}
	case *ast.EveryLiteral:
		inner := newBindingScope() // every-body introduces its own scope
		if l.Key != nil {
			if plan, err := synthesize(l.Key, inner, ctx, true); err == nil {
				plans = append(plans, plan)
			}
		}
		if plan, err := synthesize(l.Value, inner, ctx, true); err == nil {
			plans = append(plans, plan)
		}
		for _, b := range l.Body {
			plans = append(plans, synthesizeLiteralBindings(b, inner, ctx)...)
		}
	}
	return plans
}

// assignTarget extracts the pattern (LHS) of a top-level binding
// expression, or nil if expr is a plain boolean test rather than a
// binding (e.g. `input.x > 0` has no binding target).
func assignTarget(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.AssignExpr:
		return n.Target
	case *ast.BinaryExpr:
		if n.Op == ast.OpUnify {
			return n.Left
		}
	}
	return nil
}

// synthesize builds a BindingPlan for a single pattern expression.
// declaring controls whether encountering a fresh Var introduces a new
// binding (true, the `:=`/`some` case) or merely matches an existing
// one (false, reserved for nested contexts that only ever re-match).
func synthesize(pattern ast.Expr, s *bindingScope, ctx *Context, declaring bool) (*BindingPlan, error) {
	switch p := pattern.(type) {
	case *ast.Var:
		if declaring {
			if !s.declare(p.Name) {
				ctx.errorf(diag.KindVariableRebind, p, "variable %q already defined in this rule", p.Name)
				return nil, errRebind
			}
		}
		return &BindingPlan{Kind: BindParameter, Span: p, VarName: p.Name}, nil

	case *ast.ArrayLit:
		elems := make([]*BindingPlan, 0, len(p.Elems))
		for _, el := range p.Elems {
			ep, err := synthesize(el, s, ctx, declaring)
			if err != nil {
				continue
			}
			elems = append(elems, ep)
		}
		return &BindingPlan{Kind: BindArray, Span: p, Elements: elems}, nil

	case *ast.ObjectLit:
		keys := make([]ast.Expr, 0, len(p.Pairs))
		vals := make([]*BindingPlan, 0, len(p.Pairs))
		for _, pr := range p.Pairs {
			vp, err := synthesize(pr.Value, s, ctx, declaring)
			if err != nil {
				continue
			}
			keys = append(keys, pr.Key)
			vals = append(vals, vp)
		}
		return &BindingPlan{Kind: BindObject, Span: p, Keys: keys, Values: vals}, nil

	case *ast.Call:
		// A call used as a pattern (`f(a, out)`) binds its trailing
		// argument as the call's result. A call with no arguments is
		// rejected; default rules are not checked here, so a default
		// rule whose value is a reference pattern is not rejected.
		if len(p.Args) == 0 {
			return nil, errUnsupportedPattern(ctx, p)
		}
		outArg := p.Args[len(p.Args)-1]
		out, err := synthesize(outArg, s, ctx, declaring)
		if err != nil {
			return nil, err
		}
		call := ast.NewCall(p.Span(), p.Func, p.Args[:len(p.Args)-1])
		return &BindingPlan{Kind: BindFunctionOut, Span: p, Call: call, Out: out}, nil

	case *ast.NullLit, *ast.BoolLit, *ast.NumberLit, *ast.StringLit:
		return &BindingPlan{Kind: BindLiteral, Span: p, Literal: p}, nil

	default:
		// Anything else (refs into input/data, arithmetic, etc.) is a
		// value-producing expression being matched, not destructured —
		// treat it as a literal-equality test against its runtime value.
		return &BindingPlan{Kind: BindLiteral, Span: p, Literal: p}, nil
	}
}

var errRebind = &bindingError{"variable already defined"}

type bindingError struct{ msg string }

func (e *bindingError) Error() string { return e.msg }

func errUnsupportedPattern(ctx *Context, p ast.Node) error {
	ctx.errorf(diag.KindUnsupportedPattern, p, "unsupported destructuring pattern")
	return &bindingError{"unsupported pattern"}
}
