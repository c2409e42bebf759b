package analyzer

import (
	"sort"

	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/diag"
)

// RuleGraph is the dependency graph over rule names (spec §4.3): an
// edge name -> dep means some rule defining `name` reads the document
// produced by `dep`. Order is the topologically-sorted evaluation
// order the scheduler hands to the compiler; Cycles lists every
// strongly-connected component of size > 1, and every single rule that
// depends on itself (recursion, mutual or direct, is rejected, matching
// this language's stratification requirement).
type RuleGraph struct {
	edges   map[string]map[string]bool
	Order   []string
	Cycles  [][]string
}

func newRuleGraph(names []string) *RuleGraph {
	edges := make(map[string]map[string]bool, len(names))
	for _, n := range names {
		edges[n] = make(map[string]bool)
	}
	return &RuleGraph{edges: edges}
}

func (g *RuleGraph) addEdge(from, to string) {
	if _, ok := g.edges[from]; ok {
		g.edges[from][to] = true
	}
}

// Dependencies returns the set of rule names that `name` reads from.
func (g *RuleGraph) Dependencies(name string) []string {
	deps := make([]string, 0, len(g.edges[name]))
	for d := range g.edges[name] {
		deps = append(deps, d)
	}
	sort.Strings(deps)
	return deps
}

// RuleGraphPass builds the RuleGraph from the FunctionTable (which
// must already be populated) and reports cycles.
type RuleGraphPass struct{}

func (RuleGraphPass) Name() string { return "rule-graph" }

func (p RuleGraphPass) Run(mod *ast.Module, ctx *Context) error {
	if ctx.Functions == nil {
		return nil
	}
	names := ctx.Functions.Names()
	g := newRuleGraph(names)

	for _, name := range names {
		entry := ctx.Functions.Lookup(name)
		deps := make(map[string]bool)
		for _, r := range entry.Rules {
			collectRuleDependencies(r, ctx.Functions, deps)
		}
		for dep := range deps {
			g.addEdge(name, dep)
		}
	}

	order, cycles := tarjanSCC(g)
	g.Order = order
	g.Cycles = cycles
	ctx.Graph = g

	for _, scc := range cycles {
		sort.Strings(scc)
		ctx.Diagnostics = append(ctx.Diagnostics, diag.Diagnostic{
			Severity: diag.SeverityError,
			Kind:     diag.KindCycle,
			Message:  "recursive rule dependency: " + joinNames(scc),
		})
	}
	return nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " -> "
		}
		out += n
	}
	return out
}

// collectRuleDependencies walks one rule's head and body, recording
// every other declared rule name it references into deps.
func collectRuleDependencies(r *ast.Rule, funcs *FunctionTable, deps map[string]bool) {
	selfName, _, _ := ruleIdentity(r.Head)
	walkHeadExprs(r.Head, func(e ast.Expr) { collectExprDeps(e, funcs, selfName, deps) })
	for _, lit := range r.Body {
		collectLiteralDeps(lit, funcs, selfName, deps)
	}
	if r.Else != nil {
		collectRuleDependencies(r.Else, funcs, deps)
	}
}

func walkHeadExprs(head ast.RuleHead, visit func(ast.Expr)) {
	switch h := head.(type) {
	case *ast.CompleteRuleHead:
		visit(h.Value)
	case *ast.PartialSetRuleHead:
		visit(h.Key)
	case *ast.PartialObjectRuleHead:
		visit(h.Key)
		visit(h.Value)
	case *ast.FunctionRuleHead:
		for _, p := range h.Params {
			visit(p)
		}
		visit(h.Value)
	}
}

func collectLiteralDeps(lit ast.Literal, funcs *FunctionTable, self string, deps map[string]bool) {
	switch l := lit.(type) {
	case *ast.ExprLiteral:
		collectExprDeps(l.Expr, funcs, self, deps)
		collectWithDeps(l.With, funcs, self, deps)
	case *ast.NotLiteral:
		collectExprDeps(l.Expr, funcs, self, deps)
		collectWithDeps(l.With, funcs, self, deps)
	case *ast.SomeVarsLiteral:
		// no references: a pure declaration
	case *ast.SomeInLiteral:
		collectExprDeps(l.Collection, funcs, self, deps)
	case *ast.EveryLiteral:
		collectExprDeps(l.Collection, funcs, self, deps)
		for _, b := range l.Body {
			collectLiteralDeps(b, funcs, self, deps)
		}
	}
}

func collectWithDeps(mods []ast.WithModifier, funcs *FunctionTable, self string, deps map[string]bool) {
	for _, m := range mods {
		collectExprDeps(m.Value, funcs, self, deps)
	}
}

// collectExprDeps records, into deps, every rule name that expr's
// Var/Ref/Call nodes reference, the rule's own name included (so a
// self-reference shows up as a cycle). This is a
// name-based approximation: a local variable that happens to share a
// rule's name is indistinguishable from a genuine reference to that
// rule's document, so shadowing by `some`/function parameters is not
// tracked here — acceptable because the compiler's scope stack (not
// this graph) is what actually resolves a given occurrence, and a
// spurious extra dependency edge only risks an overly conservative
// evaluation order, never an incorrect one.
func collectExprDeps(e ast.Expr, funcs *FunctionTable, self string, deps map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Var:
		if funcs.Lookup(n.Name) != nil {
			deps[n.Name] = true
		}
	case *ast.Ref:
		collectExprDeps(n.Head, funcs, self, deps)
		for _, t := range n.Terms {
			if !t.Dot {
				collectExprDeps(t.Index, funcs, self, deps)
			}
		}
	case *ast.Call:
		collectExprDeps(n.Func, funcs, self, deps)
		for _, a := range n.Args {
			collectExprDeps(a, funcs, self, deps)
		}
	case *ast.BinaryExpr:
		collectExprDeps(n.Left, funcs, self, deps)
		collectExprDeps(n.Right, funcs, self, deps)
	case *ast.AssignExpr:
		collectExprDeps(n.Target, funcs, self, deps)
		collectExprDeps(n.Value, funcs, self, deps)
	case *ast.MembershipExpr:
		if n.Key != nil {
			collectExprDeps(n.Key, funcs, self, deps)
		}
		collectExprDeps(n.Value, funcs, self, deps)
		collectExprDeps(n.Collection, funcs, self, deps)
	case *ast.ArrayLit:
		for _, el := range n.Elems {
			collectExprDeps(el, funcs, self, deps)
		}
	case *ast.SetLit:
		for _, el := range n.Elems {
			collectExprDeps(el, funcs, self, deps)
		}
	case *ast.ObjectLit:
		for _, pr := range n.Pairs {
			collectExprDeps(pr.Key, funcs, self, deps)
			collectExprDeps(pr.Value, funcs, self, deps)
		}
	case *ast.ArrayCompr:
		collectExprDeps(n.Term, funcs, self, deps)
		for _, b := range n.Body {
			collectLiteralDeps(b, funcs, self, deps)
		}
	case *ast.SetCompr:
		collectExprDeps(n.Term, funcs, self, deps)
		for _, b := range n.Body {
			collectLiteralDeps(b, funcs, self, deps)
		}
	case *ast.ObjectCompr:
		collectExprDeps(n.Key, funcs, self, deps)
		collectExprDeps(n.Value, funcs, self, deps)
		for _, b := range n.Body {
			collectLiteralDeps(b, funcs, self, deps)
		}
	}
}

// tarjanSCC computes strongly-connected components and returns a
// topological order of rule names (one SCC's members grouped
// consecutively) plus the list of SCCs that represent illegal
// recursion (size > 1, or a single node with a self-loop).
func tarjanSCC(g *RuleGraph) (order []string, cycles [][]string) {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var sccs [][]string

	names := make([]string, 0, len(g.edges))
	for n := range g.edges {
		names = append(names, n)
	}
	sort.Strings(names) // deterministic iteration, matching §5's determinism guarantee

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		deps := g.Dependencies(v)
		for _, w := range deps {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range names {
		if _, seen := indices[n]; !seen {
			strongconnect(n)
		}
	}

	// A component closes only once every component it depends on (via
	// our "name depends on dep" edge direction) has already closed, so
	// the closing order sccs was built in already has dependencies
	// before dependents.
	for _, scc := range sccs {
		order = append(order, scc...)
		if len(scc) > 1 || selfLoop(g, scc[0]) {
			cycles = append(cycles, scc)
		}
	}
	return order, cycles
}

func selfLoop(g *RuleGraph, name string) bool {
	return g.edges[name][name]
}
