package compiler

import (
	"fmt"

	"github.com/corepolicy/rvm/internal/analyzer"
	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/diag"
	"github.com/corepolicy/rvm/internal/source"
	"github.com/corepolicy/rvm/internal/value"
)

// BuiltinResolver maps a builtin name to its registered index, letting
// the compiler emit OpCallBuiltin without depending on internal/builtin
// (which itself depends on value, not on compiler).
type BuiltinResolver interface {
	Lookup(name string) (index int, ok bool)
}

// Compiler lowers one analyzed module into a Program. It is not
// reentrant: create a fresh Compiler per module.
type Compiler struct {
	mod     *ast.Module
	ctx     *analyzer.Context
	prog    *Program
	builtin BuiltinResolver

	diags []diag.Diagnostic

	// ruleIndex maps a "name/arity" key to its RuleInfo slot, populated
	// once up front so forward references between rules resolve.
	ruleIndex map[string]int

	// per-rule compilation state, reset by compileRule
	regs  *registerAllocator
	scope *varScope
}

// New returns a Compiler ready to lower mod using the passes already
// recorded in ctx (spec §4.3/§4.4: the compiler consumes, rather than
// repeats, the analyzer's function table, rule graph and binding plans).
func New(mod *ast.Module, ctx *analyzer.Context, builtins BuiltinResolver) *Compiler {
	return &Compiler{mod: mod, ctx: ctx, prog: NewProgram(), builtin: builtins}
}

func (c *Compiler) Diagnostics() []diag.Diagnostic { return c.diags }

func (c *Compiler) errorf(kind diag.Kind, span ast.Node, format string, args ...interface{}) {
	c.diags = append(c.diags, diag.Diagnostic{
		Severity: diag.SeverityError,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Span:     span.Span(),
	})
}

// Compile lowers the whole module in the rule graph's scheduled order
// (spec §4.3's stratification: dependencies compiled, and therefore
// addressable by RuleInfo index, before their dependents), and returns
// the finished Program. Callers should check Diagnostics() first.
func Compile(mod *ast.Module, ctx *analyzer.Context, builtins BuiltinResolver) (*Program, []diag.Diagnostic) {
	c := New(mod, ctx, builtins)
	c.compileModule()
	return c.prog, c.diags
}

func (c *Compiler) compileModule() {
	if ctx := c.ctx; ctx != nil && ctx.HasErrors() {
		c.diags = append(c.diags, ctx.Diagnostics...)
		return
	}

	order := c.evaluationOrder()
	rulesByName := make(map[string][]*ast.Rule, len(order))
	for _, r := range c.mod.Rules {
		name, _, _ := c.headIdentity(r.Head)
		rulesByName[name] = append(rulesByName[name], r)
	}

	// Reserve a RuleInfo slot per (name, arity) up front so forward
	// references (a rule compiled earlier in evaluation order calling
	// one compiled later) can still resolve a CallInfo.RuleIndex.
	ruleIndex := make(map[string]int)
	for _, name := range order {
		for _, r := range rulesByName[name] {
			key := ruleKey(r.Head)
			if _, ok := ruleIndex[key]; ok {
				continue
			}
			idx := len(c.prog.Rules)
			c.prog.Rules = append(c.prog.Rules, RuleInfo{Name: name, Span: r.Head.Span()})
			ruleIndex[key] = idx
			c.prog.EntryPoints[key] = idx
		}
	}
	c.ruleIndex = ruleIndex

	for _, name := range order {
		for _, r := range rulesByName[name] {
			c.compileRule(r)
		}
	}
}

func ruleKey(h ast.RuleHead) string {
	name, _, arity := identityOf(h)
	return fmt.Sprintf("%s/%d", name, arity)
}

func identityOf(h ast.RuleHead) (name string, isFunc bool, arity int) {
	switch hh := h.(type) {
	case *ast.CompleteRuleHead:
		return hh.Name, false, 0
	case *ast.PartialSetRuleHead:
		return hh.Name, false, 0
	case *ast.PartialObjectRuleHead:
		return hh.Name, false, 0
	case *ast.FunctionRuleHead:
		return hh.Name, true, len(hh.Params)
	default:
		return "", false, 0
	}
}

func (c *Compiler) headIdentity(h ast.RuleHead) (name string, isFunc bool, arity int) {
	return identityOf(h)
}

func headKind(h ast.RuleHead) RuleKind {
	switch h.(type) {
	case *ast.PartialSetRuleHead:
		return RulePartialSet
	case *ast.PartialObjectRuleHead:
		return RulePartialObject
	case *ast.FunctionRuleHead:
		return RuleFunction
	default:
		return RuleComplete
	}
}

// evaluationOrder returns the rule graph's topological order when
// available, else the module's declaration order (e.g. when Analyze
// was never run — Compile uses whatever ctx its caller passes, which
// may be nil or lack a Graph).
func (c *Compiler) evaluationOrder() []string {
	if c.ctx != nil && c.ctx.Graph != nil && len(c.ctx.Graph.Order) > 0 {
		return c.ctx.Graph.Order
	}
	seen := make(map[string]bool)
	var order []string
	for _, r := range c.mod.Rules {
		name, _, _ := c.headIdentity(r.Head)
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	return order
}

// registerAllocator hands out fresh registers within a single rule
// frame, enforcing the 255-register ceiling the 8-bit A/Bhi/Blo fields
// impose (spec §6.4).
type registerAllocator struct {
	next     byte
	high     byte
	overflow bool
}

func newRegisterAllocator() *registerAllocator { return &registerAllocator{} }

func (a *registerAllocator) alloc() byte {
	r := a.next
	if r == NoRegister {
		a.overflow = true
		return r
	}
	a.next++
	if a.next > a.high {
		a.high = a.next
	}
	return r
}

// varScope binds a source-level variable name to the register holding
// its current value within the rule being compiled. Nested scopes
// (every-loop bodies, comprehension bodies) push a child that falls
// back to its parent for names it doesn't itself declare.
type varScope struct {
	parent *varScope
	vars   map[string]byte
}

func newVarScope(parent *varScope) *varScope {
	return &varScope{parent: parent, vars: make(map[string]byte)}
}

func (s *varScope) bind(name string, reg byte) { s.vars[name] = reg }

func (s *varScope) lookup(name string) (byte, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if r, ok := sc.vars[name]; ok {
			return r, true
		}
	}
	return 0, false
}

// compileRule lowers one rule's body and head into its RuleInfo's
// instruction range. Undefined body literals unwind the rule (no
// result is produced, matching spec §4.5); a successful body falls
// through into the head's value/key production and an OpRuleReturn.
func (c *Compiler) compileRule(r *ast.Rule) {
	key := ruleKey(r.Head)
	idx, ok := c.ruleIndex[key]
	if !ok {
		return
	}

	c.regs = newRegisterAllocator()
	c.scope = newVarScope(nil)
	entry := len(c.prog.Instructions)

	if fh, isFunc := r.Head.(*ast.FunctionRuleHead); isFunc {
		for _, param := range fh.Params {
			c.bindParamRegister(param)
		}
	}

	c.compileBody(r.Body, func() {
		valueReg := c.compileHeadValue(r.Head)
		c.prog.emit(NewA(OpRuleReturn, valueReg), r.Head.Span())
	})

	if c.regs.overflow {
		c.errorf(diag.KindRegisterOverflow, r.Head, "rule %s needs more than 255 registers", key)
	}

	info := &c.prog.Rules[idx]
	info.EntryPC = entry
	info.EndPC = len(c.prog.Instructions)
	_, _, arity := identityOf(r.Head)
	info.Arity = arity
	info.NumParams = arity
	info.NumRegs = int(c.regs.high)
	info.Kind = headKind(r.Head)

	if r.Else != nil {
		c.compileRule(r.Else)
	}
}

// bindParamRegister allocates a register for a function parameter and,
// when the parameter is itself a destructuring pattern rather than a
// bare variable, lowers its match against that register.
func (c *Compiler) bindParamRegister(param ast.Expr) {
	reg := c.regs.alloc()
	if v, ok := param.(*ast.Var); ok {
		c.scope.bind(v.Name, reg)
		return
	}
	c.compileDestructure(param, reg)
}

// compileHeadValue produces the register holding the rule's produced
// document value (Bool(true) for a condition-only complete rule, the
// declared Value expression otherwise, or the key/value pair registers
// for partial rules — those are folded into the enclosing document by
// the engine's incremental-merge step, not by a single OpRuleReturn
// register, so only the "primary" register is returned here).
func (c *Compiler) compileHeadValue(h ast.RuleHead) byte {
	switch hh := h.(type) {
	case *ast.CompleteRuleHead:
		return c.compileExpr(hh.Value)
	case *ast.PartialSetRuleHead:
		return c.compileExpr(hh.Key)
	case *ast.PartialObjectRuleHead:
		kreg := c.compileExpr(hh.Key)
		vreg := c.compileExpr(hh.Value)
		dest := c.regs.alloc()
		c.prog.emit(NewAB(OpObjectNew, dest, 0), hh.Span())
		idx := c.prog.addObjectSetInfo(ObjectSetInfo{KeyReg: kreg, ValueReg: vreg})
		c.prog.emit(NewA16(OpObjectSet, dest, idx), hh.Span())
		return dest
	case *ast.FunctionRuleHead:
		return c.compileExpr(hh.Value)
	default:
		dest := c.regs.alloc()
		c.prog.emit(NewAB(OpLoadBoolTrue, dest, 0), h.Span())
		return dest
	}
}

func (c *Compiler) compileLiteral(lit ast.Literal) {
	switch l := lit.(type) {
	case *ast.ExprLiteral:
		c.compileBodyExpr(l.Expr, l.Span())
	case *ast.NotLiteral:
		inner := c.compileExpr(l.Expr)
		negated := c.regs.alloc()
		c.prog.emit(NewAB(OpNot, negated, inner), l.Span())
		c.prog.emit(NewA(OpAssertTrue, negated), l.Span())
	case *ast.SomeVarsLiteral:
		for _, v := range l.Vars {
			reg := c.regs.alloc()
			c.prog.emit(NewAB(OpLoadUndef, reg, 0), v.Span())
			c.scope.bind(v.Name, reg)
		}
	case *ast.SomeInLiteral:
		// compileBody intercepts SomeInLiteral before it ever reaches
		// compileLiteral (it needs to open a generator loop around the
		// rest of the body, not just this one statement) — reaching
		// here would mean a SomeInLiteral surfaced somewhere compileBody
		// didn't scan.
		panic("compiler: SomeInLiteral reached compileLiteral outside compileBody")
	case *ast.EveryLiteral:
		c.compileEvery(l)
	}
}

// compileBody compiles body[0:] in sequence, invoking onDone once every
// literal has been satisfied. A SomeInLiteral encountered along the way
// is not a self-contained statement: it opens a generator loop whose
// body is everything AFTER it (and, transitively, onDone), giving
// `some value in collection` existential scope over the rest of the
// rule body rather than just its own statement — matching how this
// language lets a `some`-bound variable feed later literals and the
// rule head.
func (c *Compiler) compileBody(body []ast.Literal, onDone func()) {
	for i, lit := range body {
		if sl, ok := lit.(*ast.SomeInLiteral); ok {
			c.emitGeneratorLoop(sl.Key, sl.Value, sl.Collection, body[i+1:], onDone)
			return
		}
		c.compileLiteral(lit)
	}
	onDone()
}

// emitGeneratorLoop iterates collExpr, binding key/value for each
// element and compiling rest (the remainder of the enclosing body) once
// per element — a ForEach-mode loop whose per-element continuation is
// itself a compileBody call, so a second `some ... in ...` further
// along rest nests correctly.
func (c *Compiler) emitGeneratorLoop(keyExpr, valExpr, collExpr ast.Expr, rest []ast.Literal, onDone func()) {
	collReg := c.compileExpr(collExpr)

	parent := c.scope
	c.scope = newVarScope(parent)

	keyReg := NoRegister
	if keyExpr != nil {
		if kv, ok := keyExpr.(*ast.Var); ok && kv.Name != "_" {
			r := c.regs.alloc()
			c.scope.bind(kv.Name, r)
			keyReg = r
		}
	}
	valReg := c.regs.alloc()
	if vv, ok := valExpr.(*ast.Var); ok && vv.Name != "_" {
		c.scope.bind(vv.Name, valReg)
	} else {
		c.compileDestructure(valExpr, valReg)
	}

	li := LoopInfo{Collection: collReg, KeyReg: keyReg, ValueReg: valReg, Mode: LoopForEach, ResultReg: NoRegister}
	idx := c.prog.addLoopInfo(li)
	startPC := c.prog.emit(NewA16(OpLoopStart, 0, idx), collExpr.Span())

	c.compileBody(rest, onDone)

	c.prog.emit(NewA16(OpLoopNext, 0, idx), collExpr.Span())
	endPC := len(c.prog.Instructions)
	c.prog.LoopInfos[idx].BodyPC = startPC + 1
	c.prog.LoopInfos[idx].EndPC = endPC

	// Bindings introduced by this generator (key/value, and anything
	// rest bound within the loop) do not escape past the loop: the
	// caller (compileBody's earlier frame) keeps whatever scope it had
	// before emitGeneratorLoop was entered, same as every other nested
	// scope in this compiler.
	c.scope = parent
}

// compileBodyExpr lowers one non-declarative body expression. An
// AssignExpr or top-level OpUnify BinaryExpr is a binding: evaluate the
// right-hand side and destructure it against the left; anything else is
// a boolean test asserted true (spec §4.5's AssertCondition), except a
// reference/call whose value might legitimately be Undefined, which
// first asserts non-undefined (spec §4.5's AssertNonUndefined) and then
// also asserts Bool(true), so that "referencing an undefined document
// fails the body" works uniformly for any reference.
func (c *Compiler) compileBodyExpr(e ast.Expr, span source.Span) {
	switch n := e.(type) {
	case *ast.AssignExpr:
		vreg := c.compileExpr(n.Value)
		c.compileDestructure(n.Target, vreg)
		return
	case *ast.BinaryExpr:
		if n.Op == ast.OpUnify {
			vreg := c.compileExpr(n.Right)
			c.compileDestructure(n.Left, vreg)
			return
		}
	}
	reg := c.compileExpr(e)
	if isBooleanTest(e) {
		c.prog.emit(NewA(OpAssertTrue, reg), span)
	} else {
		c.prog.emit(NewA(OpAssertDefined, reg), span)
		c.prog.emit(NewA(OpAssertTrue, reg), span)
	}
}

// isBooleanTest reports whether e's static shape guarantees a Bool
// result (comparisons, boolean literals, negation-as-call), as opposed
// to a reference/call whose result is the raw document/return value and
// must additionally be checked Bool(true) by an AssertTrue that also
// implies definedness.
func isBooleanTest(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		switch n.Op {
		case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
			return true
		}
	case *ast.BoolLit:
		return true
	case *ast.MembershipExpr:
		return true
	}
	return false
}

// compileDestructure lowers a pattern match against the value already
// held in valueReg: a bare Var simply binds, a literal (or any other
// value-producing expression) emits an OpEq followed by an OpAssertTrue,
// and array/object patterns
// recursively index into valueReg per element/key.
func (c *Compiler) compileDestructure(pattern ast.Expr, valueReg byte) {
	switch p := pattern.(type) {
	case *ast.Var:
		if p.Name == "_" {
			return
		}
		c.scope.bind(p.Name, valueReg)

	case *ast.ArrayLit:
		for i, el := range p.Elems {
			idxReg := c.loadConst(value.IntValue(int64(i)), p.Span())
			elemReg := c.regs.alloc()
			c.prog.emit(NewABC(OpIndex, elemReg, valueReg, idxReg), el.Span())
			c.compileDestructure(el, elemReg)
		}

	case *ast.ObjectLit:
		for _, pr := range p.Pairs {
			keyReg := c.compileExpr(pr.Key)
			valReg := c.regs.alloc()
			c.prog.emit(NewABC(OpIndex, valReg, valueReg, keyReg), pr.Span())
			c.compileDestructure(pr.Value, valReg)
		}

	case *ast.Call:
		if len(p.Args) == 0 {
			return
		}
		out := p.Args[len(p.Args)-1]
		call := ast.NewCall(p.Span(), p.Func, p.Args[:len(p.Args)-1])
		callReg := c.compileCall(call)
		c.compileDestructure(out, callReg)
		// The matched valueReg (the function's actual return) must equal
		// the call's computed result for the binding to hold.
		c.prog.emit(NewA(OpAssertTrue, c.emitEq(valueReg, callReg, p.Span())), p.Span())

	default:
		lit := c.compileExpr(pattern)
		c.prog.emit(NewA(OpAssertTrue, c.emitEq(valueReg, lit, pattern.Span())), pattern.Span())
	}
}

func (c *Compiler) emitEq(a, b byte, span source.Span) byte {
	dest := c.regs.alloc()
	c.prog.emit(NewABC(OpEq, dest, a, b), span)
	return dest
}

// compileEvery lowers `every [key,] value in collection { body }` as an
// Every-mode loop: every element must satisfy body, short-circuiting on
// the first failure (spec §4.4). body's own generator literals (a
// nested `some ... in ...`) get the same existential scoping as a rule
// body via compileBody.
func (c *Compiler) compileEvery(l *ast.EveryLiteral) {
	collReg := c.compileExpr(l.Collection)

	parent := c.scope
	c.scope = newVarScope(parent)

	keyReg := NoRegister
	if l.Key != nil {
		if kv, ok := l.Key.(*ast.Var); ok && kv.Name != "_" {
			r := c.regs.alloc()
			c.scope.bind(kv.Name, r)
			keyReg = r
		}
	}
	valReg := c.regs.alloc()
	if vv, ok := l.Value.(*ast.Var); ok && vv.Name != "_" {
		c.scope.bind(vv.Name, valReg)
	}

	li := LoopInfo{Collection: collReg, KeyReg: keyReg, ValueReg: valReg, Mode: LoopEvery, ResultReg: NoRegister}
	idx := c.prog.addLoopInfo(li)
	startPC := c.prog.emit(NewA16(OpLoopStart, 0, idx), l.Collection.Span())

	c.compileBody(l.Body, func() {})

	c.prog.emit(NewA16(OpLoopNext, 0, idx), l.Collection.Span())
	endPC := len(c.prog.Instructions)
	c.prog.LoopInfos[idx].BodyPC = startPC + 1
	c.prog.LoopInfos[idx].EndPC = endPC

	c.scope = parent
}

// compileExpr lowers a value-producing expression into a fresh (or
// reused, for a bare Var) register holding its result.
func (c *Compiler) compileExpr(e ast.Expr) byte {
	switch n := e.(type) {
	case *ast.Var:
		if r, ok := c.scope.lookup(n.Name); ok {
			return r
		}
		// `input`/`data` are not rule references: every module reads the
		// same live documents the host installed (set_input/add_data),
		// so they load via dedicated opcodes (spec §6.4) instead of
		// going through rule/builtin resolution.
		switch n.Name {
		case "input":
			dest := c.regs.alloc()
			c.prog.emit(NewAB(OpLoadInput, dest, 0), n.Span())
			return dest
		case "data":
			dest := c.regs.alloc()
			c.prog.emit(NewAB(OpLoadData, dest, 0), n.Span())
			return dest
		}
		// An unbound reference to a top-level rule name is a zero-arg
		// document lookup (spec §4.1: bare names resolve to rule
		// documents when not locally bound).
		return c.compileRuleOrBuiltinRef(n.Name, nil, n)

	case *ast.NullLit:
		dest := c.regs.alloc()
		c.prog.emit(NewAB(OpLoadNull, dest, 0), n.Span())
		return dest

	case *ast.BoolLit:
		dest := c.regs.alloc()
		if n.Value {
			c.prog.emit(NewAB(OpLoadBoolTrue, dest, 0), n.Span())
		} else {
			c.prog.emit(NewAB(OpLoadBoolFalse, dest, 0), n.Span())
		}
		return dest

	case *ast.NumberLit:
		num, ok := value.ParseNumber(n.Literal)
		if !ok {
			c.errorf(diag.KindRuntime, n, "invalid numeric literal %q", n.Literal)
			num, _ = value.ParseNumber("0")
		}
		return c.loadConst(value.Num(num), n.Span())

	case *ast.StringLit:
		return c.loadConst(value.Str(n.Value), n.Span())

	case *ast.ArrayLit:
		dest := c.regs.alloc()
		c.prog.emit(NewAB(OpArrayNew, dest, 0), n.Span())
		for _, el := range n.Elems {
			vreg := c.compileExpr(el)
			c.prog.emit(NewABC(OpArrayAppend, 0, dest, vreg), el.Span())
		}
		return dest

	case *ast.SetLit:
		dest := c.regs.alloc()
		c.prog.emit(NewAB(OpSetNew, dest, 0), n.Span())
		for _, el := range n.Elems {
			vreg := c.compileExpr(el)
			c.prog.emit(NewABC(OpSetAdd, 0, dest, vreg), el.Span())
		}
		return dest

	case *ast.ObjectLit:
		dest := c.regs.alloc()
		c.prog.emit(NewAB(OpObjectNew, dest, 0), n.Span())
		for _, pr := range n.Pairs {
			kreg := c.compileExpr(pr.Key)
			vreg := c.compileExpr(pr.Value)
			idx := c.prog.addObjectSetInfo(ObjectSetInfo{KeyReg: kreg, ValueReg: vreg})
			c.prog.emit(NewA16(OpObjectSet, dest, idx), pr.Value.Span())
		}
		return dest

	case *ast.ArrayCompr:
		return c.compileArrayCompr(n)
	case *ast.SetCompr:
		return c.compileSetCompr(n)
	case *ast.ObjectCompr:
		return c.compileObjectCompr(n)

	case *ast.Ref:
		return c.compileRef(n)
	case *ast.Call:
		return c.compileCall(n)

	case *ast.BinaryExpr:
		return c.compileBinary(n)
	case *ast.AssignExpr:
		vreg := c.compileExpr(n.Value)
		c.compileDestructure(n.Target, vreg)
		return vreg
	case *ast.MembershipExpr:
		return c.compileMembership(n)

	default:
		c.errorf(diag.KindRuntime, e, "unsupported expression %T", e)
		dest := c.regs.alloc()
		c.prog.emit(NewAB(OpLoadUndef, dest, 0), e.Span())
		return dest
	}
}

func (c *Compiler) loadConst(v value.Value, span source.Span) byte {
	idx := c.prog.addLiteral(v)
	dest := c.regs.alloc()
	c.prog.emit(NewA16(OpLoadConst, dest, idx), span)
	return dest
}

// compileArrayCompr lowers `[term | body]` into a ForEach-style
// incremental build: allocate a result array, run body (whose last
// membership/some literal is expected to supply the iteration this
// compiler models as a nested loop over the comprehension's own
// generator literal), appending term's value each time body succeeds.
func (c *Compiler) compileArrayCompr(n *ast.ArrayCompr) byte {
	dest := c.regs.alloc()
	c.prog.emit(NewAB(OpArrayNew, dest, 0), n.Span())
	c.compileComprBody(n.Body, func() {
		termReg := c.compileExpr(n.Term)
		c.prog.emit(NewABC(OpArrayAppend, 0, dest, termReg), n.Term.Span())
	})
	return dest
}

func (c *Compiler) compileSetCompr(n *ast.SetCompr) byte {
	dest := c.regs.alloc()
	c.prog.emit(NewAB(OpSetNew, dest, 0), n.Span())
	c.compileComprBody(n.Body, func() {
		termReg := c.compileExpr(n.Term)
		c.prog.emit(NewABC(OpSetAdd, 0, dest, termReg), n.Term.Span())
	})
	return dest
}

func (c *Compiler) compileObjectCompr(n *ast.ObjectCompr) byte {
	dest := c.regs.alloc()
	c.prog.emit(NewAB(OpObjectNew, dest, 0), n.Span())
	c.compileComprBody(n.Body, func() {
		kreg := c.compileExpr(n.Key)
		vreg := c.compileExpr(n.Value)
		idx := c.prog.addObjectSetInfo(ObjectSetInfo{KeyReg: kreg, ValueReg: vreg})
		c.prog.emit(NewA16(OpObjectSet, dest, idx), n.Value.Span())
	})
	return dest
}

// compileComprBody lowers a comprehension's body literals in a fresh
// child scope, invoking yield once per satisfying binding — the same
// generator-scoping compileBody gives an ordinary rule body, since a
// comprehension body is itself just a rule body whose "onDone" appends
// to the comprehension's result instead of returning from the rule.
func (c *Compiler) compileComprBody(body []ast.Literal, yield func()) {
	parent := c.scope
	c.scope = newVarScope(parent)
	c.compileBody(body, yield)
	c.scope = parent
}

// compileRef lowers a reference chain (`input.x.y`, `data.a[b]`) into a
// sequence of OpIndex instructions over the head's register, dot terms
// desugaring to a string-literal key.
func (c *Compiler) compileRef(n *ast.Ref) byte {
	cur := c.compileExpr(n.Head)
	for _, t := range n.Terms {
		var keyReg byte
		if t.Dot {
			if v, ok := t.Index.(*ast.Var); ok {
				keyReg = c.loadConst(value.Str(v.Name), t.Index.Span())
			} else {
				keyReg = c.compileExpr(t.Index)
			}
		} else {
			keyReg = c.compileExpr(t.Index)
		}
		dest := c.regs.alloc()
		c.prog.emit(NewABC(OpIndex, dest, cur, keyReg), n.Span())
		cur = dest
	}
	return cur
}

// compileCall lowers a function application to OpCallRule (a
// user-defined function or partial-object-as-function reference) or
// OpCallBuiltin (a registered builtin), chosen by name lookup against
// the function table first, the builtin resolver second.
func (c *Compiler) compileCall(n *ast.Call) byte {
	name, ok := callTargetName(n.Func)
	if !ok {
		c.errorf(diag.KindRuntime, n, "unsupported call target")
		dest := c.regs.alloc()
		c.prog.emit(NewAB(OpLoadUndef, dest, 0), n.Span())
		return dest
	}
	return c.compileRuleOrBuiltinRef(name, n.Args, n)
}

func callTargetName(e ast.Expr) (string, bool) {
	switch n := e.(type) {
	case *ast.Var:
		return n.Name, true
	case *ast.Ref:
		if _, ok := n.Head.(*ast.Var); !ok {
			return "", false
		}
		name := n.Head.(*ast.Var).Name
		for _, t := range n.Terms {
			if !t.Dot {
				return "", false
			}
			if v, ok := t.Index.(*ast.Var); ok {
				name += "." + v.Name
			} else {
				return "", false
			}
		}
		return name, true
	default:
		return "", false
	}
}

// compileRuleOrBuiltinRef resolves name against the function table
// (emitting OpCallRule) and falls back to the builtin resolver
// (OpCallBuiltin); an unresolved name is a compile-time diagnostic
// (spec §7's UnknownFunction).
func (c *Compiler) compileRuleOrBuiltinRef(name string, args []ast.Expr, node ast.Node) byte {
	span := node.Span()
	argRegs := make([]byte, len(args))
	for i, a := range args {
		argRegs[i] = c.compileExpr(a)
	}

	if c.ctx != nil && c.ctx.Functions != nil {
		if entry := c.ctx.Functions.Lookup(name); entry != nil {
			key := fmt.Sprintf("%s/%d", name, len(args))
			if idx, ok := c.ruleIndex[key]; ok {
				dest := c.regs.alloc()
				ciIdx := c.prog.addCallInfo(CallInfo{RuleIndex: idx, Args: argRegs})
				c.prog.emit(NewA16(OpCallRule, dest, ciIdx), span)
				return dest
			}
			_ = entry
		}
	}

	if c.builtin != nil {
		if idx, ok := c.builtin.Lookup(name); ok {
			dest := c.regs.alloc()
			biIdx := c.prog.addBuiltinCallInfo(BuiltinCallInfo{BuiltinIndex: idx, Args: argRegs})
			c.prog.emit(NewA16(OpCallBuiltin, dest, biIdx), span)
			return dest
		}
	}

	c.errorf(diag.KindUnknownFunction, node, "undefined rule or builtin %q", name)
	dest := c.regs.alloc()
	c.prog.emit(NewAB(OpLoadUndef, dest, 0), span)
	return dest
}

func (c *Compiler) compileBinary(n *ast.BinaryExpr) byte {
	l := c.compileExpr(n.Left)
	r := c.compileExpr(n.Right)
	dest := c.regs.alloc()
	op, ok := binaryOpcode(n.Op)
	if !ok {
		c.errorf(diag.KindRuntime, n, "unsupported operator")
		c.prog.emit(NewAB(OpLoadUndef, dest, 0), n.Span())
		return dest
	}
	c.prog.emit(NewABC(op, dest, l, r), n.Span())
	return dest
}

func binaryOpcode(op ast.BinaryOp) (OpCode, bool) {
	switch op {
	case ast.OpAdd:
		return OpAdd, true
	case ast.OpSub:
		return OpSub, true
	case ast.OpMul:
		return OpMul, true
	case ast.OpDiv:
		return OpDiv, true
	case ast.OpMod:
		return OpMod, true
	case ast.OpEq:
		return OpEq, true
	case ast.OpNe:
		return OpNe, true
	case ast.OpLt:
		return OpLt, true
	case ast.OpLe:
		return OpLe, true
	case ast.OpGt:
		return OpGt, true
	case ast.OpGe:
		return OpGe, true
	case ast.OpAnd:
		return OpSetIntersect, true
	case ast.OpOr:
		return OpSetUnion, true
	default:
		return 0, false
	}
}

// compileMembership lowers `[key,] value in collection` used as a
// value-producing boolean expression (as opposed to the `some`/`every`
// statement forms, which emitGeneratorLoop and compileEvery handle): a
// single-shot Any-mode loop
// whose result register holds whether any element matched.
func (c *Compiler) compileMembership(n *ast.MembershipExpr) byte {
	collReg := c.compileExpr(n.Collection)
	dest := c.regs.alloc()

	parent := c.scope
	c.scope = newVarScope(parent)

	keyReg := NoRegister
	if n.Key != nil {
		if kv, ok := n.Key.(*ast.Var); ok && kv.Name != "_" {
			r := c.regs.alloc()
			c.scope.bind(kv.Name, r)
			keyReg = r
		}
	}
	valReg := c.regs.alloc()

	li := LoopInfo{Collection: collReg, KeyReg: keyReg, ValueReg: valReg, Mode: LoopAny, ResultReg: dest}
	idx := c.prog.addLoopInfo(li)
	startPC := c.prog.emit(NewA16(OpLoopStart, dest, idx), n.Span())

	candReg := c.compileExpr(n.Value)
	eqReg := c.emitEq(valReg, candReg, n.Span())
	c.prog.emit(NewA(OpAssertTrue, eqReg), n.Span())

	c.prog.emit(NewA16(OpLoopNext, 0, idx), n.Span())
	endPC := len(c.prog.Instructions)
	c.prog.LoopInfos[idx].BodyPC = startPC + 1
	c.prog.LoopInfos[idx].EndPC = endPC

	c.scope = parent
	return dest
}
