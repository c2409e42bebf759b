// Package ast defines the abstract syntax tree produced by the parser
// (spec §4.2). Grounded on the teacher's ast package: a Node base
// interface with TokenLiteral()/String(), Expression/Statement marker
// interfaces distinguished by unexported tag methods, and String()
// rendering used for debugging/snapshot tests — generalized here to
// this language's rule-head variants, reference chains, comprehensions,
// and body literals instead of DWScript's statement/declaration set.
package ast

import (
	"strings"

	"github.com/corepolicy/rvm/internal/source"
)

// Node is the base interface implemented by every AST node.
type Node interface {
	Span() source.Span
	String() string
}

// Expr is any node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Literal is a single statement of a rule body (spec §4.2's "body is a
// sequence of literals"): a plain expression, a negation, a `some`
// declaration, or an `every` quantified loop.
type Literal interface {
	Node
	literalNode()
}

// RuleHead is the head of a rule: complete, partial set, partial
// object, or function, per spec §4.2.
type RuleHead interface {
	Node
	ruleHeadNode()
}

type baseNode struct{ span source.Span }

func (b baseNode) Span() source.Span { return b.span }

// Module is the root of a parsed policy file.
type Module struct {
	baseNode
	Package Path
	Imports []Import
	Rules   []*Rule
}

func (m *Module) String() string {
	var sb strings.Builder
	sb.WriteString("package ")
	sb.WriteString(m.Package.String())
	sb.WriteString("\n")
	for _, imp := range m.Imports {
		sb.WriteString(imp.String())
		sb.WriteString("\n")
	}
	for _, r := range m.Rules {
		sb.WriteString(r.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// NewModule constructs a Module node.
func NewModule(span source.Span, pkg Path, imports []Import, rules []*Rule) *Module {
	return &Module{baseNode: baseNode{span}, Package: pkg, Imports: imports, Rules: rules}
}

// Path is a dotted sequence of identifiers, e.g. the operand of
// `package` and `import` clauses.
type Path struct {
	baseNode
	Segments []string
}

func NewPath(span source.Span, segments []string) Path {
	return Path{baseNode: baseNode{span}, Segments: segments}
}

func (p Path) String() string { return strings.Join(p.Segments, ".") }

// Import is a single `import <path> [as <alias>]` clause.
type Import struct {
	baseNode
	Path  Path
	Alias string // empty if no "as" clause
}

func NewImport(span source.Span, path Path, alias string) Import {
	return Import{baseNode: baseNode{span}, Path: path, Alias: alias}
}

func (i Import) String() string {
	if i.Alias == "" {
		return "import " + i.Path.String()
	}
	return "import " + i.Path.String() + " as " + i.Alias
}

// Rule binds a RuleHead to a body (a conjunction of Literals). An
// empty Body means the head is unconditionally true. Default rules
// carry no body: Head is always a CompleteRuleHead and Default is set.
type Rule struct {
	baseNode
	Head    RuleHead
	Body    []Literal
	Else    *Rule // chained `else` branch, or nil
	Default bool
}

func NewRule(span source.Span, head RuleHead, body []Literal, isDefault bool) *Rule {
	return &Rule{baseNode: baseNode{span}, Head: head, Body: body, Default: isDefault}
}

func (r *Rule) String() string {
	var sb strings.Builder
	if r.Default {
		sb.WriteString("default ")
	}
	sb.WriteString(r.Head.String())
	if len(r.Body) > 0 {
		sb.WriteString(" {\n")
		for _, lit := range r.Body {
			sb.WriteString("\t")
			sb.WriteString(lit.String())
			sb.WriteString("\n")
		}
		sb.WriteString("}")
	}
	if r.Else != nil {
		sb.WriteString(" else ")
		sb.WriteString(r.Else.String())
	}
	return sb.String()
}

// CompleteRuleHead is `name = value` or `name { ... }` (value defaults
// to Bool(true) when omitted — the parser fills that in).
type CompleteRuleHead struct {
	baseNode
	Name  string
	Value Expr
}

func (h *CompleteRuleHead) ruleHeadNode() {}
func (h *CompleteRuleHead) String() string {
	return h.Name + " = " + h.Value.String()
}

func NewCompleteRuleHead(span source.Span, name string, value Expr) *CompleteRuleHead {
	return &CompleteRuleHead{baseNode: baseNode{span}, Name: name, Value: value}
}

// PartialSetRuleHead is `name contains key { ... }`, building a set
// document one element per satisfying body evaluation.
type PartialSetRuleHead struct {
	baseNode
	Name string
	Key  Expr
}

func (h *PartialSetRuleHead) ruleHeadNode() {}
func (h *PartialSetRuleHead) String() string {
	return h.Name + " contains " + h.Key.String()
}

func NewPartialSetRuleHead(span source.Span, name string, key Expr) *PartialSetRuleHead {
	return &PartialSetRuleHead{baseNode: baseNode{span}, Name: name, Key: key}
}

// PartialObjectRuleHead is `name[key] = value { ... }`, building an
// object document one key/value pair per satisfying body evaluation.
type PartialObjectRuleHead struct {
	baseNode
	Name  string
	Key   Expr
	Value Expr
}

func (h *PartialObjectRuleHead) ruleHeadNode() {}
func (h *PartialObjectRuleHead) String() string {
	return h.Name + "[" + h.Key.String() + "] = " + h.Value.String()
}

func NewPartialObjectRuleHead(span source.Span, name string, key, value Expr) *PartialObjectRuleHead {
	return &PartialObjectRuleHead{baseNode: baseNode{span}, Name: name, Key: key, Value: value}
}

// FunctionRuleHead is `name(params...) = value { ... }`.
type FunctionRuleHead struct {
	baseNode
	Name   string
	Params []Expr
	Value  Expr
}

func (h *FunctionRuleHead) ruleHeadNode() {}
func (h *FunctionRuleHead) String() string {
	parts := make([]string, len(h.Params))
	for i, p := range h.Params {
		parts[i] = p.String()
	}
	return h.Name + "(" + strings.Join(parts, ", ") + ") = " + h.Value.String()
}

func NewFunctionRuleHead(span source.Span, name string, params []Expr, value Expr) *FunctionRuleHead {
	return &FunctionRuleHead{baseNode: baseNode{span}, Name: name, Params: params, Value: value}
}

// Expressions.

// Var is a variable reference or binding site.
type Var struct {
	baseNode
	Name string
}

func (v *Var) exprNode()      {}
func (v *Var) String() string { return v.Name }

func NewVar(span source.Span, name string) *Var { return &Var{baseNode: baseNode{span}, Name: name} }

// NullLit, BoolLit, NumberLit, StringLit are leaf literals.
type NullLit struct{ baseNode }

func (n *NullLit) exprNode()      {}
func (n *NullLit) String() string { return "null" }

func NewNullLit(span source.Span) *NullLit { return &NullLit{baseNode{span}} }

type BoolLit struct {
	baseNode
	Value bool
}

func (b *BoolLit) exprNode() {}
func (b *BoolLit) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

func NewBoolLit(span source.Span, v bool) *BoolLit { return &BoolLit{baseNode{span}, v} }

type NumberLit struct {
	baseNode
	Literal string // preserved verbatim for exact-precision parsing downstream
}

func (n *NumberLit) exprNode()      {}
func (n *NumberLit) String() string { return n.Literal }

func NewNumberLit(span source.Span, lit string) *NumberLit {
	return &NumberLit{baseNode: baseNode{span}, Literal: lit}
}

type StringLit struct {
	baseNode
	Value string
	Raw   bool // backtick raw string
}

func (s *StringLit) exprNode()      {}
func (s *StringLit) String() string { return `"` + s.Value + `"` }

func NewStringLit(span source.Span, value string, raw bool) *StringLit {
	return &StringLit{baseNode: baseNode{span}, Value: value, Raw: raw}
}

// ArrayLit, SetLit are collection literals. EmptySet distinguishes the
// `set()` spelling from `{}` (which parses as an empty object).
type ArrayLit struct {
	baseNode
	Elems []Expr
}

func (a *ArrayLit) exprNode() {}
func (a *ArrayLit) String() string {
	return "[" + joinExprs(a.Elems) + "]"
}

func NewArrayLit(span source.Span, elems []Expr) *ArrayLit {
	return &ArrayLit{baseNode: baseNode{span}, Elems: elems}
}

type SetLit struct {
	baseNode
	Elems []Expr
	Empty bool
}

func (s *SetLit) exprNode() {}
func (s *SetLit) String() string {
	if s.Empty {
		return "set()"
	}
	return "{" + joinExprs(s.Elems) + "}"
}

func NewSetLit(span source.Span, elems []Expr, empty bool) *SetLit {
	return &SetLit{baseNode: baseNode{span}, Elems: elems, Empty: empty}
}

// ObjectPair is one `key: value` entry of an ObjectLit.
type ObjectPair struct {
	Key   Expr
	Value Expr
}

type ObjectLit struct {
	baseNode
	Pairs []ObjectPair
}

func (o *ObjectLit) exprNode() {}
func (o *ObjectLit) String() string {
	parts := make([]string, len(o.Pairs))
	for i, p := range o.Pairs {
		parts[i] = p.Key.String() + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func NewObjectLit(span source.Span, pairs []ObjectPair) *ObjectLit {
	return &ObjectLit{baseNode: baseNode{span}, Pairs: pairs}
}

// Comprehensions.

type ArrayCompr struct {
	baseNode
	Term Expr
	Body []Literal
}

func (a *ArrayCompr) exprNode() {}
func (a *ArrayCompr) String() string {
	return "[" + a.Term.String() + " | " + joinLiterals(a.Body) + "]"
}

func NewArrayCompr(span source.Span, term Expr, body []Literal) *ArrayCompr {
	return &ArrayCompr{baseNode: baseNode{span}, Term: term, Body: body}
}

type SetCompr struct {
	baseNode
	Term Expr
	Body []Literal
}

func (s *SetCompr) exprNode() {}
func (s *SetCompr) String() string {
	return "{" + s.Term.String() + " | " + joinLiterals(s.Body) + "}"
}

func NewSetCompr(span source.Span, term Expr, body []Literal) *SetCompr {
	return &SetCompr{baseNode: baseNode{span}, Term: term, Body: body}
}

type ObjectCompr struct {
	baseNode
	Key   Expr
	Value Expr
	Body  []Literal
}

func (o *ObjectCompr) exprNode() {}
func (o *ObjectCompr) String() string {
	return "{" + o.Key.String() + ": " + o.Value.String() + " | " + joinLiterals(o.Body) + "}"
}

func NewObjectCompr(span source.Span, key, value Expr, body []Literal) *ObjectCompr {
	return &ObjectCompr{baseNode: baseNode{span}, Key: key, Value: value, Body: body}
}

// Ref is a reference chain: a leading expression (a Var or Call)
// followed by zero or more `.field` / `[expr]` terms.
type Ref struct {
	baseNode
	Head  Expr
	Terms []RefTerm
}

// RefTerm is one step of a reference chain. Dot access desugars to an
// index by a StringLit, so both forms reach the compiler uniformly.
type RefTerm struct {
	Index Expr
	Dot   bool // true when the term was written `.name` rather than `[expr]`
}

func (r *Ref) exprNode() {}
func (r *Ref) String() string {
	var sb strings.Builder
	sb.WriteString(r.Head.String())
	for _, t := range r.Terms {
		if t.Dot {
			sb.WriteString("." + t.Index.String())
		} else {
			sb.WriteString("[" + t.Index.String() + "]")
		}
	}
	return sb.String()
}

func NewRef(span source.Span, head Expr, terms []RefTerm) Expr {
	if len(terms) == 0 {
		return head
	}
	return &Ref{baseNode: baseNode{span}, Head: head, Terms: terms}
}

// Call is a function application `name(args...)` or a dotted call
// `pkg.fn(args...)`.
type Call struct {
	baseNode
	Func Expr // Var or Ref naming the function
	Args []Expr
}

func (c *Call) exprNode() {}
func (c *Call) String() string {
	return c.Func.String() + "(" + joinExprs(c.Args) + ")"
}

func NewCall(span source.Span, fn Expr, args []Expr) *Call {
	return &Call{baseNode: baseNode{span}, Func: fn, Args: args}
}

// BinaryOp identifies an infix operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpUnify
	OpAnd // `&`, set intersection
	OpOr  // `|`, set union — only valid between `[` `]`-less set terms
)

var binaryOpSymbols = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpUnify: "=", OpAnd: "&", OpOr: "|",
}

type BinaryExpr struct {
	baseNode
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (b *BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return "(" + b.Left.String() + " " + binaryOpSymbols[b.Op] + " " + b.Right.String() + ")"
}

func NewBinaryExpr(span source.Span, op BinaryOp, left, right Expr) *BinaryExpr {
	return &BinaryExpr{baseNode: baseNode{span}, Op: op, Left: left, Right: right}
}

// AssignExpr is a declaring assignment `x := value` (always introduces
// a new binding) as distinct from OpUnify's `x = value` (may unify
// with an existing binding or introduce a new one).
type AssignExpr struct {
	baseNode
	Target Expr
	Value  Expr
}

func (a *AssignExpr) exprNode() {}
func (a *AssignExpr) String() string {
	return a.Target.String() + " := " + a.Value.String()
}

func NewAssignExpr(span source.Span, target, value Expr) *AssignExpr {
	return &AssignExpr{baseNode: baseNode{span}, Target: target, Value: value}
}

// MembershipExpr is `value in collection` or `key, value in collection`
// (Key is nil for the single-variable form).
type MembershipExpr struct {
	baseNode
	Key        Expr // nil if absent
	Value      Expr
	Collection Expr
}

func (m *MembershipExpr) exprNode() {}
func (m *MembershipExpr) String() string {
	if m.Key != nil {
		return m.Key.String() + ", " + m.Value.String() + " in " + m.Collection.String()
	}
	return m.Value.String() + " in " + m.Collection.String()
}

func NewMembershipExpr(span source.Span, key, value, collection Expr) *MembershipExpr {
	return &MembershipExpr{baseNode: baseNode{span}, Key: key, Value: value, Collection: collection}
}

// WithModifier records a single `with target as value` clause attached
// to a literal (spec §4.2/§6's input/data override mechanism).
type WithModifier struct {
	Target Expr
	Value  Expr
}

// Body literals.

type withClause struct {
	With []WithModifier
}

func (w withClause) stringSuffix() string {
	if len(w.With) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, wm := range w.With {
		sb.WriteString(" with ")
		sb.WriteString(wm.Target.String())
		sb.WriteString(" as ")
		sb.WriteString(wm.Value.String())
	}
	return sb.String()
}

// ExprLiteral is a plain expression used as a body literal — its
// AssertCondition/AssertNonUndefined behavior depends on whether the
// top-level operator is OpUnify/AssignExpr (a binding) or anything
// else (a boolean test), decided by the analyzer.
type ExprLiteral struct {
	baseNode
	withClause
	Expr Expr
}

func (e *ExprLiteral) literalNode() {}
func (e *ExprLiteral) String() string { return e.Expr.String() + e.stringSuffix() }

func NewExprLiteral(span source.Span, expr Expr, with []WithModifier) *ExprLiteral {
	return &ExprLiteral{baseNode: baseNode{span}, withClause: withClause{with}, Expr: expr}
}

// NotLiteral is `not <expr>`, negating its operand's satisfiability.
type NotLiteral struct {
	baseNode
	withClause
	Expr Expr
}

func (n *NotLiteral) literalNode() {}
func (n *NotLiteral) String() string { return "not " + n.Expr.String() + n.stringSuffix() }

func NewNotLiteral(span source.Span, expr Expr, with []WithModifier) *NotLiteral {
	return &NotLiteral{baseNode: baseNode{span}, withClause: withClause{with}, Expr: expr}
}

// SomeVarsLiteral is `some x, y, ...`: declares fresh local variables
// without constraining them (they are bound by later literals in the
// same body).
type SomeVarsLiteral struct {
	baseNode
	Vars []*Var
}

func (s *SomeVarsLiteral) literalNode() {}
func (s *SomeVarsLiteral) String() string {
	names := make([]string, len(s.Vars))
	for i, v := range s.Vars {
		names[i] = v.Name
	}
	return "some " + strings.Join(names, ", ")
}

func NewSomeVarsLiteral(span source.Span, vars []*Var) *SomeVarsLiteral {
	return &SomeVarsLiteral{baseNode: baseNode{span}, Vars: vars}
}

// SomeInLiteral is `some [key,] value in collection`: declares and
// binds fresh variables by iterating collection, existentially.
type SomeInLiteral struct {
	baseNode
	Key        Expr // nil if absent
	Value      Expr
	Collection Expr
}

func (s *SomeInLiteral) literalNode() {}
func (s *SomeInLiteral) String() string {
	return "some " + (&MembershipExpr{Key: s.Key, Value: s.Value, Collection: s.Collection}).String()
}

func NewSomeInLiteral(span source.Span, key, value, collection Expr) *SomeInLiteral {
	return &SomeInLiteral{baseNode: baseNode{span}, Key: key, Value: value, Collection: collection}
}

// EveryLiteral is `every [key,] value in collection { body }`:
// universally quantified — the literal is satisfied iff body succeeds
// for every element of collection.
type EveryLiteral struct {
	baseNode
	Key        Expr // nil if absent
	Value      Expr
	Collection Expr
	Body       []Literal
}

func (e *EveryLiteral) literalNode() {}
func (e *EveryLiteral) String() string {
	head := "every " + (&MembershipExpr{Key: e.Key, Value: e.Value, Collection: e.Collection}).String()
	return head + " { " + joinLiterals(e.Body) + " }"
}

func NewEveryLiteral(span source.Span, key, value, collection Expr, body []Literal) *EveryLiteral {
	return &EveryLiteral{baseNode: baseNode{span}, Key: key, Value: value, Collection: collection, Body: body}
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func joinLiterals(lits []Literal) string {
	parts := make([]string, len(lits))
	for i, l := range lits {
		parts[i] = l.String()
	}
	return strings.Join(parts, "; ")
}
