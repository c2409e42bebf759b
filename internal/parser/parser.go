// Package parser implements a recursive-descent/Pratt parser over the
// lexer's token stream, producing an *ast.Module (spec §4.2).
//
// Grounded on the teacher's internal/parser: a prefixParseFn/
// infixParseFn table keyed by precedence, curToken/peekToken
// lookahead, and accumulated (not fail-fast) *ParserError reporting —
// adapted here to this language's rule heads, reference chains,
// comprehensions, and `with`/`some`/`every` body literals, none of
// which have a DWScript analog.
package parser

import (
	"fmt"

	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/diag"
	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/source"
)

// Precedence levels, lowest to highest.
const (
	_ int = iota
	LOWEST
	ASSIGN   // := =
	OR       // |  (set union)
	AND      // &  (set intersection)
	IN       // in
	EQUALS   // == !=
	RELATION // < <= > >=
	SUM      // + -
	PRODUCT  // * / %
	PREFIX   // unary -
	CALL     // f(...)
	INDEX    // a[x]  a.x
)

var precedences = map[lexer.TokenType]int{
	lexer.ASSIGN: ASSIGN, lexer.UNIFY: ASSIGN,
	lexer.PIPE: OR, lexer.AMP: AND, lexer.IN: IN,
	lexer.EQ: EQUALS, lexer.NE: EQUALS,
	lexer.LT: RELATION, lexer.LE: RELATION, lexer.GT: RELATION, lexer.GE: RELATION,
	lexer.PLUS: SUM, lexer.MINUS: SUM,
	lexer.STAR: PRODUCT, lexer.SLASH: PRODUCT, lexer.PERCENT: PRODUCT,
	lexer.LPAREN: CALL, lexer.LBRACK: INDEX, lexer.DOT: INDEX,
}

var binaryOps = map[lexer.TokenType]ast.BinaryOp{
	lexer.PLUS: ast.OpAdd, lexer.MINUS: ast.OpSub, lexer.STAR: ast.OpMul,
	lexer.SLASH: ast.OpDiv, lexer.PERCENT: ast.OpMod,
	lexer.EQ: ast.OpEq, lexer.NE: ast.OpNe,
	lexer.LT: ast.OpLt, lexer.LE: ast.OpLe, lexer.GT: ast.OpGt, lexer.GE: ast.OpGe,
	lexer.UNIFY: ast.OpUnify, lexer.AMP: ast.OpAnd, lexer.PIPE: ast.OpOr,
}

type prefixParseFn func() ast.Expr
type infixParseFn func(ast.Expr) ast.Expr

// Parser turns a token stream into an *ast.Module, recovering from
// syntax errors at statement boundaries rather than aborting.
type Parser struct {
	l    *lexer.Lexer
	file string

	curTok, peekTok lexer.Token

	prefixFns map[lexer.TokenType]prefixParseFn
	infixFns  map[lexer.TokenType]infixParseFn

	diags []diag.Diagnostic
}

// New constructs a Parser reading from l.
func New(l *lexer.Lexer, file string) *Parser {
	p := &Parser{l: l, file: file}
	p.prefixFns = map[lexer.TokenType]prefixParseFn{
		lexer.IDENT:     p.parseIdentOrCallOrRef,
		lexer.NUMBER:    p.parseNumberLit,
		lexer.STRING:    p.parseStringLit,
		lexer.RAWSTRING: p.parseRawStringLit,
		lexer.TRUE:      p.parseBoolLit,
		lexer.FALSE:     p.parseBoolLit,
		lexer.NULL:      p.parseNullLit,
		lexer.SET_EMPTY: p.parseEmptySet,
		lexer.MINUS:     p.parseUnaryMinus,
		lexer.NOT:       p.parseUnaryNot,
		lexer.LPAREN:    p.parseGroupedExpr,
		lexer.LBRACK:    p.parseArrayLikeExpr,
		lexer.LBRACE:    p.parseBraceExpr,
	}
	p.infixFns = map[lexer.TokenType]infixParseFn{
		lexer.PLUS: p.parseBinaryExpr, lexer.MINUS: p.parseBinaryExpr,
		lexer.STAR: p.parseBinaryExpr, lexer.SLASH: p.parseBinaryExpr, lexer.PERCENT: p.parseBinaryExpr,
		lexer.EQ: p.parseBinaryExpr, lexer.NE: p.parseBinaryExpr,
		lexer.LT: p.parseBinaryExpr, lexer.LE: p.parseBinaryExpr,
		lexer.GT: p.parseBinaryExpr, lexer.GE: p.parseBinaryExpr,
		lexer.AMP: p.parseBinaryExpr, lexer.PIPE: p.parseBinaryExpr,
		lexer.UNIFY: p.parseUnifyExpr, lexer.ASSIGN: p.parseAssignExpr,
		lexer.IN:     p.parseMembershipExpr,
		lexer.LPAREN: p.parseCallExpr,
		lexer.LBRACK: p.parseIndexExpr,
		lexer.DOT:    p.parseDotExpr,
	}
	p.next()
	p.next()
	return p
}

// Diagnostics returns accumulated lexer and parser errors.
func (p *Parser) Diagnostics() []diag.Diagnostic {
	all := append([]diag.Diagnostic{}, p.l.Diagnostics()...)
	return append(all, p.diags...)
}

func (p *Parser) next() {
	p.curTok = p.peekTok
	p.peekTok = p.l.Next()
}

func (p *Parser) curIs(tt lexer.TokenType) bool  { return p.curTok.Type == tt }
func (p *Parser) peekIs(tt lexer.TokenType) bool { return p.peekTok.Type == tt }

func (p *Parser) expect(tt lexer.TokenType) bool {
	if p.peekIs(tt) {
		p.next()
		return true
	}
	p.errorf(p.peekTok.Span, "expected %s, got %s", tt, p.peekTok.Type)
	return false
}

func (p *Parser) errorf(span source.Span, format string, args ...interface{}) {
	p.diags = append(p.diags, diag.Diagnostic{
		Severity: diag.SeverityError,
		Kind:     diag.KindParse,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekTok.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curTok.Type]; ok {
		return pr
	}
	return LOWEST
}

// ParseModule parses an entire module: one `package` clause, zero or
// more `import` clauses, then zero or more rules, recovering at rule
// boundaries on error.
func (p *Parser) ParseModule() *ast.Module {
	start := p.curTok.Span
	var pkg ast.Path
	if p.curIs(lexer.PACKAGE) {
		pkg = p.parsePackageClause()
	} else {
		p.errorf(p.curTok.Span, "expected package clause, got %s", p.curTok.Type)
	}

	var imports []ast.Import
	for p.curIs(lexer.IMPORT) {
		imports = append(imports, p.parseImportClause())
	}

	var rules []*ast.Rule
	for !p.curIs(lexer.EOF) {
		r := p.parseRule()
		if r != nil {
			rules = append(rules, r)
		} else {
			p.synchronize()
		}
	}

	end := p.curTok.Span
	return ast.NewModule(source.Join(start, end), pkg, imports, rules)
}

// synchronize skips tokens until a plausible rule boundary, so one bad
// rule doesn't blot out diagnostics for the rest of the module.
func (p *Parser) synchronize() {
	for !p.curIs(lexer.EOF) {
		if p.curIs(lexer.IDENT) || p.curIs(lexer.DEFAULT) {
			return
		}
		p.next()
	}
}

func (p *Parser) parsePath() ast.Path {
	start := p.curTok.Span
	segs := []string{p.curTok.Literal}
	for p.peekIs(lexer.DOT) {
		p.next() // consume '.'
		if !p.expect(lexer.IDENT) {
			break
		}
		segs = append(segs, p.curTok.Literal)
	}
	return ast.NewPath(source.Join(start, p.curTok.Span), segs)
}

func (p *Parser) parsePackageClause() ast.Path {
	start := p.curTok.Span
	p.next() // consume 'package'
	if !p.curIs(lexer.IDENT) {
		p.errorf(p.curTok.Span, "expected package path, got %s", p.curTok.Type)
		return ast.NewPath(start, nil)
	}
	path := p.parsePath()
	p.next()
	return path
}

func (p *Parser) parseImportClause() ast.Import {
	start := p.curTok.Span
	p.next() // consume 'import'
	path := p.parsePath()
	alias := ""
	if p.peekIs(lexer.AS) {
		p.next() // 'as'
		if p.expect(lexer.IDENT) {
			alias = p.curTok.Literal
		}
	}
	p.next()
	return ast.NewImport(source.Join(start, p.curTok.Span), path, alias)
}

// parseRule parses one rule, optionally prefixed by `default`, and its
// optional `{ ... }` body and `else` chain.
func (p *Parser) parseRule() *ast.Rule {
	start := p.curTok.Span
	isDefault := false
	if p.curIs(lexer.DEFAULT) {
		isDefault = true
		p.next()
	}
	if !p.curIs(lexer.IDENT) {
		p.errorf(p.curTok.Span, "expected rule name, got %s", p.curTok.Type)
		return nil
	}

	head := p.parseRuleHead()
	if head == nil {
		return nil
	}

	// Each branch below leaves curTok on the token immediately *after*
	// the rule's head/body, matching parsePackageClause/parseImportClause's
	// convention — so the ParseModule loop never needs its own advance.
	var body []ast.Literal
	if p.peekIs(lexer.LBRACE) {
		p.next()
		body = p.parseBlock() // ends on '}'
		p.next()              // past '}'
	} else {
		p.next() // past the head's last token
	}

	rule := ast.NewRule(source.Join(start, p.curTok.Span), head, body, isDefault)

	tail := rule
	for p.curIs(lexer.ELSE) {
		elseStart := p.curTok.Span
		p.next() // past 'else'
		var elseValue ast.Expr = ast.NewBoolLit(elseStart, true)
		if p.curIs(lexer.UNIFY) {
			p.next() // past '='
			elseValue = p.parseExpr(LOWEST)
			p.next() // past the value
		}
		var elseBody []ast.Literal
		if p.curIs(lexer.LBRACE) {
			elseBody = p.parseBlock() // ends on '}'
			p.next()                  // past '}'
		}
		name := ""
		if c, ok := head.(*ast.CompleteRuleHead); ok {
			name = c.Name
		}
		elseHead := ast.NewCompleteRuleHead(elseStart, name, elseValue)
		tail.Else = ast.NewRule(source.Join(elseStart, p.curTok.Span), elseHead, elseBody, false)
		tail = tail.Else
	}

	return rule
}

// parseRuleHead dispatches on the shape following the rule name:
// `(` for a function head, `contains` for a partial-set head, `[` for
// a partial-object head, otherwise a complete head.
func (p *Parser) parseRuleHead() ast.RuleHead {
	start := p.curTok.Span
	name := p.curTok.Literal

	switch {
	case p.peekIs(lexer.LPAREN):
		p.next() // consume '('
		params := p.parseExprList(lexer.RPAREN)
		value := ast.Expr(ast.NewBoolLit(p.curTok.Span, true))
		if p.peekIs(lexer.UNIFY) {
			p.next()
			p.next()
			value = p.parseExpr(LOWEST)
		}
		return ast.NewFunctionRuleHead(source.Join(start, p.curTok.Span), name, params, value)

	case p.peekIs(lexer.CONTAINS):
		p.next() // consume 'contains'
		p.next()
		key := p.parseExpr(LOWEST)
		return ast.NewPartialSetRuleHead(source.Join(start, p.curTok.Span), name, key)

	case p.peekIs(lexer.LBRACK):
		p.next() // consume '['
		p.next()
		key := p.parseExpr(LOWEST)
		if !p.expect(lexer.RBRACK) {
			return nil
		}
		value := ast.Expr(ast.NewBoolLit(p.curTok.Span, true))
		if p.peekIs(lexer.UNIFY) {
			p.next()
			p.next()
			value = p.parseExpr(LOWEST)
		}
		return ast.NewPartialObjectRuleHead(source.Join(start, p.curTok.Span), name, key, value)

	default:
		value := ast.Expr(ast.NewBoolLit(p.curTok.Span, true))
		if p.peekIs(lexer.UNIFY) {
			p.next()
			p.next()
			value = p.parseExpr(LOWEST)
		}
		return ast.NewCompleteRuleHead(source.Join(start, p.curTok.Span), name, value)
	}
}

// parseBlock parses `{ lit [;|newline-insensitive] ... }`, assuming
// curTok is the opening '{'.
func (p *Parser) parseBlock() []ast.Literal {
	var lits []ast.Literal
	p.next() // move past '{'
	for !p.curIs(lexer.RBRACE) && !p.curIs(lexer.EOF) {
		lit := p.parseLiteral()
		if lit != nil {
			lits = append(lits, lit)
		}
		p.next() // past the literal's last token
		if p.curIs(lexer.SEMI) {
			p.next()
		}
	}
	return lits
}

func (p *Parser) parseLiteral() ast.Literal {
	start := p.curTok.Span
	switch {
	case p.curIs(lexer.NOT):
		p.next()
		expr := p.parseExpr(LOWEST)
		with := p.parseWithClauses()
		return ast.NewNotLiteral(source.Join(start, p.curTok.Span), expr, with)

	case p.curIs(lexer.SOME):
		return p.parseSomeLiteral(start)

	case p.curIs(lexer.EVERY):
		return p.parseEveryLiteral(start)

	default:
		expr := p.parseExpr(LOWEST)
		with := p.parseWithClauses()
		return ast.NewExprLiteral(source.Join(start, p.curTok.Span), expr, with)
	}
}

// parseSomeLiteral handles both `some x, y, ...` (pure declaration)
// and `some [k,] v in xs` (existential membership), disambiguated by
// whether an `in` follows the variable list.
func (p *Parser) parseSomeLiteral(start source.Span) ast.Literal {
	p.next() // consume 'some'
	first := p.parseVarName()
	vars := []*ast.Var{first.(*ast.Var)}

	if p.peekIs(lexer.COMMA) {
		p.next() // consume ','
		p.next()
		second := p.parseVarName()
		if p.peekIs(lexer.IN) {
			p.next()
			p.next()
			coll := p.parseExpr(LOWEST)
			return ast.NewSomeInLiteral(source.Join(start, p.curTok.Span), first, second, coll)
		}
		vars = append(vars, second.(*ast.Var))
	} else if p.peekIs(lexer.IN) {
		p.next()
		p.next()
		coll := p.parseExpr(LOWEST)
		return ast.NewSomeInLiteral(source.Join(start, p.curTok.Span), nil, first, coll)
	}

	for p.peekIs(lexer.COMMA) {
		p.next()
		p.next()
		vars = append(vars, p.parseVarName().(*ast.Var))
	}
	return ast.NewSomeVarsLiteral(source.Join(start, p.curTok.Span), vars)
}

func (p *Parser) parseEveryLiteral(start source.Span) ast.Literal {
	p.next() // consume 'every'
	first := p.parseVarName()

	var key, value ast.Expr
	if p.peekIs(lexer.COMMA) {
		p.next()
		p.next()
		value = p.parseVarName()
		key = first
	} else {
		value = first
	}

	if !p.expect(lexer.IN) {
		return nil
	}
	p.next()
	coll := p.parseExpr(LOWEST)
	if !p.expect(lexer.LBRACE) {
		return nil
	}
	body := p.parseBlock()
	return ast.NewEveryLiteral(source.Join(start, p.curTok.Span), key, value, coll, body)
}

func (p *Parser) parseVarName() ast.Expr {
	if !p.curIs(lexer.IDENT) {
		p.errorf(p.curTok.Span, "expected variable name, got %s", p.curTok.Type)
		return ast.NewVar(p.curTok.Span, "_")
	}
	return ast.NewVar(p.curTok.Span, p.curTok.Literal)
}

func (p *Parser) parseWithClauses() []ast.WithModifier {
	var mods []ast.WithModifier
	for p.peekIs(lexer.WITH) {
		p.next() // consume 'with'
		p.next()
		target := p.parseExpr(EQUALS)
		if !p.expect(lexer.AS) {
			break
		}
		p.next()
		value := p.parseExpr(EQUALS)
		mods = append(mods, ast.WithModifier{Target: target, Value: value})
	}
	return mods
}

// parserMark snapshots curTok/peekTok and the diagnostic count.
// Restoring one does not rewind the lexer, so it cannot undo more than
// the two buffered tokens; parseSomeLiteral does not use it.
type parserMark struct {
	curTok, peekTok lexer.Token
	diagLen         int
}

func (p *Parser) markState() parserMark {
	return parserMark{curTok: p.curTok, peekTok: p.peekTok, diagLen: len(p.diags)}
}

func (p *Parser) restoreState(m parserMark) {
	p.curTok, p.peekTok = m.curTok, m.peekTok
	p.diags = p.diags[:m.diagLen]
}

// Expression parsing (Pratt).

func (p *Parser) parseExpr(precedence int) ast.Expr {
	prefix, ok := p.prefixFns[p.curTok.Type]
	if !ok {
		p.errorf(p.curTok.Span, "unexpected token %s in expression", p.curTok.Type)
		return ast.NewNullLit(p.curTok.Span)
	}
	left := prefix()

	for !p.peekIs(lexer.SEMI) && precedence < p.peekPrecedence() {
		infix, ok := p.infixFns[p.peekTok.Type]
		if !ok {
			return left
		}
		p.next()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseExprList(end lexer.TokenType) []ast.Expr {
	var list []ast.Expr
	if p.peekIs(end) {
		p.next()
		return list
	}
	p.next()
	list = append(list, p.parseExpr(LOWEST))
	for p.peekIs(lexer.COMMA) {
		p.next()
		p.next()
		list = append(list, p.parseExpr(LOWEST))
	}
	p.expect(end)
	return list
}

func (p *Parser) parseIdentOrCallOrRef() ast.Expr {
	return ast.NewVar(p.curTok.Span, p.curTok.Literal)
}

func (p *Parser) parseNumberLit() ast.Expr {
	return ast.NewNumberLit(p.curTok.Span, p.curTok.Literal)
}

func (p *Parser) parseStringLit() ast.Expr {
	return ast.NewStringLit(p.curTok.Span, p.curTok.Literal, false)
}

func (p *Parser) parseRawStringLit() ast.Expr {
	return ast.NewStringLit(p.curTok.Span, p.curTok.Literal, true)
}

func (p *Parser) parseBoolLit() ast.Expr {
	return ast.NewBoolLit(p.curTok.Span, p.curTok.Type == lexer.TRUE)
}

func (p *Parser) parseNullLit() ast.Expr {
	return ast.NewNullLit(p.curTok.Span)
}

func (p *Parser) parseEmptySet() ast.Expr {
	return ast.NewSetLit(p.curTok.Span, nil, true)
}

func (p *Parser) parseUnaryMinus() ast.Expr {
	start := p.curTok.Span
	p.next()
	operand := p.parseExpr(PREFIX)
	zero := ast.NewNumberLit(start, "0")
	return ast.NewBinaryExpr(source.Join(start, p.curTok.Span), ast.OpSub, zero, operand)
}

func (p *Parser) parseUnaryNot() ast.Expr {
	// `not` as a prefix expression operator (inside e.g. a comprehension
	// term); the body-literal-level negation is handled by parseLiteral.
	start := p.curTok.Span
	p.next()
	operand := p.parseExpr(PREFIX)
	return ast.NewCall(source.Join(start, p.curTok.Span), ast.NewVar(start, "not"), []ast.Expr{operand})
}

func (p *Parser) parseGroupedExpr() ast.Expr {
	p.next() // consume '('
	expr := p.parseExpr(LOWEST)
	p.expect(lexer.RPAREN)
	return expr
}

// parseArrayLikeExpr parses `[elem, ...]` or `[term | body]`.
func (p *Parser) parseArrayLikeExpr() ast.Expr {
	start := p.curTok.Span
	if p.peekIs(lexer.RBRACK) {
		p.next()
		return ast.NewArrayLit(source.Join(start, p.curTok.Span), nil)
	}
	p.next()
	first := p.parseExpr(OR)
	if p.peekIs(lexer.PIPE) {
		p.next() // consume '|'
		p.next()
		body := p.parseComprBody()
		p.expect(lexer.RBRACK)
		return ast.NewArrayCompr(source.Join(start, p.curTok.Span), first, body)
	}
	elems := []ast.Expr{first}
	for p.peekIs(lexer.COMMA) {
		p.next()
		p.next()
		elems = append(elems, p.parseExpr(LOWEST))
	}
	p.expect(lexer.RBRACK)
	return ast.NewArrayLit(source.Join(start, p.curTok.Span), elems)
}

// parseBraceExpr parses `{}` (empty object), `{k:v, ...}` (object),
// `{a, b, ...}` (set), `{term | body}` (set comprehension), or
// `{k: v | body}` (object comprehension).
func (p *Parser) parseBraceExpr() ast.Expr {
	start := p.curTok.Span
	if p.peekIs(lexer.RBRACE) {
		p.next()
		return ast.NewObjectLit(source.Join(start, p.curTok.Span), nil)
	}
	p.next()
	firstKeyOrTerm := p.parseExpr(OR)

	switch {
	case p.peekIs(lexer.COLON):
		p.next() // consume ':'
		p.next()
		firstVal := p.parseExpr(OR)
		if p.peekIs(lexer.PIPE) {
			p.next()
			p.next()
			body := p.parseComprBody()
			p.expect(lexer.RBRACE)
			return ast.NewObjectCompr(source.Join(start, p.curTok.Span), firstKeyOrTerm, firstVal, body)
		}
		pairs := []ast.ObjectPair{{Key: firstKeyOrTerm, Value: firstVal}}
		for p.peekIs(lexer.COMMA) {
			p.next()
			p.next()
			k := p.parseExpr(LOWEST)
			if !p.expect(lexer.COLON) {
				break
			}
			p.next()
			v := p.parseExpr(LOWEST)
			pairs = append(pairs, ast.ObjectPair{Key: k, Value: v})
		}
		p.expect(lexer.RBRACE)
		return ast.NewObjectLit(source.Join(start, p.curTok.Span), pairs)

	case p.peekIs(lexer.PIPE):
		p.next()
		p.next()
		body := p.parseComprBody()
		p.expect(lexer.RBRACE)
		return ast.NewSetCompr(source.Join(start, p.curTok.Span), firstKeyOrTerm, body)

	default:
		elems := []ast.Expr{firstKeyOrTerm}
		for p.peekIs(lexer.COMMA) {
			p.next()
			p.next()
			elems = append(elems, p.parseExpr(LOWEST))
		}
		p.expect(lexer.RBRACE)
		return ast.NewSetLit(source.Join(start, p.curTok.Span), elems, false)
	}
}

// parseComprBody parses the literal sequence of a comprehension,
// which (unlike a rule body) is not wrapped in braces — it runs up to
// the comprehension's own closing bracket/brace.
func (p *Parser) parseComprBody() []ast.Literal {
	var lits []ast.Literal
	for {
		lit := p.parseLiteral()
		if lit != nil {
			lits = append(lits, lit)
		}
		if p.peekIs(lexer.SEMI) {
			p.next()
			p.next()
			continue
		}
		break
	}
	return lits
}

func (p *Parser) parseBinaryExpr(left ast.Expr) ast.Expr {
	start := left.Span()
	op := binaryOps[p.curTok.Type]
	prec := p.curPrecedence()
	p.next()
	right := p.parseExpr(prec)
	return ast.NewBinaryExpr(source.Join(start, p.curTok.Span), op, left, right)
}

func (p *Parser) parseUnifyExpr(left ast.Expr) ast.Expr {
	start := left.Span()
	p.next()
	right := p.parseExpr(ASSIGN)
	return ast.NewBinaryExpr(source.Join(start, p.curTok.Span), ast.OpUnify, left, right)
}

func (p *Parser) parseAssignExpr(left ast.Expr) ast.Expr {
	start := left.Span()
	p.next()
	right := p.parseExpr(ASSIGN)
	return ast.NewAssignExpr(source.Join(start, p.curTok.Span), left, right)
}

func (p *Parser) parseMembershipExpr(left ast.Expr) ast.Expr {
	start := left.Span()
	p.next()
	coll := p.parseExpr(IN)
	return ast.NewMembershipExpr(source.Join(start, p.curTok.Span), nil, left, coll)
}

func (p *Parser) parseCallExpr(fn ast.Expr) ast.Expr {
	start := fn.Span()
	args := p.parseExprList(lexer.RPAREN)
	return ast.NewCall(source.Join(start, p.curTok.Span), fn, args)
}

func (p *Parser) parseIndexExpr(head ast.Expr) ast.Expr {
	start := head.Span()
	p.next() // move onto index expr
	idx := p.parseExpr(LOWEST)
	if !p.expect(lexer.RBRACK) {
		return head
	}
	return ast.NewRef(source.Join(start, p.curTok.Span), head, []ast.RefTerm{{Index: idx, Dot: false}})
}

func (p *Parser) parseDotExpr(head ast.Expr) ast.Expr {
	start := head.Span()
	if !p.expect(lexer.IDENT) {
		return head
	}
	field := ast.NewStringLit(p.curTok.Span, p.curTok.Literal, false)
	return ast.NewRef(source.Join(start, p.curTok.Span), head, []ast.RefTerm{{Index: field, Dot: true}})
}
