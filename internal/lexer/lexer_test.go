package lexer

import (
	"testing"

	"github.com/corepolicy/rvm/internal/source"
)

func tokenize(t *testing.T, text string) []Token {
	t.Helper()
	l := New(source.New("test.policy", text))
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == EOF {
			break
		}
	}
	return toks
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := tokenize(t, "package foo import bar default allow")
	want := []TokenType{PACKAGE, IDENT, IMPORT, IDENT, DEFAULT, IDENT, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Fatalf("token %d: got %s want %s", i, toks[i].Type, tt)
		}
	}
}

func TestOperators(t *testing.T) {
	toks := tokenize(t, ":= == <= >= != = < > | || & . , ; ( ) [ ] { }")
	want := []TokenType{
		ASSIGN, EQ, LE, GE, NE, UNIFY, LT, GT, PIPE, BAR_BAR, AMP,
		DOT, COMMA, SEMI, LPAREN, RPAREN, LBRACK, RBRACK, LBRACE, RBRACE, EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Fatalf("token %d (%q): got %s want %s", i, toks[i].Literal, toks[i].Type, tt)
		}
	}
}

func TestSetEmptyLiteral(t *testing.T) {
	toks := tokenize(t, "x = set()")
	if toks[2].Type != SET_EMPTY {
		t.Fatalf("expected SET_EMPTY, got %s", toks[2].Type)
	}
}

func TestSetCallIsNotConfusedWithSetEmpty(t *testing.T) {
	// "set" followed by whitespace before the parens is an ordinary
	// identifier, not the set() literal token.
	toks := tokenize(t, "set ()")
	if toks[0].Type != IDENT || toks[0].Literal != "set" {
		t.Fatalf("expected IDENT(set), got %v", toks[0])
	}
	if toks[1].Type != LPAREN {
		t.Fatalf("expected LPAREN, got %v", toks[1])
	}
}

func TestNumbers(t *testing.T) {
	toks := tokenize(t, "0 1 42 3.14 1e10 2.5e-3 123456789012345678901234567890")
	for i, tok := range toks[:len(toks)-1] {
		if tok.Type != NUMBER {
			t.Fatalf("token %d: expected NUMBER, got %s (%q)", i, tok.Type, tok.Literal)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	toks := tokenize(t, `"hello\nworld" "A"`)
	if toks[0].Literal != "hello\nworld" {
		t.Fatalf("got %q", toks[0].Literal)
	}
	if toks[1].Literal != "A" {
		t.Fatalf("got %q", toks[1].Literal)
	}
}

func TestRawString(t *testing.T) {
	toks := tokenize(t, "`line one\nline \\n two`")
	if toks[0].Type != RAWSTRING {
		t.Fatalf("expected RAWSTRING, got %s", toks[0].Type)
	}
	if toks[0].Literal != "line one\nline \\n two" {
		t.Fatalf("got %q", toks[0].Literal)
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	toks := tokenize(t, "package foo # this is a comment\nimport bar")
	want := []TokenType{PACKAGE, IDENT, IMPORT, IDENT, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
}

func TestUnterminatedStringAccumulatesDiagnostic(t *testing.T) {
	l := New(source.New("test.policy", `"unterminated`))
	tok := l.Next()
	if tok.Type != STRING {
		t.Fatalf("expected STRING, got %s", tok.Type)
	}
	if len(l.Diagnostics()) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(l.Diagnostics()))
	}
}

func TestSpansTrackLineAndColumn(t *testing.T) {
	toks := tokenize(t, "pkg\nfoo")
	if toks[0].Span.Start.Line != 1 {
		t.Fatalf("expected line 1, got %d", toks[0].Span.Start.Line)
	}
	if toks[1].Span.Start.Line != 2 {
		t.Fatalf("expected line 2, got %d", toks[1].Span.Start.Line)
	}
}
