// Package source tracks named source text and byte/line/column spans over
// it so every later stage — lexer, parser, analyzer, compiler, VM — can
// report diagnostics against the original policy text.
package source

import "fmt"

// Position is a single point in a Source: a 1-based line, a rune-counted
// column (not byte offset, not display width — see lexer's column policy),
// and the byte offset from the start of the source.
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open byte range [Start,End) inside a named Source, plus
// the Start/End positions for rendering. Every AST node and every emitted
// instruction carries one.
type Span struct {
	File  string
	Start Position
	End   Position
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%s-%s", s.Start, s.End)
	}
	return fmt.Sprintf("%s:%s", s.File, s.Start)
}

// Join returns the smallest span covering both a and b. Used when an AST
// node's span must cover several sub-expressions (e.g. a binary expression
// spans from its left operand's start to its right operand's end).
func Join(a, b Span) Span {
	if a.File == "" {
		return b
	}
	if b.File == "" {
		return a
	}
	start, end := a.Start, a.End
	if b.Start.Offset < start.Offset {
		start = b.Start
	}
	if b.End.Offset > end.Offset {
		end = b.End
	}
	return Span{File: a.File, Start: start, End: end}
}

// Source holds a named source text so diagnostics can quote the offending
// line. Source is immutable once constructed.
type Source struct {
	Name string
	Text string

	lineOffsets []int // byte offset of the start of each line
}

// New indexes line start offsets once so Line(n) is O(1).
func New(name, text string) *Source {
	s := &Source{Name: name, Text: text, lineOffsets: []int{0}}
	for i, b := range []byte(text) {
		if b == '\n' {
			s.lineOffsets = append(s.lineOffsets, i+1)
		}
	}
	return s
}

// Line returns the text of the 1-based line n, without its trailing
// newline. Returns "" if n is out of range.
func (s *Source) Line(n int) string {
	if n < 1 || n > len(s.lineOffsets) {
		return ""
	}
	start := s.lineOffsets[n-1]
	end := len(s.Text)
	if n < len(s.lineOffsets) {
		end = s.lineOffsets[n] - 1
	}
	if end < start {
		end = start
	}
	for end > start && (s.Text[end-1] == '\r') {
		end--
	}
	return s.Text[start:end]
}
