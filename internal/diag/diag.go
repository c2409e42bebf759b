// Package diag renders diagnostics the way every stage of the pipeline
// reports them: a span, a source line, a caret, and a message, per
// spec §7: `-->file:line:col\n<N> | <line>\n     ^\nerror: <message>`.
//
// Grounded on internal/errors' span+caret CompilerError from the teacher
// repo, generalized to the Diagnostic type shared by lexer, parser,
// analyzer, compiler and VM.
package diag

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"

	"github.com/corepolicy/rvm/internal/source"
)

// Severity classifies a diagnostic. Only Error severities are fatal to
// the affected stage (spec §7); Warning is informational.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Kind is a stable machine-readable error category, used by callers that
// need to branch on error identity (e.g. tests asserting on
// ArraySizeMismatch vs ArrayLengthMismatch).
type Kind string

const (
	KindLex               Kind = "lex"
	KindParse             Kind = "parse"
	KindPreviouslyDefined  Kind = "previously_defined"
	KindCycle              Kind = "cycle"
	KindUnknownFunction    Kind = "unknown_function"
	KindArityMismatch      Kind = "arity_mismatch"
	KindArraySizeMismatch  Kind = "array_size_mismatch"
	KindArrayLengthMismatch Kind = "array_length_mismatch"
	KindObjectKeyNotFound  Kind = "object_key_not_found"
	KindVariableRebind     Kind = "variable_already_defined"
	KindUnsupportedPattern Kind = "unsupported_default_pattern"
	KindRegisterOverflow   Kind = "register_overflow"
	KindUnsupportedWith    Kind = "unsupported_with"
	KindUnknownBuiltin     Kind = "unknown_builtin"
	KindMissingBindingPlan Kind = "missing_binding_plan"
	KindRuntime            Kind = "runtime"
	KindHostAwait          Kind = "host_await"
	KindCancelled          Kind = "cancelled"
	KindBuiltin            Kind = "builtin"
)

// Diagnostic is a single reportable problem, with an optional chain of
// related spans. The analyzer's cycle error does not fill Related: it
// names every rule participating in the cycle in its Message.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	Span     source.Span
	Related  []Diagnostic
}

func (d Diagnostic) Error() string { return d.Format(nil, false) }

// Format renders the diagnostic in the spec §7 shape. src may be nil if
// the caller only has a span and no indexed Source (the quoted line is
// then omitted). color enables ANSI highlighting, following the
// teacher's errors.Format(color bool) precedent.
func (d Diagnostic) Format(src *source.Source, color bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "-->%s:%d:%d\n", d.Span.File, d.Span.Start.Line, d.Span.Start.Column)

	if src != nil {
		line := src.Line(d.Span.Start.Line)
		lineNo := fmt.Sprintf("%d | ", d.Span.Start.Line)
		sb.WriteString(lineNo)
		sb.WriteString(line)
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat(" ", len(lineNo)+visualColumn(line, d.Span.Start.Column)-1))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}

	if color {
		sb.WriteString("\033[1m")
	}
	fmt.Fprintf(&sb, "%s: %s", d.Severity, d.Message)
	if color {
		sb.WriteString("\033[0m")
	}

	for _, r := range d.Related {
		sb.WriteString("\n  also: ")
		sb.WriteString(r.Format(nil, color))
	}

	return sb.String()
}

// visualColumn widens the caret position for east-asian-wide and
// fullwidth runes that precede the reported rune column. This is purely
// a cosmetic hint: the authoritative Column in Position stays a rune
// count (spec §4.1), this only makes the caret land under the right
// glyph in a typical terminal.
func visualColumn(line string, runeColumn int) int {
	col := 0
	i := 0
	for _, r := range line {
		i++
		if i >= runeColumn {
			break
		}
		col++
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			col++
		}
	}
	if col == 0 {
		return runeColumn
	}
	return col + 1
}

// List is a collection of diagnostics, formatted the way the teacher's
// FormatErrors aggregates multiple CompilerErrors.
type List []Diagnostic

func (l List) Error() string {
	if len(l) == 0 {
		return ""
	}
	if len(l) == 1 {
		return l[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d diagnostics:\n\n", len(l))
	for i, d := range l {
		fmt.Fprintf(&sb, "[%d/%d] %s\n", i+1, len(l), d.Error())
		if i < len(l)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// HasErrors reports whether any diagnostic in the list is an Error.
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
