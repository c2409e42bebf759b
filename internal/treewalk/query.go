package treewalk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/lexer"
	"github.com/corepolicy/rvm/internal/parser"
	"github.com/corepolicy/rvm/internal/source"
	"github.com/corepolicy/rvm/internal/value"
)

// EvalQuery parses query as an ad hoc rule body and evaluates it
// against the evaluator's already-loaded module/data/input, returning
// every satisfying variable-binding set as an array of objects (spec
// §6.1's eval_query). sorted requests a deterministic ordering (by
// value's own total order, spec §3.1) instead of solution-discovery
// order — used by the CLI's `eval` subcommand and by interactive
// one-shot queries (spec §12).
func (e *Evaluator) EvalQuery(query string, sorted bool) (value.Value, error) {
	body, err := parseQueryBody(query)
	if err != nil {
		return value.Undefined(), err
	}

	var results []value.Value
	e.solveBody(body, nil, func(benv *env) bool {
		names := benv.names()
		pairs := make([]value.Pair, 0, len(names))
		for _, name := range names {
			v, _ := benv.lookup(name)
			pairs = append(pairs, value.Pair{Key: value.Str(name), Value: v})
		}
		results = append(results, value.NewObject(pairs))
		return false
	})

	if sorted {
		sort.Slice(results, func(i, j int) bool {
			return value.Compare(results[i], results[j]) < 0
		})
	}
	return value.NewArray(results), nil
}

// parseQueryBody wraps query in a synthetic single-rule module so the
// existing recursive-descent parser (which only knows how to parse
// whole modules) can lex/parse it, then lifts out just the rule body's
// literals. The synthetic module's own package/rule identity is
// discarded immediately after parsing — only the resulting AST nodes
// are evaluated, against this Evaluator's real module/data/input.
func parseQueryBody(query string) ([]ast.Literal, error) {
	text := "package __query__\n\n__result__ = true {\n" + query + "\n}\n"
	src := source.New("<query>", text)
	l := lexer.New(src)
	p := parser.New(l, "<query>")
	mod := p.ParseModule()
	if diags := p.Diagnostics(); len(diags) > 0 {
		msgs := make([]string, len(diags))
		for i, d := range diags {
			msgs[i] = d.Message
		}
		return nil, fmt.Errorf("treewalk: invalid query: %s", strings.Join(msgs, "; "))
	}
	if len(mod.Rules) == 0 {
		return nil, fmt.Errorf("treewalk: invalid query %q", query)
	}
	return mod.Rules[0].Body, nil
}
