// Package analyzer implements the semantic passes that run between
// parsing and compilation (spec §4.3): function-table construction,
// rule dependency graph + scheduling, and binding-plan synthesis for
// destructuring patterns.
//
// Grounded on the teacher's internal/semantic: the same multi-pass
// architecture (a Pass interface run in sequence by a PassManager,
// each pass annotating a shared Context rather than mutating the AST,
// errors accumulated rather than aborting at the first pass) — applied
// to this language's rule graph and binding plans instead of DWScript's
// symbol tables and type checking.
package analyzer

import (
	"fmt"

	"github.com/corepolicy/rvm/internal/ast"
	"github.com/corepolicy/rvm/internal/diag"
)

// Pass is a single semantic-analysis stage.
type Pass interface {
	Name() string
	Run(mod *ast.Module, ctx *Context) error
}

// PassManager runs passes in order, stopping early only on a fatal
// (non-semantic) internal error.
type PassManager struct {
	passes []Pass
}

func NewPassManager(passes ...Pass) *PassManager {
	return &PassManager{passes: passes}
}

func (pm *PassManager) AddPass(p Pass) { pm.passes = append(pm.passes, p) }

func (pm *PassManager) RunAll(mod *ast.Module, ctx *Context) error {
	for _, p := range pm.passes {
		if err := p.Run(mod, ctx); err != nil {
			return err
		}
	}
	return nil
}

// Context is the shared state threaded through every pass.
type Context struct {
	Functions *FunctionTable
	Graph     *RuleGraph
	Bindings  map[*ast.Rule][]*BindingPlan // per-rule synthesized binding plans, body-literal order

	Diagnostics []diag.Diagnostic
}

func NewContext() *Context {
	return &Context{Bindings: make(map[*ast.Rule][]*BindingPlan)}
}

func (c *Context) errorf(kind diag.Kind, span ast.Node, format string, args ...interface{}) {
	c.Diagnostics = append(c.Diagnostics, diag.Diagnostic{
		Severity: diag.SeverityError,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Span:     span.Span(),
	})
}

func (c *Context) HasErrors() bool {
	for _, d := range c.Diagnostics {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}

// Analyze runs the standard pass pipeline (function table, then
// dependency graph/scheduling, then binding-plan synthesis) and
// returns the populated Context.
func Analyze(mod *ast.Module) *Context {
	ctx := NewContext()
	pm := NewPassManager(
		&FunctionTablePass{},
		&RuleGraphPass{},
		&BindingPlanPass{},
	)
	_ = pm.RunAll(mod, ctx) // passes never return a fatal error in this analyzer
	return ctx
}
