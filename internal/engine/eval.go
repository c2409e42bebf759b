package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/corepolicy/rvm/internal/rvm"
	"github.com/corepolicy/rvm/internal/treewalk"
	"github.com/corepolicy/rvm/internal/value"
)

// newTreewalkEvaluator builds a fresh tree-walk oracle over the
// currently merged module set, wired with this Engine's data/input and
// builtins (spec §6.1: eval_rule/eval_query never go through the
// compiled VM, so they stay usable even for a policy set the host
// hasn't compiled yet).
func (e *Engine) newTreewalkEvaluator() (*treewalk.Evaluator, error) {
	mod, ctx, _, err := e.mergedModule()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	data, input, builtins, strict := e.data, e.input, e.builtins, e.strict
	log := e.log
	e.mu.Unlock()

	ev := treewalk.NewWithLogger(mod, ctx, builtins, log)
	ev.SetData(data)
	ev.SetInput(input)
	ev.SetStrict(strict)
	return ev, nil
}

// EvalRule evaluates a single rule's document via the tree-walk
// evaluator (spec §6.1's eval_rule).
func (e *Engine) EvalRule(path string) (value.Value, error) {
	ev, err := e.newTreewalkEvaluator()
	if err != nil {
		return value.Undefined(), err
	}
	return ev.EvalRule(path)
}

// EvalQuery evaluates an ad hoc query against the loaded policy set via
// the tree-walk evaluator (spec §6.1's eval_query).
func (e *Engine) EvalQuery(query string, sorted bool) (value.Value, error) {
	ev, err := e.newTreewalkEvaluator()
	if err != nil {
		return value.Undefined(), err
	}
	return ev.EvalQuery(query, sorted)
}

// EvalMany evaluates several entry points concurrently through the
// compiled register VM, one rvm.VM per goroutine sharing a single
// compiled Program (immutable once produced by CompileProgram, so
// concurrent VMs never race on it). Results are returned in the same
// order as entryPoints.
func (e *Engine) EvalMany(ctx context.Context, entryPoints []string) ([]value.Value, error) {
	prog, err := e.CompileProgram()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	data, input, builtins, log := e.data, e.input, e.builtins, e.log
	e.mu.Unlock()

	results := make([]value.Value, len(entryPoints))
	g, _ := errgroup.WithContext(ctx)
	for i, ep := range entryPoints {
		i, ep := i, ep
		g.Go(func() error {
			key := entryPointKey(ep)
			idx, ok := prog.EntryPoints[key]
			if !ok {
				return fmt.Errorf("engine: no such entry point %q", ep)
			}

			vm := rvm.NewWithLogger(builtins, log)
			vm.LoadProgram(prog)
			vm.SetData(data)
			vm.SetInput(input)

			state := vm.ExecuteEntryPointByIndex(idx)
			switch state.Kind {
			case rvm.Completed:
				results[i] = state.Result
				return nil
			case rvm.ErrorState:
				return fmt.Errorf("engine: evaluating %q: %w", ep, state.Err)
			default:
				return fmt.Errorf("engine: evaluating %q: unexpected VM state %v (host-await not supported by EvalMany)", ep, state.Kind)
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
