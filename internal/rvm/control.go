package rvm

import (
	"github.com/corepolicy/rvm/internal/compiler"
	"github.com/corepolicy/rvm/internal/diag"
	"github.com/corepolicy/rvm/internal/source"
	"github.com/corepolicy/rvm/internal/value"
)

// compareOp implements OpEq/Ne/Lt/Le/Gt/Ge: Undefined propagates (spec
// §4.5), otherwise rel is applied to value.Compare's total order.
func compareOp(a, b value.Value, rel func(c int) bool) value.Value {
	if a.IsUndefined() || b.IsUndefined() {
		return value.Undefined()
	}
	return value.Bool(rel(value.Compare(a, b)))
}

// execCallRule resolves OpCallRule against the memo cache first (spec
// §4.5's CallRule caching); on a miss it pushes a fresh callee frame
// and lets run's main loop execute it next — the caller's own frame
// only resumes once finishFrame pops the callee back off the stack.
func (vm *VM) execCallRule(fr *frame, instr compiler.Instruction) {
	ci := vm.program.CallInfos[instr.B16()]
	info := vm.program.Rules[ci.RuleIndex]

	args := make([]value.Value, len(ci.Args))
	for i, r := range ci.Args {
		args[i] = fr.regs[r]
	}

	key := ruleCacheKey{ruleIndex: ci.RuleIndex}
	if info.Arity > 0 {
		key.argsKey = argsKey(args)
	}
	if cached, ok := vm.ruleCache[key]; ok {
		fr.regs[instr.A()] = cached
		return
	}

	child := vm.newFrame(ci.RuleIndex)
	copy(child.regs, args)
	child.destReg = instr.A()
	child.cacheKey = &key
	vm.frames = append(vm.frames, child)
}

// execCallBuiltin dispatches OpCallBuiltin to the registered Builtins
// collaborator (spec §6.3). A builtin error aborts the whole run — the
// builtin contract itself already distinguishes "undefined" (returned
// as value.Undefined(), not an error) from a genuine failure.
func (vm *VM) execCallBuiltin(fr *frame, instr compiler.Instruction, span source.Span) bool {
	bi := vm.program.BuiltinCallInfos[instr.B16()]
	if vm.builtins == nil {
		vm.runtimeError(span, diag.KindUnknownBuiltin, "no builtins registered (builtin #%d)", bi.BuiltinIndex)
		return false
	}
	args := make([]value.Value, len(bi.Args))
	for i, r := range bi.Args {
		args[i] = fr.regs[r]
	}
	result, err := vm.builtins.Call(bi.BuiltinIndex, args)
	if err != nil {
		vm.runtimeError(span, diag.KindBuiltin, "builtin #%d: %v", bi.BuiltinIndex, err)
		return false
	}
	fr.regs[instr.A()] = result
	return true
}

// execLoopStart materializes the loop's collection and opens the first
// element, or, for an empty collection, closes the loop immediately
// (Any's ResultReg settles false — spec §4.5's "Any exits at first
// successful iteration", so none ever succeeding is a clean false).
func (vm *VM) execLoopStart(fr *frame, instr compiler.Instruction) {
	idx := instr.B16()
	li := vm.program.LoopInfos[idx]
	pairs := materialize(fr.regs[li.Collection])

	lp := &loopFrame{
		mode: li.Mode, pairs: pairs,
		keyReg: li.KeyReg, valueReg: li.ValueReg, resultReg: li.ResultReg,
		bodyPC: li.BodyPC, endPC: li.EndPC, nextPC: li.EndPC - 1,
	}

	if len(pairs) == 0 {
		if li.Mode == compiler.LoopAny && li.ResultReg != compiler.NoRegister {
			fr.regs[li.ResultReg] = value.Bool(false)
		}
		fr.pc = li.EndPC
		return
	}

	fr.loops = append(fr.loops, lp)
	bindLoopElement(fr, lp)
	fr.pc = li.BodyPC
}

func bindLoopElement(fr *frame, lp *loopFrame) {
	elem := lp.pairs[lp.cursor]
	if lp.keyReg != compiler.NoRegister {
		fr.regs[lp.keyReg] = elem.key
	}
	fr.regs[lp.valueReg] = elem.value
}

// execLoopNext advances the topmost loop frame — or, for Any mode
// reached by a successful iteration, short-circuits (spec §4.5).
func (vm *VM) execLoopNext(fr *frame, instr compiler.Instruction) {
	if len(fr.loops) == 0 {
		return
	}
	lp := fr.loops[len(fr.loops)-1]

	if lp.mode == compiler.LoopAny && !lp.lastIterFailed {
		if lp.resultReg != compiler.NoRegister {
			fr.regs[lp.resultReg] = value.Bool(true)
		}
		fr.loops = fr.loops[:len(fr.loops)-1]
		fr.pc = lp.endPC
		return
	}

	lp.cursor++
	lp.lastIterFailed = false
	if lp.cursor < len(lp.pairs) {
		bindLoopElement(fr, lp)
		fr.pc = lp.bodyPC
		return
	}

	// Exhausted. Any never got a successful iteration; Every/ForEach
	// simply ran out of elements, which is success either way (an Every
	// whose body actually failed never reaches here — failAssertion
	// discards that frame outright before iteration exhausts).
	if lp.mode == compiler.LoopAny && lp.resultReg != compiler.NoRegister {
		fr.regs[lp.resultReg] = value.Bool(false)
	}
	fr.loops = fr.loops[:len(fr.loops)-1]
	fr.pc = lp.endPC
}

// failAssertion unwinds an AssertTrue/AssertDefined/MatchLiteral
// failure through the iteration stack (spec §4.5): every consecutive
// Every frame on top is discarded outright (its whole loop fails, and
// the failure keeps propagating outward past it); the first Any or
// ForEach frame found absorbs it, skipping just this element; if the
// stack empties with nothing absorbing, the whole rule body fails
// silently.
func (vm *VM) failAssertion(fr *frame) {
	for len(fr.loops) > 0 {
		lp := fr.loops[len(fr.loops)-1]
		if lp.mode == compiler.LoopEvery {
			fr.loops = fr.loops[:len(fr.loops)-1]
			continue
		}
		lp.lastIterFailed = true
		fr.pc = lp.nextPC
		return
	}
	// No absorbing frame: the whole body fails. Whatever this frame
	// already accumulated (partial-rule yields from earlier, successful
	// iterations) still stands; this failing attempt contributes nothing.
	vm.finishFrame(fr, assembleResults(vm.program.Rules[fr.ruleIndex].Kind, fr.results))
}

// execHostAwait sends fr.regs[instr.A()] to the host as the await's
// argument, identified by the string literal at instr.B16() (spec
// §4.5/§6.2). RunToCompletion consumes a pre-registered answer
// immediately; Suspendable parks the frame and reports Suspended,
// leaving fr.pc already past this instruction so Resume need only
// write the answer into A and let run() continue.
func (vm *VM) execHostAwait(fr *frame, instr compiler.Instruction, span source.Span) bool {
	idLit := vm.program.Literals[instr.B16()]
	id, _ := idLit.AsString()

	switch vm.mode {
	case Suspendable:
		vm.pendingAwait = &pendingHostAwait{id: id, destReg: instr.A()}
		vm.state = ExecutionState{Kind: Suspended, AwaitID: id, AwaitArg: fr.regs[instr.A()]}
		return false
	default: // RunToCompletion
		queue := vm.hostResponses[id]
		if len(queue) == 0 {
			vm.runtimeError(span, diag.KindHostAwait, "no pre-registered host-await response for %q", id)
			return false
		}
		fr.regs[instr.A()] = queue[0]
		vm.hostResponses[id] = queue[1:]
		return true
	}
}

// execRuleReturn records a yielded value. A Complete/Function rule
// reached from inside an active generator loop settles immediately —
// the first witness is proof enough, and any further iterations are
// abandoned (spec §4.5: a rule, once proven, doesn't need proving
// again). A PartialSet/PartialObject rule instead accumulates and,
// while a loop remains open, falls through naturally onto its own
// OpLoopNext to try the next element.
func (vm *VM) execRuleReturn(fr *frame, valueReg byte) {
	v := fr.regs[valueReg]
	info := vm.program.Rules[fr.ruleIndex]

	if len(fr.loops) > 0 && (info.Kind == compiler.RuleComplete || info.Kind == compiler.RuleFunction) {
		vm.finishFrame(fr, v)
		return
	}

	fr.results = append(fr.results, v)
	if len(fr.loops) == 0 {
		vm.finishFrame(fr, assembleResults(info.Kind, fr.results))
	}
	// else: fall through to the enclosing loop's OpLoopNext.
}

// finishFrame settles fr's result: memoizes it if fr is a CallRule
// callee, pops the frame, and either completes the whole run (fr was
// the entry-point frame) or writes the result into the caller's
// destReg and lets it continue (spec §5's "CallRule evaluates the
// callee to completion before the caller resumes").
func (vm *VM) finishFrame(fr *frame, result value.Value) {
	if fr.cacheKey != nil {
		vm.ruleCache[*fr.cacheKey] = result
	}
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) == 0 {
		vm.state = ExecutionState{Kind: Completed, Result: result}
		return
	}
	if fr.destReg != compiler.NoRegister {
		parent := vm.frames[len(vm.frames)-1]
		parent.regs[fr.destReg] = result
	}
}
