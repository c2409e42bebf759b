package rvm

import (
	"github.com/corepolicy/rvm/internal/compiler"
	"github.com/corepolicy/rvm/internal/diag"
	"github.com/corepolicy/rvm/internal/source"
	"github.com/corepolicy/rvm/internal/value"
)

// run drives the fetch-decode-execute loop until the top-level frame
// finishes, the VM suspends on HostAwait, or an error/cancellation
// aborts the run. It resumes in place when called again after Resume
// writes a host answer into the pending frame.
func (vm *VM) run() ExecutionState {
	for len(vm.frames) > 0 {
		fr := vm.frames[len(vm.frames)-1]

		if fr.pc >= fr.endPC {
			vm.finishFrame(fr, assembleResults(vm.program.Rules[fr.ruleIndex].Kind, fr.results))
			continue
		}

		if err := vm.enforceLimit(); err != nil {
			vm.state = ExecutionState{Kind: ErrorState, Err: err}
			return vm.state
		}

		instr := vm.program.Instructions[fr.pc]
		span := vm.program.Spans[fr.pc]
		fr.pc++
		vm.instrCount++

		switch instr.Op() {
		case compiler.OpNop:

		case compiler.OpLoadConst:
			fr.regs[instr.A()] = vm.program.Literals[instr.B16()]
		case compiler.OpLoadNull:
			fr.regs[instr.A()] = value.Null()
		case compiler.OpLoadUndef:
			fr.regs[instr.A()] = value.Undefined()
		case compiler.OpLoadBoolTrue:
			fr.regs[instr.A()] = value.Bool(true)
		case compiler.OpLoadBoolFalse:
			fr.regs[instr.A()] = value.Bool(false)
		case compiler.OpLoadInput:
			fr.regs[instr.A()] = vm.input
		case compiler.OpLoadData:
			fr.regs[instr.A()] = vm.data

		case compiler.OpMove:
			fr.regs[instr.A()] = fr.regs[instr.Bhi()]

		case compiler.OpIndex:
			fr.regs[instr.A()] = value.Index(fr.regs[instr.Bhi()], fr.regs[instr.Blo()])

		case compiler.OpArrayNew:
			fr.regs[instr.A()] = value.NewArray(nil)
		case compiler.OpArrayAppend:
			dest := instr.Bhi()
			arr, _ := fr.regs[dest].AsArray()
			fr.regs[dest] = value.NewArray(append(append([]value.Value{}, arr...), fr.regs[instr.Blo()]))
		case compiler.OpSetNew:
			fr.regs[instr.A()] = value.NewSet(nil)
		case compiler.OpSetAdd:
			dest := instr.Bhi()
			s, _ := fr.regs[dest].AsSet()
			fr.regs[dest] = value.NewSet(append(append([]value.Value{}, s.Items()...), fr.regs[instr.Blo()]))
		case compiler.OpObjectNew:
			fr.regs[instr.A()] = value.NewObject(nil)
		case compiler.OpObjectSet:
			oi := vm.program.ObjectSetInfos[instr.B16()]
			o, _ := fr.regs[instr.A()].AsObject()
			pairs := append(append([]value.Pair{}, o.Pairs()...), value.Pair{Key: fr.regs[oi.KeyReg], Value: fr.regs[oi.ValueReg]})
			fr.regs[instr.A()] = value.NewObject(pairs)

		case compiler.OpAdd:
			if !vm.binOp(fr, instr, span, value.Add) {
				return vm.state
			}
		case compiler.OpSub:
			if !vm.binOp(fr, instr, span, value.Sub) {
				return vm.state
			}
		case compiler.OpMul:
			if !vm.binOp(fr, instr, span, value.Mul) {
				return vm.state
			}
		case compiler.OpDiv:
			if !vm.binOp(fr, instr, span, value.Div) {
				return vm.state
			}
		case compiler.OpMod:
			if !vm.binOp(fr, instr, span, value.Mod) {
				return vm.state
			}
		case compiler.OpSetUnion:
			if !vm.binOp(fr, instr, span, value.Union) {
				return vm.state
			}
		case compiler.OpSetIntersect:
			if !vm.binOp(fr, instr, span, value.Intersect) {
				return vm.state
			}

		case compiler.OpEq:
			fr.regs[instr.A()] = compareOp(fr.regs[instr.Bhi()], fr.regs[instr.Blo()], func(c int) bool { return c == 0 })
		case compiler.OpNe:
			fr.regs[instr.A()] = compareOp(fr.regs[instr.Bhi()], fr.regs[instr.Blo()], func(c int) bool { return c != 0 })
		case compiler.OpLt:
			fr.regs[instr.A()] = compareOp(fr.regs[instr.Bhi()], fr.regs[instr.Blo()], func(c int) bool { return c < 0 })
		case compiler.OpLe:
			fr.regs[instr.A()] = compareOp(fr.regs[instr.Bhi()], fr.regs[instr.Blo()], func(c int) bool { return c <= 0 })
		case compiler.OpGt:
			fr.regs[instr.A()] = compareOp(fr.regs[instr.Bhi()], fr.regs[instr.Blo()], func(c int) bool { return c > 0 })
		case compiler.OpGe:
			fr.regs[instr.A()] = compareOp(fr.regs[instr.Bhi()], fr.regs[instr.Blo()], func(c int) bool { return c >= 0 })

		case compiler.OpNot:
			v := fr.regs[instr.Bhi()]
			if v.IsUndefined() {
				fr.regs[instr.A()] = value.Undefined()
			} else {
				fr.regs[instr.A()] = value.Bool(!v.Truthy())
			}

		case compiler.OpJump:
			fr.pc = int(instr.B16())
		case compiler.OpJumpIfFalsy:
			if !fr.regs[instr.A()].Truthy() {
				fr.pc = int(instr.B16())
			}
		case compiler.OpJumpIfUndefined:
			if fr.regs[instr.A()].IsUndefined() {
				fr.pc = int(instr.B16())
			}

		case compiler.OpAssertTrue:
			b, ok := fr.regs[instr.A()].AsBool()
			if !ok || !b {
				vm.failAssertion(fr)
			}
		case compiler.OpAssertDefined:
			if fr.regs[instr.A()].IsUndefined() {
				vm.failAssertion(fr)
			}
		case compiler.OpMatchLiteral:
			lit := vm.program.Literals[instr.B16()]
			if !value.Equal(fr.regs[instr.A()], lit) {
				vm.failAssertion(fr)
			}

		case compiler.OpCallRule:
			vm.execCallRule(fr, instr)

		case compiler.OpCallBuiltin:
			if !vm.execCallBuiltin(fr, instr, span) {
				return vm.state
			}

		case compiler.OpLoopStart:
			vm.execLoopStart(fr, instr)
		case compiler.OpLoopNext:
			vm.execLoopNext(fr, instr)

		case compiler.OpHostAwait:
			if !vm.execHostAwait(fr, instr, span) {
				return vm.state
			}

		case compiler.OpRuleReturn:
			vm.execRuleReturn(fr, instr.A())

		case compiler.OpReturn:
			vm.finishFrame(fr, fr.regs[instr.A()])

		case compiler.OpHalt:
			vm.state = ExecutionState{Kind: Completed, Result: assembleResults(vm.program.Rules[fr.ruleIndex].Kind, fr.results)}
			return vm.state

		default:
			return vm.runtimeError(span, diag.KindRuntime, "unimplemented opcode %s", instr.Op())
		}
	}
	return vm.state
}

// binOp applies a value.Value binary operator, propagating Undefined
// per spec §4.5 and turning a genuine type mismatch / div-by-zero into
// a hard runtime error (spec §7: these are not "the rule fails", they
// are malformed policy/data and abort the evaluation). Returns false
// if the run must stop (vm.state already holds the error).
func (vm *VM) binOp(fr *frame, instr compiler.Instruction, span source.Span, op func(value.Value, value.Value) (value.Value, error)) bool {
	a, b := fr.regs[instr.Bhi()], fr.regs[instr.Blo()]
	result, err := op(a, b)
	switch err {
	case nil:
		fr.regs[instr.A()] = result
		return true
	case value.ErrUndefinedOperand:
		fr.regs[instr.A()] = value.Undefined()
		return true
	default:
		vm.runtimeError(span, diag.KindRuntime, "%v", err)
		return false
	}
}
