package compiler

import (
	"fmt"
	"strings"
)

// Disassemble renders p as a human-readable instruction listing, one
// line per instruction, grouped under the rule each PC range belongs
// to. The format is deliberately plain (index, mnemonic, operands, and
// a decoded side-table payload where one applies) so it reads the same
// whether the caller is a developer running the disasm subcommand or a
// snapshot test comparing compiler output across a change.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	ruleAt := make(map[int]string, len(p.Rules))
	for _, r := range p.Rules {
		label := r.Name
		if r.Arity > 0 {
			label = fmt.Sprintf("%s/%d", r.Name, r.Arity)
		}
		ruleAt[r.EntryPC] = label
	}

	for pc, instr := range p.Instructions {
		if label, ok := ruleAt[pc]; ok {
			fmt.Fprintf(&sb, "; rule %s\n", label)
		}
		fmt.Fprintf(&sb, "%04d  %s\n", pc, p.disasmOne(pc, instr))
	}
	return sb.String()
}

func (p *Program) disasmOne(pc int, instr Instruction) string {
	op := instr.Op()
	switch op {
	case OpLoadConst:
		return fmt.Sprintf("%-14s r%d, const[%d] ; %s", op, instr.A(), instr.B16(), p.literalText(instr.B16()))
	case OpLoadNull, OpLoadUndef, OpLoadBoolTrue, OpLoadBoolFalse, OpLoadInput, OpLoadData:
		return fmt.Sprintf("%-14s r%d", op, instr.A())
	case OpMove, OpNot, OpArrayNew, OpSetNew, OpObjectNew:
		return fmt.Sprintf("%-14s r%d, r%d", op, instr.A(), instr.Bhi())
	case OpIndex, OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpSetUnion, OpSetIntersect:
		return fmt.Sprintf("%-14s r%d, r%d, r%d", op, instr.A(), instr.Bhi(), instr.Blo())
	case OpArrayAppend, OpSetAdd:
		return fmt.Sprintf("%-14s r%d, r%d", op, instr.Bhi(), instr.Blo())
	case OpObjectSet:
		idx := instr.B16()
		if int(idx) < len(p.ObjectSetInfos) {
			oi := p.ObjectSetInfos[idx]
			return fmt.Sprintf("%-14s r%d, {k=r%d, v=r%d}", op, instr.A(), oi.KeyReg, oi.ValueReg)
		}
		return fmt.Sprintf("%-14s r%d, objset[%d]", op, instr.A(), idx)
	case OpJump:
		return fmt.Sprintf("%-14s %04d", op, instr.B16())
	case OpJumpIfFalsy, OpJumpIfUndefined:
		return fmt.Sprintf("%-14s r%d", op, instr.A())
	case OpAssertTrue, OpAssertDefined, OpReturn, OpRuleReturn, OpHostAwait:
		return fmt.Sprintf("%-14s r%d", op, instr.A())
	case OpMatchLiteral:
		return fmt.Sprintf("%-14s r%d, const[%d] ; %s", op, instr.A(), instr.B16(), p.literalText(instr.B16()))
	case OpCallRule:
		idx := instr.B16()
		if int(idx) < len(p.CallInfos) {
			ci := p.CallInfos[idx]
			return fmt.Sprintf("%-14s r%d, %s", op, instr.A(), p.callInfoText(ci))
		}
		return fmt.Sprintf("%-14s r%d, callinfo[%d]", op, instr.A(), idx)
	case OpCallBuiltin:
		idx := instr.B16()
		if int(idx) < len(p.BuiltinCallInfos) {
			bi := p.BuiltinCallInfos[idx]
			return fmt.Sprintf("%-14s r%d, builtin#%d(%s)", op, instr.A(), bi.BuiltinIndex, regList(bi.Args))
		}
		return fmt.Sprintf("%-14s r%d, builtincall[%d]", op, instr.A(), idx)
	case OpLoopStart, OpLoopNext:
		idx := instr.B16()
		if int(idx) < len(p.LoopInfos) {
			li := p.LoopInfos[idx]
			return fmt.Sprintf("%-14s %s", op, p.loopInfoText(li))
		}
		return fmt.Sprintf("%-14s loop[%d]", op, idx)
	case OpHalt, OpNop:
		return op.String()
	default:
		return fmt.Sprintf("%-14s a=%d b=%d", op, instr.A(), instr.B16())
	}
}

func (p *Program) literalText(idx uint16) string {
	if int(idx) >= len(p.Literals) {
		return "?"
	}
	return p.Literals[idx].String()
}

func (p *Program) callInfoText(ci CallInfo) string {
	name := "?"
	if ci.RuleIndex < len(p.Rules) {
		ri := p.Rules[ci.RuleIndex]
		if ri.Arity > 0 {
			name = fmt.Sprintf("%s/%d", ri.Name, ri.Arity)
		} else {
			name = ri.Name
		}
	}
	return fmt.Sprintf("%s(%s)", name, regList(ci.Args))
}

func (p *Program) loopInfoText(li LoopInfo) string {
	key := "_"
	if li.KeyReg != NoRegister {
		key = fmt.Sprintf("r%d", li.KeyReg)
	}
	result := ""
	if li.ResultReg != NoRegister {
		result = fmt.Sprintf(" -> r%d", li.ResultReg)
	}
	return fmt.Sprintf("%s, %s in r%d [mode=%s, body=%04d, end=%04d]%s",
		key, fmt.Sprintf("r%d", li.ValueReg), li.Collection, li.Mode, li.BodyPC, li.EndPC, result)
}

func regList(regs []byte) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = fmt.Sprintf("r%d", r)
	}
	return strings.Join(parts, ", ")
}
