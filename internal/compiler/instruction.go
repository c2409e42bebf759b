// Package compiler lowers an analyzed *ast.Module into a register-based
// Program (spec §4.4/§6.4): bytecode instructions, a literal pool, a
// rule-info table, and side tables for the wide operands that don't fit
// a fixed-width instruction word.
//
// Grounded on the teacher's internal/bytecode: the same 32-bit
// fixed-width instruction idea ("Format: [8-bit opcode][8-bit A][16-bit
// B]", see instruction.go's doc comment) and OpCode-as-byte enumeration
// — adapted from its stack-machine opcode set to a register machine's,
// and from its single literal/local/global slot model to this
// language's register file + rule-info + side-table layout.
package compiler

// OpCode identifies a register-machine instruction.
type OpCode byte

const (
	OpNop OpCode = iota

	// Loads. A = dest register, B16 = literal-pool index (OpLoadConst)
	// or unused (OpLoadNull/OpLoadUndef/OpLoadInput/OpLoadData).
	OpLoadConst
	OpLoadNull
	OpLoadUndef
	OpLoadBoolTrue
	OpLoadBoolFalse
	// OpLoadInput/OpLoadData load the VM's current input/data document
	// (spec §6.4's LoadInput/LoadData) into A. `input`/`data` are not
	// ordinary rule references — every module sees the same live
	// documents the host installed via set_input/add_data — so these
	// get dedicated opcodes instead of going through OpCallRule.
	OpLoadInput
	OpLoadData

	// OpMove copies Bhi -> A.
	OpMove

	// OpIndex: A = dest, Bhi = collection register, Blo = key register.
	OpIndex

	// Collection construction. A = dest register (fresh empty
	// collection); array/set append ops use Bhi as the collection
	// register and Blo as the value register (object needs a side-table
	// entry for key+value so it instead uses B16 as an instruction_data
	// index).
	OpArrayNew
	OpArrayAppend // Bhi = dest register (mutated in place), Blo = value register
	OpSetNew
	OpSetAdd // Bhi = dest register, Blo = value register
	OpObjectNew
	OpObjectSet // A = dest register (mutated in place), B16 = instruction_data index of {key, value registers}

	// Arithmetic/comparison. A = dest, Bhi = left, Blo = right.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpSetUnion
	OpSetIntersect

	// OpNot: A = dest, Bhi = operand.
	OpNot

	// Control flow. B16 = absolute instruction index to jump to. Not
	// currently emitted by the compiler (loops carry their own absolute
	// targets in LoopInfo, and the language has no surface if/else or
	// short-circuit boolean operator that would need a bare jump) but
	// kept in the instruction set for a future lowering that needs one.
	OpJump             // B16 = target
	OpJumpIfFalsy      // A = condition register, B16 = target
	OpJumpIfUndefined  // A = register to test, B16 = target

	// OpAssertTrue: A = register; if not exactly Bool(true), unwind the
	// current rule body (spec §4.5's AssertCondition).
	OpAssertTrue
	// OpAssertDefined: A = register; if Undefined, unwind the current
	// rule body (spec §4.5's AssertNonUndefined).
	OpAssertDefined

	// OpMatchLiteral: A = register holding the candidate value, B16 =
	// literal-pool index; unwinds the current rule body if unequal.
	OpMatchLiteral

	// OpCallRule: A = dest register, B16 = instruction_data index of a
	// CallInfo{RuleIndex, ArgRegisters}.
	OpCallRule
	// OpCallBuiltin: A = dest register, B16 = instruction_data index of
	// a BuiltinCallInfo{BuiltinIndex, ArgRegisters}.
	OpCallBuiltin

	// Loop control (spec §4.4's loop hoisting). OpLoopStart begins
	// iteration over the collection in the side table's LoopInfo,
	// binding key/value registers per element; OpLoopNext advances to
	// the next element or, when exhausted, jumps to LoopInfo.EndPC
	// (§6.4's explicit loop-exit edge, replacing implicit iteration).
	OpLoopStart // B16 = instruction_data index of a LoopInfo
	OpLoopNext  // B16 = instruction_data index of the same LoopInfo

	// OpHostAwait: A = register holding the value to send to the host;
	// the resumed value is written back into A (spec §4.6/§5.3).
	OpHostAwait

	// OpRuleReturn ends the current rule body successfully. A =
	// register holding the produced value (the head's Value/Key/output
	// binding — absent/ignored for a plain boolean rule whose body
	// merely needs to succeed).
	OpRuleReturn
	// OpReturn ends function-call evaluation. A = result register.
	OpReturn
	// OpHalt stops the whole program (top-level query complete).
	OpHalt
)

var opNames = map[OpCode]string{
	OpNop: "nop", OpLoadConst: "load_const", OpLoadNull: "load_null",
	OpLoadUndef: "load_undef", OpLoadBoolTrue: "load_true", OpLoadBoolFalse: "load_false",
	OpLoadInput: "load_input", OpLoadData: "load_data",
	OpMove: "move", OpIndex: "index",
	OpArrayNew: "array_new", OpArrayAppend: "array_append",
	OpSetNew: "set_new", OpSetAdd: "set_add",
	OpObjectNew: "object_new", OpObjectSet: "object_set",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpSetUnion: "set_union", OpSetIntersect: "set_intersect",
	OpNot: "not",
	OpJump: "jump", OpJumpIfFalsy: "jump_if_falsy", OpJumpIfUndefined: "jump_if_undefined",
	OpAssertTrue: "assert_true", OpAssertDefined: "assert_defined",
	OpMatchLiteral: "match_literal",
	OpCallRule:     "call_rule", OpCallBuiltin: "call_builtin",
	OpLoopStart: "loop_start", OpLoopNext: "loop_next",
	OpHostAwait:  "host_await",
	OpRuleReturn: "rule_return", OpReturn: "return", OpHalt: "halt",
}

func (op OpCode) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "unknown"
}

// Instruction is the fixed-width instruction word: 8-bit opcode, 8-bit
// A, 16-bit B (itself addressable as two 8-bit halves Bhi/Blo, or as
// one 16-bit value via the B16 constructors) — mirroring the teacher's
// [opcode][A][B] layout.
type Instruction uint32

func encode(op OpCode, a, bhi, blo byte) Instruction {
	return Instruction(uint32(op)<<24 | uint32(a)<<16 | uint32(bhi)<<8 | uint32(blo))
}

// NewOp builds a no-operand instruction.
func NewOp(op OpCode) Instruction { return encode(op, 0, 0, 0) }

// NewA builds an instruction with a single register operand in A.
func NewA(op OpCode, a byte) Instruction { return encode(op, a, 0, 0) }

// NewAB builds an instruction with dest A and one source register in
// Bhi (the common "A = f(B)" shape: move, not, index's collection-only
// forms, single-operand casts).
func NewAB(op OpCode, a, b byte) Instruction { return encode(op, a, b, 0) }

// NewABC builds the full three-register shape: A = dest, Bhi = src1,
// Blo = src2 (binary arithmetic/comparison, OpIndex, append/add ops).
func NewABC(op OpCode, a, bhi, blo byte) Instruction { return encode(op, a, bhi, blo) }

// NewA16 builds an instruction with A plus one 16-bit operand packed
// across Bhi/Blo (literal-pool index, side-table index, jump target).
func NewA16(op OpCode, a byte, b16 uint16) Instruction {
	return encode(op, a, byte(b16>>8), byte(b16))
}

// New16 builds a no-A instruction with only a 16-bit operand (absolute
// jump targets for OpJump).
func New16(op OpCode, b16 uint16) Instruction { return NewA16(op, 0, b16) }

func (i Instruction) Op() OpCode { return OpCode(i >> 24) }
func (i Instruction) A() byte    { return byte(i >> 16) }
func (i Instruction) Bhi() byte  { return byte(i >> 8) }
func (i Instruction) Blo() byte  { return byte(i) }
func (i Instruction) B16() uint16 {
	return uint16(i.Bhi())<<8 | uint16(i.Blo())
}
