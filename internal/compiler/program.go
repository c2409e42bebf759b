package compiler

import (
	"github.com/corepolicy/rvm/internal/source"
	"github.com/corepolicy/rvm/internal/value"
)

// LoopMode selects how OpLoopStart/OpLoopNext quantify over a
// collection (spec §4.4): Any short-circuits on the first successful
// iteration, Every short-circuits on the first failing one, and
// ForEach always visits every element and accumulates into the
// enclosing comprehension/partial-rule result.
type LoopMode byte

const (
	LoopAny LoopMode = iota
	LoopEvery
	LoopForEach
)

func (m LoopMode) String() string {
	switch m {
	case LoopAny:
		return "any"
	case LoopEvery:
		return "every"
	case LoopForEach:
		return "for_each"
	default:
		return "unknown"
	}
}

// LoopInfo is the wide side-table payload for a loop-hoisted OpLoopStart
// / OpLoopNext pair.
type LoopInfo struct {
	Collection byte // register holding the collection being iterated
	KeyReg     byte // register the element's key/index is bound to (0xFF if absent)
	ValueReg   byte // register the element's value is bound to
	Mode       LoopMode
	// ResultReg, when not NoRegister, receives Bool(true) the moment an
	// Any-mode iteration's body completes without an assertion failure
	// (and Bool(false) if the loop exhausts without one) — the register
	// a membership test (`x in xs`) reads its answer from. Unused by
	// Every/ForEach, whose outcome is the loop's own success/failure.
	ResultReg byte
	BodyPC    int // instruction index of the loop body's first instruction
	EndPC     int // instruction index to jump to once iteration is exhausted
}

// NoRegister marks an absent optional register slot (e.g. LoopInfo's
// KeyReg for a value-only loop).
const NoRegister byte = 0xFF

// CallInfo is the wide side-table payload for OpCallRule.
type CallInfo struct {
	RuleIndex int
	Args      []byte // argument registers, in rule-parameter order
}

// BuiltinCallInfo is the wide side-table payload for OpCallBuiltin.
type BuiltinCallInfo struct {
	BuiltinIndex int
	Args         []byte
}

// ObjectSetInfo is the wide side-table payload for OpObjectSet.
type ObjectSetInfo struct {
	KeyReg   byte
	ValueReg byte
}

// RuleKind distinguishes how a rule's yielded OpRuleReturn value(s)
// assemble into its final document (spec §3.4/§4.5): a Complete or
// Function rule produces exactly one value (the first successful
// yield settles it — further yields from the same body, e.g. a
// `some` existential, are redundant proof of the same fact, not
// additional results); PartialSet/PartialObject accumulate every
// yield across a generator loop into a Set/Object.
type RuleKind byte

const (
	RuleComplete RuleKind = iota
	RulePartialSet
	RulePartialObject
	RuleFunction
)

// RuleInfo describes one compiled rule, disambiguated by name+arity
// (spec §12's "rule-info arity disambiguation in disassembly").
type RuleInfo struct {
	Name      string
	Arity     int // 0 for non-function rules
	Kind      RuleKind
	EntryPC   int
	EndPC     int // one past this rule's own last instruction (bounds a call's sub-run; does not include a chained Else rule's own range)
	NumParams int
	NumRegs   int // register-file size this rule's frame needs
	Span      source.Span
}

// Program is the compiled artifact spec §6.4 describes: a flat
// instruction stream plus the side arenas instructions index into.
// Program is also the unit (de)serialized for the cache/persistence
// path (spec §6.5) — see serialize.go.
type Program struct {
	Instructions []Instruction
	Spans        []source.Span // parallel to Instructions, for runtime diagnostics

	Literals []value.Value

	Rules []RuleInfo

	CallInfos        []CallInfo
	BuiltinCallInfos []BuiltinCallInfo
	LoopInfos        []LoopInfo
	ObjectSetInfos   []ObjectSetInfo

	EntryPoints map[string]int // fully-qualified rule path -> RuleInfo index
}

func NewProgram() *Program {
	return &Program{EntryPoints: make(map[string]int)}
}

func (p *Program) addLiteral(v value.Value) uint16 {
	p.Literals = append(p.Literals, v)
	return uint16(len(p.Literals) - 1)
}

func (p *Program) emit(instr Instruction, span source.Span) int {
	p.Instructions = append(p.Instructions, instr)
	p.Spans = append(p.Spans, span)
	return len(p.Instructions) - 1
}

func (p *Program) addCallInfo(ci CallInfo) uint16 {
	p.CallInfos = append(p.CallInfos, ci)
	return uint16(len(p.CallInfos) - 1)
}

func (p *Program) addBuiltinCallInfo(ci BuiltinCallInfo) uint16 {
	p.BuiltinCallInfos = append(p.BuiltinCallInfos, ci)
	return uint16(len(p.BuiltinCallInfos) - 1)
}

func (p *Program) addLoopInfo(li LoopInfo) uint16 {
	p.LoopInfos = append(p.LoopInfos, li)
	return uint16(len(p.LoopInfos) - 1)
}

func (p *Program) addObjectSetInfo(oi ObjectSetInfo) uint16 {
	p.ObjectSetInfos = append(p.ObjectSetInfos, oi)
	return uint16(len(p.ObjectSetInfos) - 1)
}
