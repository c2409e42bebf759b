package rvm

import (
	"strings"

	"github.com/corepolicy/rvm/internal/compiler"
	"github.com/corepolicy/rvm/internal/value"
)

// frame is one active rule call's activation record: spec §4.5's
// "call stack of activation records (rule/function return addresses
// and register windows)".
type frame struct {
	ruleIndex int
	pc        int
	endPC     int
	regs      []value.Value

	// loops is this frame's iteration stack (spec §4.5's "one frame per
	// active loop/comprehension") — scoped per call, since a callee's
	// loops must never interact with a caller's.
	loops []*loopFrame

	// destReg is the caller's register that receives this call's result;
	// NoRegister for the outermost (entry-point) frame, which has no
	// caller.
	destReg byte

	// cacheKey, when non-nil, is written into the VM's rule-call memo
	// once this frame finishes (spec §4.5's CallRule caching).
	cacheKey *ruleCacheKey

	// results accumulates every OpRuleReturn yield this call produces.
	// A Complete/Function rule has at most one (the first settles the
	// call); a PartialSet/PartialObject rule may have many, assembled
	// into a Set/Object when the frame finishes.
	results []value.Value
}

func (vm *VM) newFrame(ruleIndex int) *frame {
	info := vm.program.Rules[ruleIndex]
	regs := make([]value.Value, info.NumRegs)
	for i := range regs {
		regs[i] = value.Undefined()
	}
	return &frame{
		ruleIndex: ruleIndex,
		pc:        info.EntryPC,
		endPC:     info.EndPC,
		regs:      regs,
		destReg:   compiler.NoRegister,
	}
}

// loopFrame is one OpLoopStart/OpLoopNext pair's runtime state (spec
// §4.5's iteration stack, §4.4's LoopInfo side table).
type loopFrame struct {
	mode      compiler.LoopMode
	pairs     []kv // materialized once at OpLoopStart, in deterministic order (spec §5)
	cursor    int
	keyReg    byte
	valueReg  byte
	resultReg byte // NoRegister unless mode == LoopAny
	bodyPC    int
	endPC     int
	nextPC    int // the position of this loop's own OpLoopNext instruction

	// lastIterFailed distinguishes reaching OpLoopNext by normal
	// fallthrough (the iteration's body fully succeeded) from reaching
	// it via an assertion-failure unwind jump (the iteration failed and
	// is being skipped) — spec §4.5's "Any exits at first successful
	// iteration" / "ForEach... failures... do not abort the loop".
	lastIterFailed bool
}

// kv is one iterated element: for an array, key is its index; for a
// set, key equals value (sets have no distinct key); for an object,
// key/value are the pair (spec §4.4's LoopInfo KeyReg/ValueReg).
type kv struct {
	key   value.Value
	value value.Value
}

// materialize builds a loop's deterministic element list (spec §5:
// "array/object by insertion order, set by the total value order").
// A non-collection (including Undefined) materializes to no elements,
// matching Undefined propagation — iterating nothing is indistinguishable
// from iterating an empty collection.
func materialize(v value.Value) []kv {
	switch v.Kind() {
	case value.KindArray:
		arr, _ := v.AsArray()
		pairs := make([]kv, len(arr))
		for i, e := range arr {
			pairs[i] = kv{key: value.IntValue(int64(i)), value: e}
		}
		return pairs
	case value.KindSet:
		s, _ := v.AsSet()
		items := s.Items()
		pairs := make([]kv, len(items))
		for i, e := range items {
			pairs[i] = kv{key: e, value: e}
		}
		return pairs
	case value.KindObject:
		o, _ := v.AsObject()
		ps := o.Pairs()
		pairs := make([]kv, len(ps))
		for i, p := range ps {
			pairs[i] = kv{key: p.Key, value: p.Value}
		}
		return pairs
	default:
		return nil
	}
}

// argsKey renders a function rule's argument tuple into a cache key
// (spec §4.5's "keyed by rule-index and by arguments for function
// rules"). Value.String() already totally determines a value's
// contents, so this is exact, not just a hash.
func argsKey(args []value.Value) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, "\x1f")
}

// assembleResults folds a finishing frame's accumulated OpRuleReturn
// yields into its rule's document shape (spec §3.4/§4.5): exactly one
// value for Complete/Function (Undefined if the body never produced
// one), a deduplicated Set for PartialSet, a merged Object for
// PartialObject — each yield of a partial-object rule is itself a
// one-pair Object (compileHeadValue's OpObjectNew/OpObjectSet), folded
// into the final document here.
func assembleResults(kind compiler.RuleKind, results []value.Value) value.Value {
	switch kind {
	case compiler.RulePartialSet:
		return value.NewSet(results)
	case compiler.RulePartialObject:
		var pairs []value.Pair
		for _, r := range results {
			if o, ok := r.AsObject(); ok {
				pairs = append(pairs, o.Pairs()...)
			}
		}
		return value.NewObject(pairs)
	default:
		if len(results) == 0 {
			return value.Undefined()
		}
		return results[0]
	}
}
