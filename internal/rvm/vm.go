// Package rvm implements the register virtual machine spec §4.5
// describes: program counter, register file, call stack, iteration
// stack, and the two execution modes (run-to-completion and
// suspendable HostAwait) spec §5 requires of it.
//
// Grounded on the teacher's internal/bytecode VM (vm.go/vm_core.go): a
// frame-stack + switch-dispatch execution loop, builtins resolved
// through a small registered-function interface, and diagnostics that
// carry the offending span — adapted from its stack machine (push/pop)
// to this language's register machine (indexed reads/writes into a
// per-frame register file), and from exceptions/closures (which this
// language has none of) to Undefined-propagation and loop short-circuit
// semantics (spec §4.5).
package rvm

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/corepolicy/rvm/internal/compiler"
	"github.com/corepolicy/rvm/internal/diag"
	"github.com/corepolicy/rvm/internal/source"
	"github.com/corepolicy/rvm/internal/value"
)

// ExecutionMode selects how OpHostAwait behaves (spec §4.5/§6.2).
type ExecutionMode int

const (
	RunToCompletion ExecutionMode = iota
	Suspendable
)

func (m ExecutionMode) String() string {
	if m == Suspendable {
		return "suspendable"
	}
	return "run_to_completion"
}

// StateKind is the discriminant of ExecutionState (spec §6.2's
// Ready | Running | Suspended | Completed | Error).
type StateKind int

const (
	Ready StateKind = iota
	Running
	Suspended
	Completed
	ErrorState
)

func (k StateKind) String() string {
	switch k {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Completed:
		return "completed"
	case ErrorState:
		return "error"
	default:
		return "unknown"
	}
}

// ExecutionState is what ExecutionState()/Execute()/Resume() report.
// AwaitID/AwaitArg are only meaningful when Kind is Suspended; Result
// only when Kind is Completed; Err only when Kind is ErrorState.
type ExecutionState struct {
	Kind     StateKind
	Result   value.Value
	Err      error
	AwaitID  string
	AwaitArg value.Value
}

// Builtins is the VM-facing half of the builtin dispatch contract
// (spec §6.3): a registered builtin is addressed by index (the same
// index compiler.BuiltinResolver.Lookup handed out at compile time),
// not by name, so the VM never depends on internal/builtin directly —
// mirroring how the compiler depends only on BuiltinResolver.
type Builtins interface {
	Call(index int, args []value.Value) (value.Value, error)
}

// Limits bounds one evaluation (spec §5's enforce_limit hook). The
// zero Limits is unlimited.
type Limits struct {
	MaxInstructions int64
	Deadline        time.Time
}

func (l Limits) exceeded(instrCount int64, now time.Time) bool {
	if l.MaxInstructions > 0 && instrCount > l.MaxInstructions {
		return true
	}
	if !l.Deadline.IsZero() && now.After(l.Deadline) {
		return true
	}
	return false
}

// ruleCacheKey identifies a memoized CallRule result (spec §4.5's
// "CallRule caching... keyed by rule-index and by arguments for
// function rules").
type ruleCacheKey struct {
	ruleIndex int
	argsKey   string
}

// pendingHostAwait records where a Suspendable HostAwait parked,
// so Resume knows which register to write the host's answer into.
type pendingHostAwait struct {
	id      string
	destReg byte
}

// VM executes one compiler.Program at a time. Not goroutine-safe and
// not shareable: spec §5 says one thread owns one VM instance; a host
// wanting parallelism instantiates one VM per goroutine over the same
// immutable Program.
type VM struct {
	runID uuid.UUID
	log   hclog.Logger

	program  *compiler.Program
	data     value.Value
	input    value.Value
	builtins Builtins
	mode     ExecutionMode
	limits   Limits

	instrCount int64
	state      ExecutionState

	// hostResponses is RunToCompletion's pre-registered answer queue,
	// consumed FIFO per await id (spec §6.2's set_host_await_responses).
	hostResponses map[string][]value.Value
	ruleCache     map[ruleCacheKey]value.Value

	frames       []*frame
	pendingAwait *pendingHostAwait
}

// New returns a VM with no program loaded yet; LoadProgram before
// Execute. builtins may be nil for programs that never call one.
func New(builtins Builtins) *VM {
	return NewWithLogger(builtins, hclog.NewNullLogger())
}

// NewWithLogger is New with an explicit tracing sink (spec §10.2's
// structured-logging ambient stack, carried into the VM the same way
// the teacher wires an io.Writer into NewVMWithOutput).
func NewWithLogger(builtins Builtins, log hclog.Logger) *VM {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &VM{
		runID:         uuid.New(),
		log:           log,
		builtins:      builtins,
		data:          value.NewObject(nil),
		input:         value.NewObject(nil),
		mode:          RunToCompletion,
		hostResponses: make(map[string][]value.Value),
		ruleCache:     make(map[ruleCacheKey]value.Value),
		state:         ExecutionState{Kind: Ready},
	}
}

// RunID identifies this VM instance's current/last run, for hosts that
// correlate a Suspended state across execute/resume calls with logs.
func (vm *VM) RunID() uuid.UUID { return vm.runID }

// LoadProgram installs p and resets all run state (spec §6.2's
// load_program). The Program itself is never mutated.
func (vm *VM) LoadProgram(p *compiler.Program) {
	vm.program = p
	vm.resetRun()
}

func (vm *VM) SetData(v value.Value)              { vm.data = v }
func (vm *VM) SetInput(v value.Value)              { vm.input = v }
func (vm *VM) SetExecutionMode(mode ExecutionMode) { vm.mode = mode }
func (vm *VM) SetLimits(l Limits)                  { vm.limits = l }

// SetHostAwaitResponses pre-registers RunToCompletion mode's answers,
// keyed by await id; repeated awaits sharing an id consume the list in
// order (spec §6.2/§4.5).
func (vm *VM) SetHostAwaitResponses(responses map[string][]value.Value) {
	vm.hostResponses = make(map[string][]value.Value, len(responses))
	for id, vs := range responses {
		cp := make([]value.Value, len(vs))
		copy(cp, vs)
		vm.hostResponses[id] = cp
	}
}

// ExecutionState reports the VM's current state without advancing it.
func (vm *VM) ExecutionState() ExecutionState { return vm.state }

func (vm *VM) resetRun() {
	vm.instrCount = 0
	vm.frames = nil
	vm.pendingAwait = nil
	vm.ruleCache = make(map[ruleCacheKey]value.Value)
	vm.state = ExecutionState{Kind: Ready}
}

// Execute runs the program's first rule as the top-level query (spec
// §6.2's execute()).
func (vm *VM) Execute() ExecutionState {
	return vm.ExecuteEntryPointByIndex(0)
}

// ExecuteEntryPointByIndex runs Rules[i] as a zero-argument top-level
// query (spec §6.2's execute_entry_point_by_index).
func (vm *VM) ExecuteEntryPointByIndex(i int) ExecutionState {
	if vm.program == nil {
		return vm.fail(fmt.Errorf("rvm: no program loaded"))
	}
	if i < 0 || i >= len(vm.program.Rules) {
		return vm.fail(fmt.Errorf("rvm: entry point index %d out of range", i))
	}
	vm.resetRun()
	vm.log.Debug("rvm: execute", "run_id", vm.runID, "entry_point", i, "rule", vm.program.Rules[i].Name)
	vm.frames = append(vm.frames, vm.newFrame(i))
	vm.frames[0].destReg = compiler.NoRegister
	vm.state = ExecutionState{Kind: Running}
	return vm.run()
}

// Resume continues a Suspended HostAwait with the host's value (spec
// §6.2's resume(), §4.5's Suspendable HostAwait behavior).
func (vm *VM) Resume(v value.Value) ExecutionState {
	if vm.state.Kind != Suspended || vm.pendingAwait == nil || len(vm.frames) == 0 {
		return vm.fail(fmt.Errorf("rvm: resume called with no pending suspension"))
	}
	fr := vm.frames[len(vm.frames)-1]
	fr.regs[vm.pendingAwait.destReg] = v
	vm.log.Debug("rvm: resume", "run_id", vm.runID, "await_id", vm.pendingAwait.id)
	vm.pendingAwait = nil
	vm.state = ExecutionState{Kind: Running}
	return vm.run()
}

func (vm *VM) fail(err error) ExecutionState {
	vm.state = ExecutionState{Kind: ErrorState, Err: err}
	return vm.state
}

func (vm *VM) runtimeError(span source.Span, kind diag.Kind, format string, args ...any) ExecutionState {
	msg := fmt.Sprintf(format, args...)
	d := diag.Diagnostic{Severity: diag.SeverityError, Kind: kind, Message: msg, Span: span}
	vm.log.Error("rvm: runtime error", "run_id", vm.runID, "kind", kind, "message", msg)
	vm.state = ExecutionState{Kind: ErrorState, Err: d}
	return vm.state
}

func (vm *VM) enforceLimit() error {
	if vm.limits.exceeded(vm.instrCount, time.Now()) {
		return diag.Diagnostic{Severity: diag.SeverityError, Kind: diag.KindCancelled, Message: "rvm: execution limit exceeded"}
	}
	return nil
}
