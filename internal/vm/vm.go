// Package vm executes a compiled lir.LirModule: a register-based bytecode
// interpreter grounded on the teacher's session/runtime split (internal
// compiler state wired to a small set of collaborator services — scheduler,
// tool dispatch, tracing, logging — passed in rather than reached for
// globally) and on gmofishsauce-wut4/emul's switch-dispatched instruction
// loop for the bytecode-execution shape itself, since Conduit has no direct
// analogue for an ISA interpreter.
package vm

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/lumen-lang/lumen/internal/intrinsics"
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/lower"
	"github.com/lumen-lang/lumen/internal/scheduler"
	"github.com/lumen-lang/lumen/internal/tool"
	"github.com/lumen-lang/lumen/internal/trace"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// MaxFrames is the default call-depth ceiling a VM enforces absent an
// explicit config.RuntimeConfig.MaxFrames override, protecting the host
// process from an unbounded Lumen recursion rather than its own Go stack.
const MaxFrames = 256

// ToolCaller is the subset of tool.Dispatcher the VM depends on, narrowed
// so tests can substitute a stub dispatcher without constructing a full
// Registry/GrantLookup/ProviderBinding wiring.
type ToolCaller interface {
	Call(ctx context.Context, toolAlias, domain, input string) (string, *tool.ToolError)
}

// VM interprets one loaded lir.LirModule. Every running fiber (the top-level
// call plus anything Spawn starts) shares the same VM, the same module, and
// the same collaborator services; only register files and handler stacks
// are per-fiber.
type VM struct {
	mod   *lir.LirModule
	sched *scheduler.Scheduler
	tools ToolCaller
	trace *trace.Sink
	log   *zap.Logger

	maxFrames int

	policies map[string]tool.Policy

	jit      Backend
	hotMu    sync.Mutex
	hits     map[string]int
	compiled map[string]CompiledCell

	mu      sync.Mutex
	futures map[string]*scheduler.Future
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithMaxFrames overrides the call-depth ceiling (config.RuntimeConfig.MaxFrames).
func WithMaxFrames(n int) Option {
	return func(v *VM) {
		if n > 0 {
			v.maxFrames = n
		}
	}
}

// WithLogger threads an explicit *zap.Logger, never a package-global one
// (matching the teacher's explicit-logger-injection convention).
func WithLogger(l *zap.Logger) Option {
	return func(v *VM) {
		if l != nil {
			v.log = l
		}
	}
}

// New builds a VM over mod, wiring sched/tools/trace as its effect
// boundary. GrantLookup is built once here by flattening mod.Policies
// (see flattenPolicies's doc comment for the scope-collapsing rationale).
func New(mod *lir.LirModule, sched *scheduler.Scheduler, tools ToolCaller, sink *trace.Sink, opts ...Option) *VM {
	v := &VM{
		mod:       mod,
		sched:     sched,
		tools:     tools,
		trace:     sink,
		log:       zap.NewNop(),
		maxFrames: MaxFrames,
		policies:  flattenPolicies(mod.Policies),
		hits:      map[string]int{},
		compiled:  map[string]CompiledCell{},
		futures:   map[string]*scheduler.Future{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// flattenPolicies collapses lir.GrantPolicy's scope-keyed shape into a
// single tool-alias-keyed map. The LIR format carries no call-site scope at
// all (OpToolCall has only an alias and an args register — see
// DESIGN.md), so per-scope policy resolution isn't reconstructable at this
// layer; global-scope entries win outright, and any scope's entry fills a
// tool alias the global scope left unset, which is the closest a
// scope-blind dispatcher can get to "most permissive wins" without
// silently granting something every scope actually restricted.
func flattenPolicies(policies []lir.GrantPolicy) map[string]tool.Policy {
	const globalScope = ""
	out := map[string]tool.Policy{}
	for _, p := range policies {
		if p.Scope != globalScope {
			continue
		}
		out[p.Tool] = tool.Policy(p.Constraints)
	}
	for _, p := range policies {
		if _, ok := out[p.Tool]; !ok {
			out[p.Tool] = tool.Policy(p.Constraints)
		}
	}
	return out
}

func (v *VM) grantLookup(toolAlias string) (tool.Policy, bool) {
	p, ok := v.policies[toolAlias]
	return p, ok
}

// frame is one cell activation: its own register file, program counter,
// and upvalue bindings shared (by pointer) with whatever closure spawned
// it.
type frame struct {
	cell      *lir.LirCell
	regs      []vmvalue.Value
	upvalues  []*vmvalue.Value
	pc        int
	iterators map[uint8]*iterState // ForPrep/ForIn cursor state, keyed by the subject register
}

// fiber is one logical thread of execution: the top-level Run call, or any
// Spawn'd branch. Handler installs (spec.md §4.8's dynamic-scope handler
// stack) are scoped to a fiber, not the whole VM, so concurrent branches
// each see only the handlers installed on their own call path.
type fiber struct {
	ctx      context.Context
	handlers []handlerSet
	depth    int
}

// handlerSet is one `handle H1, H2: ... end` block's installed handlers.
type handlerSet struct {
	closures []vmvalue.Value
}

// haltError is the dynamic-error carrier for an Op Halt; spec.md treats
// halt as an unrecoverable propagating error, not a Result, so it surfaces
// through Go's error channel all the way to Run's caller.
type haltError struct{ message string }

func (e *haltError) Error() string { return "halt: " + e.message }

// uncaughtPerformError reports a Perform whose (effect, op) no installed
// handler in the fiber's stack covers.
type uncaughtPerformError struct{ effect, op string }

func (e *uncaughtPerformError) Error() string {
	return fmt.Sprintf("uncaught perform: %s.%s", e.effect, e.op)
}

// stackOverflowError reports exceeding maxFrames.
type stackOverflowError struct{ limit int }

func (e *stackOverflowError) Error() string {
	return fmt.Sprintf("call stack exceeded %d frames", e.limit)
}

// Run calls the named top-level cell (a CellDecl, AgentDecl body, a
// process's compiled cell, or any other entry lowering registered under
// mod.Cells) with args and returns its result.
func (v *VM) Run(ctx context.Context, cellName string, args []vmvalue.Value) (vmvalue.Value, error) {
	cell := v.mod.CellByName(cellName)
	if cell == nil {
		return vmvalue.Null, fmt.Errorf("vm: no cell named %q", cellName)
	}
	f := &fiber{ctx: ctx}
	return v.callCell(f, cell, nil, args)
}

func (v *VM) callNamed(f *fiber, name string, args []vmvalue.Value) (vmvalue.Value, error) {
	cell := v.mod.CellByName(name)
	if cell == nil {
		return vmvalue.Null, fmt.Errorf("vm: no cell named %q", name)
	}
	return v.callCell(f, cell, nil, args)
}

// callCell pushes a new frame for cell and runs it to completion (a Return
// or Halt). upvalues is nil for a top-level named cell (lowering only ever
// emits an empty Upvalues table for those — see resolveCellRef) and
// non-nil for a Closure activation.
func (v *VM) callCell(f *fiber, cell *lir.LirCell, upvalues []*vmvalue.Value, args []vmvalue.Value) (vmvalue.Value, error) {
	f.depth++
	defer func() { f.depth-- }()
	if f.depth > v.maxFrames {
		return vmvalue.Null, &stackOverflowError{limit: v.maxFrames}
	}

	if fn, ok := v.jitLookup(cell); ok {
		if result, handled, err := fn(args); handled {
			return result, err
		}
	}

	regCount := cell.RegisterCount
	if regCount < cell.Params {
		regCount = cell.Params
	}
	regs := make([]vmvalue.Value, regCount)
	for i := 0; i < cell.Params && i < len(args); i++ {
		regs[i] = args[i]
	}
	fr := &frame{cell: cell, regs: regs, upvalues: upvalues}
	return v.exec(f, fr)
}

// CallClosure implements intrinsics.Caller: the handful of higher-order
// builtins (map/filter/reduce/...) call back into user closures through
// this, reusing the exact same callCell path Call/Intrinsic opcodes use.
func (v *VM) CallClosure(fiberCtx context.Context, fn vmvalue.Value, args []vmvalue.Value) (vmvalue.Value, error) {
	if fn.Kind != vmvalue.KClosure {
		return vmvalue.Null, fmt.Errorf("vm: cannot call non-closure value %s", fn.TypeOf())
	}
	cell := v.mod.CellByName(fn.Clo.CellName)
	if cell == nil {
		return vmvalue.Null, fmt.Errorf("vm: closure references unknown cell %q", fn.Clo.CellName)
	}
	return v.callCell(&fiber{ctx: fiberCtx}, cell, fn.Clo.Upvalues, args)
}

// exec runs fr from its current pc until a Return, Halt, or error. Test's
// skip-on-falsy convention, and the handful of opcodes that share it
// (NullCo), are the only places pc advances by anything other than 1 or a
// jump offset; every other instruction falls through to the loop's trailing
// fr.pc++.
func (v *VM) exec(f *fiber, fr *frame) (vmvalue.Value, error) {
	for {
		if fr.pc >= len(fr.cell.Instructions) {
			return vmvalue.Null, nil
		}
		ins := fr.cell.Instructions[fr.pc]

		switch ins.Op {
		case lir.OpJmp, lir.OpLoop, lir.OpBreak, lir.OpContinue:
			fr.pc += 1 + int(ins.Sax)
			continue

		case lir.OpTest:
			if truthy(fr.regs[ins.A]) {
				fr.pc++
			} else {
				fr.pc += 2
			}
			continue

		case lir.OpNullCo:
			// Mirrors Test's own skip rule against isNonNull(regs[B]), the
			// polarity `a ?? b` relies on (see lower/expr.go's
			// lowerNullCoalesce): falsy (null) skips the following Jmp.
			if fr.regs[ins.B].Kind != vmvalue.KNull {
				fr.pc++
			} else {
				fr.pc += 2
			}
			continue

		case lir.OpReturn, lir.OpResume:
			// Unused by lowering for Resume (resume(v) lowers straight to
			// Return — see lower/expr.go's lowerResume); handled identically
			// here for any future lowering path that emits it directly.
			return fr.regs[ins.A], nil

		case lir.OpHalt:
			return vmvalue.Null, &haltError{message: fr.regs[ins.A].String()}

		default:
			if err := v.step(f, fr, ins); err != nil {
				return vmvalue.Null, err
			}
			fr.pc++
		}
	}
}

// step executes every opcode that neither branches nor exits the frame,
// isolating the "ordinary" instructions from exec's control-flow opcodes.
func (v *VM) step(f *fiber, fr *frame, ins lir.Instruction) error {
	regs := fr.regs
	switch ins.Op {
	case lir.OpLoadK:
		val, err := v.loadConst(fr.cell.Constants[ins.Bx], fr)
		if err != nil {
			return err
		}
		regs[ins.A] = val

	case lir.OpLoadNil:
		regs[ins.A] = vmvalue.Null

	case lir.OpLoadBool:
		regs[ins.A] = vmvalue.Bool(ins.B != 0)

	case lir.OpLoadInt:
		// Unused by lowering (int literals always route through LoadK);
		// kept for a hand-assembled or future-lowered small-int fast path.
		regs[ins.A] = vmvalue.Int(int64(int8(ins.B)))

	case lir.OpMove:
		regs[ins.A] = regs[ins.B]

	case lir.OpNewList:
		regs[ins.A] = vmvalue.NewList(cloneRange(regs, ins.B, ins.C)...)
	case lir.OpNewSet:
		regs[ins.A] = vmvalue.NewSet(cloneRange(regs, ins.B, ins.C)...)
	case lir.OpNewTuple:
		regs[ins.A] = vmvalue.Value{Kind: vmvalue.KTuple, Tup: cloneRange(regs, ins.B, ins.C)}
	case lir.OpNewMap:
		regs[ins.A] = newMapFromPairs(cloneRange(regs, ins.B, uint8(2*int(ins.C))))
	case lir.OpNewRecord:
		return v.execNewRecord(fr, ins)
	case lir.OpNewUnion:
		return v.execNewUnion(fr, ins)

	case lir.OpGetField:
		val, err := getField(regs[ins.B], regs[ins.C].S)
		if err != nil {
			return err
		}
		regs[ins.A] = val
	case lir.OpSetField:
		updated, err := setField(regs[ins.A], regs[ins.B].S, regs[ins.C])
		if err != nil {
			return err
		}
		regs[ins.A] = updated
	case lir.OpGetIndex:
		val, err := getIndex(regs[ins.B], regs[ins.C])
		if err != nil {
			return err
		}
		regs[ins.A] = val
	case lir.OpSetIndex:
		updated, err := setIndex(regs[ins.A], regs[ins.B], regs[ins.C])
		if err != nil {
			return err
		}
		regs[ins.A] = updated
	case lir.OpGetTuple:
		val, err := getTupleIndex(regs[ins.B], int(ins.C))
		if err != nil {
			return err
		}
		regs[ins.A] = val
	case lir.OpAppend:
		updated, err := appendValue(regs[ins.B], regs[ins.C])
		if err != nil {
			return err
		}
		regs[ins.A] = updated

	case lir.OpAdd:
		regs[ins.A] = vmvalue.Add(regs[ins.B], regs[ins.C])
	case lir.OpSub:
		regs[ins.A] = vmvalue.Sub(regs[ins.B], regs[ins.C])
	case lir.OpMul:
		regs[ins.A] = vmvalue.Mul(regs[ins.B], regs[ins.C])
	case lir.OpDiv:
		regs[ins.A] = vmvalue.Div(regs[ins.B], regs[ins.C])
	case lir.OpFloorDiv:
		regs[ins.A] = vmvalue.FloorDiv(regs[ins.B], regs[ins.C])
	case lir.OpMod:
		regs[ins.A] = vmvalue.Mod(regs[ins.B], regs[ins.C])
	case lir.OpPow:
		regs[ins.A] = vmvalue.Pow(regs[ins.B], regs[ins.C])
	case lir.OpNeg:
		regs[ins.A] = vmvalue.Neg(regs[ins.B])
	case lir.OpConcat:
		regs[ins.A] = vmvalue.Concat(regs[ins.B], regs[ins.C])
	case lir.OpBitAnd:
		regs[ins.A] = vmvalue.BitAnd(regs[ins.B], regs[ins.C])
	case lir.OpBitOr:
		regs[ins.A] = vmvalue.BitOr(regs[ins.B], regs[ins.C])
	case lir.OpBitXor:
		regs[ins.A] = vmvalue.BitXor(regs[ins.B], regs[ins.C])
	case lir.OpBitNot:
		regs[ins.A] = vmvalue.BitNot(regs[ins.B])
	case lir.OpShl:
		regs[ins.A] = vmvalue.Shl(regs[ins.B], regs[ins.C])
	case lir.OpShr:
		regs[ins.A] = vmvalue.Shr(regs[ins.B], regs[ins.C])

	case lir.OpEq:
		regs[ins.A] = vmvalue.Bool(vmvalue.Equal(regs[ins.B], regs[ins.C]))
	case lir.OpLt:
		regs[ins.A] = vmvalue.Bool(vmvalue.Compare(regs[ins.B], regs[ins.C]) < 0)
	case lir.OpLe:
		regs[ins.A] = vmvalue.Bool(vmvalue.Compare(regs[ins.B], regs[ins.C]) <= 0)
	case lir.OpIn:
		regs[ins.A] = vmvalue.Bool(vmvalue.In(regs[ins.B], regs[ins.C]))
	case lir.OpIs:
		regs[ins.A] = vmvalue.Bool(regs[ins.B].TypeOf() == regs[ins.C].S)

	case lir.OpNot:
		regs[ins.A] = vmvalue.Bool(!truthy(regs[ins.B]))
	case lir.OpAnd:
		regs[ins.A] = vmvalue.Bool(truthy(regs[ins.B]) && truthy(regs[ins.C]))
	case lir.OpOr:
		regs[ins.A] = vmvalue.Bool(truthy(regs[ins.B]) || truthy(regs[ins.C]))

	case lir.OpIsVariant:
		regs[ins.A] = vmvalue.Bool(isVariant(regs[ins.B], regs[ins.C].S))
	case lir.OpUnbox:
		val, err := getTupleIndex(regs[ins.B], 0)
		if err != nil {
			return err
		}
		regs[ins.A] = val

	case lir.OpForPrep:
		fr.prepareIterator(ins.A)
	case lir.OpForIn:
		fr.iterNext(ins.A, ins.B, ins.C)

	case lir.OpCall, lir.OpTailCall:
		return v.execCall(f, fr, ins)

	case lir.OpIntrinsic:
		return v.execIntrinsic(f, fr, ins)

	case lir.OpClosure:
		val, err := v.resolveCellRef(fr, fr.cell.Constants[ins.Bx].Str, true)
		if err != nil {
			return err
		}
		regs[ins.A] = val
	case lir.OpGetUpval:
		regs[ins.A] = *fr.upvalues[ins.B]
	case lir.OpSetUpval:
		*fr.upvalues[ins.A] = regs[ins.B]

	case lir.OpToolCall:
		return v.execToolCall(f, fr, ins)
	case lir.OpSchema:
		// No dedicated schema opcode is emitted by lowering today (schema
		// declarations are a checker-time artifact); treat as a no-op
		// pass-through for forward compatibility.
		_ = regs[ins.A]
	case lir.OpEmit:
		v.log.Info("emit", zap.String("value", regs[ins.A].String()))
	case lir.OpTraceRef:
		regs[ins.A] = vmvalue.NewTraceRef(regs[ins.B].S)

	case lir.OpAwait:
		return v.execAwait(f, fr, ins)
	case lir.OpSpawn:
		return v.execSpawn(f, fr, ins)

	case lir.OpPerform:
		return v.execPerform(f, fr, ins)
	case lir.OpHandlePush:
		v.execHandlePush(f, regs[ins.B])
	case lir.OpHandlePop:
		v.execHandlePop(f)

	default:
		return fmt.Errorf("vm: unimplemented opcode %s", ins.Op)
	}
	return nil
}

func truthy(v vmvalue.Value) bool { return v.Truthy() }

func cloneRange(regs []vmvalue.Value, base uint8, count uint8) []vmvalue.Value {
	out := make([]vmvalue.Value, count)
	copy(out, regs[base:int(base)+int(count)])
	return out
}

// loadConst realizes a constant-pool entry into a runtime Value. "cell"
// entries are resolved identically for LoadK and Closure (see
// resolveCellRef); everything else is a direct literal decode.
func (v *VM) loadConst(c lir.Value, fr *frame) (vmvalue.Value, error) {
	switch c.Kind {
	case "string":
		return vmvalue.Str(c.Str), nil
	case "int":
		return vmvalue.Int(c.Int), nil
	case "float":
		return vmvalue.Float(c.Float), nil
	case "bool":
		return vmvalue.Bool(c.Bool), nil
	case "bytes":
		return vmvalue.Bytes(c.Bytes), nil
	case "null":
		return vmvalue.Null, nil
	case "bigint":
		n, ok := new(big.Int).SetString(c.Str, 10)
		if !ok {
			return vmvalue.Null, fmt.Errorf("vm: malformed bigint constant %q", c.Str)
		}
		return vmvalue.BigInt(n), nil
	case "cell":
		return v.resolveCellRef(fr, c.Str, false)
	default:
		return vmvalue.Null, fmt.Errorf("vm: unknown constant kind %q", c.Kind)
	}
}

var _ intrinsics.Caller = (*vmCallerAdapter)(nil)

// vmCallerAdapter binds a fiber's context to the VM so intrinsics.Caller's
// two-argument signature (no context parameter) still reaches the right
// fiber for any nested Spawn/Await a higher-order builtin's callback might
// perform.
type vmCallerAdapter struct {
	v   *VM
	ctx context.Context
}

func (c *vmCallerAdapter) CallClosure(fn vmvalue.Value, args []vmvalue.Value) (vmvalue.Value, error) {
	return c.v.CallClosure(c.ctx, fn, args)
}

func (v *VM) execIntrinsic(f *fiber, fr *frame, ins lir.Instruction) error {
	id, argCount := lower.DecodeIntrinsic(ins.Bx)
	args := make([]vmvalue.Value, argCount)
	for i := 0; i < argCount; i++ {
		args[i] = fr.regs[int(ins.A)+1+i]
	}
	result, err := intrinsics.Call(id, args, &vmCallerAdapter{v: v, ctx: f.ctx})
	if err != nil {
		return err
	}
	fr.regs[ins.A] = result
	return nil
}
