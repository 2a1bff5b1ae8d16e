package vm

import (
	"context"
	"fmt"

	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/scheduler"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// execSpawn starts the thunk closure at R[B] as a new scheduler task
// running in its own fiber (handler installs never cross a Spawn boundary
// — spec.md's effects are a call-stack concept, a spawned branch starts a
// fresh one) and leaves a Future handle at R[A].
func (v *VM) execSpawn(f *fiber, fr *frame, ins lir.Instruction) error {
	thunk := fr.regs[ins.B]
	if thunk.Kind != vmvalue.KClosure {
		return fmt.Errorf("vm: cannot spawn non-closure value %s", thunk.TypeOf())
	}
	cell := v.mod.CellByName(thunk.Clo.CellName)
	if cell == nil {
		return fmt.Errorf("vm: spawned closure references unknown cell %q", thunk.Clo.CellName)
	}
	upvalues := thunk.Clo.Upvalues

	fut := v.sched.Spawn(func(ctx context.Context) (vmvalue.Value, error) {
		return v.callCell(&fiber{ctx: ctx}, cell, upvalues, nil)
	})
	v.mu.Lock()
	v.futures[fut.ID] = fut
	v.mu.Unlock()
	fr.regs[ins.A] = fut.ToValue()
	return nil
}

// lookupFuture recovers the scheduler-side Future a vmvalue.FutureData
// handle refers to; vmvalue itself only carries the opaque ID (it cannot
// depend on internal/scheduler without an import cycle), so the VM keeps
// the ID->Future registry.
func (v *VM) lookupFuture(val vmvalue.Value) (*scheduler.Future, error) {
	if val.Kind != vmvalue.KFuture {
		return nil, fmt.Errorf("vm: expected a future value, got %s", val.TypeOf())
	}
	v.mu.Lock()
	fut, ok := v.futures[val.Future.ID]
	v.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("vm: unknown future %q", val.Future.ID)
	}
	return fut, nil
}

// execAwait implements both plain `await e` (lowerAwait emits a literal
// C=0, never a register lowering allocates — kindReg always comes from
// freshNamed, which never hands back register 0 by the time an Await can
// be reached) and the parallel/race/vote/select/timeout orchestration
// forms, where R[C] names the kind string and R[B] is a List of futures
// (or, for timeout, a 2-element [future, duration_ms] list).
func (v *VM) execAwait(f *fiber, fr *frame, ins lir.Instruction) error {
	if ins.C == 0 {
		fut, err := v.lookupFuture(fr.regs[ins.B])
		if err != nil {
			return err
		}
		select {
		case <-fut.Done():
		case <-f.ctx.Done():
			return f.ctx.Err()
		}
		result, ferr, cancelled := fut.Result()
		if cancelled {
			fr.regs[ins.A] = vmvalue.Null
			return nil
		}
		if ferr != nil {
			return ferr
		}
		fr.regs[ins.A] = result
		return nil
	}

	kind := fr.regs[ins.C].S
	list := fr.regs[ins.B]
	if list.Kind != vmvalue.KList {
		return fmt.Errorf("vm: await orchestration expects a list, got %s", list.TypeOf())
	}

	if kind == "timeout" {
		if len(list.List.Elems) != 2 {
			return fmt.Errorf("vm: timeout await expects [future, duration_ms], got %d elements", len(list.List.Elems))
		}
		fut, err := v.lookupFuture(list.List.Elems[0])
		if err != nil {
			return err
		}
		val, err := v.sched.Timeout(f.ctx, fut, list.List.Elems[1].I)
		if err != nil {
			return err
		}
		fr.regs[ins.A] = val
		return nil
	}

	futs := make([]*scheduler.Future, len(list.List.Elems))
	for i, el := range list.List.Elems {
		fut, err := v.lookupFuture(el)
		if err != nil {
			return err
		}
		futs[i] = fut
	}

	var (
		val vmvalue.Value
		err error
	)
	switch kind {
	case "parallel":
		var vals []vmvalue.Value
		vals, err = v.sched.Parallel(f.ctx, futs)
		if err == nil {
			val = vmvalue.NewList(vals...)
		}
	case "race":
		val, err = v.sched.Race(f.ctx, futs)
	case "vote":
		val, err = v.sched.Vote(f.ctx, futs)
	case "select":
		val, err = v.sched.Select(f.ctx, futs)
	default:
		return fmt.Errorf("vm: unknown await kind %q", kind)
	}
	if err != nil {
		return err
	}
	fr.regs[ins.A] = val
	return nil
}
