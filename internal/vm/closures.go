package vm

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// resolveCellRef builds the Closure value a "cell" constant or an OpClosure
// resolves to, binding upvalues against the frame executing the reference.
// LoadK's bare-identifier form (isClosure false) only ever names a cell
// lowering built with an empty Upvalues table (top-level cells, agents,
// handlers); OpClosure's lambda/thunk form may need real captures. Both
// share this one path since the capture logic is identical either way.
func (v *VM) resolveCellRef(fr *frame, cellName string, isClosure bool) (vmvalue.Value, error) {
	cell := v.mod.CellByName(cellName)
	if cell == nil {
		return vmvalue.Null, fmt.Errorf("vm: reference to unknown cell %q", cellName)
	}
	if !isClosure && len(cell.Upvalues) != 0 {
		return vmvalue.Null, fmt.Errorf("vm: bare cell reference %q unexpectedly captures upvalues", cellName)
	}
	if len(cell.Upvalues) == 0 {
		return vmvalue.NewClosure(cellName, nil), nil
	}
	upvalues := make([]*vmvalue.Value, len(cell.Upvalues))
	for i, src := range cell.Upvalues {
		if src.FromParentLocal {
			upvalues[i] = &fr.regs[src.Index]
		} else {
			upvalues[i] = fr.upvalues[src.Index]
		}
	}
	return vmvalue.NewClosure(cellName, upvalues), nil
}

// execCall implements OpCall/OpTailCall's Lua-style convention: the callee
// sits at R[base], its arguments fill the contiguous run right after it,
// and the result overwrites R[base] itself (see lower/expr.go's
// emitCallValue). Lowering never actually emits a tail call today, so
// OpTailCall is routed here unchanged rather than given its own frame-reuse
// path.
func (v *VM) execCall(f *fiber, fr *frame, ins lir.Instruction) error {
	base := ins.A
	argCount := ins.B
	callee := fr.regs[base]
	if callee.Kind != vmvalue.KClosure {
		return fmt.Errorf("vm: cannot call non-closure value %s", callee.TypeOf())
	}
	cell := v.mod.CellByName(callee.Clo.CellName)
	if cell == nil {
		return fmt.Errorf("vm: closure references unknown cell %q", callee.Clo.CellName)
	}
	args := cloneRange(fr.regs, base+1, argCount)
	// Calling within the same fiber, not through CallClosure, so the
	// handler stack handle installed further up this call chain still
	// covers a Perform inside the callee.
	result, err := v.callCell(f, cell, callee.Clo.Upvalues, args)
	if err != nil {
		return err
	}
	fr.regs[base] = result
	return nil
}
