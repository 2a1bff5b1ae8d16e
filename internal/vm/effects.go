package vm

import (
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// execHandlePush installs one `handle ...: end` block's handler closures
// onto the fiber's dynamic-scope stack (lower/stmt.go's lowerHandleStmt
// bundles them into a List ahead of the push).
func (v *VM) execHandlePush(f *fiber, list vmvalue.Value) {
	var closures []vmvalue.Value
	if list.Kind == vmvalue.KList {
		closures = append([]vmvalue.Value{}, list.List.Elems...)
	}
	f.handlers = append(f.handlers, handlerSet{closures: closures})
}

// execHandlePop removes the innermost installed handler set, run at a
// `handle` block's exit (lowerHandleStmt emits this unconditionally after
// the body, matching defer's "runs regardless of how the block exits").
func (v *VM) execHandlePop(f *fiber) {
	if len(f.handlers) == 0 {
		return
	}
	f.handlers = f.handlers[:len(f.handlers)-1]
}

// execPerform walks the fiber's handler stack innermost-first, looking for
// a handler whose dispatch cell declares a case for the performed
// (effect, op) pair (lir.LirCell.EffectHandlerMetas), and calls into that
// cell exactly as an ordinary call would. A handler's `resume(v)` lowers to
// a plain Return (lower/expr.go's lowerResume), so that call's own return
// value is the perform's result — no continuation object is ever
// materialized.
func (v *VM) execPerform(f *fiber, fr *frame, ins lir.Instruction) error {
	name := fr.regs[ins.B].S
	effect, op, ok := splitTag(name)
	if !ok {
		return &uncaughtPerformError{effect: name, op: ""}
	}
	args := fr.regs[ins.C]

	for i := len(f.handlers) - 1; i >= 0; i-- {
		for _, clo := range f.handlers[i].closures {
			if clo.Kind != vmvalue.KClosure {
				continue
			}
			cell := v.mod.CellByName(clo.Clo.CellName)
			if cell == nil {
				continue
			}
			for _, meta := range cell.EffectHandlerMetas {
				if meta.Effect != effect || meta.Op != op {
					continue
				}
				result, err := v.callCell(f, cell, clo.Clo.Upvalues, []vmvalue.Value{vmvalue.Str(op), args})
				if err != nil {
					return err
				}
				fr.regs[ins.A] = result
				return nil
			}
		}
	}
	return &uncaughtPerformError{effect: effect, op: op}
}
