package vm

import (
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// CompiledCell is a natively-compiled replacement for one cell's
// interpreted body: same calling convention as callCell, minus the frame.
// Returning ok=false falls back to the interpreter for this invocation
// (e.g. a guard the compiled code can't handle), which is what lets a
// tiered backend deoptimize without any extra protocol.
type CompiledCell func(args []vmvalue.Value) (result vmvalue.Value, ok bool, err error)

// Backend is the tiered-JIT seam: the VM counts cell activations and, once
// a cell crosses Threshold, offers it to the backend exactly once. Compile
// returning ok=false marks the cell uncompilable and the VM never asks
// again. Concrete code generation is out of scope for this module; the
// interpreter is always the correct tier 0.
type Backend interface {
	Threshold() int
	Compile(cell *lir.LirCell) (CompiledCell, bool)
}

// WithJIT installs a tiered-compilation backend.
func WithJIT(b Backend) Option {
	return func(v *VM) { v.jit = b }
}

// jitLookup bumps the cell's hit counter and returns its compiled form if
// one exists or the backend produces one at this activation.
func (v *VM) jitLookup(cell *lir.LirCell) (CompiledCell, bool) {
	if v.jit == nil {
		return nil, false
	}
	v.hotMu.Lock()
	defer v.hotMu.Unlock()
	if fn, ok := v.compiled[cell.Name]; ok {
		return fn, fn != nil
	}
	v.hits[cell.Name]++
	if v.hits[cell.Name] < v.jit.Threshold() {
		return nil, false
	}
	fn, ok := v.jit.Compile(cell)
	if !ok {
		v.compiled[cell.Name] = nil // uncompilable; don't ask again
		return nil, false
	}
	v.compiled[cell.Name] = fn
	return fn, true
}
