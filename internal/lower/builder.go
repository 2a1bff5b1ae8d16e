package lower

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/checker"
	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/resolver"
	"github.com/lumen-lang/lumen/internal/source"
)

// builder lowers one cell/agent/handler-case/lambda body into a lir.LirCell.
// One builder exists per compiled cell; lambdas get a fresh child builder
// whose parent link lets upvalue capture chain outward through nested
// closures (spec.md §4.8 "Closures capture by reference").
type builder struct {
	mod    *lir.LirModule
	res    *resolver.Resolution
	env    *checker.Env
	diags  *diag.List
	parent *builder

	cell       *lir.LirCell
	regs       regalloc
	scopes     []map[string]uint8 // innermost last; name -> register
	constIdx   map[string]int     // dedupe key -> index into cell.Constants

	loopBreak    [][]int // stack of pending break-jump PCs, one slice per enclosing loop
	loopContinue [][]int

	upvalIdx map[string]uint8 // captured name -> this cell's upvalue slot

	constsTop map[string]lir.Value // module-level const name -> literal value

	defers [][]ast.Stmt // stack of deferred blocks registered in this cell body, inlined at every exit
}

// runDefers lowers every pending deferred block, most-recently-registered
// first, at a function-exit point (spec.md: defer bodies "run when the
// enclosing body exits... in reverse declaration order, regardless of how it
// exits"). Inlined per exit site rather than shared through a jump-to-
// epilogue, the simplest correct encoding given lowering is a single forward
// walk with no separate epilogue-merging pass.
func (b *builder) runDefers() {
	for i := len(b.defers) - 1; i >= 0; i-- {
		block := b.defers[i]
		mark := b.regs.mark()
		b.pushBlock()
		for _, s := range block {
			lowerStmt(b, s)
		}
		b.popBlock(mark)
	}
}

// lookupVariant reports whether name is a bare enum variant (e.g. "North",
// or "Ok" in "Ok(5)") and, if so, which enum declares it. Variant names
// never enter the resolver's top-level symbol table (only the enum type
// name does), so identifier/call lowering checks this after the ordinary
// local/upvalue/symbol lookups come up empty.
func (b *builder) lookupVariant(name string) (enum, variant string, ok bool) {
	for _, en := range b.env.Enums {
		for _, v := range en.Variants {
			if v.Name == name {
				return en.Name, v.Name, true
			}
		}
	}
	return "", "", false
}

func newBuilder(mod *lir.LirModule, res *resolver.Resolution, env *checker.Env, diags *diag.List, parent *builder) *builder {
	b := &builder{
		mod:      mod,
		res:      res,
		env:      env,
		diags:    diags,
		parent:   parent,
		cell:     &lir.LirCell{},
		constIdx: map[string]int{},
		upvalIdx: map[string]uint8{},
	}
	if parent != nil {
		b.constsTop = parent.constsTop
	}
	return b
}

func loc(sp source.Span) diag.Location {
	return diag.Location{File: sp.File, Line: sp.StartLine, Column: sp.StartCol, Length: sp.Len()}
}

func (b *builder) errorAt(code, msg string, sp source.Span) {
	*b.diags = append(*b.diags, diag.New("lower", code, msg, loc(sp), diag.Error))
}

// emit appends an instruction and returns its program counter.
func (b *builder) emit(i lir.Instruction) int {
	b.cell.Instructions = append(b.cell.Instructions, i)
	return len(b.cell.Instructions) - 1
}

// patchJumpTo rewrites the sAx-layout instruction at pc so it jumps to
// target, offset relative to the instruction immediately following pc (the
// VM's PC has already advanced past pc by the time a jump is taken).
func (b *builder) patchJumpTo(pc int, target int) {
	offset := int32(target - (pc + 1))
	if !lir.SAxInRange(offset) {
		b.errorAt(diag.ErrJumpOutOfRange, fmt.Sprintf("jump offset %d out of range", offset), source.Span{})
		return
	}
	old := b.cell.Instructions[pc]
	b.cell.Instructions[pc] = lir.SAx(old.Op, offset)
}

// here returns the PC the next emitted instruction will occupy.
func (b *builder) here() int { return len(b.cell.Instructions) }

func (b *builder) allocReg(sp source.Span) uint8 {
	r, ok := b.regs.alloc()
	if !ok {
		b.errorAt(diag.ErrRegisterExhausted, "cell requires more than 256 live registers", sp)
	}
	return r
}

func (b *builder) pushBlock() {
	b.scopes = append(b.scopes, map[string]uint8{})
}

// popBlock releases every register allocated since the matching pushBlock.
func (b *builder) popBlock(mark uint8) {
	b.scopes = b.scopes[:len(b.scopes)-1]
	b.regs.releaseTo(mark)
}

func (b *builder) defineLocal(name string, reg uint8) {
	b.scopes[len(b.scopes)-1][name] = reg
}

// lookupLocal searches this builder's own scope stack only (not parents).
func (b *builder) lookupLocal(name string) (uint8, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if r, ok := b.scopes[i][name]; ok {
			return r, true
		}
	}
	return 0, false
}

// resolveUpvalue finds or allocates an upvalue slot on b for name, captured
// from the parent builder's own locals or (recursively) the parent's
// upvalues, chaining capture through however many nested lambdas separate
// the definition from this use (spec.md §4.8).
func (b *builder) resolveUpvalue(name string) (uint8, bool) {
	if idx, ok := b.upvalIdx[name]; ok {
		return idx, true
	}
	if b.parent == nil {
		return 0, false
	}
	var src lir.UpvalueSource
	if reg, ok := b.parent.lookupLocal(name); ok {
		src = lir.UpvalueSource{FromParentLocal: true, Index: reg}
	} else if pidx, ok := b.parent.resolveUpvalue(name); ok {
		src = lir.UpvalueSource{FromParentLocal: false, Index: pidx}
	} else {
		return 0, false
	}
	idx := uint8(len(b.cell.Upvalues))
	b.cell.Upvalues = append(b.cell.Upvalues, src)
	b.upvalIdx[name] = idx
	return idx, true
}

// internConst builds a dedupe key covering kind+payload so identical literals
// across a cell share one constant-pool slot.
func (b *builder) internConst(v lir.Value) uint16 {
	key := fmt.Sprintf("%s:%v:%v:%v:%v:%s", v.Kind, v.Str, v.Int, v.Float, v.Bool, v.Bytes)
	if idx, ok := b.constIdx[key]; ok {
		return uint16(idx)
	}
	idx := len(b.cell.Constants)
	b.cell.Constants = append(b.cell.Constants, v)
	b.constIdx[key] = idx
	return uint16(idx)
}

func (b *builder) loadString(dst uint8, s string) {
	b.emit(lir.ABx(lir.OpLoadK, dst, b.internConst(lir.Value{Kind: "string", Str: s})))
}

func (b *builder) loadInt(dst uint8, v int64) {
	b.emit(lir.ABx(lir.OpLoadK, dst, b.internConst(lir.Value{Kind: "int", Int: v})))
}

func (b *builder) loadCellRef(dst uint8, name string) {
	b.emit(lir.ABx(lir.OpLoadK, dst, b.internConst(lir.Value{Kind: "cell", Str: name})))
}

// freshNamed allocates a register, loads a string constant naming s into it, and
// returns the register, the standard idiom for the "preload a name, then
// reference it by register" convention this package uses everywhere an
// operand needs more than the 3 raw register slots ABC provides (spec.md
// §4.7 notes the format is fixed-width; GetField/SetField/IsVariant/ToolCall
// all need a name alongside their registers, so the name is loaded ahead of
// time rather than widening the instruction format).
func (b *builder) freshNamed(sp source.Span, s string) uint8 {
	r := b.allocReg(sp)
	b.loadString(r, s)
	return r
}

// typeIndex finds or appends a lir.TypeDef for a record/enum name in the
// module's type table, used by NewRecord's ABx constant-index operand.
func (b *builder) typeIndex(name string) uint16 {
	for i, t := range b.mod.Types {
		if t.Name == name {
			return uint16(i)
		}
	}
	idx := len(b.mod.Types)
	if rec, ok := b.env.Records[name]; ok {
		fields := make([]string, len(rec.Fields))
		for i, f := range rec.Fields {
			fields[i] = f.Name
		}
		b.mod.Types = append(b.mod.Types, lir.TypeDef{Name: name, Fields: fields})
	} else if en, ok := b.env.Enums[name]; ok {
		variants := make([]string, len(en.Variants))
		for i, v := range en.Variants {
			variants[i] = v.Name
		}
		b.mod.Types = append(b.mod.Types, lir.TypeDef{Name: name, IsEnum: true, Variants: variants})
	} else {
		b.mod.Types = append(b.mod.Types, lir.TypeDef{Name: name})
	}
	return uint16(idx)
}
