package lower

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/intrinsics"
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/resolver"
	"github.com/lumen-lang/lumen/internal/source"
)

// lowerExpr lowers e, returning the register holding its value. Every case
// allocates at most the registers it needs for its own subexpressions and
// leaves the result in a single freshly (or already) allocated register, so
// callers can always treat lowerExpr as "evaluate, get a register back"
// without caring how many temporaries it burned along the way (regalloc's
// mark/release discipline recycles them at the next enclosing block exit).
func lowerExpr(b *builder, e ast.Expr) uint8 {
	switch ex := e.(type) {
	case *ast.LiteralExpr:
		return lowerLiteral(b, ex)
	case *ast.StringInterpExpr:
		return lowerStringInterp(b, ex)
	case *ast.IdentExpr:
		return lowerIdent(b, ex)
	case *ast.BinaryExpr:
		return lowerBinary(b, ex)
	case *ast.UnaryExpr:
		return lowerUnary(b, ex)
	case *ast.CallExpr:
		return lowerCall(b, ex)
	case *ast.FieldAccessExpr:
		return lowerFieldAccess(b, ex)
	case *ast.IndexExpr:
		return lowerIndex(b, ex)
	case *ast.TupleExpr:
		return lowerContiguous(b, ex.SpanRange, lir.OpNewTuple, ex.Elems)
	case *ast.ListExpr:
		return lowerContiguous(b, ex.SpanRange, lir.OpNewList, ex.Elems)
	case *ast.SetExpr:
		return lowerContiguous(b, ex.SpanRange, lir.OpNewSet, ex.Elems)
	case *ast.MapExpr:
		return lowerMap(b, ex)
	case *ast.RecordLitExpr:
		return lowerRecordLit(b, ex)
	case *ast.RangeExpr:
		return lowerRange(b, ex)
	case *ast.IfExpr:
		return lowerIfExpr(b, ex)
	case *ast.MatchExpr:
		return lowerMatchExpr(b, ex)
	case *ast.BlockExpr:
		return lowerBlockExpr(b, ex)
	case *ast.LambdaExpr:
		return lowerLambda(b, ex)
	case *ast.TryExpr:
		return lowerTry(b, ex)
	case *ast.IsExpr:
		return lowerIs(b, ex)
	case *ast.AsExpr:
		// A checked runtime cast has no dedicated opcode; at the value-model
		// level Lumen's scalars/collections already carry their own kind, so
		// `as` lowers to a plain pass-through of the already-checked
		// subject. The type checker is what rejects an unsound cast.
		return lowerExpr(b, ex.Subject)
	case *ast.PerformExpr:
		return lowerPerform(b, ex)
	case *ast.ResumeExpr:
		return lowerResume(b, ex)
	case *ast.SpawnExpr:
		return lowerSpawn(b, ex)
	case *ast.AwaitExpr:
		return lowerAwait(b, ex)
	case *ast.ParallelExpr:
		return lowerOrchestration(b, ex.SpanRange, "parallel", ex.Branches)
	case *ast.RaceExpr:
		return lowerOrchestration(b, ex.SpanRange, "race", ex.Branches)
	case *ast.VoteExpr:
		return lowerOrchestration(b, ex.SpanRange, "vote", ex.Branches)
	case *ast.SelectExpr:
		return lowerSelect(b, ex)
	case *ast.TimeoutExpr:
		return lowerTimeout(b, ex)
	default:
		b.errorAt(diag.ErrRegisterExhausted, fmt.Sprintf("lower: unhandled expression %T", e), e.Span())
		return b.allocReg(e.Span())
	}
}

func lowerLiteral(b *builder, e *ast.LiteralExpr) uint8 {
	dst := b.allocReg(e.SpanRange)
	switch e.Kind {
	case ast.LitNull:
		b.emit(lir.ABC(lir.OpLoadNil, dst, 0, 0))
	case ast.LitBool:
		v, _ := e.Value.(bool)
		c := uint8(0)
		if v {
			c = 1
		}
		b.emit(lir.ABC(lir.OpLoadBool, dst, c, 0))
	case ast.LitInt:
		v, _ := e.Value.(int64)
		b.emit(lir.ABx(lir.OpLoadK, dst, b.internConst(lir.Value{Kind: "int", Int: v})))
	case ast.LitFloat:
		v, _ := e.Value.(float64)
		b.emit(lir.ABx(lir.OpLoadK, dst, b.internConst(lir.Value{Kind: "float", Float: v})))
	case ast.LitString:
		v, _ := e.Value.(string)
		b.emit(lir.ABx(lir.OpLoadK, dst, b.internConst(lir.Value{Kind: "string", Str: v})))
	case ast.LitBytes:
		v, _ := e.Value.([]byte)
		b.emit(lir.ABx(lir.OpLoadK, dst, b.internConst(lir.Value{Kind: "bytes", Bytes: v})))
	case ast.LitBigInt:
		// BigInt literals upgrade past int64 range at lex time; the
		// constant pool stores them under the "bigint" kind as decimal
		// text in Str, and the VM re-parses that text on LoadK (see vm's
		// loadConst).
		b.emit(lir.ABx(lir.OpLoadK, dst, b.internConst(lir.Value{Kind: "bigint", Str: fmt.Sprintf("%v", e.Value)})))
	default:
		b.emit(lir.ABC(lir.OpLoadNil, dst, 0, 0))
	}
	return dst
}

// lowerStringInterp concatenates literal segments and evaluated splice
// expressions left to right with Concat, converting non-string splices
// through the ToString intrinsic.
func lowerStringInterp(b *builder, e *ast.StringInterpExpr) uint8 {
	if len(e.Parts) == 0 {
		return b.freshNamed(e.SpanRange, "")
	}
	acc := stringPart(b, e.Parts[0])
	for _, part := range e.Parts[1:] {
		next := stringPart(b, part)
		dst := b.allocReg(e.SpanRange)
		b.emit(lir.ABC(lir.OpConcat, dst, acc, next))
		acc = dst
	}
	return acc
}

func stringPart(b *builder, part ast.Expr) uint8 {
	reg := lowerExpr(b, part)
	if lit, ok := part.(*ast.LiteralExpr); ok && lit.Kind == ast.LitString {
		return reg
	}
	return emitIntrinsicCall(b, part.Span(), intrinsics.IDToString, []uint8{reg})
}

func lowerIdent(b *builder, e *ast.IdentExpr) uint8 {
	if reg, ok := b.lookupLocal(e.Name); ok {
		return reg
	}
	if idx, ok := b.resolveUpvalue(e.Name); ok {
		dst := b.allocReg(e.SpanRange)
		b.emit(lir.ABC(lir.OpGetUpval, dst, idx, 0))
		return dst
	}
	if sym, ok := b.res.Table.Lookup(e.Name); ok {
		switch sym.Kind {
		case resolver.SymCell, resolver.SymHandler, resolver.SymAgent:
			dst := b.allocReg(e.SpanRange)
			b.loadCellRef(dst, e.Name)
			return dst
		case resolver.SymImport:
			// An imported cell's compiled body merges into this module
			// under its original name; reference it the same way.
			if _, isCell := sym.Decl.(*ast.CellDecl); isCell {
				dst := b.allocReg(e.SpanRange)
				b.loadCellRef(dst, e.Name)
				return dst
			}
		}
	}
	if enum, variant, ok := b.lookupVariant(e.Name); ok {
		return lowerVariantConstruct(b, e.SpanRange, enum, variant, nil)
	}
	if v, ok := b.constsTop[e.Name]; ok {
		dst := b.allocReg(e.SpanRange)
		b.emit(lir.ABx(lir.OpLoadK, dst, b.internConst(v)))
		return dst
	}
	// Unresolved by the time lowering runs is a resolver bug, not a runtime
	// possibility; fall back to null rather than panicking mid-compile.
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpLoadNil, dst, 0, 0))
	return dst
}

func lowerBinary(b *builder, e *ast.BinaryExpr) uint8 {
	// `and`/`or` short-circuit; everything else evaluates both sides first.
	switch e.Op {
	case ast.OpAnd, ast.OpOr:
		return lowerShortCircuit(b, e)
	case ast.OpNullCoal:
		return lowerNullCoalesce(b, e)
	}
	left := lowerExpr(b, e.Left)
	right := lowerExpr(b, e.Right)
	dst := b.allocReg(e.SpanRange)
	switch e.Op {
	case ast.OpAdd:
		b.emit(lir.ABC(lir.OpAdd, dst, left, right))
	case ast.OpSub:
		b.emit(lir.ABC(lir.OpSub, dst, left, right))
	case ast.OpMul:
		b.emit(lir.ABC(lir.OpMul, dst, left, right))
	case ast.OpDiv:
		b.emit(lir.ABC(lir.OpDiv, dst, left, right))
	case ast.OpFloorDiv:
		b.emit(lir.ABC(lir.OpFloorDiv, dst, left, right))
	case ast.OpMod:
		b.emit(lir.ABC(lir.OpMod, dst, left, right))
	case ast.OpPow:
		b.emit(lir.ABC(lir.OpPow, dst, left, right))
	case ast.OpEq:
		b.emit(lir.ABC(lir.OpEq, dst, left, right))
	case ast.OpNeq:
		b.emit(lir.ABC(lir.OpEq, dst, left, right))
		b.emit(lir.ABC(lir.OpNot, dst, dst, 0))
	case ast.OpLt:
		b.emit(lir.ABC(lir.OpLt, dst, left, right))
	case ast.OpLte:
		b.emit(lir.ABC(lir.OpLe, dst, left, right))
	case ast.OpGt:
		b.emit(lir.ABC(lir.OpLe, dst, left, right))
		b.emit(lir.ABC(lir.OpNot, dst, dst, 0))
	case ast.OpGte:
		b.emit(lir.ABC(lir.OpLt, dst, left, right))
		b.emit(lir.ABC(lir.OpNot, dst, dst, 0))
	case ast.OpBitAnd:
		b.emit(lir.ABC(lir.OpBitAnd, dst, left, right))
	case ast.OpBitOr:
		b.emit(lir.ABC(lir.OpBitOr, dst, left, right))
	case ast.OpBitXor:
		b.emit(lir.ABC(lir.OpBitXor, dst, left, right))
	case ast.OpShl:
		b.emit(lir.ABC(lir.OpShl, dst, left, right))
	case ast.OpShr:
		b.emit(lir.ABC(lir.OpShr, dst, left, right))
	case ast.OpConcat:
		b.emit(lir.ABC(lir.OpConcat, dst, left, right))
	case ast.OpPipe:
		// `x |> f` desugars to `f(x)`; the parser leaves this as a binary
		// node rather than rewriting to a CallExpr so precedence stays
		// uniform, so lowering performs the rewrite here: right must
		// already be a closure/cell-ref value in a register.
		b.emit(lir.ABC(lir.OpMove, dst, left, 0))
		return emitCallValue(b, e.SpanRange, right, []uint8{dst})
	case ast.OpChain:
		// `f ~> g` composes into a closure is beyond a single binary-op
		// lowering; evaluated eagerly here instead (`f ~> g` applied to no
		// argument is never valid on its own, only as a call target, which
		// the checker enforces), so chain falls back to calling f then g.
		return emitCallValue(b, e.SpanRange, right, []uint8{emitCallValue(b, e.SpanRange, left, nil)})
	default:
		b.emit(lir.ABC(lir.OpEq, dst, left, right))
	}
	return dst
}

func lowerShortCircuit(b *builder, e *ast.BinaryExpr) uint8 {
	left := lowerExpr(b, e.Left)
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpMove, dst, left, 0))
	// Test skips its following Jmp on a falsy operand (spec.md §4.7's
	// dispatch convention); the short-circuit Jmp below must fire on the
	// *truthy* operand instead, so negate first.
	notReg := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpNot, notReg, dst, 0))
	b.emit(lir.ABC(lir.OpTest, notReg, 0, 0))
	skipPC := b.emit(lir.SAx(lir.OpJmp, 0))
	if e.Op == ast.OpOr {
		// Test didn't skip (left truthy): or short-circuits to left's
		// value, already in dst; jump past the right-hand evaluation.
		endPC := b.emit(lir.SAx(lir.OpJmp, 0))
		b.patchJumpTo(skipPC, b.here())
		right := lowerExpr(b, e.Right)
		b.emit(lir.ABC(lir.OpMove, dst, right, 0))
		b.patchJumpTo(endPC, b.here())
		return dst
	}
	// `and`: Test skips (left falsy) straight past the right-hand
	// evaluation, dst already holds the falsy left value.
	right := lowerExpr(b, e.Right)
	b.emit(lir.ABC(lir.OpMove, dst, right, 0))
	b.patchJumpTo(skipPC, b.here())
	return dst
}

func lowerNullCoalesce(b *builder, e *ast.BinaryExpr) uint8 {
	left := lowerExpr(b, e.Left)
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpMove, dst, left, 0))
	b.emit(lir.ABC(lir.OpNullCo, dst, dst, 0))
	skipPC := b.emit(lir.SAx(lir.OpJmp, 0))
	right := lowerExpr(b, e.Right)
	b.emit(lir.ABC(lir.OpMove, dst, right, 0))
	b.patchJumpTo(skipPC, b.here())
	return dst
}

func lowerUnary(b *builder, e *ast.UnaryExpr) uint8 {
	src := lowerExpr(b, e.Operand)
	dst := b.allocReg(e.SpanRange)
	switch e.Op {
	case ast.OpNot:
		b.emit(lir.ABC(lir.OpNot, dst, src, 0))
	case ast.OpNeg:
		b.emit(lir.ABC(lir.OpNeg, dst, src, 0))
	case ast.OpBitNot:
		b.emit(lir.ABC(lir.OpBitNot, dst, src, 0))
	}
	return dst
}

// lowerContiguous handles NewList/NewSet/NewTuple, whose ABC layout is
// (dest, base, count): elements are moved into a contiguous register run
// starting at base, then the construction opcode collapses that run into
// dest (spec.md §4.7's note that multi-value opcodes "take a contiguous
// register range").
func lowerContiguous(b *builder, sp source.Span, op lir.Op, elems []ast.Expr) uint8 {
	vals := make([]uint8, len(elems))
	for i, el := range elems {
		vals[i] = lowerExpr(b, el)
	}
	base := b.regs.mark()
	for _, v := range vals {
		dst := b.allocReg(sp)
		b.emit(lir.ABC(lir.OpMove, dst, v, 0))
	}
	dst := b.allocReg(sp)
	b.emit(lir.ABC(op, dst, base, uint8(len(elems))))
	return dst
}

// lowerMap lays out key/value pairs alternating in a contiguous register
// run: key0, val0, key1, val1, ...; NewMap's C operand is the entry count.
func lowerMap(b *builder, e *ast.MapExpr) uint8 {
	vals := make([]uint8, 0, 2*len(e.Entries))
	for _, entry := range e.Entries {
		vals = append(vals, lowerExpr(b, entry.Key), lowerExpr(b, entry.Value))
	}
	base := b.regs.mark()
	for _, v := range vals {
		d := b.allocReg(e.SpanRange)
		b.emit(lir.ABC(lir.OpMove, d, v, 0))
	}
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpNewMap, dst, base, uint8(len(e.Entries))))
	return dst
}

// lowerRecordLit lays out field values (in the type's declared field order)
// contiguously starting at base, then NewRecord collapses them into R[base]
// itself, reusing the first field's slot as the record's home register
// (ABx has no room for a separate base operand alongside the type index).
func lowerRecordLit(b *builder, e *ast.RecordLitExpr) uint8 {
	typeIdx := b.typeIndex(e.Record)
	fieldNames := recordFieldOrder(b, e.Record)

	values := map[string]ast.Expr{}
	for _, f := range e.Fields {
		values[f.Name] = f.Value
	}

	var spreadReg uint8
	hasSpread := e.Spread != nil
	if hasSpread {
		spreadReg = lowerExpr(b, e.Spread)
	}

	vals := make([]uint8, len(fieldNames))
	for i, name := range fieldNames {
		var v uint8
		if expr, ok := values[name]; ok {
			v = lowerExpr(b, expr)
		} else if hasSpread {
			nameReg := b.freshNamed(e.SpanRange, name)
			v = b.allocReg(e.SpanRange)
			b.emit(lir.ABC(lir.OpGetField, v, spreadReg, nameReg))
		} else {
			v = b.allocReg(e.SpanRange)
			b.emit(lir.ABC(lir.OpLoadNil, v, 0, 0))
		}
		vals[i] = v
	}
	base := b.regs.mark()
	for _, v := range vals {
		dst := b.allocReg(e.SpanRange)
		b.emit(lir.ABC(lir.OpMove, dst, v, 0))
	}
	b.emit(lir.ABx(lir.OpNewRecord, base, typeIdx))
	return base
}

func recordFieldOrder(b *builder, name string) []string {
	if rec, ok := b.env.Records[name]; ok {
		out := make([]string, len(rec.Fields))
		for i, f := range rec.Fields {
			out[i] = f.Name
		}
		return out
	}
	for _, t := range b.mod.Types {
		if t.Name == name {
			return t.Fields
		}
	}
	return nil
}

// lowerRange materializes a range eagerly into a List via the range
// intrinsic, the simplest correct realization given the runtime value model
// (spec.md §3) has no dedicated Range kind of its own.
func lowerRange(b *builder, e *ast.RangeExpr) uint8 {
	start := lowerExpr(b, e.Start)
	end := lowerExpr(b, e.End)
	if e.Inclusive {
		one := b.allocReg(e.SpanRange)
		b.loadInt(one, 1)
		bumped := b.allocReg(e.SpanRange)
		b.emit(lir.ABC(lir.OpAdd, bumped, end, one))
		end = bumped
	}
	return emitIntrinsicCall(b, e.SpanRange, intrinsics.IDRange, []uint8{start, end})
}

func lowerIfExpr(b *builder, e *ast.IfExpr) uint8 {
	condReg := lowerExpr(b, e.Cond)
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpTest, condReg, 0, 0))
	jmpThen := b.emit(lir.SAx(lir.OpJmp, 0))
	elseReg := lowerExpr(b, e.Else)
	b.emit(lir.ABC(lir.OpMove, dst, elseReg, 0))
	jmpEnd := b.emit(lir.SAx(lir.OpJmp, 0))
	b.patchJumpTo(jmpThen, b.here())
	thenReg := lowerExpr(b, e.Then)
	b.emit(lir.ABC(lir.OpMove, dst, thenReg, 0))
	b.patchJumpTo(jmpEnd, b.here())
	return dst
}

func lowerBlockExpr(b *builder, e *ast.BlockExpr) uint8 {
	mark := b.regs.mark()
	b.pushBlock()
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpLoadNil, dst, 0, 0))
	for i, s := range e.Body {
		if i == len(e.Body)-1 {
			if es, ok := s.(*ast.ExprStmt); ok {
				v := lowerExpr(b, es.Value)
				b.emit(lir.ABC(lir.OpMove, dst, v, 0))
				continue
			}
		}
		lowerStmt(b, s)
	}
	b.popBlock(mark + 1)
	return dst
}

// lowerLambda compiles a lambda body into its own child cell (so it can
// have its own register file and upvalue table) and leaves a Closure value
// referencing it in the caller's frame.
func lowerLambda(b *builder, e *ast.LambdaExpr) uint8 {
	child := newBuilder(b.mod, b.res, b.env, b.diags, b)
	child.cell.Name = fmt.Sprintf("<lambda:%d>", len(b.mod.Cells))
	child.cell.Params = len(e.Params)

	child.pushBlock()
	for _, p := range e.Params {
		r := child.allocReg(p.SpanRange)
		child.defineLocal(p.Name, r)
	}
	result := lowerExpr(child, e.Body)
	child.runDefers()
	child.emit(lir.ABC(lir.OpReturn, result, 0, 0))
	child.popBlock(0)
	child.cell.RegisterCount = child.regs.registerCount()
	b.mod.Cells = append(b.mod.Cells, *child.cell)

	dst := b.allocReg(e.SpanRange)
	idx := b.internConst(lir.Value{Kind: "cell", Str: child.cell.Name})
	b.emit(lir.ABx(lir.OpClosure, dst, idx))
	return dst
}

func lowerTry(b *builder, e *ast.TryExpr) uint8 {
	inner := lowerExpr(b, e.Inner)
	// A Result value is represented as a Union("Result", "ok"|"err", [v]).
	tagReg := b.freshNamed(e.SpanRange, "Result.ok")
	isOk := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpIsVariant, isOk, inner, tagReg))
	b.emit(lir.ABC(lir.OpTest, isOk, 0, 0))
	jmpOk := b.emit(lir.SAx(lir.OpJmp, 0))
	// Propagate the Err payload, widening into the enclosing cell's
	// declared Err type silently (spec.md §9 Open Question (b)).
	errReg := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpGetTuple, errReg, inner, 0))
	b.runDefers()
	b.emit(lir.ABC(lir.OpReturn, errReg, 0, 0))
	b.patchJumpTo(jmpOk, b.here())
	okReg := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpGetTuple, okReg, inner, 0))
	return okReg
}

func lowerIs(b *builder, e *ast.IsExpr) uint8 {
	subjReg := lowerExpr(b, e.Subject)
	test, has := compilePattern(b, subjReg, e.Pattern)
	if !has {
		dst := b.allocReg(e.SpanRange)
		b.emit(lir.ABC(lir.OpLoadBool, dst, 1, 0))
		return dst
	}
	return test
}

// lowerPerform bundles args into a List and emits Perform(dst, effectOpReg,
// argsReg); the VM resolves (effect, op) against the active handler stack.
func lowerPerform(b *builder, e *ast.PerformExpr) uint8 {
	nameReg := b.freshNamed(e.SpanRange, e.Effect+"."+e.Op)
	argsReg := lowerContiguous(b, e.SpanRange, lir.OpNewList, e.Args)
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpPerform, dst, nameReg, argsReg))
	return dst
}

// lowerResume lowers `resume(v)` as a Return of v from the enclosing
// handler-case cell: this cell's call frame IS the one-shot continuation
// spec.md §9 describes (the Go call stack from Perform down to here plays
// that role directly, since handler dispatch is a synchronous Call from the
// Perform site — see DESIGN.md's internal/vm entry for the full argument).
// Resuming a second time is therefore not reachable through normal control
// flow: the cell has already returned.
func lowerResume(b *builder, e *ast.ResumeExpr) uint8 {
	reg := lowerExpr(b, e.Value)
	b.runDefers()
	b.emit(lir.ABC(lir.OpReturn, reg, 0, 0))
	// Dead past this point for this arm, but lowerExpr's callers still
	// expect a register back for any containing expression context.
	return reg
}

func lowerSpawn(b *builder, e *ast.SpawnExpr) uint8 {
	thunk := lowerThunk(b, e.SpanRange, e.Body)
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpSpawn, dst, thunk, 0))
	return dst
}

func lowerAwait(b *builder, e *ast.AwaitExpr) uint8 {
	fut := lowerExpr(b, e.Inner)
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpAwait, dst, fut, 0))
	return dst
}

// lowerOrchestration spawns every branch as its own task, bundles the
// resulting futures into a List, and hands that list to an Intrinsic that
// the VM binds to the scheduler's Parallel/Race/Vote (spec.md §4.9); this
// keeps the three primitives' register convention identical to a plain
// call instead of adding three more fixed-width opcodes for what is really
// one "reduce a future list" shape.
func lowerOrchestration(b *builder, sp source.Span, kind string, branches []ast.Expr) uint8 {
	futs := spawnContiguous(b, sp, branches)
	listReg := b.allocReg(sp)
	b.emit(lir.ABC(lir.OpNewList, listReg, futs, uint8(len(branches))))
	kindReg := b.freshNamed(sp, kind)
	dst := b.allocReg(sp)
	b.emit(lir.ABC(lir.OpAwait, dst, listReg, kindReg))
	return dst
}

func lowerSelect(b *builder, e *ast.SelectExpr) uint8 {
	sources := make([]ast.Expr, len(e.Cases))
	for i, c := range e.Cases {
		sources[i] = c.Source
	}
	futs := spawnContiguous(b, e.SpanRange, sources)
	listReg := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpNewList, listReg, futs, uint8(len(sources))))
	kindReg := b.freshNamed(e.SpanRange, "select")
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpAwait, dst, listReg, kindReg))
	return dst
}

// spawnContiguous lowers each branch to a thunk closure and spawns it,
// reserving the resulting future registers as a contiguous run first (the
// thunk closures themselves land in whatever registers lowerThunk happens
// to allocate, which need not be contiguous since nothing downstream reads
// them again once Spawn consumes them) so the run can feed straight into
// NewList's (base, count) convention.
func spawnContiguous(b *builder, sp source.Span, branches []ast.Expr) uint8 {
	base := b.regs.mark()
	futs := make([]uint8, len(branches))
	for i := range branches {
		futs[i] = b.allocReg(sp)
	}
	for i, br := range branches {
		thunk := lowerThunk(b, sp, br)
		b.emit(lir.ABC(lir.OpSpawn, futs[i], thunk, 0))
	}
	return base
}

// lowerTimeout spawns the body as a task and bundles [future, duration_ms]
// into a list for the "timeout" Await kind, which the VM's scheduler
// binding races against a timer (spec.md §4.9).
func lowerTimeout(b *builder, e *ast.TimeoutExpr) uint8 {
	thunk := lowerThunk(b, e.SpanRange, e.Inner)
	msVal := lowerExpr(b, e.Duration)
	listBase := b.regs.mark()
	fut := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpSpawn, fut, thunk, 0))
	msDst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpMove, msDst, msVal, 0))
	listReg := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpNewList, listReg, listBase, 2))
	kindReg := b.freshNamed(e.SpanRange, "timeout")
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpAwait, dst, listReg, kindReg))
	if e.Fallback != nil {
		nullTest := b.allocReg(e.SpanRange)
		b.emit(lir.ABC(lir.OpMove, nullTest, dst, 0))
		b.emit(lir.ABC(lir.OpNullCo, nullTest, nullTest, 0))
		skip := b.emit(lir.SAx(lir.OpJmp, 0))
		fb := lowerExpr(b, e.Fallback)
		b.emit(lir.ABC(lir.OpMove, dst, fb, 0))
		b.patchJumpTo(skip, b.here())
	}
	return dst
}

// lowerThunk lowers body as a zero-argument closure, for Spawn/await-style
// opcodes that need a callable rather than an already-evaluated value.
func lowerThunk(b *builder, sp source.Span, body ast.Expr) uint8 {
	child := newBuilder(b.mod, b.res, b.env, b.diags, b)
	child.cell.Name = fmt.Sprintf("<thunk:%d>", len(b.mod.Cells))
	child.pushBlock()
	result := lowerExpr(child, body)
	child.runDefers()
	child.emit(lir.ABC(lir.OpReturn, result, 0, 0))
	child.popBlock(0)
	child.cell.RegisterCount = child.regs.registerCount()
	b.mod.Cells = append(b.mod.Cells, *child.cell)

	dst := b.allocReg(sp)
	idx := b.internConst(lir.Value{Kind: "cell", Str: child.cell.Name})
	b.emit(lir.ABx(lir.OpClosure, dst, idx))
	return dst
}

// safeGuard wraps body so it only runs when objReg is non-null, leaving dst
// at its zero-initialized Null otherwise (spec.md's `?.`/`?[]` short-circuit).
// OpNullCo tests isNonNull(objReg) with the same polarity `??` relies on
// (falsy/null skips the immediately following Jmp, truthy/non-null lets it
// fire), so the non-null body has to sit behind its own jump target rather
// than behind the fallthrough, the mirror image of how `??`'s fallthrough
// holds the null-case body.
func safeGuard(b *builder, sp source.Span, objReg uint8, body func()) {
	nullTest := b.allocReg(sp)
	b.emit(lir.ABC(lir.OpMove, nullTest, objReg, 0))
	b.emit(lir.ABC(lir.OpNullCo, nullTest, nullTest, 0))
	jmpNonNull := b.emit(lir.SAx(lir.OpJmp, 0))
	jmpEnd := b.emit(lir.SAx(lir.OpJmp, 0))
	b.patchJumpTo(jmpNonNull, b.here())
	body()
	b.patchJumpTo(jmpEnd, b.here())
}

func lowerFieldAccess(b *builder, e *ast.FieldAccessExpr) uint8 {
	// `Enum.Variant` is construction, not field access.
	if enum, ok := enumQualifier(b, e.Object); ok {
		return lowerVariantConstruct(b, e.SpanRange, enum, e.Field, nil)
	}
	objReg := lowerExpr(b, e.Object)
	dst := b.allocReg(e.SpanRange)
	if e.Safe {
		safeGuard(b, e.SpanRange, objReg, func() {
			nameReg := b.freshNamed(e.SpanRange, e.Field)
			b.emit(lir.ABC(lir.OpGetField, dst, objReg, nameReg))
		})
		return dst
	}
	nameReg := b.freshNamed(e.SpanRange, e.Field)
	b.emit(lir.ABC(lir.OpGetField, dst, objReg, nameReg))
	return dst
}

func lowerIndex(b *builder, e *ast.IndexExpr) uint8 {
	objReg := lowerExpr(b, e.Object)
	idxReg := lowerExpr(b, e.Index)
	dst := b.allocReg(e.SpanRange)
	if e.Safe {
		safeGuard(b, e.SpanRange, objReg, func() {
			b.emit(lir.ABC(lir.OpGetIndex, dst, objReg, idxReg))
		})
		return dst
	}
	b.emit(lir.ABC(lir.OpGetIndex, dst, objReg, idxReg))
	return dst
}

// lowerCall dispatches CallExpr to a tool call, an intrinsic, or an
// ordinary Call depending on what the callee identifier resolves to.
func lowerCall(b *builder, e *ast.CallExpr) uint8 {
	if ident, ok := e.Callee.(*ast.IdentExpr); ok {
		if _, isLocal := b.lookupLocal(ident.Name); !isLocal {
			if _, isUpval := b.upvalIdx[ident.Name]; !isUpval {
				sym, found := b.res.Table.Lookup(ident.Name)
				if found && sym.Kind == resolver.SymTool {
					return lowerToolCall(b, e, ident.Name)
				}
				if !found {
					if id, ok := intrinsics.Lookup(ident.Name); ok {
						return lowerIntrinsicCall(b, e, id)
					}
					if enum, variant, ok := b.lookupVariant(ident.Name); ok {
						return lowerVariantConstruct(b, e.SpanRange, enum, variant, e.Args)
					}
				}
			}
		}
	}
	if fa, ok := e.Callee.(*ast.FieldAccessExpr); ok {
		if enum, ok := enumQualifier(b, fa.Object); ok {
			return lowerVariantConstruct(b, e.SpanRange, enum, fa.Field, e.Args)
		}
	}
	return lowerOrdinaryCall(b, e)
}

// enumQualifier reports whether obj is a bare identifier naming an enum
// type, making a following `.Name` a variant constructor rather than a
// value field access.
func enumQualifier(b *builder, obj ast.Expr) (string, bool) {
	ident, ok := obj.(*ast.IdentExpr)
	if !ok {
		return "", false
	}
	if _, shadowed := b.lookupLocal(ident.Name); shadowed {
		return "", false
	}
	if sym, found := b.res.Table.Lookup(ident.Name); found && sym.Kind == resolver.SymEnum {
		return ident.Name, true
	}
	return "", false
}

// lowerVariantConstruct builds an enum value: a combined "Enum.Variant" tag
// string is loaded into the result register, payload args are laid out
// contiguously right after it, and NewUnion collapses the run back into
// that same register (the same self-overwrite trick lowerRecordLit uses,
// since ABC has no room for a separate dest operand alongside a name
// register and a count).
func lowerVariantConstruct(b *builder, sp source.Span, enum, variant string, args []ast.Expr) uint8 {
	vals := make([]uint8, len(args))
	for i, a := range args {
		vals[i] = lowerExpr(b, a)
	}
	base := b.allocReg(sp)
	b.loadString(base, enum+"."+variant)
	for _, v := range vals {
		dst := b.allocReg(sp)
		b.emit(lir.ABC(lir.OpMove, dst, v, 0))
	}
	b.emit(lir.ABC(lir.OpNewUnion, base, 0, uint8(len(args))))
	return base
}

func lowerToolCall(b *builder, e *ast.CallExpr, alias string) uint8 {
	aliasReg := b.freshNamed(e.SpanRange, alias)
	argsReg := lowerContiguous(b, e.SpanRange, lir.OpNewList, e.Args)
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpToolCall, dst, aliasReg, argsReg))
	return dst
}

func lowerIntrinsicCall(b *builder, e *ast.CallExpr, id intrinsics.ID) uint8 {
	argRegs := make([]uint8, len(e.Args))
	for i, a := range e.Args {
		argRegs[i] = lowerExpr(b, a)
	}
	return emitIntrinsicCall(b, e.SpanRange, id, argRegs)
}

// emitIntrinsicCall copies args into a contiguous register run right after
// a reserved destination register and emits Intrinsic dst Bx, where Bx
// packs (id<<6 | argCount): ABx's 16-bit operand has no room for a separate
// base-register field, so args are pinned to dest+1.. by convention instead
// (documented in DESIGN.md's internal/vm entry).
func emitIntrinsicCall(b *builder, sp source.Span, id intrinsics.ID, args []uint8) uint8 {
	dst := b.allocReg(sp)
	for _, a := range args {
		d := b.allocReg(sp)
		b.emit(lir.ABC(lir.OpMove, d, a, 0))
	}
	b.emit(lir.ABx(lir.OpIntrinsic, dst, intrinsicOperand(id, len(args))))
	return dst
}

func intrinsicOperand(id intrinsics.ID, argCount int) uint16 {
	return uint16(id)<<6 | uint16(argCount&0x3F)
}

// DecodeIntrinsic splits an Intrinsic instruction's Bx operand back into
// (id, argCount), the inverse of intrinsicOperand; exported for the VM.
func DecodeIntrinsic(bx uint16) (intrinsics.ID, int) {
	return intrinsics.ID(bx >> 6), int(bx & 0x3F)
}

func lowerOrdinaryCall(b *builder, e *ast.CallExpr) uint8 {
	callee := lowerExpr(b, e.Callee)
	args := make([]uint8, len(e.Args))
	for i, a := range e.Args {
		args[i] = lowerExpr(b, a)
	}
	return emitCallValue(b, e.SpanRange, callee, args)
}

// emitCallValue calls a callee whose value is already sitting in a
// register (used by `|>`/`~>` desugaring), with args supplied directly
// rather than lowered from ast.Expr.
func emitCallValue(b *builder, sp source.Span, callee uint8, args []uint8) uint8 {
	mark := b.regs.mark()
	base := mark
	calleeDst := b.allocReg(sp)
	b.emit(lir.ABC(lir.OpMove, calleeDst, callee, 0))
	for _, a := range args {
		dst := b.allocReg(sp)
		b.emit(lir.ABC(lir.OpMove, dst, a, 0))
	}
	b.emit(lir.ABC(lir.OpCall, base, uint8(len(args)), 1))
	b.regs.releaseTo(mark + 1)
	return base
}
