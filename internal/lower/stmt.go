package lower

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/lir"
)

func lowerBody(b *builder, body []ast.Stmt) {
	for _, s := range body {
		lowerStmt(b, s)
	}
}

// lowerBlock lowers a nested statement list inside its own scope.
func lowerBlock(b *builder, body []ast.Stmt) {
	mark := b.regs.mark()
	b.pushBlock()
	lowerBody(b, body)
	b.popBlock(mark)
}

func lowerStmt(b *builder, s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		reg := lowerExpr(b, st.Value)
		// A fresh register is needed so later reassignment/mutation of this
		// binding never aliases the expression's own temporary.
		dst := b.allocReg(st.SpanRange)
		b.emit(lir.ABC(lir.OpMove, dst, reg, 0))
		b.defineLocal(st.Name, dst)

	case *ast.AssignStmt:
		lowerAssign(b, st)

	case *ast.ExprStmt:
		lowerExpr(b, st.Value)

	case *ast.ReturnStmt:
		var reg uint8
		if st.Value != nil {
			reg = lowerExpr(b, st.Value)
		} else {
			reg = b.allocReg(st.SpanRange)
			b.emit(lir.ABC(lir.OpLoadNil, reg, 0, 0))
		}
		b.runDefers()
		b.emit(lir.ABC(lir.OpReturn, reg, 0, 0))

	case *ast.IfStmt:
		lowerIfStmt(b, st)

	case *ast.WhileStmt:
		lowerWhileStmt(b, st)

	case *ast.ForStmt:
		lowerForStmt(b, st)

	case *ast.LoopStmt:
		lowerLoopStmt(b, st)

	case *ast.BreakStmt:
		pc := b.emit(lir.SAx(lir.OpBreak, 0))
		n := len(b.loopBreak)
		b.loopBreak[n-1] = append(b.loopBreak[n-1], pc)

	case *ast.ContinueStmt:
		pc := b.emit(lir.SAx(lir.OpContinue, 0))
		n := len(b.loopContinue)
		b.loopContinue[n-1] = append(b.loopContinue[n-1], pc)

	case *ast.DeferStmt:
		b.defers = append(b.defers, st.Body)

	case *ast.HaltStmt:
		msgReg := lowerExpr(b, st.Message)
		b.emit(lir.ABC(lir.OpHalt, msgReg, 0, 0))

	case *ast.HandleStmt:
		lowerHandleStmt(b, st)

	case *ast.MatchStmt:
		lowerMatchStmt(b, st)

	default:
		// Unknown statement kinds are a lowering gap, not a runtime
		// possibility once resolver/checker have both accepted the program.
	}
}

func lowerAssign(b *builder, st *ast.AssignStmt) {
	valueReg := lowerExpr(b, st.Value)
	if st.Op != ast.AssignSet {
		cur := lowerExpr(b, st.Target)
		combined := b.allocReg(st.SpanRange)
		switch st.Op {
		case ast.AssignAddTo:
			b.emit(lir.ABC(lir.OpAdd, combined, cur, valueReg))
		case ast.AssignSubTo:
			b.emit(lir.ABC(lir.OpSub, combined, cur, valueReg))
		case ast.AssignMulTo:
			b.emit(lir.ABC(lir.OpMul, combined, cur, valueReg))
		case ast.AssignDivTo:
			b.emit(lir.ABC(lir.OpDiv, combined, cur, valueReg))
		}
		valueReg = combined
	}

	switch target := st.Target.(type) {
	case *ast.IdentExpr:
		if reg, ok := b.lookupLocal(target.Name); ok {
			b.emit(lir.ABC(lir.OpMove, reg, valueReg, 0))
			return
		}
		if idx, ok := b.resolveUpvalue(target.Name); ok {
			b.emit(lir.ABC(lir.OpSetUpval, idx, valueReg, 0))
			return
		}
	case *ast.FieldAccessExpr:
		objReg := lowerExpr(b, target.Object)
		nameReg := b.freshNamed(target.SpanRange, target.Field)
		b.emit(lir.ABC(lir.OpSetField, objReg, nameReg, valueReg))
		return
	case *ast.IndexExpr:
		objReg := lowerExpr(b, target.Object)
		idxReg := lowerExpr(b, target.Index)
		b.emit(lir.ABC(lir.OpSetIndex, objReg, idxReg, valueReg))
		return
	}
}

func lowerIfStmt(b *builder, st *ast.IfStmt) {
	condReg := lowerExpr(b, st.Cond)
	b.emit(lir.ABC(lir.OpTest, condReg, 0, 0))
	jmpThen := b.emit(lir.SAx(lir.OpJmp, 0))
	// cond false falls through here: else branch.
	lowerBlock(b, st.Else)
	jmpEnd := b.emit(lir.SAx(lir.OpJmp, 0))
	b.patchJumpTo(jmpThen, b.here())
	lowerBlock(b, st.Then)
	b.patchJumpTo(jmpEnd, b.here())
}

func lowerWhileStmt(b *builder, st *ast.WhileStmt) {
	loopStart := b.here()
	condReg := lowerExpr(b, st.Cond)
	b.emit(lir.ABC(lir.OpTest, condReg, 0, 0))
	jmpBody := b.emit(lir.SAx(lir.OpJmp, 0))
	jmpEnd := b.emit(lir.SAx(lir.OpJmp, 0))
	b.patchJumpTo(jmpBody, b.here())

	b.loopBreak = append(b.loopBreak, nil)
	b.loopContinue = append(b.loopContinue, nil)
	lowerBlock(b, st.Body)
	continues := b.loopContinue[len(b.loopContinue)-1]
	b.loopContinue = b.loopContinue[:len(b.loopContinue)-1]
	backPC := b.emit(lir.SAx(lir.OpLoop, 0))
	b.patchJumpTo(backPC, loopStart)
	end := b.here()
	for _, pc := range continues {
		b.patchJumpTo(pc, loopStart)
	}
	breaks := b.loopBreak[len(b.loopBreak)-1]
	b.loopBreak = b.loopBreak[:len(b.loopBreak)-1]
	for _, pc := range breaks {
		b.patchJumpTo(pc, end)
	}
	b.patchJumpTo(jmpEnd, end)
}

func lowerLoopStmt(b *builder, st *ast.LoopStmt) {
	loopStart := b.here()
	b.loopBreak = append(b.loopBreak, nil)
	b.loopContinue = append(b.loopContinue, nil)
	lowerBlock(b, st.Body)
	continues := b.loopContinue[len(b.loopContinue)-1]
	b.loopContinue = b.loopContinue[:len(b.loopContinue)-1]
	backPC := b.emit(lir.SAx(lir.OpLoop, 0))
	b.patchJumpTo(backPC, loopStart)
	end := b.here()
	for _, pc := range continues {
		b.patchJumpTo(pc, loopStart)
	}
	breaks := b.loopBreak[len(b.loopBreak)-1]
	b.loopBreak = b.loopBreak[:len(b.loopBreak)-1]
	for _, pc := range breaks {
		b.patchJumpTo(pc, end)
	}
}

// lowerForStmt compiles `for name in iter ... end` through the generic
// ForPrep/ForIn iteration protocol (mutating a cursor in place over
// List/Set/Map/Range/String values) rather than specializing numeric ranges
// through ForLoop's dedicated fast path — a deliberate simplification since
// the generic protocol is correct for every iterable kind spec.md lists;
// ForLoop is reserved for a future numeric fast path and currently unused.
func lowerForStmt(b *builder, st *ast.ForStmt) {
	mark := b.regs.mark()
	iterReg := lowerExpr(b, st.Iter)
	b.emit(lir.ABC(lir.OpForPrep, iterReg, 0, 0))

	loopStart := b.here()
	hasNextReg := b.allocReg(st.SpanRange)
	valReg := b.allocReg(st.SpanRange)
	b.emit(lir.ABC(lir.OpForIn, iterReg, hasNextReg, valReg))
	b.emit(lir.ABC(lir.OpTest, hasNextReg, 0, 0))
	jmpBody := b.emit(lir.SAx(lir.OpJmp, 0))
	jmpEnd := b.emit(lir.SAx(lir.OpJmp, 0))
	b.patchJumpTo(jmpBody, b.here())

	b.loopBreak = append(b.loopBreak, nil)
	b.loopContinue = append(b.loopContinue, nil)
	b.pushBlock()
	b.defineLocal(st.Name, valReg)
	lowerBody(b, st.Body)
	b.popBlock(mark + 2)
	continues := b.loopContinue[len(b.loopContinue)-1]
	b.loopContinue = b.loopContinue[:len(b.loopContinue)-1]
	backPC := b.emit(lir.SAx(lir.OpLoop, 0))
	b.patchJumpTo(backPC, loopStart)
	end := b.here()
	for _, pc := range continues {
		b.patchJumpTo(pc, loopStart)
	}
	breaks := b.loopBreak[len(b.loopBreak)-1]
	b.loopBreak = b.loopBreak[:len(b.loopBreak)-1]
	for _, pc := range breaks {
		b.patchJumpTo(pc, end)
	}
	b.patchJumpTo(jmpEnd, end)
	b.regs.releaseTo(mark)
}

// lowerHandleStmt installs Handlers for the duration of Body (spec.md
// §4.8's dynamic-scope handler stack): each handler expression is lowered
// (typically an IdentExpr naming a HandlerDecl, whose "cell" reference value
// the VM resolves to that handler's dispatch cell) and the set is bundled
// into one List so HandlePush only needs a single register operand.
func lowerHandleStmt(b *builder, st *ast.HandleStmt) {
	mark := b.regs.mark()
	regs := make([]uint8, len(st.Handlers))
	for i, h := range st.Handlers {
		regs[i] = lowerExpr(b, h)
	}
	base := b.regs.mark()
	for _, reg := range regs {
		dst := b.allocReg(st.SpanRange)
		b.emit(lir.ABC(lir.OpMove, dst, reg, 0))
		_ = dst
	}
	listReg := b.allocReg(st.SpanRange)
	b.emit(lir.ABC(lir.OpNewList, listReg, base, uint8(len(st.Handlers))))
	b.emit(lir.ABC(lir.OpHandlePush, 0, listReg, 0))
	lowerBlock(b, st.Body)
	b.emit(lir.ABC(lir.OpHandlePop, 0, 0, 0))
	b.regs.releaseTo(mark)
}
