package lower

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/source"
)

// compilePattern emits the test for whether subjectReg matches pat, binding
// any captured names into the current (innermost) scope as a side effect.
// It returns (0, false) for patterns that always match (wildcard, bare
// bind) so the caller can skip the Test+Jmp pair entirely — spec.md's match
// compiler invariant that "a bare wildcard/bind arm always matches without a
// runtime test."
func compilePattern(b *builder, subjectReg uint8, pat ast.Pattern) (uint8, bool) {
	switch p := pat.(type) {
	case *ast.WildcardPattern:
		return 0, false

	case *ast.BindPattern:
		dst := b.allocReg(p.SpanRange)
		b.emit(lir.ABC(lir.OpMove, dst, subjectReg, 0))
		b.defineLocal(p.Name, dst)
		return 0, false

	case *ast.LiteralPattern:
		litReg := lowerExpr(b, p.Value)
		eqReg := b.allocReg(p.SpanRange)
		b.emit(lir.ABC(lir.OpEq, eqReg, subjectReg, litReg))
		return eqReg, true

	case *ast.VariantPattern:
		tagReg := b.freshNamed(p.SpanRange, p.Enum+"."+p.Variant)
		testReg := b.allocReg(p.SpanRange)
		b.emit(lir.ABC(lir.OpIsVariant, testReg, subjectReg, tagReg))
		for i, sub := range p.Payload {
			elemReg := b.allocReg(p.SpanRange)
			b.emit(lir.ABC(lir.OpGetTuple, elemReg, subjectReg, uint8(i)))
			subTest, has := compilePattern(b, elemReg, sub)
			if has {
				testReg = andTest(b, p.SpanRange, testReg, subTest)
			}
		}
		return testReg, true

	case *ast.RecordPattern:
		testReg := uint8(0)
		hasTest := false
		for name, sub := range p.Fields {
			nameReg := b.freshNamed(p.SpanRange, name)
			fieldReg := b.allocReg(p.SpanRange)
			b.emit(lir.ABC(lir.OpGetField, fieldReg, subjectReg, nameReg))
			subTest, has := compilePattern(b, fieldReg, sub)
			if has {
				if hasTest {
					testReg = andTest(b, p.SpanRange, testReg, subTest)
				} else {
					testReg, hasTest = subTest, true
				}
			}
		}
		return testReg, hasTest

	case *ast.TuplePattern:
		testReg := uint8(0)
		hasTest := false
		for i, sub := range p.Elems {
			elemReg := b.allocReg(p.SpanRange)
			b.emit(lir.ABC(lir.OpGetTuple, elemReg, subjectReg, uint8(i)))
			subTest, has := compilePattern(b, elemReg, sub)
			if has {
				if hasTest {
					testReg = andTest(b, p.SpanRange, testReg, subTest)
				} else {
					testReg, hasTest = subTest, true
				}
			}
		}
		return testReg, hasTest

	case *ast.OrPattern:
		var acc uint8
		hasAny := false
		for _, alt := range p.Alts {
			sub, has := compilePattern(b, subjectReg, alt)
			if !has {
				// An always-matching alternative makes the whole OrPattern
				// always match.
				return 0, false
			}
			if hasAny {
				acc = orTest(b, p.SpanRange, acc, sub)
			} else {
				acc, hasAny = sub, true
			}
		}
		return acc, hasAny

	default:
		return 0, false
	}
}

// lowerMatchStmt lowers a statement-form match: arms are tried in order,
// the first whose pattern (and guard, if any) matches runs its body and the
// rest are skipped.
func lowerMatchStmt(b *builder, st *ast.MatchStmt) {
	subjReg := lowerExpr(b, st.Subject)
	var endJumps []int
	for i, arm := range st.Arms {
		mark := b.regs.mark()
		b.pushBlock()
		test, has := matchArmTest(b, st.SpanRange, subjReg, arm.Pattern, arm.Guard)
		hasSkip := false
		var skipPC int
		if has {
			// Test skips on falsy; an arm must skip to the next arm on a
			// *mismatch*, so negate the match test first.
			notTest := b.allocReg(st.SpanRange)
			b.emit(lir.ABC(lir.OpNot, notTest, test, 0))
			b.emit(lir.ABC(lir.OpTest, notTest, 0, 0))
			skipPC = b.emit(lir.SAx(lir.OpJmp, 0))
			hasSkip = true
		}
		lowerBody(b, arm.Body)
		b.popBlock(mark)
		if i < len(st.Arms)-1 {
			endJumps = append(endJumps, b.emit(lir.SAx(lir.OpJmp, 0)))
		}
		if hasSkip {
			b.patchJumpTo(skipPC, b.here())
		}
	}
	end := b.here()
	for _, pc := range endJumps {
		b.patchJumpTo(pc, end)
	}
}

// lowerMatchExpr is MatchStmt's expression-form sibling: every arm is a
// single Expr whose value is moved into a shared destination register.
func lowerMatchExpr(b *builder, e *ast.MatchExpr) uint8 {
	subjReg := lowerExpr(b, e.Subject)
	dst := b.allocReg(e.SpanRange)
	b.emit(lir.ABC(lir.OpLoadNil, dst, 0, 0))
	var endJumps []int
	for i, arm := range e.Arms {
		mark := b.regs.mark()
		b.pushBlock()
		test, has := matchArmTest(b, e.SpanRange, subjReg, arm.Pattern, arm.Guard)
		hasSkip := false
		var skipPC int
		if has {
			notTest := b.allocReg(e.SpanRange)
			b.emit(lir.ABC(lir.OpNot, notTest, test, 0))
			b.emit(lir.ABC(lir.OpTest, notTest, 0, 0))
			skipPC = b.emit(lir.SAx(lir.OpJmp, 0))
			hasSkip = true
		}
		v := lowerExpr(b, arm.Value)
		b.emit(lir.ABC(lir.OpMove, dst, v, 0))
		b.popBlock(mark)
		if i < len(e.Arms)-1 {
			endJumps = append(endJumps, b.emit(lir.SAx(lir.OpJmp, 0)))
		}
		if hasSkip {
			b.patchJumpTo(skipPC, b.here())
		}
	}
	end := b.here()
	for _, pc := range endJumps {
		b.patchJumpTo(pc, end)
	}
	return dst
}

// matchArmTest combines a pattern's test with its optional guard; (0,
// false) means the arm always matches and the caller should skip the
// Test+Jmp pair entirely.
func matchArmTest(b *builder, sp source.Span, subjReg uint8, pat ast.Pattern, guard ast.Expr) (uint8, bool) {
	test, has := compilePattern(b, subjReg, pat)
	if guard == nil {
		return test, has
	}
	guardReg := lowerExpr(b, guard)
	if !has {
		return guardReg, true
	}
	return andTest(b, sp, test, guardReg), true
}

func andTest(b *builder, sp source.Span, a, c uint8) uint8 {
	dst := b.allocReg(sp)
	b.emit(lir.ABC(lir.OpAnd, dst, a, c))
	return dst
}

func orTest(b *builder, sp source.Span, a, c uint8) uint8 {
	dst := b.allocReg(sp)
	b.emit(lir.ABC(lir.OpOr, dst, a, c))
	return dst
}
