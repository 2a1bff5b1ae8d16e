package checker

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/types"
)

// check verifies expr against an expected type, falling back to infer+
// AssignableTo when no expression-specific checking rule applies (spec.md
// §4.5 "check(expr, expected)").
func (c *Checker) check(expr ast.Expr, expected types.Type) types.Type {
	switch ex := expr.(type) {
	case *ast.ListExpr:
		elemExpect := types.Any
		if expected.Kind == types.KList {
			elemExpect = *expected.Elem
		}
		for _, el := range ex.Elems {
			c.check(el, elemExpect)
		}
		c.Types[expr] = expected
		return expected
	case *ast.RecordLitExpr:
		return c.checkRecordLit(ex, expected)
	case *ast.IfExpr:
		c.check(ex.Cond, types.Bool)
		c.check(ex.Then, expected)
		c.check(ex.Else, expected)
		c.Types[expr] = expected
		return expected
	case *ast.LambdaExpr:
		if expected.Kind == types.KFn {
			c.check(ex.Body, *expected.Ret)
		} else {
			c.infer(ex.Body)
		}
		c.Types[expr] = expected
		return expected
	}
	got := c.infer(expr)
	if expected.Kind != types.KAny && !types.AssignableTo(got, expected) {
		c.mismatch(expected, got, expr.Span())
	}
	return expected
}

// infer computes expr's type bottom-up (spec.md §4.5 "infer(expr) -> Type").
func (c *Checker) infer(expr ast.Expr) types.Type {
	var ty types.Type
	switch ex := expr.(type) {
	case *ast.LiteralExpr:
		ty = literalType(ex)
	case *ast.StringInterpExpr:
		for _, p := range ex.Parts {
			c.infer(p)
		}
		ty = types.String
	case *ast.IdentExpr:
		ty = c.inferIdent(ex)
	case *ast.BinaryExpr:
		ty = c.inferBinary(ex)
	case *ast.UnaryExpr:
		ty = c.inferUnary(ex)
	case *ast.CallExpr:
		ty = c.inferCall(ex)
	case *ast.FieldAccessExpr:
		ty = c.inferField(ex)
	case *ast.IndexExpr:
		ty = c.inferIndex(ex)
	case *ast.TupleExpr:
		elems := make([]types.Type, len(ex.Elems))
		for i, e := range ex.Elems {
			elems[i] = c.infer(e)
		}
		ty = types.Tuple(elems...)
	case *ast.ListExpr:
		ty = c.inferCollectionLUB(ex.Elems, types.List)
	case *ast.SetExpr:
		ty = c.inferCollectionLUB(ex.Elems, types.Set)
	case *ast.MapExpr:
		ty = c.inferMap(ex)
	case *ast.RecordLitExpr:
		ty = c.checkRecordLit(ex, types.Any)
	case *ast.RangeExpr:
		c.infer(ex.Start)
		c.infer(ex.End)
		ty = types.List(types.Int)
	case *ast.IfExpr:
		thenTy := c.infer(ex.Then)
		elseTy := c.infer(ex.Else)
		c.infer(ex.Cond)
		ty = types.Union(thenTy, elseTy)
	case *ast.MatchExpr:
		ty = c.inferMatchExpr(ex)
	case *ast.BlockExpr:
		ty = c.inferBlock(ex.Body)
	case *ast.LambdaExpr:
		retTy := c.infer(ex.Body)
		params := make([]types.Type, len(ex.Params))
		for i, p := range ex.Params {
			params[i] = c.env.Convert(p.Type)
		}
		ty = types.Fn(params, retTy, nil)
	case *ast.TryExpr:
		ty = c.inferTry(ex)
	case *ast.IsExpr:
		c.infer(ex.Subject)
		ty = types.Bool
	case *ast.AsExpr:
		c.infer(ex.Subject)
		ty = c.env.Convert(ex.Type)
	case *ast.PerformExpr:
		for _, a := range ex.Args {
			c.infer(a)
		}
		ty = types.Any
	case *ast.ResumeExpr:
		if ex.Value != nil {
			c.infer(ex.Value)
		}
		ty = types.Any
	case *ast.SpawnExpr:
		inner := c.infer(ex.Body)
		ty = types.TypeRef("Future", inner)
	case *ast.AwaitExpr:
		inner := c.infer(ex.Inner)
		if inner.Kind == types.KTypeRef && inner.Name == "Future" && len(inner.Args) == 1 {
			ty = inner.Args[0]
		} else {
			ty = types.Any
		}
	case *ast.ParallelExpr:
		var elem types.Type
		for i, b := range ex.Branches {
			t := c.infer(b)
			if i == 0 {
				elem = t
			} else {
				elem = types.Union(elem, t)
			}
		}
		ty = types.List(elem)
	case *ast.RaceExpr:
		ty = c.inferCollectionLUBNoWrap(ex.Branches)
	case *ast.VoteExpr:
		ty = c.inferCollectionLUBNoWrap(ex.Branches)
		if ex.Quorum != nil {
			c.infer(ex.Quorum)
		}
	case *ast.SelectExpr:
		var elem types.Type
		for i, cs := range ex.Cases {
			c.infer(cs.Source)
			t := c.infer(cs.Body)
			if i == 0 {
				elem = t
			} else {
				elem = types.Union(elem, t)
			}
		}
		ty = types.Optional(elem)
	case *ast.TimeoutExpr:
		c.infer(ex.Duration)
		inner := c.infer(ex.Inner)
		c.infer(ex.Fallback)
		ty = types.Optional(inner)
	default:
		ty = types.Any
	}
	c.Types[expr] = ty
	return ty
}

func literalType(lit *ast.LiteralExpr) types.Type {
	switch lit.Kind {
	case ast.LitInt, ast.LitBigInt:
		return types.Int
	case ast.LitFloat:
		return types.Float
	case ast.LitString:
		return types.String
	case ast.LitBytes:
		return types.Bytes
	case ast.LitBool:
		return types.Bool
	case ast.LitNull:
		return types.Null
	default:
		return types.Any
	}
}

func (c *Checker) inferIdent(ex *ast.IdentExpr) types.Type {
	if b, ok := c.res.Idents[ex]; ok && b.Symbol != nil {
		if sig, ok := c.env.Cells[b.Name]; ok {
			return types.Fn(sig.Params, sig.Ret, sig.Effects)
		}
	}
	if ty, ok := c.localTypes[ex.Name]; ok {
		return ty
	}
	// Anything else (an unresolved name pass 2 already reported, a
	// closure upvalue) widens to Any rather than mis-reporting a
	// spurious mismatch on top of the resolver's diagnostic.
	return types.Any
}

func (c *Checker) inferBinary(ex *ast.BinaryExpr) types.Type {
	l := c.infer(ex.Left)
	r := c.infer(ex.Right)
	if l.Kind == types.KAny || r.Kind == types.KAny {
		return types.Any
	}
	switch ex.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod, ast.OpPow, ast.OpFloorDiv:
		if l.Kind == types.KFloat || r.Kind == types.KFloat {
			return types.Float
		}
		return types.Int
	case ast.OpConcat:
		return types.String
	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte, ast.OpAnd, ast.OpOr:
		return types.Bool
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpShl, ast.OpShr:
		return types.Int
	case ast.OpNullCoal:
		if types.IsNullable(l) {
			return types.Union(stripNull(l), r)
		}
		return l
	case ast.OpPipe, ast.OpChain:
		return r
	default:
		return types.Any
	}
}

func stripNull(t types.Type) types.Type {
	if t.Kind != types.KUnion {
		return t
	}
	var rest []types.Type
	for _, m := range t.Members {
		if m.Kind != types.KNull {
			rest = append(rest, m)
		}
	}
	return types.Union(rest...)
}

func (c *Checker) inferUnary(ex *ast.UnaryExpr) types.Type {
	t := c.infer(ex.Operand)
	switch ex.Op {
	case ast.OpNot:
		return types.Bool
	case ast.OpBitNot:
		return types.Int
	default:
		return t
	}
}

func (c *Checker) inferCall(ex *ast.CallExpr) types.Type {
	calleeTy := c.infer(ex.Callee)
	for _, a := range ex.Args {
		c.infer(a)
	}
	if calleeTy.Kind == types.KAny {
		return types.Any
	}
	if calleeTy.Kind != types.KFn {
		c.notCallable(calleeTy, ex.Callee.Span())
		return types.Any
	}
	name, _ := calleeName(ex.Callee)
	if !fnHasVariadic(calleeTy) && len(ex.Args) != len(calleeTy.Params) {
		c.argCount(name, len(calleeTy.Params), len(ex.Args), ex.Span())
	}
	for i, a := range ex.Args {
		if i < len(calleeTy.Params) {
			c.check(a, calleeTy.Params[i])
		}
	}
	return *calleeTy.Ret
}

func fnHasVariadic(t types.Type) bool {
	return len(t.Params) > 0 && t.Params[len(t.Params)-1].Kind == types.KList
}

func (c *Checker) inferField(ex *ast.FieldAccessExpr) types.Type {
	// `Enum.Variant` construction carries the enum's type.
	if id, ok := ex.Object.(*ast.IdentExpr); ok {
		if _, isEnum := c.env.Enums[id.Name]; isEnum {
			if _, isLocal := c.localTypes[id.Name]; !isLocal {
				return types.Enum(id.Name)
			}
		}
	}
	objTy := c.infer(ex.Object)
	base := objTy
	if ex.Safe {
		base = stripNull(objTy)
	}
	if base.Kind == types.KAny {
		return types.Any
	}
	if base.Kind == types.KRecord {
		if rec, ok := c.env.Records[base.Name]; ok {
			for _, f := range rec.Fields {
				if f.Name == ex.Field {
					ft := c.env.Convert(f.Type)
					if ex.Safe {
						return types.Optional(ft)
					}
					return ft
				}
			}
		}
		c.unknownField(base.Name, ex.Field, ex.Span())
		return types.Any
	}
	return types.Any
}

func (c *Checker) inferIndex(ex *ast.IndexExpr) types.Type {
	objTy := c.infer(ex.Object)
	c.infer(ex.Index)
	var ty types.Type
	switch objTy.Kind {
	case types.KList, types.KSet:
		ty = *objTy.Elem
	case types.KMap:
		ty = *objTy.Value
	default:
		ty = types.Any
	}
	if ex.Safe {
		return types.Optional(ty)
	}
	return ty
}

func (c *Checker) inferCollectionLUB(elems []ast.Expr, wrap func(types.Type) types.Type) types.Type {
	if len(elems) == 0 {
		return wrap(types.Any)
	}
	var acc types.Type
	for i, e := range elems {
		t := c.infer(e)
		if i == 0 {
			acc = t
		} else if !types.Equal(acc, t) {
			acc = types.Union(acc, t)
		}
	}
	return wrap(acc)
}

func (c *Checker) inferCollectionLUBNoWrap(elems []ast.Expr) types.Type {
	if len(elems) == 0 {
		return types.Any
	}
	var acc types.Type
	for i, e := range elems {
		t := c.infer(e)
		if i == 0 {
			acc = t
		} else {
			acc = types.Union(acc, t)
		}
	}
	return acc
}

func (c *Checker) inferMap(ex *ast.MapExpr) types.Type {
	if len(ex.Entries) == 0 {
		return types.Map(types.String, types.Any)
	}
	var kAcc, vAcc types.Type
	for i, e := range ex.Entries {
		k := c.infer(e.Key)
		v := c.infer(e.Value)
		if i == 0 {
			kAcc, vAcc = k, v
		} else {
			kAcc = types.Union(kAcc, k)
			vAcc = types.Union(vAcc, v)
		}
	}
	return types.Map(kAcc, vAcc)
}

func (c *Checker) checkRecordLit(ex *ast.RecordLitExpr, expected types.Type) types.Type {
	rec, ok := c.env.Records[ex.Record]
	if !ok {
		c.undefinedType(ex.Record, ex.Span())
		for _, f := range ex.Fields {
			c.infer(f.Value)
		}
		return types.Record(ex.Record)
	}
	if ex.Spread != nil {
		c.check(ex.Spread, types.Record(ex.Record))
	}
	for _, f := range ex.Fields {
		var fieldTy types.Type
		found := false
		for _, decl := range rec.Fields {
			if decl.Name == f.Name {
				fieldTy = c.env.Convert(decl.Type)
				found = true
				break
			}
		}
		if !found {
			c.unknownField(ex.Record, f.Name, ex.Span())
			c.infer(f.Value)
			continue
		}
		c.check(f.Value, fieldTy)
	}
	return types.Record(ex.Record)
}

func (c *Checker) inferBlock(body []ast.Stmt) types.Type {
	for i, s := range body {
		if i == len(body)-1 {
			if es, ok := s.(*ast.ExprStmt); ok {
				return c.infer(es.Value)
			}
		}
		c.checkStmt(s)
	}
	return types.Null
}

func (c *Checker) inferTry(ex *ast.TryExpr) types.Type {
	inner := c.infer(ex.Inner)
	if inner.Kind != types.KResult {
		c.mismatch(types.Result(types.Any, types.Any), inner, ex.Span())
		return types.Any
	}
	if c.curErr == nil || (c.curRet.Kind != types.KResult) {
		c.errAtTryOutsideResult(ex)
		return *inner.Ok
	}
	// WidenErrUnion (DESIGN.md open-question decision): a narrower Err
	// silently widens into the enclosing cell's declared Err type.
	return *inner.Ok
}

func (c *Checker) errAtTryOutsideResult(ex *ast.TryExpr) {
	c.errAt(diag.ErrMismatch, "`try` is only valid in a cell whose return type is Result(_, _)", ex.Span())
}
