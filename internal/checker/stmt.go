package checker

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/types"
)

func (c *Checker) checkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		declared := c.env.Convert(st.Type)
		var got types.Type
		if st.Type != nil {
			c.check(st.Value, declared)
			got = declared
		} else {
			got = c.infer(st.Value)
		}
		c.localMut[st.Name] = st.Mutable
		c.localTypes[st.Name] = got
	case *ast.AssignStmt:
		c.checkAssignTarget(st.Target)
		targetTy := c.infer(st.Target)
		c.check(st.Value, targetTy)
	case *ast.ExprStmt:
		ty := c.infer(st.Value)
		if call, ok := st.Value.(*ast.CallExpr); ok {
			if name, ok := calleeName(call.Callee); ok {
				if sig, ok := c.env.Cells[name]; ok && sig.MustUse && ty.Kind != types.KNull {
					c.mustUseIgnored(name, st.Span())
				}
			}
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			c.check(st.Value, c.curRet)
		}
	case *ast.IfStmt:
		c.check(st.Cond, types.Bool)
		for _, b := range st.Then {
			c.checkStmt(b)
		}
		for _, b := range st.Else {
			c.checkStmt(b)
		}
	case *ast.WhileStmt:
		c.check(st.Cond, types.Bool)
		for _, b := range st.Body {
			c.checkStmt(b)
		}
	case *ast.ForStmt:
		iterTy := c.infer(st.Iter)
		elemTy := types.Any
		switch iterTy.Kind {
		case types.KList, types.KSet:
			elemTy = *iterTy.Elem
		}
		prev, had := c.localMut[st.Name]
		prevTy, hadTy := c.localTypes[st.Name]
		c.localMut[st.Name] = false
		c.localTypes[st.Name] = elemTy
		for _, b := range st.Body {
			c.checkStmt(b)
		}
		if had {
			c.localMut[st.Name] = prev
		} else {
			delete(c.localMut, st.Name)
		}
		if hadTy {
			c.localTypes[st.Name] = prevTy
		} else {
			delete(c.localTypes, st.Name)
		}
	case *ast.LoopStmt:
		for _, b := range st.Body {
			c.checkStmt(b)
		}
	case *ast.BreakStmt, *ast.ContinueStmt:
	case *ast.DeferStmt:
		for _, b := range st.Body {
			c.checkStmt(b)
		}
	case *ast.HaltStmt:
		if st.Message != nil {
			c.infer(st.Message)
		}
	case *ast.HandleStmt:
		for _, h := range st.Handlers {
			c.infer(h)
		}
		for _, b := range st.Body {
			c.checkStmt(b)
		}
	case *ast.MatchStmt:
		subjectTy := c.infer(st.Subject)
		for _, arm := range st.Arms {
			for _, b := range arm.Body {
				c.checkStmt(b)
			}
			if arm.Guard != nil {
				c.check(arm.Guard, types.Bool)
			}
		}
		c.checkMatchExhaustive(subjectTy, st.Arms, st.Span())
	}
}

func (c *Checker) checkAssignTarget(target ast.Expr) {
	id, ok := target.(*ast.IdentExpr)
	if !ok {
		return // field/index assignment targets are checked via infer on Object
	}
	if mut, ok := c.localMut[id.Name]; ok && !mut {
		c.immutableAssign(id.Name, id.Span())
	}
}

func calleeName(e ast.Expr) (string, bool) {
	switch ex := e.(type) {
	case *ast.IdentExpr:
		return ex.Name, true
	case *ast.FieldAccessExpr:
		if base, ok := calleeName(ex.Object); ok {
			return base + "." + ex.Field, true
		}
	}
	return "", false
}
