package checker

import "github.com/lumen-lang/lumen/internal/ast"

// bodyAlwaysReturns is a conservative straight-line/branch analysis: a block
// "always returns" if its last statement is a return/halt, or an if with
// both branches always returning, or a match where every arm always
// returns. It never reports false positives (claiming a return exists when
// it doesn't) but may be conservative about loops, which spec.md doesn't
// require proving terminate.
func bodyAlwaysReturns(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	return stmtAlwaysReturns(body[len(body)-1])
}

func stmtAlwaysReturns(s ast.Stmt) bool {
	switch st := s.(type) {
	case *ast.ReturnStmt:
		return true
	case *ast.HaltStmt:
		return true
	case *ast.IfStmt:
		return len(st.Else) > 0 && bodyAlwaysReturns(st.Then) && bodyAlwaysReturns(st.Else)
	case *ast.MatchStmt:
		if len(st.Arms) == 0 {
			return false
		}
		for _, arm := range st.Arms {
			if !bodyAlwaysReturns(arm.Body) {
				return false
			}
		}
		return true
	case *ast.LoopStmt:
		// An unconditional loop with no break only exits via return/halt.
		return !containsBreak(st.Body) && len(st.Body) > 0
	case *ast.HandleStmt:
		return bodyAlwaysReturns(st.Body)
	default:
		return false
	}
}

func containsBreak(body []ast.Stmt) bool {
	for _, s := range body {
		switch st := s.(type) {
		case *ast.BreakStmt:
			return true
		case *ast.IfStmt:
			if containsBreak(st.Then) || containsBreak(st.Else) {
				return true
			}
		case *ast.MatchStmt:
			for _, arm := range st.Arms {
				if containsBreak(arm.Body) {
					return true
				}
			}
		case *ast.HandleStmt:
			if containsBreak(st.Body) {
				return true
			}
		}
	}
	return false
}
