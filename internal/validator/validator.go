// Package validator implements Lumen's constraint validation stage
// (spec.md §4.6): checking that every `where` clause attached to a cell
// signature or a record field stays inside a deterministic expression
// subset — comparisons, boolean operators, arithmetic, and field access on
// the record/parameters under construction — so the lowering stage can
// later emit these checks as ordinary guarded code without ever calling
// into the scheduler or the tool dispatcher. Grounded on the teacher's
// internal/compiler/validator package, which walks a resource's validation
// block the same stateless way: one recursive "is this expression allowed
// here" predicate per node kind, no parallel environment to build.
package validator

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/source"
)

// Validator accumulates diagnostics while walking a program's where clauses.
type Validator struct {
	diags diag.List
}

// Validate walks every CellDecl, AgentDecl, and RecordDecl/Field where
// clause in prog and returns the diagnostics raised against the
// deterministic-subset rule.
func Validate(prog *ast.Program) diag.List {
	v := &Validator{}
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.CellDecl:
			v.checkClauses(it.Where, paramNames(it.Params), "")
		case *ast.AgentDecl:
			v.checkClauses(it.Where, paramNames(it.Params), "")
		case *ast.RecordDecl:
			names := make(map[string]bool, len(it.Fields))
			for _, f := range it.Fields {
				names[f.Name] = true
			}
			for _, f := range it.Fields {
				v.checkClauses(f.Where, names, f.Name)
			}
		case *ast.ImplDecl:
			for _, cell := range it.Cells {
				v.checkClauses(cell.Where, paramNames(cell.Params), "")
			}
		}
	}
	return v.diags
}

func paramNames(params []ast.Param) map[string]bool {
	out := make(map[string]bool, len(params))
	for _, p := range params {
		out[p.Name] = true
	}
	return out
}

func (v *Validator) checkClauses(clauses []ast.WhereClause, bound map[string]bool, selfField string) {
	for _, wc := range clauses {
		for _, arg := range wc.Args {
			v.checkExpr(arg, bound, selfField, wc.Name)
		}
	}
}

// checkExpr recursively verifies expr uses only the deterministic subset:
// literals, identifiers bound by the surrounding signature/record, field
// access, arithmetic, comparison, and boolean operators. Anything that
// could perform I/O, invoke a tool, suspend on an effect, or otherwise
// vary between runs (calls to unknown cells, perform/resume/spawn/await,
// orchestration primitives) is rejected.
func (v *Validator) checkExpr(e ast.Expr, bound map[string]bool, selfField, clause string) {
	switch ex := e.(type) {
	case nil:
		return
	case *ast.LiteralExpr:
		return
	case *ast.IdentExpr:
		if ex.Name != selfField && !bound[ex.Name] && !allowedFreeName(ex.Name) {
			v.nonDeterministic(clause, fmt.Sprintf("reference to %q is not visible inside a where clause", ex.Name), ex.Span())
		}
	case *ast.BinaryExpr:
		v.checkExpr(ex.Left, bound, selfField, clause)
		v.checkExpr(ex.Right, bound, selfField, clause)
	case *ast.UnaryExpr:
		v.checkExpr(ex.Operand, bound, selfField, clause)
	case *ast.FieldAccessExpr:
		v.checkExpr(ex.Object, bound, selfField, clause)
	case *ast.IndexExpr:
		v.checkExpr(ex.Object, bound, selfField, clause)
		v.checkExpr(ex.Index, bound, selfField, clause)
	case *ast.TupleExpr:
		for _, el := range ex.Elems {
			v.checkExpr(el, bound, selfField, clause)
		}
	case *ast.ListExpr:
		for _, el := range ex.Elems {
			v.checkExpr(el, bound, selfField, clause)
		}
	case *ast.RangeExpr:
		v.checkExpr(ex.Start, bound, selfField, clause)
		v.checkExpr(ex.End, bound, selfField, clause)
	case *ast.IfExpr:
		v.checkExpr(ex.Cond, bound, selfField, clause)
		v.checkExpr(ex.Then, bound, selfField, clause)
		v.checkExpr(ex.Else, bound, selfField, clause)
	case *ast.IsExpr:
		v.checkExpr(ex.Subject, bound, selfField, clause)
	case *ast.CallExpr:
		name, ok := pureCalleeName(ex.Callee)
		if !ok || !pureBuiltins[name] {
			v.sideEffect(clause, "calls are not permitted in a where clause except pure builtins (len, abs, min, max)", ex.Span())
			return
		}
		for _, a := range ex.Args {
			v.checkExpr(a, bound, selfField, clause)
		}
	case *ast.PerformExpr, *ast.ResumeExpr, *ast.SpawnExpr, *ast.AwaitExpr,
		*ast.ParallelExpr, *ast.RaceExpr, *ast.VoteExpr, *ast.SelectExpr,
		*ast.TimeoutExpr, *ast.TryExpr, *ast.BlockExpr, *ast.LambdaExpr:
		v.sideEffect(clause, "effects, concurrency, and control-flow expressions are not permitted in a where clause", e.Span())
	default:
		v.sideEffect(clause, "expression kind is not permitted in a where clause", e.Span())
	}
}

// pureBuiltins are the handful of total, side-effect-free functions the
// deterministic subset admits (spec.md §4.6's "arithmetic" carve-out
// extends to these library intrinsics since they never allocate, block,
// or observe ambient state).
var pureBuiltins = map[string]bool{
	"len": true, "abs": true, "min": true, "max": true,
}

func pureCalleeName(callee ast.Expr) (string, bool) {
	if id, ok := callee.(*ast.IdentExpr); ok {
		return id.Name, true
	}
	return "", false
}

// allowedFreeName covers the constant `true`/`false`/`null` spellings the
// lexer may tokenize as identifiers rather than literals in some contexts;
// kept narrow deliberately.
func allowedFreeName(name string) bool {
	switch name {
	case "true", "false", "null":
		return true
	default:
		return false
	}
}

func loc(sp source.Span) diag.Location {
	return diag.Location{File: sp.File, Line: sp.StartLine, Column: sp.StartCol, Length: sp.Len()}
}

func (v *Validator) nonDeterministic(clause, msg string, sp source.Span) {
	v.diags = append(v.diags, diag.New("constraint", diag.ErrConstraintNonDeterm,
		fmt.Sprintf("where %s: %s", clause, msg), loc(sp), diag.Error))
}

func (v *Validator) sideEffect(clause, msg string, sp source.Span) {
	v.diags = append(v.diags, diag.New("constraint", diag.ErrConstraintSideEffect,
		fmt.Sprintf("where %s: %s", clause, msg), loc(sp), diag.Error))
}
