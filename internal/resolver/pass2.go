package resolver

import (
	"github.com/lumen-lang/lumen/internal/ast"
)

// pass2Bodies walks every cell, agent, process, and impl body with a lexical
// scope stack, linking each identifier use to its binding and recording the
// direct tool/perform/call effects contributed by each cell (spec.md §4.4
// Pass 2 + effect inference's direct-edge collection; the fixpoint closure
// happens afterward in inferEffects).
func (r *resolver) pass2Bodies(prog *ast.Program) {
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.CellDecl:
			r.walkCell(it.Name, it.Params, it.Body)
		case *ast.AgentDecl:
			r.walkCell(it.Name, it.Params, it.Body)
		case *ast.ProcessDecl:
			if it.Body != nil {
				r.walkCell(it.Name, nil, it.Body)
			}
		case *ast.ImplDecl:
			for _, c := range it.Cells {
				r.walkCell(it.Target+"."+c.Name, c.Params, c.Body)
			}
		case *ast.HandlerDecl:
			for _, hc := range it.Cases {
				r.walkCell(it.Name+"."+hc.Op, hc.Params, hc.Body)
			}
		}
	}
}

func (r *resolver) walkCell(name string, params []ast.Param, body []ast.Stmt) {
	r.curCell = name
	if _, ok := r.callGraph[name]; !ok {
		r.callGraph[name] = map[string]bool{}
		r.directEffects[name] = map[string]bool{}
	}
	r.pushScope(true)
	for _, p := range params {
		r.cur.define(p.Name, &Binding{Kind: BindParam, Name: p.Name, Mutable: p.Mutable})
	}
	r.walkBlock(body)
	r.popScope()
	r.curCell = ""
}

func (r *resolver) walkBlock(body []ast.Stmt) {
	for _, s := range body {
		r.walkStmt(s)
	}
}

func (r *resolver) walkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		r.walkExpr(st.Value)
		r.cur.define(st.Name, &Binding{Kind: BindLet, Name: st.Name, Mutable: st.Mutable})
	case *ast.AssignStmt:
		r.walkExpr(st.Target)
		r.walkExpr(st.Value)
	case *ast.ExprStmt:
		r.walkExpr(st.Value)
	case *ast.ReturnStmt:
		if st.Value != nil {
			r.walkExpr(st.Value)
		}
	case *ast.IfStmt:
		r.walkExpr(st.Cond)
		r.pushScope(false)
		r.walkBlock(st.Then)
		r.popScope()
		if st.Else != nil {
			r.pushScope(false)
			r.walkBlock(st.Else)
			r.popScope()
		}
	case *ast.WhileStmt:
		r.walkExpr(st.Cond)
		r.pushScope(false)
		r.walkBlock(st.Body)
		r.popScope()
	case *ast.ForStmt:
		r.walkExpr(st.Iter)
		r.pushScope(false)
		r.cur.define(st.Name, &Binding{Kind: BindLet, Name: st.Name})
		r.walkBlock(st.Body)
		r.popScope()
	case *ast.LoopStmt:
		r.pushScope(false)
		r.walkBlock(st.Body)
		r.popScope()
	case *ast.BreakStmt, *ast.ContinueStmt:
		// no operands
	case *ast.DeferStmt:
		r.pushScope(false)
		r.walkBlock(st.Body)
		r.popScope()
	case *ast.HaltStmt:
		if st.Message != nil {
			r.walkExpr(st.Message)
		}
	case *ast.HandleStmt:
		for _, h := range st.Handlers {
			r.walkExpr(h)
		}
		r.pushScope(false)
		r.walkBlock(st.Body)
		r.popScope()
	case *ast.MatchStmt:
		r.walkExpr(st.Subject)
		for _, arm := range st.Arms {
			r.pushScope(false)
			r.bindPattern(arm.Pattern)
			if arm.Guard != nil {
				r.walkExpr(arm.Guard)
			}
			r.walkBlock(arm.Body)
			r.popScope()
		}
	}
}

// bindPattern introduces every name a pattern binds into the current scope,
// without resolving them as identifier *uses* (patterns are where names are
// *defined*, the mirror image of expressions where names are *used*).
func (r *resolver) bindPattern(p ast.Pattern) {
	switch pt := p.(type) {
	case *ast.BindPattern:
		r.cur.define(pt.Name, &Binding{Kind: BindLet, Name: pt.Name})
	case *ast.VariantPattern:
		for _, sub := range pt.Payload {
			r.bindPattern(sub)
		}
	case *ast.RecordPattern:
		for _, sub := range pt.Fields {
			r.bindPattern(sub)
		}
	case *ast.TuplePattern:
		for _, sub := range pt.Elems {
			r.bindPattern(sub)
		}
	case *ast.OrPattern:
		for _, sub := range pt.Alts {
			r.bindPattern(sub)
		}
	case *ast.LiteralPattern:
		r.walkExpr(pt.Value)
	case *ast.WildcardPattern:
		// binds nothing
	}
}

func (r *resolver) walkExpr(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.IdentExpr:
		r.resolveIdent(ex)
	case *ast.LiteralExpr:
	case *ast.StringInterpExpr:
		for _, part := range ex.Parts {
			r.walkExpr(part)
		}
	case *ast.BinaryExpr:
		r.walkExpr(ex.Left)
		r.walkExpr(ex.Right)
	case *ast.UnaryExpr:
		r.walkExpr(ex.Operand)
	case *ast.CallExpr:
		r.walkExpr(ex.Callee)
		for _, a := range ex.Args {
			r.walkExpr(a)
		}
		r.recordCall(ex.Callee)
	case *ast.FieldAccessExpr:
		r.walkExpr(ex.Object)
	case *ast.IndexExpr:
		r.walkExpr(ex.Object)
		r.walkExpr(ex.Index)
	case *ast.TupleExpr:
		for _, el := range ex.Elems {
			r.walkExpr(el)
		}
	case *ast.ListExpr:
		for _, el := range ex.Elems {
			r.walkExpr(el)
		}
	case *ast.SetExpr:
		for _, el := range ex.Elems {
			r.walkExpr(el)
		}
	case *ast.MapExpr:
		for _, en := range ex.Entries {
			r.walkExpr(en.Key)
			r.walkExpr(en.Value)
		}
	case *ast.RecordLitExpr:
		for _, f := range ex.Fields {
			r.walkExpr(f.Value)
		}
		if ex.Spread != nil {
			r.walkExpr(ex.Spread)
		}
	case *ast.RangeExpr:
		r.walkExpr(ex.Start)
		r.walkExpr(ex.End)
	case *ast.IfExpr:
		r.walkExpr(ex.Cond)
		r.walkExpr(ex.Then)
		r.walkExpr(ex.Else)
	case *ast.MatchExpr:
		r.walkExpr(ex.Subject)
		for _, arm := range ex.Arms {
			r.pushScope(false)
			r.bindPattern(arm.Pattern)
			if arm.Guard != nil {
				r.walkExpr(arm.Guard)
			}
			r.walkExpr(arm.Value)
			r.popScope()
		}
	case *ast.BlockExpr:
		r.pushScope(false)
		r.walkBlock(ex.Body)
		r.popScope()
	case *ast.LambdaExpr:
		r.pushScope(true)
		for _, p := range ex.Params {
			r.cur.define(p.Name, &Binding{Kind: BindParam, Name: p.Name, Mutable: p.Mutable})
		}
		r.walkExpr(ex.Body)
		r.popScope()
	case *ast.TryExpr:
		r.walkExpr(ex.Inner)
	case *ast.IsExpr:
		r.walkExpr(ex.Subject)
		r.pushScope(false)
		r.bindPattern(ex.Pattern)
		r.popScope()
	case *ast.AsExpr:
		r.walkExpr(ex.Subject)
	case *ast.PerformExpr:
		for _, a := range ex.Args {
			r.walkExpr(a)
		}
		r.directEffects[r.curCell][ex.Effect] = true
	case *ast.ResumeExpr:
		if ex.Value != nil {
			r.walkExpr(ex.Value)
		}
	case *ast.SpawnExpr:
		r.walkExpr(ex.Body)
	case *ast.AwaitExpr:
		r.walkExpr(ex.Inner)
	case *ast.ParallelExpr:
		for _, b := range ex.Branches {
			r.walkExpr(b)
		}
	case *ast.RaceExpr:
		for _, b := range ex.Branches {
			r.walkExpr(b)
		}
	case *ast.VoteExpr:
		for _, b := range ex.Branches {
			r.walkExpr(b)
		}
		if ex.Quorum != nil {
			r.walkExpr(ex.Quorum)
		}
	case *ast.SelectExpr:
		for _, c := range ex.Cases {
			r.walkExpr(c.Source)
			r.walkExpr(c.Body)
		}
	case *ast.TimeoutExpr:
		r.walkExpr(ex.Duration)
		r.walkExpr(ex.Inner)
		r.walkExpr(ex.Fallback)
	}
}

// recordCall adds a call-graph edge from the current cell to callee, and a
// direct tool-call effect edge if callee resolves to a `use tool` alias.
func (r *resolver) recordCall(callee ast.Expr) {
	name, ok := calleeName(callee)
	if !ok || r.curCell == "" {
		return
	}
	r.callGraph[r.curCell][name] = true
	if sym, ok := r.table.Lookup(name); ok && sym.Kind == SymTool {
		if effect, bound := r.res.ToolEffects[name]; bound {
			r.directEffects[r.curCell][effect] = true
		}
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

func (r *resolver) resolveIdent(ex *ast.IdentExpr) {
	if b, ok := r.cur.lookup(ex.Name); ok {
		r.res.Idents[ex] = b
		return
	}
	if sym, ok := r.table.Lookup(ex.Name); ok {
		kind := BindTopLevel
		if sym.Kind == SymImport {
			kind = BindImport
		}
		r.res.Idents[ex] = &Binding{Kind: kind, Name: ex.Name, Symbol: sym}
		return
	}
	// Bare enum variants (`North`, or `Ok` in `Ok(5)`) never enter the
	// top-level table under their own name; bind them to their declaring
	// enum's symbol instead of reporting them undefined.
	if sym, ok := r.lookupVariantEnum(ex.Name); ok {
		r.res.Idents[ex] = &Binding{Kind: BindTopLevel, Name: ex.Name, Symbol: sym}
		return
	}
	r.undefined(ex.Name, ex.Span())
}

// lookupVariantEnum finds the enum declaring a variant by that bare name.
func (r *resolver) lookupVariantEnum(name string) (*Symbol, bool) {
	for _, symName := range r.table.Names() {
		sym, _ := r.table.Lookup(symName)
		if sym == nil || sym.Kind != SymEnum {
			continue
		}
		decl, ok := sym.Decl.(*ast.EnumDecl)
		if !ok {
			continue
		}
		for _, v := range decl.Variants {
			if v.Name == name {
				return sym, true
			}
		}
	}
	return nil, false
}
