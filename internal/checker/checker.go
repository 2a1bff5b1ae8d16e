package checker

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/resolver"
	"github.com/lumen-lang/lumen/internal/source"
	"github.com/lumen-lang/lumen/internal/types"
)

// Checker walks a resolved AST bidirectionally, annotating Types and
// collecting diagnostics.
type Checker struct {
	env   *Env
	res   *resolver.Resolution
	diags diag.List

	Types map[ast.Expr]types.Type

	curRet     types.Type  // enclosing cell's declared/inferred return type
	curErr     *types.Type // Err member of curRet when it is a Result, for `try`
	localMut   map[string]bool
	localTypes map[string]types.Type // params and let bindings in the current body
}

// Check runs the full bidirectional pass over prog, returning the resolved
// expression-type table and any diagnostics.
func Check(prog *ast.Program, env *Env, res *resolver.Resolution) (map[ast.Expr]types.Type, diag.List) {
	c := &Checker{env: env, res: res, Types: map[ast.Expr]types.Type{}, localMut: map[string]bool{}, localTypes: map[string]types.Type{}}
	for _, item := range prog.Items {
		c.checkItem(item)
	}
	return c.Types, c.diags
}

func (c *Checker) checkItem(item ast.Item) {
	switch it := item.(type) {
	case *ast.CellDecl:
		c.checkCellBody(it.Name, it.Params, it.Ret, it.Body)
	case *ast.AgentDecl:
		c.checkCellBody(it.Name, it.Params, it.Ret, it.Body)
	case *ast.ImplDecl:
		for _, cell := range it.Cells {
			c.checkCellBody(it.Target+"."+cell.Name, cell.Params, cell.Ret, cell.Body)
		}
	case *ast.HandlerDecl:
		for _, hc := range it.Cases {
			c.checkCellBody(it.Name+"."+hc.Op, hc.Params, nil, hc.Body)
		}
	case *ast.RecordDecl:
		for _, f := range it.Fields {
			if f.Default != nil {
				c.check(f.Default, c.env.Convert(f.Type))
			}
		}
	case *ast.ConstDecl:
		c.check(it.Value, c.env.Convert(it.Type))
	}
}

func (c *Checker) checkCellBody(name string, params []ast.Param, ret ast.TypeExpr, body []ast.Stmt) {
	retTy := c.env.Convert(ret)
	c.curRet = retTy
	c.curErr = nil
	if retTy.Kind == types.KResult {
		errTy := *retTy.Err
		c.curErr = &errTy
	}
	prevMut := c.localMut
	prevTypes := c.localTypes
	c.localMut = map[string]bool{}
	c.localTypes = map[string]types.Type{}
	for _, p := range params {
		c.localMut[p.Name] = p.Mutable
		c.localTypes[p.Name] = c.env.Convert(p.Type)
	}
	for _, s := range body {
		c.checkStmt(s)
	}
	if retTy.Kind != types.KAny && retTy.Kind != types.KNull && !bodyAlwaysReturns(body) {
		sp := bodySpan(body)
		c.missingReturn(name, sp)
	}
	c.localMut = prevMut
	c.localTypes = prevTypes
}

func bodySpan(body []ast.Stmt) source.Span {
	if len(body) == 0 {
		return source.Span{}
	}
	return source.Merge(body[0].Span(), body[len(body)-1].Span())
}
