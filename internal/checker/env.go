// Package checker implements Lumen's bidirectional type checker (spec.md
// §4.5): check(expr, expected) / infer(expr) -> Type, annotating the AST
// with resolved types and enforcing match exhaustiveness, must_use, and
// mutability rules. Grounded on the teacher's internal/compiler/typechecker
// package (a single Checker walking the AST with an infer/check pair and a
// parallel declared-types environment) generalized from Conduit's resource
// field types to Lumen's full type algebra.
package checker

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/types"
)

// CellSig is the resolved signature of a callable: a cell, agent, or handler
// case.
type CellSig struct {
	Params   []types.Type
	ParamNames []string
	Variadic bool
	Ret      types.Type
	Effects  []string
	MustUse  bool
}

// Env is the module-wide declared-type environment the checker builds
// before walking any body, so forward references (a cell calling one
// declared later in the file) resolve without a second pass.
type Env struct {
	Records map[string]*ast.RecordDecl
	Enums   map[string]*ast.EnumDecl
	Aliases map[string]ast.TypeExpr
	Cells   map[string]CellSig
	Consts  map[string]types.Type
}

func NewEnv() *Env {
	return &Env{
		Records: map[string]*ast.RecordDecl{},
		Enums:   map[string]*ast.EnumDecl{},
		Aliases: map[string]ast.TypeExpr{},
		Cells:   map[string]CellSig{},
		Consts:  map[string]types.Type{},
	}
}

// BuildEnv scans every top-level item into the environment, converting cell
// signatures with the alias/record/enum tables populated first so mutually
// referencing declarations resolve regardless of order.
func BuildEnv(prog *ast.Program) *Env {
	env := NewEnv()
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.RecordDecl:
			env.Records[it.Name] = it
		case *ast.EnumDecl:
			env.Enums[it.Name] = it
		case *ast.TypeAliasDecl:
			env.Aliases[it.Name] = it.Target
		}
	}
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.CellDecl:
			sig := env.cellSig(it.Params, it.Ret, it.Effects)
			sig.MustUse = it.MustUse
			env.Cells[it.Name] = sig
		case *ast.AgentDecl:
			env.Cells[it.Name] = env.cellSig(it.Params, it.Ret, it.Effects)
		case *ast.ImplDecl:
			for _, c := range it.Cells {
				env.Cells[it.Target+"."+c.Name] = env.cellSig(c.Params, c.Ret, c.Effects)
			}
		}
	}
	return env
}

func (env *Env) cellSig(params []ast.Param, ret ast.TypeExpr, effects []string) CellSig {
	sig := CellSig{Ret: env.Convert(ret), Effects: effects}
	for _, p := range params {
		sig.Params = append(sig.Params, env.Convert(p.Type))
		sig.ParamNames = append(sig.ParamNames, p.Name)
	}
	return sig
}

// Convert turns a parsed ast.TypeExpr into a resolved types.Type, resolving
// named references against records/enums/aliases and normalizing `T?` sugar
// (spec.md §3 "T? is pure syntactic sugar for Union([T, Null])").
func (env *Env) Convert(te ast.TypeExpr) types.Type {
	if te == nil {
		return types.Any
	}
	switch t := te.(type) {
	case *ast.NamedType:
		return env.convertNamed(t)
	case *ast.TupleType:
		elems := make([]types.Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = env.Convert(e)
		}
		return types.Tuple(elems...)
	case *ast.ResultType:
		return types.Result(env.Convert(t.Ok), env.Convert(t.Err))
	case *ast.UnionType:
		members := make([]types.Type, len(t.Members))
		for i, m := range t.Members {
			members[i] = env.Convert(m)
		}
		return types.Union(members...)
	case *ast.OptionalType:
		return types.Optional(env.Convert(t.Inner))
	case *ast.FnType:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = env.Convert(p)
		}
		return types.Fn(params, env.Convert(t.Ret), t.Effects)
	default:
		return types.Any
	}
}

var primitiveNames = map[string]types.Type{
	"String": types.String, "Int": types.Int, "Float": types.Float,
	"Bool": types.Bool, "Bytes": types.Bytes, "Json": types.Json,
	"Null": types.Null, "Any": types.Any,
}

func (env *Env) convertNamed(t *ast.NamedType) types.Type {
	if prim, ok := primitiveNames[t.Name]; ok {
		return prim
	}
	switch t.Name {
	case "List":
		if len(t.Args) == 1 {
			return types.List(env.Convert(t.Args[0]))
		}
	case "Set":
		if len(t.Args) == 1 {
			return types.Set(env.Convert(t.Args[0]))
		}
	case "Map":
		if len(t.Args) == 2 {
			return types.Map(env.Convert(t.Args[0]), env.Convert(t.Args[1]))
		}
	}
	if _, ok := env.Records[t.Name]; ok {
		return types.Record(t.Name)
	}
	if _, ok := env.Enums[t.Name]; ok {
		return types.Enum(t.Name)
	}
	if alias, ok := env.Aliases[t.Name]; ok {
		return env.Convert(alias)
	}
	if len(t.Args) > 0 {
		args := make([]types.Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = env.Convert(a)
		}
		return types.TypeRef(t.Name, args...)
	}
	return types.Generic(t.Name)
}
