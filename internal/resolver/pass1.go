package resolver

import (
	"fmt"
	"strings"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diag"
)

// pass1Declarations enters every top-level item into the module symbol
// table, reporting duplicate names, and materializes imported names into
// this module's scope (spec.md §4.4 Pass 1).
func (r *resolver) pass1Declarations(prog *ast.Program) {
	for _, item := range prog.Items {
		switch it := item.(type) {
		case *ast.RecordDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymRecord, Decl: it, Span: it.Span()})
		case *ast.EnumDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymEnum, Decl: it, Span: it.Span()})
		case *ast.CellDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymCell, Decl: it, Span: it.Span()})
			r.cellDeclared[it.Name] = len(it.Effects) > 0 || it.Strict
			r.callGraph[it.Name] = map[string]bool{}
			r.directEffects[it.Name] = map[string]bool{}
		case *ast.AgentDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymAgent, Decl: it, Span: it.Span()})
		case *ast.ProcessDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymProcess, Decl: it, Span: it.Span()})
		case *ast.EffectDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymEffect, Decl: it, Span: it.Span()})
		case *ast.HandlerDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymHandler, Decl: it, Span: it.Span()})
		case *ast.AddonDecl:
			// Addons bundle grants/effect binds; they do not themselves
			// occupy the callable-name namespace beyond duplicate checks.
			r.enter(&Symbol{Name: it.Name, Kind: SymAgent, Decl: it, Span: it.Span()})
		case *ast.UseToolDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymTool, Decl: it, Span: it.Span()})
			for _, c := range it.Config {
				if c.Key == "effect" {
					if lit, ok := c.Value.(*ast.LiteralExpr); ok && lit.Kind == ast.LitString {
						if s, ok := lit.Value.(string); ok {
							r.res.ToolEffects[it.Name] = s
						}
					}
				}
			}
		case *ast.TypeAliasDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymTypeAlias, Decl: it, Span: it.Span()})
		case *ast.TraitDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymTrait, Decl: it, Span: it.Span()})
		case *ast.ImplDecl:
			name := it.Trait + " for " + it.Target
			r.enter(&Symbol{Name: name, Kind: SymImpl, Decl: it, Span: it.Span()})
			for _, c := range it.Cells {
				qualified := it.Target + "." + c.Name
				r.enter(&Symbol{Name: qualified, Kind: SymCell, Decl: c, Span: c.Span()})
				r.cellDeclared[qualified] = len(c.Effects) > 0
				r.callGraph[qualified] = map[string]bool{}
				r.directEffects[qualified] = map[string]bool{}
			}
		case *ast.ConstDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymConst, Decl: it, Span: it.Span()})
		case *ast.MacroDecl:
			r.enter(&Symbol{Name: it.Name, Kind: SymMacro, Decl: it, Span: it.Span()})
		case *ast.GrantDecl:
			// Top-level grants contribute to policies directly; no name.
		case *ast.ImportDecl:
			r.resolveImport(it)
		default:
			// unknown item kind; parser-level concern, nothing to resolve.
		}
	}
}

func (r *resolver) enter(sym *Symbol) {
	if prior, dup := r.table.declare(sym); dup {
		r.dup(sym.Kind, sym.Name, sym.Span)
		_ = prior
	}
}

func (r *resolver) resolveImport(it *ast.ImportDecl) {
	for _, p := range r.opts.ImportPath {
		if p == it.Path {
			cycle := append(append([]string{}, r.opts.ImportPath...), it.Path)
			r.diagAt(diag.ErrCyclicImport, fmt.Sprintf("circular import: %s", strings.Join(cycle, " -> ")), it.Span())
			return
		}
	}
	if r.opts.Import == nil {
		r.diagAt(diag.ErrUndefinedVar, fmt.Sprintf("cannot resolve import %q: no module loader configured", it.Path), it.Span())
		return
	}
	mod, err := r.opts.Import(it.Path)
	if err != nil {
		r.diagAt(diag.ErrUndefinedVar, fmt.Sprintf("cannot resolve import %q: %v", it.Path, err), it.Span())
		return
	}
	names := it.Items
	if len(names) == 0 {
		for name := range mod.Exports {
			names = append(names, name)
		}
	}
	for _, name := range names {
		sym, ok := mod.Exports[name]
		if !ok {
			r.diagAt(diag.ErrUndefinedVar, fmt.Sprintf("module %q does not export %q", it.Path, name), it.Span())
			continue
		}
		local := name
		if it.Alias != "" && len(it.Items) == 0 {
			local = it.Alias + "." + name
		}
		imported := &Symbol{Name: local, Kind: SymImport, Decl: sym.Decl, Span: it.Span()}
		r.enter(imported)
	}
}
