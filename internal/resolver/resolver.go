package resolver

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/cli/ui"
	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/source"
)

// ExternalModule is what an imported module exposes: its top-level symbol
// table, keyed by the exported name (spec.md §6 "import pkg.mod: name1,
// name2"). Module resolution itself (filesystem search order, raw/markdown
// dispatch) lives outside this package per spec.md §1's scope note; callers
// supply an Importer that already did that work and recursively resolved
// the target module.
type ExternalModule struct {
	Path    string
	Exports map[string]*Symbol
}

// Importer resolves an import path to its already-resolved exports. The
// loader (outside this package) is responsible for detecting cycles across
// the whole import graph and invoking Resolve on each module exactly once;
// Importer returning an error here is surfaced as-is.
type Importer func(path string) (*ExternalModule, error)

// Options configures one Resolve call.
type Options struct {
	File       string
	Strict     bool // @strict directive: every inferred effect must appear in the declared row
	Import     Importer
	ImportPath []string // import chain leading to this module, for cycle messages
}

// Resolution is everything downstream stages (type checker, lowering) need
// out of name/effect/grant resolution.
type Resolution struct {
	Table       *Table
	Idents      map[*ast.IdentExpr]*Binding
	CellEffects map[string][]string          // cell name -> final effect row
	Policies    map[string]map[string]Policy // scope -> tool alias -> merged policy
	ToolEffects map[string]string            // tool alias -> bound effect name
	Diags       diag.List
}

// Policy is the merged constraint set for one tool alias within one scope.
type Policy map[string]string

type resolver struct {
	opts  Options
	table *Table
	res   *Resolution

	// cellDeclared records whether a cell declared its effect row
	// explicitly (nil slice with declared=false means "infer").
	cellDeclared map[string]bool
	// callGraph maps a cell name to the set of cell names it calls, used by
	// effect inference's fixpoint.
	callGraph map[string]map[string]bool
	// directEffects: tool calls and perform expressions inside a cell
	// contribute these effect names directly.
	directEffects map[string]map[string]bool

	cur     *scope // current lexical scope during pass 2
	curCell string // name of the cell/agent/handler-case body being walked
}

// Resolve runs both passes over prog and returns the combined resolution.
func Resolve(prog *ast.Program, opts Options) *Resolution {
	r := &resolver{
		opts:          opts,
		table:         newTable(),
		cellDeclared:  map[string]bool{},
		callGraph:     map[string]map[string]bool{},
		directEffects: map[string]map[string]bool{},
	}
	r.res = &Resolution{
		Table:       r.table,
		Idents:      map[*ast.IdentExpr]*Binding{},
		CellEffects: map[string][]string{},
		Policies:    map[string]map[string]Policy{},
		ToolEffects: map[string]string{},
	}

	r.pass1Declarations(prog)
	r.pass2Bodies(prog)
	r.inferEffects()
	r.validateGrants(prog)

	return r.res
}

func loc(sp source.Span) diag.Location {
	return diag.Location{File: sp.File, Line: sp.StartLine, Column: sp.StartCol, Length: sp.Len()}
}

func (r *resolver) diagAt(code, message string, sp source.Span) {
	r.res.Diags = append(r.res.Diags, diag.New("resolve", code, message, loc(sp), diag.Error))
}

func (r *resolver) dup(kind SymbolKind, name string, sp source.Span) {
	r.diagAt(diag.ErrDuplicateName, fmt.Sprintf("duplicate %s %q", kind, name), sp)
}

func (r *resolver) undefined(name string, sp source.Span) {
	candidates := ui.FindSimilar(name, r.table.Names(), &ui.FuzzyMatchOptions{MaxDistance: 2})
	d := diag.New("resolve", diag.ErrUndefinedVar, fmt.Sprintf("undefined name %q", name), loc(sp), diag.Error)
	if fix := diag.SuggestUndefinedVar(name, candidates); fix != nil {
		d = d.WithFix(*fix)
	}
	r.res.Diags = append(r.res.Diags, d)
}
