// Package resolver implements spec.md §4.4: the two-pass walk that builds a
// module symbol table, links every identifier use to its binding, infers
// per-cell effect rows, and merges tool grants into per-scope policies.
// Grounded structurally on the teacher's typechecker/inference.go (a single
// stateful walker type threading a scope stack through the AST) but built
// around Lumen's declarations instead of Conduit's resources/hooks.
package resolver

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/source"
)

// SymbolKind discriminates what a top-level name resolves to.
type SymbolKind int

const (
	SymRecord SymbolKind = iota
	SymEnum
	SymCell
	SymTypeAlias
	SymTrait
	SymImpl
	SymEffect
	SymHandler
	SymTool
	SymProcess
	SymAgent
	SymImport
	SymConst
	SymMacro
)

func (k SymbolKind) String() string {
	names := [...]string{
		"record", "enum", "cell", "type alias", "trait", "impl", "effect",
		"handler", "tool", "process", "agent", "import", "const", "macro",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "symbol"
}

// Symbol is one module-level declaration entered into the symbol table.
type Symbol struct {
	Name string
	Kind SymbolKind
	Decl ast.Item
	Span source.Span
}

// BindingKind discriminates what a local identifier use resolves to.
type BindingKind int

const (
	BindLet BindingKind = iota
	BindParam
	BindUpvalue
	BindTopLevel
	BindImport
)

// Binding is the resolved target of one identifier use inside a cell body.
type Binding struct {
	Kind    BindingKind
	Name    string
	Mutable bool
	// Symbol is set when Kind is BindTopLevel or BindImport.
	Symbol *Symbol
}

// Table is the flat module-level symbol table built by pass 1.
type Table struct {
	byName map[string]*Symbol
	order  []*Symbol
}

func newTable() *Table {
	return &Table{byName: map[string]*Symbol{}}
}

func (t *Table) declare(sym *Symbol) (prior *Symbol, dup bool) {
	if existing, ok := t.byName[sym.Name]; ok {
		return existing, true
	}
	t.byName[sym.Name] = sym
	t.order = append(t.order, sym)
	return nil, false
}

// Lookup finds a top-level symbol by name.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Names returns every declared top-level name, in declaration order; used
// for UndefinedVar edit-distance suggestions.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	for i, s := range t.order {
		out[i] = s.Name
	}
	return out
}
