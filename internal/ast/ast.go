// Package ast defines the abstract syntax tree produced by internal/parser
// for the Lumen language (spec.md §3-§4). Node structs mirror the teacher's
// marker-interface style (Node/exprNode/stmtNode/itemNode) but carry a
// source.Span rather than a single point location, since diagnostics need
// both ends of a construct for underlines.
package ast

import "github.com/lumen-lang/lumen/internal/source"

// Node is the base interface every AST node implements.
type Node interface {
	Span() source.Span
	node()
}

// Program is the root of a parsed module: its top-level items in source
// order. `@name` directive lines are consumed by the parser and are not
// stored on Program.
type Program struct {
	Items     []Item
	SpanRange source.Span
}

func (p *Program) node()            {}
func (p *Program) Span() source.Span { return p.SpanRange }

// Item is a top-level declaration: records, enums, cells, agents, processes,
// effects, handlers, addons, tool bindings, grants, traits, impls, imports,
// consts, macros, and type aliases (spec.md §3-§4.3).
type Item interface {
	Node
	itemNode()
}

// Stmt is a statement inside a cell/agent/handler body.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

type BaseNode struct {
	SpanRange source.Span
}

func (b BaseNode) Span() source.Span { return b.SpanRange }
