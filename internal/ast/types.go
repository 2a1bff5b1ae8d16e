package ast

import "github.com/lumen-lang/lumen/internal/source"

// TypeExpr is the parsed syntax for a type annotation, before the resolver
// binds names to declarations and the checker turns it into a types.Type.
// Keeping parsed and resolved types distinct lets the parser stay free of
// any notion of "is this name actually declared."
type TypeExpr interface {
	Node
	typeNode()
}

// NamedType is a bare or parametric name: `Int`, `List(String)`,
// `Map(String, Int)`, or a user-declared record/enum/generic name.
type NamedType struct {
	BaseNode
	Name string
	Args []TypeExpr
}

func (n *NamedType) node()     {}
func (n *NamedType) typeNode() {}

// TupleType is `(A, B, C)`.
type TupleType struct {
	BaseNode
	Elems []TypeExpr
}

func (t *TupleType) node()     {}
func (t *TupleType) typeNode() {}

// ResultType is `Result(Ok, Err)`.
type ResultType struct {
	BaseNode
	Ok  TypeExpr
	Err TypeExpr
}

func (r *ResultType) node()     {}
func (r *ResultType) typeNode() {}

// UnionType is `A | B | C`.
type UnionType struct {
	BaseNode
	Members []TypeExpr
}

func (u *UnionType) node()     {}
func (u *UnionType) typeNode() {}

// OptionalType is `T?`. The parser keeps it as its own node; the checker
// desugars it into Union(T, Null) when converting type expressions.
type OptionalType struct {
	BaseNode
	Inner TypeExpr
}

func (o *OptionalType) node()     {}
func (o *OptionalType) typeNode() {}

// FnType is `fn(A, B) -> C / eff1, eff2`.
type FnType struct {
	BaseNode
	Params  []TypeExpr
	Ret     TypeExpr
	Effects []string
}

func (f *FnType) node()     {}
func (f *FnType) typeNode() {}

// Param is a function/cell/handler parameter: `name: Type` or `mut name: Type`.
type Param struct {
	Name    string
	Type    TypeExpr
	Mutable bool
	Default Expr
	SpanRange source.Span
}

func (p Param) Span() source.Span { return p.SpanRange }

// Field is a record field: `name: Type` with an optional default and
// optional `where` constraints validated against the record under
// construction (spec.md §4.6).
type Field struct {
	Name      string
	Type      TypeExpr
	Default   Expr
	Where     []WhereClause
	SpanRange source.Span
}

func (f Field) Span() source.Span { return f.SpanRange }

// WhereClause is one constraint on a cell/effect/impl: `where name(args)`.
type WhereClause struct {
	Name      string
	Args      []Expr
	SpanRange source.Span
}

func (w WhereClause) Span() source.Span { return w.SpanRange }
