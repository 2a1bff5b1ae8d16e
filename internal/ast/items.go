package ast

import "github.com/lumen-lang/lumen/internal/source"

// RecordDecl declares a product type: `record Name\n  field: Type\nend`.
type RecordDecl struct {
	BaseNode
	Name    string
	Generics []string
	Fields  []Field
	Derives []string // e.g. "Eq", "Ord" trait auto-derivations, if present
}

func (r *RecordDecl) node()     {}
func (r *RecordDecl) itemNode() {}

// EnumVariant is one case of an enum, with an optional tuple payload.
type EnumVariant struct {
	Name      string
	Payload   []TypeExpr
	SpanRange source.Span
}

func (v EnumVariant) Span() source.Span { return v.SpanRange }

// EnumDecl declares a sum type.
type EnumDecl struct {
	BaseNode
	Name     string
	Generics []string
	Variants []EnumVariant
}

func (e *EnumDecl) node()     {}
func (e *EnumDecl) itemNode() {}

// CellDecl declares a function (spec.md's unit of computation): parameters,
// return type, declared/inferred effect row, `where` constraints, and body.
type CellDecl struct {
	BaseNode
	Name       string
	Generics   []string
	Params     []Param
	Ret        TypeExpr
	Effects    []string // declared effect row; empty means inferred
	Strict     bool     // @strict: declared row must be exact, not a supertype
	MustUse    bool     // @must_use: ignoring the result at statement position is an error
	Where      []WhereClause
	Body       []Stmt
}

func (c *CellDecl) node()     {}
func (c *CellDecl) itemNode() {}

// AgentDecl declares an LLM-backed agent: its instructions, bound tools,
// memory process, and the effect row it may perform.
type AgentDecl struct {
	BaseNode
	Name         string
	Instructions Expr // a string or string-interpolation expression
	Tools        []string
	Memory       string // name of a bound `process memory` declaration, if any
	Params       []Param
	Ret          TypeExpr
	Effects      []string
	Where        []WhereClause
	Body         []Stmt
}

func (a *AgentDecl) node()     {}
func (a *AgentDecl) itemNode() {}

// ProcessKind discriminates the seven process subkinds (spec.md §3).
type ProcessKind int

const (
	ProcessMemory ProcessKind = iota
	ProcessMachine
	ProcessPipeline
	ProcessOrchestration
	ProcessGuardrail
	ProcessEval
	ProcessPattern
)

func (k ProcessKind) String() string {
	switch k {
	case ProcessMemory:
		return "memory"
	case ProcessMachine:
		return "machine"
	case ProcessPipeline:
		return "pipeline"
	case ProcessOrchestration:
		return "orchestration"
	case ProcessGuardrail:
		return "guardrail"
	case ProcessEval:
		return "eval"
	case ProcessPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// ConfigEntry is one `key: value` pair inside a process configuration block.
type ConfigEntry struct {
	Key       string
	Value     Expr
	SpanRange source.Span
}

func (c ConfigEntry) Span() source.Span { return c.SpanRange }

// ProcessDecl declares one of the seven background process kinds. Config
// carries subkind-specific settings (backend/dsn for memory, states/transitions
// for machine, stages for pipeline, and so on) as parsed key/value pairs;
// the resolver validates shape per ProcessKind.
type ProcessDecl struct {
	BaseNode
	Kind   ProcessKind
	Name   string
	Config []ConfigEntry
	Body   []Stmt // machine/pipeline/orchestration step bodies, when present
}

func (p *ProcessDecl) node()     {}
func (p *ProcessDecl) itemNode() {}

// EffectOp is one operation signature inside an `effect` declaration.
type EffectOp struct {
	Name      string
	Params    []Param
	Ret       TypeExpr
	SpanRange source.Span
}

func (o EffectOp) Span() source.Span { return o.SpanRange }

// EffectDecl declares an algebraic effect: the set of operations a handler
// must implement.
type EffectDecl struct {
	BaseNode
	Name string
	Ops  []EffectOp
}

func (e *EffectDecl) node()     {}
func (e *EffectDecl) itemNode() {}

// HandleCase implements one operation inside a `handler ... end` block.
type HandleCase struct {
	Op        string
	Params    []Param
	Body      []Stmt
	SpanRange source.Span
}

func (h HandleCase) Span() source.Span { return h.SpanRange }

// HandlerDecl declares a named, reusable handler for a given effect.
type HandlerDecl struct {
	BaseNode
	Name   string
	Effect string
	Cases  []HandleCase
}

func (h *HandlerDecl) node()     {}
func (h *HandlerDecl) itemNode() {}

// AddonDecl declares a reusable bundle of effect bindings and tool grants
// that cells/agents can `use`.
type AddonDecl struct {
	BaseNode
	Name  string
	Uses  []string
	Grant *GrantDecl
}

func (a *AddonDecl) node()     {}
func (a *AddonDecl) itemNode() {}

// UseToolDecl declares a tool provider binding: `use tool Name from "provider"`.
type UseToolDecl struct {
	BaseNode
	Name     string
	Provider string
	Config   []ConfigEntry
}

func (u *UseToolDecl) node()     {}
func (u *UseToolDecl) itemNode() {}

// GrantDecl declares which tools/effects a cell, agent, or addon may invoke,
// carrying the constraint key/value pairs (timeout_ms, max_tokens, domain,
// authtoken, or custom keys) that the resolver merges into that scope's
// policy and the tool dispatcher enforces on every call (spec.md §4.4, §4.10).
type GrantDecl struct {
	BaseNode
	Tools       []string
	Effects     []string
	Scope       string // target cell/agent/addon name, empty when inline
	Constraints []ConfigEntry
}

func (g *GrantDecl) node()     {}
func (g *GrantDecl) itemNode() {}

// TypeAliasDecl declares `type Name = TypeExpr`.
type TypeAliasDecl struct {
	BaseNode
	Name     string
	Generics []string
	Target   TypeExpr
}

func (t *TypeAliasDecl) node()     {}
func (t *TypeAliasDecl) itemNode() {}

// TraitMethod is one method signature required by a trait.
type TraitMethod struct {
	Name      string
	Params    []Param
	Ret       TypeExpr
	SpanRange source.Span
}

func (m TraitMethod) Span() source.Span { return m.SpanRange }

// TraitDecl declares a named set of method signatures a type may implement.
type TraitDecl struct {
	BaseNode
	Name    string
	Methods []TraitMethod
}

func (t *TraitDecl) node()     {}
func (t *TraitDecl) itemNode() {}

// ImplDecl implements a trait for a concrete record/enum type.
type ImplDecl struct {
	BaseNode
	Trait  string
	Target string
	Cells  []*CellDecl
}

func (i *ImplDecl) node()     {}
func (i *ImplDecl) itemNode() {}

// ImportDecl brings another module's exported items into scope.
type ImportDecl struct {
	BaseNode
	Path  string
	Items []string // empty means import everything
	Alias string
}

func (i *ImportDecl) node()     {}
func (i *ImportDecl) itemNode() {}

// ConstDecl declares a module-level constant.
type ConstDecl struct {
	BaseNode
	Name  string
	Type  TypeExpr
	Value Expr
}

func (c *ConstDecl) node()     {}
func (c *ConstDecl) itemNode() {}

// MacroDecl declares a compile-time textual/AST macro (spec.md's deterministic
// macro subset, expanded before resolution).
type MacroDecl struct {
	BaseNode
	Name   string
	Params []string
	Body   []Stmt
}

func (m *MacroDecl) node()     {}
func (m *MacroDecl) itemNode() {}
