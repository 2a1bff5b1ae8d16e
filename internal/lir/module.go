package lir

import "fmt"

// TypeDef mirrors a resolved record/enum declaration for a module's exported
// type surface; the VM needs variant/field names to build NewRecord/NewUnion
// values and the LIR wire format needs them to be self-describing (spec.md
// §6 "versioned, self-describing record").
type TypeDef struct {
	Name     string   `json:"name"`
	IsEnum   bool     `json:"is_enum"`
	Fields   []string `json:"fields,omitempty"`   // record field names, in declaration order
	Variants []string `json:"variants,omitempty"` // enum variant names, in declaration order
}

// EffectHandlerMeta records, for one HandlePush site inside a cell, which
// (effect, op) pairs the following handler table intercepts and where each
// case's code begins, so the VM can match Perform without re-walking AST.
type EffectHandlerMeta struct {
	Effect    string `json:"effect"`
	Op        string `json:"op"`
	EntryPC   int    `json:"entry_pc"`
	ParamBase uint8  `json:"param_base"`
}

// UpvalueSource records, for one slot of a closure proto's upvalue list,
// where the VM captures it from when the enclosing frame executes the
// OpClosure that instantiates this cell: either a register live in that
// enclosing frame (FromParentLocal true) or one of the enclosing frame's own
// upvalue slots (FromParentLocal false), letting upvalue capture chain
// through nested lambdas without the VM re-walking any AST.
type UpvalueSource struct {
	FromParentLocal bool  `json:"from_parent_local"`
	Index           uint8 `json:"index"`
}

// LirCell is one compiled function (spec.md §3 "LirCell").
type LirCell struct {
	Name              string               `json:"name"`
	Params            int                  `json:"params"`
	ReturnType        string               `json:"return_type"`
	RegisterCount     int                  `json:"register_count"`
	Constants         []Value              `json:"constants"`
	Instructions      []Instruction        `json:"instructions"`
	Upvalues          []UpvalueSource      `json:"upvalues,omitempty"`
	EffectHandlerMetas []EffectHandlerMeta `json:"effect_handler_metas,omitempty"`
	Effects           []string             `json:"effects,omitempty"`
	MustUse           bool                 `json:"must_use,omitempty"`
}

// Value is a constant-pool entry. Scalar kinds cover everything lowering
// needs to preload into a register: literals, and "cell" references (a
// callable bound by name, resolved by the VM against the module's Cells
// table at call time rather than at lowering time, so forward references
// and recursion need no fixup pass). Compound values are always built at
// runtime by New* instructions.
type Value struct {
	Kind  string `json:"kind"` // "string" | "int" | "float" | "bool" | "bytes" | "null" | "cell"
	Str   string `json:"str,omitempty"`
	Int   int64  `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Bool  bool   `json:"bool,omitempty"`
	Bytes []byte `json:"bytes,omitempty"`
}

// ToolDecl is one `use tool` binding recorded in the module.
type ToolDecl struct {
	Alias    string `json:"alias"`
	Provider string `json:"provider"`
	Effect   string `json:"effect,omitempty"`
}

// GrantPolicy is the merged set of constraints for one tool alias within one
// scope (spec.md §4.4 "Grants").
type GrantPolicy struct {
	Scope       string            `json:"scope"`
	Tool        string            `json:"tool"`
	Constraints map[string]string `json:"constraints"`
}

// AgentMeta/ProcessMeta are the compiled metadata for agent and process
// declarations: just enough for the VM/tool layer to construct the runtime
// object, since their bodies lower to ordinary cells referenced by name.
type AgentMeta struct {
	Name   string   `json:"name"`
	Cell   string   `json:"cell"`
	Tools  []string `json:"tools"`
	Memory string   `json:"memory,omitempty"`
}

type ProcessMeta struct {
	Name   string            `json:"name"`
	Kind   string            `json:"kind"`
	Config map[string]string `json:"config"`
	Cell   string            `json:"cell,omitempty"`
}

// EffectDef/EffectBind/HandlerDef record the module's algebraic-effect
// surface for introspection and cross-module linking.
type EffectDef struct {
	Name string   `json:"name"`
	Ops  []string `json:"ops"`
}

type EffectBind struct {
	Effect string `json:"effect"`
	Tool   string `json:"tool"`
}

type HandlerDef struct {
	Name   string   `json:"name"`
	Effect string   `json:"effect"`
	Cell   string   `json:"cell"`
}

// LirModule is the deterministic, serializable compiled-module bundle
// (spec.md §3 "LIR module", §6 wire format field list).
type LirModule struct {
	Version     int           `json:"version"`
	DocHash     string        `json:"doc_hash"`
	Strings     []string      `json:"strings"`
	Types       []TypeDef     `json:"types"`
	Cells       []LirCell     `json:"cells"`
	Tools       []ToolDecl    `json:"tools"`
	Policies    []GrantPolicy `json:"policies"`
	Agents      []AgentMeta   `json:"agents"`
	Processes   []ProcessMeta `json:"addons"`
	Effects     []EffectDef   `json:"effects"`
	EffectBinds []EffectBind  `json:"effect_binds"`
	Handlers    []HandlerDef  `json:"handlers"`

	stringIndex map[string]int
}

const CurrentVersion = 1

// New creates an empty module ready for cells to be appended.
func New(docHash string) *LirModule {
	return &LirModule{Version: CurrentVersion, DocHash: docHash, stringIndex: map[string]int{}}
}

// Intern returns the stable index of s in the module's string pool,
// appending it if not already present. The pool is unique and index-stable
// across merges (spec.md's invariant list).
func (m *LirModule) Intern(s string) int {
	if m.stringIndex == nil {
		m.stringIndex = map[string]int{}
		for i, existing := range m.Strings {
			m.stringIndex[existing] = i
		}
	}
	if idx, ok := m.stringIndex[s]; ok {
		return idx
	}
	idx := len(m.Strings)
	m.Strings = append(m.Strings, s)
	m.stringIndex[s] = idx
	return idx
}

// CellByName finds a compiled cell by name, or nil.
func (m *LirModule) CellByName(name string) *LirCell {
	for i := range m.Cells {
		if m.Cells[i].Name == name {
			return &m.Cells[i]
		}
	}
	return nil
}

// Merge combines two modules into a new one, deduplicating strings, types,
// and cell names. Each cell keeps its own constant pool, copied unchanged;
// no constant index is remapped. Two cells with the same name and different
// instruction streams are reported as an error; a cell whose instruction
// stream is identical to one already taken from a is skipped.
func Merge(a, b *LirModule) (*LirModule, error) {
	out := New(a.DocHash)
	out.Version = a.Version

	remapB := make([]int, len(b.Strings))
	for i, s := range b.Strings {
		remapB[i] = out.Intern(s)
	}
	for _, s := range a.Strings {
		out.Intern(s)
	}

	seenTypes := map[string]bool{}
	for _, t := range a.Types {
		if !seenTypes[t.Name] {
			out.Types = append(out.Types, t)
			seenTypes[t.Name] = true
		}
	}
	for _, t := range b.Types {
		if !seenTypes[t.Name] {
			out.Types = append(out.Types, t)
			seenTypes[t.Name] = true
		}
	}

	seenCells := map[string]LirCell{}
	for _, c := range a.Cells {
		seenCells[c.Name] = c
		out.Cells = append(out.Cells, c)
	}
	for _, c := range b.Cells {
		if prior, ok := seenCells[c.Name]; ok {
			if !cellsEqual(prior, c) {
				return nil, fmt.Errorf("lir: colliding cell definition for %q", c.Name)
			}
			continue
		}
		remapped := c
		remapped.Constants = make([]Value, len(c.Constants))
		for i, v := range c.Constants {
			remapped.Constants[i] = v
		}
		seenCells[c.Name] = remapped
		out.Cells = append(out.Cells, remapped)
	}

	out.Tools = append(append([]ToolDecl{}, a.Tools...), b.Tools...)
	out.Policies = append(append([]GrantPolicy{}, a.Policies...), b.Policies...)
	out.Agents = append(append([]AgentMeta{}, a.Agents...), b.Agents...)
	out.Processes = append(append([]ProcessMeta{}, a.Processes...), b.Processes...)
	out.Effects = append(append([]EffectDef{}, a.Effects...), b.Effects...)
	out.EffectBinds = append(append([]EffectBind{}, a.EffectBinds...), b.EffectBinds...)
	out.Handlers = append(append([]HandlerDef{}, a.Handlers...), b.Handlers...)
	return out, nil
}

func cellsEqual(a, b LirCell) bool {
	if a.Name != b.Name || len(a.Instructions) != len(b.Instructions) {
		return false
	}
	for i := range a.Instructions {
		if a.Instructions[i] != b.Instructions[i] {
			return false
		}
	}
	return true
}
