// Package vmvalue defines the runtime value representation shared by the
// VM, the scheduler, the intrinsics catalog, and the tool dispatch layer
// (spec.md §3 "Values at runtime"). It is a leaf package deliberately: the
// VM, intrinsics, scheduler, and tool packages all depend on it, but it
// depends on none of them, so Value can be passed freely across that
// boundary without an import cycle — the same role Conduit's own
// `internal/compiler/typechecker` type model plays for its checker and
// codegen packages.
package vmvalue

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Kind discriminates the sum of runtime value variants spec.md §3 lists.
type Kind uint8

const (
	KNull Kind = iota
	KBool
	KInt
	KBigInt
	KFloat
	KString
	KBytes
	KList
	KTuple
	KSet
	KMap
	KRecord
	KUnion
	KClosure
	KTraceRef
	KFuture
)

func (k Kind) String() string {
	switch k {
	case KNull:
		return "Null"
	case KBool:
		return "Bool"
	case KInt:
		return "Int"
	case KBigInt:
		return "BigInt"
	case KFloat:
		return "Float"
	case KString:
		return "String"
	case KBytes:
		return "Bytes"
	case KList:
		return "List"
	case KTuple:
		return "Tuple"
	case KSet:
		return "Set"
	case KMap:
		return "Map"
	case KRecord:
		return "Record"
	case KUnion:
		return "Union"
	case KClosure:
		return "Closure"
	case KTraceRef:
		return "TraceRef"
	case KFuture:
		return "Future"
	default:
		return "?"
	}
}

// Value is a tagged union over every runtime value kind. Scalars live
// directly on the struct; collections and records are held behind a
// pointer to a refcounted backing store so multiple Values can share one
// without copying until a mutation actually needs to (spec.md's
// copy-on-write discipline, §4.8 "Values and mutation").
type Value struct {
	Kind Kind

	B   bool
	I   int64
	Big *big.Int
	F   float64
	S   string
	Byt []byte

	List   *ListData
	Tup    []Value
	SetV   *SetData
	MapV   *MapData
	Rec    *RecordData
	Un     *UnionData
	Clo    *Closure
	Trace  *TraceRefData
	Future *FutureData
}

// Null is the canonical null value.
var Null = Value{Kind: KNull}

func Bool(b bool) Value   { return Value{Kind: KBool, B: b} }
func Int(i int64) Value   { return Value{Kind: KInt, I: i} }
func BigInt(b *big.Int) Value { return Value{Kind: KBigInt, Big: b} }
func Float(f float64) Value { return Value{Kind: KFloat, F: f} }
func Str(s string) Value  { return Value{Kind: KString, S: s} }
func Bytes(b []byte) Value { return Value{Kind: KBytes, Byt: b} }

// refcounted is the common header for shared, mutate-on-write data.
type refcounted struct {
	rc int32
}

// Retain/Release model spec.md §4.8's "any mutating instruction clones the
// container if its reference count > 1" rule: the VM calls Retain every
// time a Value handle is duplicated into another register or upvalue slot,
// and a mutating op consults RefCount() before mutating in place.
func (r *refcounted) Retain()        { r.rc++ }
func (r *refcounted) Release()       { if r.rc > 0 { r.rc-- } }
func (r *refcounted) RefCount() int32 { return r.rc + 1 } // +1 for the holder calling us

// ListData is the backing store for KList.
type ListData struct {
	refcounted
	Elems []Value
}

func NewList(elems ...Value) Value {
	return Value{Kind: KList, List: &ListData{Elems: elems}}
}

// CloneIfShared returns a list Value safe to mutate in place: itself if
// uniquely referenced, or a fresh copy otherwise, implementing the
// copy-on-write contract spec.md §8 tests ("For every collection value v
// and every mutating operation m, either refcount(v)==1 and m mutates in
// place, or refcount(v)>1 and m produces a new value leaving v unchanged").
func (v Value) CloneIfShared() Value {
	switch v.Kind {
	case KList:
		if v.List.RefCount() <= 1 {
			return v
		}
		cp := make([]Value, len(v.List.Elems))
		copy(cp, v.List.Elems)
		return Value{Kind: KList, List: &ListData{Elems: cp}}
	case KMap:
		if v.MapV.RefCount() <= 1 {
			return v
		}
		m2 := &MapData{Keys: append([]string{}, v.MapV.Keys...), Entries: map[string]Value{}}
		for k, val := range v.MapV.Entries {
			m2.Entries[k] = val
		}
		return Value{Kind: KMap, MapV: m2}
	case KSet:
		if v.SetV.RefCount() <= 1 {
			return v
		}
		elems := append([]Value{}, v.SetV.Elems...)
		return Value{Kind: KSet, SetV: &SetData{Elems: elems}}
	case KRecord:
		if v.Rec.RefCount() <= 1 {
			return v
		}
		fields := append([]Value{}, v.Rec.Fields...)
		return Value{Kind: KRecord, Rec: &RecordData{Name: v.Rec.Name, FieldNames: v.Rec.FieldNames, Fields: fields}}
	default:
		return v
	}
}

// MapData is the backing store for KMap, keyed by string (spec.md §3).
// Keys is maintained in insertion order for deterministic iteration.
type MapData struct {
	refcounted
	Keys    []string
	Entries map[string]Value
}

func NewMap() Value {
	return Value{Kind: KMap, MapV: &MapData{Entries: map[string]Value{}}}
}

func (m *MapData) Set(key string, val Value) {
	if _, ok := m.Entries[key]; !ok {
		m.Keys = append(m.Keys, key)
	}
	m.Entries[key] = val
}

func (m *MapData) Get(key string) (Value, bool) {
	v, ok := m.Entries[key]
	return v, ok
}

// SetData is the backing store for KSet: spec.md requires "ordered, O(log n)
// membership" and "a total ordering over values for deterministic
// iteration" (§3, §4.8). Elems is kept sorted by Compare on every Insert so
// iteration order is deterministic; membership uses a sorted binary search.
type SetData struct {
	refcounted
	Elems []Value
}

func NewSet(elems ...Value) Value {
	s := &SetData{}
	for _, e := range elems {
		s.Insert(e)
	}
	return Value{Kind: KSet, SetV: s}
}

func (s *SetData) search(v Value) (int, bool) {
	i := sort.Search(len(s.Elems), func(i int) bool { return Compare(s.Elems[i], v) >= 0 })
	if i < len(s.Elems) && Equal(s.Elems[i], v) {
		return i, true
	}
	return i, false
}

func (s *SetData) Contains(v Value) bool {
	_, ok := s.search(v)
	return ok
}

func (s *SetData) Insert(v Value) bool {
	i, ok := s.search(v)
	if ok {
		return false
	}
	s.Elems = append(s.Elems, Value{})
	copy(s.Elems[i+1:], s.Elems[i:])
	s.Elems[i] = v
	return true
}

func (s *SetData) Remove(v Value) bool {
	i, ok := s.search(v)
	if !ok {
		return false
	}
	s.Elems = append(s.Elems[:i], s.Elems[i+1:]...)
	return true
}

// RecordData is the backing store for KRecord.
type RecordData struct {
	refcounted
	Name       string
	FieldNames []string
	Fields     []Value
}

func NewRecord(name string, fieldNames []string, fields []Value) Value {
	return Value{Kind: KRecord, Rec: &RecordData{Name: name, FieldNames: fieldNames, Fields: fields}}
}

func (r *RecordData) Get(field string) (Value, bool) {
	for i, n := range r.FieldNames {
		if n == field {
			return r.Fields[i], true
		}
	}
	return Value{}, false
}

func (r *RecordData) Set(field string, val Value) bool {
	for i, n := range r.FieldNames {
		if n == field {
			r.Fields[i] = val
			return true
		}
	}
	return false
}

// UnionData is the backing store for a tagged enum/union value.
type UnionData struct {
	Enum    string
	Variant string
	Payload []Value
}

func NewUnion(enum, variant string, payload ...Value) Value {
	return Value{Kind: KUnion, Un: &UnionData{Enum: enum, Variant: variant, Payload: payload}}
}

// Closure is a callable runtime value: either a reference to a compiled
// cell by name, or a lambda proto plus captured upvalues.
type Closure struct {
	CellName string
	Upvalues []*Value // shared references; mutation by enclosing or inner cell is mutually visible
}

func NewClosure(cellName string, upvalues []*Value) Value {
	return Value{Kind: KClosure, Clo: &Closure{CellName: cellName, Upvalues: upvalues}}
}

// TraceRefData is an opaque handle to a recorded tool-dispatch trace event
// (spec.md §4.10 "Records a trace event").
type TraceRefData struct {
	ID string
}

func NewTraceRef(id string) Value { return Value{Kind: KTraceRef, Trace: &TraceRefData{ID: id}} }

// FutureState is the lifecycle of a Future value.
type FutureState uint8

const (
	FuturePending FutureState = iota
	FutureResolved
	FutureCancelled
	FutureFailed
)

// FutureData is the backing store for KFuture, the VM-visible handle onto a
// scheduler task (spec.md §3 "Future(state, result)").
type FutureData struct {
	ID     string
	State  FutureState
	Result Value
	Err    error
}

func NewFuture(id string) Value {
	return Value{Kind: KFuture, Future: &FutureData{ID: id, State: FuturePending}}
}

// Truthy implements Lumen's boolean-conversion rule for conditions: Null and
// false are falsy, everything else (including 0 and "") is truthy, matching
// the teacher's own explicit-over-implicit philosophy rather than a C-style
// "0 is false" rule.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KNull:
		return false
	case KBool:
		return v.B
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KNull:
		return "null"
	case KBool:
		return fmt.Sprintf("%t", v.B)
	case KInt:
		return fmt.Sprintf("%d", v.I)
	case KBigInt:
		return v.Big.String()
	case KFloat:
		return fmt.Sprintf("%g", v.F)
	case KString:
		return v.S
	case KBytes:
		return fmt.Sprintf("b\"%x\"", v.Byt)
	case KList:
		parts := make([]string, len(v.List.Elems))
		for i, e := range v.List.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KTuple:
		parts := make([]string, len(v.Tup))
		for i, e := range v.Tup {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KSet:
		parts := make([]string, len(v.SetV.Elems))
		for i, e := range v.SetV.Elems {
			parts[i] = e.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KMap:
		parts := make([]string, len(v.MapV.Keys))
		for i, k := range v.MapV.Keys {
			val, _ := v.MapV.Get(k)
			parts[i] = k + ": " + val.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KRecord:
		parts := make([]string, len(v.Rec.FieldNames))
		for i, n := range v.Rec.FieldNames {
			parts[i] = n + ": " + v.Rec.Fields[i].String()
		}
		return v.Rec.Name + " { " + strings.Join(parts, ", ") + " }"
	case KUnion:
		if len(v.Un.Payload) == 0 {
			return v.Un.Variant
		}
		parts := make([]string, len(v.Un.Payload))
		for i, p := range v.Un.Payload {
			parts[i] = p.String()
		}
		return v.Un.Variant + "(" + strings.Join(parts, ", ") + ")"
	case KClosure:
		return "<cell " + v.Clo.CellName + ">"
	case KTraceRef:
		return "<trace " + v.Trace.ID + ">"
	case KFuture:
		return "<future " + v.Future.ID + ">"
	default:
		return "?"
	}
}

// TypeOf implements the `type_of` intrinsic's naming (spec.md §4.8).
func (v Value) TypeOf() string {
	switch v.Kind {
	case KRecord:
		return v.Rec.Name
	case KUnion:
		return v.Un.Enum
	default:
		return v.Kind.String()
	}
}
