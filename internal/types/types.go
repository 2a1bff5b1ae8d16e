// Package types implements Lumen's type model (spec.md §3 "Types"):
// primitives, parametric collections, records/enums by name, Result, Union,
// function types with effect rows, and the `Any` top type builtins use when
// their result depends on their arguments.
package types

import "strings"

// Kind discriminates the sum of Type variants.
type Kind int

const (
	KString Kind = iota
	KInt
	KFloat
	KBool
	KBytes
	KJson
	KNull
	KList
	KMap
	KSet
	KTuple
	KRecord
	KEnum
	KResult
	KUnion
	KFn
	KGeneric
	KTypeRef
	KAny
)

// Type is an immutable description of a Lumen value's static type.
type Type struct {
	Kind Kind

	// KList / KSet element type; KMap key/value.
	Elem  *Type
	Key   *Type
	Value *Type

	// KTuple element types.
	Elems []Type

	// KRecord / KEnum / KGeneric / KTypeRef name.
	Name string
	// KTypeRef type arguments.
	Args []Type

	// KResult.
	Ok  *Type
	Err *Type

	// KUnion members. `T?` is sugar for Union([T, Null]); the checker
	// normalizes it when converting type expressions.
	Members []Type

	// KFn.
	Params  []Type
	Ret     *Type
	Effects []string
}

func prim(k Kind) Type { return Type{Kind: k} }

var (
	String = prim(KString)
	Int    = prim(KInt)
	Float  = prim(KFloat)
	Bool   = prim(KBool)
	Bytes  = prim(KBytes)
	Json   = prim(KJson)
	Null   = prim(KNull)
	Any    = prim(KAny)
)

func List(elem Type) Type          { return Type{Kind: KList, Elem: &elem} }
func Set(elem Type) Type           { return Type{Kind: KSet, Elem: &elem} }
func Map(key, value Type) Type     { return Type{Kind: KMap, Key: &key, Value: &value} }
func Tuple(elems ...Type) Type     { return Type{Kind: KTuple, Elems: elems} }
func Record(name string) Type      { return Type{Kind: KRecord, Name: name} }
func Enum(name string) Type        { return Type{Kind: KEnum, Name: name} }
func Generic(name string) Type     { return Type{Kind: KGeneric, Name: name} }
func TypeRef(name string, args ...Type) Type {
	return Type{Kind: KTypeRef, Name: name, Args: args}
}
func Result(ok, err Type) Type { return Type{Kind: KResult, Ok: &ok, Err: &err} }
func Fn(params []Type, ret Type, effects []string) Type {
	return Type{Kind: KFn, Params: params, Ret: &ret, Effects: effects}
}

// Union flattens nested unions and de-duplicates structurally-equal members,
// collapsing to the single member when only one remains.
func Union(members ...Type) Type {
	var flat []Type
	for _, m := range members {
		if m.Kind == KUnion {
			flat = append(flat, m.Members...)
		} else {
			flat = append(flat, m)
		}
	}
	var dedup []Type
	for _, m := range flat {
		found := false
		for _, d := range dedup {
			if Equal(d, m) {
				found = true
				break
			}
		}
		if !found {
			dedup = append(dedup, m)
		}
	}
	if len(dedup) == 1 {
		return dedup[0]
	}
	return Type{Kind: KUnion, Members: dedup}
}

// Optional builds `T?`, i.e. Union(T, Null), the same union the checker
// builds for a parsed `?` suffix (spec.md §3).
func Optional(t Type) Type { return Union(t, Null) }

// IsNullable reports whether Null is a member of t (directly, or because t
// is Null itself).
func IsNullable(t Type) bool {
	if t.Kind == KNull {
		return true
	}
	if t.Kind == KUnion {
		for _, m := range t.Members {
			if m.Kind == KNull {
				return true
			}
		}
	}
	return false
}

// Equal performs structural equality, not identity.
func Equal(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KList, KSet:
		return Equal(*a.Elem, *b.Elem)
	case KMap:
		return Equal(*a.Key, *b.Key) && Equal(*a.Value, *b.Value)
	case KTuple:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case KRecord, KEnum, KGeneric:
		return a.Name == b.Name
	case KTypeRef:
		if a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case KResult:
		return Equal(*a.Ok, *b.Ok) && Equal(*a.Err, *b.Err)
	case KUnion:
		if len(a.Members) != len(b.Members) {
			return false
		}
		for _, am := range a.Members {
			ok := false
			for _, bm := range b.Members {
				if Equal(am, bm) {
					ok = true
					break
				}
			}
			if !ok {
				return false
			}
		}
		return true
	case KFn:
		if len(a.Params) != len(b.Params) || !Equal(*a.Ret, *b.Ret) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders canonical source syntax for a type, including the `T?`
// sugar for a union that is exactly {T, Null}.
func (t Type) String() string {
	if t.Kind == KUnion && len(t.Members) == 2 {
		for i, m := range t.Members {
			if m.Kind == KNull {
				other := t.Members[1-i]
				return other.String() + "?"
			}
		}
	}

	switch t.Kind {
	case KString:
		return "String"
	case KInt:
		return "Int"
	case KFloat:
		return "Float"
	case KBool:
		return "Bool"
	case KBytes:
		return "Bytes"
	case KJson:
		return "Json"
	case KNull:
		return "Null"
	case KAny:
		return "Any"
	case KList:
		return "List(" + t.Elem.String() + ")"
	case KSet:
		return "Set(" + t.Elem.String() + ")"
	case KMap:
		return "Map(" + t.Key.String() + ", " + t.Value.String() + ")"
	case KTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KRecord, KEnum, KGeneric:
		return t.Name
	case KTypeRef:
		if len(t.Args) == 0 {
			return t.Name
		}
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}
		return t.Name + "(" + strings.Join(parts, ", ") + ")"
	case KResult:
		return "Result(" + t.Ok.String() + ", " + t.Err.String() + ")"
	case KUnion:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.String()
		}
		return strings.Join(parts, " | ")
	case KFn:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		eff := ""
		if len(t.Effects) > 0 {
			eff = " / " + strings.Join(t.Effects, ", ")
		}
		return "fn(" + strings.Join(parts, ", ") + ") -> " + t.Ret.String() + eff
	default:
		return "?"
	}
}

// AssignableTo reports whether a value of type `from` may be assigned into a
// binding of type `to`, enforcing nullability and union-membership rules
// used by the checker's `check` rules (spec.md §4.5).
func AssignableTo(from, to Type) bool {
	if to.Kind == KAny || from.Kind == KAny {
		return true
	}
	if Equal(from, to) {
		return true
	}
	if to.Kind == KUnion {
		for _, m := range to.Members {
			if AssignableTo(from, m) {
				return true
			}
		}
		return false
	}
	if from.Kind == KUnion {
		for _, m := range from.Members {
			if !AssignableTo(m, to) {
				return false
			}
		}
		return true
	}
	return false
}
