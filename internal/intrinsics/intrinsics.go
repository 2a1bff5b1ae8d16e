// Package intrinsics is the host-implemented builtin catalog the VM's
// Intrinsic opcode indexes into (spec.md §4.8): "~90 built-in functions
// over strings, collections, math, I/O, conversions, hashing, printing,
// and introspection." Grounded on the teacher's internal/compiler/stdlib
// registry.go (a name -> implementation map consulted by the type checker
// for arity/signature and by codegen for the emitted call), adapted from a
// registry of Go-source-emitting templates to a registry of Go functions
// the VM calls directly, since Lumen runs on its own VM rather than
// transpiling to Go.
package intrinsics

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// ID indexes one builtin; the lowering stage packs the ID and the argument
// count into the Intrinsic instruction's Bx operand (id<<6 | arg_count), and
// the arguments occupy the registers right after the destination A.
type ID uint16

const (
	// Collections
	IDMap ID = iota
	IDFilter
	IDReduce
	IDZip
	IDChunk
	IDUnique
	IDFlatten
	IDSort
	IDSortBy
	IDReverse
	IDLen
	IDIsEmpty
	IDFirst
	IDLast
	IDTake
	IDDrop
	IDSlice
	IDContains
	IDIndexOf
	IDAppend
	IDConcatList
	IDKeys
	IDValues
	IDEntries
	IDMerge
	IDGroupBy
	IDAll
	IDAny
	IDFind
	IDFold
	IDRange

	// Strings
	IDUpper
	IDLower
	IDTrim
	IDTrimStart
	IDTrimEnd
	IDSplit
	IDJoin
	IDReplace
	IDReplaceAll
	IDContainsStr
	IDStartsWith
	IDEndsWith
	IDPadStart
	IDPadEnd
	IDRepeat
	IDFormat
	IDParseInt
	IDParseFloat
	IDToString
	IDSubstring
	IDCharAt
	IDIndexOfStr
	IDLines
	IDWords

	// Math
	IDAbs
	IDSqrt
	IDPow
	IDLog
	IDLog2
	IDLog10
	IDExp
	IDSin
	IDCos
	IDTan
	IDFloor
	IDCeil
	IDRound
	IDMin
	IDMax
	IDClamp
	IDSign
	IDRandom
	IDRandomInt

	// Conversions
	IDToInt
	IDToFloat
	IDToBool
	IDToBytes
	IDToJson
	IDFromJson
	IDToSet
	IDToList

	// Hashing
	IDHash
	IDSha256
	IDUuid

	// Printing / IO
	IDPrint
	IDPrintln
	IDDebug

	// Introspection
	IDTypeOf
	IDSizeOf
	IDIsNull

	idCount
)

var names = [...]string{
	IDMap: "map", IDFilter: "filter", IDReduce: "reduce", IDZip: "zip",
	IDChunk: "chunk", IDUnique: "unique", IDFlatten: "flatten", IDSort: "sort",
	IDSortBy: "sort_by", IDReverse: "reverse", IDLen: "len", IDIsEmpty: "is_empty",
	IDFirst: "first", IDLast: "last", IDTake: "take", IDDrop: "drop",
	IDSlice: "slice", IDContains: "contains", IDIndexOf: "index_of",
	IDAppend: "append", IDConcatList: "concat", IDKeys: "keys", IDValues: "values",
	IDEntries: "entries", IDMerge: "merge", IDGroupBy: "group_by", IDAll: "all",
	IDAny: "any", IDFind: "find", IDFold: "fold", IDRange: "range",

	IDUpper: "upper", IDLower: "lower", IDTrim: "trim", IDTrimStart: "trim_start",
	IDTrimEnd: "trim_end", IDSplit: "split", IDJoin: "join", IDReplace: "replace",
	IDReplaceAll: "replace_all", IDContainsStr: "contains_str", IDStartsWith: "starts_with",
	IDEndsWith: "ends_with", IDPadStart: "pad_start", IDPadEnd: "pad_end",
	IDRepeat: "repeat", IDFormat: "format", IDParseInt: "parse_int",
	IDParseFloat: "parse_float", IDToString: "to_string", IDSubstring: "substring",
	IDCharAt: "char_at", IDIndexOfStr: "index_of_str", IDLines: "lines", IDWords: "words",

	IDAbs: "abs", IDSqrt: "sqrt", IDPow: "pow", IDLog: "log", IDLog2: "log2",
	IDLog10: "log10", IDExp: "exp", IDSin: "sin", IDCos: "cos", IDTan: "tan",
	IDFloor: "floor", IDCeil: "ceil", IDRound: "round", IDMin: "min", IDMax: "max",
	IDClamp: "clamp", IDSign: "sign", IDRandom: "random", IDRandomInt: "random_int",

	IDToInt: "to_int", IDToFloat: "to_float", IDToBool: "to_bool", IDToBytes: "to_bytes",
	IDToJson: "to_json", IDFromJson: "from_json", IDToSet: "to_set", IDToList: "to_list",

	IDHash: "hash", IDSha256: "sha256", IDUuid: "uuid",

	IDPrint: "print", IDPrintln: "println", IDDebug: "debug",

	IDTypeOf: "type_of", IDSizeOf: "sizeof", IDIsNull: "is_null",
}

func (id ID) String() string {
	if int(id) < len(names) && names[id] != "" {
		return names[id]
	}
	return "?"
}

var byName map[string]ID

func init() {
	byName = make(map[string]ID, len(names))
	for id, n := range names {
		if n != "" {
			byName[n] = ID(id)
		}
	}
}

// Lookup resolves a builtin's source name to its ID, for the resolver/
// lowering stage to bind bare calls like `len(xs)` to an Intrinsic
// instruction instead of a cell Call.
func Lookup(name string) (ID, bool) {
	id, ok := byName[name]
	return id, ok
}

// Fn is one intrinsic's Go implementation.
type Fn func(args []vmvalue.Value) (vmvalue.Value, error)

// Caller supports invoking a Lumen closure value from within an intrinsic
// (map/filter/reduce/sort_by/group_by/find/all/any/fold all take a
// callback). The VM supplies the concrete implementation so this package
// never needs to import internal/vm.
type Caller interface {
	CallClosure(fn vmvalue.Value, args []vmvalue.Value) (vmvalue.Value, error)
}

// table is built lazily so higher-order entries can reference Caller
// without a package-level initialization cycle.
var table map[ID]Fn

// Call invokes builtin id with args, using caller to invoke any Lumen
// closure arguments (nil is fine for builtins that take none).
func Call(id ID, args []vmvalue.Value, caller Caller) (vmvalue.Value, error) {
	if table == nil {
		table = buildTable()
	}
	if needsCaller(id) {
		return callHigherOrder(id, args, caller)
	}
	fn, ok := table[id]
	if !ok {
		return vmvalue.Value{}, fmt.Errorf("intrinsics: unknown id %d", id)
	}
	return fn(args)
}

func needsCaller(id ID) bool {
	switch id {
	case IDMap, IDFilter, IDReduce, IDFold, IDSortBy, IDGroupBy, IDFind, IDAll, IDAny:
		return true
	default:
		return false
	}
}
