package vm

import (
	"fmt"
	"sort"

	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// execNewRecord collapses the contiguous field-value run starting at ins.A
// (lowerRecordLit's "self-overwrite" convention) back into R[A] itself.
func (v *VM) execNewRecord(fr *frame, ins lir.Instruction) error {
	typeDef := fr.cell // placeholder to keep gofmt happy about unused fr if needed
	_ = typeDef
	if int(ins.Bx) >= len(v.mod.Types) {
		return fmt.Errorf("vm: NewRecord references out-of-range type %d", ins.Bx)
	}
	t := v.mod.Types[ins.Bx]
	n := len(t.Fields)
	fields := cloneRange(fr.regs, ins.A, uint8(n))
	fr.regs[ins.A] = vmvalue.NewRecord(t.Name, t.Fields, fields)
	return nil
}

// execNewUnion collapses a "Enum.Variant" tag string at R[A] plus a
// contiguous payload run right after it into a Union value at R[A]
// (lowerVariantConstruct's convention; ins.C is the payload count).
func (v *VM) execNewUnion(fr *frame, ins lir.Instruction) error {
	tag := fr.regs[ins.A].S
	enum, variant, ok := splitTag(tag)
	if !ok {
		return fmt.Errorf("vm: malformed union tag %q", tag)
	}
	payload := cloneRange(fr.regs, ins.A+1, ins.C)
	fr.regs[ins.A] = vmvalue.NewUnion(enum, variant, payload...)
	return nil
}

func splitTag(tag string) (enum, variant string, ok bool) {
	for i := len(tag) - 1; i >= 0; i-- {
		if tag[i] == '.' {
			return tag[:i], tag[i+1:], true
		}
	}
	return "", "", false
}

// isVariant reports whether v is a Union whose "Enum.Variant" tag matches,
// backing both `try`'s Result.ok test and match's VariantPattern test.
func isVariant(val vmvalue.Value, tag string) bool {
	if val.Kind != vmvalue.KUnion {
		return false
	}
	enum, variant, ok := splitTag(tag)
	if !ok {
		return false
	}
	return val.Un.Enum == enum && val.Un.Variant == variant
}

func getField(obj vmvalue.Value, name string) (vmvalue.Value, error) {
	switch obj.Kind {
	case vmvalue.KRecord:
		if val, ok := obj.Rec.Get(name); ok {
			return val, nil
		}
		return vmvalue.Null, fmt.Errorf("vm: record %q has no field %q", obj.Rec.Name, name)
	case vmvalue.KNull:
		// Reached only via the safe `?.` chain when the receiver is null;
		// the guard around GetField in lowering keeps this unreachable for
		// the non-safe form, so this exists purely as a defensive fallback.
		return vmvalue.Null, nil
	default:
		return vmvalue.Null, fmt.Errorf("vm: cannot get field %q of %s", name, obj.TypeOf())
	}
}

func setField(obj vmvalue.Value, name string, val vmvalue.Value) (vmvalue.Value, error) {
	if obj.Kind != vmvalue.KRecord {
		return obj, fmt.Errorf("vm: cannot set field %q of %s", name, obj.TypeOf())
	}
	updated := obj.CloneIfShared()
	if !updated.Rec.Set(name, val) {
		return obj, fmt.Errorf("vm: record %q has no field %q", obj.Rec.Name, name)
	}
	return updated, nil
}

func getIndex(obj, idx vmvalue.Value) (vmvalue.Value, error) {
	switch obj.Kind {
	case vmvalue.KList:
		i, err := listIndex(idx, len(obj.List.Elems))
		if err != nil {
			return vmvalue.Null, err
		}
		return obj.List.Elems[i], nil
	case vmvalue.KMap:
		val, ok := obj.MapV.Get(idx.S)
		if !ok {
			return vmvalue.Null, nil
		}
		return val, nil
	case vmvalue.KString:
		i, err := listIndex(idx, len(obj.S))
		if err != nil {
			return vmvalue.Null, err
		}
		return vmvalue.Str(string(obj.S[i])), nil
	case vmvalue.KBytes:
		i, err := listIndex(idx, len(obj.Byt))
		if err != nil {
			return vmvalue.Null, err
		}
		return vmvalue.Int(int64(obj.Byt[i])), nil
	case vmvalue.KNull:
		return vmvalue.Null, nil
	default:
		return vmvalue.Null, fmt.Errorf("vm: cannot index %s", obj.TypeOf())
	}
}

func setIndex(obj, idx, val vmvalue.Value) (vmvalue.Value, error) {
	switch obj.Kind {
	case vmvalue.KList:
		updated := obj.CloneIfShared()
		i, err := listIndex(idx, len(updated.List.Elems))
		if err != nil {
			return obj, err
		}
		updated.List.Elems[i] = val
		return updated, nil
	case vmvalue.KMap:
		updated := obj.CloneIfShared()
		updated.MapV.Set(idx.S, val)
		return updated, nil
	default:
		return obj, fmt.Errorf("vm: cannot index-assign %s", obj.TypeOf())
	}
}

// listIndex normalizes a Value index (supporting negative indices counting
// from the end, spec.md's collection-indexing convention) against length n.
func listIndex(idx vmvalue.Value, n int) (int, error) {
	i := int(idx.I)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("vm: index %d out of range (len %d)", int(idx.I), n)
	}
	return i, nil
}

func getTupleIndex(obj vmvalue.Value, i int) (vmvalue.Value, error) {
	switch obj.Kind {
	case vmvalue.KTuple:
		if i < 0 || i >= len(obj.Tup) {
			return vmvalue.Null, fmt.Errorf("vm: tuple index %d out of range", i)
		}
		return obj.Tup[i], nil
	case vmvalue.KUnion:
		if i < 0 || i >= len(obj.Un.Payload) {
			return vmvalue.Null, fmt.Errorf("vm: union payload index %d out of range", i)
		}
		return obj.Un.Payload[i], nil
	case vmvalue.KList:
		if i < 0 || i >= len(obj.List.Elems) {
			return vmvalue.Null, fmt.Errorf("vm: list index %d out of range", i)
		}
		return obj.List.Elems[i], nil
	default:
		return vmvalue.Null, fmt.Errorf("vm: cannot destructure %s as a tuple", obj.TypeOf())
	}
}

func appendValue(list, val vmvalue.Value) (vmvalue.Value, error) {
	if list.Kind != vmvalue.KList {
		return list, fmt.Errorf("vm: cannot append to %s", list.TypeOf())
	}
	updated := list.CloneIfShared()
	updated.List.Elems = append(updated.List.Elems, val)
	return updated, nil
}

func newMapFromPairs(kv []vmvalue.Value) vmvalue.Value {
	m := vmvalue.NewMap()
	for i := 0; i+1 < len(kv); i += 2 {
		m.MapV.Set(kv[i].S, kv[i+1])
	}
	return m
}

// iterState is a for-loop's materialized cursor, keyed per-frame by the
// subject register index (ForPrep/ForIn only ever name that one register,
// not a separate cursor slot — see lower/stmt.go's lowerForStmt). Frames
// are never shared across fibers, so this needs no locking.
type iterState struct {
	elems []vmvalue.Value
	pos   int
}

// prepareIterator materializes regs[a]'s elements once, at ForPrep time, so
// ForIn's per-step cost is a simple index bump regardless of the source
// collection's kind.
func (fr *frame) prepareIterator(a uint8) {
	if fr.iterators == nil {
		fr.iterators = map[uint8]*iterState{}
	}
	fr.iterators[a] = &iterState{elems: materialize(fr.regs[a])}
}

func materialize(v vmvalue.Value) []vmvalue.Value {
	switch v.Kind {
	case vmvalue.KList:
		return append([]vmvalue.Value{}, v.List.Elems...)
	case vmvalue.KSet:
		return append([]vmvalue.Value{}, v.SetV.Elems...)
	case vmvalue.KTuple:
		return append([]vmvalue.Value{}, v.Tup...)
	case vmvalue.KMap:
		out := make([]vmvalue.Value, 0, len(v.MapV.Keys))
		keys := append([]string{}, v.MapV.Keys...)
		sort.Strings(keys)
		for _, k := range v.MapV.Keys {
			val, _ := v.MapV.Get(k)
			out = append(out, vmvalue.Value{Kind: vmvalue.KTuple, Tup: []vmvalue.Value{vmvalue.Str(k), val}})
		}
		_ = keys
		return out
	case vmvalue.KString:
		out := make([]vmvalue.Value, 0, len(v.S))
		for _, r := range v.S {
			out = append(out, vmvalue.Str(string(r)))
		}
		return out
	default:
		return nil
	}
}

// iterNext implements the ForIn half of the protocol: a is the subject
// register ForPrep keyed its cursor against, regs[b] receives whether
// another element remains, regs[c] receives that element.
func (fr *frame) iterNext(a, b, c uint8) {
	regs := fr.regs
	st, ok := fr.iterators[a]
	if !ok || st.pos >= len(st.elems) {
		regs[b] = vmvalue.Bool(false)
		regs[c] = vmvalue.Null
		if ok {
			delete(fr.iterators, a)
		}
		return
	}
	regs[b] = vmvalue.Bool(true)
	regs[c] = st.elems[st.pos]
	st.pos++
}
