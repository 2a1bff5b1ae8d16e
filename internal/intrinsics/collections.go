package intrinsics

import (
	"fmt"
	"sort"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

func listElems(v vmvalue.Value) []vmvalue.Value {
	switch v.Kind {
	case vmvalue.KList:
		return v.List.Elems
	case vmvalue.KSet:
		return v.SetV.Elems
	case vmvalue.KTuple:
		return v.Tup
	default:
		return nil
	}
}

// callHigherOrder dispatches the builtins that need to invoke a Lumen
// closure argument back through the VM (map/filter/reduce/fold/sort_by/
// group_by/find/all/any), since those can't be expressed as pure Fn values
// without a Caller.
func callHigherOrder(id ID, args []vmvalue.Value, caller Caller) (vmvalue.Value, error) {
	switch id {
	case IDMap:
		if len(args) != 2 {
			return vmvalue.Value{}, fmt.Errorf("map expects (list, fn)")
		}
		elems := listElems(args[0])
		out := make([]vmvalue.Value, len(elems))
		for i, e := range elems {
			r, err := caller.CallClosure(args[1], []vmvalue.Value{e})
			if err != nil {
				return vmvalue.Value{}, err
			}
			out[i] = r
		}
		return vmvalue.NewList(out...), nil
	case IDFilter:
		elems := listElems(args[0])
		var out []vmvalue.Value
		for _, e := range elems {
			r, err := caller.CallClosure(args[1], []vmvalue.Value{e})
			if err != nil {
				return vmvalue.Value{}, err
			}
			if r.Truthy() {
				out = append(out, e)
			}
		}
		return vmvalue.NewList(out...), nil
	case IDReduce:
		elems := listElems(args[0])
		acc := args[1]
		for _, e := range elems {
			r, err := caller.CallClosure(args[2], []vmvalue.Value{acc, e})
			if err != nil {
				return vmvalue.Value{}, err
			}
			acc = r
		}
		return acc, nil
	case IDFold:
		return callHigherOrder(IDReduce, args, caller)
	case IDSortBy:
		elems := append([]vmvalue.Value{}, listElems(args[0])...)
		var sortErr error
		sort.SliceStable(elems, func(i, j int) bool {
			ri, err := caller.CallClosure(args[1], []vmvalue.Value{elems[i]})
			if err != nil {
				sortErr = err
				return false
			}
			rj, err := caller.CallClosure(args[1], []vmvalue.Value{elems[j]})
			if err != nil {
				sortErr = err
				return false
			}
			return vmvalue.Compare(ri, rj) < 0
		})
		if sortErr != nil {
			return vmvalue.Value{}, sortErr
		}
		return vmvalue.NewList(elems...), nil
	case IDGroupBy:
		elems := listElems(args[0])
		groups := &vmvalue.MapData{Entries: map[string]vmvalue.Value{}}
		for _, e := range elems {
			key, err := caller.CallClosure(args[1], []vmvalue.Value{e})
			if err != nil {
				return vmvalue.Value{}, err
			}
			k := key.String()
			cur, ok := groups.Get(k)
			if !ok {
				cur = vmvalue.NewList()
			}
			groups.Set(k, vmvalue.NewList(append(append([]vmvalue.Value{}, cur.List.Elems...), e)...))
		}
		return vmvalue.Value{Kind: vmvalue.KMap, MapV: groups}, nil
	case IDFind:
		elems := listElems(args[0])
		for _, e := range elems {
			r, err := caller.CallClosure(args[1], []vmvalue.Value{e})
			if err != nil {
				return vmvalue.Value{}, err
			}
			if r.Truthy() {
				return e, nil
			}
		}
		return vmvalue.Null, nil
	case IDAll:
		elems := listElems(args[0])
		for _, e := range elems {
			r, err := caller.CallClosure(args[1], []vmvalue.Value{e})
			if err != nil {
				return vmvalue.Value{}, err
			}
			if !r.Truthy() {
				return vmvalue.Bool(false), nil
			}
		}
		return vmvalue.Bool(true), nil
	case IDAny:
		elems := listElems(args[0])
		for _, e := range elems {
			r, err := caller.CallClosure(args[1], []vmvalue.Value{e})
			if err != nil {
				return vmvalue.Value{}, err
			}
			if r.Truthy() {
				return vmvalue.Bool(true), nil
			}
		}
		return vmvalue.Bool(false), nil
	default:
		return vmvalue.Value{}, fmt.Errorf("intrinsics: %s is not higher-order", id)
	}
}

func collectionFns(m map[ID]Fn) {
	m[IDZip] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		a, b := listElems(args[0]), listElems(args[1])
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		out := make([]vmvalue.Value, n)
		for i := 0; i < n; i++ {
			out[i] = vmvalue.Value{Kind: vmvalue.KTuple, Tup: []vmvalue.Value{a[i], b[i]}}
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDChunk] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		elems := listElems(args[0])
		size := int(args[1].I)
		if size <= 0 {
			return vmvalue.Value{}, fmt.Errorf("chunk size must be > 0")
		}
		var out []vmvalue.Value
		for i := 0; i < len(elems); i += size {
			end := i + size
			if end > len(elems) {
				end = len(elems)
			}
			out = append(out, vmvalue.NewList(append([]vmvalue.Value{}, elems[i:end]...)...))
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDUnique] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		elems := listElems(args[0])
		var out []vmvalue.Value
		for _, e := range elems {
			dup := false
			for _, o := range out {
				if vmvalue.Equal(o, e) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, e)
			}
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDFlatten] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		var out []vmvalue.Value
		for _, e := range listElems(args[0]) {
			out = append(out, listElems(e)...)
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDSort] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		elems := append([]vmvalue.Value{}, listElems(args[0])...)
		sort.SliceStable(elems, func(i, j int) bool { return vmvalue.Compare(elems[i], elems[j]) < 0 })
		return vmvalue.NewList(elems...), nil
	}
	m[IDReverse] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		elems := listElems(args[0])
		out := make([]vmvalue.Value, len(elems))
		for i, e := range elems {
			out[len(elems)-1-i] = e
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDLen] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		switch args[0].Kind {
		case vmvalue.KString:
			return vmvalue.Int(int64(len(args[0].S))), nil
		case vmvalue.KMap:
			return vmvalue.Int(int64(len(args[0].MapV.Keys))), nil
		case vmvalue.KBytes:
			return vmvalue.Int(int64(len(args[0].Byt))), nil
		default:
			return vmvalue.Int(int64(len(listElems(args[0])))), nil
		}
	}
	m[IDIsEmpty] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		v, err := m[IDLen](args)
		if err != nil {
			return vmvalue.Value{}, err
		}
		return vmvalue.Bool(v.I == 0), nil
	}
	m[IDFirst] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		elems := listElems(args[0])
		if len(elems) == 0 {
			return vmvalue.Null, nil
		}
		return elems[0], nil
	}
	m[IDLast] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		elems := listElems(args[0])
		if len(elems) == 0 {
			return vmvalue.Null, nil
		}
		return elems[len(elems)-1], nil
	}
	m[IDTake] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		elems, n := listElems(args[0]), int(args[1].I)
		if n > len(elems) {
			n = len(elems)
		}
		if n < 0 {
			n = 0
		}
		return vmvalue.NewList(append([]vmvalue.Value{}, elems[:n]...)...), nil
	}
	m[IDDrop] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		elems, n := listElems(args[0]), int(args[1].I)
		if n > len(elems) {
			n = len(elems)
		}
		if n < 0 {
			n = 0
		}
		return vmvalue.NewList(append([]vmvalue.Value{}, elems[n:]...)...), nil
	}
	m[IDSlice] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		elems := listElems(args[0])
		start, end := int(args[1].I), int(args[2].I)
		if start < 0 {
			start = 0
		}
		if end > len(elems) {
			end = len(elems)
		}
		if start > end {
			start = end
		}
		return vmvalue.NewList(append([]vmvalue.Value{}, elems[start:end]...)...), nil
	}
	m[IDContains] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Bool(vmvalue.In(args[1], args[0])), nil
	}
	m[IDIndexOf] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		for i, e := range listElems(args[0]) {
			if vmvalue.Equal(e, args[1]) {
				return vmvalue.Int(int64(i)), nil
			}
		}
		return vmvalue.Int(-1), nil
	}
	m[IDAppend] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		list := args[0].CloneIfShared()
		list.List.Elems = append(list.List.Elems, args[1])
		return list, nil
	}
	m[IDConcatList] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Concat(args[0], args[1]), nil
	}
	m[IDKeys] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		out := make([]vmvalue.Value, len(args[0].MapV.Keys))
		for i, k := range args[0].MapV.Keys {
			out[i] = vmvalue.Str(k)
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDValues] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		out := make([]vmvalue.Value, len(args[0].MapV.Keys))
		for i, k := range args[0].MapV.Keys {
			v, _ := args[0].MapV.Get(k)
			out[i] = v
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDEntries] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		out := make([]vmvalue.Value, len(args[0].MapV.Keys))
		for i, k := range args[0].MapV.Keys {
			v, _ := args[0].MapV.Get(k)
			out[i] = vmvalue.Value{Kind: vmvalue.KTuple, Tup: []vmvalue.Value{vmvalue.Str(k), v}}
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDMerge] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		out := args[0].CloneIfShared()
		for _, k := range args[1].MapV.Keys {
			v, _ := args[1].MapV.Get(k)
			out.MapV.Set(k, v)
		}
		return out, nil
	}
	m[IDRange] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		start, end := args[0].I, args[1].I
		var out []vmvalue.Value
		for i := start; i < end; i++ {
			out = append(out, vmvalue.Int(i))
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDToSet] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.NewSet(listElems(args[0])...), nil
	}
	m[IDToList] = func(args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.NewList(listElems(args[0])...), nil
	}
}
