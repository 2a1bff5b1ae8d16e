package intrinsics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

func stringFns(m map[ID]Fn) {
	m[IDUpper] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Str(strings.ToUpper(a[0].S)), nil }
	m[IDLower] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Str(strings.ToLower(a[0].S)), nil }
	m[IDTrim] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Str(strings.TrimSpace(a[0].S)), nil }
	m[IDTrimStart] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Str(strings.TrimLeft(a[0].S, " \t\n\r")), nil
	}
	m[IDTrimEnd] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Str(strings.TrimRight(a[0].S, " \t\n\r")), nil
	}
	m[IDSplit] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		parts := strings.Split(a[0].S, a[1].S)
		out := make([]vmvalue.Value, len(parts))
		for i, p := range parts {
			out[i] = vmvalue.Str(p)
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDJoin] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		elems := listElems(a[0])
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = e.String()
		}
		return vmvalue.Str(strings.Join(parts, a[1].S)), nil
	}
	m[IDReplace] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Str(strings.Replace(a[0].S, a[1].S, a[2].S, 1)), nil
	}
	m[IDReplaceAll] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Str(strings.ReplaceAll(a[0].S, a[1].S, a[2].S)), nil
	}
	m[IDContainsStr] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Bool(strings.Contains(a[0].S, a[1].S)), nil
	}
	m[IDStartsWith] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Bool(strings.HasPrefix(a[0].S, a[1].S)), nil
	}
	m[IDEndsWith] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Bool(strings.HasSuffix(a[0].S, a[1].S)), nil
	}
	m[IDPadStart] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		n := int(a[1].I)
		s := a[0].S
		for len(s) < n {
			s = a[2].S + s
		}
		return vmvalue.Str(s), nil
	}
	m[IDPadEnd] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		n := int(a[1].I)
		s := a[0].S
		for len(s) < n {
			s += a[2].S
		}
		return vmvalue.Str(s), nil
	}
	m[IDRepeat] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Str(strings.Repeat(a[0].S, int(a[1].I))), nil
	}
	m[IDFormat] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		args := make([]interface{}, len(a)-1)
		for i, v := range a[1:] {
			args[i] = v.String()
		}
		return vmvalue.Str(fmt.Sprintf(a[0].S, args...)), nil
	}
	m[IDParseInt] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		i, err := strconv.ParseInt(strings.TrimSpace(a[0].S), 10, 64)
		if err != nil {
			return vmvalue.Value{}, err
		}
		return vmvalue.Int(i), nil
	}
	m[IDParseFloat] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(a[0].S), 64)
		if err != nil {
			return vmvalue.Value{}, err
		}
		return vmvalue.Float(f), nil
	}
	m[IDToString] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Str(a[0].String()), nil }
	m[IDSubstring] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		s := a[0].S
		start, end := int(a[1].I), int(a[2].I)
		if start < 0 {
			start = 0
		}
		if end > len(s) {
			end = len(s)
		}
		if start > end {
			start = end
		}
		return vmvalue.Str(s[start:end]), nil
	}
	m[IDCharAt] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		s, i := a[0].S, int(a[1].I)
		if i < 0 || i >= len(s) {
			return vmvalue.Null, nil
		}
		return vmvalue.Str(string(s[i])), nil
	}
	m[IDIndexOfStr] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Int(int64(strings.Index(a[0].S, a[1].S))), nil
	}
	m[IDLines] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		parts := strings.Split(a[0].S, "\n")
		out := make([]vmvalue.Value, len(parts))
		for i, p := range parts {
			out[i] = vmvalue.Str(p)
		}
		return vmvalue.NewList(out...), nil
	}
	m[IDWords] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		parts := strings.Fields(a[0].S)
		out := make([]vmvalue.Value, len(parts))
		for i, p := range parts {
			out[i] = vmvalue.Str(p)
		}
		return vmvalue.NewList(out...), nil
	}
}
