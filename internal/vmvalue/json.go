package vmvalue

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ToJSON renders a Value as a JSON document, used both by the `Json` value
// kind's string form and by the VM's ToolCall path when handing a call's argument
// list to a provider (spec.md §6 "Tool provider interface":
// `call(json_value) -> result[json_value, ToolError]`). Built incrementally
// with sjson.SetRaw rather than encoding/json/marshal, matching the
// gjson/sjson "set paths on a raw document" idiom go-dws's indirect
// dependency on the tidwall stack follows, instead of round-tripping
// through reflection-based struct tags this value model has none of.
func ToJSON(v Value) string {
	switch v.Kind {
	case KNull:
		return "null"
	case KBool:
		return strconv.FormatBool(v.B)
	case KInt:
		return strconv.FormatInt(v.I, 10)
	case KBigInt:
		return v.Big.String()
	case KFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KString:
		raw, _ := sjson.Set("", "v", v.S)
		return gjson.Get(raw, "v").Raw
	case KBytes:
		raw, _ := sjson.Set("", "v", string(v.Byt))
		return gjson.Get(raw, "v").Raw
	case KList, KSet:
		var elems []Value
		if v.Kind == KList {
			elems = v.List.Elems
		} else {
			elems = v.SetV.Elems
		}
		doc := "[]"
		for i, e := range elems {
			doc, _ = sjson.SetRaw(doc, strconv.Itoa(i), ToJSON(e))
		}
		return doc
	case KTuple:
		doc := "[]"
		for i, e := range v.Tup {
			doc, _ = sjson.SetRaw(doc, strconv.Itoa(i), ToJSON(e))
		}
		return doc
	case KMap:
		doc := "{}"
		for _, k := range v.MapV.Keys {
			val, _ := v.MapV.Get(k)
			doc, _ = sjson.SetRaw(doc, jsonPathEscape(k), ToJSON(val))
		}
		return doc
	case KRecord:
		doc := "{}"
		for i, name := range v.Rec.FieldNames {
			doc, _ = sjson.SetRaw(doc, jsonPathEscape(name), ToJSON(v.Rec.Fields[i]))
		}
		return doc
	case KUnion:
		doc := "{}"
		doc, _ = sjson.Set(doc, "tag", v.Un.Variant)
		payload := "[]"
		for i, p := range v.Un.Payload {
			payload, _ = sjson.SetRaw(payload, strconv.Itoa(i), ToJSON(p))
		}
		doc, _ = sjson.SetRaw(doc, "payload", payload)
		return doc
	default:
		raw, _ := sjson.Set("", "v", v.String())
		return gjson.Get(raw, "v").Raw
	}
}

// jsonPathEscape escapes sjson's path metacharacters ('.', '*', '?') in a
// map/record key so it survives being used as a literal path segment.
func jsonPathEscape(key string) string {
	needsEscape := false
	for _, c := range key {
		if c == '.' || c == '*' || c == '?' || c == '\\' {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return key
	}
	out := make([]rune, 0, len(key)+2)
	for _, c := range key {
		if c == '.' || c == '*' || c == '?' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

// FromJSON parses a JSON document into a Value, using gjson.Parse to avoid
// an intermediate map[string]interface{} allocation pass.
func FromJSON(doc string) (Value, error) {
	r := gjson.Parse(doc)
	if !r.Exists() && doc != "null" {
		return Value{}, fmt.Errorf("vmvalue: invalid JSON document")
	}
	return fromGjson(r), nil
}

func fromGjson(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.Number:
		if r.Num == float64(int64(r.Num)) && !hasDecimalPoint(r.Raw) {
			return Int(int64(r.Num))
		}
		return Float(r.Num)
	case gjson.String:
		return Str(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			var elems []Value
			r.ForEach(func(_, v gjson.Result) bool {
				elems = append(elems, fromGjson(v))
				return true
			})
			return NewList(elems...)
		}
		m := &MapData{Entries: map[string]Value{}}
		r.ForEach(func(k, v gjson.Result) bool {
			m.Set(k.Str, fromGjson(v))
			return true
		})
		return Value{Kind: KMap, MapV: m}
	default:
		return Null
	}
}

func hasDecimalPoint(raw string) bool {
	for _, c := range raw {
		if c == '.' || c == 'e' || c == 'E' {
			return true
		}
	}
	return false
}
