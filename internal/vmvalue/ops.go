package vmvalue

import (
	"math"
	"math/big"
)

// Equal performs value equality, not identity, matching spec.md's
// value-typed collection semantics.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// Int/Float/BigInt compare across kind for numeric equality.
		if isNumeric(a.Kind) && isNumeric(b.Kind) {
			return Compare(a, b) == 0
		}
		return false
	}
	switch a.Kind {
	case KNull:
		return true
	case KBool:
		return a.B == b.B
	case KInt:
		return a.I == b.I
	case KBigInt:
		return a.Big.Cmp(b.Big) == 0
	case KFloat:
		return a.F == b.F
	case KString:
		return a.S == b.S
	case KBytes:
		if len(a.Byt) != len(b.Byt) {
			return false
		}
		for i := range a.Byt {
			if a.Byt[i] != b.Byt[i] {
				return false
			}
		}
		return true
	case KList:
		if len(a.List.Elems) != len(b.List.Elems) {
			return false
		}
		for i := range a.List.Elems {
			if !Equal(a.List.Elems[i], b.List.Elems[i]) {
				return false
			}
		}
		return true
	case KTuple:
		if len(a.Tup) != len(b.Tup) {
			return false
		}
		for i := range a.Tup {
			if !Equal(a.Tup[i], b.Tup[i]) {
				return false
			}
		}
		return true
	case KSet:
		if len(a.SetV.Elems) != len(b.SetV.Elems) {
			return false
		}
		for i := range a.SetV.Elems {
			if !Equal(a.SetV.Elems[i], b.SetV.Elems[i]) {
				return false
			}
		}
		return true
	case KMap:
		if len(a.MapV.Keys) != len(b.MapV.Keys) {
			return false
		}
		for _, k := range a.MapV.Keys {
			av, _ := a.MapV.Get(k)
			bv, ok := b.MapV.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KRecord:
		if a.Rec.Name != b.Rec.Name || len(a.Rec.Fields) != len(b.Rec.Fields) {
			return false
		}
		for i := range a.Rec.Fields {
			if !Equal(a.Rec.Fields[i], b.Rec.Fields[i]) {
				return false
			}
		}
		return true
	case KUnion:
		if a.Un.Enum != b.Un.Enum || a.Un.Variant != b.Un.Variant || len(a.Un.Payload) != len(b.Un.Payload) {
			return false
		}
		for i := range a.Un.Payload {
			if !Equal(a.Un.Payload[i], b.Un.Payload[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isNumeric(k Kind) bool { return k == KInt || k == KFloat || k == KBigInt }

// Compare gives a total ordering over values, used by Set's sorted backing
// store and the `<`/`<=` operators. Kind ordering is used as a tiebreak
// across incomparable kinds so Set iteration stays deterministic even over
// heterogeneous-but-widened-to-union sets.
func Compare(a, b Value) int {
	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KString:
		return stringCompare(a.S, b.S)
	case KBool:
		if a.B == b.B {
			return 0
		}
		if !a.B {
			return -1
		}
		return 1
	default:
		if Equal(a, b) {
			return 0
		}
		return stringCompare(a.String(), b.String())
	}
}

func stringCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v Value) float64 {
	switch v.Kind {
	case KInt:
		return float64(v.I)
	case KFloat:
		return v.F
	case KBigInt:
		f, _ := new(big.Float).SetInt(v.Big).Float64()
		return f
	default:
		return math.NaN()
	}
}

// Add implements `+` with the VM's fast-path/promotion/BigInt-upgrade rules
// (spec.md §4.8 "Arithmetic has a fast path for (Int,Int) and
// (Float,Float); mixed numeric promotes; overflowing Int arithmetic
// upgrades to BigInt silently").
func Add(a, b Value) Value {
	if a.Kind == KString && b.Kind == KString {
		return Str(a.S + b.S)
	}
	if a.Kind == KInt && b.Kind == KInt {
		sum := a.I + b.I
		if (sum > a.I) == (b.I > 0) || b.I == 0 {
			return Int(sum)
		}
		return BigInt(new(big.Int).Add(big.NewInt(a.I), big.NewInt(b.I)))
	}
	if a.Kind == KBigInt || b.Kind == KBigInt {
		return normalizeBigInt(new(big.Int).Add(toBigInt(a), toBigInt(b)))
	}
	return Float(toFloat(a) + toFloat(b))
}

func Sub(a, b Value) Value {
	if a.Kind == KInt && b.Kind == KInt {
		diff := a.I - b.I
		if (diff < a.I) == (b.I > 0) || b.I == 0 {
			return Int(diff)
		}
		return BigInt(new(big.Int).Sub(big.NewInt(a.I), big.NewInt(b.I)))
	}
	if a.Kind == KBigInt || b.Kind == KBigInt {
		return normalizeBigInt(new(big.Int).Sub(toBigInt(a), toBigInt(b)))
	}
	return Float(toFloat(a) - toFloat(b))
}

func Mul(a, b Value) Value {
	if a.Kind == KInt && b.Kind == KInt {
		prod := a.I * b.I
		if a.I == 0 || (prod/a.I == b.I) {
			return Int(prod)
		}
		return BigInt(new(big.Int).Mul(big.NewInt(a.I), big.NewInt(b.I)))
	}
	if a.Kind == KBigInt || b.Kind == KBigInt {
		return normalizeBigInt(new(big.Int).Mul(toBigInt(a), toBigInt(b)))
	}
	return Float(toFloat(a) * toFloat(b))
}

func Div(a, b Value) Value {
	return Float(toFloat(a) / toFloat(b))
}

func FloorDiv(a, b Value) Value {
	if a.Kind == KInt && b.Kind == KInt && b.I != 0 {
		q := a.I / b.I
		if (a.I%b.I != 0) && ((a.I < 0) != (b.I < 0)) {
			q--
		}
		return Int(q)
	}
	return Float(math.Floor(toFloat(a) / toFloat(b)))
}

func Mod(a, b Value) Value {
	if a.Kind == KInt && b.Kind == KInt && b.I != 0 {
		m := a.I % b.I
		if m != 0 && (m < 0) != (b.I < 0) {
			m += b.I
		}
		return Int(m)
	}
	return Float(math.Mod(toFloat(a), toFloat(b)))
}

func Pow(a, b Value) Value {
	if a.Kind == KInt && b.Kind == KInt && b.I >= 0 {
		r := new(big.Int).Exp(big.NewInt(a.I), big.NewInt(b.I), nil)
		return normalizeBigInt(r)
	}
	return Float(math.Pow(toFloat(a), toFloat(b)))
}

func Neg(a Value) Value {
	switch a.Kind {
	case KInt:
		return Int(-a.I)
	case KBigInt:
		return normalizeBigInt(new(big.Int).Neg(a.Big))
	default:
		return Float(-toFloat(a))
	}
}

func toBigInt(v Value) *big.Int {
	switch v.Kind {
	case KBigInt:
		return v.Big
	case KInt:
		return big.NewInt(v.I)
	default:
		return big.NewInt(0)
	}
}

// normalizeBigInt downgrades back to Int when the result fits in 64 bits,
// so BigInt is only ever observed when it's truly needed.
func normalizeBigInt(b *big.Int) Value {
	if b.IsInt64() {
		return Int(b.Int64())
	}
	return BigInt(b)
}

// Concat implements `++`, list/string concatenation.
func Concat(a, b Value) Value {
	if a.Kind == KString {
		return Str(a.S + b.String())
	}
	if a.Kind == KList && b.Kind == KList {
		out := make([]Value, 0, len(a.List.Elems)+len(b.List.Elems))
		out = append(out, a.List.Elems...)
		out = append(out, b.List.Elems...)
		return NewList(out...)
	}
	return Str(a.String() + b.String())
}

// BitAnd/Or/Xor/Shl/Shr/Not operate on Int per spec.md's "bitwise on Int".
func BitAnd(a, b Value) Value { return Int(a.I & b.I) }
func BitOr(a, b Value) Value  { return Int(a.I | b.I) }
func BitXor(a, b Value) Value { return Int(a.I ^ b.I) }
func BitNot(a Value) Value    { return Int(^a.I) }
func Shl(a, b Value) Value    { return Int(a.I << uint(b.I)) }
func Shr(a, b Value) Value    { return Int(a.I >> uint(b.I)) }

// In implements the `in` operator over List/Set/Map/String.
func In(needle, haystack Value) bool {
	switch haystack.Kind {
	case KList:
		for _, e := range haystack.List.Elems {
			if Equal(e, needle) {
				return true
			}
		}
		return false
	case KSet:
		return haystack.SetV.Contains(needle)
	case KMap:
		_, ok := haystack.MapV.Get(needle.S)
		return ok
	case KString:
		return len(needle.S) == 0 || indexOfSubstr(haystack.S, needle.S) >= 0
	default:
		return false
	}
}

func indexOfSubstr(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
