package intrinsics

import (
	"crypto/rand"
	"math"
	"math/big"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

func numArg(v vmvalue.Value) float64 {
	switch v.Kind {
	case vmvalue.KInt:
		return float64(v.I)
	case vmvalue.KFloat:
		return v.F
	default:
		return 0
	}
}

func mathFns(m map[ID]Fn) {
	unary := func(f func(float64) float64) Fn {
		return func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Float(f(numArg(a[0]))), nil }
	}
	m[IDSqrt] = unary(math.Sqrt)
	m[IDLog] = unary(math.Log)
	m[IDLog2] = unary(math.Log2)
	m[IDLog10] = unary(math.Log10)
	m[IDExp] = unary(math.Exp)
	m[IDSin] = unary(math.Sin)
	m[IDCos] = unary(math.Cos)
	m[IDTan] = unary(math.Tan)
	m[IDFloor] = unary(math.Floor)
	m[IDCeil] = unary(math.Ceil)
	m[IDRound] = unary(math.Round)

	m[IDAbs] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		if a[0].Kind == vmvalue.KInt {
			if a[0].I < 0 {
				return vmvalue.Int(-a[0].I), nil
			}
			return a[0], nil
		}
		return vmvalue.Float(math.Abs(numArg(a[0]))), nil
	}
	m[IDPow] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Pow(a[0], a[1]), nil }
	m[IDMin] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		if vmvalue.Compare(a[0], a[1]) <= 0 {
			return a[0], nil
		}
		return a[1], nil
	}
	m[IDMax] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		if vmvalue.Compare(a[0], a[1]) >= 0 {
			return a[0], nil
		}
		return a[1], nil
	}
	m[IDClamp] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		v, lo, hi := a[0], a[1], a[2]
		if vmvalue.Compare(v, lo) < 0 {
			return lo, nil
		}
		if vmvalue.Compare(v, hi) > 0 {
			return hi, nil
		}
		return v, nil
	}
	m[IDSign] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		f := numArg(a[0])
		switch {
		case f > 0:
			return vmvalue.Int(1), nil
		case f < 0:
			return vmvalue.Int(-1), nil
		default:
			return vmvalue.Int(0), nil
		}
	}
	m[IDRandom] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
		if err != nil {
			return vmvalue.Value{}, err
		}
		return vmvalue.Float(float64(n.Int64()) / float64(1<<53)), nil
	}
	m[IDRandomInt] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		lo, hi := a[0].I, a[1].I
		if hi <= lo {
			return vmvalue.Int(lo), nil
		}
		n, err := rand.Int(rand.Reader, big.NewInt(hi-lo))
		if err != nil {
			return vmvalue.Value{}, err
		}
		return vmvalue.Int(lo + n.Int64()), nil
	}
}
