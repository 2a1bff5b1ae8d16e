package intrinsics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/google/uuid"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

func conversionFns(m map[ID]Fn) {
	m[IDToInt] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		switch a[0].Kind {
		case vmvalue.KInt:
			return a[0], nil
		case vmvalue.KFloat:
			return vmvalue.Int(int64(a[0].F)), nil
		case vmvalue.KBool:
			if a[0].B {
				return vmvalue.Int(1), nil
			}
			return vmvalue.Int(0), nil
		case vmvalue.KString:
			i, err := strconv.ParseInt(a[0].S, 10, 64)
			if err != nil {
				return vmvalue.Value{}, err
			}
			return vmvalue.Int(i), nil
		default:
			return vmvalue.Value{}, fmt.Errorf("cannot convert %s to Int", a[0].Kind)
		}
	}
	m[IDToFloat] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		switch a[0].Kind {
		case vmvalue.KFloat:
			return a[0], nil
		case vmvalue.KInt:
			return vmvalue.Float(float64(a[0].I)), nil
		case vmvalue.KString:
			f, err := strconv.ParseFloat(a[0].S, 64)
			if err != nil {
				return vmvalue.Value{}, err
			}
			return vmvalue.Float(f), nil
		default:
			return vmvalue.Value{}, fmt.Errorf("cannot convert %s to Float", a[0].Kind)
		}
	}
	m[IDToBool] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Bool(a[0].Truthy()), nil }
	m[IDToBytes] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Bytes([]byte(a[0].S)), nil }
	m[IDToJson] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Str(vmvalue.ToJSON(a[0])), nil }
	m[IDFromJson] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.FromJSON(a[0].S) }

	m[IDHash] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		h := fnv.New64a()
		h.Write([]byte(a[0].String()))
		return vmvalue.Int(int64(h.Sum64())), nil
	}
	m[IDSha256] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		sum := sha256.Sum256([]byte(a[0].S))
		return vmvalue.Str(hex.EncodeToString(sum[:])), nil
	}
	m[IDUuid] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Str(uuid.NewString()), nil }

	m[IDPrint] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		fmt.Print(a[0].String())
		return vmvalue.Null, nil
	}
	m[IDPrintln] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		fmt.Println(a[0].String())
		return vmvalue.Null, nil
	}
	m[IDDebug] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		fmt.Printf("%s: %s\n", a[0].TypeOf(), a[0].String())
		return vmvalue.Null, nil
	}

	m[IDTypeOf] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Str(a[0].TypeOf()), nil }
	m[IDSizeOf] = func(a []vmvalue.Value) (vmvalue.Value, error) {
		switch a[0].Kind {
		case vmvalue.KString:
			return vmvalue.Int(int64(len(a[0].S))), nil
		case vmvalue.KBytes:
			return vmvalue.Int(int64(len(a[0].Byt))), nil
		default:
			return vmvalue.Int(int64(len(listElems(a[0])))), nil
		}
	}
	m[IDIsNull] = func(a []vmvalue.Value) (vmvalue.Value, error) { return vmvalue.Bool(a[0].Kind == vmvalue.KNull), nil }
}

func buildTable() map[ID]Fn {
	m := make(map[ID]Fn, idCount)
	collectionFns(m)
	stringFns(m)
	mathFns(m)
	conversionFns(m)
	return m
}
