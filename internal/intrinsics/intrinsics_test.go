package intrinsics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

func TestLookupResolvesSourceNames(t *testing.T) {
	id, ok := Lookup("len")
	require.True(t, ok)
	require.Equal(t, IDLen, id)

	_, ok = Lookup("not_a_builtin")
	require.False(t, ok)
}

func TestCallPureBuiltins(t *testing.T) {
	r, err := Call(IDUpper, []vmvalue.Value{vmvalue.Str("shout")}, nil)
	require.NoError(t, err)
	require.Equal(t, "SHOUT", r.S)

	r, err = Call(IDAbs, []vmvalue.Value{vmvalue.Int(-4)}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(4), r.I)

	r, err = Call(IDLen, []vmvalue.Value{vmvalue.NewList(vmvalue.Int(1), vmvalue.Int(2), vmvalue.Int(3))}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), r.I)
}

func TestCallRoundTripsJSON(t *testing.T) {
	r, err := Call(IDToJson, []vmvalue.Value{vmvalue.Int(7)}, nil)
	require.NoError(t, err)
	require.Equal(t, "7", r.S)

	back, err := Call(IDFromJson, []vmvalue.Value{vmvalue.Str("[1,2,3]")}, nil)
	require.NoError(t, err)
	require.Equal(t, vmvalue.KList, back.Kind)
	require.Len(t, back.List.Elems, 3)
}

// stubCaller implements Caller by applying a fixed Go function, standing in
// for the VM's closure invocation during higher-order builtin tests.
type stubCaller struct {
	fn func(args []vmvalue.Value) (vmvalue.Value, error)
}

func (s stubCaller) CallClosure(_ vmvalue.Value, args []vmvalue.Value) (vmvalue.Value, error) {
	return s.fn(args)
}

func TestCallHigherOrderMapUsesCaller(t *testing.T) {
	double := stubCaller{fn: func(args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Int(args[0].I * 2), nil
	}}
	list := vmvalue.NewList(vmvalue.Int(1), vmvalue.Int(2), vmvalue.Int(3))
	r, err := Call(IDMap, []vmvalue.Value{list, vmvalue.Null}, double)
	require.NoError(t, err)
	require.Equal(t, int64(2), r.List.Elems[0].I)
	require.Equal(t, int64(6), r.List.Elems[2].I)
}

func TestCallHigherOrderFilterPropagatesErrors(t *testing.T) {
	failing := stubCaller{fn: func(args []vmvalue.Value) (vmvalue.Value, error) {
		return vmvalue.Value{}, fmt.Errorf("boom")
	}}
	list := vmvalue.NewList(vmvalue.Int(1))
	_, err := Call(IDFilter, []vmvalue.Value{list, vmvalue.Null}, failing)
	require.Error(t, err)
}
