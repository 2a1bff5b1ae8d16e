package vmvalue

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyOnWriteList(t *testing.T) {
	shared := NewList(Int(1), Int(2))
	shared.List.Retain() // simulate a second register holding the same list

	mutated := shared.CloneIfShared()
	require.NotSame(t, shared.List, mutated.List)

	mutated.List.Elems[0] = Int(99)
	require.Equal(t, int64(1), shared.List.Elems[0].I, "original list must be unaffected by the clone's mutation")
}

func TestCopyOnWriteUniqueRefMutatesInPlace(t *testing.T) {
	v := NewList(Int(1))
	same := v.CloneIfShared()
	require.Same(t, v.List, same.List)
}

func TestIntOverflowUpgradesToBigInt(t *testing.T) {
	a := Int(math.MaxInt64)
	b := Int(1)
	sum := Add(a, b)
	require.Equal(t, KBigInt, sum.Kind)
}

func TestFloorDivAndModRoundTowardNegativeInfinity(t *testing.T) {
	require.Equal(t, int64(-2), FloorDiv(Int(-7), Int(4)).I)
	require.Equal(t, int64(1), Mod(Int(-7), Int(4)).I)
}

func TestSetDeterministicOrdering(t *testing.T) {
	s := NewSet(Int(3), Int(1), Int(2))
	require.Equal(t, []int64{1, 2, 3}, []int64{s.SetV.Elems[0].I, s.SetV.Elems[1].I, s.SetV.Elems[2].I})
	require.True(t, s.SetV.Contains(Int(2)))
	require.False(t, s.SetV.Contains(Int(5)))
}

func TestJSONRoundTrip(t *testing.T) {
	rec := NewRecord("Point", []string{"x", "y"}, []Value{Int(1), Int(2)})
	doc := ToJSON(rec)
	back, err := FromJSON(doc)
	require.NoError(t, err)
	require.Equal(t, KMap, back.Kind)
	xv, ok := back.MapV.Get("x")
	require.True(t, ok)
	require.Equal(t, int64(1), xv.I)
}

func TestEqualAcrossNumericKinds(t *testing.T) {
	require.True(t, Equal(Int(2), Float(2.0)))
	require.False(t, Equal(Int(2), Str("2")))
}
