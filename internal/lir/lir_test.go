package lir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_ABC(t *testing.T) {
	ins := ABC(OpAdd, 3, 1, 2)
	got := Decode(ins.Encode())
	assert.Equal(t, ins, got)
}

func TestEncodeDecode_ABx(t *testing.T) {
	ins := ABx(OpLoadK, 7, 65535)
	got := Decode(ins.Encode())
	assert.Equal(t, OpLoadK, got.Op)
	assert.Equal(t, uint8(7), got.A)
	assert.Equal(t, uint16(65535), got.Bx)
}

func TestEncodeDecode_SAxBackwardOffsets(t *testing.T) {
	for _, off := range []int32{-1, -100, -(1 << 23), 1<<23 - 1, 0, 42} {
		ins := SAx(OpJmp, off)
		got := Decode(ins.Encode())
		assert.Equal(t, off, got.Sax, "offset %d must survive the 24-bit round trip", off)
	}
}

func TestSAxRange_Boundaries(t *testing.T) {
	assert.True(t, SAxInRange(-(1 << 23)))
	assert.True(t, SAxInRange(1<<23-1))
	assert.False(t, SAxInRange(-(1<<23)-1))
	assert.False(t, SAxInRange(1<<23))

	assert.Panics(t, func() { SAx(OpJmp, -(1<<23)-1) })
}

func buildCell(name string) LirCell {
	return LirCell{
		Name:          name,
		Params:        1,
		ReturnType:    "Int",
		RegisterCount: 4,
		Constants:     []Value{{Kind: "int", Int: 1}},
		Instructions: []Instruction{
			ABx(OpLoadK, 1, 0),
			ABC(OpAdd, 2, 0, 1),
			ABC(OpReturn, 2, 1, 0),
		},
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	m := New("abc123")
	m.Intern("hello")
	m.Intern("world")
	m.Types = append(m.Types, TypeDef{Name: "D", IsEnum: true, Variants: []string{"North", "South"}})
	m.Cells = append(m.Cells, buildCell("inc"))
	m.Tools = append(m.Tools, ToolDecl{Alias: "web", Provider: "http", Effect: "Http"})
	m.Policies = append(m.Policies, GrantPolicy{Scope: "", Tool: "web", Constraints: map[string]string{"timeout_ms": "1000"}})

	data, err := m.Serialize()
	require.NoError(t, err)

	back, err := Deserialize(data)
	require.NoError(t, err)
	assert.True(t, m.Equal(back), "deserialize(serialize(m)) must equal m")

	// Intern must stay index-stable over the loaded pool.
	assert.Equal(t, 0, back.Intern("hello"))
	assert.Equal(t, 1, back.Intern("world"))
}

func TestDeserialize_RejectsWrongVersion(t *testing.T) {
	m := New("h")
	data, err := m.Serialize()
	require.NoError(t, err)
	bad := []byte(`{"version":99}`)
	_, err = Deserialize(bad)
	assert.Error(t, err)
	_, err = Deserialize(data)
	assert.NoError(t, err)
}

func TestMerge_DeduplicatesStrings(t *testing.T) {
	a := New("h1")
	a.Intern("shared")
	a.Intern("only-a")
	b := New("h2")
	b.Intern("shared")
	b.Intern("only-b")

	out, err := Merge(a, b)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, s := range out.Strings {
		seen[s]++
	}
	for s, n := range seen {
		assert.Equal(t, 1, n, "string %q duplicated after merge", s)
	}
}

func TestMerge_CollidingCellsError(t *testing.T) {
	a := New("h1")
	a.Cells = append(a.Cells, buildCell("f"))
	b := New("h2")
	conflicting := buildCell("f")
	conflicting.Instructions = append(conflicting.Instructions, ABC(OpReturn, 0, 0, 0))
	b.Cells = append(b.Cells, conflicting)

	_, err := Merge(a, b)
	assert.Error(t, err)
}

func TestMerge_AssociativeForDisjointModules(t *testing.T) {
	mk := func(hash, cell, str string) *LirModule {
		m := New(hash)
		m.Intern(str)
		m.Cells = append(m.Cells, buildCell(cell))
		return m
	}
	a := mk("ha", "fa", "sa")
	b := mk("hb", "fb", "sb")
	c := mk("hc", "fc", "sc")

	ab, err := Merge(a, b)
	require.NoError(t, err)
	abc1, err := Merge(ab, c)
	require.NoError(t, err)

	bc, err := Merge(b, c)
	require.NoError(t, err)
	a2 := mk("ha", "fa", "sa")
	abc2, err := Merge(a2, bc)
	require.NoError(t, err)

	s1, err := abc1.Serialize()
	require.NoError(t, err)
	s2, err := abc2.Serialize()
	require.NoError(t, err)
	assert.Equal(t, string(s1), string(s2))
}

func TestCellValidate_Bounds(t *testing.T) {
	ok := buildCell("ok")
	require.NoError(t, ok.Validate())

	badReg := buildCell("badreg")
	badReg.RegisterCount = 2 // Add writes register 2, so count must be >= 3
	assert.Error(t, badReg.Validate())

	badJump := buildCell("badjump")
	badJump.Instructions = append(badJump.Instructions, SAx(OpJmp, 100))
	assert.Error(t, badJump.Validate())

	badConst := buildCell("badconst")
	badConst.Instructions[0] = ABx(OpLoadK, 1, 9)
	assert.Error(t, badConst.Validate())
}
