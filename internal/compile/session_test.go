package compile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/lir"
)

func TestCompileSource_SimpleCell(t *testing.T) {
	s := NewSession(Options{})
	unit, diags := s.CompileSource("t.lm", "cell main() -> Int\n  return 2 + 3\nend\n")
	require.NotNil(t, unit, "diags: %v", diags)
	assert.Empty(t, diags.Errors())
	assert.NotNil(t, unit.Module.CellByName("main"))
	assert.NotEmpty(t, unit.Module.DocHash)
}

func TestCompileSource_EmptyProgramGetsSyntheticMain(t *testing.T) {
	s := NewSession(Options{})
	unit, diags := s.CompileSource("t.lm", "")
	require.NotNil(t, unit, "diags: %v", diags)
	assert.Empty(t, diags.Errors())

	entry, ok := EntryCell(unit.Module)
	require.True(t, ok)
	cell := unit.Module.CellByName(entry)
	require.NotNil(t, cell)
	require.NotEmpty(t, cell.Instructions)
	assert.Equal(t, lir.OpReturn, cell.Instructions[len(cell.Instructions)-1].Op)
}

func TestCompileSource_TypeErrorYieldsNoModule(t *testing.T) {
	s := NewSession(Options{})
	unit, diags := s.CompileSource("t.lm", "cell main() -> Int\n  return \"nope\"\nend\n")
	assert.Nil(t, unit)
	assert.True(t, diags.HasErrors())
}

func TestCompileMarkdown_ExtractsFencesAndDirectives(t *testing.T) {
	doc := "# Demo\n" +
		"@deterministic true\n" +
		"@mystery 42\n" +
		"```lumen\n" +
		"cell main() -> Int\n  return 1\nend\n" +
		"```\n"
	s := NewSession(Options{})
	unit, diags := s.CompileSource("demo.lm.md", doc)
	require.NotNil(t, unit, "diags: %v", diags)
	assert.Empty(t, diags.Errors())
	assert.True(t, unit.Deterministic)

	warned := false
	for _, d := range diags.Warnings() {
		if d.Code == diag.WarnUnknownDirective {
			warned = true
		}
	}
	assert.True(t, warned, "@mystery must produce an unknown-directive warning")
}

func TestCompileFile_ImportsMergeAndMemoize(t *testing.T) {
	dir := t.TempDir()
	libSrc := "cell helper(n: Int) -> Int\n  return n * 2\nend\n"
	mainSrc := "import lib: helper\n" +
		"cell main() -> Int\n  return helper(21)\nend\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.lm"), []byte(libSrc), 0o644))
	mainPath := filepath.Join(dir, "main.lm")
	require.NoError(t, os.WriteFile(mainPath, []byte(mainSrc), 0o644))

	s := NewSession(Options{PackageRoot: dir})
	unit, diags := s.CompileFile(mainPath)
	require.NotNil(t, unit, "diags: %v", diags)
	assert.Empty(t, diags.Errors())
	assert.NotNil(t, unit.Module.CellByName("main"))
	assert.NotNil(t, unit.Module.CellByName("helper"), "imported module's cells must merge in")
}

func TestCompileFile_ImportCycleReported(t *testing.T) {
	dir := t.TempDir()
	aSrc := "import b: g\ncell f() -> Int\n  return 1\nend\n"
	bSrc := "import a: f\ncell g() -> Int\n  return 2\nend\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lm"), []byte(aSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lm"), []byte(bSrc), 0o644))

	s := NewSession(Options{PackageRoot: dir})
	unit, diags := s.CompileFile(filepath.Join(dir, "a.lm"))
	assert.Nil(t, unit)
	require.True(t, diags.HasErrors())
	found := false
	for _, d := range diags.Errors() {
		if d.Code == diag.ErrCyclicImport || d.Code == diag.ErrImportFailed {
			found = true
		}
	}
	if !found {
		for _, d := range diags.Errors() {
			assert.Contains(t, d.Message, "circular import")
		}
	}
}

func TestCompileFile_MissingModuleReported(t *testing.T) {
	dir := t.TempDir()
	src := "import nowhere: thing\ncell main() -> Int\n  return 1\nend\n"
	p := filepath.Join(dir, "main.lm")
	require.NoError(t, os.WriteFile(p, []byte(src), 0o644))

	s := NewSession(Options{PackageRoot: dir})
	unit, diags := s.CompileFile(p)
	assert.Nil(t, unit)
	assert.True(t, diags.HasErrors())
}

func TestDocHash_Deterministic(t *testing.T) {
	assert.Equal(t, DocHash("abc"), DocHash("abc"))
	assert.NotEqual(t, DocHash("abc"), DocHash("abd"))
	assert.Len(t, DocHash(""), 64)
}

func TestSerializeCompiledModuleRoundTrips(t *testing.T) {
	s := NewSession(Options{})
	unit, diags := s.CompileSource("t.lm", "cell main() -> Int\n  return 7\nend\n")
	require.NotNil(t, unit, "diags: %v", diags)

	data, err := unit.Module.Serialize()
	require.NoError(t, err)
	back, err := lir.Deserialize(data)
	require.NoError(t, err)
	assert.True(t, unit.Module.Equal(back))
}
