package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/lexer"
)

func parse(t *testing.T, src string) (*ast.Program, []string) {
	t.Helper()
	toks, lexDiags := lexer.New("t.lm", src).ScanTokens()
	require.Empty(t, lexDiags, "lexer should accept the test source")
	prog, diags := New("t.lm", toks).Parse()
	var msgs []string
	for _, d := range diags {
		msgs = append(msgs, d.Message)
	}
	return prog, msgs
}

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, msgs := parse(t, src)
	require.Empty(t, msgs)
	return prog
}

func firstCell(t *testing.T, prog *ast.Program) *ast.CellDecl {
	t.Helper()
	for _, it := range prog.Items {
		if c, ok := it.(*ast.CellDecl); ok {
			return c
		}
	}
	t.Fatal("no cell in program")
	return nil
}

func TestParse_SimpleCell(t *testing.T) {
	prog := mustParse(t, "cell main() -> Int\n  return 2 + 3\nend\n")
	c := firstCell(t, prog)
	assert.Equal(t, "main", c.Name)
	require.Len(t, c.Body, 1)
	ret, ok := c.Body[0].(*ast.ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, bin.Op)
}

func TestParse_PrecedenceMulBindsTighter(t *testing.T) {
	prog := mustParse(t, "cell f() -> Int\n  return 2 + 3 * 4\nend\n")
	ret := firstCell(t, prog).Body[0].(*ast.ReturnStmt)
	bin := ret.Value.(*ast.BinaryExpr)
	require.Equal(t, ast.OpAdd, bin.Op)
	right, ok := bin.Right.(*ast.BinaryExpr)
	require.True(t, ok, "3 * 4 must parse as the right operand of +")
	assert.Equal(t, ast.OpMul, right.Op)
}

func TestParse_PowerIsRightAssociative(t *testing.T) {
	prog := mustParse(t, "cell f() -> Int\n  return 2 ** 3 ** 2\nend\n")
	ret := firstCell(t, prog).Body[0].(*ast.ReturnStmt)
	bin := ret.Value.(*ast.BinaryExpr)
	require.Equal(t, ast.OpPow, bin.Op)
	right, ok := bin.Right.(*ast.BinaryExpr)
	require.True(t, ok, "2 ** (3 ** 2), not (2 ** 3) ** 2")
	assert.Equal(t, ast.OpPow, right.Op)
}

func TestParse_OptionalTypeSugar(t *testing.T) {
	prog := mustParse(t, "cell f(x: Int?) -> Int\n  return 0\nend\n")
	c := firstCell(t, prog)
	require.Len(t, c.Params, 1)
	_, ok := c.Params[0].Type.(*ast.OptionalType)
	assert.True(t, ok, "Int? should parse as an optional type")
}

func TestParse_TopLevelStatementsWrapIntoScriptMain(t *testing.T) {
	prog := mustParse(t, "let x = 1\nlet y = x + 2\n")
	c := firstCell(t, prog)
	assert.Equal(t, ScriptMainName, c.Name)
	assert.Len(t, c.Body, 2)
}

func TestParse_MatchStmtArms(t *testing.T) {
	src := "cell label(d: D) -> String\n" +
		"  match d\n" +
		"    case D.North =>\n" +
		"      return \"n\"\n" +
		"    case D.South =>\n" +
		"      return \"s\"\n" +
		"  end\n" +
		"end\n"
	prog := mustParse(t, src)
	c := firstCell(t, prog)
	m, ok := c.Body[0].(*ast.MatchStmt)
	require.True(t, ok)
	require.Len(t, m.Arms, 2)
	v, ok := m.Arms[0].Pattern.(*ast.VariantPattern)
	require.True(t, ok)
	assert.Equal(t, "North", v.Variant)
}

func TestParse_EnumDecl(t *testing.T) {
	prog := mustParse(t, "enum D\n  North\n  South\n  East\n  West\nend\n")
	e, ok := prog.Items[0].(*ast.EnumDecl)
	require.True(t, ok)
	assert.Len(t, e.Variants, 4)
}

func TestParse_EffectAndHandler(t *testing.T) {
	src := "effect Console\n  log(m: String) -> Null\nend\n" +
		"handler Quiet for Console\n" +
		"  handle log(m)\n    resume(null)\n  end\n" +
		"end\n"
	prog := mustParse(t, src)
	require.Len(t, prog.Items, 2)
	h, ok := prog.Items[1].(*ast.HandlerDecl)
	require.True(t, ok)
	assert.Equal(t, "Console", h.Effect)
	require.Len(t, h.Cases, 1)
	assert.Equal(t, "log", h.Cases[0].Op)
}

func TestParse_ErrorRecoveryAccumulates(t *testing.T) {
	src := "enum\nend\n\ncell g() -> Int\n  return 1\nend\n"
	prog, msgs := parse(t, src)
	assert.NotEmpty(t, msgs, "malformed first cell must be reported")
	found := false
	for _, it := range prog.Items {
		if c, ok := it.(*ast.CellDecl); ok && c.Name == "g" {
			found = true
		}
	}
	assert.True(t, found, "parser must recover and parse the following cell")
}

func TestParse_ForLoopWithRange(t *testing.T) {
	prog := mustParse(t, "cell f() -> Int\n  let mut s = 0\n  for i in 0..5\n    s += i\n  end\n  return s\nend\n")
	c := firstCell(t, prog)
	require.Len(t, c.Body, 3)
	f, ok := c.Body[1].(*ast.ForStmt)
	require.True(t, ok)
	assert.Equal(t, "i", f.Name)
	_, ok = f.Iter.(*ast.RangeExpr)
	assert.True(t, ok)
}

func TestParse_EffectRowOnCell(t *testing.T) {
	prog := mustParse(t, "cell fetch() -> String / Http\n  return \"x\"\nend\n")
	c := firstCell(t, prog)
	assert.Equal(t, []string{"Http"}, c.Effects)
}
