package lower

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/checker"
	"github.com/lumen-lang/lumen/internal/lexer"
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/parser"
	"github.com/lumen-lang/lumen/internal/resolver"
)

func lowerSource(t *testing.T, src string) *lir.LirModule {
	t.Helper()
	toks, lexDiags := lexer.New("t.lm", src).ScanTokens()
	require.Empty(t, lexDiags)
	prog, parseDiags := parser.New("t.lm", toks).Parse()
	require.Empty(t, parseDiags)
	res := resolver.Resolve(prog, resolver.Options{File: "t.lm"})
	require.Empty(t, res.Diags.Errors())
	env := checker.BuildEnv(prog)
	_, checkDiags := checker.Check(prog, env, res)
	require.Empty(t, checkDiags.Errors())
	mod, lowDiags := Lower(prog, res, env, "testhash")
	require.Empty(t, lowDiags.Errors())
	return mod
}

func TestLower_EveryCellValidates(t *testing.T) {
	src := "enum D\n  North\n  South\nend\n" +
		"cell label(d: D) -> String\n" +
		"  match d\n" +
		"    case D.North =>\n      return \"n\"\n" +
		"    case _ =>\n      return \"s\"\n" +
		"  end\n" +
		"  return \"?\"\n" +
		"end\n" +
		"cell main() -> Int\n" +
		"  let mut s = 0\n" +
		"  for i in 0..5\n    s += i\n  end\n" +
		"  return s\nend\n"
	mod := lowerSource(t, src)
	require.NotEmpty(t, mod.Cells)
	for i := range mod.Cells {
		assert.NoError(t, mod.Cells[i].Validate(), "cell %s", mod.Cells[i].Name)
	}
}

func TestLower_RegisterCountCoversOperands(t *testing.T) {
	mod := lowerSource(t, "cell f(a: Int, b: Int) -> Int\n  return a + b * a - b\nend\n")
	cell := mod.CellByName("f")
	require.NotNil(t, cell)
	maxOperand := 0
	for _, ins := range cell.Instructions {
		if lir.LayoutOf(ins.Op) == lir.LayoutABC {
			for _, r := range []uint8{ins.A, ins.B, ins.C} {
				if int(r) > maxOperand {
					maxOperand = int(r)
				}
			}
		}
	}
	assert.GreaterOrEqual(t, cell.RegisterCount, maxOperand+1)
}

func TestLower_BackwardJumpIsNegative(t *testing.T) {
	mod := lowerSource(t, "cell f() -> Int\n  let mut n = 0\n  while n < 3\n    n += 1\n  end\n  return n\nend\n")
	cell := mod.CellByName("f")
	require.NotNil(t, cell)
	hasBackward := false
	for _, ins := range cell.Instructions {
		if lir.LayoutOf(ins.Op) == lir.LayoutSAx && ins.Sax < 0 {
			hasBackward = true
		}
	}
	assert.True(t, hasBackward, "a while loop must emit a negative sAx offset")
}

func TestLower_FactorialDisasmSnapshot(t *testing.T) {
	src := "cell fact(n: Int) -> Int\n" +
		"  if n <= 1\n    return 1\n  end\n" +
		"  return n * fact(n - 1)\n" +
		"end\n"
	mod := lowerSource(t, src)
	cell := mod.CellByName("fact")
	require.NotNil(t, cell)
	snaps.MatchSnapshot(t, cell.Disasm())
}

func TestLower_MatchDisasmSnapshot(t *testing.T) {
	src := "enum Color\n  Red\n  Green\nend\n" +
		"cell name(c: Color) -> String\n" +
		"  match c\n" +
		"    case Color.Red =>\n      return \"red\"\n" +
		"    case Color.Green =>\n      return \"green\"\n" +
		"  end\n" +
		"  return \"\"\n" +
		"end\n"
	mod := lowerSource(t, src)
	cell := mod.CellByName("name")
	require.NotNil(t, cell)
	snaps.MatchSnapshot(t, cell.Disasm())
}

func TestLower_GrantsBecomePolicies(t *testing.T) {
	src := "use tool web from \"http\"\n" +
		"grant web\n  timeout_ms: 1000\nend\n" +
		"cell main() -> Int\n  return 1\nend\n"
	mod := lowerSource(t, src)
	require.NotEmpty(t, mod.Tools)
	assert.Equal(t, "web", mod.Tools[0].Alias)
	require.NotEmpty(t, mod.Policies)
	found := false
	for _, p := range mod.Policies {
		if p.Tool == "web" && p.Constraints["timeout_ms"] == "1000" {
			found = true
		}
	}
	assert.True(t, found)
}
