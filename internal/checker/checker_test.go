package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/lexer"
	"github.com/lumen-lang/lumen/internal/parser"
	"github.com/lumen-lang/lumen/internal/resolver"
)

func checkSource(t *testing.T, src string) diag.List {
	t.Helper()
	toks, lexDiags := lexer.New("t.lm", src).ScanTokens()
	require.Empty(t, lexDiags)
	prog, parseDiags := parser.New("t.lm", toks).Parse()
	require.Empty(t, parseDiags)
	res := resolver.Resolve(prog, resolver.Options{File: "t.lm"})
	require.Empty(t, res.Diags.Errors(), "resolver must accept the test source")
	env := BuildEnv(prog)
	_, diags := Check(prog, env, res)
	return diags
}

func codes(diags diag.List) []string {
	var out []string
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func TestCheck_WellTypedCellPasses(t *testing.T) {
	diags := checkSource(t, "cell main() -> Int\n  return 2 + 3\nend\n")
	assert.Empty(t, diags.Errors())
}

func TestCheck_IncompleteMatchReportsMissingVariants(t *testing.T) {
	src := "enum D\n  North\n  South\n  East\n  West\nend\n" +
		"cell label(d: D) -> String\n" +
		"  match d\n" +
		"    case D.North =>\n      return \"n\"\n" +
		"    case D.South =>\n      return \"s\"\n" +
		"  end\n" +
		"end\n"
	diags := checkSource(t, src)
	require.Contains(t, codes(diags), diag.ErrIncompleteMatch)
	var msg string
	for _, d := range diags {
		if d.Code == diag.ErrIncompleteMatch {
			msg = d.Message
		}
	}
	assert.Contains(t, msg, "East")
	assert.Contains(t, msg, "West")
}

func TestCheck_WildcardArmSatisfiesExhaustiveness(t *testing.T) {
	src := "enum D\n  North\n  South\n  East\n  West\nend\n" +
		"cell label(d: D) -> String\n" +
		"  match d\n" +
		"    case D.North =>\n      return \"n\"\n" +
		"    case _ =>\n      return \"?\"\n" +
		"  end\n" +
		"end\n"
	diags := checkSource(t, src)
	assert.NotContains(t, codes(diags), diag.ErrIncompleteMatch)
}

func TestCheck_GuardedArmDoesNotCountTowardExhaustiveness(t *testing.T) {
	src := "enum D\n  North\n  South\nend\n" +
		"cell label(d: D) -> String\n" +
		"  match d\n" +
		"    case D.North =>\n      return \"n\"\n" +
		"    case D.South if true =>\n      return \"s\"\n" +
		"  end\n" +
		"end\n"
	diags := checkSource(t, src)
	assert.Contains(t, codes(diags), diag.ErrIncompleteMatch)
}

func TestCheck_ImmutableAssign(t *testing.T) {
	src := "cell f() -> Int\n  let x = 1\n  x = 2\n  return x\nend\n"
	diags := checkSource(t, src)
	assert.Contains(t, codes(diags), diag.ErrImmutableAssig)
}

func TestCheck_MutableAssignAllowed(t *testing.T) {
	src := "cell f() -> Int\n  let mut x = 1\n  x = 2\n  return x\nend\n"
	diags := checkSource(t, src)
	assert.Empty(t, diags.Errors())
}

func TestCheck_MissingReturn(t *testing.T) {
	src := "cell f() -> Int\n  let x = 1\nend\n"
	diags := checkSource(t, src)
	assert.Contains(t, codes(diags), diag.ErrMissingReturn)
}

func TestCheck_ReturnTypeMismatch(t *testing.T) {
	src := "cell f() -> Int\n  return \"nope\"\nend\n"
	diags := checkSource(t, src)
	assert.Contains(t, codes(diags), diag.ErrMismatch)
}

func TestCheck_ParamTypeFlowsToMatchSubject(t *testing.T) {
	// A bind arm is a catch-all; no exhaustiveness error even though only
	// one variant is named.
	src := "enum D\n  North\n  South\nend\n" +
		"cell f(d: D) -> Int\n" +
		"  match d\n" +
		"    case other =>\n      return 1\n" +
		"  end\n" +
		"end\n"
	diags := checkSource(t, src)
	assert.Empty(t, diags.Errors())
}
