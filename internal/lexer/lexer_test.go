package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Kind)
	}
	return out
}

func TestScanTokens_SimpleCell(t *testing.T) {
	src := "cell main() -> Int\n  return 2 + 3\nend\n"
	l := New("t.lm", src)
	toks, diags := l.ScanTokens()
	require.Empty(t, diags)

	assert.Equal(t, KW_CELL, toks[0].Kind)
	assert.Equal(t, IDENT, toks[1].Kind)
	assert.Contains(t, kinds(toks), INDENT)
	assert.Contains(t, kinds(toks), DEDENT)
	assert.Equal(t, EOF, toks[len(toks)-1].Kind)
}

func TestScanTokens_IndentDedentBalance(t *testing.T) {
	src := "cell f()\n  if true\n    return 1\n  return 2\nend\n"
	l := New("t.lm", src)
	toks, diags := l.ScanTokens()
	require.Empty(t, diags)

	indents, dedents := 0, 0
	for _, k := range kinds(toks) {
		if k == INDENT {
			indents++
		}
		if k == DEDENT {
			dedents++
		}
	}
	assert.Equal(t, indents, dedents)
}

func TestScanTokens_FloorDivisionNotComment(t *testing.T) {
	l := New("t.lm", "let x = 10 // 3\n")
	toks, diags := l.ScanTokens()
	require.Empty(t, diags)
	assert.Contains(t, kinds(toks), SLASHSLASH)
}

func TestScanTokens_HashIsComment(t *testing.T) {
	l := New("t.lm", "let x = 1 # trailing comment\n")
	toks, diags := l.ScanTokens()
	require.Empty(t, diags)
	for _, tok := range toks {
		assert.NotEqual(t, COMMENT, tok.Kind)
	}
}

func TestScanTokens_NumberForms(t *testing.T) {
	l := New("t.lm", "0x1F 0b101 0o17 1_000 3.14 2e10\n")
	toks, _ := l.ScanTokens()
	var lits []Kind
	for _, tok := range toks {
		switch tok.Kind {
		case INT_LIT, FLOAT_LIT, BIGINT_LIT:
			lits = append(lits, tok.Kind)
		}
	}
	require.Len(t, lits, 6)
	assert.Equal(t, FLOAT_LIT, lits[4])
	assert.Equal(t, FLOAT_LIT, lits[5])
}

func TestScanTokens_BigIntUpgrade(t *testing.T) {
	l := New("t.lm", "99999999999999999999\n")
	toks, _ := l.ScanTokens()
	require.Equal(t, BIGINT_LIT, toks[0].Kind)
}

func TestScanTokens_StringInterpolation(t *testing.T) {
	l := New("t.lm", `"hello {name}!"` + "\n")
	toks, diags := l.ScanTokens()
	require.Empty(t, diags)
	require.Equal(t, STRING_LIT, toks[0].Kind)
	require.NotEmpty(t, toks[0].Parts)
	assert.Equal(t, IDENT, toks[0].Parts[0].Kind)
}

func TestScanTokens_UnterminatedString(t *testing.T) {
	l := New("t.lm", `"unterminated`+"\n")
	_, diags := l.ScanTokens()
	require.NotEmpty(t, diags)
	assert.Equal(t, "E001", diags[0].Code)
}

func TestScanTokens_BracketsSuppressIndentation(t *testing.T) {
	src := "let x = [\n  1,\n  2,\n]\n"
	l := New("t.lm", src)
	toks, diags := l.ScanTokens()
	require.Empty(t, diags)
	for _, k := range kinds(toks) {
		assert.NotEqual(t, INDENT, k)
		assert.NotEqual(t, DEDENT, k)
	}
}

func TestScanTokens_PrecedenceOperators(t *testing.T) {
	l := New("t.lm", "a ?? b |> c ~> d ++ e .. f ..= g\n")
	toks, diags := l.ScanTokens()
	require.Empty(t, diags)
	want := []Kind{IDENT, QUESTION_QUESTION, IDENT, PIPE_GT, IDENT, TILDE_GT, IDENT, PLUSPLUS, IDENT, DOTDOT, IDENT, DOTDOTEQ, IDENT, NEWLINE, EOF}
	assert.Equal(t, want, kinds(toks))
}
