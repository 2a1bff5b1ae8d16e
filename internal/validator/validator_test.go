package validator

import (
	"testing"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/lexer"
	"github.com/lumen-lang/lumen/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	l := lexer.New("t.lm", src)
	toks, diags := l.ScanTokens()
	require.Empty(t, diags)
	prog, pdiags := parser.New("t.lm", toks).Parse()
	require.Empty(t, pdiags)
	return prog
}

func TestValidate_ArithmeticWhereClausePasses(t *testing.T) {
	src := "cell withdraw(amount: Int) -> Int where positive(amount)\n  return amount\nend\n"
	diags := Validate(parse(t, src))
	assert.Empty(t, diags)
}

func TestValidate_FieldWhereClausePasses(t *testing.T) {
	src := "record Account\n  balance: Int where positive(balance)\nend\n"
	diags := Validate(parse(t, src))
	assert.Empty(t, diags)
}

func TestValidate_CallToUnknownCellRejected(t *testing.T) {
	src := "cell withdraw(amount: Int) -> Int where allowed(lookupLimit(amount))\n  return amount\nend\n"
	diags := Validate(parse(t, src))
	require.NotEmpty(t, diags)
	assert.Equal(t, "E401", diags[0].Code)
}

func TestValidate_FreeIdentifierRejected(t *testing.T) {
	src := "cell withdraw(amount: Int) -> Int where positive(globalLimit)\n  return amount\nend\n"
	diags := Validate(parse(t, src))
	require.NotEmpty(t, diags)
	assert.Equal(t, "E402", diags[0].Code)
}

func TestValidate_AwaitInWhereClauseRejected(t *testing.T) {
	src := "cell f(x: Int) -> Int where ok(await x)\n  return x\nend\n"
	diags := Validate(parse(t, src))
	require.NotEmpty(t, diags)
	assert.Equal(t, "E401", diags[0].Code)
}
