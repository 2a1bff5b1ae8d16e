package checker

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/diag"
	"github.com/lumen-lang/lumen/internal/source"
	"github.com/lumen-lang/lumen/internal/types"
)

func loc(sp source.Span) diag.Location {
	return diag.Location{File: sp.File, Line: sp.StartLine, Column: sp.StartCol, Length: sp.Len()}
}

func (c *Checker) errAt(code, message string, sp source.Span) {
	c.diags = append(c.diags, diag.New("typecheck", code, message, loc(sp), diag.Error))
}

func (c *Checker) mismatch(expected, got types.Type, sp source.Span) {
	c.errAt(diag.ErrMismatch, fmt.Sprintf("expected %s, found %s", expected, got), sp)
}

func (c *Checker) notCallable(got types.Type, sp source.Span) {
	c.errAt(diag.ErrNotCallable, fmt.Sprintf("%s is not callable", got), sp)
}

func (c *Checker) argCount(name string, want, got int, sp source.Span) {
	c.errAt(diag.ErrArgCount, fmt.Sprintf("%s expects %d argument(s), found %d", name, want, got), sp)
}

func (c *Checker) unknownField(typeName, field string, sp source.Span) {
	c.errAt(diag.ErrUnknownField, fmt.Sprintf("%s has no field %q", typeName, field), sp)
}

func (c *Checker) undefinedType(name string, sp source.Span) {
	c.errAt(diag.ErrUndefinedType, fmt.Sprintf("undefined type %q", name), sp)
}

func (c *Checker) missingReturn(cell string, sp source.Span) {
	c.errAt(diag.ErrMissingReturn, fmt.Sprintf("cell %q does not return a value on every path", cell), sp)
}

func (c *Checker) immutableAssign(name string, sp source.Span) {
	c.errAt(diag.ErrImmutableAssig, fmt.Sprintf("cannot assign to immutable binding %q; declare it `let mut`", name), sp)
}

func (c *Checker) incompleteMatch(missing []string, sp source.Span) {
	d := diag.New("typecheck", diag.ErrIncompleteMatch,
		fmt.Sprintf("match is not exhaustive; missing variants: %v", missing), loc(sp), diag.Error)
	if fix := diag.SuggestIncompleteMatch(missing); fix != nil {
		d = d.WithFix(*fix)
	}
	c.diags = append(c.diags, d)
}

func (c *Checker) mustUseIgnored(name string, sp source.Span) {
	c.errAt(diag.ErrMustUseIgnored, fmt.Sprintf("result of @must_use cell %q is ignored", name), sp)
}
