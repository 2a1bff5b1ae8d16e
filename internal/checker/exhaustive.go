package checker

import (
	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/source"
	"github.com/lumen-lang/lumen/internal/types"
)

// checkMatchExhaustive implements spec.md §4.5's exhaustiveness rule: an
// enum-subject match needs every variant covered or a wildcard/bind arm;
// guard patterns never count toward exhaustiveness since they may reject
// the match at runtime.
func (c *Checker) checkMatchExhaustive(subjectTy types.Type, arms []ast.MatchArm, sp source.Span) {
	if subjectTy.Kind != types.KEnum {
		return
	}
	enum, ok := c.env.Enums[subjectTy.Name]
	if !ok {
		return
	}
	covered := map[string]bool{}
	for _, arm := range arms {
		if arm.Guard != nil {
			continue
		}
		collectCoveredVariants(arm.Pattern, covered)
		if isCatchAll(arm.Pattern) {
			return
		}
	}
	var missing []string
	for _, v := range enum.Variants {
		if !covered[v.Name] {
			missing = append(missing, v.Name)
		}
	}
	if len(missing) > 0 {
		c.incompleteMatch(missing, sp)
	}
}

func (c *Checker) checkMatchExprExhaustive(subjectTy types.Type, arms []ast.MatchExprArm, sp source.Span) {
	converted := make([]ast.MatchArm, len(arms))
	for i, a := range arms {
		converted[i] = ast.MatchArm{Pattern: a.Pattern, Guard: a.Guard}
	}
	c.checkMatchExhaustive(subjectTy, converted, sp)
}

func collectCoveredVariants(p ast.Pattern, covered map[string]bool) {
	switch pt := p.(type) {
	case *ast.VariantPattern:
		covered[pt.Variant] = true
	case *ast.OrPattern:
		for _, alt := range pt.Alts {
			collectCoveredVariants(alt, covered)
		}
	}
}

// isCatchAll reports whether p matches every possible value regardless of
// variant: a bare wildcard or a plain bind pattern.
func isCatchAll(p ast.Pattern) bool {
	switch p.(type) {
	case *ast.WildcardPattern, *ast.BindPattern:
		return true
	default:
		return false
	}
}

func (c *Checker) inferMatchExpr(ex *ast.MatchExpr) types.Type {
	subjectTy := c.infer(ex.Subject)
	var result types.Type
	for i, arm := range ex.Arms {
		if arm.Guard != nil {
			c.check(arm.Guard, types.Bool)
		}
		t := c.infer(arm.Value)
		if i == 0 {
			result = t
		} else {
			result = types.Union(result, t)
		}
	}
	c.checkMatchExprExhaustive(subjectTy, ex.Arms, ex.Span())
	return result
}
