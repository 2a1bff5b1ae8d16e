package resolver

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diag"
)

const globalScope = ""

// validateGrants merges every `grant` declaration into per-scope policies
// (last-writer-wins per constraint key, inheriting from the top-level scope
// outward), then checks that every `use tool` has at least one granted
// policy reachable from its scope (spec.md §4.4 "Grants").
func (r *resolver) validateGrants(prog *ast.Program) {
	for _, item := range prog.Items {
		g, ok := item.(*ast.GrantDecl)
		if !ok {
			continue
		}
		scope := g.Scope
		constraints := Policy{}
		for _, c := range g.Constraints {
			if lit, ok := c.Value.(*ast.LiteralExpr); ok {
				constraints[c.Key] = literalText(lit)
			}
		}
		for _, tool := range g.Tools {
			r.mergeGrant(scope, tool, constraints)
		}
		for _, effect := range g.Effects {
			// Effect-level grants apply to every tool bound to that effect.
			for tool, bound := range r.res.ToolEffects {
				if bound == effect {
					r.mergeGrant(scope, tool, constraints)
				}
			}
		}
	}

	for _, item := range prog.Items {
		ut, ok := item.(*ast.UseToolDecl)
		if !ok {
			continue
		}
		if !r.hasGrantInScope(ut.Name) {
			r.diagAt(diag.ErrUngrantedTool, fmt.Sprintf("tool %q is used but never granted", ut.Name), ut.Span())
		}
	}
}

func (r *resolver) mergeGrant(scope, tool string, constraints Policy) {
	if r.res.Policies[scope] == nil {
		r.res.Policies[scope] = map[string]Policy{}
	}
	existing, ok := r.res.Policies[scope][tool]
	if !ok {
		existing = Policy{}
	}
	for k, v := range constraints {
		existing[k] = v // last-writer-wins within a scope
	}
	r.res.Policies[scope][tool] = existing
}

// hasGrantInScope reports whether tool has a policy at the global scope or
// any cell/agent scope at all; call-site-specific scoping (which scope is
// "in effect" for a given call) is resolved later by the tool dispatcher
// using EffectivePolicy, which walks global -> scope.
func (r *resolver) hasGrantInScope(tool string) bool {
	if p, ok := r.res.Policies[globalScope]; ok {
		if _, ok := p[tool]; ok {
			return true
		}
	}
	for scope, tools := range r.res.Policies {
		if scope == globalScope {
			continue
		}
		if _, ok := tools[tool]; ok {
			return true
		}
	}
	return false
}

// EffectivePolicy computes the merged policy for tool as seen from scope:
// the global scope's constraints overridden key-by-key by scope's own
// grant, matching "inheritance from outer scopes" (spec.md §4.4).
func (res *Resolution) EffectivePolicy(scope, tool string) Policy {
	out := Policy{}
	if global, ok := res.Policies[globalScope]; ok {
		for k, v := range global[tool] {
			out[k] = v
		}
	}
	if scope != globalScope {
		if scoped, ok := res.Policies[scope]; ok {
			for k, v := range scoped[tool] {
				out[k] = v
			}
		}
	}
	return out
}

func literalText(lit *ast.LiteralExpr) string {
	switch v := lit.Value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
