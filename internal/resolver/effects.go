package resolver

import (
	"fmt"
	"sort"

	"github.com/lumen-lang/lumen/internal/ast"
	"github.com/lumen-lang/lumen/internal/diag"
)

// inferEffects computes, for every cell, the union of effects over every
// called cell, perform expression, and tool call, iterating to a fixpoint
// since call graphs may be mutually recursive (spec.md §4.4 "Effect
// inference"). Declared rows are validated against the inferred set under
// @strict; undeclared extras are reported with the causal chain from call
// site to callee effect.
func (r *resolver) inferEffects() {
	computed := map[string]map[string]bool{}
	for name, direct := range r.directEffects {
		computed[name] = cloneSet(direct)
	}

	for changed := true; changed; {
		changed = false
		for name, callees := range r.callGraph {
			for callee := range callees {
				for eff := range computed[callee] {
					if !computed[name][eff] {
						computed[name][eff] = true
						changed = true
					}
				}
			}
		}
	}

	for name, set := range computed {
		row := sortedKeys(set)
		r.res.CellEffects[name] = row
	}

	if !r.opts.Strict {
		return
	}
	for name, declared := range r.cellDeclared {
		if !declared {
			continue
		}
		sym, ok := r.table.Lookup(name)
		if !ok {
			continue
		}
		c, ok := sym.Decl.(*ast.CellDecl)
		if !ok {
			continue
		}
		declaredSet := map[string]bool{}
		for _, e := range c.Effects {
			declaredSet[e] = true
		}
		for eff := range computed[name] {
			if !declaredSet[eff] {
				chain := r.causalChain(name, eff)
				r.diagAt(diag.ErrUndeclaredEffect,
					fmt.Sprintf("cell %q performs undeclared effect %q (via %s)", name, eff, chain),
					c.Span())
			}
		}
	}
}

// causalChain renders a short "cell -> callee -> effect" trail explaining
// why an effect was inferred, by a shallow BFS over the call graph looking
// for the first path that reaches a direct producer of eff.
func (r *resolver) causalChain(start, eff string) string {
	type frame struct {
		name string
		path []string
	}
	visited := map[string]bool{start: true}
	queue := []frame{{start, []string{start}}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if r.directEffects[f.name][eff] {
			return joinArrow(f.path)
		}
		for callee := range r.callGraph[f.name] {
			if visited[callee] {
				continue
			}
			visited[callee] = true
			queue = append(queue, frame{callee, append(append([]string{}, f.path...), callee)})
		}
	}
	return start
}

func joinArrow(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += " -> " + p
	}
	return out
}

func cloneSet(s map[string]bool) map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func sortedKeys(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
