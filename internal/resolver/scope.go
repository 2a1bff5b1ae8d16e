package resolver

// scope is one lexical block on the pass-2 scope stack: a cell body, an
// if/while/for/match/handle block, or a lambda body. isFnBoundary marks the
// scopes that begin a new closure so lookups crossing it classify as
// upvalue captures rather than locals (spec.md §4.4 "parameter, upvalue,
// top-level, or import").
type scope struct {
	parent       *scope
	vars         map[string]*Binding
	isFnBoundary bool
}

func newScope(parent *scope, isFnBoundary bool) *scope {
	return &scope{parent: parent, vars: map[string]*Binding{}, isFnBoundary: isFnBoundary}
}

func (s *scope) define(name string, b *Binding) {
	s.vars[name] = b
}

// lookup walks outward from s, reporting the binding and whether resolving
// it crossed at least one function boundary (meaning it must be captured as
// an upvalue rather than read as a plain local).
func (s *scope) lookup(name string) (*Binding, bool) {
	crossed := false
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.vars[name]; ok {
			if crossed && (b.Kind == BindLet || b.Kind == BindParam) {
				up := *b
				up.Kind = BindUpvalue
				return &up, true
			}
			return b, true
		}
		if cur.isFnBoundary {
			crossed = true
		}
	}
	return nil, false
}

func (r *resolver) pushScope(isFnBoundary bool) {
	r.cur = newScope(r.cur, isFnBoundary)
}

func (r *resolver) popScope() {
	r.cur = r.cur.parent
}
