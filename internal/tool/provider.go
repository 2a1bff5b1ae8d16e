package tool

import "context"

// Schema describes a provider's input/output JSON schemas and the effect
// it is tagged with, for the resolver's effect-inference pass and for
// introspection (spec.md §6 "plus schema() returning input/output JSON
// schemas and an effect tag").
type Schema struct {
	Input  string
	Output string
	Effect string
}

// Provider is the narrow interface spec.md §6 specifies for the concrete
// tool bodies this module deliberately leaves external: "call(json_value)
// -> result[json_value, ToolError], plus schema()". Implementations must
// respect the ctx deadline Dispatch derives from the grant's timeout_ms.
type Provider interface {
	Name() string
	Call(ctx context.Context, input string) (string, *ToolError)
	Schema() Schema
}

// Registry maps tool/provider names to Provider implementations (spec.md
// §4.10 "The registry maps tool IDs to providers"). Read-mostly and safe
// for concurrent Call once populated (spec.md §5 "Shared resources").
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register binds a provider under its own Name(), returning the registry
// for chaining (mirrors the teacher's executor.go hook-registration style).
func (r *Registry) Register(p Provider) *Registry {
	r.providers[p.Name()] = p
	return r
}

func (r *Registry) Lookup(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
