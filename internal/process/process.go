// Package process implements the runtime objects behind Lumen's process
// declarations (spec.md GLOSSARY "Process"): memory (KV store), machine
// (state machine), pipeline (chained stages), orchestration (coordinator),
// plus guardrail/eval/pattern. A compiled module carries one
// lir.ProcessMeta per declaration; Instantiate turns each into its runtime
// object, with backends chosen from lumen.toml. Grounded on the teacher's
// internal/orm store layering (one interface, several database-backed
// implementations selected by config) repurposed from Conduit's
// resource persistence to Lumen's process memories.
package process

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// CellRunner invokes a compiled cell by name; the VM implements it. The
// indirection keeps this package free of a vm import the same way
// intrinsics.Caller does for builtins.
type CellRunner interface {
	Run(ctx context.Context, cellName string, args []vmvalue.Value) (vmvalue.Value, error)
}

// Instance is any instantiated process.
type Instance interface {
	Name() string
	Kind() string
	Close() error
}

// Deps carries the collaborators Instantiate wires into each process kind.
type Deps struct {
	Runner CellRunner
	Log    *zap.Logger

	// OpenStore builds the memory-process backend for one declaration's
	// config; nil falls back to the in-memory store. The CLI supplies a
	// config-driven opener (sqlite/postgres/redis per lumen.toml).
	OpenStore func(meta lir.ProcessMeta) (Store, error)
}

// Registry holds every instantiated process for one running program,
// per-VM-instance rather than global (spec.md §9).
type Registry struct {
	byName map[string]Instance
}

// Instantiate builds runtime objects for every process the module
// declares.
func Instantiate(metas []lir.ProcessMeta, deps Deps) (*Registry, error) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	r := &Registry{byName: map[string]Instance{}}
	for _, meta := range metas {
		inst, err := newInstance(meta, deps)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("process %s: %w", meta.Name, err)
		}
		r.byName[meta.Name] = inst
	}
	return r, nil
}

func newInstance(meta lir.ProcessMeta, deps Deps) (Instance, error) {
	switch meta.Kind {
	case "memory":
		store := Store(nil)
		if deps.OpenStore != nil {
			s, err := deps.OpenStore(meta)
			if err != nil {
				return nil, err
			}
			store = s
		}
		if store == nil {
			store = NewMemStore()
		}
		return NewMemory(meta.Name, store), nil
	case "machine":
		return NewMachine(meta, deps.Runner)
	case "pipeline":
		return NewPipeline(meta, deps.Runner), nil
	case "orchestration":
		return NewOrchestration(meta, deps.Runner), nil
	case "guardrail":
		return NewGuardrail(meta, deps.Runner), nil
	case "eval":
		return NewEval(meta, deps.Runner), nil
	case "pattern":
		return NewPattern(meta), nil
	default:
		return nil, fmt.Errorf("unknown process kind %q", meta.Kind)
	}
}

// Lookup finds an instantiated process by declaration name.
func (r *Registry) Lookup(name string) (Instance, bool) {
	inst, ok := r.byName[name]
	return inst, ok
}

// Memories returns every memory-kind instance, for tool-provider
// registration.
func (r *Registry) Memories() []*Memory {
	var out []*Memory
	for _, inst := range r.byName {
		if m, ok := inst.(*Memory); ok {
			out = append(out, m)
		}
	}
	return out
}

// Close shuts every instance down, returning the first error.
func (r *Registry) Close() error {
	var first error
	for _, inst := range r.byName {
		if err := inst.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
