package process

import (
	"context"
	"fmt"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// Memory is the KV-store process kind. State is per-instance owned and
// reached only through these methods (spec.md §5 "Process memories (KV
// stores) are per-instance owned, accessed only by their methods"); values
// cross the store boundary as JSON so every backend stores the same
// representation.
type Memory struct {
	name  string
	store Store
}

func NewMemory(name string, store Store) *Memory {
	return &Memory{name: name, store: store}
}

func (m *Memory) Name() string { return m.name }
func (m *Memory) Kind() string { return "memory" }
func (m *Memory) Close() error { return m.store.Close() }

// Get returns the stored value for key, or Null when absent.
func (m *Memory) Get(ctx context.Context, key string) (vmvalue.Value, error) {
	doc, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return vmvalue.Null, fmt.Errorf("memory %s: get %q: %w", m.name, key, err)
	}
	if !ok {
		return vmvalue.Null, nil
	}
	v, err := vmvalue.FromJSON(doc)
	if err != nil {
		return vmvalue.Null, fmt.Errorf("memory %s: corrupt value for %q: %w", m.name, key, err)
	}
	return v, nil
}

func (m *Memory) Set(ctx context.Context, key string, v vmvalue.Value) error {
	if err := m.store.Set(ctx, key, vmvalue.ToJSON(v)); err != nil {
		return fmt.Errorf("memory %s: set %q: %w", m.name, key, err)
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := m.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("memory %s: delete %q: %w", m.name, key, err)
	}
	return nil
}

// Keys lists every stored key in sorted order.
func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory %s: keys: %w", m.name, err)
	}
	return keys, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("memory %s: clear: %w", m.name, err)
	}
	return nil
}
