package process

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// Machine is the state-machine process kind. Its config declares states
// and transitions:
//
//	initial = "draft"
//	states  = "draft,review,published"
//	on_submit  = "draft->review"
//	on_approve = "review->published"
//
// Each `on_<event>` entry names one edge; firing an event not legal from
// the current state is an error. A declared step cell, when present, runs
// on every successful transition with (event, from, to).
type Machine struct {
	name    string
	stepCell string
	runner  CellRunner

	mu          sync.Mutex
	current     string
	states      map[string]bool
	transitions map[string]edge // event -> edge
}

type edge struct{ from, to string }

func NewMachine(meta lir.ProcessMeta, runner CellRunner) (*Machine, error) {
	m := &Machine{
		name: meta.Name, stepCell: meta.Cell, runner: runner,
		states: map[string]bool{}, transitions: map[string]edge{},
	}
	for _, s := range strings.Split(meta.Config["states"], ",") {
		if s = strings.TrimSpace(s); s != "" {
			m.states[s] = true
		}
	}
	for key, val := range meta.Config {
		if !strings.HasPrefix(key, "on_") {
			continue
		}
		from, to, ok := strings.Cut(val, "->")
		if !ok {
			return nil, fmt.Errorf("machine %s: transition %s=%q is not \"from->to\"", meta.Name, key, val)
		}
		e := edge{from: strings.TrimSpace(from), to: strings.TrimSpace(to)}
		if !m.states[e.from] || !m.states[e.to] {
			return nil, fmt.Errorf("machine %s: transition %s references undeclared state", meta.Name, key)
		}
		m.transitions[strings.TrimPrefix(key, "on_")] = e
	}
	m.current = meta.Config["initial"]
	if m.current == "" || !m.states[m.current] {
		return nil, fmt.Errorf("machine %s: initial state %q is not declared", meta.Name, m.current)
	}
	return m, nil
}

func (m *Machine) Name() string { return m.name }
func (m *Machine) Kind() string { return "machine" }
func (m *Machine) Close() error { return nil }

// Current returns the machine's current state.
func (m *Machine) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Fire applies one event, moving the machine along the matching edge and
// running the step cell if one was declared.
func (m *Machine) Fire(ctx context.Context, event string) (string, error) {
	m.mu.Lock()
	e, ok := m.transitions[event]
	if !ok {
		m.mu.Unlock()
		return "", fmt.Errorf("machine %s: no transition for event %q", m.name, event)
	}
	if e.from != m.current {
		cur := m.current
		m.mu.Unlock()
		return "", fmt.Errorf("machine %s: event %q requires state %q, currently %q", m.name, event, e.from, cur)
	}
	m.current = e.to
	m.mu.Unlock()

	if m.stepCell != "" && m.runner != nil {
		args := []vmvalue.Value{vmvalue.Str(event), vmvalue.Str(e.from), vmvalue.Str(e.to)}
		if _, err := m.runner.Run(ctx, m.stepCell, args); err != nil {
			return e.to, fmt.Errorf("machine %s: step cell: %w", m.name, err)
		}
	}
	return e.to, nil
}
