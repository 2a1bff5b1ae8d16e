// Package trace records and serves tool-dispatch trace events (spec.md
// §4.10 step 4: "Records a trace event: tool name, input, output,
// duration, provider identifier"). Grounded on the teacher's
// internal/orm/hooks/context.go (a per-call context object accumulating
// timing and outcome for later inspection) plus chi's minimal router
// idiom from cmd/conduit/run.go's dev-server wiring, generalized from
// serving a generated REST app to serving a live introspection endpoint.
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded ToolCall.
type Event struct {
	ID       string    `json:"id"`
	Tool     string    `json:"tool"`
	Provider string    `json:"provider"`
	Input    string    `json:"input"`
	Output   string    `json:"output,omitempty"`
	Err      string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Duration time.Duration `json:"duration_ns"`
}

// Sink collects trace events for one VM instance. Per-VM-instance, not
// global (spec.md §9 "the tool registry, scheduler, and trace sink are
// per-VM-instance").
type Sink struct {
	mu     sync.Mutex
	events []Event
	cap    int
}

// NewSink creates a sink retaining at most capacity events (0 means
// unbounded), evicting the oldest when full.
func NewSink(capacity int) *Sink {
	return &Sink{cap: capacity}
}

// Record appends an event, generating its ID via google/uuid (the same
// dependency SPEC_FULL.md commits future/task IDs to).
func (s *Sink) Record(tool, provider, input, output string, err error, started time.Time, dur time.Duration) Event {
	ev := Event{
		ID:       uuid.NewString(),
		Tool:     tool,
		Provider: provider,
		Input:    input,
		Output:   output,
		Started:  started,
		Duration: dur,
	}
	if err != nil {
		ev.Err = err.Error()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if s.cap > 0 && len(s.events) > s.cap {
		s.events = s.events[len(s.events)-s.cap:]
	}
	return ev
}

// Events returns a snapshot of recorded events, most recent last.
func (s *Sink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByID finds a recorded event by its TraceRef ID.
func (s *Sink) ByID(id string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.ID == id {
			return ev, true
		}
	}
	return Event{}, false
}
