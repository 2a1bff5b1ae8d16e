package scheduler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// Future is the scheduler-side handle a spawned Task resolves into; the
// VM-visible vmvalue.FutureData (spec.md §3 "Future(state, result)") wraps
// this handle's ID and polls/awaits it through Scheduler.Await.
type Future struct {
	ID string

	mu        sync.Mutex
	done      chan struct{}
	closed    bool
	result    vmvalue.Value
	err       error
	cancelled bool
	seq       int // completion order under @deterministic (spec.md §4.9)
}

func newFuture() *Future {
	return &Future{ID: uuid.NewString(), done: make(chan struct{})}
}

// resolve completes the future exactly once; later calls are no-ops,
// matching the one-shot completion every future has.
func (f *Future) resolve(v vmvalue.Value, err error, seq int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.result, f.err, f.seq = v, err, seq
	f.closed = true
	close(f.done)
}

// cancel marks the future cancelled if it has not already completed
// (spec.md §4.9 "Cancellation": "Uncompleted futures in race/timeout/select
// are flagged cancelled").
func (f *Future) cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.cancelled = true
	f.closed = true
	close(f.done)
}

// Done exposes the completion channel for select-style waiting.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result reads the completed future's outcome; callers must wait on Done()
// first.
func (f *Future) Result() (vmvalue.Value, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err, f.cancelled
}

// ToValue renders this Future as the VM-visible vmvalue.Value, reading
// whatever state is currently settled without blocking.
func (f *Future) ToValue() vmvalue.Value {
	select {
	case <-f.done:
	default:
		return vmvalue.NewFuture(f.ID)
	}
	v := vmvalue.NewFuture(f.ID)
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.cancelled:
		v.Future.State = vmvalue.FutureCancelled
	case f.err != nil:
		v.Future.State = vmvalue.FutureFailed
	default:
		v.Future.State = vmvalue.FutureResolved
		v.Future.Result = f.result
	}
	return v
}
