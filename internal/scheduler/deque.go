// Package scheduler implements Lumen's M:N work-stealing task scheduler
// and orchestration primitives (spec.md §4.9, §5). Grounded on the
// teacher's internal/orm/hooks/async_queue.go (a bounded worker pool
// draining a shared queue with retry/backoff) generalized from an async
// ORM-hook queue to a general task scheduler with per-worker deques,
// since Conduit's queue has no work-stealing or cancellation model of its
// own to adapt more directly; golang.org/x/sync's errgroup and semaphore
// (both indirect teacher deps per SPEC_FULL.md) cover graceful shutdown
// and parallel()'s bounded-concurrency guard.
package scheduler

import "sync"

// deque is a per-worker double-ended queue of runnable tasks. The owning
// worker pushes/pops its own end (LIFO, cheap locality); idle workers
// steal from the opposite end (FIFO from the stealer's perspective),
// matching spec.md §4.9: "idle workers steal from the tails of other
// deques." A plain mutex-guarded slice is simpler than a lock-free
// Chase-Lev deque and sufficient at the scale this scheduler targets.
type deque struct {
	mu    sync.Mutex
	items []*Task
}

// pushOwn is called only by the deque's own worker, appending to the head
// end it also pops from.
func (d *deque) pushOwn(t *Task) {
	d.mu.Lock()
	d.items = append([]*Task{t}, d.items...)
	d.mu.Unlock()
}

// popOwn is called only by the deque's own worker.
func (d *deque) popOwn() (*Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	t := d.items[0]
	d.items = d.items[1:]
	return t, true
}

// steal is called by any other worker, taking from the tail.
func (d *deque) steal() (*Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items)
	if n == 0 {
		return nil, false
	}
	t := d.items[n-1]
	d.items = d.items[:n-1]
	return t, true
}

func (d *deque) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
