package scheduler

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// Scheduler is the M:N work-stealing scheduler spec.md §4.9 specifies: N
// worker goroutines, each with its own deque; idle workers steal from
// others' tails. Under @deterministic, Spawn instead enqueues into a
// single FIFO queue drained by one worker, so completion order is a
// deterministic function of spawn order (spec.md §4.9 "Ordering").
type Scheduler struct {
	workers []*deque
	log     *zap.Logger

	deterministic bool
	fifo          chan *Task
	fifoOnce      sync.Once

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	seq int64 // completion counter for deterministic ordering
}

// Option configures a new Scheduler.
type Option func(*Scheduler)

func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = make([]*deque, n)
			for i := range s.workers {
				s.workers[i] = &deque{}
			}
		}
	}
}

func WithDeterministic(det bool) Option {
	return func(s *Scheduler) { s.deterministic = det }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// New builds a Scheduler and starts its worker pool, bound to ctx: calling
// Shutdown (or cancelling ctx) stops every worker once its current task
// returns.
func New(ctx context.Context, opts ...Option) *Scheduler {
	s := &Scheduler{log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	if s.workers == nil {
		n := runtime.GOMAXPROCS(0)
		if n < 1 {
			n = 1
		}
		s.workers = make([]*deque, n)
		for i := range s.workers {
			s.workers[i] = &deque{}
		}
	}
	if s.deterministic {
		s.fifo = make(chan *Task, 4096)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	s.ctx, s.cancel, s.group = gctx, cancel, g

	if s.deterministic {
		g.Go(func() error { s.runDeterministic(gctx); return nil })
	} else {
		for i := range s.workers {
			i := i
			g.Go(func() error { s.runWorker(gctx, i); return nil })
		}
	}
	return s
}

// Shutdown stops accepting new work and waits for in-flight tasks to
// observe cancellation (spec.md §5 "Cancellation": observed at the task's
// next suspension point).
func (s *Scheduler) Shutdown() {
	s.cancel()
	if s.deterministic {
		s.fifoOnce.Do(func() { close(s.fifo) })
	}
	_ = s.group.Wait()
}

// Spawn enqueues fn as a new task and returns its Future immediately
// (spec.md §4.9's model: "a lightweight continuation-bearing unit carrying
// its own register frame"). Without @deterministic it lands on a
// randomly chosen worker's own deque, to be picked up by that worker or
// stolen by an idle one; under @deterministic it joins the single FIFO
// queue so completion order matches spawn order.
func (s *Scheduler) Spawn(fn Fn) *Future {
	fut := newFuture()
	t := &Task{ID: fut.ID, Fn: fn, Future: fut}

	if s.deterministic {
		select {
		case s.fifo <- t:
		case <-s.ctx.Done():
			fut.cancel()
		}
		return fut
	}

	w := s.workers[rand.Intn(len(s.workers))]
	w.pushOwn(t)
	return fut
}

func (s *Scheduler) runWorker(ctx context.Context, idx int) {
	own := s.workers[idx]
	idle := time.Millisecond
	for {
		if ctx.Err() != nil {
			return
		}
		t, ok := own.popOwn()
		if !ok {
			t, ok = s.stealFrom(idx)
		}
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idle):
			}
			continue
		}
		s.execute(ctx, t)
	}
}

func (s *Scheduler) stealFrom(skip int) (*Task, bool) {
	n := len(s.workers)
	start := rand.Intn(n)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if idx == skip {
			continue
		}
		if t, ok := s.workers[idx].steal(); ok {
			return t, true
		}
	}
	return nil, false
}

func (s *Scheduler) runDeterministic(ctx context.Context) {
	for t := range s.fifo {
		s.execute(ctx, t)
	}
}

func (s *Scheduler) execute(ctx context.Context, t *Task) {
	defer func() {
		if r := recover(); r != nil {
			t.Future.resolve(vmvalue.Null, panicErr(r), int(atomic.AddInt64(&s.seq, 1)))
		}
	}()
	v, err := t.Fn(ctx)
	t.Future.resolve(v, err, int(atomic.AddInt64(&s.seq, 1)))
}

type panicValue struct{ v any }

func (p panicValue) Error() string { return "scheduler: task panicked" }

func panicErr(r any) error { return panicValue{v: r} }
