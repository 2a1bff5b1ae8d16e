package scheduler

import (
	"context"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// Fn is the body a Task runs: a suspension point is only entered when Fn
// itself calls back into the scheduler (Await/channel wait/sleep), never
// implicitly (spec.md §4.9 "Suspension points").
type Fn func(ctx context.Context) (vmvalue.Value, error)

// Task is a lightweight continuation-bearing unit of work carrying its own
// register frame (spec.md §4.9). The VM supplies Fn as a closure over one
// call frame; Task itself stays VM-agnostic so this package has no
// dependency on internal/vm.
type Task struct {
	ID     string
	Fn     Fn
	Future *Future

	cancel context.CancelFunc
}

// Cancelled reports whether this task's context has been cancelled,
// checked by the VM at each suspension point so deferred blocks run before
// the task terminates with Cancelled (spec.md §5 "Cancellation").
func (t *Task) Cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}
