package scheduler

import (
	"context"

	"github.com/lumen-lang/lumen/internal/vmvalue"
)

// Mailbox is the bounded-channel delivery mechanism cross-task
// communication uses for memory processes (spec.md §5 "cross-task
// communication is restricted to futures and actor mailboxes"). Delivery
// order is FIFO; Send blocks (observing ctx) when the mailbox is full
// rather than dropping, since spec.md never describes a drop policy.
type Mailbox struct {
	ch chan vmvalue.Value
}

func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = 64
	}
	return &Mailbox{ch: make(chan vmvalue.Value, capacity)}
}

// Send delivers msg, blocking until there is room or ctx is done.
func (m *Mailbox) Send(ctx context.Context, msg vmvalue.Value) error {
	select {
	case m.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive is a suspension point (spec.md §4.9): it parks the calling task
// until a message arrives or ctx is cancelled.
func (m *Mailbox) Receive(ctx context.Context) (vmvalue.Value, error) {
	select {
	case msg := <-m.ch:
		return msg, nil
	case <-ctx.Done():
		return vmvalue.Null, ctx.Err()
	}
}

// TryReceive is the non-blocking counterpart used by `select`-style
// polling; it never suspends.
func (m *Mailbox) TryReceive() (vmvalue.Value, bool) {
	select {
	case msg := <-m.ch:
		return msg, true
	default:
		return vmvalue.Value{}, false
	}
}
