package msg

import (
	"context"
	"fmt"
	"time"
)

// Forever makes Receive wait without a timeout.
const Forever time.Duration = -1

// DefaultDepth is the mailbox capacity used by NewBus when depth <= 0.
const DefaultDepth = 16

// Bus owns one mailbox per module.
type Bus struct {
	boxes [numModules]*Mailbox
}

// Mailbox is a FIFO queue drained by exactly one component loop.
type Mailbox struct {
	id ModuleID
	ch chan Message
}

// NewBus creates a mailbox for every module.
func NewBus(depth int) *Bus {
	if depth <= 0 {
		depth = DefaultDepth
	}
	b := &Bus{}
	for _, id := range Modules {
		b.boxes[id] = &Mailbox{id: id, ch: make(chan Message, depth)}
	}
	return b
}

// Mailbox returns the mailbox owned by id.
func (b *Bus) Mailbox(id ModuleID) *Mailbox {
	if !id.Valid() {
		panic(fmt.Sprintf("msg: no mailbox for %s", id))
	}
	return b.boxes[id]
}

// Send enqueues m to the mailbox of to. It blocks only while that mailbox is
// full and gives up when ctx is done.
func (b *Bus) Send(ctx context.Context, to ModuleID, m Message) error {
	if !to.Valid() {
		return fmt.Errorf("send %s to %s: %w", m.Command, to, ErrParam)
	}
	select {
	case b.boxes[to].ch <- m:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send %s to %s: %w", m.Command, to, ctx.Err())
	}
}

// Reply sends the completion of req back to its sender.
func (b *Bus) Reply(ctx context.Context, req Message, from ModuleID, r Result) error {
	return b.Send(ctx, req.Sender, CompletionFor(req, from, r))
}

// ID returns the owner of the mailbox.
func (mb *Mailbox) ID() ModuleID { return mb.id }

// Len returns the number of queued messages.
func (mb *Mailbox) Len() int { return len(mb.ch) }

// Receive blocks until a message arrives, the timeout elapses or ctx is done.
// A timeout returns ErrTimeout; pass Forever to wait without one.
func (mb *Mailbox) Receive(ctx context.Context, timeout time.Duration) (Message, error) {
	if timeout < 0 {
		select {
		case m := <-mb.ch:
			return m, nil
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}

	// a zero timeout still drains a message that is already queued
	select {
	case m := <-mb.ch:
		return m, nil
	default:
	}
	if timeout == 0 {
		return Message{}, ErrTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-mb.ch:
		return m, nil
	case <-timer.C:
		return Message{}, ErrTimeout
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// TryReceive returns a queued message without blocking.
func (mb *Mailbox) TryReceive() (Message, bool) {
	select {
	case m := <-mb.ch:
		return m, true
	default:
		return Message{}, false
	}
}
