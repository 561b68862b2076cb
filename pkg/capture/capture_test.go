package capture

import (
	"context"
	"testing"
	"time"

	"github.com/wachiwi/fishcam/pkg/msg"
)

func TestEveryRequestIsAcknowledged(t *testing.T) {
	bus := msg.NewBus(4)
	c := New(bus)
	captures := 0
	c.OnCapture = func() { captures++ }
	ctx := context.Background()

	for _, cmd := range []msg.Command{msg.CmdCapture, msg.CmdStart, msg.CmdStop} {
		c.Handle(ctx, msg.Request(msg.Orchestrator, cmd))
		comp, ok := bus.Mailbox(msg.Orchestrator).TryReceive()
		if !ok {
			t.Fatalf("%s: no completion", cmd)
		}
		if comp.Command != cmd.Completion() || comp.Sender != msg.Capture || comp.Result() != msg.ResultOK {
			t.Errorf("%s: unexpected completion %s", cmd, comp)
		}
	}
	if captures != 1 {
		t.Errorf("OnCapture ran %d times, want 1", captures)
	}
}

func TestCompletionsAndNotificationsAreDropped(t *testing.T) {
	bus := msg.NewBus(4)
	c := New(bus)
	ctx := context.Background()

	c.Handle(ctx, msg.CompletionFor(msg.Request(msg.Capture, msg.CmdStart), msg.Liveview, msg.ResultOK))
	c.Handle(ctx, msg.Notification(msg.KeyCapture, 1))
	for _, id := range msg.Modules {
		if m, ok := bus.Mailbox(id).TryReceive(); ok {
			t.Errorf("Unexpected message at %s: %s", id, m)
		}
	}
}

func TestRun(t *testing.T) {
	bus := msg.NewBus(4)
	c := New(bus)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	if err := bus.Send(ctx, msg.Capture, msg.Request(msg.Remote, msg.CmdCapture)); err != nil {
		t.Fatal(err)
	}
	comp, err := bus.Mailbox(msg.Remote).Receive(ctx, time.Second)
	if err != nil || comp.Result() != msg.ResultOK {
		t.Fatalf("Expected ok completion, got %v %v", comp, err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
