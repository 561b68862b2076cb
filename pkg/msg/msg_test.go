package msg

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCompletionBit(t *testing.T) {
	for _, cmd := range []Command{CmdStart, CmdStop, CmdCapture, CmdRegister, CmdUnregister, CmdInject} {
		comp := cmd.Completion()
		if !comp.IsCompletion() {
			t.Errorf("%s: completion bit not set", cmd)
		}
		if cmd.IsCompletion() {
			t.Errorf("%s: request reported as completion", cmd)
		}
		if comp.Base() != cmd {
			t.Errorf("%s: base of completion is %s", cmd, comp.Base())
		}
	}
}

func TestCompletionFor(t *testing.T) {
	req := Request(Orchestrator, CmdStart)
	comp := CompletionFor(req, Liveview, ResultState)

	if comp.Command != CmdStart.Completion() {
		t.Errorf("Expected start completion, got %s", comp.Command)
	}
	if comp.Sender != Liveview {
		t.Errorf("Expected sender liveview, got %s", comp.Sender)
	}
	if comp.Result() != ResultState {
		t.Errorf("Expected state error, got %s", comp.Result())
	}
	if comp.NeedsCompletion() {
		t.Error("A completion must never be answered")
	}
	if Notification(KeyMode, 1).NeedsCompletion() {
		t.Error("Notifications are one-way")
	}
	if !req.NeedsCompletion() {
		t.Error("A request needs a completion")
	}
}

func TestResultRoundTrip(t *testing.T) {
	cases := []struct {
		err  error
		want Result
	}{
		{nil, ResultOK},
		{ErrIgnored, ResultDoNothing},
		{fmt.Errorf("stop: %w", ErrState), ResultState},
		{fmt.Errorf("open IMG000.JPG: %w", ErrFile), ResultFile},
		{ErrNoCapacity, ResultNoCapacity},
		{errors.New("boom"), ResultError},
	}
	for _, c := range cases {
		got := ResultOf(c.err)
		if got != c.want {
			t.Errorf("ResultOf(%v) = %s, want %s", c.err, got, c.want)
		}
		if c.want != ResultError && ResultOf(got.Err()) != c.want {
			t.Errorf("%s does not survive Err()", c.want)
		}
	}

	if ResultDoNothing.Failed() {
		t.Error("DoNothing must not count as failure")
	}
	if !ResultState.Failed() {
		t.Error("State error must count as failure")
	}
}

func TestMailboxFIFOAndTimeout(t *testing.T) {
	bus := NewBus(4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m := InputRequest(Liveview, CmdRegister, InputType(i), 0)
		if err := bus.Send(ctx, Input, m); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	box := bus.Mailbox(Input)
	for i := 0; i < 3; i++ {
		m, err := box.Receive(ctx, Forever)
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if m.Input.Type != InputType(i) {
			t.Errorf("Expected FIFO order, got %s at %d", m.Input.Type, i)
		}
	}

	start := time.Now()
	_, err := box.Receive(ctx, 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected timeout, got %v", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Error("Receive returned before the timeout elapsed")
	}
}

func TestSendHonoursContext(t *testing.T) {
	bus := NewBus(1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := bus.Send(ctx, Capture, Request(Orchestrator, CmdCapture)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	cancel()
	if err := bus.Send(ctx, Capture, Request(Orchestrator, CmdCapture)); err == nil {
		t.Fatal("Expected send to a full mailbox to fail after cancel")
	}
	if err := bus.Send(context.Background(), None, Message{}); !errors.Is(err, ErrParam) {
		t.Errorf("Expected param error for invalid destination, got %v", err)
	}
}

func TestParseInputType(t *testing.T) {
	for typ := InputType(0); typ < NumInputTypes; typ++ {
		got, err := ParseInputType(typ.String())
		if err != nil || got != typ {
			t.Errorf("ParseInputType(%q) = %v, %v", typ.String(), got, err)
		}
	}
	if _, err := ParseInputType("shutter"); !errors.Is(err, ErrParam) {
		t.Errorf("Expected param error, got %v", err)
	}
}
