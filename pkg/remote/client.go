package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wachiwi/fishcam/pkg/logger"
	"github.com/wachiwi/fishcam/pkg/mode"
	"github.com/wachiwi/fishcam/pkg/msg"
)

// Client issues requests from the Remote mailbox and waits for their
// completions. Calls are serialized so each completion has one waiter.
type Client struct {
	bus     *msg.Bus
	box     *msg.Mailbox
	log     *slog.Logger
	timeout time.Duration

	mu sync.Mutex
}

// NewClient takes over the Remote mailbox. timeout bounds each call.
func NewClient(bus *msg.Bus, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		bus:     bus,
		box:     bus.Mailbox(msg.Remote),
		log:     logger.For(msg.Remote),
		timeout: timeout,
	}
}

// Call sends req to the module to and returns the result of its completion.
// A module that does not answer in time yields ResultTimeout.
func (c *Client) Call(ctx context.Context, to msg.ModuleID, req msg.Message) (msg.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// completions of calls that timed out earlier
	for {
		stale, ok := c.box.TryReceive()
		if !ok {
			break
		}
		c.log.Debug("Dropping late message", "msg", stale.String())
	}

	req.Sender = msg.Remote
	if err := c.bus.Send(ctx, to, req); err != nil {
		return msg.ResultOf(err), fmt.Errorf("send %s to %s: %w", req.Command, to, err)
	}

	deadline := time.Now().Add(c.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return msg.ResultTimeout, fmt.Errorf("%s to %s: %w", req.Command, to, msg.ErrTimeout)
		}
		m, err := c.box.Receive(ctx, remaining)
		if errors.Is(err, msg.ErrTimeout) {
			return msg.ResultTimeout, fmt.Errorf("%s to %s: %w", req.Command, to, err)
		}
		if err != nil {
			return msg.ResultError, err
		}
		if m.Sender == to && m.Command == req.Command.Completion() {
			return m.Result(), nil
		}
		c.log.Debug("Ignoring unrelated message", "msg", m.String())
	}
}

// Inject presses a control as if it were operated by hand.
func (c *Client) Inject(ctx context.Context, control msg.InputType, magnitude int16) (msg.Result, error) {
	return c.Call(ctx, msg.Input, msg.InputRequest(msg.Remote, msg.CmdInject, control, magnitude))
}

// Trigger asks the orchestrator to run the sequence for t.
func (c *Client) Trigger(ctx context.Context, t mode.Trigger) (msg.Result, error) {
	var control msg.InputType
	switch t {
	case mode.TriggerMode:
		control = msg.KeyMode
	case mode.TriggerCapture:
		control = msg.KeyCapture
	default:
		return msg.ResultParam, fmt.Errorf("trigger %s: %w", t, msg.ErrParam)
	}
	return c.Call(ctx, msg.Orchestrator, msg.InputRequest(msg.Remote, msg.CmdInject, control, 1))
}
