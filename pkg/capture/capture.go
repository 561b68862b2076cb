// Package capture acknowledges capture requests from the mode orchestrator.
// The liveview controller owns the sensor, so there is nothing left to do
// here beyond answering.
package capture

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wachiwi/fishcam/pkg/logger"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/telemetry"
)

// Controller is the capture controller. It keeps no state between requests.
type Controller struct {
	bus *msg.Bus
	box *msg.Mailbox
	log *slog.Logger

	// OnCapture, if set, runs before a capture request is answered.
	OnCapture func()
}

// New creates a capture controller bound to the Capture mailbox.
func New(bus *msg.Bus) *Controller {
	return &Controller{
		bus: bus,
		box: bus.Mailbox(msg.Capture),
		log: logger.For(msg.Capture),
	}
}

// Run serves the mailbox until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	for {
		m, err := c.box.Receive(ctx, msg.Forever)
		if err != nil {
			return err
		}
		c.Handle(ctx, m)
	}
}

// Handle answers every request with success. Completions and notifications
// need no answer and are dropped.
func (c *Controller) Handle(ctx context.Context, m msg.Message) {
	if !m.NeedsCompletion() {
		c.log.Debug("Dropping message", "msg", m.String())
		return
	}
	if m.Command == msg.CmdCapture {
		c.log.Info("Capture requested", "from", m.Sender.String())
		if c.OnCapture != nil {
			c.OnCapture()
		}
	} else {
		c.log.Debug("Acknowledging request", "msg", m.String())
	}
	telemetry.CaptureRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", m.Command.String()),
	))
	if err := c.bus.Reply(ctx, m, msg.Capture, msg.ResultOK); err != nil {
		c.log.Error("Failed to send completion", "to", m.Sender.String(), "error", err)
	}
}
