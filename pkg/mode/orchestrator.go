// Package mode is the top-level state machine. A trigger selects a fixed
// action sequence which is executed one step per completion; at most one
// sequence is in flight at a time.
package mode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wachiwi/fishcam/pkg/logger"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/telemetry"
)

// Outcome is how a sequence ended.
type Outcome int

const (
	Completed Outcome = iota
	Aborted
)

func (o Outcome) String() string {
	if o == Aborted {
		return "aborted"
	}
	return "completed"
}

// sequence is the cursor into the action table being executed.
type sequence struct {
	id      uuid.UUID
	trigger Trigger
	actions []Action
	cursor  int

	// awaited completion
	target msg.ModuleID
	cmd    msg.Command

	ctx  context.Context
	span trace.Span
}

// Orchestrator is the Mode Orchestrator.
type Orchestrator struct {
	bus *msg.Bus
	box *msg.Mailbox
	log *slog.Logger

	mode Mode
	seq  *sequence

	// OnFinish, if set, is called after every sequence ends.
	OnFinish func(t Trigger, o Outcome, m Mode)
}

// New creates an orchestrator in Boot mode bound to the Orchestrator mailbox.
func New(bus *msg.Bus) *Orchestrator {
	return &Orchestrator{
		bus:  bus,
		box:  bus.Mailbox(msg.Orchestrator),
		log:  logger.For(msg.Orchestrator),
		mode: Boot,
	}
}

// Mode returns the current mode.
func (o *Orchestrator) Mode() Mode { return o.mode }

// InFlight reports whether a sequence is being executed.
func (o *Orchestrator) InFlight() bool { return o.seq != nil }

// Start registers for the mode button and runs the boot sequence.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.bus.Send(ctx, msg.Input, msg.InputRequest(msg.Orchestrator, msg.CmdRegister, msg.KeyMode, 0)); err != nil {
		return fmt.Errorf("failed to register mode key: %w", err)
	}
	if r := o.Trigger(ctx, TriggerBoot); r.Failed() {
		return fmt.Errorf("boot sequence: %w", r.Err())
	}
	return nil
}

// Run starts the orchestrator and serves its mailbox until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Start(ctx); err != nil {
		return err
	}
	for {
		m, err := o.box.Receive(ctx, msg.Forever)
		if err != nil {
			o.abortOnShutdown()
			return err
		}
		o.Handle(ctx, m)
	}
}

// Handle processes one message.
func (o *Orchestrator) Handle(ctx context.Context, m msg.Message) {
	switch {
	case m.IsCompletion():
		o.onCompletion(m)

	case m.Command == msg.CmdNotifyInput:
		t, ok := triggerFor(m.Input.Type)
		if !ok {
			o.log.Debug("Ignoring input", "input", m.Input.Type.String())
			return
		}
		if r := o.Trigger(ctx, t); r != msg.ResultOK {
			o.log.Info("Trigger not accepted", "trigger", t.String(), "result", r.String())
		}

	case m.Command == msg.CmdInject:
		// remote trigger: answered with the acceptance result
		r := msg.ResultParam
		if t, ok := triggerFor(m.Input.Type); ok {
			r = o.Trigger(ctx, t)
		}
		o.reply(ctx, m, r)

	default:
		o.log.Warn("Unsupported request", "msg", m.String())
		o.reply(ctx, m, msg.ResultParam)
	}
}

func triggerFor(t msg.InputType) (Trigger, bool) {
	switch t {
	case msg.KeyMode:
		return TriggerMode, true
	case msg.KeyCapture:
		return TriggerCapture, true
	}
	return 0, false
}

func (o *Orchestrator) reply(ctx context.Context, m msg.Message, r msg.Result) {
	if err := o.bus.Reply(ctx, m, msg.Orchestrator, r); err != nil {
		o.log.Error("Failed to send completion", "to", m.Sender.String(), "error", err)
	}
}

// Trigger starts the sequence for t. It returns DoNothing while another
// sequence is in flight or when t means nothing in the current mode.
func (o *Orchestrator) Trigger(ctx context.Context, t Trigger) msg.Result {
	if o.seq != nil {
		o.log.Info("Sequence in flight, ignoring trigger", "trigger", t.String(), "seq", o.seq.id.String())
		return msg.ResultDoNothing
	}
	actions := sequenceFor(o.mode, t)
	if actions == nil {
		o.log.Debug("No sequence for trigger", "mode", o.mode.String(), "trigger", t.String())
		return msg.ResultDoNothing
	}

	seq := &sequence{id: uuid.New(), trigger: t, actions: actions}
	seq.ctx, seq.span = telemetry.Tracer().Start(ctx, "mode.sequence",
		trace.WithAttributes(
			attribute.String("sequence.id", seq.id.String()),
			attribute.String("trigger", t.String()),
			attribute.String("from", o.mode.String()),
		))
	o.seq = seq
	o.log.Info("Sequence started", "seq", seq.id.String(), "trigger", t.String(), "mode", o.mode.String())

	if err := o.execute(); err != nil {
		return msg.ResultOf(err)
	}
	return msg.ResultOK
}

// execute runs actions from the cursor until one has to wait for a completion
// or the sequence ends. An error means the sequence was aborted.
func (o *Orchestrator) execute() error {
	seq := o.seq
	for seq.cursor < len(seq.actions) {
		a := seq.actions[seq.cursor]
		if m, ok := a.entered(); ok {
			o.mode = m
			o.finish(Completed, nil)
			return nil
		}
		if a == End {
			o.finish(Completed, nil)
			return nil
		}

		target, cmd, _ := a.request()
		seq.target, seq.cmd = target, cmd
		seq.span.AddEvent(a.String())
		o.log.Debug("Action", "seq", seq.id.String(), "step", seq.cursor, "action", a.String())
		if err := o.bus.Send(seq.ctx, target, msg.Request(msg.Orchestrator, cmd)); err != nil {
			err = fmt.Errorf("%s: %w", a, err)
			o.finish(Aborted, err)
			return err
		}
		return nil
	}
	o.finish(Completed, nil)
	return nil
}

func (o *Orchestrator) onCompletion(m msg.Message) {
	seq := o.seq
	if seq == nil || m.Sender != seq.target || m.Command.Base() != seq.cmd {
		// completions of our own input registration land here too
		o.log.Debug("Ignoring completion", "msg", m.String())
		return
	}
	if r := m.Result(); r != msg.ResultOK {
		a := seq.actions[seq.cursor]
		o.finish(Aborted, fmt.Errorf("%s answered %s: %w", a, r, r.Err()))
		return
	}
	seq.cursor++
	o.execute()
}

func (o *Orchestrator) finish(outcome Outcome, err error) {
	seq := o.seq
	o.seq = nil

	telemetry.Sequences.Add(seq.ctx, 1, metric.WithAttributes(
		attribute.String("trigger", seq.trigger.String()),
		attribute.String("outcome", outcome.String()),
	))
	if err != nil {
		seq.span.RecordError(err)
		seq.span.SetStatus(codes.Error, err.Error())
		o.log.Error("Sequence aborted", "seq", seq.id.String(), "trigger", seq.trigger.String(), "step", seq.cursor, "mode", o.mode.String(), "error", err)
	} else {
		o.log.Info("Sequence finished", "seq", seq.id.String(), "trigger", seq.trigger.String(), "mode", o.mode.String())
	}
	seq.span.SetAttributes(attribute.String("to", o.mode.String()))
	seq.span.End()

	if o.OnFinish != nil {
		o.OnFinish(seq.trigger, outcome, o.mode)
	}
}

func (o *Orchestrator) abortOnShutdown() {
	if o.seq != nil {
		o.finish(Aborted, fmt.Errorf("shutdown: %w", context.Canceled))
	}
}
