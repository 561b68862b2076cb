// Package input turns raw button and dial state into notifications for the
// modules that registered interest in a control.
package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wachiwi/fishcam/pkg/logger"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/telemetry"
)

// Sampler reads the physical controls.
type Sampler interface {
	// Pressed reports whether the button t is held down.
	Pressed(t msg.InputType) (bool, error)
	// DialCount returns the free-running rotary encoder counter.
	DialCount() (uint32, error)
	Close() error
}

// Config tunes polling and registration.
type Config struct {
	PollInterval     time.Duration
	MaxRegistrations int
	// CountsPerDetent is the number of encoder counts for one dial click.
	CountsPerDetent int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.MaxRegistrations <= 0 {
		c.MaxRegistrations = 2
	}
	if c.CountsPerDetent <= 0 {
		c.CountsPerDetent = 2
	}
	return c
}

var buttons = []msg.InputType{msg.KeyMode, msg.KeyCapture, msg.KeyOther}

// Service is the Input Service. Its registration table is private to the
// goroutine running Run.
type Service struct {
	bus     *msg.Bus
	box     *msg.Mailbox
	sampler Sampler
	cfg     Config
	log     *slog.Logger

	regs        [msg.NumInputTypes][]msg.ModuleID
	sensitivity [msg.NumInputTypes]int16
	debounce    [msg.NumInputTypes]debouncer

	dialLast   uint32
	dialPrimed bool
	lastErr    string
}

// NewService creates an input service with an empty registration table.
func NewService(bus *msg.Bus, sampler Sampler, cfg Config) *Service {
	s := &Service{
		bus:     bus,
		box:     bus.Mailbox(msg.Input),
		sampler: sampler,
		cfg:     cfg.withDefaults(),
		log:     logger.For(msg.Input),
	}
	for i := range s.sensitivity {
		s.sensitivity[i] = 1
	}
	return s
}

// Run serves requests and polls the controls every PollInterval until ctx
// is done. Polling keeps its cadence however many messages arrive.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("Input service started", "poll", s.cfg.PollInterval)
	next := time.Now().Add(s.cfg.PollInterval)
	for {
		wait := time.Until(next)
		if wait <= 0 {
			s.Poll(ctx)
			next = time.Now().Add(s.cfg.PollInterval)
			continue
		}

		m, err := s.box.Receive(ctx, wait)
		switch {
		case err == nil:
			s.Handle(ctx, m)
		case errors.Is(err, msg.ErrTimeout):
			s.Poll(ctx)
			next = time.Now().Add(s.cfg.PollInterval)
		default:
			s.log.Info("Input service stopped")
			return err
		}
	}
}

// Handle processes one message and sends its completion.
func (s *Service) Handle(ctx context.Context, m msg.Message) {
	if m.IsCompletion() {
		s.log.Debug("Ignoring completion", "msg", m.String())
		return
	}

	var err error
	switch m.Command {
	case msg.CmdRegister:
		err = s.register(m.Sender, m.Input.Type, m.Input.Param)
	case msg.CmdUnregister:
		err = s.unregister(m.Sender, m.Input.Type)
	case msg.CmdInject:
		err = s.inject(ctx, m.Input.Type, m.Input.Param)
	default:
		err = fmt.Errorf("unsupported command %s: %w", m.Command, msg.ErrParam)
	}

	r := msg.ResultOf(err)
	if r.Failed() {
		s.log.Warn("Request failed", "op", m.Command.String(), "from", m.Sender.String(), "input", m.Input.Type.String(), "error", err)
	} else {
		s.log.Debug("Request done", "op", m.Command.String(), "from", m.Sender.String(), "input", m.Input.Type.String(), "result", r.String())
	}
	if !m.NeedsCompletion() {
		return
	}
	if err := s.bus.Reply(ctx, m, msg.Input, r); err != nil {
		s.log.Error("Failed to send completion", "to", m.Sender.String(), "error", err)
	}
}

func (s *Service) register(id msg.ModuleID, t msg.InputType, param int16) error {
	if !t.Valid() {
		return fmt.Errorf("register %s: %w", t, msg.ErrParam)
	}
	if !id.Valid() {
		return fmt.Errorf("register requester %s: %w", id, msg.ErrParam)
	}
	if t == msg.Dial {
		s.sensitivity[t] = max(param, 1)
	}
	if slices.Contains(s.regs[t], id) {
		return nil
	}
	if len(s.regs[t]) >= s.cfg.MaxRegistrations {
		return fmt.Errorf("register %s for %s: %w", id, t, msg.ErrNoCapacity)
	}
	s.regs[t] = append(s.regs[t], id)
	return nil
}

func (s *Service) unregister(id msg.ModuleID, t msg.InputType) error {
	if !t.Valid() {
		return fmt.Errorf("unregister %s: %w", t, msg.ErrParam)
	}
	i := slices.Index(s.regs[t], id)
	if i < 0 {
		return fmt.Errorf("%s not registered for %s: %w", id, t, msg.ErrIgnored)
	}
	s.regs[t] = slices.Delete(s.regs[t], i, i+1)
	return nil
}

// inject fans out a notification as if the control had been operated.
func (s *Service) inject(ctx context.Context, t msg.InputType, param int16) error {
	if !t.Valid() {
		return fmt.Errorf("inject %s: %w", t, msg.ErrParam)
	}
	if param == 0 {
		param = 1
	}
	if s.notify(ctx, t, param) == 0 {
		return fmt.Errorf("nobody registered for %s: %w", t, msg.ErrIgnored)
	}
	return nil
}

// Registered returns the modules currently registered for t. It must not be
// called while Run is active.
func (s *Service) Registered(t msg.InputType) []msg.ModuleID {
	if !t.Valid() {
		return nil
	}
	return slices.Clone(s.regs[t])
}

// Poll samples every control once and notifies recognized events.
func (s *Service) Poll(ctx context.Context) {
	for _, t := range buttons {
		pressed, err := s.sampler.Pressed(t)
		if err != nil {
			s.sampleFailed(err)
			continue
		}
		if s.debounce[t].sample(pressed) {
			s.notify(ctx, t, 1)
		}
	}

	cnt, err := s.sampler.DialCount()
	if err != nil {
		s.sampleFailed(err)
		return
	}
	if !s.dialPrimed {
		s.dialLast, s.dialPrimed = cnt, true
		return
	}
	if delta := dialSteps(cnt, s.dialLast, s.cfg.CountsPerDetent, s.sensitivity[msg.Dial]); delta != 0 {
		s.notify(ctx, msg.Dial, delta)
		s.dialLast = cnt
	}
}

func (s *Service) sampleFailed(err error) {
	if e := err.Error(); e != s.lastErr {
		s.log.Warn("Failed to sample controls", "error", err)
		s.lastErr = e
	}
}

// dialSteps converts the counter movement since last into signed detents.
// The 16-bit difference keeps the sign right across counter wrap-around.
// The quotient never exceeds the difference, so it fits back into int16.
func dialSteps(cnt, last uint32, countsPerDetent int, sensitivity int16) int16 {
	raw := int(int16(cnt - last))
	divisor := max(countsPerDetent, 1) * max(int(sensitivity), 1)
	return int16(raw / divisor)
}

// notify sends a notification to every registered module and returns how
// many were sent.
func (s *Service) notify(ctx context.Context, t msg.InputType, param int16) int {
	sent := 0
	for _, id := range s.regs[t] {
		if err := s.bus.Send(ctx, id, msg.Notification(t, param)); err != nil {
			s.log.Error("Failed to notify", "to", id.String(), "input", t.String(), "error", err)
			continue
		}
		sent++
	}
	if sent > 0 {
		telemetry.InputNotifications.Add(ctx, int64(sent),
			metric.WithAttributes(attribute.String("input", t.String())))
	}
	s.log.Debug("Input event", "input", t.String(), "param", param, "receivers", sent)
	return sent
}
