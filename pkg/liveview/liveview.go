// Package liveview runs the live camera feed and turns button presses into
// still captures and motion-JPEG recordings.
package liveview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/logger"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/pacing"
)

// State is the controller state.
type State int

const (
	Inactive State = iota
	Active
	SingleCapturing
	MovieRecording
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case SingleCapturing:
		return "single-capturing"
	case MovieRecording:
		return "movie-recording"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config holds the capture settings.
type Config struct {
	Sensor hal.SensorMode

	Quality         int
	QualityStep     int
	DialSensitivity int

	StillPrefix  string
	StillExt     string
	MoviePrefix  string
	MovieExt     string
	CounterStart int

	MovieInterval time.Duration
	StallFactor   int
	CurtainTime   time.Duration
	IndicatorTime time.Duration
}

func (c Config) withDefaults() Config {
	if c.Quality < 1 || c.Quality > 100 {
		c.Quality = 60
	}
	if c.QualityStep <= 0 {
		c.QualityStep = 10
	}
	c.DialSensitivity = min(max(c.DialSensitivity, 1), msg.MaxSensitivity)
	if c.StillPrefix == "" {
		c.StillPrefix, c.StillExt = "IMG", ".JPG"
	}
	if c.MoviePrefix == "" {
		c.MoviePrefix, c.MovieExt = "MOV", ".AVI"
	}
	if c.MovieInterval <= 0 {
		c.MovieInterval = 200 * time.Millisecond
	}
	if c.StallFactor <= 0 {
		c.StallFactor = pacing.DefaultStallFactor
	}
	return c
}

// Controller is the liveview controller. All fields except frameReady are
// owned by the goroutine running Run.
type Controller struct {
	bus *msg.Bus
	box *msg.Mailbox
	log *slog.Logger

	camera  hal.Camera
	display hal.Display
	files   hal.FileService
	encoder hal.Encoder
	cfg     Config

	state   State
	quality int

	movie         hal.WriteFile
	movieName     string
	movieFrames   int
	pacer         *pacing.Pacer
	armed         time.Time
	stopRequested bool
	pendingStop   *msg.Message

	frameReady atomic.Bool

	// Shutter, if set, plays the shutter sound.
	Shutter func()
	// OnSaved, if set, is told about every finished still or movie.
	OnSaved func(name, kind string, frames int)

	sleep func(time.Duration)
	now   func() time.Time
}

// New creates an inactive liveview controller bound to the Liveview mailbox.
// Zero config fields take their defaults.
func New(bus *msg.Bus, camera hal.Camera, display hal.Display, files hal.FileService, encoder hal.Encoder, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		bus:     bus,
		box:     bus.Mailbox(msg.Liveview),
		log:     logger.For(msg.Liveview),
		camera:  camera,
		display: display,
		files:   files,
		encoder: encoder,
		cfg:     cfg,
		quality: cfg.Quality,
		pacer:   pacing.NewPacer(pacing.Policy{Interval: cfg.MovieInterval, StallFactor: cfg.StallFactor}),
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Quality returns the JPEG quality used for the next encode.
func (c *Controller) Quality() int { return c.quality }

// Recording returns the name of the movie being recorded, if any.
func (c *Controller) Recording() string { return c.movieName }

// Run serves the mailbox until ctx is done. While recording, the receive
// timeout doubles as the frame tick.
func (c *Controller) Run(ctx context.Context) error {
	for {
		timeout := msg.Forever
		if c.state == MovieRecording {
			timeout = c.pacer.Policy().TickTimeout()
		}
		m, err := c.box.Receive(ctx, timeout)
		switch {
		case err == nil:
			c.Handle(ctx, m)
		case errors.Is(err, msg.ErrTimeout):
		default:
			c.shutdown()
			return err
		}
		if c.state == MovieRecording {
			c.Tick(ctx, c.now())
		}
	}
}

// Handle processes one message in the current state.
func (c *Controller) Handle(ctx context.Context, m msg.Message) {
	if m.IsCompletion() {
		// register/unregister answers from the input service
		if r := m.Result(); r.Failed() {
			c.log.Warn("Request failed", "msg", m.String())
		}
		return
	}

	switch c.state {
	case Inactive:
		c.handleInactive(ctx, m)
	case Active:
		c.handleActive(ctx, m)
	case MovieRecording:
		c.handleRecording(ctx, m)
	default:
		c.log.Error("Message during capture", "state", c.state.String(), "msg", m.String())
		if m.NeedsCompletion() {
			c.reply(ctx, m, msg.ResultState)
		}
	}
}

func (c *Controller) handleInactive(ctx context.Context, m msg.Message) {
	switch m.Command {
	case msg.CmdStart:
		c.reply(ctx, m, msg.ResultOf(c.start(ctx)))
	case msg.CmdNotifyInput:
		c.log.Debug("Ignoring input while inactive", "input", m.Input.Type.String())
	default:
		c.log.Warn("Request invalid while inactive", "msg", m.String())
		c.reply(ctx, m, msg.ResultState)
	}
}

func (c *Controller) handleActive(ctx context.Context, m msg.Message) {
	switch m.Command {
	case msg.CmdStop:
		c.reply(ctx, m, msg.ResultOf(c.stop(ctx)))
	case msg.CmdNotifyInput:
		switch m.Input.Type {
		case msg.KeyCapture:
			if err := c.captureStill(ctx); err != nil {
				c.log.Error("Still capture failed", "op", "capture", "error", err)
			}
		case msg.KeyOther:
			if err := c.startMovie(ctx); err != nil {
				c.log.Error("Movie not started", "op", "record", "error", err)
			}
		case msg.Dial:
			if err := c.adjustQuality(int(m.Input.Param)); err != nil {
				c.log.Error("Quality indicator failed", "op", "quality", "error", err)
			}
		}
	default:
		c.log.Warn("Request invalid while active", "msg", m.String())
		c.reply(ctx, m, msg.ResultState)
	}
}

func (c *Controller) handleRecording(ctx context.Context, m msg.Message) {
	switch m.Command {
	case msg.CmdStop:
		if c.pendingStop != nil {
			c.reply(ctx, m, msg.ResultDoNothing)
			return
		}
		// answered once the recording is finalized on the next tick
		req := m
		c.pendingStop = &req
		c.stopRequested = true
	case msg.CmdNotifyInput:
		if m.Input.Type == msg.KeyOther {
			c.stopRequested = true
		}
	default:
		c.log.Warn("Request invalid while recording", "msg", m.String())
		c.reply(ctx, m, msg.ResultState)
	}
}

func (c *Controller) reply(ctx context.Context, m msg.Message, r msg.Result) {
	if err := c.bus.Reply(ctx, m, msg.Liveview, r); err != nil {
		c.log.Error("Failed to send completion", "to", m.Sender.String(), "error", err)
	}
}

func (c *Controller) start(ctx context.Context) error {
	if err := c.camera.Init(); err != nil {
		return fmt.Errorf("failed to init camera: %w", err)
	}
	if err := c.camera.Configure(c.cfg.Sensor); err != nil {
		return fmt.Errorf("failed to configure camera: %w", err)
	}
	if err := c.display.Init(); err != nil {
		return fmt.Errorf("failed to init display: %w", err)
	}
	c.camera.OnFrameReady(func() { c.frameReady.Store(true) })
	if err := c.camera.StartCapture(hal.Continuous, c.display); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	c.registerInputs(ctx, msg.CmdRegister)
	c.state = Active
	c.log.Info("Liveview started", "quality", c.quality)
	return nil
}

func (c *Controller) stop(ctx context.Context) error {
	c.registerInputs(ctx, msg.CmdUnregister)
	c.state = Inactive
	if err := c.camera.StopCapture(); err != nil {
		return fmt.Errorf("failed to stop capture: %w", err)
	}
	c.log.Info("Liveview stopped")
	return nil
}

func (c *Controller) registerInputs(ctx context.Context, cmd msg.Command) {
	for _, in := range []msg.InputParam{
		{Type: msg.KeyCapture},
		{Type: msg.KeyOther},
		{Type: msg.Dial, Param: int16(c.cfg.DialSensitivity)},
	} {
		if err := c.bus.Send(ctx, msg.Input, msg.InputRequest(msg.Liveview, cmd, in.Type, in.Param)); err != nil {
			c.log.Error("Failed to send input request", "cmd", cmd.String(), "input", in.Type.String(), "error", err)
		}
	}
}

// curtain blanks the panel for a moment like a closing shutter.
func (c *Controller) curtain() error {
	w, h := c.display.Size()
	if err := c.display.DrawRect(hal.Full(w, h), c.display.PixelFormat().Convert(hal.Black)); err != nil {
		return err
	}
	c.sleep(c.cfg.CurtainTime)
	return nil
}

func (c *Controller) saved(name, kind string, frames int) {
	if c.OnSaved != nil {
		c.OnSaved(name, kind, frames)
	}
}

func (c *Controller) playShutter() {
	if c.Shutter != nil {
		c.Shutter()
	}
}

// resume restarts the live feed after a capture, whatever happened before.
func (c *Controller) resume() {
	if err := c.camera.StartCapture(hal.Continuous, c.display); err != nil {
		c.log.Error("Failed to restart live feed", "error", err)
	}
	c.state = Active
}

func (c *Controller) shutdown() {
	if c.movie != nil {
		c.closeMovie()
	}
	if c.state != Inactive {
		if err := c.camera.StopCapture(); err != nil {
			c.log.Warn("Failed to stop capture on shutdown", "error", err)
		}
		c.state = Inactive
	}
}
