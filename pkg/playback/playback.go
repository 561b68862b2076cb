// Package playback browses the media card and shows what it finds: raw
// RGB565 dumps, JPEG stills and motion-JPEG movies played frame by frame.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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
	MoviePlaying
	MoviePause
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case MoviePlaying:
		return "movie-playing"
	case MoviePause:
		return "movie-pause"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config holds the browse settings.
type Config struct {
	Root string
	// OwnPrefix marks movies recorded by this camera.
	OwnPrefix            string
	OwnMovieInterval     time.Duration
	ForeignMovieInterval time.Duration
	DialSensitivity      int
}

func (c Config) withDefaults() Config {
	if c.Root == "" {
		c.Root = "/"
	}
	if c.OwnPrefix == "" {
		c.OwnPrefix = "MOV"
	}
	if c.OwnMovieInterval <= 0 {
		c.OwnMovieInterval = 200 * time.Millisecond
	}
	if c.ForeignMovieInterval <= 0 {
		c.ForeignMovieInterval = 100 * time.Millisecond
	}
	c.DialSensitivity = min(max(c.DialSensitivity, 1), msg.MaxSensitivity)
	return c
}

// ChangeReporter tells whether the media changed since it was last asked.
type ChangeReporter interface {
	Changed() bool
}

// Controller is the playback controller, owned by the goroutine running Run.
type Controller struct {
	bus *msg.Bus
	box *msg.Mailbox
	log *slog.Logger

	display hal.Display
	files   hal.FileService
	decoder hal.Decoder
	cfg     Config

	// Changes, if set, makes the next advance start over from the root
	// after the media changed.
	Changes ChangeReporter

	state   State
	current string

	motion        *motion
	pacer         *pacing.Pacer
	stopRequested bool
	pendingStop   *msg.Message

	now func() time.Time
}

// New creates an inactive playback controller bound to the Playback mailbox.
func New(bus *msg.Bus, display hal.Display, files hal.FileService, decoder hal.Decoder, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		bus:     bus,
		box:     bus.Mailbox(msg.Playback),
		log:     logger.For(msg.Playback),
		display: display,
		files:   files,
		decoder: decoder,
		cfg:     cfg,
		pacer:   pacing.NewPacer(pacing.NewPolicy(cfg.OwnMovieInterval)),
		now:     time.Now,
	}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Current returns the file on screen.
func (c *Controller) Current() string { return c.current }

// MotionOpen reports whether a movie file is held open.
func (c *Controller) MotionOpen() bool { return c.motion != nil }

// Run serves the mailbox until ctx is done, ticking movie frames through the
// receive timeout while a movie plays.
func (c *Controller) Run(ctx context.Context) error {
	for {
		timeout := msg.Forever
		if c.state == MoviePlaying {
			timeout = c.pacer.Policy().TickTimeout()
		}
		m, err := c.box.Receive(ctx, timeout)
		switch {
		case err == nil:
			c.Handle(ctx, m)
		case errors.Is(err, msg.ErrTimeout):
		default:
			c.closeMotion()
			return err
		}
		if c.state == MoviePlaying {
			c.Tick(ctx, c.now())
		}
	}
}

// Handle processes one message in the current state.
func (c *Controller) Handle(ctx context.Context, m msg.Message) {
	if m.IsCompletion() {
		if r := m.Result(); r.Failed() {
			c.log.Warn("Request failed", "msg", m.String())
		}
		return
	}

	if c.state == Inactive {
		switch m.Command {
		case msg.CmdStart:
			err := c.start(ctx)
			c.reply(ctx, m, msg.ResultOf(err))
			if err == nil {
				c.advanceLogged(ctx)
			}
		case msg.CmdNotifyInput:
			c.log.Debug("Ignoring input while inactive", "input", m.Input.Type.String())
		default:
			c.log.Warn("Request invalid while inactive", "msg", m.String())
			c.reply(ctx, m, msg.ResultState)
		}
		return
	}

	// Active, MoviePlaying and MoviePause share one dispatcher
	switch m.Command {
	case msg.CmdStop:
		switch {
		case c.pendingStop != nil:
			c.reply(ctx, m, msg.ResultDoNothing)
		case c.state == MoviePlaying:
			// answered at the next frame boundary
			req := m
			c.pendingStop = &req
			c.stopRequested = true
		default:
			c.reply(ctx, m, msg.ResultOf(c.stop(ctx)))
		}
	case msg.CmdNotifyInput:
		switch m.Input.Type {
		case msg.Dial:
			if c.pendingStop == nil {
				c.advanceLogged(ctx)
			}
		case msg.KeyOther:
			if c.pendingStop == nil {
				c.togglePause()
			}
		}
	default:
		c.log.Warn("Request invalid during playback", "state", c.state.String(), "msg", m.String())
		c.reply(ctx, m, msg.ResultState)
	}
}

func (c *Controller) reply(ctx context.Context, m msg.Message, r msg.Result) {
	if err := c.bus.Reply(ctx, m, msg.Playback, r); err != nil {
		c.log.Error("Failed to send completion", "to", m.Sender.String(), "error", err)
	}
}

func (c *Controller) start(ctx context.Context) error {
	if err := c.display.Init(); err != nil {
		return fmt.Errorf("failed to init display: %w", err)
	}
	if err := c.files.BeginScan(c.cfg.Root); err != nil {
		return err
	}
	c.registerInputs(ctx, msg.CmdRegister)
	c.state = Active
	c.current = ""
	c.log.Info("Playback started", "root", c.cfg.Root)
	return nil
}

func (c *Controller) stop(ctx context.Context) error {
	c.closeMotion()
	c.registerInputs(ctx, msg.CmdUnregister)
	c.state = Inactive
	c.current = ""
	c.log.Info("Playback stopped")
	return c.files.EndScan()
}

func (c *Controller) registerInputs(ctx context.Context, cmd msg.Command) {
	for _, in := range []msg.InputParam{
		{Type: msg.KeyOther},
		{Type: msg.Dial, Param: int16(c.cfg.DialSensitivity)},
	} {
		if err := c.bus.Send(ctx, msg.Input, msg.InputRequest(msg.Playback, cmd, in.Type, in.Param)); err != nil {
			c.log.Error("Failed to send input request", "cmd", cmd.String(), "input", in.Type.String(), "error", err)
		}
	}
}

func (c *Controller) togglePause() {
	var mark hal.Mark
	switch c.state {
	case MoviePlaying:
		c.state = MoviePause
		mark = hal.MarkPause
	case MoviePause:
		c.state = MoviePlaying
		mark = hal.MarkPlay
	default:
		return
	}
	c.log.Info("Movie "+c.state.String(), "file", c.current)
	if err := hal.DrawMark(c.display, mark); err != nil {
		c.log.Warn("Failed to draw mark", "error", err)
	}
}
