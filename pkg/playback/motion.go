package playback

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/jpegcodec"
	"github.com/wachiwi/fishcam/pkg/mjpeg"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/telemetry"
)

// motion is an open movie: the file and the cursor on its next frame.
type motion struct {
	name   string
	file   hal.ReadFile
	cursor *mjpeg.Cursor
	frames int
}

// startMotion opens a movie and lets Tick draw its frames. The frame
// interval depends on whether this camera recorded the file.
func (c *Controller) startMotion(name string) error {
	f, err := c.files.OpenRead(name)
	if err != nil {
		return err
	}
	c.motion = &motion{
		name:   name,
		file:   f,
		cursor: mjpeg.NewCursor(f, f.Size(), jpegcodec.ReadAhead),
	}

	interval := c.cfg.ForeignMovieInterval
	if strings.HasPrefix(strings.ToUpper(path.Base(name)), strings.ToUpper(c.cfg.OwnPrefix)) {
		interval = c.cfg.OwnMovieInterval
	}
	c.pacer.SetInterval(interval)
	c.pacer.Reset()
	c.stopRequested = false
	c.state = MoviePlaying
	c.log.Info("Movie opened", "file", name, "size", f.Size(), "interval", interval)
	return nil
}

// Tick draws the next movie frame once the interval has passed. A pending
// stop is carried out instead.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	if c.state != MoviePlaying {
		return
	}
	if c.stopRequested {
		c.stopRequested = false
		req := c.pendingStop
		c.pendingStop = nil
		err := c.stop(ctx)
		if req != nil {
			c.reply(ctx, *req, msg.ResultOf(err))
		}
		return
	}
	if !c.pacer.Due(now) {
		return
	}
	c.pacer.Mark(now)

	err := c.motionFrame(ctx)
	switch {
	case err == nil:
		return
	case errors.Is(err, mjpeg.ErrEndOfStream):
		c.log.Info("Movie finished", "file", c.motion.name, "frames", c.motion.frames)
		c.endMotion(hal.MarkEnd)
	default:
		c.log.Error("Movie stopped", "op", "play", "file", c.motion.name, "frame", c.motion.frames, "error", err)
		c.endMotion(hal.MarkStop)
	}
}

// motionFrame decodes the frame at the cursor and puts the cursor on the
// boundary of the next one.
func (c *Controller) motionFrame(ctx context.Context) error {
	m := c.motion
	if err := m.cursor.Begin(); err != nil {
		return err
	}
	if err := c.drawStill(m.file); err != nil {
		return err
	}
	// the decoder has read past the end of the image
	if _, err := m.cursor.Recover(); err != nil {
		return err
	}
	m.frames++
	telemetry.FramesDecoded.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kindMotion.String())))

	if err := hal.DrawMark(c.display, hal.MarkPlay); err != nil {
		c.log.Warn("Failed to draw mark", "error", err)
	}
	return nil
}

// endMotion closes the movie and leaves its last frame on screen.
func (c *Controller) endMotion(mark hal.Mark) {
	c.closeMotion()
	c.state = Active
	if err := hal.DrawMark(c.display, mark); err != nil {
		c.log.Warn("Failed to draw mark", "error", err)
	}
}

func (c *Controller) closeMotion() {
	if c.motion == nil {
		return
	}
	if err := c.motion.file.Close(); err != nil {
		c.log.Warn("Failed to close movie", "file", c.motion.name, "error", err)
	}
	c.motion = nil
}
