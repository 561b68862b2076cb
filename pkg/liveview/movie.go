package liveview

import (
	"context"
	"fmt"
	"time"

	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/storage"
	"github.com/wachiwi/fishcam/pkg/telemetry"
)

// startMovie opens the next free movie file and switches the camera to one
// frame per arm. Recording only starts if the file could be created.
func (c *Controller) startMovie(ctx context.Context) error {
	name, err := storage.NextFreeName(c.files, c.cfg.MoviePrefix, c.cfg.MovieExt, c.cfg.CounterStart)
	if err != nil {
		return err
	}
	f, err := c.files.CreateNew(name)
	if err != nil {
		return err
	}

	if err := c.camera.StopCapture(); err != nil {
		c.discard(f, name)
		return fmt.Errorf("failed to stop live feed: %w", err)
	}
	c.playShutter()

	c.movie, c.movieName, c.movieFrames = f, name, 0
	c.stopRequested = false
	c.pacer.Reset()
	c.state = MovieRecording
	if err := c.arm(c.now()); err != nil {
		c.closeMovie()
		c.remove(name)
		c.resume()
		return err
	}
	c.log.Info("Recording started", "file", name, "interval", c.pacer.Policy().Interval)
	return nil
}

// arm requests the next frame from the camera. The previous capture is
// stopped before the flag is reset so a late callback cannot set it.
func (c *Controller) arm(now time.Time) error {
	if err := c.camera.StopCapture(); err != nil {
		return fmt.Errorf("failed to stop frame capture: %w", err)
	}
	c.frameReady.Store(false)
	c.armed = now
	if err := c.camera.StartCapture(hal.SingleFrame, c.display); err != nil {
		return fmt.Errorf("failed to arm frame capture: %w", err)
	}
	return nil
}

// Tick advances a recording by at most one frame. It finalizes the movie
// first if a stop was requested.
func (c *Controller) Tick(ctx context.Context, now time.Time) {
	if c.state != MovieRecording {
		return
	}
	if c.stopRequested {
		c.finishMovie(ctx)
		return
	}
	if !c.pacer.Due(now) {
		telemetry.FramesSkipped.Add(ctx, 1)
		return
	}
	if !c.frameReady.Load() {
		if !c.pacer.Policy().Stalled(c.armed, now) {
			return
		}
		// the sensor sometimes drops the frame-ready interrupt
		c.log.Warn("No frame ready, forcing", "file", c.movieName, "since", now.Sub(c.armed))
		telemetry.FramesForcedReady.Add(ctx, 1)
		// the late frame may still be drawing
		if err := c.camera.StopCapture(); err != nil {
			c.log.Error("Ending recording", "op", "record", "file", c.movieName, "error", err)
			c.finishMovie(ctx)
			return
		}
	}

	c.pacer.Mark(now)
	if err := c.encodeFrame(ctx, c.movie, "movie"); err != nil {
		c.log.Error("Movie frame failed, ending recording", "op", "record", "file", c.movieName, "frame", c.movieFrames, "error", err)
		c.finishMovie(ctx)
		return
	}
	c.movieFrames++
	if err := c.arm(now); err != nil {
		c.log.Error("Ending recording", "op", "record", "file", c.movieName, "error", err)
		c.finishMovie(ctx)
	}
}

// finishMovie closes the file and returns to the live feed, then carries
// out a stop request that arrived during the recording.
func (c *Controller) finishMovie(ctx context.Context) {
	name, frames := c.movieName, c.movieFrames
	c.closeMovie()
	if err := c.camera.StopCapture(); err != nil {
		c.log.Warn("Failed to stop frame capture", "error", err)
	}
	if err := c.curtain(); err != nil {
		c.log.Warn("Failed to draw curtain", "error", err)
	}
	c.playShutter()
	c.resume()
	c.log.Info("Recording finished", "file", name, "frames", frames)
	c.saved(name, "movie", frames)

	if req := c.pendingStop; req != nil {
		c.pendingStop = nil
		c.reply(ctx, *req, msg.ResultOf(c.stop(ctx)))
	}
}

func (c *Controller) closeMovie() {
	if err := c.movie.Close(); err != nil {
		c.log.Error("Failed to close movie", "file", c.movieName, "error", err)
	}
	c.movie, c.movieName = nil, ""
	c.stopRequested = false
}
