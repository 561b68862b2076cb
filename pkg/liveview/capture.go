package liveview

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/storage"
	"github.com/wachiwi/fishcam/pkg/telemetry"
)

// captureStill freezes the current frame, writes it to the next free still
// name and brings the live feed back.
func (c *Controller) captureStill(ctx context.Context) error {
	c.state = SingleCapturing
	defer c.resume()

	if err := c.camera.StopCapture(); err != nil {
		return fmt.Errorf("failed to freeze frame: %w", err)
	}
	c.playShutter()

	name, err := storage.NextFreeName(c.files, c.cfg.StillPrefix, c.cfg.StillExt, c.cfg.CounterStart)
	if err != nil {
		return err
	}
	f, err := c.files.CreateNew(name)
	if err != nil {
		return err
	}
	if err := c.encodeFrame(ctx, f, "still"); err != nil {
		c.discard(f, name)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		c.remove(name)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	c.log.Info("Still captured", "file", name, "quality", c.quality)
	c.saved(name, "still", 1)

	return c.curtain()
}

// discard closes and deletes a file whose content is incomplete.
func (c *Controller) discard(f io.Closer, name string) {
	if err := f.Close(); err != nil {
		c.log.Warn("Failed to close partial file", "file", name, "error", err)
	}
	c.remove(name)
}

func (c *Controller) remove(name string) {
	if err := c.files.Remove(name); err != nil {
		c.log.Error("Failed to remove partial file", "op", "cleanup", "file", name, "error", err)
	}
}

// encodeFrame compresses the whole panel into w, one scanline at a time.
func (c *Controller) encodeFrame(ctx context.Context, w io.Writer, kind string) error {
	width, height := c.display.Size()
	if err := c.display.SetReadWindow(hal.Full(width, height)); err != nil {
		return err
	}
	line := make([]byte, 3*width)

	if err := c.encoder.Begin(w, width, height, c.quality); err != nil {
		return err
	}
	var lineErr error
	for y := 0; y < height; y++ {
		if lineErr = c.display.ReadScanlineRGB888(line); lineErr != nil {
			break
		}
		if lineErr = c.encoder.EncodeLine(line); lineErr != nil {
			break
		}
	}
	// End always runs so the session is closed for the next frame
	if err := errors.Join(lineErr, c.encoder.End()); err != nil {
		return err
	}

	telemetry.FramesEncoded.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	return nil
}

// adjustQuality moves the JPEG quality by delta dial steps and shows the new
// value as a bar along the bottom edge.
func (c *Controller) adjustQuality(delta int) error {
	q := min(max(c.quality+delta*c.cfg.QualityStep, 1), 100)
	if q == c.quality {
		return nil
	}
	c.quality = q
	c.log.Info("Quality changed", "quality", q)

	// the feed is paused so it does not paint over the indicator
	if err := c.camera.StopCapture(); err != nil {
		return err
	}
	defer c.resume()

	w, h := c.display.Size()
	f := c.display.PixelFormat()
	const barHeight = 8
	track := hal.Rect{X: 0, Y: h - barHeight, W: w, H: barHeight}
	if err := c.display.DrawRect(track, f.Convert(hal.Gray)); err != nil {
		return err
	}
	fill := track
	fill.W = w * q / 100
	if err := c.display.DrawRect(fill, f.Convert(hal.White)); err != nil {
		return err
	}
	c.sleep(c.cfg.IndicatorTime)
	return nil
}
