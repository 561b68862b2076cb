package playback

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/jpegcodec"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/telemetry"
)

type mediaKind int

const (
	kindNone mediaKind = iota
	kindRaw
	kindStill
	kindMotion
)

// kindOf classifies a file by its suffix alone.
func kindOf(name string) mediaKind {
	ext := strings.ToUpper(path.Ext(name))
	switch {
	case ext == ".RGB":
		return kindRaw
	case strings.HasPrefix(ext, ".JP"):
		return kindStill
	case strings.HasPrefix(ext, ".AV"):
		return kindMotion
	}
	return kindNone
}

func (k mediaKind) String() string {
	switch k {
	case kindRaw:
		return "raw"
	case kindStill:
		return "still"
	case kindMotion:
		return "motion"
	}
	return "none"
}

func (c *Controller) advanceLogged(ctx context.Context) {
	if err := c.advance(ctx); err != nil {
		c.log.Error("Advance failed", "op", "advance", "file", c.current, "error", err)
	}
}

// advance shows the next playable file, starting over at the root when the
// scan runs out. An open movie is closed before anything else.
func (c *Controller) advance(ctx context.Context) error {
	c.closeMotion()
	c.state = Active

	if c.Changes != nil && c.Changes.Changed() {
		c.log.Info("Media changed, rescanning", "root", c.cfg.Root)
		if err := c.files.BeginScan(c.cfg.Root); err != nil {
			return err
		}
	}

	wrapped := false
	for {
		name, err := c.files.NextEntry()
		if errors.Is(err, io.EOF) {
			if wrapped {
				c.current = ""
				c.showEmpty()
				return fmt.Errorf("nothing to play in %s: %w", c.cfg.Root, msg.ErrNoData)
			}
			wrapped = true
			if err := c.files.BeginScan(c.cfg.Root); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		kind := kindOf(name)
		if kind == kindNone {
			continue
		}
		c.current = name
		c.log.Info("Showing file", "file", name, "kind", kind.String())
		return c.show(ctx, name, kind)
	}
}

func (c *Controller) show(ctx context.Context, name string, kind mediaKind) error {
	if kind == kindMotion {
		return c.startMotion(name)
	}

	f, err := c.files.OpenRead(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if kind == kindRaw {
		err = c.drawRaw(f)
	} else {
		err = c.drawStill(f)
	}
	if err != nil {
		return fmt.Errorf("failed to show %s: %w", name, err)
	}
	telemetry.FramesDecoded.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
	return nil
}

func (c *Controller) showEmpty() {
	w, h := c.display.Size()
	err := c.display.DrawRect(hal.Full(w, h), c.display.PixelFormat().Convert(hal.Black))
	if err == nil {
		err = hal.DrawMark(c.display, hal.MarkEnd)
	}
	if err != nil {
		c.log.Warn("Failed to clear display", "error", err)
	}
}

// drawRaw streams little-endian RGB565 lines straight to the panel. A short
// file leaves the rest of the canvas as it was.
func (c *Controller) drawRaw(r io.Reader) error {
	w, h := c.display.Size()
	if err := c.display.SetWriteWindow(hal.Full(w, h)); err != nil {
		return err
	}
	f := c.display.PixelFormat()
	raw := make([]byte, 2*w)
	px := make([]uint16, w)
	for y := 0; y < h; y++ {
		if _, err := io.ReadFull(r, raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("failed to read line %d: %w", y, err)
		}
		for x := range px {
			px[x] = f.Convert(binary.LittleEndian.Uint16(raw[2*x:]))
		}
		if err := c.display.WritePixels(px); err != nil {
			return err
		}
	}
	return nil
}

// drawStill decodes one JPEG image from r, scaled down by the smallest
// eighths step that fits, and draws it centered on a black canvas.
func (c *Controller) drawStill(r io.Reader) error {
	cw, ch := c.display.Size()
	w, h, err := c.decoder.Begin(r)
	if err != nil {
		return err
	}
	defer c.decoder.End()

	num, err := jpegcodec.ChooseScale(w, h, cw, ch)
	if err != nil {
		return err
	}
	if err := c.decoder.SetScale(num, jpegcodec.ScaleDenom); err != nil {
		return err
	}
	ow, oh := c.decoder.OutputSize()

	f := c.display.PixelFormat()
	if ow < cw || oh < ch {
		if err := c.display.DrawRect(hal.Full(cw, ch), f.Convert(hal.Black)); err != nil {
			return err
		}
	}
	if err := c.display.SetWriteWindow(hal.Centered(ow, oh, cw, ch)); err != nil {
		return err
	}

	rgb := make([]byte, 3*ow)
	px := make([]uint16, ow)
	for {
		err := c.decoder.DecodeLine(rgb)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		f.PackLine(px, rgb)
		if err := c.display.WritePixels(px); err != nil {
			return err
		}
	}
}
