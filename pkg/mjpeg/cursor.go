// Package mjpeg locates frame boundaries in motion-JPEG data: back-to-back
// JPEG images without any index.
package mjpeg

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrEndOfStream means the cursor is at the end of the container.
	ErrEndOfStream = errors.New("end of motion stream")
	// ErrNoBoundary means no end-of-image marker followed the frame start.
	ErrNoBoundary = errors.New("no frame boundary found")
)

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9

	scanChunk = 512
)

// Cursor tracks the start of the current frame inside a container and puts
// the read position back on the frame boundary after a decoder has read past it.
type Cursor struct {
	r          io.ReadSeeker
	size       int64
	readAhead  int64
	frameStart int64
	buf        []byte
}

// NewCursor wraps r, a container of size bytes. readAhead is the most a
// decoder reads beyond the end of an image.
func NewCursor(r io.ReadSeeker, size int64, readAhead int) *Cursor {
	return &Cursor{
		r:         r,
		size:      size,
		readAhead: int64(readAhead),
		buf:       make([]byte, scanChunk),
	}
}

// Begin marks the current position as the start of the next frame.
func (c *Cursor) Begin() error {
	pos, err := c.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to tell position: %w", err)
	}
	if pos >= c.size {
		return ErrEndOfStream
	}
	c.frameStart = pos
	return nil
}

// FrameStart returns the offset recorded by the last Begin.
func (c *Cursor) FrameStart() int64 { return c.frameStart }

// AtEnd reports whether the read position is at the end of the container.
func (c *Cursor) AtEnd() bool {
	pos, err := c.r.Seek(0, io.SeekCurrent)
	return err != nil || pos >= c.size
}

// Recover seeks back by the read-ahead width, never before the frame start,
// scans forward for the end-of-image marker and leaves the reader just after
// it. The returned offset is the start of the following frame.
func (c *Cursor) Recover() (int64, error) {
	pos, err := c.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("failed to tell position: %w", err)
	}
	start := max(pos-c.readAhead, c.frameStart)
	if _, err := c.r.Seek(start, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek to %d: %w", start, err)
	}

	off := start
	carry := false // previous byte, possibly in the previous chunk, was 0xFF
	for {
		n, rerr := c.r.Read(c.buf)
		for i := 0; i < n; i++ {
			b := c.buf[i]
			if carry && b == markerEOI {
				end := off + int64(i) + 1
				if _, err := c.r.Seek(end, io.SeekStart); err != nil {
					return 0, fmt.Errorf("failed to seek to %d: %w", end, err)
				}
				return end, nil
			}
			carry = b == markerPrefix
		}
		off += int64(n)
		if rerr == io.EOF {
			return off, ErrNoBoundary
		}
		if rerr != nil {
			return off, fmt.Errorf("failed to scan for boundary: %w", rerr)
		}
	}
}
