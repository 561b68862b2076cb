package mjpeg

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
)

const (
	readChunkSize = 4096
	// maxFrameSize bounds the pending buffer when a stream never ends a frame.
	maxFrameSize = 10 * 1024 * 1024
)

var (
	soi = []byte{markerPrefix, markerSOI}
	eoi = []byte{markerPrefix, markerEOI}
)

// Splitter cuts a live MJPEG byte stream (camera process stdout) into frames.
type Splitter struct {
	r       io.Reader
	buf     []byte
	pending []byte
}

// NewSplitter reads frames from r.
func NewSplitter(r io.Reader) *Splitter {
	return &Splitter{r: r, buf: make([]byte, readChunkSize)}
}

// Next returns the next complete SOI..EOI frame. Bytes before an SOI are
// dropped. The returned slice is owned by the caller.
func (s *Splitter) Next() ([]byte, error) {
	for {
		if frame := s.cut(); frame != nil {
			return frame, nil
		}

		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.pending = append(s.pending, s.buf[:n]...)
		}
		if err != nil {
			return nil, fmt.Errorf("stream read failed: %w", err)
		}

		if len(s.pending) > maxFrameSize {
			slog.Warn("Frame buffer overflow, resetting", "size", len(s.pending))
			s.pending = nil
		}
	}
}

func (s *Splitter) cut() []byte {
	start := bytes.Index(s.pending, soi)
	if start == -1 {
		// keep a trailing 0xFF, it may begin the next SOI
		if n := len(s.pending); n > 0 && s.pending[n-1] == markerPrefix {
			s.pending = append(s.pending[:0], markerPrefix)
		} else {
			s.pending = s.pending[:0]
		}
		return nil
	}
	if start > 0 {
		s.pending = append(s.pending[:0], s.pending[start:]...)
	}

	end := bytes.Index(s.pending[len(soi):], eoi)
	if end == -1 {
		return nil
	}
	end += len(soi) + len(eoi)

	frame := make([]byte, end)
	copy(frame, s.pending[:end])
	s.pending = append(s.pending[:0], s.pending[end:]...)
	return frame
}
