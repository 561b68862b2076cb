package camera

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/mjpeg"
)

// staleAfter is how old the last frame may be before the stream counts as dead.
const staleAfter = 5 * time.Second

var errNoFrame = errors.New("no frame available yet")

// stream owns the streaming process and the latest frame it produced.
type stream struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	frame   []byte
	frameAt time.Time
}

// start launches the platform streaming command unless one is running.
func (s *stream) start(sensor hal.SensorMode, fps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil
	}

	cmd, err := streamCommand(sensor.Width, sensor.Height, fps)
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	// Capture stderr for debugging
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w, stderr: %s", cmd.Path, err, stderr.String())
	}
	s.cmd = cmd
	slog.Info("Started camera streaming process", "command", cmd.Path, "width", sensor.Width, "height", sensor.Height, "fps", fps)

	go s.pump(stdout)
	go func() {
		err := cmd.Wait()
		if err != nil {
			slog.Warn("Camera streaming process exited", "error", err, "stderr", stderr.String())
		} else {
			slog.Info("Camera streaming process exited cleanly")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cmd == cmd {
			s.cmd = nil
		}
	}()
	return nil
}

// pump keeps the newest complete JPEG from the process output.
func (s *stream) pump(r io.Reader) {
	sp := mjpeg.NewSplitter(r)
	for {
		frame, err := sp.Next()
		if err != nil {
			slog.Error("Stream read error", "error", err)
			return
		}
		s.mu.Lock()
		s.frame = frame
		s.frameAt = time.Now()
		s.mu.Unlock()
	}
}

// latest returns the newest frame. The slice is never modified afterwards.
func (s *stream) latest() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frame) == 0 {
		return nil, errNoFrame
	}
	// the process may have died without the frame being cleared
	if time.Since(s.frameAt) > staleAfter {
		return nil, fmt.Errorf("frame is stale (>%s old)", staleAfter)
	}
	return s.frame, nil
}

func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	err := s.cmd.Process.Kill()
	s.cmd = nil
	return err
}
