// Package haltest provides a scriptable camera for controller tests.
package haltest

import (
	"sync"

	"github.com/wachiwi/fishcam/pkg/hal"
)

// FakeCamera records calls and paints a solid frame on StartCapture.
// Frame-ready callbacks only fire when a test asks for them, unless
// AutoReady is set.
type FakeCamera struct {
	mu sync.Mutex

	// Color is painted over the whole display on every StartCapture.
	Color uint16
	// AutoReady fires the frame-ready callback on every single-frame start.
	AutoReady bool
	// StartErr is returned by StartCapture when set.
	StartErr error
	// StopErr is returned by StopCapture when set.
	StopErr error

	onReady func()
	running bool
	mode    hal.CaptureMode
	starts  []hal.CaptureMode
	stops   int
	inits   int
	sensor  hal.SensorMode
}

func (c *FakeCamera) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inits++
	return nil
}

func (c *FakeCamera) Configure(mode hal.SensorMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensor = mode
	return nil
}

func (c *FakeCamera) StartCapture(mode hal.CaptureMode, dst hal.Display) error {
	c.mu.Lock()
	if c.StartErr != nil {
		err := c.StartErr
		c.mu.Unlock()
		return err
	}
	c.running = true
	c.mode = mode
	c.starts = append(c.starts, mode)
	color := c.Color
	auto := c.AutoReady && mode == hal.SingleFrame
	c.mu.Unlock()

	if dst != nil {
		w, h := dst.Size()
		if err := dst.DrawRect(hal.Full(w, h), color); err != nil {
			return err
		}
	}
	if auto {
		c.FireFrameReady()
	}
	return nil
}

func (c *FakeCamera) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.StopErr != nil {
		return c.StopErr
	}
	c.running = false
	c.stops++
	return nil
}

func (c *FakeCamera) OnFrameReady(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReady = fn
}

// FireFrameReady invokes the installed callback as the sensor would.
func (c *FakeCamera) FireFrameReady() {
	c.mu.Lock()
	fn := c.onReady
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Running reports whether capture is active and in which mode.
func (c *FakeCamera) Running() (bool, hal.CaptureMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running, c.mode
}

// Starts returns the modes of every StartCapture call so far.
func (c *FakeCamera) Starts() []hal.CaptureMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]hal.CaptureMode(nil), c.starts...)
}

// Stops returns the number of StopCapture calls.
func (c *FakeCamera) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}
