package camera

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wachiwi/fishcam/pkg/display"
	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/msg"
)

func newTestCamera() *Camera {
	return NewCamera(Config{Width: 64, Height: 48, FPS: 100, Placeholder: true})
}

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera(Config{})
	if c.cfg.Width != 640 || c.cfg.Height != 480 || c.cfg.FPS != 30 {
		t.Errorf("Defaults = %dx%d@%d, want 640x480@30", c.cfg.Width, c.cfg.Height, c.cfg.FPS)
	}
}

func TestConfigureRejectsEmptyMode(t *testing.T) {
	c := newTestCamera()
	if err := c.Configure(hal.SensorMode{}); !errors.Is(err, msg.ErrParam) {
		t.Errorf("Configure(0x0) = %v, want ErrParam", err)
	}
	if err := c.Configure(hal.SensorMode{Width: 32, Height: 24}); err != nil {
		t.Errorf("Configure(32x24) failed: %v", err)
	}
}

func TestSingleFrameStopsByItself(t *testing.T) {
	c := newTestCamera()
	fb := display.New(16, 12, hal.RGB565)
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ready := make(chan struct{}, 4)
	c.OnFrameReady(func() { ready <- struct{}{} })
	before := fb.Generation()
	if err := c.StartCapture(hal.SingleFrame, fb); err != nil {
		t.Fatalf("StartCapture failed: %v", err)
	}

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("No frame-ready signal")
	}
	if fb.Generation() == before {
		t.Error("Frame was not written to the display")
	}
	// the placeholder ramps blue top to bottom
	_, _, top := hal.RGB565.Unpack(fb.Pixel(8, 0))
	_, _, bottom := hal.RGB565.Unpack(fb.Pixel(8, 11))
	if bottom <= top {
		t.Errorf("Blue ramp top=%d bottom=%d, want increasing", top, bottom)
	}

	deadline := time.Now().Add(time.Second)
	for c.IsStreaming() {
		if time.Now().After(deadline) {
			t.Fatal("Single frame capture kept running")
		}
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case <-ready:
		t.Error("Second frame after single-frame capture")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestContinuousUntilStopped(t *testing.T) {
	c := newTestCamera()
	fb := display.New(16, 12, hal.RGB565)

	ready := make(chan struct{}, 64)
	c.OnFrameReady(func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	if err := c.StartCapture(hal.Continuous, fb); err != nil {
		t.Fatalf("StartCapture failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-ready:
		case <-time.After(2 * time.Second):
			t.Fatalf("Only %d frames arrived", i)
		}
	}

	if err := c.StopCapture(); err != nil {
		t.Fatalf("StopCapture failed: %v", err)
	}
	if c.IsStreaming() {
		t.Error("Still streaming after StopCapture")
	}
	gen := fb.Generation()
	time.Sleep(50 * time.Millisecond)
	if fb.Generation() != gen {
		t.Error("Display written after StopCapture returned")
	}
	if err := c.StopCapture(); err != nil {
		t.Errorf("Second StopCapture failed: %v", err)
	}
}

func TestStartCaptureNeedsDisplay(t *testing.T) {
	c := newTestCamera()
	if err := c.StartCapture(hal.Continuous, nil); !errors.Is(err, msg.ErrParam) {
		t.Errorf("StartCapture(nil) = %v, want ErrParam", err)
	}
}

func TestStreamLatest(t *testing.T) {
	var s stream
	if _, err := s.latest(); !errors.Is(err, errNoFrame) {
		t.Errorf("latest() on empty stream = %v, want errNoFrame", err)
	}
	s.frame = []byte{0xff, 0xd8, 0xff, 0xd9}
	s.frameAt = time.Now()
	if f, err := s.latest(); err != nil || len(f) != 4 {
		t.Errorf("latest() = %v, %v", f, err)
	}
	s.frameAt = time.Now().Add(-2 * staleAfter)
	if _, err := s.latest(); err == nil {
		t.Error("Stale frame was returned")
	}
}

// gatedDisplay holds the first scanline write until release is closed.
type gatedDisplay struct {
	*display.Framebuffer
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDisplay) WritePixels(px []uint16) error {
	d.once.Do(func() {
		close(d.entered)
		<-d.release
	})
	return d.Framebuffer.WritePixels(px)
}

func TestStopDuringDrawSuppressesFrameReady(t *testing.T) {
	c := newTestCamera()
	d := &gatedDisplay{
		Framebuffer: display.New(16, 12, hal.RGB565),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	var ready atomic.Int32
	c.OnFrameReady(func() { ready.Add(1) })

	if err := c.StartCapture(hal.SingleFrame, d); err != nil {
		t.Fatalf("StartCapture failed: %v", err)
	}
	select {
	case <-d.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Capture never reached the display")
	}

	stopped := make(chan struct{})
	go func() {
		c.StopCapture()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("StopCapture returned while the frame was still drawing")
	case <-time.After(50 * time.Millisecond):
	}
	close(d.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("StopCapture did not return")
	}

	if n := ready.Load(); n != 0 {
		t.Errorf("Frame-ready fired %d time(s) for a stopped capture", n)
	}
	if c.IsStreaming() {
		t.Error("Camera still streaming after StopCapture")
	}
}

func TestStopAfterSingleFrameWaitsForCallback(t *testing.T) {
	c := newTestCamera()
	fb := display.New(16, 12, hal.RGB565)
	var ready atomic.Int32
	release := make(chan struct{})
	c.OnFrameReady(func() {
		<-release
		ready.Add(1)
	})
	if err := c.StartCapture(hal.SingleFrame, fb); err != nil {
		t.Fatalf("StartCapture failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.IsStreaming() {
		if time.Now().After(deadline) {
			t.Fatal("Single frame never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// the loop is now inside the callback
	time.AfterFunc(50*time.Millisecond, func() { close(release) })
	if err := c.StopCapture(); err != nil {
		t.Fatalf("StopCapture failed: %v", err)
	}
	if n := ready.Load(); n != 1 {
		t.Errorf("StopCapture returned before the callback finished (%d calls)", n)
	}
}
