// Package camera drives the image sensor. Frames come from an MJPEG
// streaming process (rpicam-vid on the Pi, ffmpeg on a Mac) and are scaled
// onto the display; without a sensor a moving test pattern is shown instead.
package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/msg"
)

// Camera is the sensor driver behind hal.Camera.
type Camera struct {
	cfg Config
	log *slog.Logger

	mu             sync.Mutex
	sensor         hal.SensorMode
	onReady        func()
	running        bool
	stop           chan struct{}
	done           chan struct{}
	loggedFallback bool

	stream stream
}

// Config holds camera configuration
type Config struct {
	Width  int
	Height int
	FPS    int
	// Placeholder skips the sensor and always shows the test pattern.
	Placeholder bool
}

// NewCamera creates a new camera instance with the given configuration
func NewCamera(config Config) *Camera {
	if config.Width == 0 {
		config.Width = 640
	}
	if config.Height == 0 {
		config.Height = 480
	}
	if config.FPS == 0 {
		config.FPS = 30
	}

	return &Camera{
		cfg:    config,
		log:    slog.Default().With("component", "camera"),
		sensor: hal.SensorMode{Width: config.Width, Height: config.Height},
	}
}

// Init starts the streaming process if there is none. A missing sensor is
// not an error; the test pattern takes over.
func (c *Camera) Init() error {
	if c.cfg.Placeholder {
		return nil
	}
	c.mu.Lock()
	sensor := c.sensor
	c.mu.Unlock()
	if err := c.stream.start(sensor, c.cfg.FPS); err != nil {
		c.fallback(err)
	}
	return nil
}

// Configure sets the sensor resolution used by the next streaming process.
func (c *Camera) Configure(mode hal.SensorMode) error {
	if mode.Width <= 0 || mode.Height <= 0 {
		return fmt.Errorf("sensor mode %dx%d: %w", mode.Width, mode.Height, msg.ErrParam)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensor = mode
	return nil
}

func (c *Camera) OnFrameReady(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReady = fn
}

// StartCapture copies frames onto dst at the configured frame rate. In
// SingleFrame mode it stops by itself after one frame.
func (c *Camera) StartCapture(mode hal.CaptureMode, dst hal.Display) error {
	if dst == nil {
		return fmt.Errorf("no capture destination: %w", msg.ErrParam)
	}
	if err := c.StopCapture(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.captureLoop(mode, dst, c.stop, c.done)
	return nil
}

// StopCapture halts the capture loop and waits until it no longer touches
// the display. A single-frame loop that already ended by itself is still
// waited for, so its frame-ready callback has returned as well.
func (c *Camera) StopCapture() error {
	c.mu.Lock()
	done := c.done
	if done == nil {
		c.mu.Unlock()
		return nil
	}
	if c.running {
		c.running = false
		close(c.stop)
	}
	c.done = nil
	c.mu.Unlock()

	<-done
	return nil
}

// IsStreaming returns whether the capture loop is running
func (c *Camera) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Close stops capturing and ends the streaming process.
func (c *Camera) Close() error {
	if err := c.StopCapture(); err != nil {
		return err
	}
	return c.stream.close()
}

func (c *Camera) captureLoop(mode hal.CaptureMode, dst hal.Display, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		img, err := c.captureFrame()
		if err != nil {
			c.log.Warn("Error capturing frame", "error", err)
			continue
		}
		if err := drawFrame(dst, img); err != nil {
			c.log.Warn("Error drawing frame", "error", err)
			continue
		}

		c.mu.Lock()
		select {
		case <-stop:
			// stopped while drawing; the frame is not announced
			c.mu.Unlock()
			return
		default:
		}
		fn := c.onReady
		if mode == hal.SingleFrame {
			c.running = false
		}
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
		if mode == hal.SingleFrame {
			return
		}
	}
}

// captureFrame returns the latest sensor frame or the test pattern.
func (c *Camera) captureFrame() (image.Image, error) {
	if !c.cfg.Placeholder {
		frame, err := c.stream.latest()
		if err == nil {
			img, err := jpeg.Decode(bytes.NewReader(frame))
			if err != nil {
				return nil, fmt.Errorf("failed to decode frame: %w", err)
			}
			return img, nil
		}
		c.fallback(err)
	}
	return c.placeholderFrame(), nil
}

func (c *Camera) fallback(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loggedFallback {
		c.log.Warn("Camera capture failed, using placeholder frames", "error", err)
		c.loggedFallback = true
	}
}

// placeholderFrame draws a gradient whose red channel follows the clock, so
// a running feed is visibly alive.
func (c *Camera) placeholderFrame() image.Image {
	c.mu.Lock()
	w, h := c.sensor.Width, c.sensor.Height
	c.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	shade := byte(time.Now().UnixMilli() / 40 % 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			offset := y*img.Stride + x*4
			img.Pix[offset] = shade
			img.Pix[offset+1] = byte((x * 255) / w)
			img.Pix[offset+2] = byte((y * 255) / h)
			img.Pix[offset+3] = 255
		}
	}
	return img
}

// drawFrame scales img to the panel and writes it through the write window.
func drawFrame(dst hal.Display, img image.Image) error {
	w, h := dst.Size()
	fit := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(fit, fit.Bounds(), img, img.Bounds(), draw.Src, nil)

	if err := dst.SetWriteWindow(hal.Full(w, h)); err != nil {
		return err
	}
	f := dst.PixelFormat()
	line := make([]byte, 3*w)
	px := make([]uint16, w)
	for y := 0; y < h; y++ {
		row := fit.Pix[y*fit.Stride:]
		for x := 0; x < w; x++ {
			line[3*x], line[3*x+1], line[3*x+2] = row[4*x], row[4*x+1], row[4*x+2]
		}
		f.PackLine(px, line)
		if err := dst.WritePixels(px); err != nil {
			return err
		}
	}
	return nil
}
