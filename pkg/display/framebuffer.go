// Package display implements an in-memory LCD: a 16-bit framebuffer driven
// through write and read windows the way a parallel-bus panel controller is.
package display

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/msg"
)

// Framebuffer is a window-addressed display. It is safe for concurrent use;
// the camera goroutine writes while controllers read scanlines.
type Framebuffer struct {
	mu     sync.Mutex
	width  int
	height int
	format hal.PixelFormat
	pix    []uint16

	wwin   hal.Rect
	wx, wy int

	rwin hal.Rect
	ry   int

	frames uint64
}

// New creates a width x height framebuffer in the given pixel format.
func New(width, height int, format hal.PixelFormat) *Framebuffer {
	fb := &Framebuffer{
		width:  width,
		height: height,
		format: format,
		pix:    make([]uint16, width*height),
	}
	fb.wwin = hal.Full(width, height)
	fb.rwin = fb.wwin
	return fb
}

// Init clears the panel and resets both windows to the full canvas.
func (fb *Framebuffer) Init() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := range fb.pix {
		fb.pix[i] = hal.Black
	}
	fb.wwin = hal.Full(fb.width, fb.height)
	fb.rwin = fb.wwin
	fb.wx, fb.wy, fb.ry = 0, 0, 0
	fb.frames++
	return nil
}

func (fb *Framebuffer) Size() (int, int) { return fb.width, fb.height }

func (fb *Framebuffer) PixelFormat() hal.PixelFormat { return fb.format }

func (fb *Framebuffer) SetWriteWindow(r hal.Rect) error {
	if !r.Within(fb.width, fb.height) {
		return fmt.Errorf("write window %+v outside %dx%d: %w", r, fb.width, fb.height, msg.ErrParam)
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.wwin = r
	fb.wx, fb.wy = 0, 0
	return nil
}

func (fb *Framebuffer) SetReadWindow(r hal.Rect) error {
	if !r.Within(fb.width, fb.height) {
		return fmt.Errorf("read window %+v outside %dx%d: %w", r, fb.width, fb.height, msg.ErrParam)
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.rwin = r
	fb.ry = 0
	return nil
}

// DrawRect fills r, clipped to the canvas. The write window is untouched.
func (fb *Framebuffer) DrawRect(r hal.Rect, c uint16) error {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.W, fb.width), min(r.Y+r.H, fb.height)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for y := y0; y < y1; y++ {
		row := fb.pix[y*fb.width : (y+1)*fb.width]
		for x := x0; x < x1; x++ {
			row[x] = c
		}
	}
	fb.frames++
	return nil
}

// WritePixels streams px into the write window row by row. The cursor wraps
// to the window origin after the last pixel, like the panel's address counter.
func (fb *Framebuffer) WritePixels(px []uint16) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	w := fb.wwin
	for _, p := range px {
		fb.pix[(w.Y+fb.wy)*fb.width+w.X+fb.wx] = p
		fb.wx++
		if fb.wx == w.W {
			fb.wx = 0
			fb.wy++
			if fb.wy == w.H {
				fb.wy = 0
				fb.frames++
			}
		}
	}
	return nil
}

// ReadScanlineRGB888 returns the next row of the read window as R,G,B bytes.
func (fb *Framebuffer) ReadScanlineRGB888(buf []byte) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	w := fb.rwin
	if len(buf) < 3*w.W {
		return fmt.Errorf("scanline buffer holds %d bytes, need %d: %w", len(buf), 3*w.W, msg.ErrParam)
	}
	row := fb.pix[(w.Y+fb.ry)*fb.width+w.X:]
	for x := 0; x < w.W; x++ {
		buf[3*x], buf[3*x+1], buf[3*x+2] = fb.format.Unpack(row[x])
	}
	fb.ry++
	if fb.ry == w.H {
		fb.ry = 0
	}
	return nil
}

// Pixel returns the native pixel at x, y.
func (fb *Framebuffer) Pixel(x, y int) uint16 {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.pix[y*fb.width+x]
}

// Generation increases whenever a full window has been written or a rect drawn.
// Streaming clients use it to skip unchanged frames.
func (fb *Framebuffer) Generation() uint64 {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.frames
}

// Snapshot copies the panel into an RGBA image.
func (fb *Framebuffer) Snapshot() *image.RGBA {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
	for y := 0; y < fb.height; y++ {
		for x := 0; x < fb.width; x++ {
			r, g, b := fb.format.Unpack(fb.pix[y*fb.width+x])
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
		}
	}
	return img
}
