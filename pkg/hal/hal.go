// Package hal declares the hardware-facing collaborators the controllers
// drive: camera, display, file service and the line-oriented JPEG codec.
package hal

import (
	"io"
)

// Rect is a window in display coordinates.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Within reports whether r lies completely inside a w x h canvas.
func (r Rect) Within(w, h int) bool {
	return !r.Empty() && r.X >= 0 && r.Y >= 0 && r.X+r.W <= w && r.Y+r.H <= h
}

// Full returns the rectangle covering a whole w x h canvas.
func Full(w, h int) Rect { return Rect{W: w, H: h} }

// Centered returns a w x h rectangle centered in a cw x ch canvas.
func Centered(w, h, cw, ch int) Rect {
	return Rect{X: (cw - w) / 2, Y: (ch - h) / 2, W: w, H: h}
}

// CaptureMode selects how the camera feeds the display.
type CaptureMode int

const (
	// Continuous keeps copying frames to the display.
	Continuous CaptureMode = iota
	// SingleFrame copies one frame and signals frame-ready.
	SingleFrame
)

func (m CaptureMode) String() string {
	if m == SingleFrame {
		return "single"
	}
	return "continuous"
}

// SensorMode is the resolution the camera is configured for.
type SensorMode struct {
	Width  int
	Height int
}

// Camera is the image sensor driver.
type Camera interface {
	Init() error
	Configure(mode SensorMode) error
	// StartCapture begins copying frames into dst using mode.
	StartCapture(mode CaptureMode, dst Display) error
	StopCapture() error
	// OnFrameReady installs fn to be called after each frame lands on the
	// display. fn runs on the camera's goroutine.
	OnFrameReady(fn func())
}

// Display is a window-addressed LCD controller.
type Display interface {
	Init() error
	Size() (width, height int)
	SetWriteWindow(r Rect) error
	SetReadWindow(r Rect) error
	DrawRect(r Rect, color uint16) error
	// WritePixels streams native-format pixels into the write window.
	WritePixels(px []uint16) error
	// ReadScanlineRGB888 reads the next line of the read window as R,G,B bytes.
	ReadScanlineRGB888(buf []byte) error
	PixelFormat() PixelFormat
}

// ReadFile is an open file being read.
type ReadFile interface {
	io.ReadSeekCloser
	Size() int64
}

// WriteFile is a newly created file being written.
type WriteFile interface {
	io.WriteCloser
}

// FileService browses and opens media files.
type FileService interface {
	BeginScan(dir string) error
	// NextEntry returns the next file name or io.EOF at the end of the directory.
	NextEntry() (string, error)
	EndScan() error
	OpenRead(name string) (ReadFile, error)
	// CreateNew creates name, failing if it already exists.
	CreateNew(name string) (WriteFile, error)
	Exists(name string) bool
	Remove(name string) error
}

// Encoder writes a JPEG image one RGB888 scanline at a time.
type Encoder interface {
	Begin(w io.Writer, width, height, quality int) error
	EncodeLine(rgb []byte) error
	End() error
}

// Decoder reads a JPEG image one RGB888 scanline at a time.
type Decoder interface {
	// Begin parses the header from r and returns the full image size.
	Begin(r io.Reader) (width, height int, err error)
	// SetScale sets the output scale to num/denom before the first line.
	SetScale(num, denom int) error
	// OutputSize is the size of the scaled image.
	OutputSize() (width, height int)
	// DecodeLine fills rgb with the next scaled line, io.EOF after the last.
	DecodeLine(rgb []byte) error
	End() error
}
