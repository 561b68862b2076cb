// Package jpegcodec adapts image/jpeg to the line-oriented codec interface
// the controllers drive: images go in and come out one RGB888 scanline at a
// time, and decoded images can be reduced by powers of two in eighths.
package jpegcodec

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"golang.org/x/image/draw"

	"github.com/wachiwi/fishcam/pkg/msg"
)

// ReadAhead is how far past the end of an image the decoder may have read
// from its source. image/jpeg fills a 4096 byte buffer at a time.
const ReadAhead = 4096

// ScaleDenom is the fixed denominator of the decode scale.
const ScaleDenom = 8

var scaleNumerators = []int{8, 4, 2, 1}

// ErrTooLarge is returned by ChooseScale when not even 1/8 fits the canvas.
var ErrTooLarge = errors.New("image too large for canvas")

// ChooseScale returns the largest numerator n in {8,4,2,1} such that the
// image scaled by n/8 fits a cw x ch canvas on both axes.
func ChooseScale(w, h, cw, ch int) (int, error) {
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("image size %dx%d: %w", w, h, msg.ErrParam)
	}
	for _, n := range scaleNumerators {
		if scaled(w, n, ScaleDenom) <= cw && scaled(h, n, ScaleDenom) <= ch {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%dx%d on %dx%d: %w: %w", w, h, cw, ch, ErrTooLarge, msg.ErrParam)
}

// scaled rounds up so that a partial output pixel is still produced.
func scaled(v, num, denom int) int {
	return (v*num + denom - 1) / denom
}

// Encoder collects scanlines and compresses them when the image is complete.
type Encoder struct {
	w       io.Writer
	img     *image.RGBA
	quality int
	line    int
}

func NewEncoder() *Encoder { return &Encoder{} }

func (e *Encoder) Begin(w io.Writer, width, height, quality int) error {
	if e.img != nil {
		return fmt.Errorf("encode session already open: %w", msg.ErrState)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("encode size %dx%d: %w", width, height, msg.ErrParam)
	}
	if quality < 1 || quality > 100 {
		return fmt.Errorf("encode quality %d: %w", quality, msg.ErrParam)
	}
	e.w = w
	e.img = image.NewRGBA(image.Rect(0, 0, width, height))
	e.quality = quality
	e.line = 0
	return nil
}

// EncodeLine appends one RGB888 scanline.
func (e *Encoder) EncodeLine(rgb []byte) error {
	if e.img == nil {
		return fmt.Errorf("no encode session: %w", msg.ErrState)
	}
	width := e.img.Rect.Dx()
	if e.line >= e.img.Rect.Dy() {
		return fmt.Errorf("line %d beyond image height: %w", e.line, msg.ErrParam)
	}
	if len(rgb) < 3*width {
		return fmt.Errorf("line holds %d bytes, need %d: %w", len(rgb), 3*width, msg.ErrParam)
	}
	row := e.img.Pix[e.line*e.img.Stride:]
	for x := 0; x < width; x++ {
		row[4*x] = rgb[3*x]
		row[4*x+1] = rgb[3*x+1]
		row[4*x+2] = rgb[3*x+2]
		row[4*x+3] = 0xff
	}
	e.line++
	return nil
}

// End compresses the image into the session's writer and closes the session.
// Missing lines stay black.
func (e *Encoder) End() error {
	if e.img == nil {
		return fmt.Errorf("no encode session: %w", msg.ErrState)
	}
	img, w, q := e.img, e.w, e.quality
	e.img, e.w = nil, nil
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: q}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %v: %w", err, msg.ErrFile)
	}
	return nil
}

// Decoder decodes a whole image on Begin and hands out scaled lines.
type Decoder struct {
	src    image.Image
	out    *image.RGBA
	num    int
	denom  int
	line   int
	active bool
}

func NewDecoder() *Decoder { return &Decoder{} }

func (d *Decoder) Begin(r io.Reader) (int, int, error) {
	if d.active {
		return 0, 0, fmt.Errorf("decode session already open: %w", msg.ErrState)
	}
	img, err := jpeg.Decode(r)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode JPEG: %v: %w", err, msg.ErrFile)
	}
	d.src = img
	d.out = nil
	d.num, d.denom = 1, 1
	d.line = 0
	d.active = true
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

func (d *Decoder) SetScale(num, denom int) error {
	if !d.active {
		return fmt.Errorf("no decode session: %w", msg.ErrState)
	}
	if d.out != nil {
		return fmt.Errorf("scale set after first line: %w", msg.ErrState)
	}
	if denom != ScaleDenom || (num != 1 && num != 2 && num != 4 && num != 8) {
		return fmt.Errorf("scale %d/%d: %w", num, denom, msg.ErrParam)
	}
	d.num, d.denom = num, denom
	return nil
}

func (d *Decoder) OutputSize() (int, int) {
	if d.src == nil {
		return 0, 0
	}
	b := d.src.Bounds()
	return scaled(b.Dx(), d.num, d.denom), scaled(b.Dy(), d.num, d.denom)
}

func (d *Decoder) render() {
	w, h := d.OutputSize()
	d.out = image.NewRGBA(image.Rect(0, 0, w, h))
	if d.num == d.denom {
		draw.Draw(d.out, d.out.Bounds(), d.src, d.src.Bounds().Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(d.out, d.out.Bounds(), d.src, d.src.Bounds(), draw.Src, nil)
}

// DecodeLine fills rgb with the next output line; io.EOF follows the last one.
func (d *Decoder) DecodeLine(rgb []byte) error {
	if !d.active {
		return fmt.Errorf("no decode session: %w", msg.ErrState)
	}
	if d.out == nil {
		d.render()
	}
	width, height := d.out.Rect.Dx(), d.out.Rect.Dy()
	if d.line >= height {
		return io.EOF
	}
	if len(rgb) < 3*width {
		return fmt.Errorf("line holds %d bytes, need %d: %w", len(rgb), 3*width, msg.ErrParam)
	}
	row := d.out.Pix[d.line*d.out.Stride:]
	for x := 0; x < width; x++ {
		rgb[3*x] = row[4*x]
		rgb[3*x+1] = row[4*x+1]
		rgb[3*x+2] = row[4*x+2]
	}
	d.line++
	return nil
}

func (d *Decoder) End() error {
	d.src, d.out = nil, nil
	d.active = false
	return nil
}
