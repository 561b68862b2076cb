package hal

// PixelFormat is the native 16-bit layout of the display.
type PixelFormat int

const (
	RGB565 PixelFormat = iota
	BGR565
)

func (f PixelFormat) String() string {
	if f == BGR565 {
		return "bgr565"
	}
	return "rgb565"
}

// Pack converts an RGB888 color to the native format.
func (f PixelFormat) Pack(r, g, b uint8) uint16 {
	if f == BGR565 {
		r, b = b, r
	}
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// Unpack converts a native pixel back to RGB888, replicating the high bits
// into the low ones so full white stays 0xFF.
func (f PixelFormat) Unpack(p uint16) (r, g, b uint8) {
	r5 := uint8(p >> 11 & 0x1f)
	g6 := uint8(p >> 5 & 0x3f)
	b5 := uint8(p & 0x1f)
	r = r5<<3 | r5>>2
	g = g6<<2 | g6>>4
	b = b5<<3 | b5>>2
	if f == BGR565 {
		r, b = b, r
	}
	return r, g, b
}

// Colors in RGB565 order; run them through Convert for BGR panels.
const (
	Black uint16 = 0x0000
	White uint16 = 0xffff
	Red   uint16 = 0xf800
	Green uint16 = 0x07e0
	Blue  uint16 = 0x001f
	Gray  uint16 = 0x8410
)

// Convert maps an RGB565 constant into the format f.
func (f PixelFormat) Convert(rgb565 uint16) uint16 {
	if f == BGR565 {
		return SwapRB(rgb565)
	}
	return rgb565
}

// SwapRB exchanges the red and blue fields of a 565 pixel.
func SwapRB(p uint16) uint16 {
	return p<<11 | p&0x07e0 | p>>11
}

// PackLine converts an RGB888 line into native pixels. dst must hold
// len(rgb)/3 entries.
func (f PixelFormat) PackLine(dst []uint16, rgb []byte) {
	for i := range dst {
		dst[i] = f.Pack(rgb[3*i], rgb[3*i+1], rgb[3*i+2])
	}
}
