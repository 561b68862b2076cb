package hal

// Mark is an on-screen status glyph drawn in the top-left corner.
type Mark int

const (
	MarkNone Mark = iota
	MarkPlay
	MarkPause
	MarkStop
	MarkEnd
)

func (m Mark) String() string {
	switch m {
	case MarkPlay:
		return "play"
	case MarkPause:
		return "pause"
	case MarkStop:
		return "stop"
	case MarkEnd:
		return "end"
	}
	return "none"
}

const (
	markSize   = 12
	markMargin = 4
)

// MarkArea is the corner rectangle a mark occupies.
func MarkArea() Rect {
	return Rect{X: markMargin, Y: markMargin, W: markSize, H: markSize}
}

// DrawMark paints m over the corner of d. MarkNone clears the area to black.
// Glyphs are built from rectangles only so any Display can render them.
func DrawMark(d Display, m Mark) error {
	f := d.PixelFormat()
	area := MarkArea()
	if err := d.DrawRect(area, f.Convert(Black)); err != nil {
		return err
	}

	var rects []Rect
	color := f.Convert(White)
	switch m {
	case MarkNone:
		return nil
	case MarkPlay:
		// a stepped triangle pointing right
		color = f.Convert(Green)
		for i := 0; i < markSize/2; i++ {
			rects = append(rects, Rect{X: area.X + i*2, Y: area.Y + i, W: 2, H: markSize - 2*i})
		}
	case MarkPause:
		rects = []Rect{
			{X: area.X + 2, Y: area.Y, W: 3, H: markSize},
			{X: area.X + markSize - 5, Y: area.Y, W: 3, H: markSize},
		}
	case MarkStop:
		color = f.Convert(Red)
		rects = []Rect{{X: area.X + 1, Y: area.Y + 1, W: markSize - 2, H: markSize - 2}}
	case MarkEnd:
		rects = []Rect{
			{X: area.X, Y: area.Y, W: markSize, H: 2},
			{X: area.X, Y: area.Y + markSize - 2, W: markSize, H: 2},
			{X: area.X, Y: area.Y, W: 2, H: markSize},
			{X: area.X + markSize - 2, Y: area.Y, W: 2, H: markSize},
		}
	}
	for _, r := range rects {
		if err := d.DrawRect(r, color); err != nil {
			return err
		}
	}
	return nil
}
