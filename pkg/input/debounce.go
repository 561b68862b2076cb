package input

// debouncer keeps the last two distinct button levels. A press is recognized
// once the pressed level has been seen on two consecutive samples after the
// button was stably released.
type debouncer struct {
	prev  bool // level at n-1
	prev2 bool // level at n-2
}

// sample feeds the level read at this poll and reports a recognized press.
func (d *debouncer) sample(pressed bool) bool {
	fire := false
	if pressed != d.prev2 && pressed == d.prev {
		d.prev2 = d.prev
		fire = pressed
	}
	if pressed != d.prev {
		d.prev2 = d.prev
		d.prev = pressed
	}
	return fire
}
