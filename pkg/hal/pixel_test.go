package hal

import "testing"

func TestPackUnpack(t *testing.T) {
	testCases := []struct {
		name    string
		r, g, b uint8
		want    uint16
	}{
		{"black", 0, 0, 0, Black},
		{"white", 255, 255, 255, White},
		{"red", 255, 0, 0, Red},
		{"green", 0, 255, 0, Green},
		{"blue", 0, 0, 255, Blue},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := RGB565.Pack(tc.r, tc.g, tc.b)
			if got != tc.want {
				t.Fatalf("Pack = %#04x, want %#04x", got, tc.want)
			}
			r, g, b := RGB565.Unpack(got)
			if r != tc.r || g != tc.g || b != tc.b {
				t.Errorf("Unpack = %d,%d,%d, want %d,%d,%d", r, g, b, tc.r, tc.g, tc.b)
			}

			bgr := BGR565.Pack(tc.r, tc.g, tc.b)
			if bgr != BGR565.Convert(tc.want) {
				t.Errorf("BGR Pack = %#04x, want %#04x", bgr, BGR565.Convert(tc.want))
			}
			r, g, b = BGR565.Unpack(bgr)
			if r != tc.r || g != tc.g || b != tc.b {
				t.Errorf("BGR Unpack = %d,%d,%d", r, g, b)
			}
		})
	}
}

func TestSwapRB(t *testing.T) {
	if SwapRB(Red) != Blue || SwapRB(Blue) != Red {
		t.Error("SwapRB must exchange red and blue")
	}
	if SwapRB(Green) != Green {
		t.Error("SwapRB must keep green")
	}
}

func TestRect(t *testing.T) {
	if !Full(320, 240).Within(320, 240) {
		t.Error("Full canvas must be within itself")
	}
	if (Rect{X: 1, W: 320, H: 240}).Within(320, 240) {
		t.Error("Shifted canvas must not fit")
	}
	c := Centered(160, 120, 320, 240)
	if c.X != 80 || c.Y != 60 {
		t.Errorf("Centered = %+v", c)
	}
}
