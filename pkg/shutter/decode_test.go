package shutter

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/wachiwi/fishcam/pkg/msg"
)

// monoWAV builds a 16-bit mono PCM WAV file.
func monoWAV(rate uint32, samples ...int16) []byte {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}
	h := make([]byte, 44)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+len(data)))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], 1)
	binary.LittleEndian.PutUint32(h[24:], rate)
	binary.LittleEndian.PutUint32(h[28:], rate*2)
	binary.LittleEndian.PutUint16(h[32:], 2)
	binary.LittleEndian.PutUint16(h[34:], 16)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(len(data)))
	return append(h, data...)
}

func samplesOf(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

func TestDecodeMonoWAVToStereo(t *testing.T) {
	pcm, err := Decode("click.WAV", monoWAV(SampleRate, 100, -200))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := samplesOf(pcm)
	want := []int16{100, 100, -200, -200}
	if len(got) != len(want) {
		t.Fatalf("Decoded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDecodeResamples(t *testing.T) {
	pcm, err := Decode("click.wav", monoWAV(SampleRate/2, 0, 1000, 2000, 3000))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := samplesOf(pcm)
	// 4 frames at half rate become 8 stereo frames
	if len(got) != 16 {
		t.Fatalf("Decoded %d samples, want 16", len(got))
	}
	if got[2] != 500 || got[3] != 500 {
		t.Errorf("Interpolated frame = %d/%d, want 500/500", got[2], got[3])
	}
	if got[14] != 3000 {
		t.Errorf("Last frame = %d, want 3000", got[14])
	}
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	if _, err := Decode("click.ogg", []byte("OggS")); !errors.Is(err, msg.ErrParam) {
		t.Errorf("Decode(.ogg) = %v, want ErrParam", err)
	}
}
