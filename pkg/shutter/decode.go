package shutter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/youpy/go-wav"

	"github.com/wachiwi/fishcam/pkg/msg"
)

// Output format of the audio context.
const (
	SampleRate   = 44100
	ChannelCount = 2
)

// Decode turns a WAV or MP3 file into 16-bit PCM at SampleRate with
// ChannelCount channels.
func Decode(name string, data []byte) ([]byte, error) {
	var (
		pcm      []byte
		rate     int
		channels int
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		format, err := wav.NewReader(bytes.NewReader(data)).Format()
		if err != nil {
			return nil, fmt.Errorf("failed to get wav format of %s: %w", name, err)
		}
		if format.BitsPerSample != 16 {
			return nil, fmt.Errorf("%s: %d-bit wav: %w", name, format.BitsPerSample, msg.ErrParam)
		}
		pcm, err = io.ReadAll(wav.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode wav data of %s: %w", name, err)
		}
		rate = int(format.SampleRate)
		channels = int(format.NumChannels)

	case ".mp3":
		decoder, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create mp3 decoder for %s: %w", name, err)
		}
		pcm, err = io.ReadAll(decoder)
		if err != nil {
			return nil, fmt.Errorf("failed to decode mp3 data of %s: %w", name, err)
		}
		rate = decoder.SampleRate()
		channels = 2

	default:
		return nil, fmt.Errorf("unsupported sound file %s: %w", name, msg.ErrParam)
	}

	if rate != SampleRate || channels != ChannelCount {
		pcm = convertAudio(pcm, rate, channels, SampleRate, ChannelCount)
	}
	return pcm, nil
}

// convertAudio resamples interleaved 16-bit PCM by linear interpolation and
// widens mono to stereo.
func convertAudio(pcm []byte, fromRate, fromChannels, toRate, toChannels int) []byte {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	if fromChannels == 1 && toChannels == 2 {
		stereo := make([]int16, 2*n)
		for i, s := range samples {
			stereo[2*i], stereo[2*i+1] = s, s
		}
		samples = stereo
	}

	if fromRate != toRate && len(samples) > 0 {
		// resample whole frames so channels stay interleaved
		ch := toChannels
		frames := len(samples) / ch
		ratio := float64(toRate) / float64(fromRate)
		outFrames := int(float64(frames) * ratio)
		out := make([]int16, outFrames*ch)
		for i := 0; i < outFrames; i++ {
			pos := float64(i) / ratio
			idx := int(pos)
			frac := pos - float64(idx)
			for c := 0; c < ch; c++ {
				if idx >= frames-1 {
					out[i*ch+c] = samples[(frames-1)*ch+c]
					continue
				}
				a := float64(samples[idx*ch+c])
				b := float64(samples[(idx+1)*ch+c])
				out[i*ch+c] = int16(a + (b-a)*frac)
			}
		}
		samples = out
	}

	result := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(result[i*2:], uint16(s))
	}
	return result
}
