//go:build linux

package input

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/go-gpiocdev/device/rpi"

	"github.com/wachiwi/fishcam/pkg/msg"
)

// GPIOConfig names the chip and the pins of the controls.
type GPIOConfig struct {
	Chip    string
	Mode    string
	Capture string
	Other   string
	DialA   string
	DialB   string
}

// GPIOSampler reads pulled-up, active-low buttons and a quadrature rotary
// encoder whose A channel edges drive a software counter.
type GPIOSampler struct {
	chip    *gpiocdev.Chip
	buttons map[msg.InputType]*gpiocdev.Line
	dialA   *gpiocdev.Line
	dialB   *gpiocdev.Line
	count   atomic.Uint32
}

// NewGPIOSampler requests all lines from the chip.
func NewGPIOSampler(cfg GPIOConfig) (*GPIOSampler, error) {
	c, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("failed to open chip: %w", err)
	}
	s := &GPIOSampler{chip: c, buttons: make(map[msg.InputType]*gpiocdev.Line)}

	pins := map[msg.InputType]string{
		msg.KeyMode:    cfg.Mode,
		msg.KeyCapture: cfg.Capture,
		msg.KeyOther:   cfg.Other,
	}
	for t, name := range pins {
		offset, err := rpi.Pin(name)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("invalid pin %q for %s: %w", name, t, err)
		}
		line, err := c.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to request %s line: %w", t, err)
		}
		s.buttons[t] = line
	}

	offB, err := rpi.Pin(cfg.DialB)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("invalid dial B pin %q: %w", cfg.DialB, err)
	}
	if s.dialB, err = c.RequestLine(offB, gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to request dial B line: %w", err)
	}

	offA, err := rpi.Pin(cfg.DialA)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("invalid dial A pin %q: %w", cfg.DialA, err)
	}
	s.dialA, err = c.RequestLine(offA,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(s.onDialEdge),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to request dial A line: %w", err)
	}

	slog.Info("GPIO controls ready", "chip", cfg.Chip, "mode", cfg.Mode, "capture", cfg.Capture, "other", cfg.Other, "dialA", cfg.DialA, "dialB", cfg.DialB)
	return s, nil
}

// onDialEdge counts up when B differs from the new A level, down otherwise.
// Each detent of a typical encoder produces two A edges.
func (s *GPIOSampler) onDialEdge(evt gpiocdev.LineEvent) {
	a := 0
	if evt.Type == gpiocdev.LineEventRisingEdge {
		a = 1
	}
	b, err := s.dialB.Value()
	if err != nil {
		return
	}
	if a != b {
		s.count.Add(1)
	} else {
		s.count.Add(^uint32(0))
	}
}

func (s *GPIOSampler) Pressed(t msg.InputType) (bool, error) {
	line, ok := s.buttons[t]
	if !ok {
		return false, fmt.Errorf("no line for %s: %w", t, msg.ErrParam)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", t, err)
	}
	return v == 0, nil
}

func (s *GPIOSampler) DialCount() (uint32, error) {
	return s.count.Load(), nil
}

// Close releases all GPIO resources.
func (s *GPIOSampler) Close() error {
	for _, l := range s.buttons {
		l.Close()
	}
	if s.dialA != nil {
		s.dialA.Close()
	}
	if s.dialB != nil {
		s.dialB.Close()
	}
	return s.chip.Close()
}
