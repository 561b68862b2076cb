//go:build !linux

package input

import (
	"fmt"

	"github.com/wachiwi/fishcam/pkg/msg"
)

type GPIOConfig struct {
	Chip    string
	Mode    string
	Capture string
	Other   string
	DialA   string
	DialB   string
}

// GPIOSampler is unavailable off linux; use NopSampler and the remote surface.
type GPIOSampler struct{}

func NewGPIOSampler(cfg GPIOConfig) (*GPIOSampler, error) {
	return nil, fmt.Errorf("gpio character devices not available on this platform")
}

func (s *GPIOSampler) Pressed(t msg.InputType) (bool, error) { return false, nil }

func (s *GPIOSampler) DialCount() (uint32, error) { return 0, nil }

func (s *GPIOSampler) Close() error { return nil }
