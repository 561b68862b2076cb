package input

import "github.com/wachiwi/fishcam/pkg/msg"

// NopSampler reports released buttons and a still dial. It stands in for
// missing hardware so events can still be injected.
type NopSampler struct{}

func (NopSampler) Pressed(msg.InputType) (bool, error) { return false, nil }

func (NopSampler) DialCount() (uint32, error) { return 0, nil }

func (NopSampler) Close() error { return nil }
