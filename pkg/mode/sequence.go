package mode

import (
	"fmt"

	"github.com/wachiwi/fishcam/pkg/msg"
)

// Mode is the top-level camera mode.
type Mode int

const (
	Boot Mode = iota
	Liveview
	Playback
)

func (m Mode) String() string {
	switch m {
	case Boot:
		return "boot"
	case Liveview:
		return "liveview"
	case Playback:
		return "playback"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Trigger starts a sequence.
type Trigger int

const (
	TriggerBoot Trigger = iota
	TriggerMode
	TriggerCapture
)

func (t Trigger) String() string {
	switch t {
	case TriggerBoot:
		return "boot"
	case TriggerMode:
		return "mode"
	case TriggerCapture:
		return "capture"
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// ParseTrigger maps a trigger name to its value. Boot is not accepted.
func ParseTrigger(s string) (Trigger, error) {
	switch s {
	case "mode":
		return TriggerMode, nil
	case "capture":
		return TriggerCapture, nil
	}
	return 0, fmt.Errorf("unknown trigger %q: %w", s, msg.ErrParam)
}

// Action is one step of a sequence.
type Action int

const (
	StartLiveview Action = iota
	StopLiveview
	StartPlayback
	StopPlayback
	DoCapture
	EnterLiveview
	EnterPlayback
	End
)

func (a Action) String() string {
	switch a {
	case StartLiveview:
		return "start-liveview"
	case StopLiveview:
		return "stop-liveview"
	case StartPlayback:
		return "start-playback"
	case StopPlayback:
		return "stop-playback"
	case DoCapture:
		return "capture"
	case EnterLiveview:
		return "enter-liveview"
	case EnterPlayback:
		return "enter-playback"
	case End:
		return "end"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// request returns the command an action sends. ok is false for the enter
// actions and the terminator, which complete without a message.
func (a Action) request() (target msg.ModuleID, cmd msg.Command, ok bool) {
	switch a {
	case StartLiveview:
		return msg.Liveview, msg.CmdStart, true
	case StopLiveview:
		return msg.Liveview, msg.CmdStop, true
	case StartPlayback:
		return msg.Playback, msg.CmdStart, true
	case StopPlayback:
		return msg.Playback, msg.CmdStop, true
	case DoCapture:
		return msg.Capture, msg.CmdCapture, true
	}
	return msg.None, 0, false
}

// entered returns the mode set by an enter action.
func (a Action) entered() (Mode, bool) {
	switch a {
	case EnterLiveview:
		return Liveview, true
	case EnterPlayback:
		return Playback, true
	}
	return Boot, false
}

var (
	bootSequence        = []Action{StartLiveview, EnterLiveview, End}
	liveviewToPlayback  = []Action{StopLiveview, StartPlayback, EnterPlayback, End}
	playbackToLiveview  = []Action{StopPlayback, StartLiveview, EnterLiveview, End}
	captureFromLiveview = []Action{StopLiveview, DoCapture, StartLiveview, EnterLiveview, End}
)

// sequenceFor selects the action table for a trigger in a mode. A nil result
// means the trigger has no meaning there.
func sequenceFor(m Mode, t Trigger) []Action {
	switch m {
	case Boot:
		// the mode key retries a boot that failed
		if t == TriggerBoot || t == TriggerMode {
			return bootSequence
		}
	case Liveview:
		switch t {
		case TriggerMode:
			return liveviewToPlayback
		case TriggerCapture:
			return captureFromLiveview
		}
	case Playback:
		if t == TriggerMode {
			return playbackToLiveview
		}
	}
	return nil
}
