// Package msg defines the message envelope shared by every camera component,
// the module identities that double as mailbox addresses, and the completion
// convention used to answer requests.
//
// A Message is a plain value. Sending copies it into the receiver's mailbox,
// so once sent the sender has nothing left to release and the receiver owns
// the only copy.
package msg

import "fmt"

// ModuleID identifies a component and its mailbox.
type ModuleID uint8

const (
	None ModuleID = iota
	Orchestrator
	Liveview
	Playback
	Capture
	Input
	Remote

	numModules
)

// Modules lists every addressable module.
var Modules = []ModuleID{Orchestrator, Liveview, Playback, Capture, Input, Remote}

func (id ModuleID) String() string {
	switch id {
	case None:
		return "none"
	case Orchestrator:
		return "mode"
	case Liveview:
		return "liveview"
	case Playback:
		return "playback"
	case Capture:
		return "capture"
	case Input:
		return "input"
	case Remote:
		return "remote"
	}
	return fmt.Sprintf("module(%d)", uint8(id))
}

// Valid reports whether id names a real mailbox.
func (id ModuleID) Valid() bool {
	return id > None && id < numModules
}

// Command is the operation tag of a message. The high bit marks a completion.
type Command uint32

const (
	CmdStart Command = iota
	CmdStop
	CmdCapture
	CmdRegister
	CmdUnregister
	CmdNotifyInput
	CmdInject
)

// CompletionBit is OR-ed into a request's command to form its completion.
const CompletionBit Command = 0x80000000

// Completion returns the completion form of c.
func (c Command) Completion() Command { return c | CompletionBit }

// IsCompletion reports whether c carries the completion bit.
func (c Command) IsCompletion() bool { return c&CompletionBit == CompletionBit }

// Base strips the completion bit.
func (c Command) Base() Command { return c &^ CompletionBit }

func (c Command) String() string {
	var name string
	switch c.Base() {
	case CmdStart:
		name = "start"
	case CmdStop:
		name = "stop"
	case CmdCapture:
		name = "capture"
	case CmdRegister:
		name = "register"
	case CmdUnregister:
		name = "unregister"
	case CmdNotifyInput:
		name = "notify-input"
	case CmdInject:
		name = "inject"
	default:
		name = fmt.Sprintf("cmd(%d)", uint32(c.Base()))
	}
	if c.IsCompletion() {
		return name + "/comp"
	}
	return name
}

// InputType names a physical control.
type InputType int16

const (
	KeyMode InputType = iota
	KeyCapture
	KeyOther
	Dial

	NumInputTypes
)

func (t InputType) String() string {
	switch t {
	case KeyMode:
		return "mode"
	case KeyCapture:
		return "capture"
	case KeyOther:
		return "other"
	case Dial:
		return "dial"
	}
	return fmt.Sprintf("input(%d)", int16(t))
}

// Valid reports whether t is a known control.
func (t InputType) Valid() bool { return t >= 0 && t < NumInputTypes }

// ParseInputType maps a control name back to its InputType.
func ParseInputType(s string) (InputType, error) {
	for t := InputType(0); t < NumInputTypes; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown input %q: %w", s, ErrParam)
}

// InputParam is the payload of register/unregister/notify/inject messages.
// Param is the dial sensitivity on register and the signed magnitude on notify.
type InputParam struct {
	Type  InputType
	Param int16
}

// Message is the unit of inter-component communication.
// Value holds the result code of a completion; Input is only meaningful for
// input-related commands.
type Message struct {
	Command Command
	Sender  ModuleID
	Value   int32
	Input   InputParam
}

// Request builds a request from sender.
func Request(sender ModuleID, cmd Command) Message {
	return Message{Command: cmd, Sender: sender}
}

// MaxSensitivity bounds the dial divisor a module may register with.
const MaxSensitivity = 100

// InputRequest builds a register/unregister/inject request for a control.
func InputRequest(sender ModuleID, cmd Command, t InputType, param int16) Message {
	return Message{Command: cmd, Sender: sender, Input: InputParam{Type: t, Param: param}}
}

// Notification builds an input notification from the Input Service.
func Notification(t InputType, magnitude int16) Message {
	return Message{Command: CmdNotifyInput, Sender: Input, Input: InputParam{Type: t, Param: magnitude}}
}

// CompletionFor builds the completion of req, sent by from, carrying r.
func CompletionFor(req Message, from ModuleID, r Result) Message {
	return Message{Command: req.Command.Completion(), Sender: from, Value: int32(r)}
}

// Result returns the result code carried by a completion.
func (m Message) Result() Result { return Result(m.Value) }

// IsCompletion reports whether m answers an earlier request.
func (m Message) IsCompletion() bool { return m.Command.IsCompletion() }

// NeedsCompletion reports whether the receiver owes the sender a completion.
// Notifications are one-way and completions are never answered.
func (m Message) NeedsCompletion() bool {
	return !m.IsCompletion() && m.Command != CmdNotifyInput
}

func (m Message) String() string {
	if m.IsCompletion() {
		return fmt.Sprintf("%s from %s result=%s", m.Command, m.Sender, m.Result())
	}
	if m.Command == CmdNotifyInput || m.Command == CmdRegister || m.Command == CmdUnregister || m.Command == CmdInject {
		return fmt.Sprintf("%s from %s input=%s param=%d", m.Command, m.Sender, m.Input.Type, m.Input.Param)
	}
	return fmt.Sprintf("%s from %s", m.Command, m.Sender)
}
