// Package protocol defines the WebSocket command types exchanged between the
// DriveDroid controller app and the actuation server.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Steering action tokens.
const (
	ActionSteer     = "STEER"      // analog value for the gamepad axis
	ActionSteerPWM  = "STEER_PWM"  // value interpreted by the PWM engine
	ActionSteerMode = "STEER_MODE" // steering mode switch
)

// Button action tokens (pedals, steering fallback keys, handbrake).
const (
	ActionAccelerateW  = "ACCELERATE_W"
	ActionAccelerateUp = "ACCELERATE_UP"
	ActionBrakeS       = "BRAKE_S"
	ActionBrakeDown    = "BRAKE_DOWN"
	ActionSteerA       = "STEER_A"
	ActionSteerLeft    = "STEER_LEFT"
	ActionSteerD       = "STEER_D"
	ActionSteerRight   = "STEER_RIGHT"
	ActionHandbrake    = "HANDBRAKE"
)

// Button states.
const (
	StateDown = "DOWN"
	StateUp   = "UP"
)

// Mode identifies a steering mode.
type Mode string

const (
	ModeGamepad        Mode = "GAMEPAD"
	ModeKeyboardAD     Mode = "KEYBOARD_AD"
	ModeKeyboardArrows Mode = "KEYBOARD_ARROWS"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGamepad, ModeKeyboardAD, ModeKeyboardArrows:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown steering mode %q", s)
}

// buttonActions is the closed set of recognized button tokens.
var buttonActions = map[string]bool{
	ActionAccelerateW:  true,
	ActionAccelerateUp: true,
	ActionBrakeS:       true,
	ActionBrakeDown:    true,
	ActionSteerA:       true,
	ActionSteerLeft:    true,
	ActionSteerD:       true,
	ActionSteerRight:   true,
	ActionHandbrake:    true,
}

// Kind classifies a parsed command.
type Kind int

const (
	KindUnknown Kind = iota
	KindSteer
	KindSteerPWM
	KindSteerMode
	KindButton
)

// Command is a single wire message. Steering commands carry Value, mode
// switches carry Mode, button commands carry State.
type Command struct {
	Action string   `json:"action"`
	State  string   `json:"state,omitempty"`
	Value  *float64 `json:"value,omitempty"`
	Mode   string   `json:"mode,omitempty"`
}

// Kind returns the command classification.
func (c *Command) Kind() Kind {
	switch c.Action {
	case ActionSteer:
		return KindSteer
	case ActionSteerPWM:
		return KindSteerPWM
	case ActionSteerMode:
		return KindSteerMode
	}
	if buttonActions[c.Action] {
		return KindButton
	}
	return KindUnknown
}

// Val returns the steering value, or 0 if none was sent.
func (c *Command) Val() float64 {
	if c.Value == nil {
		return 0
	}
	return *c.Value
}

// Down reports whether a button command is a press.
func (c *Command) Down() bool {
	return c.State == StateDown
}

// Bytes returns the JSON-encoded command.
func (c *Command) Bytes() ([]byte, error) {
	return json.Marshal(c)
}

// clamp restricts v to [-1, 1].
func clamp(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// ParseCommand parses a JSON command from bytes. Steering values are clamped
// to [-1, 1]; a missing action is an error.
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	if cmd.Action == "" {
		return nil, fmt.Errorf("command has no action")
	}
	if cmd.Value != nil {
		v := clamp(*cmd.Value)
		cmd.Value = &v
	}
	return &cmd, nil
}
