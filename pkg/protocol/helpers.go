package protocol

// NewSteer creates an analog steering command for the gamepad axis.
func NewSteer(value float64) *Command {
	v := clamp(value)
	return &Command{Action: ActionSteer, Value: &v}
}

// NewSteerPWM creates a PWM steering command.
func NewSteerPWM(value float64) *Command {
	v := clamp(value)
	return &Command{Action: ActionSteerPWM, Value: &v}
}

// NewModeSwitch creates a steering mode switch command.
func NewModeSwitch(mode Mode) *Command {
	return &Command{Action: ActionSteerMode, Mode: string(mode)}
}

// NewButton creates a button press or release command.
func NewButton(action string, down bool) *Command {
	state := StateUp
	if down {
		state = StateDown
	}
	return &Command{Action: action, State: state}
}
