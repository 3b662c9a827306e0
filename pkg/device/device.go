// Package device owns the virtual input devices and the currently addressed
// output target. It exposes a uinput-backed keyboard and gamepad plus a
// registry that keeps retargeting linearizable with respect to emission.
package device

import (
	"github.com/uzairdeveloper223/DriveDroid/pkg/protocol"
)

// Linux input event key codes for the actions DriveDroid emits.
const (
	KeyW     = 17
	KeyA     = 30
	KeyS     = 31
	KeyD     = 32
	KeySpace = 57
	KeyUp    = 103
	KeyLeft  = 105
	KeyRight = 106
	KeyDown  = 108

	// SDL2 requires at least one button for a device to register as a
	// joystick.
	BtnA = 0x130
	BtnB = 0x131
)

// Gamepad axis range and code.
const (
	AbsX    = 0x00
	AxisMax = 32767
	AxisMin = -32768
)

// KeyMap maps logical action tokens to key codes on the virtual keyboard.
var KeyMap = map[string]int{
	// Driving
	protocol.ActionAccelerateW:  KeyW,
	protocol.ActionAccelerateUp: KeyUp,
	protocol.ActionBrakeS:       KeyS,
	protocol.ActionBrakeDown:    KeyDown,
	// Steering keyboard fallback
	protocol.ActionSteerA:     KeyA,
	protocol.ActionSteerLeft:  KeyLeft,
	protocol.ActionSteerD:     KeyD,
	protocol.ActionSteerRight: KeyRight,
	// Other
	protocol.ActionHandbrake: KeySpace,
}

// KeyboardKeys returns every key code the virtual keyboard must register.
func KeyboardKeys() []int {
	keys := make([]int, 0, len(KeyMap))
	for _, code := range KeyMap {
		keys = append(keys, code)
	}
	return keys
}

// Device is one virtual input device.
type Device interface {
	// EmitKey sends a key-down or key-up transition.
	EmitKey(code int, pressed bool) error
	// EmitAxis writes an absolute axis value.
	EmitAxis(code int, value int32) error
	// Close destroys the device.
	Close() error
}
