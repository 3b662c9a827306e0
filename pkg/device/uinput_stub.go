//go:build !linux

package device

import "fmt"

// NewKeyboard is unavailable off Linux; virtual devices need uinput.
func NewKeyboard(name string, keys []int) (Device, error) {
	return nil, fmt.Errorf("virtual keyboard %q requires Linux uinput", name)
}

// NewGamepad is unavailable off Linux; virtual devices need uinput.
func NewGamepad(name string) (Device, error) {
	return nil, fmt.Errorf("virtual gamepad %q requires Linux uinput", name)
}
