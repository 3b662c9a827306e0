//go:build linux

package device

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// uinput ioctl requests and constants, translated from uinput.h and
// input-event-codes.h.
const (
	uinputMaxNameSize = 80
	absSize           = 64

	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetAbsBit  = 0x40045567

	busUSB = 0x03

	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0
)

// inputID mirrors struct input_id from input.h.
type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev mirrors struct uinput_user_dev from uinput.h.
type uinputUserDev struct {
	Name         [uinputMaxNameSize]byte
	ID           inputID
	FFEffectsMax uint32
	Absmax       [absSize]int32
	Absmin       [absSize]int32
	Absfuzz      [absSize]int32
	Absflat      [absSize]int32
}

// inputEvent mirrors struct input_event from input.h.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// uinputDevice is a virtual input device backed by /dev/uinput.
type uinputDevice struct {
	file *os.File
	name string
}

func ioctl(fd uintptr, request uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(request), arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// NewKeyboard registers a virtual keyboard exposing the given key codes.
func NewKeyboard(name string, keys []int) (Device, error) {
	return openUinput(name, keys, false)
}

// NewGamepad registers a virtual gamepad with one absolute steering axis.
// It also carries BtnA/BtnB so SDL2 recognizes it as a joystick.
func NewGamepad(name string) (Device, error) {
	return openUinput(name, []int{BtnA, BtnB}, true)
}

func openUinput(name string, keys []int, withAxis bool) (*uinputDevice, error) {
	if len(name) >= uinputMaxNameSize {
		return nil, fmt.Errorf("device name %q too long", name)
	}

	file, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open /dev/uinput: %w", err)
	}
	fd := file.Fd()

	fail := func(err error) (*uinputDevice, error) {
		file.Close()
		return nil, err
	}

	if err := ioctl(fd, uiSetEvBit, evKey); err != nil {
		return fail(fmt.Errorf("failed to enable key events: %w", err))
	}
	for _, code := range keys {
		if err := ioctl(fd, uiSetKeyBit, uintptr(code)); err != nil {
			return fail(fmt.Errorf("failed to register key %d: %w", code, err))
		}
	}
	if withAxis {
		if err := ioctl(fd, uiSetEvBit, evAbs); err != nil {
			return fail(fmt.Errorf("failed to enable abs events: %w", err))
		}
		if err := ioctl(fd, uiSetAbsBit, AbsX); err != nil {
			return fail(fmt.Errorf("failed to register steering axis: %w", err))
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:], name)
	dev.ID = inputID{Bustype: busUSB, Vendor: 0x1, Product: 0x1, Version: 1}
	if withAxis {
		dev.Absmin[AbsX] = AxisMin
		dev.Absmax[AbsX] = AxisMax
	}

	buf := (*[unsafe.Sizeof(dev)]byte)(unsafe.Pointer(&dev))[:]
	if _, err := file.Write(buf); err != nil {
		return fail(fmt.Errorf("failed to write device descriptor: %w", err))
	}

	if err := ioctl(fd, uiDevCreate, 0); err != nil {
		return fail(fmt.Errorf("failed to create device %q: %w", name, err))
	}

	return &uinputDevice{file: file, name: name}, nil
}

func (d *uinputDevice) emit(evType, code uint16, value int32) error {
	events := [2]inputEvent{
		{Type: evType, Code: code, Value: value},
		{Type: evSyn, Code: synReport, Value: 0},
	}
	buf := (*[unsafe.Sizeof(events)]byte)(unsafe.Pointer(&events))[:]
	if _, err := d.file.Write(buf); err != nil {
		return fmt.Errorf("emit on %q failed: %w", d.name, err)
	}
	return nil
}

// EmitKey sends a key transition followed by a sync report.
func (d *uinputDevice) EmitKey(code int, pressed bool) error {
	value := int32(0)
	if pressed {
		value = 1
	}
	return d.emit(evKey, uint16(code), value)
}

// EmitAxis writes an absolute axis value followed by a sync report.
func (d *uinputDevice) EmitAxis(code int, value int32) error {
	return d.emit(evAbs, uint16(code), value)
}

// Close destroys the virtual device.
func (d *uinputDevice) Close() error {
	if err := ioctl(d.file.Fd(), uiDevDestroy, 0); err != nil {
		d.file.Close()
		return fmt.Errorf("destroy of %q failed: %w", d.name, err)
	}
	return d.file.Close()
}
