// Package session owns the actuator-side state: the active steering mode,
// the PWM engine, held buttons and the last analog axis value. Every command
// from the channel and every operator action flows through here.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/uzairdeveloper223/DriveDroid/internal/log"
	"github.com/uzairdeveloper223/DriveDroid/pkg/device"
	"github.com/uzairdeveloper223/DriveDroid/pkg/protocol"
	"github.com/uzairdeveloper223/DriveDroid/pkg/steering"
)

// axisChangeThreshold is the minimum axis delta (in counts) before the
// gamepad axis is rewritten. Suppresses jitter traffic to the device.
const axisChangeThreshold = 200

// modeKeys is the closed transition table from steering mode to key binding.
// Gamepad mode has no binding; it uses the analog axis instead.
var modeKeys = map[protocol.Mode]steering.KeyPair{
	protocol.ModeKeyboardAD:     {Left: device.KeyA, Right: device.KeyD},
	protocol.ModeKeyboardArrows: {Left: device.KeyLeft, Right: device.KeyRight},
}

// Status is a snapshot of the session for the console and the status hub.
type Status struct {
	Connected bool   `json:"connected"`
	Mode      string `json:"mode"`
	Target    string `json:"target"`
	HeldKeys  int    `json:"held_keys"`
}

// Session wires the command channel to the actuation engine and devices.
type Session struct {
	registry *device.Registry
	engine   *steering.Engine
	buttons  *buttons

	mu        sync.Mutex
	mode      protocol.Mode
	connected int

	lastAxis atomic.Int32

	cleanup  sync.Once
	onStatus func(Status)
}

// New creates a session over the given registry and engine, and installs the
// forced-release hook the registry runs before every retarget.
func New(registry *device.Registry, engine *steering.Engine) *Session {
	s := &Session{
		registry: registry,
		engine:   engine,
		buttons:  newButtons(registry.Keyboard()),
	}
	registry.OnRetarget(s.releaseInputs)
	return s
}

// OnStatus installs a callback invoked whenever the session status changes.
func (s *Session) OnStatus(fn func(Status)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// Status returns the current session snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	return Status{
		Connected: s.connected > 0,
		Mode:      string(s.mode),
		Target:    s.registry.Target(),
		HeldKeys:  s.buttons.heldCount(),
	}
}

func (s *Session) publishLocked() {
	if s.onStatus != nil {
		s.onStatus(s.statusLocked())
	}
}

// HandleConnect marks a controller as connected. The first connection adopts
// keyboard A/D steering when no mode was chosen yet.
func (s *Session) HandleConnect(id string) {
	s.mu.Lock()
	s.connected++
	if s.mode == "" {
		s.switchModeLocked(protocol.ModeKeyboardAD)
	}
	s.publishLocked()
	s.mu.Unlock()
	log.Info("controller connected", "id", id)
}

// HandleDisconnect treats a dropped controller as "center and release":
// every key comes up, the axis returns to zero and the engine idles.
func (s *Session) HandleDisconnect(id string) {
	s.releaseInputs()
	s.mu.Lock()
	if s.connected > 0 {
		s.connected--
	}
	s.publishLocked()
	s.mu.Unlock()
	log.Info("controller disconnected", "id", id)
}

// HandleCommand dispatches one wire command. Unknown actions are dropped
// with a warning; the channel keeps running.
func (s *Session) HandleCommand(cmd *protocol.Command) {
	switch cmd.Kind() {
	case protocol.KindSteer:
		s.handleAxis(cmd.Val())
	case protocol.KindSteerPWM:
		s.registry.FocusTarget()
		s.engine.SetValue(cmd.Val())
	case protocol.KindSteerMode:
		mode, err := protocol.ParseMode(cmd.Mode)
		if err != nil {
			log.Warn("dropping mode switch", "error", err)
			return
		}
		s.SwitchMode(mode)
	case protocol.KindButton:
		s.handleButton(cmd)
	default:
		log.Warn("unknown action", "action", cmd.Action)
	}
}

// handleAxis forwards an analog steering value to the gamepad axis. Values
// within the change threshold of the last write are skipped.
func (s *Session) handleAxis(value float64) {
	axis := int32(value * device.AxisMax)
	last := s.lastAxis.Load()
	delta := axis - last
	if delta < 0 {
		delta = -delta
	}
	if delta <= axisChangeThreshold {
		return
	}
	s.registry.FocusTarget()
	if err := s.registry.Gamepad().EmitAxis(device.AbsX, axis); err != nil {
		log.Error("axis write failed", "error", err)
		return
	}
	s.lastAxis.Store(axis)
}

func (s *Session) handleButton(cmd *protocol.Command) {
	code, ok := device.KeyMap[cmd.Action]
	if !ok {
		log.Warn("unknown action", "action", cmd.Action)
		return
	}
	s.registry.FocusTarget()
	if cmd.Down() {
		s.buttons.press(code)
	} else {
		s.buttons.release(code)
	}
}

// SwitchMode hot-swaps the steering mode. Any key held under the old
// binding is released before the new key set is adopted.
func (s *Session) SwitchMode(mode protocol.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchModeLocked(mode)
	s.publishLocked()
}

func (s *Session) switchModeLocked(mode protocol.Mode) {
	if mode == s.mode {
		return
	}
	if keys, ok := modeKeys[mode]; ok {
		s.engine.SetKeys(keys)
		// Leaving gamepad mode must not leave a stale analog deflection.
		if s.lastAxis.Swap(0) != 0 {
			if err := s.registry.Gamepad().EmitAxis(device.AbsX, 0); err != nil {
				log.Error("axis reset failed", "error", err)
			}
		}
	} else {
		s.engine.Disable()
	}
	s.mode = mode
	log.Info("steering mode switched", "mode", mode)
}

// Mode returns the active steering mode.
func (s *Session) Mode() protocol.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Retarget points emission at a different window; the registry forces a
// release of held input before the swap.
func (s *Session) Retarget(id string) error {
	return s.registry.Retarget(id)
}

// ListTargets enumerates candidate output windows.
func (s *Session) ListTargets() ([]device.Target, error) {
	return s.registry.ListTargets()
}

// Target returns the current output window id.
func (s *Session) Target() string {
	return s.registry.Target()
}

// releaseInputs releases every held key and zeroes the analog axis. Safe to
// call from any task, any number of times.
func (s *Session) releaseInputs() {
	s.engine.ReleaseAll()
	s.buttons.releaseAll()
	if err := s.registry.Gamepad().EmitAxis(device.AbsX, 0); err != nil {
		log.Error("axis reset failed", "error", err)
	}
	s.lastAxis.Store(0)
	log.Info("all virtual inputs released")
}

// Shutdown runs the release-all cleanup exactly once, regardless of which
// task triggered it.
func (s *Session) Shutdown() {
	s.cleanup.Do(s.releaseInputs)
}
