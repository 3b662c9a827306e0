package device

import (
	"fmt"
	"sync"

	"github.com/uzairdeveloper223/DriveDroid/internal/log"
)

// Registry owns the virtual keyboard and gamepad for the process lifetime
// plus the current output target. Retargeting forces a release of held input
// before the new target becomes visible to emitters, so a key can never stay
// stuck down against the old window.
type Registry struct {
	keyboard Device
	gamepad  Device
	targets  TargetLister

	mu       sync.Mutex
	targetID string // "" = focused window, no explicit targeting

	// releaseHook releases every held key and zeroes the axis. Installed by
	// the session before any retarget can happen.
	releaseHook func()
}

// NewRegistry creates a registry over already-registered devices.
func NewRegistry(keyboard, gamepad Device, targets TargetLister) *Registry {
	return &Registry{
		keyboard: keyboard,
		gamepad:  gamepad,
		targets:  targets,
	}
}

// Keyboard returns the virtual keyboard.
func (r *Registry) Keyboard() Device {
	return r.keyboard
}

// Gamepad returns the virtual gamepad.
func (r *Registry) Gamepad() Device {
	return r.gamepad
}

// OnRetarget installs the release hook run before each retarget.
func (r *Registry) OnRetarget(hook func()) {
	r.mu.Lock()
	r.releaseHook = hook
	r.mu.Unlock()
}

// Target returns the current target window id, or "" when targeting is
// disabled.
func (r *Registry) Target() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.targetID
}

// ListTargets enumerates the candidate output windows.
func (r *Registry) ListTargets() ([]Target, error) {
	return r.targets.List()
}

// Retarget switches emission to the window with the given id, releasing any
// held input first. An unknown id is rejected and the previous target stays
// active. An empty id disables targeting.
func (r *Registry) Retarget(id string) error {
	if id != "" {
		targets, err := r.targets.List()
		if err != nil {
			return fmt.Errorf("cannot verify target: %w", err)
		}
		known := false
		for _, t := range targets {
			if t.ID == id {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown target window %q", id)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.releaseHook != nil {
		r.releaseHook()
	}
	r.targetID = id
	log.Info("output target changed", "target", id)
	return nil
}

// FocusTarget raises the target window before an emission. A no-op when
// targeting is disabled; focus failures are logged, not fatal.
func (r *Registry) FocusTarget() {
	r.mu.Lock()
	id := r.targetID
	r.mu.Unlock()

	if id == "" {
		return
	}
	if err := r.targets.Focus(id); err != nil {
		log.Error("failed to focus target window", "target", id, "error", err)
	}
}

// Close destroys both virtual devices.
func (r *Registry) Close() {
	if err := r.keyboard.Close(); err != nil {
		log.Error("keyboard destroy failed", "error", err)
	}
	if err := r.gamepad.Close(); err != nil {
		log.Error("gamepad destroy failed", "error", err)
	}
}
