package session

import (
	"sync"

	"github.com/uzairdeveloper223/DriveDroid/internal/log"
	"github.com/uzairdeveloper223/DriveDroid/pkg/device"
)

// buttons tracks the non-steering keys currently held on the virtual
// keyboard, so presses are idempotent and a release-all is always possible.
type buttons struct {
	keyboard device.Device

	mu   sync.Mutex
	held map[int]bool
}

func newButtons(keyboard device.Device) *buttons {
	return &buttons{
		keyboard: keyboard,
		held:     make(map[int]bool),
	}
}

// press emits a key-down unless the key is already held.
func (b *buttons) press(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.held[code] {
		return
	}
	if err := b.keyboard.EmitKey(code, true); err != nil {
		log.Error("button press failed", "key", code, "error", err)
		return
	}
	b.held[code] = true
}

// release emits a key-up unless the key is already up.
func (b *buttons) release(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.held[code] {
		return
	}
	if err := b.keyboard.EmitKey(code, false); err != nil {
		log.Error("button release failed", "key", code, "error", err)
	}
	delete(b.held, code)
}

// releaseAll releases every held key.
func (b *buttons) releaseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for code := range b.held {
		if err := b.keyboard.EmitKey(code, false); err != nil {
			log.Error("button release failed", "key", code, "error", err)
		}
	}
	b.held = make(map[int]bool)
}

// heldCount returns how many keys are currently down.
func (b *buttons) heldCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.held)
}
