package steering

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uzairdeveloper223/DriveDroid/internal/log"
)

// PWM tuning. A 50ms cycle gives a 20Hz refresh; shorter is smoother but the
// game may miss inputs.
const (
	// DefaultCycle is the total PWM cycle duration.
	DefaultCycle = 50 * time.Millisecond

	// centerThreshold is the magnitude below which the key is never pressed.
	centerThreshold = 0.04

	// fullLockThreshold is the magnitude above which the key is held
	// permanently.
	fullLockThreshold = 0.97

	// minOffTime guarantees the game always registers a key-up between
	// pulses.
	minOffTime = 8 * time.Millisecond
)

// KeyEmitter emits key transitions on the active output device.
type KeyEmitter interface {
	EmitKey(code int, pressed bool) error
}

// KeyPair holds the left/right key codes for one steering key binding.
type KeyPair struct {
	Left  int
	Right int
}

// splitPeriod divides one PWM period into hold and release times for the
// given magnitude. The off time never drops below minOffTime so a key-up is
// always observable between pulses.
func splitPeriod(m float64, period time.Duration) (hold, off time.Duration) {
	hold = time.Duration(m * float64(period))
	off = period - hold
	if off < minOffTime {
		off = minOffTime
		hold = period - off
	}
	return hold, off
}

// Engine simulates analog steering over binary keyboard keys using PWM.
//
// Each cycle is period long. The key is held down for magnitude·period, then
// released for the remainder. Magnitude 0 leaves the key untouched, magnitude
// 1 holds it continuously. The requested value is a last-write-wins cell: a
// value arriving mid-cycle governs the next cycle, it never truncates the
// pulse in flight.
type Engine struct {
	emitter KeyEmitter
	period  time.Duration

	mu       sync.Mutex
	target   float64 // requested value, written by the channel task
	keys     KeyPair
	enabled  bool
	held     int // key code currently down, 0 = none
	fullLock bool
	release  *time.Timer // pending mid-cycle key-up
	cycle    uint64      // bumped per cycle; invalidates stale release timers

	tickCount atomic.Uint64
}

// NewEngine creates a PWM engine pulsing keys through emitter. The engine
// starts disabled; call SetKeys to bind a key pair.
func NewEngine(emitter KeyEmitter, period time.Duration) *Engine {
	if period <= 0 {
		period = DefaultCycle
	}
	return &Engine{
		emitter: emitter,
		period:  period,
	}
}

// Period returns the PWM cycle duration.
func (e *Engine) Period() time.Duration {
	return e.period
}

// SetValue updates the steering target (-1.0 … 1.0). Called from the channel
// task; takes effect at the next cycle boundary.
func (e *Engine) SetValue(value float64) {
	e.mu.Lock()
	e.target = math.Max(-1.0, math.Min(1.0, value))
	e.mu.Unlock()
}

// SetKeys hot-swaps the steering key binding and enables pulsing. Any key
// held under the old binding is released first so no key sticks across the
// swap.
func (e *Engine) SetKeys(keys KeyPair) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked()
	e.fullLock = false
	e.keys = keys
	e.enabled = true
}

// Disable releases any held key and stops pulsing until the next SetKeys.
// Used when steering switches to the analog gamepad path.
func (e *Engine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked()
	e.fullLock = false
	e.enabled = false
	e.target = 0
}

// ReleaseAll immediately releases any held key and zeroes the target.
// Safe to call from any task; used on disconnect and shutdown.
func (e *Engine) ReleaseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopReleaseTimerLocked()
	e.releaseLocked()
	e.fullLock = false
	e.target = 0
}

// HoldingKey returns the key code currently held, or 0.
func (e *Engine) HoldingKey() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.held
}

// Run drives the PWM cycle until ctx is cancelled, then releases any held
// key. A late tick skips to the next cycle boundary; missed cycles are never
// compensated with extra pulses.
func (e *Engine) Run(ctx context.Context) {
	log.Info("PWM steering loop started", "period", e.period)
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.ReleaseAll()
			log.Info("PWM steering loop stopped")
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick runs one cycle boundary: read the latest target, press the key for
// this cycle and schedule its release.
func (e *Engine) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount.Add(1)
	e.cycle++
	e.stopReleaseTimerLocked()

	if !e.enabled {
		e.releaseLocked()
		return
	}

	value := e.target
	abs := math.Abs(value)

	// Center: release everything
	if abs < centerThreshold {
		e.fullLock = false
		e.releaseLocked()
		return
	}

	key := e.keys.Right
	if value < 0 {
		key = e.keys.Left
	}

	// Full lock: hold continuously, no per-cycle toggling
	if abs >= fullLockThreshold {
		e.pressLocked(key)
		e.fullLock = true
		return
	}

	e.fullLock = false
	hold, _ := splitPeriod(abs, e.period)
	e.pressLocked(key)
	cycle := e.cycle
	e.release = time.AfterFunc(hold, func() { e.releaseHeld(cycle) })
}

// releaseHeld is the deferred key-up at the end of a pulse. A timer that
// fired for an earlier cycle is ignored.
func (e *Engine) releaseHeld(cycle uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cycle != cycle {
		return
	}
	e.releaseLocked()
}

// pressLocked presses key, releasing any other held key first. Directional
// keys are mutually exclusive at all times.
func (e *Engine) pressLocked(key int) {
	if e.held == key {
		return
	}
	e.releaseLocked()
	if err := e.emitter.EmitKey(key, true); err != nil {
		log.Error("key press failed", "key", key, "error", err)
		return
	}
	e.held = key
}

// releaseLocked releases the held key, if any.
func (e *Engine) releaseLocked() {
	if e.held == 0 {
		return
	}
	if err := e.emitter.EmitKey(e.held, false); err != nil {
		log.Error("key release failed", "key", e.held, "error", err)
	}
	e.held = 0
}

func (e *Engine) stopReleaseTimerLocked() {
	if e.release != nil {
		e.release.Stop()
		e.release = nil
	}
}
