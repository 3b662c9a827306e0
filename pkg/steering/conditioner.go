// Package steering implements the motion-to-actuation core: conditioning of
// raw tilt samples into normalized steering values on the controller side,
// and PWM key pulsing on the server side.
package steering

import (
	"math"
	"time"

	"github.com/uzairdeveloper223/DriveDroid/pkg/protocol"
)

// Tier ranks the quality of an orientation source. Higher-quality sources
// need less smoothing, so they get a larger filter coefficient.
type Tier int

const (
	// TierFused is a fused orientation source (game rotation vector).
	TierFused Tier = iota
	// TierGravity is a gravity-derived tilt source.
	TierGravity
	// TierAccel is a raw accelerometer source.
	TierAccel
)

// Alpha returns the low-pass filter coefficient for the tier.
func (t Tier) Alpha() float64 {
	switch t {
	case TierFused:
		return 0.6
	case TierGravity:
		return 0.35
	default:
		return 0.15
	}
}

// Emission hysteresis per steering mode. PWM values are interpreted by the
// pulse loop rather than displayed, so finer-grained updates are worth the
// extra traffic.
const (
	hysteresisGamepad = 0.02
	hysteresisPWM     = 0.005
)

// Sample is a single orientation reading from the sensor subsystem.
type Sample struct {
	Angle float64 // tilt in degrees, positive = right
	Time  time.Time
	Tier  Tier
}

// ConditionerConfig holds the tuning values for a Conditioner.
type ConditionerConfig struct {
	Deadzone float64 // degrees around center that map to zero
	MaxTilt  float64 // degrees of tilt for full lock
	Mode     protocol.Mode
}

// Conditioner turns noisy tilt samples into normalized steering commands.
// It applies a one-pole low-pass filter with a tier-dependent coefficient,
// then a deadzone + linear-scale transform into [-1, 1]. Values are emitted
// only when they move past the mode's hysteresis threshold.
//
// Conditioner is not safe for concurrent use; it is single-writer by design.
type Conditioner struct {
	cfg ConditionerConfig

	filtered    float64
	initialized bool

	lastSent float64
	sentAny  bool
}

// NewConditioner creates a Conditioner for the given tuning values.
func NewConditioner(cfg ConditionerConfig) *Conditioner {
	return &Conditioner{cfg: cfg}
}

// FilteredAngle returns the current filtered tilt in degrees.
// It is only meaningful after the first sample.
func (c *Conditioner) FilteredAngle() float64 {
	return c.filtered
}

// Ingest consumes one sample and returns a steering command when the
// normalized value has moved enough since the last emission.
func (c *Conditioner) Ingest(s Sample) (*protocol.Command, bool) {
	if !c.initialized {
		c.filtered = s.Angle
		c.initialized = true
	} else {
		alpha := s.Tier.Alpha()
		c.filtered += alpha * (s.Angle - c.filtered)
	}

	value := c.normalize(c.filtered)

	if c.sentAny && math.Abs(value-c.lastSent) <= c.threshold() {
		return nil, false
	}

	c.lastSent = value
	c.sentAny = true
	return c.command(value), true
}

// Reset clears the filter state and returns a centered command so the
// server releases any held input. Called on stop or disconnect.
func (c *Conditioner) Reset() *protocol.Command {
	c.filtered = 0
	c.initialized = false
	c.lastSent = 0
	c.sentAny = false
	return c.command(0)
}

// normalize maps a filtered tilt angle through the deadzone + linear scale
// into [-1, 1].
func (c *Conditioner) normalize(angle float64) float64 {
	abs := math.Abs(angle)
	if abs < c.cfg.Deadzone {
		return 0
	}
	span := c.cfg.MaxTilt - c.cfg.Deadzone
	if span <= 0 {
		span = 1
	}
	m := (abs - c.cfg.Deadzone) / span
	if m > 1 {
		m = 1
	}
	if angle < 0 {
		return -m
	}
	return m
}

func (c *Conditioner) threshold() float64 {
	if c.cfg.Mode == protocol.ModeGamepad {
		return hysteresisGamepad
	}
	return hysteresisPWM
}

func (c *Conditioner) command(value float64) *protocol.Command {
	if c.cfg.Mode == protocol.ModeGamepad {
		return protocol.NewSteer(value)
	}
	return protocol.NewSteerPWM(value)
}

// TiltFromAccel computes roll and pitch in degrees from raw accelerometer
// values, using the simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
//
// Roll is the steering axis for a phone held in landscape.
func TiltFromAccel(ax, ay, az float64) (roll, pitch float64) {
	roll = math.Atan2(ay, az) * 180.0 / math.Pi
	pitch = math.Atan2(-ax, math.Sqrt(ay*ay+az*az)) * 180.0 / math.Pi
	return roll, pitch
}
