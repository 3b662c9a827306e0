// Package config provides configuration helpers for DriveDroid commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default server configuration.
const (
	DefaultPort     = "8765"
	DefaultCycle    = 50 * time.Millisecond
	DefaultDeadzone = 3.0  // degrees
	DefaultMaxTilt  = 30.0 // degrees
)

// Port returns the listen port from DRIVEDROID_PORT or the default.
func Port() string {
	if p := os.Getenv("DRIVEDROID_PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// CyclePeriod returns the PWM cycle period from DRIVEDROID_CYCLE_MS
// or the default 50ms (20Hz).
func CyclePeriod() time.Duration {
	if ms := os.Getenv("DRIVEDROID_CYCLE_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			return time.Duration(v) * time.Millisecond
		}
	}
	return DefaultCycle
}

// Deadzone returns the tilt deadzone in degrees from DRIVEDROID_DEADZONE
// or the default.
func Deadzone() float64 {
	return envFloat("DRIVEDROID_DEADZONE", DefaultDeadzone)
}

// MaxTilt returns the full-lock tilt angle in degrees from
// DRIVEDROID_MAX_TILT or the default.
func MaxTilt() float64 {
	return envFloat("DRIVEDROID_MAX_TILT", DefaultMaxTilt)
}

// LogLevel returns the log level from LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

func envFloat(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return def
}
