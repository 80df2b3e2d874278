package calibration

import (
	"fmt"
)

// ConfigurationError reports an invalid configuration value. It is fatal to the run.
type ConfigurationError struct {
	Component string // Component that rejected the value, e.g. "channels"
	Value     string // Offending value as configured
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: invalid value %q: %s", e.Component, e.Value, e.Reason)
}

// MissingRestFrequencyError is returned by the velocity converter when no rest
// frequency was configured. It unwraps to a ConfigurationError.
type MissingRestFrequencyError struct{}

func (e *MissingRestFrequencyError) Error() string {
	return "velocity: rest frequency is not configured"
}

func (e *MissingRestFrequencyError) Unwrap() error {
	return &ConfigurationError{Component: "velocity", Value: "", Reason: "rest frequency is required"}
}

// UnknownTelescopeLocationError is returned when the telescope has no known
// geodetic coordinates.
type UnknownTelescopeLocationError struct {
	Telescope string
}

func (e *UnknownTelescopeLocationError) Error() string {
	return fmt.Sprintf("velocity: no location known for telescope %q", e.Telescope)
}

// DegenerateSignalError is returned when a polarization array has no dynamic
// range and cannot be min-max normalized.
type DegenerateSignalError struct {
	Polarization string // "RHCP" or "LHCP"
	Value        float64
}

func (e *DegenerateSignalError) Error() string {
	return fmt.Sprintf("polarization: %s signal has no dynamic range (every value is %g)", e.Polarization, e.Value)
}

// NonFiniteSignalError is returned when a polarization array holds a NaN or
// infinite sample.
type NonFiniteSignalError struct {
	Polarization string // "RHCP" or "LHCP"
	Channel      int    // Row of the channel-sliced signal
	File         int
	Value        float64
}

func (e *NonFiniteSignalError) Error() string {
	return fmt.Sprintf("polarization: %s signal has non-finite value %v at channel %d of file %d", e.Polarization, e.Value, e.Channel, e.File)
}

// InsufficientDataError reports that too few observation files are available.
// Zero files is fatal; a count below Minimum is only worth a warning.
type InsufficientDataError struct {
	Count   int
	Minimum int
}

func (e *InsufficientDataError) Error() string {
	if e.Count == 0 {
		return "no observation files with relevant data"
	}
	return fmt.Sprintf("low file count %d (recommended at least %d), results may vary", e.Count, e.Minimum)
}

// Fatal reports whether the condition must abort the run.
func (e *InsufficientDataError) Fatal() bool {
	return e.Count == 0
}
