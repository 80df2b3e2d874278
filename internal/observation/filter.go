package observation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// Reasons for excluding a file from a run.
const (
	SkipNotFITS   SkipReason = "not-fits"
	SkipTime      SkipReason = "time"
	SkipFrequency SkipReason = "frequency"
	SkipTelescope SkipReason = "telescope"
	SkipElevation SkipReason = "elevation"
)

// SkipReason explains why a file was left out.
type SkipReason string

func (r SkipReason) String() string {
	return string(r)
}

// FrequencyRange is an open centre frequency interval in MHz. A zero bound
// leaves that side unbounded.
type FrequencyRange struct {
	Lo float64
	Hi float64
}

// ParseFrequencyRange parses "lo:hi" in MHz. Either side may be empty.
func ParseFrequencyRange(s string) (FrequencyRange, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return FrequencyRange{}, fmt.Errorf("centre frequency range %q: expected format lo:hi", s)
	}

	var r FrequencyRange
	var err error
	if lo = strings.TrimSpace(lo); lo != "" {
		if r.Lo, err = strconv.ParseFloat(lo, 64); err != nil {
			return FrequencyRange{}, fmt.Errorf("centre frequency range %q: %w", s, err)
		}
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		if r.Hi, err = strconv.ParseFloat(hi, 64); err != nil {
			return FrequencyRange{}, fmt.Errorf("centre frequency range %q: %w", s, err)
		}
	}
	if r.Lo < 0 || r.Hi < 0 {
		return FrequencyRange{}, fmt.Errorf("centre frequency range %q: bounds cannot be negative", s)
	}
	return r, nil
}

// Contains reports whether f lies strictly inside the range.
func (r FrequencyRange) Contains(f float64) bool {
	return f > r.Lo && (r.Hi == 0 || f < r.Hi)
}

func (r FrequencyRange) String() string {
	return strconv.FormatFloat(r.Lo, 'f', -1, 64) + ":" + strconv.FormatFloat(r.Hi, 'f', -1, 64)
}

// Filter selects observation files by their metadata.
type Filter struct {
	Start           time.Time // Files must start after this time; zero for no bound
	End             time.Time // Files must end before this time; zero for no bound
	CenterFrequency FrequencyRange
	Telescope       string  // Required TELESCOP value; empty accepts any
	MinElevation    float64 // Minimum elevation at the start of the observation, degrees
}

// Reject returns the reason meta is excluded, or false when it is accepted.
func (f Filter) Reject(meta spectrum.Metadata) (SkipReason, bool) {
	switch {
	case !f.Start.IsZero() && !meta.DateObs.After(f.Start),
		!f.End.IsZero() && !meta.DateEnd.Before(f.End):
		return SkipTime, true
	case !f.CenterFrequency.Contains(meta.CenterFrequency):
		return SkipFrequency, true
	case f.Telescope != "" && !strings.EqualFold(meta.Telescope, f.Telescope):
		return SkipTelescope, true
	case meta.ElevationStart < f.MinElevation:
		return SkipElevation, true
	}
	return "", false
}
