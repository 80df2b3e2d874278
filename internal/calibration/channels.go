package calibration

import (
	"strconv"
	"strings"
)

// MaxChannels is the number of channels produced by the spectrometer.
const MaxChannels = 4096

// ChannelRange is a validated half-open channel interval [Lo, Hi) used to cut
// every per-file array to a common analysis band.
type ChannelRange struct {
	Lo int
	Hi int
}

// ParseChannelRange parses a "lo:hi" channel range.
func ParseChannelRange(s string) (ChannelRange, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ChannelRange{}, &ConfigurationError{Component: "channels", Value: s, Reason: "expected format lo:hi"}
	}

	l, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return ChannelRange{}, &ConfigurationError{Component: "channels", Value: s, Reason: "lower channel is not an integer"}
	}
	h, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return ChannelRange{}, &ConfigurationError{Component: "channels", Value: s, Reason: "upper channel is not an integer"}
	}

	return NewChannelRange(l, h)
}

// NewChannelRange validates 0 <= lo < hi <= MaxChannels.
func NewChannelRange(lo, hi int) (ChannelRange, error) {
	value := strconv.Itoa(lo) + ":" + strconv.Itoa(hi)
	switch {
	case lo < 0:
		return ChannelRange{}, &ConfigurationError{Component: "channels", Value: value, Reason: "lower channel cannot be negative"}
	case hi <= lo:
		return ChannelRange{}, &ConfigurationError{Component: "channels", Value: value, Reason: "upper channel must be greater than lower channel"}
	case hi > MaxChannels:
		return ChannelRange{}, &ConfigurationError{Component: "channels", Value: value, Reason: "upper channel exceeds " + strconv.Itoa(MaxChannels)}
	}
	return ChannelRange{Lo: lo, Hi: hi}, nil
}

// Len returns the number of channels in the range.
func (r ChannelRange) Len() int {
	return r.Hi - r.Lo
}

func (r ChannelRange) String() string {
	return strconv.Itoa(r.Lo) + ":" + strconv.Itoa(r.Hi)
}

// Slice returns the part of values that falls inside the range. Bounds beyond
// the array length are clamped, so a short spectrum yields fewer channels.
// The returned slice aliases values.
func (r ChannelRange) Slice(values []float64) []float64 {
	lo, hi := r.bounds(len(values))
	return values[lo:hi]
}

// SliceInts is Slice for channel index arrays.
func (r ChannelRange) SliceInts(values []int) []int {
	lo, hi := r.bounds(len(values))
	return values[lo:hi]
}

func (r ChannelRange) bounds(n int) (int, int) {
	return min(r.Lo, n), min(r.Hi, n)
}
