package calibration

import (
	"fmt"
	"slices"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// BaselineSubtractor removes a running median baseline from combined signals.
//
// Every call mean-centers its input, appends it to the history and subtracts a
// median profile computed over the whole history, so later calls see a more
// refined baseline. Recomputing the profile walks every stored signal, which is
// O(n^2) over a run with many calls; production runs call Subtract once.
type BaselineSubtractor struct {
	history []spectrum.Matrix
}

// NewBaselineSubtractor creates a subtractor with an empty history.
func NewBaselineSubtractor() *BaselineSubtractor {
	return &BaselineSubtractor{}
}

// Calls returns the number of signals folded into the history so far.
func (b *BaselineSubtractor) Calls() int {
	return len(b.history)
}

// Subtract mean-centers y per channel and subtracts the running median profile,
// modifying y in place. Every call must use the same number of channels.
func (b *BaselineSubtractor) Subtract(y spectrum.Matrix) error {
	channels, files := y.Shape()
	if channels == 0 || files == 0 {
		return fmt.Errorf("baseline: empty signal")
	}
	if len(b.history) > 0 {
		if hc, _ := b.history[0].Shape(); hc != channels {
			return fmt.Errorf("baseline: signal has %d channels, history has %d", channels, hc)
		}
	}

	for _, row := range y {
		var sum float64
		for _, v := range row {
			sum += v
		}
		mean := sum / float64(len(row))
		for f := range row {
			row[f] -= mean
		}
	}

	b.history = append(b.history, y.Clone())

	profile := b.profile(channels)
	for c, row := range y {
		for f := range row {
			row[f] -= profile[c]
		}
	}
	return nil
}

// profile returns, per channel, the median over historical calls of the
// per-call median across files. With a single call this is simply the median
// across the files of that call. With several calls the per-call medians are
// reduced to one value per channel rather than subtracted as a
// channels x calls profile, so y keeps its shape whatever the history length.
func (b *BaselineSubtractor) profile(channels int) []float64 {
	profile := make([]float64, channels)
	perCall := make([]float64, len(b.history))
	var scratch []float64

	for c := range channels {
		for k, m := range b.history {
			scratch = append(scratch[:0], m[c]...)
			perCall[k] = median(scratch)
		}
		profile[c] = median(perCall)
	}
	return profile
}

// median sorts values in place and returns their median.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	slices.Sort(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
