package calibration

import (
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/algo-vecmath"
)

// GridAxis is an evenly spaced set of bin edges spanning [Min, Max].
type GridAxis struct {
	Min   float64
	Max   float64
	Edges []float64
}

// NewGridAxis partitions [lo, hi] into n evenly spaced edges. A single edge
// sits at lo. The edges are strictly increasing only when lo < hi; when
// lo == hi every edge equals lo, and Bin puts every sample at that value into
// bin 0, leaving the other bins empty.
func NewGridAxis(lo, hi float64, n int) GridAxis {
	edges := make([]float64, n)
	switch n {
	case 0:
	case 1:
		edges[0] = lo
	default:
		step := (hi - lo) / float64(n-1)
		for i := range edges {
			edges[i] = lo + float64(i)*step
		}
		edges[n-1] = hi
	}
	return GridAxis{Min: lo, Max: hi, Edges: edges}
}

// Bin returns the index of the first edge that is not less than x, pinned to
// the last bin for values beyond the grid.
func (g GridAxis) Bin(x float64) int {
	i := sort.SearchFloat64s(g.Edges, x)
	if i >= len(g.Edges) {
		i = len(g.Edges) - 1
	}
	return i
}

// axisAccumulator owns one grid and its running per-bin sum and count.
type axisAccumulator struct {
	grid  GridAxis
	lo    float64
	hi    float64
	sum   []float64
	count []int
}

func newAxisAccumulator(bins int) axisAccumulator {
	return axisAccumulator{
		lo:    math.Inf(1),
		hi:    math.Inf(-1),
		sum:   make([]float64, bins),
		count: make([]int, bins),
	}
}

// widen expands the running extent with the values of x and rebuilds the grid.
func (a *axisAccumulator) widen(x []float64) {
	for _, v := range x {
		a.lo = min(a.lo, v)
		a.hi = max(a.hi, v)
	}
	a.grid = NewGridAxis(a.lo, a.hi, len(a.sum))
}

// fold bins every sample of x against the current grid and adds y into it.
func (a *axisAccumulator) fold(x, y []float64) {
	for i, v := range x {
		bin := a.grid.Bin(v)
		a.sum[bin] += y[i]
		a.count[bin]++
	}
}

func (a *axisAccumulator) result() AxisResult {
	r := AxisResult{
		Edges:   append([]float64(nil), a.grid.Edges...),
		Sum:     append([]float64(nil), a.sum...),
		Count:   append([]int(nil), a.count...),
		Average: make([]float64, len(a.sum)),
	}
	for i, n := range a.count {
		if n == 0 {
			r.Average[i] = math.NaN()
			r.Empty++
			continue
		}
		r.Average[i] = a.sum[i] / float64(n)
	}
	return r
}

// AxisResult is the regridded product along one axis.
type AxisResult struct {
	Edges   []float64 // Grid edges, strictly increasing when the axis has any extent
	Average []float64 // Sum / Count per bin, NaN for empty bins
	Sum     []float64
	Count   []int
	Empty   int // Number of bins that received no samples
}

// Result is the calibrated data product of a Regridder.
type Result struct {
	Frequency      AxisResult
	Velocity       AxisResult
	ChannelSum     []float64 // Running element-wise sum of every file's signal
	ChannelAverage []float64 // ChannelSum / file count
	Files          int       // Number of files folded in
}

// Regridder folds per-file (velocity, frequency, signal) triples onto a shared
// frequency grid and a shared velocity grid.
//
// The global extent only ever widens, and every update bins against the grid
// derived from the extent at that moment. Counts from earlier updates keep
// their bin index, so intermediate results are approximate; Result always
// reports the edges of the final extent.
type Regridder struct {
	bins       int
	frequency  axisAccumulator
	velocity   axisAccumulator
	channelSum []float64
	files      int
}

// NewRegridder creates a regridder with the given number of bins per axis.
func NewRegridder(bins int) (*Regridder, error) {
	if bins < 1 {
		return nil, &ConfigurationError{Component: "regrid", Value: fmt.Sprint(bins), Reason: "bin count must be at least 1"}
	}
	return &Regridder{
		bins:      bins,
		frequency: newAxisAccumulator(bins),
		velocity:  newAxisAccumulator(bins),
	}, nil
}

// Bins returns the configured number of bins per axis.
func (r *Regridder) Bins() int {
	return r.bins
}

// Update folds one file into both grids. velocity, frequency and signal are
// aligned per channel.
func (r *Regridder) Update(velocity, frequency, signal []float64) error {
	n := len(signal)
	if n == 0 {
		return fmt.Errorf("regrid: empty signal")
	}
	if len(velocity) != n || len(frequency) != n {
		return fmt.Errorf("regrid: misaligned axes: %d velocities, %d frequencies, %d samples", len(velocity), len(frequency), n)
	}
	if r.channelSum != nil && len(r.channelSum) != n {
		return fmt.Errorf("regrid: signal has %d channels, previous files had %d", n, len(r.channelSum))
	}
	if err := checkFinite("frequency", frequency); err != nil {
		return err
	}
	if err := checkFinite("velocity", velocity); err != nil {
		return err
	}

	r.frequency.widen(frequency)
	r.velocity.widen(velocity)

	r.frequency.fold(frequency, signal)
	r.velocity.fold(velocity, signal)

	if r.channelSum == nil {
		r.channelSum = append([]float64(nil), signal...)
	} else {
		vecmath.AddBlockInPlace(r.channelSum, signal)
	}
	r.files++
	return nil
}

// Files returns the number of files folded in so far.
func (r *Regridder) Files() int {
	return r.files
}

// Result computes the per-bin averages and the per-channel average over
// fileCount files. The returned slices are copies.
func (r *Regridder) Result(fileCount int) Result {
	res := Result{
		Frequency:  r.frequency.result(),
		Velocity:   r.velocity.result(),
		ChannelSum: append([]float64(nil), r.channelSum...),
		Files:      r.files,
	}
	if fileCount > 0 && len(r.channelSum) > 0 {
		res.ChannelAverage = make([]float64, len(r.channelSum))
		vecmath.ScaleBlock(res.ChannelAverage, r.channelSum, 1/float64(fileCount))
	}
	return res
}

func checkFinite(axis string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("regrid: %s axis has non-finite value %v at channel %d", axis, v, i)
		}
	}
	return nil
}
