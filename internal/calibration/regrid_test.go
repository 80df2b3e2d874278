package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridAxis(t *testing.T) {
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, NewGridAxis(0, 4, 5).Edges)
	assert.Equal(t, []float64{2}, NewGridAxis(2, 8, 1).Edges)
	assert.Empty(t, NewGridAxis(0, 1, 0).Edges)

	g := NewGridAxis(6668, 6669, 7)
	assert.Equal(t, 6669.0, g.Edges[6])
	for i := 1; i < len(g.Edges); i++ {
		assert.Greater(t, g.Edges[i], g.Edges[i-1])
	}
}

func TestNewGridAxis_ZeroExtent(t *testing.T) {
	g := NewGridAxis(5, 5, 4)
	assert.Equal(t, []float64{5, 5, 5, 5}, g.Edges)
	assert.Equal(t, 0, g.Bin(5))
	assert.Equal(t, 3, g.Bin(6))

	r, err := NewRegridder(4)
	require.NoError(t, err)
	require.NoError(t, r.Update([]float64{5, 5}, []float64{6668, 6669}, []float64{1, 3}))

	res := r.Result(1)
	assert.Equal(t, []int{2, 0, 0, 0}, res.Velocity.Count)
	assert.Equal(t, 2.0, res.Velocity.Average[0])
	assert.Equal(t, 3, res.Velocity.Empty)
}

func TestGridAxis_Bin(t *testing.T) {
	g := NewGridAxis(0, 3, 4)

	tests := map[float64]int{
		-1:  0, // below the grid
		0:   0,
		0.5: 1, // first edge not less than x
		1:   1,
		2.9: 3,
		3:   3,
		5:   3, // clamped to the last bin
	}
	for x, want := range tests {
		assert.Equal(t, want, g.Bin(x), "x=%v", x)
	}
}

func TestNewRegridder_InvalidBins(t *testing.T) {
	_, err := NewRegridder(0)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "regrid", cfgErr.Component)
}

func TestRegridder_SingleFileSingleBin(t *testing.T) {
	r, err := NewRegridder(1)
	require.NoError(t, err)

	signal := []float64{1, 2, 3, 4}
	require.NoError(t, r.Update([]float64{-3, -1, 1, 3}, []float64{10, 11, 12, 13}, signal))

	res := r.Result(1)
	for _, axis := range []AxisResult{res.Velocity, res.Frequency} {
		assert.Equal(t, []int{4}, axis.Count)
		assert.Equal(t, []float64{10}, axis.Sum)
		assert.InDelta(t, 2.5, axis.Average[0], 1e-12)
		assert.Zero(t, axis.Empty)
	}
	assert.Equal(t, []float64{-3}, res.Velocity.Edges)
	assert.Equal(t, []float64{10}, res.Frequency.Edges)
	assert.Equal(t, signal, res.ChannelAverage)
	assert.Equal(t, 1, res.Files)
}

func TestRegridder_EmptyBinsAreNaN(t *testing.T) {
	r, err := NewRegridder(5)
	require.NoError(t, err)
	require.NoError(t, r.Update([]float64{0, 4}, []float64{0, 4}, []float64{1, 2}))

	res := r.Result(1)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, res.Frequency.Edges)
	assert.Equal(t, []int{1, 0, 0, 0, 1}, res.Frequency.Count)
	assert.Equal(t, 3, res.Frequency.Empty)
	assert.Equal(t, 1.0, res.Frequency.Average[0])
	assert.Equal(t, 2.0, res.Frequency.Average[4])
	for _, v := range res.Frequency.Average[1:4] {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRegridder_GridOnlyWidens(t *testing.T) {
	r, err := NewRegridder(3)
	require.NoError(t, err)

	require.NoError(t, r.Update([]float64{1, 2}, []float64{1, 2}, []float64{1, 1}))
	assert.Equal(t, []float64{1, 1.5, 2}, r.Result(1).Frequency.Edges)

	require.NoError(t, r.Update([]float64{0, 3}, []float64{0, 3}, []float64{1, 1}))
	assert.Equal(t, []float64{0, 1.5, 3}, r.Result(2).Frequency.Edges)

	// A narrower file leaves the extent untouched.
	require.NoError(t, r.Update([]float64{1.4, 1.6}, []float64{1.4, 1.6}, []float64{1, 1}))
	res := r.Result(3)
	assert.Equal(t, []float64{0, 1.5, 3}, res.Frequency.Edges)
	assert.Equal(t, []float64{0, 1.5, 3}, res.Velocity.Edges)

	// Counts accumulated earlier keep their bins.
	assert.Equal(t, []int{2, 1, 3}, res.Frequency.Count)
	assert.Equal(t, 6, sumCounts(res.Frequency.Count))
}

func TestRegridder_ChannelAverage(t *testing.T) {
	r, err := NewRegridder(2)
	require.NoError(t, err)

	require.NoError(t, r.Update([]float64{0, 1}, []float64{0, 1}, []float64{1, 2}))
	require.NoError(t, r.Update([]float64{0, 1}, []float64{0, 1}, []float64{3, 4}))

	res := r.Result(2)
	assert.Equal(t, []float64{4, 6}, res.ChannelSum)
	assert.InDeltaSlice(t, []float64{2, 3}, res.ChannelAverage, 1e-12)
	assert.Equal(t, 2, r.Files())

	// The result is detached from the regridder.
	res.ChannelSum[0] = 100
	assert.Equal(t, 4.0, r.Result(2).ChannelSum[0])
}

func TestRegridder_UpdateErrors(t *testing.T) {
	r, err := NewRegridder(2)
	require.NoError(t, err)

	assert.Error(t, r.Update(nil, nil, nil))
	assert.Error(t, r.Update([]float64{1}, []float64{1, 2}, []float64{1, 2}))
	assert.Error(t, r.Update([]float64{1, math.NaN()}, []float64{1, 2}, []float64{1, 2}))

	require.NoError(t, r.Update([]float64{1, 2}, []float64{1, 2}, []float64{1, 2}))
	assert.Error(t, r.Update([]float64{1, 2, 3}, []float64{1, 2, 3}, []float64{1, 2, 3}))
	assert.Equal(t, 1, r.Files())
}

func sumCounts(counts []int) int {
	var n int
	for _, c := range counts {
		n += c
	}
	return n
}
