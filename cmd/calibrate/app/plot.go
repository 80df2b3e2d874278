package app

import (
	"fmt"
	"math"
	"strings"

	"github.com/roman-kulish/spectral-calibration/internal/calibration"
)

// PlotKind selects the series drawn by the plot mode.
type PlotKind string

const (
	PlotNone            PlotKind = ""
	PlotRegridVelocity  PlotKind = "regrid-velocity"
	PlotRegridFrequency PlotKind = "regrid-frequency"
	PlotSumVelocity     PlotKind = "sum-velocity"
	PlotSumFrequency    PlotKind = "sum-frequency"
	PlotVelocity        PlotKind = "velocity"
	PlotFrequency       PlotKind = "frequency"
	PlotChannels        PlotKind = "channels"
	PlotBins            PlotKind = "bins"
)

// short command line tokens accepted for each kind
var plotKindAliases = map[string]PlotKind{
	"rv":   PlotRegridVelocity,
	"rf":   PlotRegridFrequency,
	"sumv": PlotSumVelocity,
	"sumf": PlotSumFrequency,
	"v":    PlotVelocity,
	"f":    PlotFrequency,
	"c":    PlotChannels,
	"b":    PlotBins,
}

var validPlotKinds = map[PlotKind]struct{}{
	PlotNone:            {},
	PlotRegridVelocity:  {},
	PlotRegridFrequency: {},
	PlotSumVelocity:     {},
	PlotSumFrequency:    {},
	PlotVelocity:        {},
	PlotFrequency:       {},
	PlotChannels:        {},
	PlotBins:            {},
}

// ParsePlotKind accepts a kind name or its short token, case-insensitive.
func ParsePlotKind(s string) (PlotKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if kind, ok := plotKindAliases[s]; ok {
		return kind, nil
	}
	if _, ok := validPlotKinds[PlotKind(s)]; ok {
		return PlotKind(s), nil
	}
	return PlotNone, fmt.Errorf("invalid plot kind: %s", s)
}

// Series is one polyline. NaN values break the line.
type Series struct {
	X []float64
	Y []float64
}

// Figure is the data and labelling of one plot.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
	Info   []string // Metadata block lines, empty when disabled
}

// Bounds returns the extent of every finite point of the figure.
func (f *Figure) Bounds() (xMin, xMax, yMin, yMax float64, ok bool) {
	xMin, yMin = math.Inf(1), math.Inf(1)
	xMax, yMax = math.Inf(-1), math.Inf(-1)
	for _, s := range f.Series {
		for i := range s.X {
			x, y := s.X[i], s.Y[i]
			if !finite(x) || !finite(y) {
				continue
			}
			xMin, xMax = min(xMin, x), max(xMax, x)
			yMin, yMax = min(yMin, y), max(yMax, y)
			ok = true
		}
	}
	return
}

const powerLabel = "Power [ADU]"

// NewFigure builds the series of kind from a calibrated product. PlotNone
// yields an empty figure.
func NewFigure(kind PlotKind, p *calibration.Product) (*Figure, error) {
	fig := Figure{Title: plotTitle(p), YLabel: powerLabel}
	res := p.Result

	switch kind {
	case PlotNone:

	case PlotRegridVelocity:
		fig.XLabel = "Gridded velocity, v LSRK [km/s]"
		fig.Series = []Series{{X: res.Velocity.Edges, Y: res.Velocity.Average}}

	case PlotRegridFrequency:
		fig.XLabel = "Gridded frequency [MHz]"
		fig.Series = []Series{{X: res.Frequency.Edges, Y: res.Frequency.Average}}

	case PlotSumVelocity:
		fig.XLabel = "Bin number"
		fig.YLabel = "Cumulative velocity sum [ADU]"
		fig.Series = []Series{{X: indices(len(res.Velocity.Sum)), Y: res.Velocity.Sum}}

	case PlotSumFrequency:
		fig.XLabel = "Bin number"
		fig.YLabel = "Cumulative frequency sum [ADU]"
		fig.Series = []Series{{X: indices(len(res.Frequency.Sum)), Y: res.Frequency.Sum}}

	case PlotVelocity:
		fig.XLabel = "Velocity, v LSRK [km/s]"
		fig.Series = perFile(p, func(f int) []float64 { return p.Velocity.Column(f) })

	case PlotFrequency:
		fig.XLabel = "Frequency [MHz]"
		fig.Series = perFile(p, func(f int) []float64 { return p.Frequency.Column(f) })

	case PlotChannels:
		fig.XLabel = fmt.Sprintf("Channels [%s]", p.Config.Channels)
		x := make([]float64, len(p.Channels))
		for i, c := range p.Channels {
			x[i] = float64(c)
		}
		fig.Series = perFile(p, func(int) []float64 { return x })

	case PlotBins:
		fig.XLabel = "Bin number"
		fig.YLabel = "Number of measurements"
		y := make([]float64, len(res.Velocity.Count))
		for i, n := range res.Velocity.Count {
			y[i] = float64(n)
		}
		fig.Series = []Series{{X: indices(len(y)), Y: y}}

	default:
		return nil, fmt.Errorf("invalid plot kind: %s", kind)
	}

	return &fig, nil
}

func perFile(p *calibration.Product, x func(f int) []float64) []Series {
	series := make([]Series, p.FileCount())
	for f := range series {
		series[f] = Series{X: x(f), Y: p.Signal.Column(f)}
	}
	return series
}

// plotTitle is "<OBJECT>, <first date>" or "<OBJECT>, <first> -> <last>".
func plotTitle(p *calibration.Product) string {
	if p.FileCount() == 0 {
		return ""
	}
	first := p.Observations[0].DateObs.UTC().Format("2006-01-02")
	last := p.Observations[p.FileCount()-1].DateObs.UTC().Format("2006-01-02")

	date := first
	if first != last {
		date = first + " -> " + last
	}
	return strings.ToUpper(p.Observations[0].Object) + ", " + date
}

func indices(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
