package calibration

import (
	"math"
	"strings"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// Polarization selects how the two circular polarization channels are reduced
// to one working signal.
type Polarization int

const (
	Right Polarization = iota // RHCP only
	Left                      // LHCP only
	Both                      // Normalized RHCP + normalized LHCP
)

// ParsePolarization parses the R, L or B token (case-insensitive).
func ParsePolarization(s string) (Polarization, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "R", "":
		return Right, nil
	case "L":
		return Left, nil
	case "B":
		return Both, nil
	default:
		return Right, &ConfigurationError{Component: "polarization", Value: s, Reason: "expected one of R, L, B"}
	}
}

// Token returns the single letter configuration token.
func (p Polarization) Token() string {
	switch p {
	case Left:
		return "L"
	case Both:
		return "B"
	default:
		return "R"
	}
}

func (p Polarization) String() string {
	switch p {
	case Left:
		return "LHCP"
	case Both:
		return "RHCP+LHCP"
	default:
		return "RHCP"
	}
}

// Combine reduces rhcp and lhcp (channels x files, already channel-sliced) into
// one working signal of identical shape. The inputs are never modified.
func (p Polarization) Combine(rhcp, lhcp spectrum.Matrix) (spectrum.Matrix, error) {
	if !rhcp.SameShape(lhcp) {
		return nil, &ConfigurationError{Component: "polarization", Value: p.Token(), Reason: "RHCP and LHCP shapes differ"}
	}

	switch p {
	case Right:
		if err := checkSignal(rhcp, "RHCP"); err != nil {
			return nil, err
		}
		return rhcp.Clone(), nil

	case Left:
		if err := checkSignal(lhcp, "LHCP"); err != nil {
			return nil, err
		}
		return lhcp.Clone(), nil

	case Both:
		r, err := normalize(rhcp, "RHCP")
		if err != nil {
			return nil, err
		}
		l, err := normalize(lhcp, "LHCP")
		if err != nil {
			return nil, err
		}
		for c := range r {
			for f := range r[c] {
				r[c][f] += l[c][f]
			}
		}
		return r, nil

	default:
		return nil, &ConfigurationError{Component: "polarization", Value: p.Token(), Reason: "unknown polarization"}
	}
}

// normalize min-max scales a copy of m into [0, 1] over its full extent.
func normalize(m spectrum.Matrix, name string) (spectrum.Matrix, error) {
	if err := checkSignal(m, name); err != nil {
		return nil, err
	}
	lo, hi := m.MinMax()
	if hi == lo {
		return nil, &DegenerateSignalError{Polarization: name, Value: lo}
	}

	out := m.Clone()
	span := hi - lo
	for _, row := range out {
		for f, v := range row {
			row[f] = (v - lo) / span
		}
	}
	return out, nil
}

// checkSignal rejects NaN and infinite samples, which would otherwise spread
// through normalization and regridding unnoticed.
func checkSignal(m spectrum.Matrix, name string) error {
	for c, row := range m {
		for f, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &NonFiniteSignalError{Polarization: name, Channel: c, File: f, Value: v}
			}
		}
	}
	return nil
}
