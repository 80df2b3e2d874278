package storage

import (
	"context"
	"time"

	"github.com/roman-kulish/spectral-calibration/internal/calibration"
	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// Axis names of the archived bins.
const (
	AxisVelocity  = "velocity"
	AxisFrequency = "frequency"
)

// Store archives calibration runs so that products can be compared across
// nights without re-reading the FITS products.
type Store interface {
	// SaveRun stores the configuration, per-file metadata, both regridded axes
	// and the per-channel average of p in a single transaction and returns the
	// new run identifier.
	SaveRun(ctx context.Context, p *calibration.Product, created time.Time) (runID int64, err error)

	// Run returns the run with the given identifier.
	Run(ctx context.Context, id int64) (*Run, error)

	// Runs returns every archived run in insertion order.
	Runs(ctx context.Context) ([]*Run, error)

	// Bins returns the bins of one axis of a run ordered by bin index. Empty
	// bins have a NaN average.
	Bins(ctx context.Context, runID int64, axis string) ([]Bin, error)

	// Channels returns the per-channel average of a run ordered by channel.
	Channels(ctx context.Context, runID int64) ([]Channel, error)

	// Close releases the database connections.
	Close() error
}

// RunConfig is the archived form of calibration.Config.
type RunConfig struct {
	Channels      string   `json:"channels"`
	Polarization  string   `json:"polarization"`
	RestFrequency *float64 `json:"restFrequency,omitempty"`
	Bins          int      `json:"bins"`
	Median        bool     `json:"median"`
}

// Run is one archived calibration run.
type Run struct {
	ID           int64
	Created      time.Time
	Object       string
	Telescope    string
	DateObs      time.Time
	DateEnd      time.Time
	Files        int
	Config       RunConfig
	Observations []spectrum.Metadata
}

// Bin is one archived regrid bin.
type Bin struct {
	Index   int
	Edge    float64
	Average float64
	Sum     float64
	Count   int
}

// Channel is the archived average signal of one channel.
type Channel struct {
	Channel int
	Average float64
}

func toRunConfig(c calibration.Config) RunConfig {
	return RunConfig{
		Channels:      c.Channels.String(),
		Polarization:  c.Polarization.Token(),
		RestFrequency: c.RestFrequency,
		Bins:          c.Bins,
		Median:        c.Median,
	}
}
