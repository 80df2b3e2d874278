package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// MinimumFiles is the number of observation files below which results are
// considered unreliable.
const MinimumFiles = 5

// Pipeline stages reported to a Recorder.
const (
	StageSelect   = "select"
	StageCombine  = "combine"
	StageBaseline = "baseline"
	StageVelocity = "velocity"
	StageRegrid   = "regrid"
)

// Config is the validated, immutable configuration of a calibration run.
type Config struct {
	Channels      ChannelRange
	Polarization  Polarization
	RestFrequency *float64 // MHz, nil when not configured
	Bins          int
	Median        bool // Subtract the running median baseline
}

// Validate checks the values that do not depend on the observations.
func (c Config) Validate() error {
	if _, err := NewChannelRange(c.Channels.Lo, c.Channels.Hi); err != nil {
		return err
	}
	if c.Bins < 1 {
		return &ConfigurationError{Component: "regrid", Value: strconv.Itoa(c.Bins), Reason: "bin count must be at least 1"}
	}
	if c.Polarization < Right || c.Polarization > Both {
		return &ConfigurationError{Component: "polarization", Value: strconv.Itoa(int(c.Polarization)), Reason: "unknown polarization"}
	}
	return nil
}

// Recorder receives run statistics. A nil Recorder is allowed.
type Recorder interface {
	ObserveStage(stage string, d time.Duration)
	ObserveEmptyBins(axis string, n int)
}

// Product is the outcome of a calibration run.
type Product struct {
	Config       Config
	Observations []spectrum.Metadata // Per-file metadata in processing order
	Channels     []int               // Channel indices of the selected band
	Frequency    spectrum.Matrix     // MHz, channels x files
	Velocity     spectrum.Matrix     // km/s, channels x files
	Signal       spectrum.Matrix     // Combined (and optionally baseline subtracted) signal
	Result       Result
}

// FileCount returns the number of files folded into the product.
func (p *Product) FileCount() int {
	return len(p.Observations)
}

// WithLogger sets the logger used by the pipeline and its velocity converter.
func WithLogger(logger *slog.Logger) func(*Pipeline) {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRecorder sets the recorder that receives stage durations and bin statistics.
func WithRecorder(r Recorder) func(*Pipeline) {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithConcurrency bounds the number of files whose velocities are computed concurrently.
func WithConcurrency(n int) func(*Pipeline) {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// Pipeline chains channel selection, polarization combination, the optional
// baseline subtraction, velocity conversion and regridding.
//
// The baseline subtractor lives as long as the pipeline, so repeated runs
// refine the subtracted profile.
type Pipeline struct {
	config   Config
	velocity *VelocityConverter
	baseline *BaselineSubtractor
	logger   *slog.Logger
	recorder Recorder
	workers  int
}

// NewPipeline validates config and creates a pipeline.
func NewPipeline(config Config, corrector FrameCorrector, locations LocationLookup, options ...func(*Pipeline)) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RestFrequency != nil {
		rest := *config.RestFrequency
		config.RestFrequency = &rest
	}

	p := Pipeline{
		config:   config,
		baseline: NewBaselineSubtractor(),
		logger:   slog.New(slog.DiscardHandler),
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, option := range options {
		option(&p)
	}

	p.velocity = NewVelocityConverter(config.RestFrequency, corrector, locations,
		WithWorkers(p.workers),
		WithVelocityLogger(p.logger))

	return &p, nil
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Run calibrates the observations, which must be sorted in processing order.
// Observations are not modified.
func (p *Pipeline) Run(ctx context.Context, observations []spectrum.Observation) (*Product, error) {
	if err := checkFileCount(len(observations)); err != nil {
		var insufficient *InsufficientDataError
		if errors.As(err, &insufficient) && !insufficient.Fatal() {
			p.logger.Warn(err.Error(), slog.Int("files", len(observations)))
		} else {
			return nil, err
		}
	}

	start := time.Now()
	product := Product{
		Config:       p.config,
		Observations: make([]spectrum.Metadata, len(observations)),
	}

	frequency, rhcp, lhcp, err := p.selectChannels(observations, &product)
	if err != nil {
		return nil, err
	}
	p.observe(StageSelect, start)

	start = time.Now()
	if product.Signal, err = p.config.Polarization.Combine(rhcp, lhcp); err != nil {
		return nil, fmt.Errorf("combining polarizations: %w", err)
	}
	p.observe(StageCombine, start)

	if p.config.Median {
		start = time.Now()
		if err = p.baseline.Subtract(product.Signal); err != nil {
			return nil, fmt.Errorf("subtracting baseline: %w", err)
		}
		p.observe(StageBaseline, start)
	}

	start = time.Now()
	product.Frequency = frequency
	if product.Velocity, err = p.velocity.ConvertAll(ctx, frequency, product.Observations); err != nil {
		return nil, fmt.Errorf("converting to velocity: %w", err)
	}
	p.observe(StageVelocity, start)

	start = time.Now()
	regridder, err := NewRegridder(p.config.Bins)
	if err != nil {
		return nil, err
	}
	for f := range product.Observations {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if err = regridder.Update(product.Velocity.Column(f), frequency.Column(f), product.Signal.Column(f)); err != nil {
			return nil, fmt.Errorf("regridding %s: %w", product.Observations[f].File, err)
		}
	}
	product.Result = regridder.Result(len(observations))
	p.observe(StageRegrid, start)

	if p.recorder != nil {
		p.recorder.ObserveEmptyBins("velocity", product.Result.Velocity.Empty)
		p.recorder.ObserveEmptyBins("frequency", product.Result.Frequency.Empty)
	}

	p.logger.Info("calibration complete",
		slog.Int("files", product.FileCount()),
		slog.Int("channels", len(product.Channels)),
		slog.String("polarization", p.config.Polarization.String()),
		slog.Int("bins", p.config.Bins),
		slog.Group("emptyBins",
			slog.Int("velocity", product.Result.Velocity.Empty),
			slog.Int("frequency", product.Result.Frequency.Empty)))

	return &product, nil
}

// selectChannels cuts every observation to the configured band and returns the
// frequency, RHCP and LHCP matrices.
func (p *Pipeline) selectChannels(observations []spectrum.Observation, product *Product) (frequency, rhcp, lhcp spectrum.Matrix, err error) {
	band := p.config.Channels
	freqCols := make([][]float64, len(observations))
	rhcpCols := make([][]float64, len(observations))
	lhcpCols := make([][]float64, len(observations))

	for i := range observations {
		o := &observations[i]
		product.Observations[i] = o.Meta

		n := o.Len()
		if len(o.RHCP) != n || len(o.LHCP) != n {
			return nil, nil, nil, fmt.Errorf("selecting channels: %s has misaligned columns", o.Meta.File)
		}

		freqCols[i] = band.Slice(o.Frequency)
		rhcpCols[i] = band.Slice(o.RHCP)
		lhcpCols[i] = band.Slice(o.LHCP)
		if len(freqCols[i]) == 0 {
			return nil, nil, nil, &ConfigurationError{
				Component: "channels",
				Value:     band.String(),
				Reason:    fmt.Sprintf("selects no channels of %s (%s channels)", o.Meta.File, humanize.Comma(int64(n))),
			}
		}
		if i == 0 {
			product.Channels = append([]int(nil), band.SliceInts(o.Channels)...)
		}
	}

	if frequency, err = spectrum.MatrixFromColumns(freqCols); err != nil {
		return nil, nil, nil, fmt.Errorf("selecting channels: %w", err)
	}
	if rhcp, err = spectrum.MatrixFromColumns(rhcpCols); err != nil {
		return nil, nil, nil, fmt.Errorf("selecting channels: %w", err)
	}
	if lhcp, err = spectrum.MatrixFromColumns(lhcpCols); err != nil {
		return nil, nil, nil, fmt.Errorf("selecting channels: %w", err)
	}
	return frequency, rhcp, lhcp, nil
}

func (p *Pipeline) observe(stage string, start time.Time) {
	if p.recorder != nil {
		p.recorder.ObserveStage(stage, time.Since(start))
	}
}

// checkFileCount returns an InsufficientDataError when fewer than
// MinimumFiles observations are available.
func checkFileCount(n int) error {
	if n < MinimumFiles {
		return &InsufficientDataError{Count: n, Minimum: MinimumFiles}
	}
	return nil
}
