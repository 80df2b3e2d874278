package calibration

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// SpeedOfLight in km/s.
const SpeedOfLight = 299792.458

// FrameCorrector computes the radial velocity offset (km/s) between the
// observer and the target kinematic rest frame for a pointing at a given time.
type FrameCorrector interface {
	CorrectToFrame(pointing spectrum.Pointing, observer spectrum.Location, t time.Time) (float64, error)
}

// LocationLookup resolves a telescope identity to its geodetic location.
// The boolean result is false when the location is unknown.
type LocationLookup interface {
	Location(telescope string) (spectrum.Location, bool)
}

// DopplerVelocity returns the relativistic radial velocity (km/s) of a line
// observed at fObs with rest frequency fRest. Both frequencies share a unit.
func DopplerVelocity(fObs, fRest float64) float64 {
	r := fObs / fRest
	r2 := r * r
	return SpeedOfLight * (1 - r2) / (1 + r2)
}

// VelocityConverter converts observed frequency axes into velocity axes in the
// frame implemented by its FrameCorrector.
type VelocityConverter struct {
	restFrequency *float64 // MHz
	corrector     FrameCorrector
	locations     LocationLookup
	workers       int
	logger        *slog.Logger
}

// VelocityOption configures a VelocityConverter.
type VelocityOption func(*VelocityConverter)

// WithWorkers bounds the number of files converted concurrently by ConvertAll.
func WithWorkers(n int) VelocityOption {
	return func(v *VelocityConverter) {
		if n > 0 {
			v.workers = n
		}
	}
}

// WithVelocityLogger sets the logger used for per-file diagnostics.
func WithVelocityLogger(logger *slog.Logger) VelocityOption {
	return func(v *VelocityConverter) {
		v.logger = logger
	}
}

// NewVelocityConverter creates a converter. restFrequency may be nil, in which
// case every conversion fails with MissingRestFrequencyError.
func NewVelocityConverter(restFrequency *float64, corrector FrameCorrector, locations LocationLookup, opts ...VelocityOption) *VelocityConverter {
	v := &VelocityConverter{
		restFrequency: restFrequency,
		corrector:     corrector,
		locations:     locations,
		workers:       runtime.GOMAXPROCS(0),
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Convert returns one velocity (km/s) per channel of frequency (MHz) for the
// file described by meta.
func (v *VelocityConverter) Convert(frequency []float64, meta spectrum.Metadata) ([]float64, error) {
	if v.restFrequency == nil {
		return nil, &MissingRestFrequencyError{}
	}
	restFreq := *v.restFrequency
	if restFreq <= 0 {
		return nil, &ConfigurationError{Component: "velocity", Value: fmt.Sprint(restFreq), Reason: "rest frequency must be positive"}
	}

	location, ok := v.locations.Location(meta.Telescope)
	if !ok {
		return nil, &UnknownTelescopeLocationError{Telescope: meta.Telescope}
	}

	mid := meta.Midpoint()
	offset, err := v.corrector.CorrectToFrame(meta.Pointing(), location, mid)
	if err != nil {
		return nil, fmt.Errorf("velocity: correcting %s to rest frame: %w", meta.File, err)
	}

	v.logger.Debug("frame correction",
		slog.String("file", meta.File),
		slog.String("midpoint", mid.UTC().Format(time.DateTime)),
		slog.Float64("offsetKms", offset))

	out := make([]float64, len(frequency))
	for i, f := range frequency {
		out[i] = DopplerVelocity(f, restFreq) + offset
	}
	return out, nil
}

// ConvertAll converts every file's frequency axis concurrently and returns the
// velocities as a channel-by-file matrix in file order. frequency is a
// channel-by-file matrix with one column per entry of metas.
func (v *VelocityConverter) ConvertAll(ctx context.Context, frequency spectrum.Matrix, metas []spectrum.Metadata) (spectrum.Matrix, error) {
	channels, files := frequency.Shape()
	if files != len(metas) {
		return nil, fmt.Errorf("velocity: %d frequency columns for %d files", files, len(metas))
	}

	columns := make([][]float64, files)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			col, err := v.Convert(frequency.Column(f), metas[f])
			if err != nil {
				return err
			}
			columns[f] = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if files == 0 {
		return spectrum.NewMatrix(channels, 0), nil
	}
	return spectrum.MatrixFromColumns(columns)
}
