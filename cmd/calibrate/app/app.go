package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/spectral-calibration/internal/astro"
	"github.com/roman-kulish/spectral-calibration/internal/calibration"
	"github.com/roman-kulish/spectral-calibration/internal/metrics"
	"github.com/roman-kulish/spectral-calibration/internal/observation"
	"github.com/roman-kulish/spectral-calibration/internal/product"
	"github.com/roman-kulish/spectral-calibration/internal/storage"
	"github.com/roman-kulish/spectral-calibration/internal/telescope"
)

// Run loads the observations, calibrates them and saves, plots or just checks
// the result depending on config. Saved products are printed to out.
func Run(ctx context.Context, config *Config, out io.Writer, logger *slog.Logger) (err error) {
	started := time.Now()

	m, err := metrics.NewCalibrationMetrics(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	if config.MetricsFile != "" {
		defer func() {
			m.RecordRun(err, time.Now())
			if mErr := m.WriteToTextfile(config.MetricsFile); mErr != nil {
				logger.Error("failed to write metrics", slog.String("error", mErr.Error()))
			}
		}()
	}

	catalog, err := telescope.Load(config.Locations)
	if err != nil {
		return err
	}
	if config.Filter.Telescope != "" && !catalog.Known(config.Filter.Telescope) {
		logger.Warn("telescope is not in the catalog, velocities cannot be computed",
			slog.String("telescope", config.Filter.Telescope),
			slog.Any("known", catalog.Names()))
	}

	loader := observation.NewLoader(config.Filter,
		observation.WithLogger(logger),
		observation.WithRecorder(m),
		observation.WithConcurrency(config.Workers))

	dataset, err := loader.Load(ctx, config.Directory)
	if err != nil {
		return fmt.Errorf("loading observations: %w", err)
	}

	if config.Debug {
		logDataset(dataset, logger)
		return nil
	}
	if !config.Calibration.Median {
		logger.Warn("median baseline subtraction is disabled")
	}

	pipeline, err := calibration.NewPipeline(config.Calibration, astro.NewLSRKCorrector(), catalog,
		calibration.WithLogger(logger),
		calibration.WithRecorder(m),
		calibration.WithConcurrency(config.Workers))
	if err != nil {
		return err
	}

	result, err := pipeline.Run(ctx, dataset.Observations)
	if err != nil {
		return fmt.Errorf("calibrating: %w", err)
	}

	if config.Test && !config.Save {
		logger.Info("directory processed without errors",
			slog.String("directory", config.Directory),
			slog.String("elapsed", time.Since(started).Round(time.Millisecond).String()))
		return nil
	}

	now := time.Now().UTC()
	provenance := product.Provenance{
		Software:           ProgramName,
		Version:            ProgramVersion,
		Origin:             config.Origin,
		Created:            now,
		AverageIntegration: dataset.AverageIntegration(),
		SunUp:              sunUp(catalog, result),
	}

	var path string
	if config.Save {
		path, err = save(config, result, provenance, logger)
	} else {
		path, err = plot(config, result, dataset, provenance, logger)
	}
	if err != nil {
		return err
	}

	if config.Archive != "" {
		if err = archive(ctx, config.Archive, result, now, logger); err != nil {
			if rmErr := os.Remove(path); rmErr != nil {
				logger.Error("failed to remove output", slog.String("path", path), slog.String("error", rmErr.Error()))
			}
			return err
		}
	}

	if config.Save && config.Print {
		return product.Print(out, path)
	}
	return nil
}

func save(config *Config, p *calibration.Product, prov product.Provenance, logger *slog.Logger) (string, error) {
	path := config.Output
	if path == "" {
		path = product.DefaultFilename(p.Observations[0].Object, prov.Created)
	}

	if err := product.Save(path, p, prov); err != nil {
		return "", err
	}
	logger.Info("product saved", slog.String("path", path))
	return path, nil
}

func archive(ctx context.Context, path string, p *calibration.Product, created time.Time, logger *slog.Logger) (err error) {
	store := storage.NewSqliteStore(path)
	defer func() {
		if cErr := store.Close(); cErr != nil {
			err = errors.Join(err, fmt.Errorf("closing archive: %w", cErr))
		}
	}()

	runID, err := store.SaveRun(ctx, p, created)
	if err != nil {
		return fmt.Errorf("archiving run: %w", err)
	}
	logger.Info("run archived", slog.String("path", path), slog.Int64("run", runID))
	return nil
}

func plot(config *Config, p *calibration.Product, ds *observation.Dataset, prov product.Provenance, logger *slog.Logger) (string, error) {
	fig, err := NewFigure(config.Plot.Kind, p)
	if err != nil {
		return "", err
	}
	if config.Plot.Kind == PlotNone {
		logger.Warn("no plot kind selected")
	}
	if config.Plot.Metadata {
		fig.Info = figureInfo(config, p, ds, prov)
	}

	renderer, err := NewPlotRenderer(RenderConfig{
		Width:        config.Plot.Width,
		Height:       config.Plot.Height,
		Grid:         config.Plot.Grid,
		SubplotLabel: config.Plot.Subplot,
	})
	if err != nil {
		return "", fmt.Errorf("creating plot renderer: %w", err)
	}

	img, err := renderer.Render(fig)
	if err != nil {
		return "", fmt.Errorf("rendering plot: %w", err)
	}

	path := config.Plot.File
	if path == "" {
		kind := string(config.Plot.Kind)
		if kind == "" {
			kind = "empty"
		}
		path = fmt.Sprintf("%s_%s_%s.png", p.Observations[0].Object, prov.Created.Format("20060102_150405"), kind)
	}

	if err = writePNG(path, img); err != nil {
		return "", err
	}

	size := img.Bounds().Size()
	logger.Info("plot saved",
		slog.Group("image",
			slog.String("destination", path),
			slog.String("kind", string(config.Plot.Kind)),
			slog.Int("width", size.X),
			slog.Int("height", size.Y),
			slog.Int("series", len(fig.Series))))
	return path, nil
}

// writePNG encodes img to a temporary file next to path and renames it into
// place.
func writePNG(path string, img image.Image) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating plot file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err = png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding plot: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing plot file: %w", err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// figureInfo is the metadata block drawn below the plot.
func figureInfo(config *Config, p *calibration.Product, ds *observation.Dataset, prov product.Provenance) []string {
	first := p.Observations[0]
	last := p.Observations[p.FileCount()-1]

	rest := "unset"
	if r := config.Calibration.RestFrequency; r != nil {
		rest = fmt.Sprintf("%g MHz", *r)
	}

	return []string{
		fmt.Sprintf("Program: %s %s, plot created %s", prov.Software, prov.Version, prov.Created.Format(time.DateTime)),
		fmt.Sprintf("Directory: %s, files: %d (%d skipped)", config.Directory, p.FileCount(), len(ds.Skipped)),
		fmt.Sprintf("Telescope: %s, sample rate: %s samples/s", first.Telescope, humanize.SIWithDigits(first.SampleRate, 2, "")),
		fmt.Sprintf("Channels: %s, bins: %d, polarization: %s", config.Calibration.Channels, config.Calibration.Bins, config.Calibration.Polarization),
		fmt.Sprintf("Observation: %s -> %s, average integration %s",
			first.DateObs.UTC().Format(time.DateTime), last.DateEnd.UTC().Format(time.DateTime), product.FormatDuration(prov.AverageIntegration)),
		fmt.Sprintf("Centre frequency range: %s MHz, rest frequency: %s", config.Filter.CenterFrequency, rest),
	}
}

// sunUp reports whether the Sun was up at the start of the first observation,
// or nil when the telescope location is unknown.
func sunUp(catalog *telescope.Catalog, p *calibration.Product) *bool {
	first := p.Observations[0]
	loc, ok := catalog.Location(first.Telescope)
	if !ok {
		return nil
	}
	up := astro.Daylight(loc, first.DateObs)
	return &up
}

func logDataset(ds *observation.Dataset, logger *slog.Logger) {
	for _, o := range ds.Observations {
		meta := o.Meta
		logger.Info("observation",
			slog.String("file", meta.File),
			slog.String("object", meta.Object),
			slog.String("telescope", meta.Telescope),
			slog.String("dateObs", meta.DateObs.UTC().Format(time.DateTime)),
			slog.String("dateEnd", meta.DateEnd.UTC().Format(time.DateTime)),
			slog.Float64("centerFrequencyMHz", meta.CenterFrequency),
			slog.Float64("ra", meta.RA),
			slog.Float64("dec", meta.Dec),
			slog.Float64("elevation", meta.ElevationStart),
			slog.Int("channels", o.Len()))
	}
	for _, s := range ds.Skipped {
		logger.Info("skipped",
			slog.String("file", s.File),
			slog.String("reason", s.Reason.String()),
			slog.String("detail", s.Detail))
	}
	logger.Info("average integration time",
		slog.String("duration", product.FormatDuration(ds.AverageIntegration())))
}
