package observation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/spectral-calibration/internal/calibration"
	"github.com/roman-kulish/spectral-calibration/internal/fits"
	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// Data table columns of a receiver spectrum file.
const (
	ColumnFrequency = "frequency"
	ColumnRHCP      = "rhcpavg"
	ColumnLHCP      = "lhcpavg"
)

// Skipped is a file left out of a run.
type Skipped struct {
	File   string
	Reason SkipReason
	Detail string
}

// Dataset is the filtered, time ordered set of observations of a run.
type Dataset struct {
	Directory    string
	Observations []spectrum.Observation
	Skipped      []Skipped
}

// Metadata returns the metadata of every observation in order.
func (d *Dataset) Metadata() []spectrum.Metadata {
	metas := make([]spectrum.Metadata, len(d.Observations))
	for i := range d.Observations {
		metas[i] = d.Observations[i].Meta
	}
	return metas
}

// AverageIntegration returns the mean observation duration, truncated to
// whole seconds.
func (d *Dataset) AverageIntegration() time.Duration {
	if len(d.Observations) == 0 {
		return 0
	}
	var total time.Duration
	for i := range d.Observations {
		total += d.Observations[i].Meta.Duration()
	}
	return (total / time.Duration(len(d.Observations))).Truncate(time.Second)
}

// Recorder receives per-file outcomes. A nil Recorder is allowed.
type Recorder interface {
	ObserveFile(outcome string)
}

// WithLogger sets the logger used to report skipped files.
func WithLogger(logger *slog.Logger) func(*Loader) {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithRecorder sets the recorder of loaded and skipped files.
func WithRecorder(r Recorder) func(*Loader) {
	return func(l *Loader) {
		l.recorder = r
	}
}

// WithConcurrency bounds the number of files read concurrently.
func WithConcurrency(n int) func(*Loader) {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

// Loader discovers, filters and reads observation files.
type Loader struct {
	filter   Filter
	logger   *slog.Logger
	recorder Recorder
	workers  int
}

// NewLoader creates a loader applying filter.
func NewLoader(filter Filter, options ...func(*Loader)) *Loader {
	l := Loader{
		filter:  filter,
		logger:  slog.New(slog.DiscardHandler),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, option := range options {
		option(&l)
	}
	return &l
}

// Load reads every matching observation below dir. It fails with an
// InsufficientDataError when no file survives filtering.
func (l *Loader) Load(ctx context.Context, dir string) (*Dataset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	files, ignored, err := Scan(dir)
	if err != nil {
		return nil, err
	}

	ds := Dataset{Directory: dir}
	for _, file := range ignored {
		l.skip(&ds, Skipped{File: file, Reason: SkipNotFITS})
	}

	metas := make([]spectrum.Metadata, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			meta, err := ReadMetadata(file)
			if err != nil {
				return fmt.Errorf("reading metadata: %w", err)
			}
			metas[i] = meta
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	var accepted []spectrum.Metadata
	for i, meta := range metas {
		if reason, rejected := l.filter.Reject(meta); rejected {
			l.skip(&ds, Skipped{File: files[i], Reason: reason, Detail: describe(reason, meta)})
			continue
		}
		accepted = append(accepted, meta)
	}

	if len(accepted) == 0 {
		return nil, &calibration.InsufficientDataError{Count: 0, Minimum: calibration.MinimumFiles}
	}

	slices.SortStableFunc(accepted, func(a, b spectrum.Metadata) int {
		return cmp.Or(a.DateObs.Compare(b.DateObs), strings.Compare(a.File, b.File))
	})

	ds.Observations = make([]spectrum.Observation, len(accepted))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, meta := range accepted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			obs, err := ReadObservation(meta)
			if err != nil {
				return err
			}
			ds.Observations[i] = obs
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	channels := ds.Observations[0].Len()
	for i := range ds.Observations {
		if n := ds.Observations[i].Len(); n != channels {
			return nil, fmt.Errorf("%s has %d channels, %s has %d",
				ds.Observations[i].Meta.File, n, ds.Observations[0].Meta.File, channels)
		}
		if l.recorder != nil {
			l.recorder.ObserveFile("loaded")
		}
	}

	l.logger.Info("observations loaded",
		slog.String("directory", dir),
		slog.Int("files", len(ds.Observations)),
		slog.Int("skipped", len(ds.Skipped)),
		slog.String("channels", humanize.Comma(int64(channels))),
		slog.String("first", ds.Observations[0].Meta.DateObs.Format(fits.DateLayout)),
		slog.String("last", ds.Observations[len(ds.Observations)-1].Meta.DateEnd.Format(fits.DateLayout)))

	return &ds, nil
}

func (l *Loader) skip(ds *Dataset, s Skipped) {
	ds.Skipped = append(ds.Skipped, s)
	if l.recorder != nil {
		l.recorder.ObserveFile(s.Reason.String())
	}

	attrs := []any{slog.String("file", s.File), slog.String("reason", s.Reason.String())}
	if s.Detail != "" {
		attrs = append(attrs, slog.String("detail", s.Detail))
	}
	l.logger.Info("file ignored", attrs...)
}

func describe(reason SkipReason, meta spectrum.Metadata) string {
	switch reason {
	case SkipTime:
		return meta.DateObs.Format(fits.DateLayout) + " - " + meta.DateEnd.Format(fits.DateLayout)
	case SkipFrequency:
		return fmt.Sprintf("centre frequency %g MHz", meta.CenterFrequency)
	case SkipTelescope:
		return "telescope " + meta.Telescope
	case SkipElevation:
		return fmt.Sprintf("elevation %g", meta.ElevationStart)
	}
	return ""
}

// Scan walks dir and returns the FITS files and the other files found, each
// in lexical order.
func Scan(dir string) (files, ignored []string, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".fits") {
			files = append(files, path)
		} else {
			ignored = append(ignored, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return files, ignored, nil
}

// ReadMetadata reads the primary header of a receiver spectrum file.
func ReadMetadata(path string) (spectrum.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return spectrum.Metadata{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	hdr, err := fits.ReadHeader(f)
	if err != nil {
		return spectrum.Metadata{}, fmt.Errorf("%s: %w", path, err)
	}

	meta, err := metadataFromHeader(hdr)
	if err != nil {
		return spectrum.Metadata{}, fmt.Errorf("%s: %w", path, err)
	}
	meta.File = path
	return meta, nil
}

func metadataFromHeader(hdr fits.Header) (spectrum.Metadata, error) {
	var meta spectrum.Metadata
	var errs []error

	str := func(key string, dst *string) {
		v, err := hdr.String(key)
		errs = append(errs, err)
		*dst = strings.TrimSpace(v)
	}
	num := func(key string, dst *float64) {
		v, err := hdr.Float(key)
		errs = append(errs, err)
		*dst = v
	}
	date := func(key string, dst *time.Time) {
		v, err := hdr.Time(key)
		errs = append(errs, err)
		*dst = v
	}

	num("SAMPRATE", &meta.SampleRate)
	num("FREQ", &meta.CenterFrequency)
	str("TELESCOP", &meta.Telescope)
	str("OBJECT", &meta.Object)
	num("RA", &meta.RA)
	num("DEC", &meta.Dec)
	num("EL-BEG", &meta.ElevationStart)
	num("EL-END", &meta.ElevationEnd)
	num("AZ-BEG", &meta.AzimuthStart)
	num("AZ-END", &meta.AzimuthEnd)
	date("DATE-OBS", &meta.DateObs)
	date("DATE-END", &meta.DateEnd)

	if err := errors.Join(errs...); err != nil {
		return spectrum.Metadata{}, err
	}
	if meta.DateEnd.Before(meta.DateObs) {
		return spectrum.Metadata{}, fmt.Errorf("DATE-END %s is before DATE-OBS %s",
			meta.DateEnd.Format(fits.DateLayout), meta.DateObs.Format(fits.DateLayout))
	}

	meta.CenterFrequency /= 1e6 // Hz to MHz
	return meta, nil
}

// ReadObservation reads the spectrum data table of the file described by meta.
func ReadObservation(meta spectrum.Metadata) (spectrum.Observation, error) {
	f, err := os.Open(meta.File)
	if err != nil {
		return spectrum.Observation{}, fmt.Errorf("opening %s: %w", meta.File, err)
	}
	defer f.Close()

	file, err := fits.Open(f)
	if err != nil {
		return spectrum.Observation{}, fmt.Errorf("reading %s: %w", meta.File, err)
	}
	table, err := file.Table(1)
	if err != nil {
		return spectrum.Observation{}, fmt.Errorf("reading %s: %w", meta.File, err)
	}

	obs := spectrum.Observation{Meta: meta}
	if obs.Frequency, err = table.Column(ColumnFrequency); err != nil {
		return spectrum.Observation{}, fmt.Errorf("reading %s: %w", meta.File, err)
	}
	if obs.RHCP, err = table.Column(ColumnRHCP); err != nil {
		return spectrum.Observation{}, fmt.Errorf("reading %s: %w", meta.File, err)
	}
	if obs.LHCP, err = table.Column(ColumnLHCP); err != nil {
		return spectrum.Observation{}, fmt.Errorf("reading %s: %w", meta.File, err)
	}

	obs.Channels = make([]int, len(obs.Frequency))
	for i := range obs.Frequency {
		obs.Frequency[i] /= 1e6 // Hz to MHz
		obs.Channels[i] = i
	}
	return obs, nil
}
