package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roman-kulish/spectral-calibration/internal/calibration"
	"github.com/roman-kulish/spectral-calibration/internal/observation"
)

// TimeLayout is the format of the --start and --end flags.
const TimeLayout = "2006-01-02T15:04:05"

// Configuration keys shared by flags, SPECCAL_* environment variables and the
// YAML config file.
const (
	keyConfig          = "config"
	keyDirectory       = "directory"
	keyCenterFrequency = "center-frequency"
	keyTelescope       = "telescope"
	keyStart           = "start"
	keyEnd             = "end"
	keyElevation       = "elevation"
	keyChannels        = "channels"
	keyPolarization    = "polarization"
	keyRestFrequency   = "rest-frequency"
	keyBins            = "bins"
	keyMedian          = "median"
	keyPlot            = "plot"
	keyPlotFile        = "plot-file"
	keyFigureSize      = "figure-size"
	keyGrid            = "grid"
	keyMetadata        = "metadata"
	keySubplot         = "subplot"
	keyDebug           = "debug"
	keyTest            = "test"
	keySave            = "save"
	keyPrint           = "print"
	keyOutput          = "output"
	keyArchive         = "archive"
	keyMetricsFile     = "metrics-file"
	keyLocations       = "locations"
	keyWorkers         = "workers"
	keyOrigin          = "origin"
	keyLogLevel        = "log-level"
)

// PlotConfig configures the plot mode.
type PlotConfig struct {
	Kind     PlotKind
	File     string  // Output PNG; derived from the object name when empty
	Width    float64 // Inches
	Height   float64 // Inches
	Grid     bool
	Metadata bool
	Subplot  bool
}

// Config is the validated application configuration.
type Config struct {
	Directory   string
	Filter      observation.Filter
	Calibration calibration.Config
	Plot        PlotConfig

	Debug  bool // Log the loaded dataset and stop
	Test   bool // Run the pipeline without output
	Save   bool
	Print  bool
	Output string // Product path; implies Save

	Archive     string // SQLite run archive, empty to disable
	MetricsFile string // Prometheus textfile, empty to disable
	Locations   string // Telescope catalog override
	Workers     int
	Origin      string
	LogLevel    slog.Level
}

// NewConfig validates the values held by v. args are the positional
// arguments; the first one is the observation directory unless --directory
// is set.
func NewConfig(v *viper.Viper, args []string) (*Config, error) {
	c := Config{
		Directory:   v.GetString(keyDirectory),
		Debug:       v.GetBool(keyDebug),
		Test:        v.GetBool(keyTest),
		Save:        v.GetBool(keySave),
		Print:       v.GetBool(keyPrint),
		Output:      v.GetString(keyOutput),
		Archive:     v.GetString(keyArchive),
		MetricsFile: v.GetString(keyMetricsFile),
		Locations:   v.GetString(keyLocations),
		Workers:     v.GetInt(keyWorkers),
		Origin:      v.GetString(keyOrigin),
	}
	if c.Directory == "" && len(args) > 0 {
		c.Directory = args[0]
	}
	if c.Output != "" {
		c.Save = true
	}

	var errs []error
	if c.Directory == "" {
		errs = append(errs, errors.New("observation directory is required"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("invalid workers: %d", c.Workers))
	}
	if err := c.LogLevel.UnmarshalText([]byte(v.GetString(keyLogLevel))); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}

	errs = append(errs, c.parseFilter(v)...)
	errs = append(errs, c.parseCalibration(v)...)
	errs = append(errs, c.parsePlot(v)...)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) parseFilter(v *viper.Viper) (errs []error) {
	var err error
	if c.Filter.CenterFrequency, err = observation.ParseFrequencyRange(v.GetString(keyCenterFrequency)); err != nil {
		errs = append(errs, err)
	}
	if c.Filter.Start, err = parseTime(v.GetString(keyStart)); err != nil {
		errs = append(errs, fmt.Errorf("invalid start time: %w", err))
	}
	if c.Filter.End, err = parseTime(v.GetString(keyEnd)); err != nil {
		errs = append(errs, fmt.Errorf("invalid end time: %w", err))
	}
	if !c.Filter.Start.IsZero() && !c.Filter.End.IsZero() && !c.Filter.End.After(c.Filter.Start) {
		errs = append(errs, fmt.Errorf("end time %s is not after start time %s",
			c.Filter.End.Format(TimeLayout), c.Filter.Start.Format(TimeLayout)))
	}
	c.Filter.Telescope = strings.ToUpper(strings.TrimSpace(v.GetString(keyTelescope)))
	c.Filter.MinElevation = v.GetFloat64(keyElevation)
	return errs
}

func (c *Config) parseCalibration(v *viper.Viper) (errs []error) {
	var err error
	if c.Calibration.Channels, err = calibration.ParseChannelRange(v.GetString(keyChannels)); err != nil {
		errs = append(errs, err)
	}
	if c.Calibration.Polarization, err = calibration.ParsePolarization(v.GetString(keyPolarization)); err != nil {
		errs = append(errs, err)
	}
	// zero leaves the rest frequency unset
	switch rest := v.GetFloat64(keyRestFrequency); {
	case rest > 0:
		c.Calibration.RestFrequency = &rest
	case rest < 0:
		errs = append(errs, fmt.Errorf("invalid rest frequency: %g", rest))
	}
	c.Calibration.Bins = v.GetInt(keyBins)
	if c.Calibration.Bins < 1 {
		errs = append(errs, fmt.Errorf("invalid bins: %d", c.Calibration.Bins))
	}
	c.Calibration.Median = v.GetBool(keyMedian)
	return errs
}

func (c *Config) parsePlot(v *viper.Viper) (errs []error) {
	var err error
	if c.Plot.Kind, err = ParsePlotKind(v.GetString(keyPlot)); err != nil {
		errs = append(errs, err)
	}
	if c.Plot.Width, c.Plot.Height, err = ParseFigureSize(v.GetString(keyFigureSize)); err != nil {
		errs = append(errs, err)
	}
	c.Plot.File = v.GetString(keyPlotFile)
	c.Plot.Grid = v.GetBool(keyGrid)
	c.Plot.Metadata = v.GetBool(keyMetadata)
	c.Plot.Subplot = v.GetBool(keySubplot)
	return errs
}

// ParseFigureSize parses an "X:Y" figure size in inches.
func ParseFigureSize(s string) (width, height float64, err error) {
	x, y, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid figure size %q: expected format X:Y", s)
	}
	if width, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid figure size %q: width must be a positive number", s)
	}
	if height, err = strconv.ParseFloat(strings.TrimSpace(y), 64); err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid figure size %q: height must be a positive number", s)
	}
	return width, height, nil
}

// parseTime parses a UTC time in TimeLayout. An empty string is the zero time.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(TimeLayout, s, time.UTC)
}
