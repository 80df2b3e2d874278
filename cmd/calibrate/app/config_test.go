package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/spectral-calibration/internal/calibration"
)

func parseFlags(t *testing.T, args ...string) (*viper.Viper, []string) {
	t.Helper()

	fs := pflag.NewFlagSet("calibrate", pflag.ContinueOnError)
	setupFlags(fs)
	require.NoError(t, fs.Parse(args))

	v := viper.New()
	require.NoError(t, bindViper(v, fs))
	return v, fs.Args()
}

func TestNewConfig_Defaults(t *testing.T) {
	v, args := parseFlags(t, "/data/night1")

	c, err := NewConfig(v, args)
	require.NoError(t, err)

	assert.Equal(t, "/data/night1", c.Directory)
	assert.Equal(t, "MCA1", c.Filter.Telescope)
	assert.Equal(t, time.Date(2000, 1, 1, 1, 1, 1, 0, time.UTC), c.Filter.Start)
	assert.True(t, c.Filter.End.IsZero())
	assert.Equal(t, 0.0, c.Filter.CenterFrequency.Lo)
	assert.Equal(t, 1e20, c.Filter.CenterFrequency.Hi)

	assert.Equal(t, calibration.ChannelRange{Lo: 0, Hi: 4096}, c.Calibration.Channels)
	assert.Equal(t, calibration.Right, c.Calibration.Polarization)
	require.NotNil(t, c.Calibration.RestFrequency)
	assert.InDelta(t, 6668.5192, *c.Calibration.RestFrequency, 1e-9)
	assert.Equal(t, 1000, c.Calibration.Bins)
	assert.False(t, c.Calibration.Median)

	assert.Equal(t, PlotNone, c.Plot.Kind)
	assert.Equal(t, 10.0, c.Plot.Width)
	assert.Equal(t, 6.0, c.Plot.Height)
	assert.Equal(t, DefaultOrigin, c.Origin)
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
	assert.False(t, c.Save)
}

func TestNewConfig_Flags(t *testing.T) {
	v, args := parseFlags(t,
		"-d", "/data/night2",
		"--fc", "6668:6669",
		"-t", "mca2",
		"-s", "2024-03-06T17:00:04",
		"-e", "2024-03-07T05:00:00",
		"--el", "40",
		"-c", "350:3500",
		"-p", "b",
		"--fr", "6668",
		"-b", "500",
		"-m",
		"--plot", "RV",
		"--fig", "20:10",
		"--gr", "--md", "--sub",
		"-o", "out.fits",
		"--log-level", "debug",
	)

	c, err := NewConfig(v, args)
	require.NoError(t, err)

	assert.Equal(t, "/data/night2", c.Directory)
	assert.Equal(t, 6668.0, c.Filter.CenterFrequency.Lo)
	assert.Equal(t, 6669.0, c.Filter.CenterFrequency.Hi)
	assert.Equal(t, "MCA2", c.Filter.Telescope)
	assert.Equal(t, time.Date(2024, 3, 6, 17, 0, 4, 0, time.UTC), c.Filter.Start)
	assert.Equal(t, time.Date(2024, 3, 7, 5, 0, 0, 0, time.UTC), c.Filter.End)
	assert.Equal(t, 40.0, c.Filter.MinElevation)

	assert.Equal(t, calibration.ChannelRange{Lo: 350, Hi: 3500}, c.Calibration.Channels)
	assert.Equal(t, calibration.Both, c.Calibration.Polarization)
	require.NotNil(t, c.Calibration.RestFrequency)
	assert.Equal(t, 6668.0, *c.Calibration.RestFrequency)
	assert.Equal(t, 500, c.Calibration.Bins)
	assert.True(t, c.Calibration.Median)

	assert.Equal(t, PlotRegridVelocity, c.Plot.Kind)
	assert.Equal(t, 20.0, c.Plot.Width)
	assert.Equal(t, 10.0, c.Plot.Height)
	assert.True(t, c.Plot.Grid)
	assert.True(t, c.Plot.Metadata)
	assert.True(t, c.Plot.Subplot)

	assert.Equal(t, "out.fits", c.Output)
	assert.True(t, c.Save, "an output path implies saving")
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
}

func TestNewConfig_RestFrequencyUnset(t *testing.T) {
	v, args := parseFlags(t, "--restfreq", "0", "dir")

	c, err := NewConfig(v, args)
	require.NoError(t, err)
	assert.Nil(t, c.Calibration.RestFrequency)
}

func TestNewConfig_Environment(t *testing.T) {
	t.Setenv("SPECCAL_BINS", "250")
	t.Setenv("SPECCAL_CENTER_FREQUENCY", "4000:")

	v, args := parseFlags(t, "dir")

	c, err := NewConfig(v, args)
	require.NoError(t, err)
	assert.Equal(t, 250, c.Calibration.Bins)
	assert.Equal(t, 4000.0, c.Filter.CenterFrequency.Lo)
	assert.Equal(t, 0.0, c.Filter.CenterFrequency.Hi)
}

func TestNewConfig_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("directory: /data/night3\npolarization: L\nmedian: true\nbins: 42\n"), 0o644))

	v, _ := parseFlags(t, "--config", path, "--bins", "7")
	require.NoError(t, readConfigFile(v))

	c, err := NewConfig(v, nil)
	require.NoError(t, err)
	assert.Equal(t, "/data/night3", c.Directory)
	assert.Equal(t, calibration.Left, c.Calibration.Polarization)
	assert.True(t, c.Calibration.Median)
	assert.Equal(t, 7, c.Calibration.Bins, "flags override the config file")
}

func TestNewConfig_Errors(t *testing.T) {
	v, args := parseFlags(t,
		"-c", "10:5",
		"-p", "x",
		"-b", "0",
		"--fc=-1:2",
		"-s", "yesterday",
		"--plot", "pie",
		"--fig", "10x6",
		"--log-level", "loud",
	)

	_, err := NewConfig(v, args)
	require.Error(t, err)

	for _, want := range []string{
		"observation directory is required",
		"channels",
		"polarization",
		"invalid bins: 0",
		"invalid start time",
		"invalid plot kind: pie",
		"invalid figure size",
		"invalid log level",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestNewConfig_EndBeforeStart(t *testing.T) {
	v, args := parseFlags(t, "-s", "2024-03-07T00:00:00", "-e", "2024-03-06T00:00:00", "dir")

	_, err := NewConfig(v, args)
	assert.ErrorContains(t, err, "is not after start time")
}

func TestParseFigureSize(t *testing.T) {
	w, h, err := ParseFigureSize(" 12.5 : 4 ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, w)
	assert.Equal(t, 4.0, h)

	for _, s := range []string{"", "10", "0:6", "10:-1", "a:b"} {
		_, _, err = ParseFigureSize(s)
		assert.Error(t, err, s)
	}
}
