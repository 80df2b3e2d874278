package product

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/spectral-calibration/internal/calibration"
	"github.com/roman-kulish/spectral-calibration/internal/fits"
	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

func testProduct() *calibration.Product {
	rest := 6668.5192
	start := time.Date(2024, 3, 6, 17, 0, 4, 0, time.UTC)
	return &calibration.Product{
		Config: calibration.Config{
			Channels:      calibration.ChannelRange{Lo: 350, Hi: 3500},
			Polarization:  calibration.Both,
			RestFrequency: &rest,
			Bins:          3,
			Median:        true,
		},
		Observations: []spectrum.Metadata{
			{Telescope: "MCA1", Object: "G188.95+0.89", RA: 92.2, Dec: 21.6, SampleRate: 2e6, DateObs: start, DateEnd: start.Add(10 * time.Minute)},
			{Telescope: "MCA1", Object: "G188.95+0.89", RA: 92.2, Dec: 21.6, SampleRate: 2e6, DateObs: start.Add(time.Hour), DateEnd: start.Add(time.Hour + 10*time.Minute)},
		},
		Result: calibration.Result{
			Velocity: calibration.AxisResult{
				Edges:   []float64{-10, 0, 10},
				Average: []float64{1.5, math.NaN(), 2},
				Sum:     []float64{3, 0, 4},
				Count:   []int{2, 0, 2},
				Empty:   1,
			},
			Frequency: calibration.AxisResult{
				Edges:   []float64{6668, 6668.5, 6669},
				Average: []float64{1, 2, 3},
				Sum:     []float64{1, 4, 9},
				Count:   []int{1, 2, 3},
			},
		},
	}
}

func testProvenance() Provenance {
	up := true
	return Provenance{
		Software:           "spectral-calibration",
		Version:            "1.0",
		Origin:             "Metsahovi",
		Created:            time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC),
		AverageIntegration: 10 * time.Minute,
		SunUp:              &up,
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testProduct(), testProvenance()))

	f, err := fits.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, f.HDUs, 3)

	h := f.Primary().Header
	for key, want := range map[string]string{
		"SW-NAME":  "spectral-calibration",
		"TELESCOP": "MCA1",
		"OBJECT":   "G188.95+0.89",
		"DATE-OBS": "2024-03-06T17:00:04",
		"DATE-END": "2024-03-06T18:10:04",
		"DATE":     "2024-08-01T12:00:00",
		"AVGINTEG": "0:10:00",
		"CHRANGE":  "350:3500",
		"POL":      "B",
		"TIMESYS":  "UTC",
		"REFFRAME": "LSRK",
	} {
		got, err := h.String(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}

	rest, err := h.Float("RESTFREQ")
	require.NoError(t, err)
	assert.Equal(t, 6668.5192, rest)

	n, err := h.Int("NUMINPUT")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	sunUp, err := h.Bool("SUNUP")
	require.NoError(t, err)
	assert.True(t, sunUp)

	velocity, err := f.TableByName(VelocityTable)
	require.NoError(t, err)
	edges, err := velocity.Column("VELOCITY")
	require.NoError(t, err)
	assert.Equal(t, []float64{-10, 0, 10}, edges)

	avg, err := velocity.Column("AVG_POWER")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(avg[1]))

	meas, err := velocity.Column("NUM_MEAS")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0, 2}, meas)

	frequency, err := f.TableByName(FrequencyTable)
	require.NoError(t, err)
	sum, err := frequency.Column("SUM_POWER_AVG")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4, 9}, sum)
}

func TestHeader_OptionalValues(t *testing.T) {
	p := testProduct()
	p.Config.RestFrequency = nil
	prov := testProvenance()
	prov.SunUp = nil

	h := Header(p, prov)
	assert.False(t, h.Has("RESTFREQ"))
	assert.False(t, h.Has("SUNUP"))
	assert.True(t, h.Has("NUMBINS"))
}

func TestWrite_NoObservations(t *testing.T) {
	p := testProduct()
	p.Observations = nil
	assert.Error(t, Write(&bytes.Buffer{}, p, testProvenance()))
}

func TestSaveAndPrint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.fits")
	require.NoError(t, Save(path, testProduct(), testProvenance()))

	var out bytes.Buffer
	require.NoError(t, Print(&out, path))
	assert.Contains(t, out.String(), "PRIMARY")
	assert.Contains(t, out.String(), "VELOCITY")
	assert.Contains(t, out.String(), "SUM_POWER_AVG")
	assert.Contains(t, out.String(), "REFFRAME: LSRK")

	assert.Error(t, Print(&out, filepath.Join(t.TempDir(), "missing.fits")))
}

func TestSave_FailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.fits")

	p := testProduct()
	p.Result.Frequency.Sum = p.Result.Frequency.Sum[:2]

	err := Save(path, p, testProvenance())
	require.ErrorContains(t, err, "SUM_POWER_AVG")
	assert.NoFileExists(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file must be removed")
}

func TestSave_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.fits")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, Save(path, testProduct(), testProvenance()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size()%2880)
}

func TestDefaultFilename(t *testing.T) {
	now := time.Date(2024, 3, 6, 17, 0, 4, 0, time.UTC)
	assert.Equal(t, "G188.95+0.89_20240306_170004_calibrated.fits", DefaultFilename("G188.95+0.89", now))
	assert.Equal(t, "W3_OH_20240306_170004_calibrated.fits", DefaultFilename("W3 OH", now))
	assert.Equal(t, "UNKNOWN_20240306_170004_calibrated.fits", DefaultFilename("", now))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00:00", FormatDuration(0))
	assert.Equal(t, "0:10:00", FormatDuration(10*time.Minute))
	assert.Equal(t, "26:03:07", FormatDuration(26*time.Hour+3*time.Minute+7*time.Second+500*time.Millisecond))
}
