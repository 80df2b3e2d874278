package observation

import (
	"context"
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

type fixture struct {
	name      string
	telescope string
	freqMHz   float64
	elevation float64
	start     time.Time
	duration  time.Duration
	channels  int
}

func writeFixture(t *testing.T, dir string, fx fixture) string {
	t.Helper()

	if fx.telescope == "" {
		fx.telescope = "MCA1"
	}
	if fx.freqMHz == 0 {
		fx.freqMHz = 6668.5
	}
	if fx.duration == 0 {
		fx.duration = 10 * time.Minute
	}
	if fx.channels == 0 {
		fx.channels = 8
	}

	var hdr fits.Header
	hdr.Set("SAMPRATE", 2e6, "Hz")
	hdr.Set("FREQ", fx.freqMHz*1e6, "Hz")
	hdr.Set("TELESCOP", fx.telescope, "")
	hdr.Set("OBJECT", "G188.95+0.89", "")
	hdr.Set("RA", 92.2, "")
	hdr.Set("DEC", 21.6, "")
	hdr.Set("EL-BEG", fx.elevation, "")
	hdr.Set("EL-END", fx.elevation+1, "")
	hdr.Set("AZ-BEG", 120, "")
	hdr.Set("AZ-END", 121.5, "")
	hdr.Set("DATE-OBS", fx.start, "")
	hdr.Set("DATE-END", fx.start.Add(fx.duration), "")

	frequency := make([]float64, fx.channels)
	rhcp := make([]float64, fx.channels)
	lhcp := make([]float64, fx.channels)
	for i := range frequency {
		frequency[i] = (fx.freqMHz - 1 + 2*float64(i)/float64(fx.channels)) * 1e6
		rhcp[i] = float64(i)
		lhcp[i] = float64(2 * i)
	}

	path := filepath.Join(dir, fx.name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := fits.Create(f, hdr)
	require.NoError(t, err)
	require.NoError(t, w.WriteTable("", []fits.Column{
		{Name: "frequency", Format: "D", Data: frequency},
		{Name: "RHCPAVG", Format: "E", Data: rhcp},
		{Name: "LHCPAVG", Format: "E", Data: lhcp},
	}, nil))
	require.NoError(t, w.Close())
	return path
}

type outcomeRecorder map[string]int

func (r outcomeRecorder) ObserveFile(outcome string) {
	r[outcome]++
}

var base = time.Date(2024, 3, 6, 17, 0, 0, 0, time.UTC)

func TestParseFrequencyRange(t *testing.T) {
	r, err := ParseFrequencyRange("6668.5192:6669.5192")
	require.NoError(t, err)
	assert.Equal(t, FrequencyRange{Lo: 6668.5192, Hi: 6669.5192}, r)
	assert.True(t, r.Contains(6669))
	assert.False(t, r.Contains(6668.5192))

	r, err = ParseFrequencyRange(":9000")
	require.NoError(t, err)
	assert.True(t, r.Contains(1))
	assert.False(t, r.Contains(9000))

	r, err = ParseFrequencyRange("4000:")
	require.NoError(t, err)
	assert.True(t, r.Contains(1e9))
	assert.False(t, r.Contains(3999))

	r, err = ParseFrequencyRange("4000:0")
	require.NoError(t, err)
	assert.True(t, r.Contains(5000))

	for _, bad := range []string{"6668", "a:b", "-1:5"} {
		_, err = ParseFrequencyRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestFilter_Reject(t *testing.T) {
	meta := spectrum.Metadata{
		Telescope:       "MCA1",
		CenterFrequency: 6668.5,
		ElevationStart:  40,
		DateObs:         base,
		DateEnd:         base.Add(10 * time.Minute),
	}

	f := Filter{
		Start:           base.Add(-time.Hour),
		End:             base.Add(time.Hour),
		CenterFrequency: FrequencyRange{Lo: 6000, Hi: 7000},
		Telescope:       "mca1",
		MinElevation:    30,
	}
	_, rejected := f.Reject(meta)
	assert.False(t, rejected)

	tests := map[SkipReason]func(Filter) Filter{
		SkipTime:      func(f Filter) Filter { f.Start = base; return f },
		SkipFrequency: func(f Filter) Filter { f.CenterFrequency.Hi = 6500; return f },
		SkipTelescope: func(f Filter) Filter { f.Telescope = "MCA2"; return f },
		SkipElevation: func(f Filter) Filter { f.MinElevation = 45; return f },
	}
	for want, modify := range tests {
		reason, rejected := modify(f).Reject(meta)
		assert.True(t, rejected, want)
		assert.Equal(t, want, reason)
	}

	// The end bound is exclusive.
	ended := f
	ended.End = meta.DateEnd
	reason, rejected := ended.Reject(meta)
	assert.True(t, rejected)
	assert.Equal(t, SkipTime, reason)

	// Zero bounds are open.
	_, rejected = Filter{}.Reject(meta)
	assert.False(t, rejected)
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()

	writeFixture(t, dir, fixture{name: "c.fits", start: base.Add(2 * time.Hour), elevation: 40})
	writeFixture(t, dir, fixture{name: "nested/a.fits", start: base, elevation: 40, duration: 20 * time.Minute})
	writeFixture(t, dir, fixture{name: "b.fits", start: base.Add(time.Hour), elevation: 40})
	writeFixture(t, dir, fixture{name: "low.fits", start: base, elevation: 5})
	writeFixture(t, dir, fixture{name: "other.fits", start: base, telescope: "MCA2", elevation: 40})
	writeFixture(t, dir, fixture{name: "hydrogen.fits", start: base, freqMHz: 1420.4, elevation: 40})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("log"), 0o644))

	recorder := outcomeRecorder{}
	loader := NewLoader(Filter{
		CenterFrequency: FrequencyRange{Lo: 6000, Hi: 7000},
		Telescope:       "MCA1",
		MinElevation:    10,
	}, WithRecorder(recorder), WithConcurrency(2))

	ds, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, ds.Observations, 3)

	// Sorted by start time.
	assert.Equal(t, filepath.Join(dir, "nested", "a.fits"), ds.Observations[0].Meta.File)
	assert.Equal(t, filepath.Join(dir, "b.fits"), ds.Observations[1].Meta.File)
	assert.Equal(t, filepath.Join(dir, "c.fits"), ds.Observations[2].Meta.File)

	obs := ds.Observations[0]
	assert.Equal(t, 6668.5, obs.Meta.CenterFrequency)
	assert.Equal(t, "MCA1", obs.Meta.Telescope)
	assert.Equal(t, 2e6, obs.Meta.SampleRate)
	assert.Equal(t, base, obs.Meta.DateObs)
	assert.Equal(t, 8, obs.Len())
	assert.InDelta(t, 6667.5, obs.Frequency[0], 1e-9)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, obs.Channels)
	assert.Equal(t, 3.0, obs.RHCP[3])
	assert.Equal(t, 6.0, obs.LHCP[3])

	assert.Equal(t, (40*time.Minute)/3, ds.AverageIntegration())
	assert.Len(t, ds.Metadata(), 3)

	reasons := map[SkipReason]int{}
	for _, s := range ds.Skipped {
		reasons[s.Reason]++
	}
	assert.Equal(t, map[SkipReason]int{
		SkipNotFITS:   1,
		SkipElevation: 1,
		SkipTelescope: 1,
		SkipFrequency: 1,
	}, reasons)
	assert.Equal(t, 3, recorder["loaded"])
	assert.Equal(t, 1, recorder["elevation"])
}

func TestLoader_LoadErrors(t *testing.T) {
	t.Run("no survivors", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, fixture{name: "a.fits", start: base, telescope: "MCA2"})

		_, err := NewLoader(Filter{Telescope: "MCA1"}).Load(context.Background(), dir)
		var insufficient *calibration.InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.True(t, insufficient.Fatal())
	})

	t.Run("channel mismatch", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, fixture{name: "a.fits", start: base, channels: 8})
		writeFixture(t, dir, fixture{name: "b.fits", start: base.Add(time.Hour), channels: 16})

		_, err := NewLoader(Filter{}).Load(context.Background(), dir)
		assert.ErrorContains(t, err, "channels")
	})

	t.Run("unreadable file", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, fixture{name: "a.fits", start: base})
		broken := filepath.Join(dir, "broken.fits")
		require.NoError(t, os.WriteFile(broken, []byte("not a fits file"), 0o644))

		_, err := NewLoader(Filter{}).Load(context.Background(), dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), broken)
	})

	t.Run("not a directory", func(t *testing.T) {
		path := writeFixture(t, t.TempDir(), fixture{name: "a.fits", start: base})
		_, err := NewLoader(Filter{}).Load(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := NewLoader(Filter{}).Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})
}

func TestReadMetadata_MissingKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.fits")
	f, err := os.Create(path)
	require.NoError(t, err)

	var hdr fits.Header
	hdr.Set("TELESCOP", "MCA1", "")
	w, err := fits.Create(f, hdr)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = ReadMetadata(path)
	assert.ErrorIs(t, err, fits.ErrMissingKeyword)
	assert.ErrorContains(t, err, "DATE-OBS")
}
