package product

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roman-kulish/spectral-calibration/internal/calibration"
	"github.com/roman-kulish/spectral-calibration/internal/fits"
)

// Extension names of a calibrated product file.
const (
	VelocityTable  = "VELOCITY"
	FrequencyTable = "FREQUENCY"
)

// Provenance describes how and from what a product was made.
type Provenance struct {
	Software           string
	Version            string
	Origin             string
	Created            time.Time
	AverageIntegration time.Duration
	SunUp              *bool // nil when the telescope location is unknown
}

// Header builds the primary header of a calibrated product.
func Header(p *calibration.Product, prov Provenance) fits.Header {
	first := p.Observations[0]
	last := p.Observations[len(p.Observations)-1]

	var h fits.Header
	h.Set("SW-VERS", prov.Version, "File created by software version")
	h.Set("SW-NAME", prov.Software, "File created by software name")
	h.Set("DATE", prov.Created, "File creation date")
	h.Set("ORIGIN", prov.Origin, "Observatory")
	h.Set("TELESCOP", first.Telescope, "Telescope")
	h.Set("RA", first.RA, "Right Ascension pointing (deg)")
	h.Set("DEC", first.Dec, "Declination pointing (deg)")
	h.Set("EQUINOX", 2000.0, "Equinox")
	h.Set("AVGINTEG", FormatDuration(prov.AverageIntegration), "Average observation integration time")
	h.Set("OBJECT", first.Object, "Object")
	h.Set("DATE-OBS", first.DateObs, "Observation start")
	h.Set("DATE-END", last.DateEnd, "Observation end")
	h.Set("SAMPRATE", first.SampleRate, "Sample rate Hz")
	h.Set("NUMINPUT", p.FileCount(), "Number of raw input files")
	h.Set("CHRANGE", p.Config.Channels.String(), "Range of channels included in processing")
	h.Set("POL", p.Config.Polarization.Token(), "Polarization: R=Right, L=Left, B=Right+Left")
	if p.Config.RestFrequency != nil {
		h.Set("RESTFREQ", *p.Config.RestFrequency, "Rest frequency [MHz]")
	}
	h.Set("NUMBINS", p.Config.Bins, "Number of re-grid bins")
	h.Set("MEDIAN", p.Config.Median, "Median baseline subtracted")
	if prov.SunUp != nil {
		h.Set("SUNUP", *prov.SunUp, "Sun above horizon at observation start")
	}
	h.Set("TIMESYS", "UTC", "Temporal Reference Frame")
	h.Set("REFFRAME", "LSRK", "Reference Frame")
	return h
}

// Write encodes the product as a FITS file with a velocity and a frequency
// table.
func Write(w io.Writer, p *calibration.Product, prov Provenance) error {
	if p.FileCount() == 0 {
		return fmt.Errorf("writing product: no observations")
	}

	fw, err := fits.Create(w, Header(p, prov))
	if err != nil {
		return err
	}

	res := p.Result
	if err = fw.WriteTable(VelocityTable, []fits.Column{
		{Name: "VELOCITY", Format: "D", Unit: "km/s", Data: res.Velocity.Edges},
		{Name: "AVG_POWER", Format: "E", Unit: "ADU", Data: res.Velocity.Average},
		{Name: "NUM_MEAS", Format: "J", Data: counts(res.Velocity.Count)},
		{Name: "SUM_POWER_AVG", Format: "E", Data: res.Velocity.Sum},
	}, nil); err != nil {
		return err
	}
	if err = fw.WriteTable(FrequencyTable, []fits.Column{
		{Name: "FREQUENCY", Format: "D", Unit: "MHz", Data: res.Frequency.Edges},
		{Name: "AVG_POWER", Format: "E", Unit: "ADU", Data: res.Frequency.Average},
		{Name: "NUM_MEAS", Format: "J", Data: counts(res.Frequency.Count)},
		{Name: "SUM_POWER_AVG", Format: "E", Data: res.Frequency.Sum},
	}, nil); err != nil {
		return err
	}
	return fw.Close()
}

// Save writes the product to path, replacing any existing file. The product is
// written to a temporary file in the same directory and renamed into place, so
// a failed write leaves path untouched.
func Save(path string, p *calibration.Product, prov Provenance) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating product file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err = Write(f, p, prov); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing product file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// DefaultFilename returns the file name used when no output path is given.
func DefaultFilename(object string, now time.Time) string {
	object = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, strings.TrimSpace(object))
	if object == "" {
		object = "UNKNOWN"
	}
	return fmt.Sprintf("%s_%s_calibrated.fits", object, now.Format("20060102_150405"))
}

// FormatDuration renders d as H:MM:SS.
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

func counts(c []int) []float64 {
	out := make([]float64, len(c))
	for i, n := range c {
		out[i] = float64(n)
	}
	return out
}
