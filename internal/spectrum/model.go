package spectrum

import (
	"time"
)

// Metadata describes a single observation file as recorded by the receiver.
type Metadata struct {
	File            string    `json:"file"`            // Path to the source file
	Telescope       string    `json:"telescope"`       // Observing telescope identity (TELESCOP)
	Object          string    `json:"object"`          // Observed object name (OBJECT)
	RA              float64   `json:"ra"`              // Right ascension of the pointing in degrees
	Dec             float64   `json:"dec"`             // Declination of the pointing in degrees
	DateObs         time.Time `json:"dateObs"`         // Observation start (UTC)
	DateEnd         time.Time `json:"dateEnd"`         // Observation end (UTC)
	CenterFrequency float64   `json:"centerFrequency"` // Centre frequency in MHz
	SampleRate      float64   `json:"sampleRate"`      // Sample rate in Hz
	ElevationStart  float64   `json:"elevationStart"`  // Elevation at the beginning of the observation in degrees
	ElevationEnd    float64   `json:"elevationEnd"`    // Elevation at the end of the observation in degrees
	AzimuthStart    float64   `json:"azimuthStart"`    // Azimuth at the beginning of the observation in degrees
	AzimuthEnd      float64   `json:"azimuthEnd"`      // Azimuth at the end of the observation in degrees
}

// Midpoint returns the time halfway between the observation start and end.
func (m Metadata) Midpoint() time.Time {
	return m.DateObs.Add(m.DateEnd.Sub(m.DateObs) / 2)
}

// Duration returns the integration time of the observation.
func (m Metadata) Duration() time.Duration {
	return m.DateEnd.Sub(m.DateObs)
}

// Pointing returns the sky pointing of the observation.
func (m Metadata) Pointing() Pointing {
	return Pointing{RA: m.RA, Dec: m.Dec}
}

// Observation is one power spectrum file: an aligned frequency axis and the two
// circular polarization channels. It is owned by the loader and read-only to the
// calibration pipeline.
type Observation struct {
	Frequency []float64 // Observed frequency per channel in MHz
	Channels  []int     // Channel index per sample
	RHCP      []float64 // Right-hand circular polarization power
	LHCP      []float64 // Left-hand circular polarization power
	Meta      Metadata
}

// Len returns the number of channels in the observation.
func (o *Observation) Len() int {
	return len(o.Frequency)
}

// Pointing is a sky position in the ICRS frame, in degrees.
type Pointing struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// Location is a geodetic position on the WGS-84 ellipsoid.
type Location struct {
	Latitude  float64 `json:"latitude"`  // Degrees
	Longitude float64 `json:"longitude"` // Degrees
	Height    float64 `json:"height"`    // Meters above the ellipsoid
}
