package astro

import (
	"fmt"
	"time"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// Standard solar motion relative to the kinematic local standard of rest:
// 20 km/s towards RA 18h, Dec +30° (B1900), precessed to J2000.
const (
	SolarMotion = 20.0
	ApexRA      = 270.9595
	ApexDec     = 30.0047
)

// FrameVelocity holds the components of a rest frame correction, each
// projected on the line of sight in km/s.
type FrameVelocity struct {
	Orbital float64 // Earth orbital motion around the Sun
	Diurnal float64 // Earth rotation at the observer
	Solar   float64 // Solar motion relative to the LSRK
}

// Total returns the sum of the components.
func (f FrameVelocity) Total() float64 {
	return f.Orbital + f.Diurnal + f.Solar
}

// LSRKCorrector computes velocity corrections from the topocentric frame to
// the kinematic local standard of rest.
//
// The observer motion uses a low-precision solar ephemeris and ignores the
// Sun's reflex motion around the barycenter, which keeps the result within
// about 0.05 km/s of a full barycentric correction.
type LSRKCorrector struct {
	apex Vector
}

// NewLSRKCorrector creates a corrector for the standard solar motion.
func NewLSRKCorrector() *LSRKCorrector {
	return &LSRKCorrector{apex: UnitVector(ApexRA, ApexDec).Scale(SolarMotion)}
}

// Components returns the individual velocity components for a source at
// pointing observed from loc at t. Positive values mean the observer moves
// towards the source.
func (c *LSRKCorrector) Components(pointing spectrum.Pointing, loc spectrum.Location, t time.Time) (FrameVelocity, error) {
	if pointing.Dec < -90 || pointing.Dec > 90 {
		return FrameVelocity{}, fmt.Errorf("declination %g is out of range", pointing.Dec)
	}
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return FrameVelocity{}, fmt.Errorf("latitude %g is out of range", loc.Latitude)
	}
	if t.IsZero() {
		return FrameVelocity{}, fmt.Errorf("observation time is not set")
	}

	source := UnitVector(pointing.RA, pointing.Dec)
	return FrameVelocity{
		Orbital: EarthVelocity(t).Dot(source),
		Diurnal: DiurnalVelocity(loc, GMST(t)).Dot(source),
		Solar:   c.apex.Dot(source),
	}, nil
}

// CorrectToFrame returns the velocity to add to a topocentric radial velocity
// to obtain the LSRK radial velocity, in km/s.
func (c *LSRKCorrector) CorrectToFrame(pointing spectrum.Pointing, loc spectrum.Location, t time.Time) (float64, error) {
	v, err := c.Components(pointing, loc, t)
	if err != nil {
		return 0, fmt.Errorf("lsrk: %w", err)
	}
	return v.Total(), nil
}
