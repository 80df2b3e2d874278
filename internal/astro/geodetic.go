package astro

import (
	"math"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ECEF returns the earth-centred, earth-fixed position of a geodetic location
// in kilometers.
func ECEF(loc spectrum.Location) Vector {
	lat := radians(loc.Latitude)
	lon := radians(loc.Longitude)

	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Radius of curvature in the prime vertical.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Vector{
		(n + loc.Height) * cosLat * cosLon,
		(n + loc.Height) * cosLat * sinLon,
		(n*(1-wgs84E2) + loc.Height) * sinLat,
	}.Scale(1e-3)
}

// DiurnalVelocity returns the velocity (km/s) of an observer at loc due to the
// rotation of the Earth, in the equatorial frame where Greenwich sits at the
// sidereal angle gmst.
func DiurnalVelocity(loc spectrum.Location, gmst float64) Vector {
	r := ECEF(loc)
	v := Vector{-EarthRotationRate * r[1], EarthRotationRate * r[0], 0}
	return v.RotateZ(gmst)
}
