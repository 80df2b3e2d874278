package astro

import (
	"math"
	"time"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// AUPerDay is one astronomical unit per day in km/s.
const AUPerDay = 149597870.7 / 86400

// obliquityJ2000 is the mean obliquity of the ecliptic at J2000.0 in degrees.
const obliquityJ2000 = 23.4392911

// generalPrecession is the precession in ecliptic longitude in degrees per day.
const generalPrecession = 1.396971 / 36525

// sunEcliptic returns the geocentric ecliptic longitude of the Sun (degrees,
// mean equinox of date) and its distance (AU), n days after J2000.0. This is
// the low-precision solar ephemeris of the Astronomical Almanac, good to about
// 0.01° between 1950 and 2050.
func sunEcliptic(n float64) (lambda, r float64) {
	l := 280.460 + 0.9856474*n
	g := radians(357.528 + 0.9856003*n)

	lambda = l + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)
	r = 1.00014 - 0.01671*math.Cos(g) - 0.00014*math.Cos(2*g)
	return math.Mod(lambda, 360), r
}

// EarthPosition returns the heliocentric position of the Earth in AU, in the
// J2000 equatorial frame, n days after J2000.0.
func EarthPosition(n float64) Vector {
	lambda, r := sunEcliptic(n)
	lambda = radians(lambda - generalPrecession*n)

	sun := Vector{r * math.Cos(lambda), r * math.Sin(lambda), 0}
	return sun.Scale(-1).RotateX(radians(obliquityJ2000))
}

// EarthVelocity returns the heliocentric orbital velocity of the Earth at t in
// km/s, in the J2000 equatorial frame.
func EarthVelocity(t time.Time) Vector {
	n := DaysSinceJ2000(t)
	return EarthPosition(n + 0.5).Sub(EarthPosition(n - 0.5)).Scale(AUPerDay)
}

// SunElevation returns the apparent elevation of the Sun's centre above the
// horizon at loc, in degrees. Refraction is ignored.
func SunElevation(loc spectrum.Location, t time.Time) float64 {
	n := DaysSinceJ2000(t)
	lambda, _ := sunEcliptic(n)
	eps := radians(23.439 - 0.0000004*n)

	l := radians(lambda)
	ra := math.Atan2(math.Cos(eps)*math.Sin(l), math.Cos(l))
	dec := math.Asin(math.Sin(eps) * math.Sin(l))

	hourAngle := GMST(t) + radians(loc.Longitude) - ra
	lat := radians(loc.Latitude)

	return degrees(math.Asin(math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(hourAngle)))
}
