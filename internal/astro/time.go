package astro

import (
	"math"
	"time"
)

// J2000 is the Julian Date of the J2000.0 epoch (2000-01-01 12:00 TT).
const J2000 = 2451545.0

// EarthRotationRate is the sidereal rotation rate of the Earth in rad/s.
const EarthRotationRate = 7.292115146706979e-5

// JulianDate converts t to a Julian Date. UTC is used in place of TT and UT1,
// which is well within the precision of the ephemeris used here.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())

	// January and February count as months 13 and 14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	dayFraction := (float64(t.Hour()) +
		float64(t.Minute())/60 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600) / 24

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5 + dayFraction
}

// DaysSinceJ2000 returns the number of days between the J2000.0 epoch and t.
func DaysSinceJ2000(t time.Time) float64 {
	return JulianDate(t) - J2000
}

// GMST returns the Greenwich Mean Sidereal Time at t in radians, in [0, 2π),
// using the IAU 1982 model.
func GMST(t time.Time) float64 {
	c := DaysSinceJ2000(t) / 36525

	// Seconds of time; 876600h expressed in seconds.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*c +
		0.093104*c*c -
		6.2e-6*c*c*c

	sec = math.Mod(sec, 86400)
	if sec < 0 {
		sec += 86400
	}
	return sec / 86400 * 2 * math.Pi
}
