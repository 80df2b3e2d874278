package astro

import (
	"time"

	"github.com/sj14/astral/pkg/astral"

	"github.com/roman-kulish/spectral-calibration/internal/spectrum"
)

// sunriseElevation is the elevation of the Sun's centre at sunrise, accounting
// for refraction and the solar radius.
const sunriseElevation = -0.833

// Daylight reports whether the Sun is up at loc at time t.
//
// Sunrise and sunset come from astral for the UTC day of t. Where astral cannot
// find them, as during polar day or night, the Sun's elevation decides.
func Daylight(loc spectrum.Location, t time.Time) bool {
	t = t.UTC()
	observer := astral.Observer{Latitude: loc.Latitude, Longitude: loc.Longitude}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	sunrise, err := astral.Sunrise(observer, day)
	if err != nil {
		return SunElevation(loc, t) > sunriseElevation
	}
	sunset, err := astral.Sunset(observer, day)
	if err != nil {
		return SunElevation(loc, t) > sunriseElevation
	}

	// Far from Greenwich the UTC day can end before local sunset.
	if sunset.Before(sunrise) {
		return !t.Before(sunrise) || t.Before(sunset)
	}
	return !t.Before(sunrise) && t.Before(sunset)
}
