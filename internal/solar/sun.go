// Package solar computes where the Sun is for an observer: its elevation at
// an instant and the sunrise/sunset instants of a day.
package solar

import (
	"errors"
	"math"
	"time"

	"github.com/CPowerMav/PieSS/internal/transform"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi

	// HorizonDeg is the apparent-horizon elevation of the Sun's center at
	// sunrise and sunset (refraction plus semi-diameter).
	HorizonDeg = -0.833
)

// ErrNoCrossing is returned when the Sun neither rises nor sets during the
// requested day (polar day or polar night).
var ErrNoCrossing = errors.New("sun does not cross the horizon on this day")

// Position returns the apparent right ascension and declination of the Sun
// in degrees. Low-precision Astronomical Almanac series, good to about
// 0.01 degrees.
func Position(t time.Time) (raDeg, decDeg float64) {
	T := transform.JulianCenturies(t)

	L0 := normalize360(280.46646 + 36000.76983*T + 0.0003032*T*T)
	M := normalize360(357.52911 + 35999.05029*T - 0.0001537*T*T)
	m := M * deg2rad

	// Equation of center.
	C := (1.914602-0.004817*T-0.000014*T*T)*math.Sin(m) +
		(0.019993-0.000101*T)*math.Sin(2*m) +
		0.000289*math.Sin(3*m)

	// Apparent longitude, corrected for nutation and aberration.
	omega := (125.04 - 1934.136*T) * deg2rad
	lambda := (L0 + C - 0.00569 - 0.00478*math.Sin(omega)) * deg2rad

	eps0 := 23.439291 - 0.0130042*T - 0.00000016*T*T + 0.000000504*T*T*T
	eps := (eps0 + 0.00256*math.Cos(omega)) * deg2rad

	raDeg = normalize360(math.Atan2(math.Cos(eps)*math.Sin(lambda), math.Cos(lambda)) * rad2deg)
	decDeg = math.Asin(math.Sin(eps)*math.Sin(lambda)) * rad2deg
	return raDeg, decDeg
}

// Elevation returns the geometric elevation of the Sun's center in degrees
// for an observer at latDeg, lonDeg (east positive) at t.
func Elevation(latDeg, lonDeg float64, t time.Time) float64 {
	ra, dec := Position(t)

	hourAngle := transform.GMST(t) + lonDeg*deg2rad - ra*deg2rad
	lat := latDeg * deg2rad
	d := dec * deg2rad

	sinAlt := math.Sin(lat)*math.Sin(d) + math.Cos(lat)*math.Cos(d)*math.Cos(hourAngle)
	return math.Asin(clamp(sinAlt, -1, 1)) * rad2deg
}

func normalize360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
