// Package transform converts SGP4 output into what an observer on the
// ground sees.
//
// SGP4 positions are in TEME. They are rotated into an Earth-fixed frame by
// GMST alone (TEME -> PEF, taken as ECEF); polar motion and the equation of
// the equinoxes are ignored. The resulting error is tens of meters, far
// below what matters for a naked-eye pass.
package transform

import (
	"math"
	"time"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi

	// jdJ2000 is the Julian Date of 2000-01-01 12:00 TT.
	jdJ2000 = 2451545.0
	// jdUnixEpoch is the Julian Date of 1970-01-01 00:00 UTC.
	jdUnixEpoch = 2440587.5
)

// PositionTEME is a position (km) and velocity (km/s) in the TEME frame.
type PositionTEME struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// PositionECEF is a position in meters in the Earth-fixed frame.
type PositionECEF struct {
	X, Y, Z float64
}

// JulianDate returns the Julian Date of t.
func JulianDate(t time.Time) float64 {
	return jdUnixEpoch + float64(t.UTC().UnixNano())/float64(24*time.Hour)
}

// JulianCenturies returns Julian centuries since J2000.0.
func JulianCenturies(t time.Time) float64 {
	return (JulianDate(t) - jdJ2000) / 36525.0
}

// GMST returns Greenwich Mean Sidereal Time in radians, [0, 2π).
// IAU-82 expression (Vallado eq. 3-47), in seconds of time.
func GMST(t time.Time) float64 {
	tu := JulianCenturies(t)
	sec := 67310.54841 +
		(876600.0*3600.0+8640184.812866)*tu +
		0.093104*tu*tu -
		6.2e-6*tu*tu*tu

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2 * math.Pi
}

// TEMEToECEF rotates a TEME position about Z by GMST and converts km to m.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	g := GMST(t)
	c, s := math.Cos(g), math.Sin(g)
	return PositionECEF{
		X: (teme.X*c + teme.Y*s) * 1000.0,
		Y: (-teme.X*s + teme.Y*c) * 1000.0,
		Z: teme.Z * 1000.0,
	}
}
