package transform

import (
	"math"
	"testing"
	"time"
)

func magnitude(o ObserverPosition) float64 {
	return math.Sqrt(o.ECEFx*o.ECEFx + o.ECEFy*o.ECEFy + o.ECEFz*o.ECEFz)
}

func TestNewObserverPositionRadii(t *testing.T) {
	if got := magnitude(NewObserverPosition(0, 0, 0)); math.Abs(got-6378137.0) > 1 {
		t.Errorf("equatorial radius = %.1f m, want ~6378137", got)
	}
	if got := magnitude(NewObserverPosition(90, 0, 0)); math.Abs(got-6356752.3) > 1 {
		t.Errorf("polar radius = %.1f m, want ~6356752", got)
	}
	diff := magnitude(NewObserverPosition(0, 0, 100)) - magnitude(NewObserverPosition(0, 0, 0))
	if math.Abs(diff-100) > 0.01 {
		t.Errorf("altitude offset = %.3f m, want 100", diff)
	}
}

func TestLookAnglesCardinal(t *testing.T) {
	obs := NewObserverPosition(0, 0, 0)

	tests := []struct {
		name    string
		x, y, z float64
		az, el  float64
	}{
		{"zenith", obs.ECEFx + 400e3, obs.ECEFy, obs.ECEFz, -1, 90},
		{"north horizon", obs.ECEFx, obs.ECEFy, obs.ECEFz + 1000e3, 0, 0},
		{"east horizon", obs.ECEFx, obs.ECEFy + 1000e3, obs.ECEFz, 90, 0},
		{"south horizon", obs.ECEFx, obs.ECEFy, obs.ECEFz - 1000e3, 180, 0},
		{"west horizon", obs.ECEFx, obs.ECEFy - 1000e3, obs.ECEFz, 270, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			la := ECEFToLookAngles(obs, tt.x, tt.y, tt.z)
			if math.Abs(la.ElevationDeg-tt.el) > 0.1 {
				t.Errorf("elevation = %.2f, want %.2f", la.ElevationDeg, tt.el)
			}
			if tt.az >= 0 && math.Abs(la.AzimuthDeg-tt.az) > 0.1 {
				t.Errorf("azimuth = %.2f, want %.2f", la.AzimuthDeg, tt.az)
			}
		})
	}
}

func TestJulianDate(t *testing.T) {
	tests := []struct {
		t    time.Time
		want float64
	}{
		{time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 2440587.5},
		{time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), 2460389.5},
	}
	for _, tt := range tests {
		if got := JulianDate(tt.t); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("JulianDate(%v) = %.6f, want %.6f", tt.t, got, tt.want)
		}
	}
}

func TestGMST(t *testing.T) {
	// Vallado example 3-5: 1992-08-20 12:14 UT1 -> GMST 152.578787810 deg.
	got := GMST(time.Date(1992, 8, 20, 12, 14, 0, 0, time.UTC)) * rad2deg
	if math.Abs(got-152.578787810) > 0.01 {
		t.Errorf("GMST = %.6f deg, want 152.578788", got)
	}
}

func TestTEMEToECEFPreservesMagnitude(t *testing.T) {
	teme := PositionTEME{X: 5000, Y: -3000, Z: 3500}
	ecef := TEMEToECEF(teme, time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC))

	want := math.Sqrt(5000*5000+3000*3000+3500*3500) * 1000
	got := math.Sqrt(ecef.X*ecef.X + ecef.Y*ecef.Y + ecef.Z*ecef.Z)
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("|ecef| = %.3f, want %.3f", got, want)
	}
	if ecef.Z != 3500*1000 {
		t.Errorf("Z changed by rotation about Z: %.1f", ecef.Z)
	}
}
