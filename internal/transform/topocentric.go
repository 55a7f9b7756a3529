package transform

import "math"

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// ObserverPosition is a ground observer with its ECEF coordinates
// precomputed for repeated look-angle evaluation.
type ObserverPosition struct {
	LatDeg, LonDeg, AltM float64
	LatRad, LonRad       float64
	ECEFx, ECEFy, ECEFz  float64 // meters
}

// LookAngles is the direction and distance from observer to target.
type LookAngles struct {
	AzimuthDeg   float64 // clockwise from north, [0, 360)
	ElevationDeg float64 // above the horizon
	RangeKm      float64
}

// NewObserverPosition builds an observer from geodetic degrees and meters
// above the WGS-84 ellipsoid.
func NewObserverPosition(latDeg, lonDeg, altM float64) ObserverPosition {
	lat := latDeg * deg2rad
	lon := lonDeg * deg2rad
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)

	// Prime vertical radius of curvature.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return ObserverPosition{
		LatDeg: latDeg,
		LonDeg: lonDeg,
		AltM:   altM,
		LatRad: lat,
		LonRad: lon,
		ECEFx:  (n + altM) * cosLat * math.Cos(lon),
		ECEFy:  (n + altM) * cosLat * math.Sin(lon),
		ECEFz:  (n*(1-wgs84E2) + altM) * sinLat,
	}
}

// ECEFToLookAngles returns the look angles from obs to a target at the
// given ECEF position (meters), via the South-East-Zenith rotation
// (Vallado §4.4).
func ECEFToLookAngles(obs ObserverPosition, x, y, z float64) LookAngles {
	rx, ry, rz := x-obs.ECEFx, y-obs.ECEFy, z-obs.ECEFz

	sinLat, cosLat := math.Sin(obs.LatRad), math.Cos(obs.LatRad)
	sinLon, cosLon := math.Sin(obs.LonRad), math.Cos(obs.LonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	up := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rng := math.Sqrt(south*south + east*east + up*up)
	if rng == 0 {
		return LookAngles{ElevationDeg: 90}
	}

	az := math.Atan2(east, -south) * rad2deg
	if az < 0 {
		az += 360
	}
	if az >= 360 {
		az -= 360
	}

	return LookAngles{
		AzimuthDeg:   az,
		ElevationDeg: math.Asin(up/rng) * rad2deg,
		RangeKm:      rng / 1000.0,
	}
}
