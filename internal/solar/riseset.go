package solar

import (
	"fmt"
	"math"
	"time"
)

const (
	scanStep  = 10 * time.Minute
	tolerance = time.Second
)

// Day holds the sunrise and sunset that fall inside one nominal day.
// Sunset may precede Sunrise when the nominal day is offset from local
// solar time.
type Day struct {
	Start   time.Time
	Sunrise time.Time
	Sunset  time.Time
}

// LocalDayStart returns the local-mean-time midnight (longitude/15 hours
// from UTC) of the day containing t.
func LocalDayStart(lonDeg float64, t time.Time) time.Time {
	offset := time.Duration(lonDeg / 15.0 * float64(time.Hour))
	local := t.UTC().Add(offset)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(-offset)
}

// SunriseSunset finds the sunrise and sunset in the 24 hours starting at
// dayStart. It returns ErrNoCrossing if either event is missing.
func SunriseSunset(latDeg, lonDeg float64, dayStart time.Time) (Day, error) {
	day := Day{Start: dayStart}
	end := dayStart.Add(24 * time.Hour)

	elev := func(t time.Time) float64 { return Elevation(latDeg, lonDeg, t) - HorizonDeg }

	prevT := dayStart
	prev := elev(prevT)
	for t := dayStart.Add(scanStep); !t.After(end); t = t.Add(scanStep) {
		cur := elev(t)
		switch {
		case prev < 0 && cur >= 0 && day.Sunrise.IsZero():
			day.Sunrise = bisect(elev, prevT, t)
		case prev >= 0 && cur < 0 && day.Sunset.IsZero():
			day.Sunset = bisect(elev, prevT, t)
		}
		prevT, prev = t, cur
	}

	if day.Sunrise.IsZero() || day.Sunset.IsZero() {
		return day, fmt.Errorf("%w: lat=%.3f lon=%.3f day=%s", ErrNoCrossing,
			latDeg, lonDeg, dayStart.UTC().Format(time.RFC3339))
	}
	return day, nil
}

// IsNight reports whether t is between sunset and sunrise of d.
//
// When Sunrise < Sunset the night wraps around the day boundaries;
// otherwise the night lies inside the day.
func (d Day) IsNight(t time.Time) bool {
	if d.Sunrise.Before(d.Sunset) {
		return t.Before(d.Sunrise) || !t.Before(d.Sunset)
	}
	return !t.Before(d.Sunset) && t.Before(d.Sunrise)
}

// bisect narrows a sign change of f between lo and hi to tolerance.
func bisect(f func(time.Time) float64, lo, hi time.Time) time.Time {
	fLo := f(lo)
	for hi.Sub(lo) > tolerance {
		mid := lo.Add(hi.Sub(lo) / 2)
		fMid := f(mid)
		if math.Signbit(fMid) == math.Signbit(fLo) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return lo.Add(hi.Sub(lo) / 2)
}
