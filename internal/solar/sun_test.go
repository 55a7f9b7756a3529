package solar

import (
	"errors"
	"math"
	"testing"
	"time"
)

const (
	testLat = 43.577090
	testLon = -79.727520
)

func TestElevation(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
		at   time.Time
		want float64
	}{
		{"summer afternoon", testLat, testLon, time.Date(2025, 6, 21, 16, 0, 0, 0, time.UTC), 63.89},
		{"summer night", testLat, testLon, time.Date(2025, 6, 21, 4, 0, 0, 0, time.UTC), -20.47},
		{"winter dusk", testLat, testLon, time.Date(2025, 1, 15, 22, 45, 0, 0, time.UTC), -6.81},
		{"winter night", testLat, testLon, time.Date(2025, 1, 15, 23, 30, 0, 0, time.UTC), -14.51},
		{"equinox subsolar", 0, 0, time.Date(2024, 3, 20, 12, 7, 0, 0, time.UTC), 89.83},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Elevation(tt.lat, tt.lon, tt.at)
			if math.Abs(got-tt.want) > 0.1 {
				t.Errorf("Elevation = %.3f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestPositionDeclinationAtSolstice(t *testing.T) {
	_, dec := Position(time.Date(2025, 6, 21, 2, 42, 0, 0, time.UTC))
	if math.Abs(dec-23.44) > 0.05 {
		t.Errorf("declination = %.3f, want ~23.44", dec)
	}
}

func TestLocalDayStart(t *testing.T) {
	at := time.Date(2025, 6, 22, 2, 0, 0, 0, time.UTC) // 20:41 local mean time on the 21st
	got := LocalDayStart(testLon, at)

	offset := time.Duration(testLon / 15.0 * float64(time.Hour))
	want := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC).Add(-offset)
	if !got.Equal(want) {
		t.Errorf("LocalDayStart = %v, want %v", got, want)
	}
}

func TestSunriseSunset(t *testing.T) {
	tests := []struct {
		name        string
		day         time.Time
		wantSunrise time.Time
		wantSunset  time.Time
	}{
		{
			name:        "june solstice",
			day:         time.Date(2025, 6, 21, 16, 0, 0, 0, time.UTC),
			wantSunrise: time.Date(2025, 6, 21, 9, 37, 54, 0, time.UTC),
			wantSunset:  time.Date(2025, 6, 22, 1, 3, 54, 0, time.UTC),
		},
		{
			name:        "december solstice",
			day:         time.Date(2025, 12, 21, 17, 0, 0, 0, time.UTC),
			wantSunrise: time.Date(2025, 12, 21, 12, 49, 54, 0, time.UTC),
			wantSunset:  time.Date(2025, 12, 21, 21, 45, 54, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := SunriseSunset(testLat, testLon, LocalDayStart(testLon, tt.day))
			if err != nil {
				t.Fatalf("SunriseSunset: %v", err)
			}
			if diff := d.Sunrise.Sub(tt.wantSunrise).Abs(); diff > 2*time.Minute {
				t.Errorf("sunrise = %v, want ~%v", d.Sunrise, tt.wantSunrise)
			}
			if diff := d.Sunset.Sub(tt.wantSunset).Abs(); diff > 2*time.Minute {
				t.Errorf("sunset = %v, want ~%v", d.Sunset, tt.wantSunset)
			}
		})
	}
}

func TestSunriseSunsetPolarDay(t *testing.T) {
	// Tromsø at midsummer: the Sun stays up.
	start := LocalDayStart(18.96, time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC))
	_, err := SunriseSunset(69.65, 18.96, start)
	if !errors.Is(err, ErrNoCrossing) {
		t.Fatalf("err = %v, want ErrNoCrossing", err)
	}
}

func TestDayIsNight(t *testing.T) {
	base := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	tests := []struct {
		name string
		day  Day
		t    time.Time
		want bool
	}{
		{"before sunrise", Day{Sunrise: at(7), Sunset: at(17)}, at(5), true},
		{"midday", Day{Sunrise: at(7), Sunset: at(17)}, at(12), false},
		{"after sunset", Day{Sunrise: at(7), Sunset: at(17)}, at(20), true},
		{"at sunset", Day{Sunrise: at(7), Sunset: at(17)}, at(17), true},
		{"wrapped night inside", Day{Sunrise: at(12), Sunset: at(1)}, at(5), true},
		{"wrapped day before sunset", Day{Sunrise: at(12), Sunset: at(1)}, at(0), false},
		{"wrapped day after sunrise", Day{Sunrise: at(12), Sunset: at(1)}, at(18), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.day.IsNight(tt.t); got != tt.want {
				t.Errorf("IsNight(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}
