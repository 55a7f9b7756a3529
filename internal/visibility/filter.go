// Package visibility decides whether a pass can be seen with the naked eye:
// high enough above the horizon and against a dark enough sky.
package visibility

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/CPowerMav/PieSS/internal/ephemeris"
	"github.com/CPowerMav/PieSS/internal/solar"
	"github.com/CPowerMav/PieSS/internal/transform"
)

// Method selects how darkness is judged.
type Method string

const (
	// MethodSunElevation compares the Sun's elevation at peak with the
	// darkness threshold.
	MethodSunElevation Method = "sun_elevation"
	// MethodSunriseSunset brackets the peak against the day's sunrise and
	// sunset.
	MethodSunriseSunset Method = "sunrise_sunset"
)

// Reasons reported in a Decision.
const (
	ReasonDark           = "dark"
	ReasonTwilight       = "sun above darkness threshold"
	ReasonDaylight       = "between sunrise and sunset"
	ReasonLowPeak        = "peak below minimum elevation"
	ReasonSunUnavailable = "sun position unavailable"
	ReasonAssumedVisible = "sun position unavailable, assumed visible"
)

var errSunPosition = errors.New("sun position is not a number")

// Config holds the visibility thresholds.
type Config struct {
	Method               Method  `yaml:"method" json:"method"`
	DarknessThresholdDeg float64 `yaml:"darkness_threshold_deg" json:"darkness_threshold_deg"`
	MinElevationDeg      float64 `yaml:"min_elevation_deg" json:"min_elevation_deg"`
	AssumeVisibleOnError bool    `yaml:"assume_visible_on_error" json:"assume_visible_on_error"`
}

// DefaultConfig returns civil twilight and a 10 degree minimum elevation.
func DefaultConfig() Config {
	return Config{
		Method:               MethodSunElevation,
		DarknessThresholdDeg: -6,
		MinElevationDeg:      10,
		AssumeVisibleOnError: true,
	}
}

// Decision is the outcome for one pass.
type Decision struct {
	Visible bool    `json:"visible"`
	Reason  string  `json:"reason"`
	Method  Method  `json:"method,omitempty"`
	// SunElevation is set when the sun_elevation method produced the
	// decision, NaN otherwise.
	SunElevation float64 `json:"-"`
	// Fallback marks a decision made without a sun position.
	Fallback bool `json:"fallback,omitempty"`
}

// SunElevationFunc returns the Sun's elevation in degrees.
type SunElevationFunc func(latDeg, lonDeg float64, t time.Time) (float64, error)

// SunDayFunc returns the sunrise and sunset of the nominal day containing t.
type SunDayFunc func(latDeg, lonDeg float64, t time.Time) (solar.Day, error)

// Option customizes a Filter.
type Option func(*Filter)

// WithSunElevation replaces the solar elevation model.
func WithSunElevation(fn SunElevationFunc) Option {
	return func(f *Filter) { f.sunElevation = fn }
}

// WithSunDay replaces the sunrise/sunset model.
func WithSunDay(fn SunDayFunc) Option {
	return func(f *Filter) { f.sunDay = fn }
}

// Filter applies the visibility rules. It has no side effects besides
// logging.
type Filter struct {
	cfg          Config
	logger       *slog.Logger
	sunElevation SunElevationFunc
	sunDay       SunDayFunc
}

// NewFilter creates a Filter. An empty Method means sun_elevation.
func NewFilter(cfg Config, logger *slog.Logger, opts ...Option) *Filter {
	if cfg.Method == "" {
		cfg.Method = MethodSunElevation
	}
	f := &Filter{
		cfg:          cfg,
		logger:       logger,
		sunElevation: solarElevation,
		sunDay:       solarDay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the filter's thresholds.
func (f *Filter) Config() Config {
	return f.cfg
}

// IsVisible reports whether pass is visible from obs.
func (f *Filter) IsVisible(obs transform.ObserverPosition, pass ephemeris.PassEvent) bool {
	return f.Decide(obs, pass).Visible
}

// Decide judges pass by its peak.
//
// The configured method is tried first and the other one second. If
// neither can place the Sun, the pass is visible only when
// AssumeVisibleOnError is set, and the decision is marked Fallback.
// A Sun exactly at the darkness threshold is not dark.
func (f *Filter) Decide(obs transform.ObserverPosition, pass ephemeris.PassEvent) Decision {
	if pass.PeakElevation < f.cfg.MinElevationDeg {
		return Decision{Reason: ReasonLowPeak, SunElevation: math.NaN()}
	}

	methods := []Method{MethodSunElevation, MethodSunriseSunset}
	if f.cfg.Method == MethodSunriseSunset {
		methods = []Method{MethodSunriseSunset, MethodSunElevation}
	}

	var errs []error
	for _, m := range methods {
		d, err := f.decideBy(m, obs, pass.Peak)
		if err == nil {
			return d
		}
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if f.cfg.AssumeVisibleOnError {
		f.logger.Warn("sun position unavailable, assuming pass is visible",
			"peak", pass.Peak, "error", err)
		return Decision{Visible: true, Reason: ReasonAssumedVisible, SunElevation: math.NaN(), Fallback: true}
	}
	f.logger.Warn("sun position unavailable, rejecting pass", "peak", pass.Peak, "error", err)
	return Decision{Reason: ReasonSunUnavailable, SunElevation: math.NaN(), Fallback: true}
}

func (f *Filter) decideBy(m Method, obs transform.ObserverPosition, peak time.Time) (Decision, error) {
	switch m {
	case MethodSunElevation:
		sun, err := f.sunElevation(obs.LatDeg, obs.LonDeg, peak)
		if err != nil {
			return Decision{}, fmt.Errorf("sun elevation: %w", err)
		}
		d := Decision{Method: m, SunElevation: sun, Reason: ReasonTwilight}
		if sun < f.cfg.DarknessThresholdDeg {
			d.Visible, d.Reason = true, ReasonDark
		}
		return d, nil

	case MethodSunriseSunset:
		day, err := f.sunDay(obs.LatDeg, obs.LonDeg, peak)
		if err != nil {
			return Decision{}, fmt.Errorf("sunrise/sunset: %w", err)
		}
		d := Decision{Method: m, SunElevation: math.NaN(), Reason: ReasonDaylight}
		if day.IsNight(peak) {
			d.Visible, d.Reason = true, ReasonDark
		}
		return d, nil

	default:
		return Decision{}, fmt.Errorf("unknown visibility method %q", m)
	}
}

func solarElevation(latDeg, lonDeg float64, t time.Time) (float64, error) {
	el := solar.Elevation(latDeg, lonDeg, t)
	if math.IsNaN(el) {
		return 0, errSunPosition
	}
	return el, nil
}

func solarDay(latDeg, lonDeg float64, t time.Time) (solar.Day, error) {
	return solar.SunriseSunset(latDeg, lonDeg, solar.LocalDayStart(lonDeg, t))
}
