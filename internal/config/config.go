// Package config loads the PieSS configuration: built-in defaults, then an
// optional YAML file checked against an embedded CUE schema, then PIESS_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CPowerMav/PieSS/internal/alert"
	"github.com/CPowerMav/PieSS/internal/api"
	"github.com/CPowerMav/PieSS/internal/geo"
	"github.com/CPowerMav/PieSS/internal/hardware"
	"github.com/CPowerMav/PieSS/internal/logging"
	"github.com/CPowerMav/PieSS/internal/runner"
	"github.com/CPowerMav/PieSS/internal/scheduler"
	"github.com/CPowerMav/PieSS/internal/tle"
	"github.com/CPowerMav/PieSS/internal/visibility"
)

// LocationConfig is the observer site. When Detect is set the site is
// looked up by IP geolocation and the coordinates here are the fallback.
type LocationConfig struct {
	geo.Location `yaml:",inline"`
	Detect       bool          `yaml:"detect"`
	Timeout      time.Duration `yaml:"timeout"`
}

// TLEConfig selects the satellite and where its elements come from.
type TLEConfig struct {
	NORADID         int           `yaml:"norad_id"`
	Name            string        `yaml:"name"`
	SourceURL       string        `yaml:"source_url"`
	ExtraURLs       []string      `yaml:"extra_urls"`
	Fetch           bool          `yaml:"fetch"`
	CacheDir        string        `yaml:"cache_dir"`
	MaxFiles        int           `yaml:"max_files"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

// SearchConfig bounds the pass search.
type SearchConfig struct {
	Horizon time.Duration `yaml:"horizon"`
}

// StatusConfig controls the text status block.
type StatusConfig struct {
	Print bool `yaml:"print"`
}

// Config is the full process configuration.
type Config struct {
	Log        logging.Config    `yaml:"log"`
	Location   LocationConfig    `yaml:"location"`
	TLE        TLEConfig         `yaml:"tle"`
	Visibility visibility.Config `yaml:"visibility"`
	Search     SearchConfig      `yaml:"search"`
	Alert      alert.Config      `yaml:"alert"`
	Loop       runner.Config     `yaml:"loop"`
	Hardware   hardware.Config   `yaml:"hardware"`
	HTTP       api.Config        `yaml:"http"`
	Status     StatusConfig      `yaml:"status"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: logging.Config{Level: "info", Format: "json"},
		Location: LocationConfig{
			Location: geo.DefaultLocation,
			Detect:   true,
			Timeout:  5 * time.Second,
		},
		TLE: TLEConfig{
			NORADID:         25544,
			Name:            "ISS (ZARYA)",
			SourceURL:       tle.DefaultSourceURL,
			Fetch:           true,
			CacheDir:        "/var/lib/piess/tle",
			MaxFiles:        5,
			RefreshInterval: 12 * time.Hour,
			Timeout:         10 * time.Second,
		},
		Visibility: visibility.DefaultConfig(),
		Search:     SearchConfig{Horizon: scheduler.DefaultSearchHorizon},
		Alert:      alert.DefaultConfig(),
		Loop:       runner.DefaultConfig(),
		Hardware:   hardware.DefaultConfig(),
		HTTP:       api.DefaultConfig(),
		Status:     StatusConfig{Print: true},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config: %w", err)
	}
	if err := ValidateSchema(path, data); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints the schema cannot express and
// fills derived defaults such as stage names.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Location.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("location: %w", err))
	}
	if c.TLE.NORADID <= 0 {
		errs = append(errs, errors.New("tle: norad_id must be positive"))
	}
	if c.TLE.MaxFiles < 1 {
		errs = append(errs, errors.New("tle: max_files must be at least 1"))
	}
	switch c.Visibility.Method {
	case visibility.MethodSunElevation, visibility.MethodSunriseSunset:
	default:
		errs = append(errs, fmt.Errorf("visibility: unknown method %q", c.Visibility.Method))
	}
	if c.Search.Horizon <= 0 {
		errs = append(errs, errors.New("search: horizon must be positive"))
	}
	if err := c.Alert.Validate(); err != nil {
		errs = append(errs, err)
	}
	if first := c.Alert.FirstThreshold(); c.Loop.LeadTime < first {
		errs = append(errs, fmt.Errorf("loop: lead_time %s must be at least the first stage threshold %s", c.Loop.LeadTime, first))
	}
	if c.Loop.Cooldown <= 0 || c.Loop.ErrorBackoff <= 0 || c.Loop.MaxBackoff < c.Loop.ErrorBackoff {
		errs = append(errs, errors.New("loop: cooldown and error_backoff must be positive and max_backoff at least error_backoff"))
	}
	for _, led := range append(c.Alert.StageLEDs(), hardware.DirectionLEDs...) {
		if _, ok := c.Hardware.LEDs[led]; !ok && c.Hardware.Driver == hardware.DriverPigpio {
			errs = append(errs, fmt.Errorf("hardware: led %q has no pin", led))
		}
	}
	return errors.Join(errs...)
}
