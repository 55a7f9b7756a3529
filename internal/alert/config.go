package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects how a lit stage LED behaves.
type Mode string

const (
	// ModeStatic keeps the current stage LED on.
	ModeStatic Mode = "static"
	// ModeBlink blinks the current stage LED faster as rise approaches.
	ModeBlink Mode = "blink"
)

// Stage is one countdown tier. It fires once remaining time drops to
// Threshold.
type Stage struct {
	Name      string        `yaml:"name" json:"name"`
	Threshold time.Duration `yaml:"threshold" json:"threshold"`
	LED       string        `yaml:"led" json:"led"`
}

// Band is a blink window: it applies while the remaining time is at or
// below Below and above the next band's Below.
type Band struct {
	Below  time.Duration `yaml:"below" json:"below"`
	Period time.Duration `yaml:"period" json:"period"`
}

// Config configures the countdown.
type Config struct {
	Stages           []Stage       `yaml:"stages" json:"stages"`
	Mode             Mode          `yaml:"mode" json:"mode"`
	Bands            []Band        `yaml:"bands" json:"bands"`
	PollInterval     time.Duration `yaml:"poll_interval" json:"poll_interval"`
	FinePollInterval time.Duration `yaml:"fine_poll_interval" json:"fine_poll_interval"`
}

// DefaultConfig returns 10, 5 and 1 minute stages with static LEDs.
func DefaultConfig() Config {
	return Config{
		Stages: []Stage{
			{Name: "10m", Threshold: 10 * time.Minute, LED: "stage_10m"},
			{Name: "5m", Threshold: 5 * time.Minute, LED: "stage_5m"},
			{Name: "1m", Threshold: time.Minute, LED: "stage_1m"},
		},
		Mode: ModeStatic,
		Bands: []Band{
			{Below: 10 * time.Minute, Period: 2 * time.Second},
			{Below: 5 * time.Minute, Period: time.Second},
			{Below: time.Minute, Period: 400 * time.Millisecond},
		},
		PollInterval:     5 * time.Second,
		FinePollInterval: 500 * time.Millisecond,
	}
}

// StageLEDs returns the LED of every stage, in order.
func (c Config) StageLEDs() []string {
	out := make([]string, len(c.Stages))
	for i, s := range c.Stages {
		out[i] = s.LED
	}
	return out
}

// FirstThreshold is the threshold of the earliest stage.
func (c Config) FirstThreshold() time.Duration {
	if len(c.Stages) == 0 {
		return 0
	}
	return c.Stages[0].Threshold
}

// Validate checks stage ordering and blink bands. Empty stage names are
// filled from the threshold.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Stages) == 0 {
		errs = append(errs, errors.New("alerts: at least one stage is required"))
	}
	for i := range c.Stages {
		s := &c.Stages[i]
		if s.Threshold <= 0 {
			errs = append(errs, fmt.Errorf("alerts: stage %d threshold must be positive", i))
		}
		if i > 0 && s.Threshold >= c.Stages[i-1].Threshold {
			errs = append(errs, fmt.Errorf("alerts: stage %d threshold %s must be below %s", i, s.Threshold, c.Stages[i-1].Threshold))
		}
		if s.LED == "" {
			errs = append(errs, fmt.Errorf("alerts: stage %d has no led", i))
		}
		if s.Name == "" {
			s.Name = shortDuration(s.Threshold)
		}
	}

	switch c.Mode {
	case "":
		c.Mode = ModeStatic
	case ModeStatic:
	case ModeBlink:
		if len(c.Bands) == 0 {
			errs = append(errs, errors.New("alerts: blink mode needs at least one band"))
		}
		for i, b := range c.Bands {
			if b.Below <= 0 || b.Period < 2*minWait {
				errs = append(errs, fmt.Errorf("alerts: band %d needs a positive start and a period of at least %s", i, 2*minWait))
			}
			if i > 0 && (b.Below >= c.Bands[i-1].Below || b.Period >= c.Bands[i-1].Period) {
				errs = append(errs, fmt.Errorf("alerts: band %d must start later and blink faster than band %d", i, i-1))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("alerts: unknown mode %q", c.Mode))
	}

	if c.PollInterval <= 0 || c.FinePollInterval <= 0 {
		errs = append(errs, errors.New("alerts: poll intervals must be positive"))
	}
	return errors.Join(errs...)
}

// shortDuration renders 10m0s as "10m" and 1m30s as "1m30s".
func shortDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}
