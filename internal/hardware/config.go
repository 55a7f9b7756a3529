package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Driver names.
const (
	DriverPigpio = "pigpio"
	DriverDryRun = "dryrun"
)

// Config selects and configures the output driver.
type Config struct {
	Driver         string         `yaml:"driver" json:"driver"`
	PigpioAddr     string         `yaml:"pigpio_addr" json:"pigpio_addr"`
	CommandTimeout time.Duration  `yaml:"command_timeout" json:"command_timeout"`
	ServoPin       int            `yaml:"servo_pin" json:"servo_pin"`
	Servo          ServoConfig    `yaml:"servo" json:"servo"`
	LEDs           map[string]Pin `yaml:"leds" json:"leds"`
}

// DefaultConfig returns the wiring of the original build.
func DefaultConfig() Config {
	return Config{
		Driver:         DriverDryRun,
		PigpioAddr:     "localhost:8888",
		CommandTimeout: 2 * time.Second,
		ServoPin:       16,
		Servo:          DefaultServoConfig(),
		LEDs: map[string]Pin{
			LEDNorth:    {Number: 5},
			LEDEast:     {Number: 6},
			LEDSouth:    {Number: 13},
			LEDWest:     {Number: 12},
			"stage_10m": {Number: 22},
			"stage_5m":  {Number: 27},
			"stage_1m":  {Number: 17},
		},
	}
}

// Open returns the configured driver. An unreachable pigpiod is logged
// and not an error; the driver connects on its next command.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Driver, error) {
	switch cfg.Driver {
	case DriverPigpio:
		p := NewPigpio(cfg.PigpioAddr, cfg.LEDs, cfg.ServoPin, cfg.CommandTimeout, logger)
		if err := p.Connect(ctx); err != nil {
			logger.Warn("pigpiod unreachable, will retry on next command", "addr", cfg.PigpioAddr, "error", err)
		}
		return p, nil
	case DriverDryRun, "":
		logger.Info("hardware driver is dry-run; no pins will be driven")
		return NewDryRun(logger), nil
	default:
		return nil, fmt.Errorf("unknown hardware driver %q", cfg.Driver)
	}
}
