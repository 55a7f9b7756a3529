package hardware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CPowerMav/PieSS/internal/clock"
)

// SelfTestConfig times the self-test sequence.
type SelfTestConfig struct {
	LEDOn     time.Duration
	ServoHold time.Duration
	Gap       time.Duration
	Pause     time.Duration // between cycles
	Cycles    int           // 0 runs until ctx is cancelled
}

// DefaultSelfTestConfig returns the timings of the original test script.
func DefaultSelfTestConfig() SelfTestConfig {
	return SelfTestConfig{
		LEDOn:     1500 * time.Millisecond,
		ServoHold: 2 * time.Second,
		Gap:       300 * time.Millisecond,
		Pause:     2 * time.Second,
		Cycles:    1,
	}
}

// SelfTest lights each LED in turn, then moves the flag up and down,
// releasing the servo after each move. Outputs are always left off.
// Cancellation ends the test without error.
func SelfTest(ctx context.Context, act Actuator, leds []string, servo ServoConfig, clk clock.Clock, cfg SelfTestConfig, logger *slog.Logger) error {
	err := runSelfTest(ctx, act, leds, servo, clk, cfg, logger)

	var errs []error
	for _, led := range leds {
		if e := act.SetLED(led, false); e != nil {
			errs = append(errs, fmt.Errorf("%w: led %s: %w", ErrCommandFailed, led, e))
		}
	}
	if e := act.SetServo(0, false); e != nil {
		errs = append(errs, fmt.Errorf("%w: servo release: %w", ErrCommandFailed, e))
	}

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(append([]error{err}, errs...)...)
}

func runSelfTest(ctx context.Context, act Actuator, leds []string, servo ServoConfig, clk clock.Clock, cfg SelfTestConfig, logger *slog.Logger) error {
	for cycle := 1; cfg.Cycles <= 0 || cycle <= cfg.Cycles; cycle++ {
		logger.Info("self-test cycle", "cycle", cycle)

		for _, led := range leds {
			if err := act.SetLED(led, true); err != nil {
				return fmt.Errorf("%w: led %s: %w", ErrCommandFailed, led, err)
			}
			if err := clock.Sleep(ctx, clk, cfg.LEDOn); err != nil {
				return err
			}
			if err := act.SetLED(led, false); err != nil {
				return fmt.Errorf("%w: led %s: %w", ErrCommandFailed, led, err)
			}
			logger.Info("self-test led ok", "led", led)
			if err := clock.Sleep(ctx, clk, cfg.Gap); err != nil {
				return err
			}
		}

		for _, pos := range []struct {
			name  string
			pulse int
		}{{"up", servo.UpUS}, {"down", servo.DownUS}} {
			if err := act.SetServo(pos.pulse, true); err != nil {
				return fmt.Errorf("%w: servo %s: %w", ErrCommandFailed, pos.name, err)
			}
			if err := clock.Sleep(ctx, clk, cfg.ServoHold); err != nil {
				return err
			}
			if err := act.SetServo(0, false); err != nil {
				return fmt.Errorf("%w: servo release: %w", ErrCommandFailed, err)
			}
			logger.Info("self-test servo ok", "position", pos.name, "pulse_us", pos.pulse)
			if err := clock.Sleep(ctx, clk, cfg.Gap); err != nil {
				return err
			}
		}

		if cfg.Cycles <= 0 || cycle < cfg.Cycles {
			if err := clock.Sleep(ctx, clk, cfg.Pause); err != nil {
				return err
			}
		}
	}
	return nil
}
