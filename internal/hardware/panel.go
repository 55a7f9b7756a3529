package hardware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/CPowerMav/PieSS/internal/clock"
	"github.com/CPowerMav/PieSS/internal/metrics"
)

// ServoConfig holds the two named flag positions.
type ServoConfig struct {
	UpUS        int           `yaml:"up_us" json:"up_us"`
	DownUS      int           `yaml:"down_us" json:"down_us"`
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// DefaultServoConfig returns the pulse widths of the original flag
// mechanism.
func DefaultServoConfig() ServoConfig {
	return ServoConfig{UpUS: 530, DownUS: 1530, SettleDelay: time.Second}
}

// Panel tracks HardwareState and issues the commands that change it.
type Panel struct {
	act       Actuator
	servo     ServoConfig
	stageLEDs []string
	clk       clock.Clock
	logger    *slog.Logger

	mu    sync.Mutex
	state State
}

// NewPanel creates a Panel. stageLEDs are the alert LED names, in stage
// order.
func NewPanel(act Actuator, servo ServoConfig, stageLEDs []string, clk clock.Clock, logger *slog.Logger) *Panel {
	return &Panel{
		act:       act,
		servo:     servo,
		stageLEDs: slices.Clone(stageLEDs),
		clk:       clk,
		logger:    logger,
		state:     State{Servo: ServoReleased},
	}
}

// State returns the last commanded hardware state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Panel) update(fn func(*State)) {
	p.mu.Lock()
	fn(&p.state)
	p.mu.Unlock()
}

func (p *Panel) setLED(name string, on bool) error {
	err := p.act.SetLED(name, on)
	metrics.RecordHardwareCommand("led", err)
	if err != nil {
		return fmt.Errorf("%w: led %s on=%v: %w", ErrCommandFailed, name, on, err)
	}
	return nil
}

func (p *Panel) setServo(pulseUS int, hold bool) error {
	err := p.act.SetServo(pulseUS, hold)
	metrics.RecordHardwareCommand("servo", err)
	if err != nil {
		return fmt.Errorf("%w: servo pulse=%d hold=%v: %w", ErrCommandFailed, pulseUS, hold, err)
	}
	return nil
}

// ShowStage lights led and turns off the stage LED lit before it.
func (p *Panel) ShowStage(led string) error {
	prev := p.State()
	if prev.StageLED != "" && prev.StageLED != led {
		if err := p.setLED(prev.StageLED, false); err != nil {
			return err
		}
		p.update(func(s *State) { s.StageLit = false })
	}
	if err := p.setLED(led, true); err != nil {
		return err
	}
	p.update(func(s *State) { s.StageLED, s.StageLit = led, true })
	p.logger.Info("stage indicator on", "led", led)
	return nil
}

// BlinkStage switches the current stage LED without changing which LED it
// is. It does nothing when no stage is shown.
func (p *Panel) BlinkStage(on bool) error {
	cur := p.State()
	if cur.StageLED == "" || cur.StageLit == on {
		return nil
	}
	if err := p.setLED(cur.StageLED, on); err != nil {
		return err
	}
	p.update(func(s *State) { s.StageLit = on })
	return nil
}

// ClearStages turns off every stage LED.
func (p *Panel) ClearStages() error {
	var errs []error
	for _, led := range p.stageLEDs {
		errs = append(errs, p.setLED(led, false))
	}
	p.update(func(s *State) { s.StageLED, s.StageLit = "", false })
	return errors.Join(errs...)
}

// ShowDirection lights the LED for d and turns the previous one off.
// DirectionNone turns all direction LEDs off.
func (p *Panel) ShowDirection(d Direction) error {
	prev := p.State().Direction
	if prev == d {
		return nil
	}
	if led := prev.LED(); led != "" {
		if err := p.setLED(led, false); err != nil {
			return err
		}
	}
	p.update(func(s *State) { s.Direction = DirectionNone })
	if led := d.LED(); led != "" {
		if err := p.setLED(led, true); err != nil {
			return err
		}
	}
	p.update(func(s *State) { s.Direction = d })
	p.logger.Debug("direction indicator", "direction", string(d))
	return nil
}

// RaiseFlag drives the servo to Up and keeps the pulse asserted.
func (p *Panel) RaiseFlag() error {
	if err := p.setServo(p.servo.UpUS, true); err != nil {
		return err
	}
	p.update(func(s *State) { s.Servo = ServoUp })
	p.logger.Info("flag raised", "pulse_us", p.servo.UpUS)
	return nil
}

// Reset lowers the flag, waits for it to settle, releases the servo and
// turns every LED off. Every step is attempted even if an earlier one
// fails, and cancellation of ctx does not cut the settle delay short.
func (p *Panel) Reset(ctx context.Context) error {
	var errs []error

	if err := p.setServo(p.servo.DownUS, true); err != nil {
		errs = append(errs, err)
	} else {
		p.update(func(s *State) { s.Servo = ServoDown })
		if err := clock.Sleep(context.WithoutCancel(ctx), p.clk, p.servo.SettleDelay); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.setServo(0, false); err != nil {
		errs = append(errs, err)
	} else {
		p.update(func(s *State) { s.Servo = ServoReleased })
	}

	for _, led := range append(slices.Clone(p.stageLEDs), DirectionLEDs...) {
		if err := p.setLED(led, false); err != nil {
			errs = append(errs, err)
		}
	}
	p.update(func(s *State) {
		s.StageLED, s.StageLit = "", false
		s.Direction = DirectionNone
	})

	err := errors.Join(errs...)
	if err != nil {
		p.logger.Error("hardware reset incomplete", "error", err)
		return err
	}
	p.logger.Info("hardware reset")
	return nil
}
