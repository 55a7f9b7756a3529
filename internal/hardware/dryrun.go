package hardware

import "log/slog"

// DryRun logs every command instead of driving pins.
type DryRun struct {
	logger *slog.Logger
}

// NewDryRun returns a logging driver.
func NewDryRun(logger *slog.Logger) *DryRun {
	return &DryRun{logger: logger}
}

// SetLED logs the command.
func (d *DryRun) SetLED(name string, on bool) error {
	d.logger.Info("dry-run led", "led", name, "on", on)
	return nil
}

// SetServo logs the command.
func (d *DryRun) SetServo(pulseUS int, hold bool) error {
	d.logger.Info("dry-run servo", "pulse_us", pulseUS, "hold", hold)
	return nil
}

// Close is a no-op.
func (d *DryRun) Close() error { return nil }
