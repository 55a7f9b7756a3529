// Package alert runs the countdown for one pass: staged LEDs before rise,
// the flag raised at the last stage, direction tracking during the pass and
// a hardware reset afterwards.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/CPowerMav/PieSS/internal/clock"
	"github.com/CPowerMav/PieSS/internal/ephemeris"
	"github.com/CPowerMav/PieSS/internal/hardware"
	"github.com/CPowerMav/PieSS/internal/metrics"
	"github.com/CPowerMav/PieSS/internal/transform"
)

// minWait keeps the poll loop moving when a boundary is reached exactly.
const minWait = 10 * time.Millisecond

// ErrNoPass is returned by Step before Begin.
var ErrNoPass = errors.New("no pass scheduled")

// Phase is the countdown position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaiting
	PhaseStaged
	PhaseFlagRaised
	PhaseInPass
	PhaseDone
)

var phaseNames = [...]string{"idle", "waiting", "staged", "flag_raised", "in_pass", "done"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText renders the phase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Indicators is the hardware the countdown drives.
type Indicators interface {
	ShowStage(led string) error
	BlinkStage(on bool) error
	ClearStages() error
	ShowDirection(d hardware.Direction) error
	RaiseFlag() error
	Reset(ctx context.Context) error
	State() hardware.State
}

// Tracker gives the satellite's direction during a pass.
type Tracker interface {
	LookAngles(obs transform.ObserverPosition, t time.Time) (transform.LookAngles, error)
}

// State is the countdown state for the current pass. Fired holds one
// guard per stage; Stage is the index of the last fired stage, or -1.
type State struct {
	Phase      Phase
	Stage      int
	Fired      []bool
	FlagRaised bool
	Direction  hardware.Direction
	PassID     string
	Pass       ephemeris.PassEvent
}

// Machine owns the countdown state and the indicators. It is driven from
// a single goroutine.
type Machine struct {
	cfg    Config
	ind    Indicators
	clk    clock.Clock
	logger *slog.Logger

	tracker Tracker
	obs     transform.ObserverPosition
	state   State
	onStep  func(Status)
}

// NewMachine creates an idle Machine. cfg must have been validated.
func NewMachine(cfg Config, ind Indicators, clk clock.Clock, logger *slog.Logger) *Machine {
	m := &Machine{cfg: cfg, ind: ind, clk: clk, logger: logger}
	m.clear()
	return m
}

// State returns a copy of the countdown state.
func (m *Machine) State() State {
	s := m.state
	s.Fired = slices.Clone(m.state.Fired)
	return s
}

func (m *Machine) clear() {
	m.state = State{
		Phase: PhaseIdle,
		Stage: -1,
		Fired: make([]bool, len(m.cfg.Stages)),
	}
	m.tracker = nil
	metrics.SetPhase(int(PhaseIdle))
}

func (m *Machine) setPhase(p Phase) {
	if m.state.Phase == p {
		return
	}
	m.logger.Debug("alert phase", "pass_id", m.state.PassID, "from", m.state.Phase.String(), "to", p.String())
	m.state.Phase = p
	metrics.SetPhase(int(p))
}

// Begin schedules pass and clears every stage guard.
func (m *Machine) Begin(pass ephemeris.PassEvent, passID string, tracker Tracker, obs transform.ObserverPosition) {
	m.clear()
	m.state.Pass = pass
	m.state.PassID = passID
	m.tracker = tracker
	m.obs = obs
	m.setPhase(PhaseWaiting)
	m.logger.Info("countdown scheduled",
		"pass_id", passID,
		"rise", pass.Rise,
		"set", pass.Set,
		"peak_elevation", pass.PeakElevation,
	)
}

// OnStep registers fn to receive the status after every step of Drive.
func (m *Machine) OnStep(fn func(Status)) {
	m.onStep = fn
}

// Run begins pass and drives it to completion.
func (m *Machine) Run(ctx context.Context, pass ephemeris.PassEvent, passID string, tracker Tracker, obs transform.ObserverPosition) error {
	m.Begin(pass, passID, tracker, obs)
	return m.Drive(ctx)
}

// Drive steps the begun pass until it is done. Any fault, including
// cancellation, runs the reset sequence before Drive returns.
func (m *Machine) Drive(ctx context.Context) error {
	for {
		now := m.clk.Now()
		wait, done, err := m.Step(ctx, now)
		if err != nil {
			return m.abort(ctx, err)
		}
		if m.onStep != nil {
			m.onStep(m.Status(now))
		}
		if done {
			return nil
		}
		if err := clock.Sleep(ctx, m.clk, wait); err != nil {
			return m.abort(ctx, err)
		}
	}
}

func (m *Machine) abort(ctx context.Context, cause error) error {
	m.logger.Warn("countdown interrupted, resetting hardware", "pass_id", m.state.PassID, "error", cause)
	if err := m.Reset(ctx); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Reset runs the Done sequence: flag down, settle, release, LEDs off,
// guards cleared, back to Idle.
func (m *Machine) Reset(ctx context.Context) error {
	if m.state.Phase != PhaseIdle {
		m.setPhase(PhaseDone)
	}
	err := m.ind.Reset(ctx)
	m.clear()
	return err
}

// Step advances the countdown to now and returns how long to wait before
// the next step. done is true once the pass has set and the hardware has
// been reset.
func (m *Machine) Step(ctx context.Context, now time.Time) (wait time.Duration, done bool, err error) {
	if m.state.Phase == PhaseIdle {
		return 0, false, ErrNoPass
	}
	pass := m.state.Pass

	switch {
	case now.After(pass.Set):
		m.logger.Info("pass complete", "pass_id", m.state.PassID)
		return 0, true, m.Reset(ctx)

	case !now.Before(pass.Rise):
		if err := m.track(now); err != nil {
			return 0, false, err
		}
		wait = min(m.cfg.FinePollInterval, pass.Set.Sub(now))
		return max(wait, minWait), false, nil

	default:
		wait, err = m.countdown(now, pass.Rise.Sub(now))
		if err != nil {
			return 0, false, err
		}
		return max(wait, minWait), false, nil
	}
}

// stageAt returns the stage whose window contains remaining, or -1.
// Stage i covers (T[i+1], T[i]], with T[n] = 0.
func (m *Machine) stageAt(remaining time.Duration) int {
	idx := -1
	for i, s := range m.cfg.Stages {
		if remaining <= s.Threshold {
			idx = i
		}
	}
	return idx
}

func (m *Machine) nextBoundary(idx int) time.Duration {
	if idx+1 < len(m.cfg.Stages) {
		return m.cfg.Stages[idx+1].Threshold
	}
	return 0
}

func (m *Machine) countdown(now time.Time, remaining time.Duration) (time.Duration, error) {
	idx := m.stageAt(remaining)
	if idx > m.state.Stage && !m.state.Fired[idx] {
		if err := m.fire(idx, remaining); err != nil {
			return 0, err
		}
	}

	poll := m.cfg.PollInterval
	if m.state.Stage == len(m.cfg.Stages)-1 {
		poll = m.cfg.FinePollInterval
	}
	wait := min(poll, remaining-m.nextBoundary(idx))

	if m.cfg.Mode == ModeBlink && m.state.Stage >= 0 {
		blinkWait, err := m.blink(remaining)
		if err != nil {
			return 0, err
		}
		wait = min(wait, blinkWait)
	}
	return wait, nil
}

func (m *Machine) fire(idx int, remaining time.Duration) error {
	stage := m.cfg.Stages[idx]
	m.state.Fired[idx] = true
	m.state.Stage = idx

	if err := m.ind.ShowStage(stage.LED); err != nil {
		return fmt.Errorf("stage %s: %w", stage.Name, err)
	}
	metrics.RecordStage(stage.Name)
	m.logger.Info("alert stage fired",
		"pass_id", m.state.PassID,
		"stage", stage.Name,
		"remaining_s", int(remaining.Seconds()),
	)

	if idx < len(m.cfg.Stages)-1 {
		m.setPhase(PhaseStaged)
		return nil
	}
	if err := m.raiseFlag(); err != nil {
		return err
	}
	m.setPhase(PhaseFlagRaised)
	return nil
}

func (m *Machine) raiseFlag() error {
	if m.state.FlagRaised {
		return nil
	}
	if err := m.ind.RaiseFlag(); err != nil {
		return fmt.Errorf("raise flag: %w", err)
	}
	m.state.FlagRaised = true
	return nil
}

// blink sets the stage LED from the position inside the current band and
// returns the time to the next toggle, capped at the band's end.
func (m *Machine) blink(remaining time.Duration) (time.Duration, error) {
	bi := -1
	for i, b := range m.cfg.Bands {
		if remaining <= b.Below {
			bi = i
		}
	}
	if bi < 0 {
		return m.cfg.PollInterval, m.ind.BlinkStage(true)
	}

	band := m.cfg.Bands[bi]
	end := time.Duration(0)
	if bi+1 < len(m.cfg.Bands) {
		end = m.cfg.Bands[bi+1].Below
	}

	half := band.Period / 2
	elapsed := band.Below - remaining
	n := int64(elapsed / half)
	if err := m.ind.BlinkStage(n%2 == 0); err != nil {
		return 0, fmt.Errorf("blink: %w", err)
	}

	nextToggle := time.Duration(n+1)*half - elapsed
	return min(nextToggle, remaining-end), nil
}

func (m *Machine) track(now time.Time) error {
	if m.state.Phase != PhaseInPass {
		if err := m.ind.ClearStages(); err != nil {
			return fmt.Errorf("enter pass: %w", err)
		}
		if !m.state.FlagRaised {
			m.logger.Warn("pass started before the last stage fired, raising flag late", "pass_id", m.state.PassID)
			if err := m.raiseFlag(); err != nil {
				return err
			}
		}
		m.setPhase(PhaseInPass)
	}

	la, err := m.tracker.LookAngles(m.obs, now)
	if err != nil {
		return fmt.Errorf("track: %w", err)
	}
	if la.ElevationDeg <= 0 {
		return nil
	}
	d := hardware.DirectionFromAzimuth(la.AzimuthDeg)
	if err := m.ind.ShowDirection(d); err != nil {
		return fmt.Errorf("direction: %w", err)
	}
	if d != m.state.Direction {
		m.logger.Info("tracking", "pass_id", m.state.PassID,
			"direction", string(d),
			"azimuth", la.AzimuthDeg,
			"elevation", la.ElevationDeg,
		)
	}
	m.state.Direction = d
	return nil
}
