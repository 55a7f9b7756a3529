// Package runner is the main loop: load elements, find the next visible
// pass, count it down, and recover from any fault by resetting the hardware
// and backing off.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/CPowerMav/PieSS/internal/alert"
	"github.com/CPowerMav/PieSS/internal/clock"
	"github.com/CPowerMav/PieSS/internal/ephemeris"
	"github.com/CPowerMav/PieSS/internal/geo"
	"github.com/CPowerMav/PieSS/internal/hardware"
	"github.com/CPowerMav/PieSS/internal/metrics"
	"github.com/CPowerMav/PieSS/internal/tle"
	"github.com/CPowerMav/PieSS/internal/transform"
)

// Config holds the loop timings.
type Config struct {
	LeadTime       time.Duration `yaml:"lead_time" json:"lead_time"`
	Cooldown       time.Duration `yaml:"cooldown" json:"cooldown"`
	ErrorBackoff   time.Duration `yaml:"error_backoff" json:"error_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	BackoffJitter  float64       `yaml:"backoff_jitter" json:"backoff_jitter"`
	StatusInterval time.Duration `yaml:"status_interval" json:"status_interval"`
}

// DefaultConfig returns a 12 minute lead, a one hour cooldown and a 60s
// backoff doubling up to 15 minutes.
func DefaultConfig() Config {
	return Config{
		LeadTime:       12 * time.Minute,
		Cooldown:       time.Hour,
		ErrorBackoff:   time.Minute,
		MaxBackoff:     15 * time.Minute,
		BackoffJitter:  0.1,
		StatusInterval: time.Minute,
	}
}

// ElementLoader returns the current element set.
type ElementLoader interface {
	Load(ctx context.Context) (tle.ElementSet, error)
}

// PassFinder returns the next visible pass.
type PassFinder interface {
	NextVisiblePass(ctx context.Context, src ephemeris.Source, obs transform.ObserverPosition, now time.Time) (ephemeris.PassEvent, bool, error)
}

// SourceFunc builds an ephemeris source from a TLE entry.
type SourceFunc func(tle.TLEEntry) (ephemeris.Source, error)

// SGP4Source is the SourceFunc used outside tests.
func SGP4Source(e tle.TLEEntry) (ephemeris.Source, error) {
	return ephemeris.New(e)
}

// Elements describes the element set in use.
type Elements struct {
	Name      string    `json:"name"`
	NORADID   int       `json:"norad_id"`
	Epoch     time.Time `json:"epoch"`
	FetchedAt time.Time `json:"fetched_at"`
	Source    string    `json:"source"`
}

// Snapshot is the loop state published for status readers.
type Snapshot struct {
	UpdatedAt   time.Time    `json:"updated_at"`
	Observer    geo.Location `json:"observer"`
	Countdown   alert.Status `json:"countdown"`
	Elements    *Elements    `json:"elements,omitempty"`
	Activity    string       `json:"activity"`
	NextAttempt time.Time    `json:"next_attempt,omitzero"`
	LastError   string       `json:"last_error,omitempty"`
	ErrorKind   string       `json:"error_kind,omitempty"`
}

// Activities reported in a Snapshot.
const (
	ActivityStarting  = "starting"
	ActivitySearching = "searching"
	ActivityCooldown  = "cooldown"
	ActivityLead      = "waiting_for_lead_time"
	ActivityCountdown = "countdown"
	ActivityBackoff   = "backoff"
	ActivityStopped   = "stopped"
)

// Loop is the main loop. It never returns on its own; it stops only when
// its context is cancelled.
type Loop struct {
	cfg       Config
	loader    ElementLoader
	newSource SourceFunc
	finder    PassFinder
	machine   *alert.Machine
	location  geo.Location
	obs       transform.ObserverPosition
	clk       clock.Clock
	logger    *slog.Logger
	statusOut io.Writer
	newID     func() string

	backoff  *backoff.ExponentialBackOff
	snapshot atomic.Pointer[Snapshot]
	ready    atomic.Bool
	elements *Elements
	lastErr  error
}

// Option customizes a Loop.
type Option func(*Loop)

// WithStatusWriter prints the status block to w on every poll cycle.
func WithStatusWriter(w io.Writer) Option {
	return func(l *Loop) { l.statusOut = w }
}

// WithSourceFunc replaces the SGP4 source.
func WithSourceFunc(fn SourceFunc) Option {
	return func(l *Loop) { l.newSource = fn }
}

// WithIDFunc replaces the pass id generator.
func WithIDFunc(fn func() string) Option {
	return func(l *Loop) { l.newID = fn }
}

// New creates a Loop.
func New(cfg Config, loader ElementLoader, finder PassFinder, machine *alert.Machine, loc geo.Location, clk clock.Clock, logger *slog.Logger, opts ...Option) *Loop {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ErrorBackoff
	b.MaxInterval = cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = cfg.BackoffJitter
	b.Reset()

	l := &Loop{
		cfg:       cfg,
		loader:    loader,
		newSource: SGP4Source,
		finder:    finder,
		machine:   machine,
		location:  loc,
		obs:       transform.NewObserverPosition(loc.Latitude, loc.Longitude, loc.ElevationM),
		clk:       clk,
		logger:    logger,
		newID:     uuid.NewString,
		backoff:   b,
	}
	for _, opt := range opts {
		opt(l)
	}
	machine.OnStep(func(st alert.Status) { l.publish(ActivityCountdown, st, time.Time{}) })
	l.publish(ActivityStarting, machine.Status(clk.Now()), time.Time{})
	return l
}

// Snapshot returns the last published state.
func (l *Loop) Snapshot() Snapshot {
	return *l.snapshot.Load()
}

// Ready reports whether an element set has been loaded at least once.
func (l *Loop) Ready() bool {
	return l.ready.Load()
}

// Run resets the hardware and loops until ctx is cancelled. The hardware is
// reset again before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("main loop starting", "observer", l.location.String())
	if err := l.machine.Reset(ctx); err != nil {
		l.logger.Warn("startup hardware reset failed", "error", err)
	}

	for ctx.Err() == nil {
		err := l.cycle(ctx)
		if ctx.Err() != nil {
			break
		}
		if err == nil {
			l.backoff.Reset()
			l.lastErr = nil
			continue
		}
		if err := l.recover(ctx, err); err != nil {
			break
		}
	}

	l.logger.Info("main loop stopping, resetting hardware")
	resetErr := l.machine.Reset(context.WithoutCancel(ctx))
	l.publish(ActivityStopped, l.machine.Status(l.clk.Now()), time.Time{})
	return resetErr
}

// cycle runs one search-and-countdown round.
func (l *Loop) cycle(ctx context.Context) error {
	l.publish(ActivitySearching, l.machine.Status(l.clk.Now()), time.Time{})

	es, err := l.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load elements: %w", err)
	}
	l.elements = &Elements{
		Name:      es.Entry.Name,
		NORADID:   es.Entry.NORADID,
		Epoch:     es.Entry.Epoch,
		FetchedAt: es.FetchedAt,
		Source:    es.Source,
	}
	l.ready.Store(true)

	src, err := l.newSource(es.Entry)
	if err != nil {
		return fmt.Errorf("build ephemeris: %w", err)
	}

	now := l.clk.Now()
	pass, ok, err := l.finder.NextVisiblePass(ctx, src, l.obs, now)
	if err != nil {
		return fmt.Errorf("find pass: %w", err)
	}
	if !ok {
		metrics.SetNextPass(0)
		next := now.Add(l.cfg.Cooldown)
		l.logger.Info("no visible pass in search horizon, cooling down", "retry_at", next)
		l.publish(ActivityCooldown, l.machine.Status(now), next)
		return clock.Sleep(ctx, l.clk, l.cfg.Cooldown)
	}

	id := l.newID()
	metrics.SetNextPass(pass.Rise.Sub(now))
	l.machine.Begin(pass, id, src, l.obs)

	if err := l.waitForLead(ctx, pass); err != nil {
		return err
	}
	if err := l.machine.Drive(ctx); err != nil {
		return fmt.Errorf("countdown %s: %w", id, err)
	}
	return nil
}

// waitForLead sleeps until LeadTime before rise, publishing status every
// StatusInterval.
func (l *Loop) waitForLead(ctx context.Context, pass ephemeris.PassEvent) error {
	lead := pass.Rise.Add(-l.cfg.LeadTime)
	for {
		now := l.clk.Now()
		d := lead.Sub(now)
		if d <= 0 {
			return nil
		}
		l.publish(ActivityLead, l.machine.Status(now), lead)
		if l.cfg.StatusInterval > 0 {
			d = min(d, l.cfg.StatusInterval)
		}
		if err := clock.Sleep(ctx, l.clk, d); err != nil {
			return err
		}
	}
}

// recover resets the hardware and sleeps the backoff. It returns an error
// only when ctx is cancelled.
func (l *Loop) recover(ctx context.Context, cause error) error {
	kind := classify(cause)
	metrics.RecordError(kind)
	l.lastErr = cause

	if err := l.machine.Reset(ctx); err != nil {
		l.logger.Error("hardware reset after fault failed", "error", err)
	}

	wait := l.backoff.NextBackOff()
	next := l.clk.Now().Add(wait)
	l.logger.Error("cycle failed, backing off",
		"kind", kind,
		"error", cause,
		"retry_in", wait.String(),
	)
	l.publish(ActivityBackoff, l.machine.Status(l.clk.Now()), next)
	return clock.Sleep(ctx, l.clk, wait)
}

func (l *Loop) publish(activity string, st alert.Status, next time.Time) {
	snap := &Snapshot{
		UpdatedAt:   l.clk.Now(),
		Observer:    l.location,
		Countdown:   st,
		Elements:    l.elements,
		Activity:    activity,
		NextAttempt: next,
	}
	if l.lastErr != nil {
		snap.LastError = l.lastErr.Error()
		snap.ErrorKind = classify(l.lastErr)
	}
	l.snapshot.Store(snap)

	if l.statusOut != nil {
		fmt.Fprintln(l.statusOut, st.String())
		if snap.LastError != "" {
			fmt.Fprintf(l.statusOut, "Last error (%s): %s\n", snap.ErrorKind, snap.LastError)
		}
	}
}

// Error kinds for logs and the errors counter.
const (
	KindCancelled       = "cancelled"
	KindParse           = "parse"
	KindDataUnavailable = "data_unavailable"
	KindHardware        = "hardware"
	KindMalformed       = "malformed_events"
	KindOther           = "other"
)

func classify(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, tle.ErrParse):
		return KindParse
	case errors.Is(err, tle.ErrDataUnavailable):
		return KindDataUnavailable
	case errors.Is(err, hardware.ErrCommandFailed):
		return KindHardware
	case errors.Is(err, ephemeris.ErrMalformedEventSequence):
		return KindMalformed
	default:
		return KindOther
	}
}
