// Package scheduler picks the next visible pass out of an ephemeris scan.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/CPowerMav/PieSS/internal/ephemeris"
	"github.com/CPowerMav/PieSS/internal/metrics"
	"github.com/CPowerMav/PieSS/internal/transform"
	"github.com/CPowerMav/PieSS/internal/visibility"
)

// DefaultSearchHorizon is how far ahead a scan looks.
const DefaultSearchHorizon = 24 * time.Hour

// Judge decides whether a pass is visible.
type Judge interface {
	Decide(obs transform.ObserverPosition, pass ephemeris.PassEvent) visibility.Decision
	Config() visibility.Config
}

// Candidate is a pass together with its visibility decision.
type Candidate struct {
	Pass     ephemeris.PassEvent `json:"pass"`
	Decision visibility.Decision `json:"decision"`
}

// Scheduler finds visible passes.
type Scheduler struct {
	judge   Judge
	horizon time.Duration
	logger  *slog.Logger
}

// New creates a Scheduler. A non-positive horizon means 24h.
func New(judge Judge, horizon time.Duration, logger *slog.Logger) *Scheduler {
	if horizon <= 0 {
		horizon = DefaultSearchHorizon
	}
	return &Scheduler{judge: judge, horizon: horizon, logger: logger}
}

// Horizon returns the search window length.
func (s *Scheduler) Horizon() time.Duration {
	return s.horizon
}

// NextVisiblePass returns the first pass in [now, now+horizon] that the
// judge accepts. ok is false when there is none; that is not an error.
// Malformed triples are logged and skipped.
func (s *Scheduler) NextVisiblePass(ctx context.Context, src ephemeris.Source, obs transform.ObserverPosition, now time.Time) (pass ephemeris.PassEvent, ok bool, err error) {
	for c, err := range s.candidates(ctx, src, obs, now) {
		if err != nil {
			return ephemeris.PassEvent{}, false, err
		}
		if c.Decision.Visible {
			return c.Pass, true, nil
		}
	}
	return ephemeris.PassEvent{}, false, nil
}

// Upcoming lists up to limit passes in the search window with their
// decisions, visible or not.
func (s *Scheduler) Upcoming(ctx context.Context, src ephemeris.Source, obs transform.ObserverPosition, now time.Time, limit int) ([]Candidate, error) {
	var out []Candidate
	for c, err := range s.candidates(ctx, src, obs, now) {
		if err != nil {
			return out, err
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Scheduler) candidates(ctx context.Context, src ephemeris.Source, obs transform.ObserverPosition, now time.Time) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		minEl := s.judge.Config().MinElevationDeg
		events := src.Events(ctx, obs, now, now.Add(s.horizon), minEl)

		for pass, err := range ephemeris.Passes(events) {
			if errors.Is(err, ephemeris.ErrMalformedEventSequence) {
				metrics.RecordPassCandidate("malformed")
				s.logger.Warn("skipping malformed pass candidate", "error", err)
				continue
			}
			if err != nil {
				yield(Candidate{}, fmt.Errorf("pass search: %w", err))
				return
			}
			d := s.judge.Decide(obs, pass)
			outcome := "visible"
			if !d.Visible {
				outcome = "rejected"
			}
			metrics.RecordPassCandidate(outcome)
			s.logger.Debug("pass candidate",
				"rise", pass.Rise,
				"peak_elevation", pass.PeakElevation,
				"visible", d.Visible,
				"reason", d.Reason,
			)

			if !yield(Candidate{Pass: pass, Decision: d}, nil) {
				return
			}
		}
	}
}
