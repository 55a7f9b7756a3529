package ephemeris

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/CPowerMav/PieSS/internal/propagation"
	"github.com/CPowerMav/PieSS/internal/tle"
	"github.com/CPowerMav/PieSS/internal/transform"
)

const (
	coarseStep = 30 * time.Second
	fineStep   = time.Second
)

// Source yields pass events and instantaneous look angles for one satellite.
type Source interface {
	Events(ctx context.Context, obs transform.ObserverPosition, from, to time.Time, minElevationDeg float64) iter.Seq2[Event, error]
	LookAngles(obs transform.ObserverPosition, t time.Time) (transform.LookAngles, error)
}

// SGP4 is a Source backed by an SGP4 propagator.
type SGP4 struct {
	entry tle.TLEEntry
	prop  *propagation.SGP4Propagator
}

// New builds an SGP4 source from a TLE entry.
func New(entry tle.TLEEntry) (*SGP4, error) {
	prop, err := propagation.NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
	if err != nil {
		return nil, fmt.Errorf("sgp4 init: %w", err)
	}
	return &SGP4{entry: entry, prop: prop}, nil
}

// Entry returns the TLE the source was built from.
func (s *SGP4) Entry() tle.TLEEntry {
	return s.entry
}

// LookAngles returns the azimuth and elevation of the satellite from obs at t.
func (s *SGP4) LookAngles(obs transform.ObserverPosition, t time.Time) (transform.LookAngles, error) {
	return s.prop.LookAngles(obs, t)
}

// Events scans [from, to] and yields rise, peak and set events in time
// order. The sequence is lazy and restartable: every range starts a fresh
// scan.
//
// The scan samples every 30s and narrows each threshold crossing to one
// second by bisection; the peak is found by ternary search between rise and
// set. A pass already above minElevationDeg at from has no Rise; a pass
// still above at to has no Peak or Set. A propagation failure or a
// cancelled context is yielded as an error and ends the sequence.
func (s *SGP4) Events(ctx context.Context, obs transform.ObserverPosition, from, to time.Time, minElevationDeg float64) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		sc := scan{src: s, obs: obs, minEl: minElevationDeg}
		from = from.UTC().Truncate(time.Second)
		to = to.UTC().Truncate(time.Second)

		prev, err := sc.at(from)
		if err != nil {
			yield(Event{}, err)
			return
		}
		passStart := from
		above := prev.ElevationDeg >= sc.minEl

		for t := from; t.Before(to); {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}

			next := t.Add(coarseStep)
			if next.After(to) {
				next = to
			}
			la, err := sc.at(next)
			if err != nil {
				yield(Event{}, err)
				return
			}
			nextAbove := la.ElevationDeg >= sc.minEl

			switch {
			case !above && nextAbove:
				ev, err := sc.crossing(t, next, Rise)
				if err != nil {
					yield(Event{}, err)
					return
				}
				passStart = ev.Time
				if !yield(ev, nil) {
					return
				}

			case above && !nextAbove:
				set, err := sc.crossing(t, next, Set)
				if err != nil {
					yield(Event{}, err)
					return
				}
				peak, err := sc.peak(passStart, set.Time.Add(-fineStep))
				if err != nil {
					yield(Event{}, err)
					return
				}
				if !yield(peak, nil) || !yield(set, nil) {
					return
				}
			}

			t, above = next, nextAbove
		}
	}
}

type scan struct {
	src   *SGP4
	obs   transform.ObserverPosition
	minEl float64
}

func (sc scan) at(t time.Time) (transform.LookAngles, error) {
	return sc.src.prop.LookAngles(sc.obs, t)
}

func (sc scan) event(kind EventKind, t time.Time) (Event, error) {
	la, err := sc.at(t)
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: kind, Time: t, AzimuthDeg: la.AzimuthDeg, ElevationDeg: la.ElevationDeg}, nil
}

// crossing bisects (lo, hi] to the first second whose above/below state
// differs from lo's.
func (sc scan) crossing(lo, hi time.Time, kind EventKind) (Event, error) {
	for hi.Sub(lo) > fineStep {
		mid := lo.Add((hi.Sub(lo) / 2).Truncate(fineStep))
		la, err := sc.at(mid)
		if err != nil {
			return Event{}, err
		}
		midAbove := la.ElevationDeg >= sc.minEl
		if midAbove == (kind == Set) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return sc.event(kind, hi)
}

// peak finds the highest elevation in [lo, hi] to one second.
func (sc scan) peak(lo, hi time.Time) (Event, error) {
	if hi.Before(lo) {
		hi = lo
	}
	for hi.Sub(lo) > 2*fineStep {
		third := (hi.Sub(lo) / 3).Truncate(fineStep)
		m1, m2 := lo.Add(third), hi.Add(-third)
		a, err := sc.at(m1)
		if err != nil {
			return Event{}, err
		}
		b, err := sc.at(m2)
		if err != nil {
			return Event{}, err
		}
		if a.ElevationDeg < b.ElevationDeg {
			lo = m1
		} else {
			hi = m2
		}
	}

	best, err := sc.event(Peak, lo)
	if err != nil {
		return Event{}, err
	}
	for t := lo.Add(fineStep); !t.After(hi); t = t.Add(fineStep) {
		ev, err := sc.event(Peak, t)
		if err != nil {
			return Event{}, err
		}
		if ev.ElevationDeg > best.ElevationDeg {
			best = ev
		}
	}
	return best, nil
}
