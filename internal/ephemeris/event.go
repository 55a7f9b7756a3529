// Package ephemeris turns a propagated orbit into the rise/peak/set events
// an observer cares about.
package ephemeris

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// ErrMalformedEventSequence is returned for an event group that is not a
// rise, peak and set in strictly increasing time order.
var ErrMalformedEventSequence = errors.New("malformed event sequence")

// EventKind identifies one of the three canonical instants of a pass.
type EventKind int

const (
	Rise EventKind = iota
	Peak
	Set
)

func (k EventKind) String() string {
	switch k {
	case Rise:
		return "rise"
	case Peak:
		return "peak"
	case Set:
		return "set"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one raw event from the scan.
type Event struct {
	Kind         EventKind `json:"kind"`
	Time         time.Time `json:"time"`
	AzimuthDeg   float64   `json:"azimuth_deg"`
	ElevationDeg float64   `json:"elevation_deg"`
}

// PassEvent is one pass above the minimum elevation.
type PassEvent struct {
	Rise          time.Time `json:"rise"`
	Peak          time.Time `json:"peak"`
	Set           time.Time `json:"set"`
	RiseAzimuth   float64   `json:"rise_azimuth"`
	PeakAzimuth   float64   `json:"peak_azimuth"`
	PeakElevation float64   `json:"peak_elevation"`
	SetAzimuth    float64   `json:"set_azimuth"`
}

// Validate checks Rise < Peak < Set.
func (p PassEvent) Validate() error {
	if !p.Rise.Before(p.Peak) || !p.Peak.Before(p.Set) {
		return fmt.Errorf("%w: rise=%s peak=%s set=%s", ErrMalformedEventSequence,
			p.Rise.Format(time.RFC3339), p.Peak.Format(time.RFC3339), p.Set.Format(time.RFC3339))
	}
	return nil
}

// Duration is the time from rise to set.
func (p PassEvent) Duration() time.Duration {
	return p.Set.Sub(p.Rise)
}

// Passes groups a raw event stream into passes.
//
// Events are taken three at a time. A group never starts on anything but a
// Rise, so a pass already in progress at the start of the window is skipped.
// An incomplete trailing group is dropped. A group that is not a valid
// rise/peak/set is yielded with an error wrapping ErrMalformedEventSequence
// and grouping continues with the next event. Any error from the event
// stream itself is yielded and ends the sequence.
func Passes(events iter.Seq2[Event, error]) iter.Seq2[PassEvent, error] {
	return func(yield func(PassEvent, error) bool) {
		group := make([]Event, 0, 3)
		for ev, err := range events {
			if err != nil {
				yield(PassEvent{}, err)
				return
			}
			if len(group) == 0 && ev.Kind != Rise {
				continue
			}
			group = append(group, ev)
			if len(group) < 3 {
				continue
			}

			pass, err := fromTriple(group[0], group[1], group[2])
			group = group[:0]
			if !yield(pass, err) {
				return
			}
		}
	}
}

func fromTriple(rise, peak, set Event) (PassEvent, error) {
	p := PassEvent{
		Rise:          rise.Time,
		Peak:          peak.Time,
		Set:           set.Time,
		RiseAzimuth:   rise.AzimuthDeg,
		PeakAzimuth:   peak.AzimuthDeg,
		PeakElevation: peak.ElevationDeg,
		SetAzimuth:    set.AzimuthDeg,
	}
	if rise.Kind != Rise || peak.Kind != Peak || set.Kind != Set {
		return p, fmt.Errorf("%w: got %s/%s/%s", ErrMalformedEventSequence, rise.Kind, peak.Kind, set.Kind)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
