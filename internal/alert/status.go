package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/CPowerMav/PieSS/internal/hardware"
)

// StageStatus is one entry of the alert checklist.
type StageStatus struct {
	Name      string        `json:"name"`
	Threshold time.Duration `json:"threshold"`
	Fired     bool          `json:"fired"`
}

// Status is everything the status output shows, derived from the
// countdown state.
type Status struct {
	PassID        string             `json:"pass_id,omitempty"`
	Phase         Phase              `json:"phase"`
	Scheduled     bool               `json:"scheduled"`
	Rise          time.Time          `json:"rise,omitzero"`
	Set           time.Time          `json:"set,omitzero"`
	Duration      time.Duration      `json:"duration"`
	Remaining     time.Duration      `json:"remaining"`
	PeakElevation float64            `json:"peak_elevation"`
	PeakAzimuth   float64            `json:"peak_azimuth"`
	Stages        []StageStatus      `json:"stages"`
	FlagRaised    bool               `json:"flag_raised"`
	Direction     hardware.Direction `json:"direction,omitempty"`
}

// Status reports the countdown as of now.
func (m *Machine) Status(now time.Time) Status {
	st := Status{
		PassID:     m.state.PassID,
		Phase:      m.state.Phase,
		Scheduled:  m.state.Phase != PhaseIdle,
		FlagRaised: m.state.FlagRaised,
		Direction:  m.state.Direction,
		Stages:     make([]StageStatus, len(m.cfg.Stages)),
	}
	for i, s := range m.cfg.Stages {
		st.Stages[i] = StageStatus{Name: s.Name, Threshold: s.Threshold, Fired: m.state.Fired[i]}
	}
	if st.Scheduled {
		p := m.state.Pass
		st.Rise, st.Set = p.Rise, p.Set
		st.Duration = p.Duration()
		st.Remaining = p.Rise.Sub(now)
		st.PeakElevation, st.PeakAzimuth = p.PeakElevation, p.PeakAzimuth
	}
	return st
}

// AlertLine renders the checklist, e.g. "Alerts:  10m [X]  5m [ ]  1m [ ]".
func (s Status) AlertLine() string {
	var b strings.Builder
	b.WriteString("Alerts:")
	for _, st := range s.Stages {
		mark := " "
		if st.Fired {
			mark = "X"
		}
		fmt.Fprintf(&b, "  %s [%s]", st.Name, mark)
	}
	return b.String()
}

// String renders the status block printed each poll cycle.
func (s Status) String() string {
	var b strings.Builder
	b.WriteString("=========[ Overhead ISS Pass ]==========\n")
	if !s.Scheduled {
		b.WriteString("No visible pass scheduled\n")
	} else {
		fmt.Fprintf(&b, "Next: %s\n", s.Rise.Format("2006-01-02 03:04:05 PM MST"))
		fmt.Fprintf(&b, "Duration: %d seconds\n", int(s.Duration.Seconds()))
		fmt.Fprintf(&b, "Time Left: %d minutes\n", int(s.Remaining.Minutes()))
		fmt.Fprintf(&b, "Peak: %.0f° at %.0f°\n", s.PeakElevation, s.PeakAzimuth)
		fmt.Fprintf(&b, "Phase: %s\n", s.Phase)
		if s.Direction != hardware.DirectionNone {
			fmt.Fprintf(&b, "Direction: %s\n", s.Direction)
		}
	}
	b.WriteString(s.AlertLine())
	b.WriteString("\n========================================")
	return b.String()
}
