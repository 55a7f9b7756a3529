package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/CPowerMav/PieSS/internal/ephemeris"
	"github.com/CPowerMav/PieSS/internal/scheduler"
	"github.com/CPowerMav/PieSS/internal/visibility"
)

func TestRenderPasses(t *testing.T) {
	rise := time.Date(2025, 1, 15, 23, 12, 0, 0, time.UTC)
	cands := []scheduler.Candidate{
		{
			Pass: ephemeris.PassEvent{
				Rise: rise, Peak: rise.Add(3 * time.Minute), Set: rise.Add(6*time.Minute + 10*time.Second),
				PeakElevation: 62, PeakAzimuth: 140,
			},
			Decision: visibility.Decision{Visible: true, Reason: visibility.ReasonDark},
		},
		{
			Pass: ephemeris.PassEvent{
				Rise: rise.Add(90 * time.Minute), Peak: rise.Add(94 * time.Minute), Set: rise.Add(98 * time.Minute),
				PeakElevation: 25, PeakAzimuth: 300,
			},
			Decision: visibility.Decision{Reason: visibility.ReasonTwilight},
		},
	}

	var buf bytes.Buffer
	renderPasses(&buf, cands, time.UTC)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	for _, want := range []string{"2025-01-15 11:12 PM", "6m10s", "62° @ 140°", "S", "yes"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("line %q missing %q", lines[1], want)
		}
	}
	if !strings.Contains(lines[2], "W") || !strings.Contains(lines[2], "no (sun above darkness threshold)") {
		t.Errorf("rejected line = %q", lines[2])
	}
}

func TestRenderPassesEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderPasses(&buf, nil, time.UTC)
	if !strings.Contains(buf.String(), "No passes") {
		t.Errorf("output = %q", buf.String())
	}
}
