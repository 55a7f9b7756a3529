package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CPowerMav/PieSS/internal/alert"
	"github.com/CPowerMav/PieSS/internal/geo"
	"github.com/CPowerMav/PieSS/internal/runner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakeLoop struct {
	snap  runner.Snapshot
	ready bool
}

func (f *fakeLoop) Snapshot() runner.Snapshot { return f.snap }
func (f *fakeLoop) Ready() bool               { return f.ready }

func newFakeLoop() *fakeLoop {
	rise := time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC)
	return &fakeLoop{
		ready: true,
		snap: runner.Snapshot{
			UpdatedAt: rise.Add(-4 * time.Minute),
			Observer:  geo.DefaultLocation,
			Activity:  runner.ActivityCountdown,
			Elements:  &runner.Elements{Name: "ISS (ZARYA)", NORADID: 25544, Source: "cache"},
			Countdown: alert.Status{
				PassID:        "f3b0c6a2",
				Phase:         alert.PhaseStaged,
				Scheduled:     true,
				Rise:          rise,
				Set:           rise.Add(6 * time.Minute),
				Duration:      6 * time.Minute,
				Remaining:     4 * time.Minute,
				PeakElevation: 62,
				PeakAzimuth:   140,
				Stages: []alert.StageStatus{
					{Name: "10m", Threshold: 10 * time.Minute, Fired: true},
					{Name: "5m", Threshold: 5 * time.Minute, Fired: true},
					{Name: "1m", Threshold: time.Minute},
				},
			},
		},
	}
}

func TestStatusJSON(t *testing.T) {
	srv := httptest.NewServer(NewHandler(DefaultConfig(), testLogger(), newFakeLoop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body struct {
		Activity  string `json:"activity"`
		Countdown struct {
			PassID string `json:"pass_id"`
			Phase  string `json:"phase"`
			Stages []struct {
				Name  string `json:"name"`
				Fired bool   `json:"fired"`
			} `json:"stages"`
		} `json:"countdown"`
		Elements struct {
			NORADID int `json:"norad_id"`
		} `json:"elements"`
		LastError *string `json:"last_error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Activity != runner.ActivityCountdown || body.Countdown.Phase != "staged" {
		t.Errorf("activity=%q phase=%q", body.Activity, body.Countdown.Phase)
	}
	if body.Countdown.PassID != "f3b0c6a2" || len(body.Countdown.Stages) != 3 || !body.Countdown.Stages[1].Fired {
		t.Errorf("countdown = %+v", body.Countdown)
	}
	if body.Elements.NORADID != 25544 {
		t.Errorf("norad id = %d", body.Elements.NORADID)
	}
	if body.LastError != nil {
		t.Errorf("last_error should be omitted, got %q", *body.LastError)
	}
}

func TestStatusText(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/status?format=text", nil)
	w := httptest.NewRecorder()
	NewHandler(DefaultConfig(), testLogger(), newFakeLoop()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	for _, want := range []string{"Overhead ISS Pass", "Alerts:  10m [X]  5m [X]  1m [ ]", "Time Left: 4 minutes"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("body missing %q:\n%s", want, w.Body.String())
		}
	}
}

func TestRoutes(t *testing.T) {
	loop := newFakeLoop()
	loop.ready = false
	handler := NewHandler(DefaultConfig(), testLogger(), loop)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{"GET", "/healthz", http.StatusOK},
		{"GET", "/readyz", http.StatusServiceUnavailable},
		{"GET", "/metrics", http.StatusOK},
		{"POST", "/api/v1/status", http.StatusMethodNotAllowed},
		{"GET", "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}

	loop.ready = true
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("readyz after load = %d", w.Code)
	}
}

func TestStatusRequiresToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Token = "s3cret"
	handler := NewHandler(cfg, testLogger(), newFakeLoop())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("without token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with token = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz with auth on = %d, want 200", w.Code)
	}
}
