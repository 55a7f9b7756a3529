package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CPowerMav/PieSS/internal/runner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakeSource struct {
	mu   sync.Mutex
	snap runner.Snapshot
}

func (f *fakeSource) Snapshot() runner.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) set(activity string, at time.Time) {
	f.mu.Lock()
	f.snap = runner.Snapshot{Activity: activity, UpdatedAt: at}
	f.mu.Unlock()
}

// readMessages returns a channel of decoded "data:" payloads.
func readMessages(t *testing.T, body io.Reader) <-chan map[string]any {
	t.Helper()
	ch := make(chan map[string]any, 16)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(body)
		for sc.Scan() {
			line := sc.Text()
			payload, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var msg map[string]any
			if err := json.Unmarshal([]byte(payload), &msg); err != nil {
				t.Errorf("bad payload %q: %v", payload, err)
				return
			}
			ch <- msg
		}
	}()
	return ch
}

func next(t *testing.T, ch <-chan map[string]any) map[string]any {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("stream closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestStreamSendsSnapshotChanges(t *testing.T) {
	src := &fakeSource{}
	t0 := time.Date(2025, 1, 15, 22, 0, 0, 0, time.UTC)
	src.set(runner.ActivitySearching, t0)

	h := NewHandler(src, Config{Interval: 10 * time.Millisecond}, testLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	msgs := readMessages(t, resp.Body)
	first := next(t, msgs)
	if first["type"] != "status" || first["activity"] != runner.ActivitySearching {
		t.Errorf("first message = %v", first)
	}

	src.set(runner.ActivityCountdown, t0.Add(time.Second))
	second := next(t, msgs)
	if second["activity"] != runner.ActivityCountdown {
		t.Errorf("second message = %v", second)
	}
}

func TestStreamRateLimit(t *testing.T) {
	src := &fakeSource{}
	h := NewHandler(src, Config{MaxConcurrentPerIP: 1, Interval: 10 * time.Millisecond}, testLogger())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL, nil)
	first, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Body.Close()
	next(t, readMessages(t, first.Body))

	second, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second stream status = %d, want 429", second.StatusCode)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestStreamLimiterRelease(t *testing.T) {
	l := newStreamLimiter(2)
	if !l.acquire("a") || !l.acquire("a") {
		t.Fatal("first two acquires should succeed")
	}
	if l.acquire("a") {
		t.Fatal("third acquire should fail")
	}
	if !l.acquire("b") {
		t.Fatal("other ip should not be limited")
	}
	l.release("a")
	if l.count("a") != 1 || !l.acquire("a") {
		t.Fatal("release should free a slot")
	}
	l.release("b")
	if _, ok := l.connections["b"]; ok {
		t.Error("released ip should be forgotten")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		xff, xri   string
		remoteAddr string
		want       string
	}{
		{"remote addr", false, "", "", "192.168.1.1:12345", "192.168.1.1"},
		{"ipv6", false, "", "", "[::1]:12345", "::1"},
		{"no port", false, "", "", "192.168.1.1", "192.168.1.1"},
		{"headers ignored untrusted", false, "1.2.3.4", "5.6.7.8", "10.0.0.1:1", "10.0.0.1"},
		{"xff first entry", true, "1.2.3.4, 10.0.0.1", "", "10.0.0.3:1", "1.2.3.4"},
		{"x-real-ip fallback", true, "", "5.6.7.8", "10.0.0.1:1", "5.6.7.8"},
		{"no headers trusted", true, "", "", "10.0.0.1:1", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remoteAddr, Header: http.Header{}}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
