// Package stream implements Server-Sent Events (SSE) streaming of the
// tracker status. Clients connect via GET /api/v1/stream and receive the
// current snapshot, then every new snapshot the main loop publishes.
// EventSource cannot set headers, so with auth on the token goes in ?token=.
//
// SSE message format:
//
//	data: {"type":"status","updated_at":"...","activity":"countdown","countdown":{...}}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval without a
// status change.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/CPowerMav/PieSS/internal/metrics"
	"github.com/CPowerMav/PieSS/internal/runner"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
	Interval           time.Duration `yaml:"interval"` // how often the snapshot is checked for changes
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`
	TrustProxy         bool          `yaml:"trust_proxy"`
}

// DefaultConfig returns a 1s check interval, 30s keep-alives and four
// streams per client.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 4,
		Interval:           time.Second,
		KeepaliveInterval:  30 * time.Second,
	}
}

// Source provides the snapshot to stream.
type Source interface {
	Snapshot() runner.Snapshot
}

// Handler manages SSE streaming connections.
type Handler struct {
	src     Source
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(src Source, config Config, logger *slog.Logger) *Handler {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 4
	}
	return &Handler{
		src:     src,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

type statusMessage struct {
	Type string `json:"type"`
	runner.Snapshot
}

// ServeHTTP serves the status stream until the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.RecordStreamError("rate_limit")
		h.logger.Warn("stream rate limit exceeded", "remote_ip", ip, "current_count", h.limiter.count(ip))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.StreamConnected()
	startTime := time.Now()
	h.logger.Info("stream connected", "remote_ip", ip, "user_agent", r.Header.Get("User-Agent"))
	defer func() {
		h.limiter.release(ip)
		metrics.StreamDisconnected()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	// Clear the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}
	c := &client{w: w, rc: rc, logger: h.logger}

	// Jittered retry (3-7s) so clients do not reconnect in lockstep after
	// a restart.
	if err := c.sendRetry(3000 + rand.IntN(4000)); err != nil {
		h.logger.Debug("stream closed before first message", "remote_ip", ip, "error", err)
		return
	}

	last := h.src.Snapshot()
	if err := c.sendJSON(statusMessage{Type: "status", Snapshot: last}); err != nil {
		metrics.RecordStreamError("send_error")
		h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			snap := h.src.Snapshot()
			if snap.UpdatedAt.Equal(last.UpdatedAt) && snap.Activity == last.Activity {
				continue
			}
			last = snap
			if err := c.sendJSON(statusMessage{Type: "status", Snapshot: snap}); err != nil {
				metrics.RecordStreamError("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.RecordStreamError("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// client writes SSE frames to one connection.
type client struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	logger *slog.Logger
}

func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.RecordStreamError("marshal_error")
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := c.write(fmt.Sprintf("data: %s\n\n", data)); err != nil {
		return err
	}
	metrics.RecordStreamMessage()
	return nil
}

func (c *client) sendRetry(ms int) error {
	return c.write(fmt.Sprintf("retry: %d\n\n", ms))
}

func (c *client) sendKeepalive() error {
	return c.write(":\n\n")
}

// write extends the write deadline, writes frame and flushes it.
func (c *client) write(frame string) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	if _, err := fmt.Fprint(c.w, frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
