package stream

import (
	"net"
	"net/http"
	"strings"
	"sync"
)

// streamLimiter tracks concurrent SSE connections per client IP.
type streamLimiter struct {
	mu          sync.Mutex
	connections map[string]int
	maxPerIP    int
}

func newStreamLimiter(maxPerIP int) *streamLimiter {
	return &streamLimiter{connections: make(map[string]int), maxPerIP: maxPerIP}
}

// acquire registers a connection for ip, or returns false when ip is at
// its limit.
func (l *streamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connections[ip] >= l.maxPerIP {
		return false
	}
	l.connections[ip]++
	return true
}

func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connections[ip]--; l.connections[ip] <= 0 {
		delete(l.connections, ip)
	}
}

func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connections[ip]
}

// clientIP returns the host part of RemoteAddr. Behind a trusted proxy the
// leftmost X-Forwarded-For entry, then X-Real-IP, take precedence.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
