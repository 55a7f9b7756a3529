package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "piess_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "piess_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	tleFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "piess_tle_fetch_total",
			Help: "TLE network fetch attempts by result.",
		},
		[]string{"result"},
	)

	tleAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "piess_tle_age_seconds",
		Help: "Age of the element set in use.",
	})

	passCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "piess_pass_candidates_total",
			Help: "Pass candidates examined by the scheduler, by outcome.",
		},
		[]string{"outcome"},
	)

	nextPassSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "piess_next_pass_seconds",
		Help: "Seconds until the rise of the next scheduled visible pass.",
	})

	alertStagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "piess_alert_stage_fired_total",
			Help: "Countdown stages fired, by stage name.",
		},
		[]string{"stage"},
	)

	alertPhase = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "piess_alert_phase",
		Help: "Current alert machine phase (0=idle 1=waiting 2=staged 3=flag_raised 4=in_pass 5=done).",
	})

	hardwareCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "piess_hardware_commands_total",
			Help: "Actuator commands issued, by kind and result.",
		},
		[]string{"kind", "result"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "piess_errors_total",
			Help: "Faults caught by the main loop, by kind.",
		},
		[]string{"kind"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "piess_stream_clients",
		Help: "Connected status stream clients.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "piess_stream_messages_total",
		Help: "Status messages sent to stream clients.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "piess_stream_errors_total",
			Help: "Status stream errors, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		tleFetchTotal,
		tleAgeSeconds,
		passCandidatesTotal,
		nextPassSeconds,
		alertStagesTotal,
		alertPhase,
		hardwareCommandsTotal,
		errorsTotal,
		streamsActive,
		streamMessagesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTLEFetch counts a network fetch attempt.
func RecordTLEFetch(err error) {
	tleFetchTotal.WithLabelValues(result(err)).Inc()
}

// SetTLEAge records the age of the element set in use.
func SetTLEAge(age time.Duration) {
	tleAgeSeconds.Set(age.Seconds())
}

// RecordPassCandidate counts a scheduler candidate. outcome is one of
// "visible", "rejected", "malformed".
func RecordPassCandidate(outcome string) {
	passCandidatesTotal.WithLabelValues(outcome).Inc()
}

// SetNextPass records the time remaining until the next rise.
func SetNextPass(d time.Duration) {
	nextPassSeconds.Set(d.Seconds())
}

// RecordStage counts a fired countdown stage.
func RecordStage(name string) {
	alertStagesTotal.WithLabelValues(name).Inc()
}

// SetPhase records the alert machine phase.
func SetPhase(phase int) {
	alertPhase.Set(float64(phase))
}

// RecordHardwareCommand counts an actuator command. kind is "led" or "servo".
func RecordHardwareCommand(kind string, err error) {
	hardwareCommandsTotal.WithLabelValues(kind, result(err)).Inc()
}

// RecordError counts a fault handled by the main loop.
func RecordError(kind string) {
	errorsTotal.WithLabelValues(kind).Inc()
}

// StreamConnected and StreamDisconnected track connected stream clients.
func StreamConnected()    { streamsActive.Inc() }
func StreamDisconnected() { streamsActive.Dec() }

// RecordStreamMessage counts a message sent to a stream client.
func RecordStreamMessage() {
	streamMessagesTotal.Inc()
}

// RecordStreamError counts a stream failure. reason is "rate_limit",
// "marshal_error" or "send_error".
func RecordStreamError(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// knownRoutes are the paths served by the status server; anything else is
// collapsed to "other" to bound label cardinality.
var knownRoutes = map[string]bool{
	"/":              true,
	"/healthz":       true,
	"/readyz":        true,
	"/metrics":       true,
	"/api/v1/status": true,
	"/api/v1/stream": true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
