// Package metrics provides Prometheus instrumentation for the whisper chat
// client. It exposes a gauge for the connection state, counters for
// connection attempts and envelope traffic, and a histogram for dial latency.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Directions used as the "direction" label of EnvelopesTotal.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	// ConnectionState is the session state as a number: 0 idle, 1 connecting,
	// 2 open, 3 closed.
	ConnectionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "whisper_client_connection_state",
		Help: "Current session connection state (0 idle, 1 connecting, 2 open, 3 closed)",
	})

	// ConnectAttempts counts dial attempts, labeled by result: "ok" or "error".
	ConnectAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whisper_client_connect_attempts_total",
		Help: "Total number of chat transport dial attempts",
	}, []string{"result"})

	// Reconnects counts reconnect timers that fired and started a dial.
	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whisper_client_reconnects_total",
		Help: "Total number of automatic reconnects",
	})

	// EnvelopesTotal counts envelopes by direction and type. Raw text frames
	// are counted with type "text".
	EnvelopesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whisper_client_envelopes_total",
		Help: "Total number of envelopes sent and received",
	}, []string{"direction", "type"})

	// Heartbeats counts heartbeat pings written to the transport.
	Heartbeats = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whisper_client_heartbeats_total",
		Help: "Total number of heartbeat pings sent",
	})

	// TypingEmits counts typing status changes sent, labeled by state.
	TypingEmits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whisper_client_typing_emits_total",
		Help: "Total number of typing status envelopes sent",
	}, []string{"typing"})

	// DialLatency records the time to complete the WebSocket handshake.
	DialLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "whisper_client_dial_latency_seconds",
		Help:    "WebSocket dial latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionState,
		ConnectAttempts,
		Reconnects,
		EnvelopesTotal,
		Heartbeats,
		TypingEmits,
		DialLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Router serves /metrics and a /healthz liveness endpoint.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", Handler())
	return r
}
