package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// PTY metrics
	PTYsActive  prometheus.Gauge
	PTYsCreated prometheus.Counter

	// Session metrics
	SessionsActive prometheus.Gauge
	WSConnections  prometheus.Gauge
	OutputDropped  prometheus.Counter
	OutputBytes    prometheus.Counter

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandsBlocked *prometheus.CounterVec
	CommandDuration prometheus.Histogram

	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "terminal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		PTYsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "terminal_ptys_active",
				Help: "Number of live PTY processes",
			},
		),
		PTYsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_ptys_created_total",
				Help: "Total number of PTY processes started",
			},
		),

		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "terminal_sessions_active",
				Help: "Number of live terminal sessions",
			},
		),
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "terminal_ws_connections",
				Help: "Number of open WebSocket connections",
			},
		),
		OutputDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_output_dropped_total",
				Help: "Output frames dropped due to a full client queue",
			},
		),
		OutputBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_output_bytes_total",
				Help: "Bytes relayed from PTYs to clients",
			},
		),

		CommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_commands_total",
				Help: "Commands processed, by origin and status",
			},
			[]string{"origin", "status"},
		),
		CommandsBlocked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_commands_blocked_total",
				Help: "Commands blocked by risk policy, by risk level",
			},
			[]string{"risk"},
		),
		CommandDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "terminal_command_duration_seconds",
				Help:    "Programmatic command execution duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommand records one processed command
func (m *Metrics) RecordCommand(origin, status string) {
	m.CommandsTotal.WithLabelValues(origin, status).Inc()
}

// Uptime returns time since the collector was created
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
