package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Every method is safe on a nil
// receiver so components can run without a collector.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsClosed  prometheus.Counter
	Spawns          *prometheus.CounterVec
	BytesIn         prometheus.Counter
	BytesOut        prometheus.Counter

	// Delivery metrics
	EventsDropped *prometheus.CounterVec
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the health endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON health endpoint.
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveSessions    int64   `json:"active_sessions"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a collector backed by its own registry, so several
// instances can coexist (tests, embedded servers).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ptyd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		// Terminal session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptyd_sessions_active",
				Help: "Number of registered terminal sessions",
			},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyd_sessions_created_total",
				Help: "Total number of PTYs opened",
			},
		),
		SessionsClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyd_sessions_closed_total",
				Help: "Total number of sessions closed",
			},
		),
		Spawns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyd_spawns_total",
				Help: "Shell spawn attempts by result",
			},
			[]string{"result"},
		),
		BytesIn: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyd_pty_bytes_written_total",
				Help: "Bytes written to PTY controllers",
			},
		),
		BytesOut: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptyd_pty_bytes_read_total",
				Help: "Bytes read from PTY controllers",
			},
		),

		// Delivery metrics
		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyd_events_dropped_total",
				Help: "Events not delivered to a subscriber",
			},
			[]string{"reason"},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptyd_ws_connections",
				Help: "Number of active stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptyd_ws_messages_total",
				Help: "Total number of stream messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ptyd_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SessionCreated records a newly opened PTY; active is the registry size
// after the insert.
func (m *Metrics) SessionCreated(active int) {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.setActive(active)
}

// SessionClosed records a closed session; active is the registry size after
// the removal.
func (m *Metrics) SessionClosed(active int) {
	if m == nil {
		return
	}
	m.SessionsClosed.Inc()
	m.setActive(active)
}

func (m *Metrics) setActive(active int) {
	m.SessionsActive.Set(float64(active))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(active)
	m.mu.Unlock()
}

// SpawnResult records the outcome of a spawn attempt.
func (m *Metrics) SpawnResult(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Spawns.WithLabelValues(result).Inc()
}

// BytesWritten counts bytes sent to a shell.
func (m *Metrics) BytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesIn.Add(float64(n))
}

// BytesRead counts bytes read from a shell.
func (m *Metrics) BytesRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesOut.Add(float64(n))
}

// EventDropped records an event that a subscriber never received.
func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// RecordWSMessage records a stream message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments stream connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements stream connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current summary values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
