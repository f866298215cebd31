package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Simulation metrics
	Lifecycle     *prometheus.CounterVec
	ItemsProduced *prometheus.CounterVec
	ItemsConsumed *prometheus.CounterVec
	WaitEvents    *prometheus.CounterVec
	ItemWait      prometheus.Histogram
	SlotStates    *prometheus.GaugeVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the JSON summary
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current HTTP totals
type MetricsSnapshot struct {
	TotalRequests int64   `json:"totalRequests"`
	TotalErrors   int64   `json:"totalErrors"`
	AvgLatencyMs  float64 `json:"avgLatencyMs"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	totalDuration float64
}

// NewMetrics registers every collector on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringsim_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ringsim_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
	m.ResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ringsim_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)

	m.Lifecycle = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringsim_lifecycle_operations_total",
			Help: "Engine lifecycle operations by kind",
		},
		[]string{"op"},
	)
	m.ItemsProduced = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringsim_items_produced_total",
			Help: "Items moved to completed, by producer",
		},
		[]string{"worker"},
	)
	m.ItemsConsumed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringsim_items_consumed_total",
			Help: "Items moved to consumed, by consumer",
		},
		[]string{"worker"},
	)
	m.WaitEvents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringsim_wait_events_total",
			Help: "Failed slot searches; role producer means the ring was full, consumer means empty",
		},
		[]string{"role"},
	)
	m.ItemWait = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ringsim_item_wait_seconds",
			Help:    "Time from production start to consumption of an item",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
	m.SlotStates = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ringsim_slots",
			Help: "Slots per state at the last status snapshot",
		},
		[]string{"state"},
	)

	m.WSConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "ringsim_ws_connections",
			Help: "Number of active WebSocket connections",
		},
	)
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringsim_ws_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ringsim_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// Snapshot returns the HTTP totals
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AvgLatencyMs = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// ObserveLifecycle counts an engine lifecycle operation
func (m *Metrics) ObserveLifecycle(op string) {
	m.Lifecycle.WithLabelValues(op).Inc()
}

// ObserveProduced counts a completed production
func (m *Metrics) ObserveProduced(worker string) {
	m.ItemsProduced.WithLabelValues(worker).Inc()
}

// ObserveConsumed counts a consumption and its item's wait time
func (m *Metrics) ObserveConsumed(worker string, wait time.Duration) {
	m.ItemsConsumed.WithLabelValues(worker).Inc()
	m.ItemWait.Observe(wait.Seconds())
}

// ObserveWait counts a failed slot search
func (m *Metrics) ObserveWait(role string) {
	m.WaitEvents.WithLabelValues(role).Inc()
}

// ObserveSlotStates publishes the slot distribution of a snapshot
func (m *Metrics) ObserveSlotStates(counts map[string]int) {
	for state, n := range counts {
		m.SlotStates.WithLabelValues(state).Set(float64(n))
	}
}
