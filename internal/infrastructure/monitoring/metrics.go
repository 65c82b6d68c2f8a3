package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/resilience"
)

const namespace = "cacheonhover"

// Metrics holds all Prometheus metrics. Each instance owns its registry so
// several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Prefetch metrics
	HintsIssued     *prometheus.CounterVec
	HintsDuplicate  *prometheus.CounterVec
	DocumentsActive prometheus.Gauge

	// Gate metrics
	GateDecisions *prometheus.CounterVec
	GateTabs      prometheus.Gauge

	// Loader metrics
	PageLoads        *prometheus.CounterVec
	PageLoadDuration prometheus.Histogram
	BreakerChanges   *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	mu       sync.Mutex
	snapshot Snapshot
}

// Snapshot holds running totals for the JSON stats endpoint.
type Snapshot struct {
	Requests        int64   `json:"requests"`
	Errors          int64   `json:"errors"`
	HintsIssued     int64   `json:"hints_issued"`
	HintsDuplicate  int64   `json:"hints_duplicate"`
	GateCancelled   int64   `json:"gate_cancelled"`
	GateAllowed     int64   `json:"gate_allowed"`
	ActiveTabs      int     `json:"active_tabs"`
	ActiveDocuments int     `json:"active_documents"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector backed by a fresh registry.
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

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),

		HintsIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prefetch_hints_total",
				Help:      "Prefetch hints emitted, by trigger",
			},
			[]string{"trigger"},
		),
		HintsDuplicate: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prefetch_duplicates_total",
				Help:      "Prefetch requests suppressed as already issued, by trigger",
			},
			[]string{"trigger"},
		),
		DocumentsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "documents_active",
				Help:      "Number of documents with a running engine",
			},
		),

		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Tab gate verdicts",
			},
			[]string{"verdict"},
		),
		GateTabs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gate_active_tabs",
				Help:      "Number of tabs admitted by the gate",
			},
		),

		PageLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "page_loads_total",
				Help:      "Document loads, by outcome",
			},
			[]string{"outcome"},
		),
		PageLoadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_load_duration_seconds",
				Help:      "Document load duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		BreakerChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"to"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "WebSocket frames, by direction and type",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Requests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.Errors++
	}
	m.mu.Unlock()
}

// PrefetchIssued implements prefetch.Recorder.
func (m *Metrics) PrefetchIssued(trigger prefetch.Trigger) {
	m.HintsIssued.WithLabelValues(string(trigger)).Inc()
	m.mu.Lock()
	m.snapshot.HintsIssued++
	m.mu.Unlock()
}

// PrefetchDuplicate implements prefetch.Recorder.
func (m *Metrics) PrefetchDuplicate(trigger prefetch.Trigger) {
	m.HintsDuplicate.WithLabelValues(string(trigger)).Inc()
	m.mu.Lock()
	m.snapshot.HintsDuplicate++
	m.mu.Unlock()
}

// GateDecision implements tabgate.Recorder.
func (m *Metrics) GateDecision(cancelled bool) {
	verdict := "allowed"
	if cancelled {
		verdict = "cancelled"
	}
	m.GateDecisions.WithLabelValues(verdict).Inc()

	m.mu.Lock()
	if cancelled {
		m.snapshot.GateCancelled++
	} else {
		m.snapshot.GateAllowed++
	}
	m.mu.Unlock()
}

// ActiveTabs implements tabgate.Recorder.
func (m *Metrics) ActiveTabs(n int) {
	m.GateTabs.Set(float64(n))
	m.mu.Lock()
	m.snapshot.ActiveTabs = n
	m.mu.Unlock()
}

// SetDocumentsActive sets the number of live documents.
func (m *Metrics) SetDocumentsActive(n int) {
	m.DocumentsActive.Set(float64(n))
	m.mu.Lock()
	m.snapshot.ActiveDocuments = n
	m.mu.Unlock()
}

// RecordPageLoad records a document load.
func (m *Metrics) RecordPageLoad(outcome string, duration time.Duration) {
	m.PageLoads.WithLabelValues(outcome).Inc()
	m.PageLoadDuration.Observe(duration.Seconds())
}

// BreakerStateChange matches resilience.Settings.OnStateChange.
func (m *Metrics) BreakerStateChange(_ string, _, to resilience.State) {
	m.BreakerChanges.WithLabelValues(to.String()).Inc()
}

// RecordWSMessage records a WebSocket frame.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns the running totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	s := m.snapshot
	m.mu.Unlock()
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

var (
	_ prefetch.Recorder = (*Metrics)(nil)
	_ tabgate.Recorder  = (*Metrics)(nil)
)
