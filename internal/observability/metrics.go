package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	requests            *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	errors              *prometheus.CounterVec
	assignments         *prometheus.CounterVec
	escalations         *prometheus.CounterVec
	escalationsResolved *prometheus.CounterVec
	scanDuration        prometheus.Histogram
	scanActions         prometheus.Counter
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_http_errors_total",
			Help: "HTTP errors by route, method and error code",
		}, []string{"path", "method", "code"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Assignment attempts by outcome",
		}, []string{"outcome"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_escalations_total",
			Help: "Escalations created by level and trigger",
		}, []string{"level", "trigger"}),
		escalationsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_escalations_resolved_total",
			Help: "Escalations resolved by level",
		}, []string{"level"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_escalation_scan_duration_seconds",
			Help:    "Duration of escalation scans",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		scanActions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_escalation_scan_actions_total",
			Help: "Escalation actions produced by scans",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.assignments,
		m.escalations,
		m.escalationsResolved,
		m.scanDuration,
		m.scanActions,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordAssignment counts an assignment attempt; outcome is "assigned",
// "no_eligible_staff" or "conflict".
func (m *Metrics) RecordAssignment(outcome string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(outcome).Inc()
}

// RecordEscalation counts a created escalation record.
func (m *Metrics) RecordEscalation(level int, automatic bool) {
	if m == nil {
		return
	}
	trigger := "manual"
	if automatic {
		trigger = "auto"
	}
	m.escalations.WithLabelValues(strconv.Itoa(level), trigger).Inc()
}

// RecordEscalationResolved counts a resolution.
func (m *Metrics) RecordEscalationResolved(level int) {
	if m == nil {
		return
	}
	m.escalationsResolved.WithLabelValues(strconv.Itoa(level)).Inc()
}

// ObserveScan records one escalation scan.
func (m *Metrics) ObserveScan(duration time.Duration, actions int) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(duration.Seconds())
	m.scanActions.Add(float64(actions))
}
