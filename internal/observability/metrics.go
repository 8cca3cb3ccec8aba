package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpErrors        *prometheus.CounterVec
	slaComputations   *prometheus.CounterVec
	slaDuration       *prometheus.HistogramVec
	thresholdsCrossed *prometheus.CounterVec
	eventsRelayed     *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sla_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sla_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"route", "method"},
		),
		httpErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sla_http_errors_total",
				Help: "Total number of HTTP error responses by error code",
			},
			[]string{"route", "method", "code"},
		),
		slaComputations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sla_computations_total",
				Help: "Total number of SLA computations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		slaDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sla_computation_duration_seconds",
				Help:    "Duration of SLA computations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		thresholdsCrossed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sla_thresholds_crossed_total",
				Help: "Notification thresholds found crossed during evaluation",
			},
			[]string{"dimension", "type"},
		),
		eventsRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sla_events_relayed_total",
				Help: "Events relayed to the external bus",
			},
			[]string{"event_type", "status"},
		),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(route, method, code).Inc()
}

// ObserveComputation records one SLA computation.
func (m *Metrics) ObserveComputation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.slaComputations.WithLabelValues(operation, outcome).Inc()
	m.slaDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordThresholdCrossed counts a crossed notification threshold.
func (m *Metrics) RecordThresholdCrossed(dimension, notificationType string) {
	if m == nil {
		return
	}
	m.thresholdsCrossed.WithLabelValues(dimension, notificationType).Inc()
}

// RecordEventRelayed counts a relay attempt.
func (m *Metrics) RecordEventRelayed(eventType string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.eventsRelayed.WithLabelValues(eventType, status).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
