// Package metrics exposes Prometheus instruments for batches, URL results,
// backend requests and the HTTP API. A nil *Metrics is a valid no-op.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scrape-gate/pkg/models"
)

const namespace = "scrape_gate"

// Metrics owns a private registry so tests and multiple servers never
// collide on the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	BackendRequestsTotal *prometheus.CounterVec // stage, outcome
	ResultsTotal         *prometheus.CounterVec // status
	BatchesTotal         prometheus.Counter
	BatchesInFlight      prometheus.Gauge
	BatchDuration        prometheus.Histogram
	HTTPRequestsTotal    *prometheus.CounterVec   // method, route, status
	HTTPRequestDuration  *prometheus.HistogramVec // method, route, status
}

// New registers every instrument plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Generative backend requests by pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		ResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_results_total",
			Help:      "Resolved URL slots by final status.",
		}, []string{"status"}),
		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches submitted.",
		}),
		BatchesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_in_flight",
			Help:      "Batches with unresolved URL slots.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time from submission until every slot resolved.",
			Buckets:   []float64{1, 5, 10, 15, 30, 60, 120, 300},
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.BackendRequestsTotal, m.ResultsTotal, m.BatchesTotal, m.BatchesInFlight,
		m.BatchDuration, m.HTTPRequestsTotal, m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveBackendRequest(stage, outcome string) {
	if m == nil {
		return
	}
	m.BackendRequestsTotal.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) ObserveResult(status models.ProcessingStatus) {
	if m == nil {
		return
	}
	m.ResultsTotal.WithLabelValues(status.String()).Inc()
}

func (m *Metrics) BatchStarted() {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
	m.BatchesInFlight.Inc()
}

func (m *Metrics) BatchFinished(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BatchesInFlight.Dec()
	m.BatchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
