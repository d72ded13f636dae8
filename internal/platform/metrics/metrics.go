package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds transport-level Prometheus metrics shared by every handler.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	PanicsRecovered prometheus.Counter
}

// New creates and registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imrich_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imrich_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		}, []string{"method", "route", "status"}),
		PanicsRecovered: f.NewCounter(prometheus.CounterOpts{
			Name: "imrich_http_panics_recovered_total",
			Help: "Handler panics caught by the recovery middleware",
		}),
	}
}

// ObserveRequest records latency and outcome for one request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route).Observe(seconds)
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// IncrementPanicsRecovered counts one recovered handler panic.
func (m *Metrics) IncrementPanicsRecovered() {
	if m == nil {
		return
	}
	m.PanicsRecovered.Inc()
}
