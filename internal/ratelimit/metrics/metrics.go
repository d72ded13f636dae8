package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected      prometheus.Counter
	FallbackUsed  prometheus.Counter
	LimiterErrors prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "imrich_ratelimit_rejected_total",
			Help: "Verification requests rejected by the per-IP rate limit",
		}),
		FallbackUsed: f.NewCounter(prometheus.CounterOpts{
			Name: "imrich_ratelimit_fallback_total",
			Help: "Checks answered by the in-memory fallback limiter",
		}),
		LimiterErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "imrich_ratelimit_errors_total",
			Help: "Primary limiter failures",
		}),
	}
}

func (m *Metrics) IncrementRejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}

func (m *Metrics) IncrementFallback() {
	if m == nil {
		return
	}
	m.FallbackUsed.Inc()
}

func (m *Metrics) IncrementErrors() {
	if m == nil {
		return
	}
	m.LimiterErrors.Inc()
}
