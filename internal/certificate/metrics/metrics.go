package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for certificate issuance and verification.
// All methods are safe on a nil receiver so services may run without metrics.
type Metrics struct {
	CertificatesIssued  prometheus.Counter
	IssuanceFailures    *prometheus.CounterVec
	SerialCollisions    prometheus.Counter
	ProducerDuration    *prometheus.HistogramVec
	IssueDuration       prometheus.Histogram
	Verifications       *prometheus.CounterVec
	VerificationCache   *prometheus.CounterVec
	PaymentTransitions  *prometheus.CounterVec
	PaymentEventsFailed *prometheus.CounterVec
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CertificatesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "imrich_certificates_issued_total",
			Help: "Certificates persisted by the issuance orchestrator",
		}),
		IssuanceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imrich_issuance_failures_total",
			Help: "Issuance attempts that created no certificate, by error code",
		}, []string{"reason"}),
		SerialCollisions: f.NewCounter(prometheus.CounterOpts{
			Name: "imrich_serial_collisions_total",
			Help: "Inserts rejected because the generated serial already existed",
		}),
		ProducerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imrich_producer_duration_seconds",
			Help:    "Artifact producer call latency by model",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"model"}),
		IssueDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "imrich_issue_duration_seconds",
			Help:    "End-to-end Issue latency including the producer call",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imrich_verifications_total",
			Help: "Verification lookups by result (valid, invalid)",
		}, []string{"result"}),
		VerificationCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imrich_verification_cache_total",
			Help: "Provenance cache lookups by outcome (hit, miss, error)",
		}, []string{"outcome"}),
		PaymentTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imrich_payment_transitions_total",
			Help: "Applied payment status transitions by target status",
		}, []string{"status"}),
		PaymentEventsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "imrich_payment_events_rejected_total",
			Help: "Payment updates rejected, by error code",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncrementIssued() {
	if m == nil {
		return
	}
	m.CertificatesIssued.Inc()
}

func (m *Metrics) IncrementIssuanceFailure(reason string) {
	if m == nil {
		return
	}
	m.IssuanceFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementSerialCollision() {
	if m == nil {
		return
	}
	m.SerialCollisions.Inc()
}

// ObserveProducer records one producer call. Call with time.Now() taken before it.
func (m *Metrics) ObserveProducer(model string, start time.Time) {
	if m == nil {
		return
	}
	m.ProducerDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
}

// ObserveIssue records one Issue call. Call with time.Now() taken at entry.
func (m *Metrics) ObserveIssue(start time.Time) {
	if m == nil {
		return
	}
	m.IssueDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementVerification(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementCache(outcome string) {
	if m == nil {
		return
	}
	m.VerificationCache.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementPaymentTransition(status string) {
	if m == nil {
		return
	}
	m.PaymentTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementPaymentRejected(reason string) {
	if m == nil {
		return
	}
	m.PaymentEventsFailed.WithLabelValues(reason).Inc()
}
