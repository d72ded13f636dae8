// Package service orchestrates certificate issuance, public verification and
// payment status updates.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"imrich/internal/certificate/catalog"
	"imrich/internal/certificate/metrics"
	"imrich/internal/certificate/models"
	"imrich/internal/certificate/producer"
	"imrich/internal/certificate/serial"
	id "imrich/pkg/domain"
	audit "imrich/pkg/platform/audit"
)

const (
	DefaultProducerTimeout   = 60 * time.Second
	DefaultMaxSerialAttempts = 5
	DefaultLookupTimeout     = 5 * time.Second
)

var tracer = otel.Tracer("imrich/internal/certificate/service")

// Store is the persistence contract the service relies on. Implementations
// return sentinel errors (ErrNotFound, ErrConflict, ErrInvalidState).
type Store interface {
	Insert(ctx context.Context, cert *models.Certificate) error
	GetBySerial(ctx context.Context, serial models.Serial) (*models.Certificate, error)
	ListByOwner(ctx context.Context, owner id.AccountID) ([]*models.Certificate, error)
	UpdatePaymentStatus(ctx context.Context, serial models.Serial, status models.PaymentStatus) (*models.Certificate, error)
	Health(ctx context.Context) error
}

// ProvenanceCache holds the immutable public subset of certificates.
// Get returns (nil, nil) on a miss.
type ProvenanceCache interface {
	Get(ctx context.Context, serial models.Serial) (*models.Provenance, error)
	Set(ctx context.Context, p models.Provenance) error
	Health(ctx context.Context) error
}

// SerialSource produces candidate serials dated by the given instant.
type SerialSource interface {
	Generate(at time.Time) (models.Serial, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the only component that creates certificates.
type Service struct {
	store    Store
	producer producer.Producer
	catalog  *catalog.Catalog
	serials  SerialSource
	cache    ProvenanceCache
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	urls     URLs
	clock    func() time.Time

	producerTimeout   time.Duration
	maxSerialAttempts int
	exposeOwnerEmail  bool
	lookupTimeout     time.Duration

	lookups singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithCache enables read-through provenance caching for Verify.
func WithCache(c ProvenanceCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithSerialSource(src SerialSource) Option {
	return func(s *Service) {
		s.serials = src
	}
}

// WithClock replaces time.Now as the source of serial dates and created_at.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithProducerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.producerTimeout = d
		}
	}
}

// WithLookupTimeout bounds the store read shared by concurrent verifiers.
func WithLookupTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lookupTimeout = d
		}
	}
}

func WithMaxSerialAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSerialAttempts = n
		}
	}
}

// WithOwnerEmailExposure controls whether Verify returns the owner's email.
func WithOwnerEmailExposure(expose bool) Option {
	return func(s *Service) {
		s.exposeOwnerEmail = expose
	}
}

func WithURLs(u URLs) Option {
	return func(s *Service) {
		s.urls = u
	}
}

func New(store Store, p producer.Producer, cat *catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		store:             store,
		producer:          p,
		catalog:           cat,
		serials:           serial.New(),
		logger:            slog.Default(),
		urls:              DefaultURLs(),
		clock:             time.Now,
		producerTimeout:   DefaultProducerTimeout,
		maxSerialAttempts: DefaultMaxSerialAttempts,
		exposeOwnerEmail:  true,
		lookupTimeout:     DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URLs returns the renderer used for artifact and verification links.
func (s *Service) URLs() URLs {
	return s.urls
}

// Catalog returns the model catalog the service validates against.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Health reports per-dependency status. The bool is false when any check failed.
func (s *Service) Health(ctx context.Context) (map[string]string, bool) {
	checks := map[string]string{}
	healthy := true
	if err := s.store.Health(ctx); err != nil {
		checks["store"] = "unavailable"
		healthy = false
	} else {
		checks["store"] = "ok"
	}
	if s.cache != nil {
		if err := s.cache.Health(ctx); err != nil {
			checks["cache"] = "unavailable"
			healthy = false
		} else {
			checks["cache"] = "ok"
		}
	}
	return checks, healthy
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	// Best effort; the publisher logs its own failures.
	_ = s.auditor.Emit(ctx, event)
}
