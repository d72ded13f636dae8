package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"imrich/internal/certificate/models"
	"imrich/internal/certificate/serial"
	"imrich/pkg/platform/sentinel"
	"imrich/pkg/requestcontext"
)

// Verify answers whether candidate names an issued certificate. It never
// fails: malformed, unknown and unreadable serials all yield Invalid().
func (s *Service) Verify(ctx context.Context, candidate string) models.VerificationResult {
	ctx, span := tracer.Start(ctx, "certificate.Verify")
	defer span.End()

	candidate = strings.TrimSpace(candidate)
	if !serial.Valid(candidate) {
		s.metrics.IncrementVerification(false)
		span.SetAttributes(attribute.Bool("verification.valid", false))
		return models.Invalid()
	}

	prov, ok := s.lookup(ctx, models.Serial(candidate))
	span.SetAttributes(attribute.Bool("verification.valid", ok))
	s.metrics.IncrementVerification(ok)
	if !ok {
		return models.Invalid()
	}

	createdAt := prov.CreatedAt.UTC()
	result := models.VerificationResult{
		Valid:            true,
		Serial:           prov.Serial,
		CreatedAt:        &createdAt,
		ImageURLVerified: s.urls.Asset(prov.VerifiedRef),
	}
	if s.exposeOwnerEmail {
		result.UserEmail = prov.OwnerEmail
	}
	return result
}

// lookup reads through the provenance cache. Concurrent misses for the same
// serial share one store read.
func (s *Service) lookup(ctx context.Context, sn models.Serial) (models.Provenance, bool) {
	requestID := requestcontext.RequestID(ctx)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, sn)
		switch {
		case err != nil:
			s.metrics.IncrementCache("error")
			s.logger.WarnContext(ctx, "provenance cache read failed",
				"serial", sn,
				"error", err,
				"request_id", requestID,
			)
		case cached != nil:
			s.metrics.IncrementCache("hit")
			return *cached, true
		default:
			s.metrics.IncrementCache("miss")
		}
	}

	// The shared read is detached from any one caller's cancellation.
	ch := s.lookups.DoChan(sn.String(), func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lookupTimeout)
		defer cancel()
		cert, err := s.store.GetBySerial(readCtx, sn)
		if err != nil {
			return nil, err
		}
		prov := models.ProvenanceOf(cert)
		if s.cache != nil {
			if err := s.cache.Set(readCtx, prov); err != nil {
				s.logger.WarnContext(ctx, "provenance cache write failed",
					"serial", sn,
					"error", err,
					"request_id", requestID,
				)
			}
		}
		return prov, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return models.Provenance{}, false
	}
	v, err := res.Val, res.Err
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "verification lookup failed",
				"serial", sn,
				"error", err,
				"request_id", requestID,
			)
		}
		return models.Provenance{}, false
	}
	return v.(models.Provenance), true
}
