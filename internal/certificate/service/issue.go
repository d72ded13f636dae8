package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"imrich/internal/certificate/catalog"
	"imrich/internal/certificate/models"
	"imrich/internal/certificate/producer"
	dErrors "imrich/pkg/domain-errors"
	audit "imrich/pkg/platform/audit"
	"imrich/pkg/platform/sentinel"
	"imrich/pkg/requestcontext"
)

// Issue validates the customization, asks the producer for both artifacts
// and persists a pending certificate under a fresh serial.
//
// Either exactly one certificate is stored or none is. Invalid input never
// reaches the producer. A serial collision is retried with a new serial up to
// the configured attempt limit.
func (s *Service) Issue(ctx context.Context, c models.Customization, owner models.Owner) (*models.Certificate, error) {
	ctx, span := tracer.Start(ctx, "certificate.Issue")
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveIssue(start)

	cert, err := s.issue(ctx, c, owner)
	if err != nil {
		code := dErrors.CodeOf(err)
		s.metrics.IncrementIssuanceFailure(string(code))
		span.SetStatus(codes.Error, string(code))
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("certificate.serial", cert.Serial.String()))
	s.metrics.IncrementIssued()
	return cert, nil
}

func (s *Service) issue(ctx context.Context, c models.Customization, owner models.Owner) (*models.Certificate, error) {
	requestID := requestcontext.RequestID(ctx)
	if owner.AccountID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated owner is required")
	}

	c.Normalize()
	if c.Model == "" {
		c.Model = s.catalog.DefaultModel
	}
	if err := s.catalog.Validate(c); err != nil {
		s.logger.WarnContext(ctx, "rejected customization",
			"error", err,
			"request_id", requestID,
		)
		return nil, err
	}
	model, ok := s.catalog.Model(c.Model)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported ai_model %q", c.Model))
	}

	pair, err := s.produce(ctx, c, model)
	if err != nil {
		s.logger.WarnContext(ctx, "artifact production failed",
			"model", model.ID,
			"error", err,
			"request_id", requestID,
		)
		return nil, err
	}

	for attempt := 1; attempt <= s.maxSerialAttempts; attempt++ {
		// One instant per attempt dates both the serial and created_at.
		at := s.clock().UTC().Truncate(time.Microsecond)
		sn, err := s.serials.Generate(at)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate serial")
		}
		cert, err := models.NewCertificate(sn, owner, c, pair)
		if err != nil {
			return nil, err
		}
		cert.CreatedAt = at

		err = s.store.Insert(ctx, cert)
		if err == nil {
			s.logger.InfoContext(ctx, "certificate issued",
				"serial", cert.Serial,
				"account_id", owner.AccountID.String(),
				"model", model.ID,
				"attempt", attempt,
				"request_id", requestID,
			)
			s.emit(ctx, audit.Event{
				Action:    string(audit.EventCertificateIssued),
				Serial:    cert.Serial.String(),
				AccountID: owner.AccountID.String(),
				Status:    string(cert.PaymentStatus),
			})
			return cert, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			s.logger.ErrorContext(ctx, "failed to persist certificate",
				"error", err,
				"request_id", requestID,
			)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist certificate")
		}
		s.metrics.IncrementSerialCollision()
		s.logger.WarnContext(ctx, "serial collision, regenerating",
			"serial", sn,
			"attempt", attempt,
			"request_id", requestID,
		)
	}

	s.logger.ErrorContext(ctx, "serial space exhausted",
		"attempts", s.maxSerialAttempts,
		"account_id", owner.AccountID.String(),
		"request_id", requestID,
	)
	s.emit(ctx, audit.Event{
		Action:    string(audit.EventSerialExhausted),
		AccountID: owner.AccountID.String(),
		Reason:    fmt.Sprintf("%d colliding attempts", s.maxSerialAttempts),
	})
	return nil, dErrors.New(dErrors.CodeSerialExhausted,
		fmt.Sprintf("could not allocate a unique serial after %d attempts", s.maxSerialAttempts))
}

// produce calls the producer under the configured deadline and maps failures
// to domain codes. There is no automatic retry.
func (s *Service) produce(ctx context.Context, c models.Customization, model catalog.Model) (models.ArtifactPair, error) {
	ctx, span := tracer.Start(ctx, "certificate.Produce", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("producer.model", model.ID))

	pctx, cancel := context.WithTimeout(ctx, s.producerTimeout)
	defer cancel()

	start := time.Now()
	pair, err := s.producer.Produce(pctx, c, model)
	s.metrics.ObserveProducer(model.ID, start)

	if err == nil && pctx.Err() != nil {
		err = pctx.Err()
	}
	if err != nil {
		span.SetStatus(codes.Error, "producer failed")
		if pctx.Err() != nil {
			return models.ArtifactPair{}, dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "image generation timed out")
		}
		switch producer.GetCategory(err) {
		case producer.ErrorTimeout:
			return models.ArtifactPair{}, dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "image generation timed out")
		case producer.ErrorQuotaExceeded:
			return models.ArtifactPair{}, dErrors.Wrap(err, dErrors.CodeUpstreamQuotaExceeded, "image generation quota exceeded")
		default:
			return models.ArtifactPair{}, dErrors.Wrap(err, dErrors.CodeArtifactUnavailable, "image generation failed")
		}
	}
	if !pair.Complete() {
		span.SetStatus(codes.Error, "partial artifact pair")
		return models.ArtifactPair{}, dErrors.New(dErrors.CodeArtifactUnavailable, "image generation returned an incomplete result")
	}
	return pair, nil
}

// ListByOwner returns the owner's certificates, most recent first.
func (s *Service) ListByOwner(ctx context.Context, owner models.Owner) ([]*models.Certificate, error) {
	if owner.AccountID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authenticated owner is required")
	}
	certs, err := s.store.ListByOwner(ctx, owner.AccountID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list certificates",
			"account_id", owner.AccountID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return certs, nil
}
