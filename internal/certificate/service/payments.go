package service

import (
	"context"
	"errors"
	"strings"

	"imrich/internal/certificate/models"
	"imrich/internal/certificate/serial"
	dErrors "imrich/pkg/domain-errors"
	audit "imrich/pkg/platform/audit"
	"imrich/pkg/platform/sentinel"
	"imrich/pkg/requestcontext"
)

// UpdatePaymentStatus applies a payment outcome reported by the payment
// collaborator. Only pending -> completed and pending -> failed succeed.
func (s *Service) UpdatePaymentStatus(ctx context.Context, rawSerial, rawStatus string) (*models.Certificate, error) {
	ctx, span := tracer.Start(ctx, "certificate.UpdatePaymentStatus")
	defer span.End()
	requestID := requestcontext.RequestID(ctx)

	status, ok := models.ParsePaymentStatus(rawStatus)
	if !ok {
		s.metrics.IncrementPaymentRejected(string(dErrors.CodeInvalidInput))
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown payment status")
	}
	rawSerial = strings.TrimSpace(rawSerial)
	if !serial.Valid(rawSerial) {
		s.metrics.IncrementPaymentRejected(string(dErrors.CodeNotFound))
		return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
	}
	sn := models.Serial(rawSerial)

	cert, err := s.store.UpdatePaymentStatus(ctx, sn, status)
	if err != nil {
		var out error
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			out = dErrors.New(dErrors.CodeNotFound, "certificate not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			out = dErrors.Wrap(err, dErrors.CodeInvalidTransition, "payment status cannot move to "+status.String())
		default:
			s.logger.ErrorContext(ctx, "failed to update payment status",
				"serial", sn,
				"error", err,
				"request_id", requestID,
			)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update payment status")
		}
		code := dErrors.CodeOf(out)
		s.metrics.IncrementPaymentRejected(string(code))
		s.logger.WarnContext(ctx, "payment update rejected",
			"serial", sn,
			"status", status,
			"reason", code,
			"request_id", requestID,
		)
		s.emit(ctx, audit.Event{
			Action: string(audit.EventPaymentRejected),
			Serial: sn.String(),
			Status: status.String(),
			Reason: string(code),
		})
		return nil, out
	}

	s.metrics.IncrementPaymentTransition(status.String())
	s.logger.InfoContext(ctx, "payment status updated",
		"serial", sn,
		"status", status,
		"request_id", requestID,
	)
	action := audit.EventPaymentCompleted
	if status == models.PaymentStatusFailed {
		action = audit.EventPaymentFailed
	}
	s.emit(ctx, audit.Event{
		Action:    string(action),
		Serial:    sn.String(),
		AccountID: cert.Owner.AccountID.String(),
		Status:    status.String(),
	})
	return cert, nil
}
