// Package payments applies payment outcomes delivered on the payment status
// topic. It shares transition rules with the webhook through the service.
package payments

import (
	"context"
	"encoding/json"
	"log/slog"

	"imrich/internal/certificate/models"
	"imrich/internal/platform/kafka/consumer"
	dErrors "imrich/pkg/domain-errors"
	"imrich/pkg/requestcontext"
)

// Updater applies one payment status change.
type Updater interface {
	UpdatePaymentStatus(ctx context.Context, serial, status string) (*models.Certificate, error)
}

type Handler struct {
	updater Updater
	logger  *slog.Logger
}

func NewHandler(updater Updater, logger *slog.Logger) *Handler {
	return &Handler{updater: updater, logger: logger}
}

// Handle returns an error only for failures worth retrying. Malformed
// events, unknown serials and rejected transitions are logged and committed.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var update models.PaymentStatusUpdate
	if err := json.Unmarshal(msg.Value, &update); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal payment event",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if update.Serial == "" {
		update.Serial = string(msg.Key)
	}
	if update.EventID != "" {
		ctx = requestcontext.WithRequestID(ctx, update.EventID)
	}

	_, err := h.updater.UpdatePaymentStatus(ctx, update.Serial, update.Status)
	switch {
	case err == nil:
		return nil
	case dErrors.Is(err, dErrors.CodeNotFound),
		dErrors.Is(err, dErrors.CodeInvalidTransition),
		dErrors.Is(err, dErrors.CodeInvalidInput):
		h.logger.WarnContext(ctx, "payment event rejected",
			"serial", update.Serial,
			"status", update.Status,
			"reason", dErrors.CodeOf(err),
			"offset", msg.Offset,
			"request_id", update.EventID,
		)
		return nil
	default:
		return err
	}
}
