package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers certificate and payment facts owners and
	// auditors may later ask about.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected or suspicious inputs from collaborators.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers conditions operators must act on.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	Action    string
	Serial    string
	AccountID string
	Status    string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	EventCertificateIssued AuditEvent = "certificate_issued"
	EventPaymentCompleted  AuditEvent = "payment_completed"
	EventPaymentFailed     AuditEvent = "payment_failed"
	EventPaymentRejected   AuditEvent = "payment_rejected"
	EventSerialExhausted   AuditEvent = "serial_exhausted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCertificateIssued: CategoryCompliance,
	EventPaymentCompleted:  CategoryCompliance,
	EventPaymentFailed:     CategoryCompliance,
	EventPaymentRejected:   CategorySecurity,
	EventSerialExhausted:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySerial(ctx context.Context, serial string) ([]Event, error)
}
