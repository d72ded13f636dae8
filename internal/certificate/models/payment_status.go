package models

// PaymentStatus tracks payment capture by the external payment collaborator.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) String() string { return string(s) }

// IsValid reports whether s is a known status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// CanTransitionTo allows pending -> completed and pending -> failed only.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentStatusPending && next.IsTerminal()
}

// ParsePaymentStatus converts wire input to a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	ps := PaymentStatus(s)
	return ps, ps.IsValid()
}
