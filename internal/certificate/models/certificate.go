package models

import (
	"time"

	id "imrich/pkg/domain"
	dErrors "imrich/pkg/domain-errors"
)

// Serial is the public identifier of a certificate: RICH-YYYYMMDD-XXXXXXXX.
type Serial string

func (s Serial) String() string { return string(s) }

// Owner references an account managed by the external auth service.
type Owner struct {
	AccountID id.AccountID `json:"account_id"`
	Email     id.Email     `json:"email"`
}

// Certificate binds a serial to an owner, two artifacts and a payment status.
//
// Invariants:
//   - Serial is unique for the lifetime of the store and never reassigned
//   - Both artifact references are non-empty; a certificate is never half-written
//   - PaymentStatus moves pending -> completed or pending -> failed, nothing else
//   - Everything except PaymentStatus is immutable once persisted
type Certificate struct {
	ID                   int64         `json:"id"`
	Serial               Serial        `json:"serial"`
	Owner                Owner         `json:"owner"`
	Customization        Customization `json:"customization"`
	ArtifactVerifiedRef  string        `json:"artifact_verified_ref"`
	ArtifactWallpaperRef string        `json:"artifact_wallpaper_ref"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	CreatedAt            time.Time     `json:"created_at"`
}

// NewCertificate builds a pending certificate from a produced artifact pair.
// ID is assigned by the store. The issuer sets CreatedAt to the instant that
// also dates the serial.
func NewCertificate(serial Serial, owner Owner, c Customization, pair ArtifactPair) (*Certificate, error) {
	if serial == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "serial is required")
	}
	if owner.AccountID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner account is required")
	}
	if !pair.Complete() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "both artifact references are required")
	}
	return &Certificate{
		Serial:               serial,
		Owner:                owner,
		Customization:        c,
		ArtifactVerifiedRef:  pair.VerifiedRef,
		ArtifactWallpaperRef: pair.WallpaperRef,
		PaymentStatus:        PaymentStatusPending,
	}, nil
}

// CanUpdatePayment checks whether the certificate may move to next.
// The in-memory store calls it under its write lock, then ApplyPaymentStatus.
func (c *Certificate) CanUpdatePayment(next PaymentStatus) error {
	if !next.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown payment status")
	}
	if !c.PaymentStatus.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"payment status cannot move from "+string(c.PaymentStatus)+" to "+string(next))
	}
	return nil
}

// ApplyPaymentStatus sets the new status. Call CanUpdatePayment first.
func (c *Certificate) ApplyPaymentStatus(next PaymentStatus) {
	c.PaymentStatus = next
}

// Clone returns a copy safe to hand to callers of in-memory stores.
func (c *Certificate) Clone() *Certificate {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
