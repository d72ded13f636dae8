package models

import "time"

// VerificationResult is the public provenance answer for a serial.
// When Valid is false every other field is empty.
type VerificationResult struct {
	Valid            bool       `json:"valid"`
	Serial           Serial     `json:"serial,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	ImageURLVerified string     `json:"image_url_verified,omitempty"`
	UserEmail        string     `json:"user_email,omitempty"`
}

// Invalid is the only negative answer the verifier gives.
func Invalid() VerificationResult {
	return VerificationResult{Valid: false}
}

// Provenance is the subset of a certificate exposed to the public. It is
// immutable once issued, so it is the only shape the verification cache holds.
type Provenance struct {
	Serial      Serial    `json:"serial"`
	CreatedAt   time.Time `json:"created_at"`
	VerifiedRef string    `json:"verified_ref"`
	OwnerEmail  string    `json:"owner_email"`
}

// ProvenanceOf extracts the public subset of a certificate.
func ProvenanceOf(c *Certificate) Provenance {
	return Provenance{
		Serial:      c.Serial,
		CreatedAt:   c.CreatedAt,
		VerifiedRef: c.ArtifactVerifiedRef,
		OwnerEmail:  c.Owner.Email.String(),
	}
}
