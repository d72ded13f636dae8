package domain

import (
	"net/mail"
	"strings"
	"unicode"

	dErrors "imrich/pkg/domain-errors"
)

const (
	maxAccountIDLength = 128
	maxEmailLength     = 254
)

// AccountID identifies an owner account managed by the external auth service.
// The value is opaque here; only its shape is checked at the trust boundary.
type AccountID string

func (a AccountID) String() string { return string(a) }

// IsZero reports whether the ID is empty.
func (a AccountID) IsZero() bool { return a == "" }

// ParseAccountID validates an account identifier taken from a token claim.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id is required")
	}
	if len(s) > maxAccountIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id is too long")
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "account id contains invalid characters")
		}
	}
	return AccountID(s), nil
}

// Email is a normalized owner email address.
type Email string

func (e Email) String() string { return string(e) }

// ParseEmail accepts a bare address (no display name) and lowercases it.
func ParseEmail(s string) (Email, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if len(s) > maxEmailLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "email is too long")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "email is malformed")
	}
	return Email(strings.ToLower(addr.Address)), nil
}
