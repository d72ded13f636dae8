package producer

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized producer failure taxonomy.
type ErrorCategory string

const (
	// ErrorUnavailable covers backend errors and unusable results, including
	// a result missing either artifact.
	ErrorUnavailable ErrorCategory = "unavailable"

	// ErrorTimeout means the backend did not answer within the deadline.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorQuotaExceeded means the backend refused for rate or billing limits.
	ErrorQuotaExceeded ErrorCategory = "quota_exceeded"
)

// Error wraps producer failures with a normalized category.
type Error struct {
	Category   ErrorCategory
	Model      string
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("producer %s [%s]: %s: %v", e.Model, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("producer %s [%s]: %s", e.Model, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a categorized producer error.
func NewError(category ErrorCategory, model, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Model:      model,
		Message:    message,
		Underlying: underlying,
	}
}

// GetCategory extracts the category, treating uncategorized errors as unavailable.
func GetCategory(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorUnavailable
}
