package store

import (
	"fmt"

	"imrich/pkg/platform/sentinel"
)

// Store errors. Each wraps a sentinel so callers may match either.
var (
	ErrNotFound          = sentinel.ErrNotFound
	ErrDuplicateSerial   = fmt.Errorf("duplicate serial: %w", sentinel.ErrConflict)
	ErrInvalidTransition = fmt.Errorf("invalid payment transition: %w", sentinel.ErrInvalidState)
)
