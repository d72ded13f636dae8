package sentinel

import "errors"

// Infrastructure facts reported by stores and adapters. Services translate
// them into coded domain errors before anything reaches a transport.
//
//   - ErrNotFound: the record does not exist
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrInvalidState: the record is in the wrong state for the mutation
//   - ErrUnavailable: the backend could not be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
