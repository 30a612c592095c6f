package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown, expired and exhausted pastes alike.
	// Callers must not be able to tell these apart.
	ErrNotFound = errors.New("paste not found")

	// ErrStorageUnavailable means the backend could not complete the operation.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidInput rejects malformed creation parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// Unavailable wraps a backend-internal failure so that only
// ErrStorageUnavailable is visible through errors.Is.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
