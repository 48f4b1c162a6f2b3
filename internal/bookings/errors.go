package bookings

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown services and bookings, and for
	// bookings that are no longer active when an active one is required.
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable is returned when an admission conflicts with an
	// active booking or violates the schedule or lead-time policy.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrScheduleClosed is returned when no schedule rule covers a date.
	ErrScheduleClosed = errors.New("schedule closed")

	// ErrExternalSyncFailed marks a booking whose calendar retries are exhausted.
	ErrExternalSyncFailed = errors.New("external calendar sync failed")

	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
