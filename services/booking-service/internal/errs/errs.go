// Package errs holds the error taxonomy shared by the engine, the stores and the transports.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrTransientStore  = errors.New("transient store error")

	// ErrCalendarNotFound means neither the assignee nor the organization owns a calendar.
	ErrCalendarNotFound = fmt.Errorf("calendar %w", ErrNotFound)
)

// ValidationError describes a caller error on a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound wraps ErrNotFound with the kind of entity that is missing.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTransientStore, err)
}
