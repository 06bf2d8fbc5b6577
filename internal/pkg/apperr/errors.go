// Package apperr defines the error kinds shared by the room and wallet layers.
//
// Every domain error wraps exactly one kind, so callers classify failures with
// errors.Is and never by message text.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPermission          = errors.New("permission denied")
)

var kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrConflict,
	ErrInsufficientBalance,
	ErrPermission,
}

// Validation returns a formatted error of kind ErrValidation.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// NotFound returns a formatted error of kind ErrNotFound.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Conflict returns a formatted error of kind ErrConflict.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// Permission returns a formatted error of kind ErrPermission.
func Permission(format string, args ...any) error {
	return wrap(ErrPermission, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind returns the kind wrapped by err, or nil for infrastructure errors.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
