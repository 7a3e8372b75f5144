package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid")
	ErrUnauthorized = errors.New("unauthorized")
	ErrFetch        = errors.New("upstream fetch failed")
	ErrTooLarge     = errors.New("payload too large")
)

// ValidationError describes which input was rejected. It matches ErrInvalid.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// invalidErr keeps err in the chain so callers can still inspect the cause.
func invalidErr(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}
