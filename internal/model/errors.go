package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one of these so
// transport code can map it to a status without knowing the domain error.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("backend unavailable")
	ErrNotEnabled   = errors.New("not enabled")
)

// kindError attaches a kind to a human message while keeping the message as Error().
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewError builds an error of the given kind whose Error() is exactly msg.
func NewError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Validationf is a shortcut for ErrValidation errors.
func Validationf(format string, args ...any) error {
	return NewError(ErrValidation, fmt.Sprintf(format, args...))
}

// ModerationError is returned when the moderation gate blocks a write.
type ModerationError struct {
	Reason string
}

func (e *ModerationError) Error() string {
	if e.Reason == "" {
		return "content rejected by moderation"
	}
	return "content rejected by moderation: " + e.Reason
}

func (e *ModerationError) Unwrap() error { return ErrForbidden }

// Kind returns the kind sentinel err wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrUnavailable, ErrNotEnabled} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
