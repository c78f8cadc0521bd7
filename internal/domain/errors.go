package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrConflict          = errors.New("concurrent modification")
)

// ValidationError reports malformed input at submission or completion.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a reference to a record that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "ai request"
	}
	return fmt.Sprintf("%s %q not found", kind, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidTransitionError reports a state change the workflow does not allow.
type InvalidTransitionError struct {
	RequestID string
	From      RequestStatus
	To        RequestStatus
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition %s -> %s for request %s", e.From, e.To, e.RequestID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is reports whether target is ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// NotAuthorizedError reports an operator acting on a request held by someone else.
type NotAuthorizedError struct {
	RequestID string
	AdminID   string
	HolderID  string
}

func (e *NotAuthorizedError) Error() string {
	if e.HolderID == "" {
		return fmt.Sprintf("admin %q does not hold request %s", e.AdminID, e.RequestID)
	}
	return fmt.Sprintf("admin %q does not hold request %s (held by %q)", e.AdminID, e.RequestID, e.HolderID)
}

// Is reports whether target is ErrNotAuthorized.
func (e *NotAuthorizedError) Is(target error) bool { return target == ErrNotAuthorized }

// ConflictError reports a lost optimistic-concurrency race on update.
type ConflictError struct {
	RequestID string
	Version   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("request %s was modified concurrently (expected version %d)", e.RequestID, e.Version)
}

// Is reports whether target is ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// SessionOwnerError reports a request whose wizard session belongs to another customer.
type SessionOwnerError struct {
	SessionID  string
	CustomerID string
	OwnerID    string
}

func (e *SessionOwnerError) Error() string {
	return fmt.Sprintf("site session %s belongs to customer %q, not %q", e.SessionID, e.OwnerID, e.CustomerID)
}

// Is reports whether target is ErrNotAuthorized.
func (e *SessionOwnerError) Is(target error) bool { return target == ErrNotAuthorized }
