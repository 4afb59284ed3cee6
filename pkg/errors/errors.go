package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so cloned errors still compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Is reports whether any error in err's chain matches target. Typed errors
// match on Code.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrAccountPending     = New("ACCOUNT_PENDING", http.StatusForbidden, "account pending approval")
	ErrAccountRejected    = New("ACCOUNT_REJECTED", http.StatusForbidden, "account registration rejected")
	ErrAccountBlocked     = New("ACCOUNT_BLOCKED", http.StatusForbidden, "account blocked")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrRateLimited        = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests, please try again later")

	ErrLibraryFull          = New("LIBRARY_FULL", http.StatusBadRequest, "library is full")
	ErrActiveBookingExists  = New("ACTIVE_BOOKING_EXISTS", http.StatusBadRequest, "you already have an active study slot booked")
	ErrEscalationTooEarly   = New("ESCALATION_TOO_EARLY", http.StatusBadRequest, "please wait before escalating")
	ErrInvalidTransition    = New("INVALID_TRANSITION", http.StatusBadRequest, "status transition not allowed")
	ErrEventFull            = New("EVENT_FULL", http.StatusBadRequest, "event fully booked")
	ErrEventAlreadyBooked   = New("ALREADY_BOOKED", http.StatusBadRequest, "you have already booked this event")
	ErrUnsupportedFileType  = New("UNSUPPORTED_FILE", http.StatusBadRequest, "unsupported file type")
	ErrFeedbackNotPermitted = New("FEEDBACK_NOT_PERMITTED", http.StatusBadRequest, "feedback not permitted for this complaint")
	ErrUnsafeDonation       = New("UNSAFE_DONATION", http.StatusForbidden, "Safety Violation: Cannot donate unsafe food.")

	// ErrCacheMiss signals an absent cache entry; it never reaches clients.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Internal wraps err as an internal server error with the given message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
