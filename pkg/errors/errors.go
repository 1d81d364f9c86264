package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
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

// Is matches errors sharing the same code so callers can compare against the predefined values.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
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
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrMissingField       = New("MISSING_FIELD", http.StatusBadRequest, "required field missing")
	ErrMissingIndex       = New("MISSING_INDEX", http.StatusBadRequest, "slot index required")
	ErrUnknownTimeSlot    = New("UNKNOWN_TIME_SLOT", http.StatusUnprocessableEntity, "time is not offered for this course")
	ErrDuplicateSlot      = New("DUPLICATE_SLOT", http.StatusConflict, "slot already exists for this day and time")
	ErrOverlappingSlot    = New("OVERLAPPING_SLOT", http.StatusConflict, "slot overlaps an existing slot")
	ErrInvalidPermutation = New("INVALID_PERMUTATION", http.StatusUnprocessableEntity, "order must be a permutation of the current slots")
	ErrSlotHasStudents    = New("SLOT_HAS_STUDENTS", http.StatusConflict, "slot has enrolled students")
	ErrSlotFull           = New("SLOT_FULL", http.StatusConflict, "slot is full")
	ErrUpstream           = New("UPSTREAM_FAILURE", http.StatusBadGateway, "slot store unavailable")
	ErrUpstreamTimeout    = New("UPSTREAM_TIMEOUT", http.StatusGatewayTimeout, "slot store timed out")
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

// WithDetails returns a copy carrying structured details for the response body.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}

// DetailPersisted marks an error returned after the change was already committed.
const DetailPersisted = "persisted"

// Retryable reports whether the caller may retry the whole operation unchanged. Errors carrying
// DetailPersisted never are.
func Retryable(err error) bool {
	appErr := FromError(err)
	if appErr == nil {
		return false
	}
	if persisted, _ := appErr.Details[DetailPersisted].(bool); persisted {
		return false
	}
	switch appErr.Code {
	case ErrConflict.Code, ErrUpstream.Code, ErrUpstreamTimeout.Code:
		return true
	default:
		return false
	}
}
