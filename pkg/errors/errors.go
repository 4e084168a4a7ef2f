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

// Is reports whether target carries the same code, so sentinel comparisons
// survive Clone and Wrap.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
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
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict   = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss  = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Scheduling errors. Rejections are expected and recoverable; INDEX_CONFLICT
// signals an internal inconsistency and must never be swallowed.
var (
	ErrIncompleteAssignment = New("INCOMPLETE_ASSIGNMENT", http.StatusUnprocessableEntity, "teacher and subject must both be set or both be empty")
	ErrSubjectMismatch      = New("SUBJECT_MISMATCH", http.StatusUnprocessableEntity, "teacher is not qualified for subject")
	ErrGradeMismatch        = New("GRADE_MISMATCH", http.StatusUnprocessableEntity, "teacher is not qualified for classroom grade")
	ErrDoubleBooked         = New("DOUBLE_BOOKED", http.StatusConflict, "teacher already booked in another classroom")
	ErrSubjectNotOffered    = New("SUBJECT_NOT_OFFERED", http.StatusUnprocessableEntity, "subject is not part of the classroom curriculum")
	ErrIndexConflict        = New("INDEX_CONFLICT", http.StatusInternalServerError, "availability index is inconsistent with classroom grids")
	ErrGenerationConflict   = New("GENERATION_CONFLICT", http.StatusConflict, "generated grid double-books teachers")
	ErrGenerationFailed     = New("GENERATION_FAILED", http.StatusBadGateway, "schedule generation failed")
	ErrGenerationTimeout    = New("GENERATION_TIMEOUT", http.StatusGatewayTimeout, "schedule generation timed out")
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

// Extend wraps cause under a copy of err, keeping its code and status.
func Extend(err *Error, cause error, message string) *Error {
	clone := Clone(err, message)
	if clone != nil {
		clone.Err = cause
	}
	return clone
}

// HasCode reports whether err normalises to the given code.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
