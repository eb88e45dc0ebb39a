package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeDriver           = "DRIVER_ERROR"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeReadinessTimeout = "READINESS_TIMEOUT"
	ErrCodeAuth             = "AUTH_ERROR"
	ErrCodeCapture          = "CAPTURE_ERROR"
	ErrCodeSessionBusy      = "SESSION_BUSY"
	ErrCodePersist          = "PERSIST_FAILED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// SessionError is the internal error type carrying an error code and the
// session stage that was active when it occurred.
// It implements the error interface and supports error wrapping via Unwrap.
type SessionError struct {
	Code    string
	Message string
	Stage   string
	Err     error // wrapped original error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new SessionError.
func NewSessionError(code, message string, err error) *SessionError {
	return &SessionError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *SessionError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message, Stage: e.Stage}
}

// CodeOf returns the code of the first SessionError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) string {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}
