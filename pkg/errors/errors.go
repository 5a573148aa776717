package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized      = NewError("UNAUTHORIZED", "manager rejected the bearer token", http.StatusUnauthorized)
	ErrTransport         = NewError("TRANSPORT_ERROR", "request to manager failed", 0)
	ErrMalformedResponse = NewError("MALFORMED_RESPONSE", "manager response could not be decoded", 0)
	ErrUnexpectedStatus  = NewError("UNEXPECTED_STATUS", "manager returned an unexpected status", 0)
	ErrInvalidArgument   = NewError("INVALID_ARGUMENT", "invalid argument", 0)
	ErrCircuitOpen       = NewError("CIRCUIT_OPEN", "circuit breaker is open", http.StatusServiceUnavailable)
	ErrTokenUnavailable  = NewError("TOKEN_UNAVAILABLE", "bearer token could not be obtained", 0)
	ErrNotFound          = NewError("NOT_FOUND", "rule not found", http.StatusNotFound)
	ErrInternal          = NewError("INTERNAL_ERROR", "internal error", http.StatusInternalServerError)
)

type Error struct {
	Code    string
	Message string
	Status  int
	Body    string
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Status != 0 && e.Code == ErrUnexpectedStatus.Code {
		msg = fmt.Sprintf("%s %d", msg, e.Status)
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so the package-level sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := e.clone()
	err.Cause = cause
	return err
}

func (e *Error) WithStatus(status int) *Error {
	err := e.clone()
	err.Status = status
	return err
}

func (e *Error) WithBody(body string) *Error {
	err := e.clone()
	err.Body = body
	return err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := e.clone()
	err.Details[key] = value
	return err
}

func (e *Error) WithMessage(message string) *Error {
	return e.WithDetail("message", message)
}

func (e *Error) clone() *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		err.Details[k] = v
	}
	return &err
}

// IsRetryable reports whether repeating the same request could succeed.
// Nothing in this module retries on it; callers decide.
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrTransport.Code, ErrCircuitOpen.Code:
		return true
	case ErrUnexpectedStatus.Code:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}

func hasCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsUnauthorized(err error) bool {
	return hasCode(err, ErrUnauthorized.Code)
}

func IsTransport(err error) bool {
	return hasCode(err, ErrTransport.Code)
}

func IsMalformed(err error) bool {
	return hasCode(err, ErrMalformedResponse.Code)
}

func IsUnexpectedStatus(err error) bool {
	return hasCode(err, ErrUnexpectedStatus.Code)
}

func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrInvalidArgument.Code)
}

func IsCircuitOpen(err error) bool {
	return hasCode(err, ErrCircuitOpen.Code)
}

func IsTokenUnavailable(err error) bool {
	return hasCode(err, ErrTokenUnavailable.Code)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// ToErrorResponse renders err the way the manager API reports failures.
func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}
