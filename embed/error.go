package embed

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies embedding provider failures.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "invalid_request"
	ErrUnauthorized   ErrorCode = "unauthorized"
	ErrForbidden      ErrorCode = "forbidden"
	ErrRateLimited    ErrorCode = "rate_limited"
	ErrUpstreamError  ErrorCode = "upstream_error"
)

// Error is a typed provider error. Retryable drives the backoff loop:
// rate limits and 5xx responses are retried, caller mistakes are not.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (provider=%s status=%d)", e.Code, e.Message, e.Provider, e.HTTPStatus)
}

// IsRetryable reports whether err should re-enter the backoff loop.
// Unknown error types (network failures and the like) are treated as
// transient.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// IsRateLimited reports whether err is a provider rate-limit signal.
func IsRateLimited(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == ErrRateLimited
}

// IsValidation reports whether err is attributable to caller input.
func IsValidation(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == ErrInvalidRequest && pe.HTTPStatus == 0
}

// mapHTTPError converts an HTTP error status into a typed Error.
func mapHTTPError(status int, msg, provider string) *Error {
	code := ErrUpstreamError
	retryable := status >= 500

	switch status {
	case http.StatusUnauthorized:
		code = ErrUnauthorized
	case http.StatusForbidden:
		code = ErrForbidden
	case http.StatusTooManyRequests:
		code = ErrRateLimited
		retryable = true
	case http.StatusBadRequest:
		code = ErrInvalidRequest
	}

	return &Error{
		Code:       code,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  retryable,
		Provider:   provider,
	}
}

// validationError builds a caller-input error that is never retried.
func validationError(msg string) *Error {
	return &Error{Code: ErrInvalidRequest, Message: msg}
}
