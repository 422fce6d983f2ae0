// Package domainerrors provides typed, code-tagged errors for the card core.
//
// Services return these so the transport layer can map failures to HTTP
// statuses and user-facing messages without inspecting message text. Stores
// return sentinel errors (pkg/platform/sentinel) and services translate them
// into domain errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. Codes are stable API; messages are not.
type Code string

const (
	// Generic codes.
	CodeValidation   Code = "validation"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeRateLimited  Code = "rate_limited"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal"

	// Dual-write protocol codes.
	CodeLedgerNotConfigured  Code = "ledger_not_configured"
	CodeWalletRejected       Code = "wallet_rejected"
	CodeLedgerTimeout        Code = "ledger_timeout"
	CodeLedgerReverted       Code = "ledger_reverted"
	CodeLedgerUnreachable    Code = "ledger_unreachable"
	CodeRegistryInconsistent Code = "registry_failure_after_ledger_write"

	// OTP gate codes. CodeInvalidCode deliberately covers wrong, expired and
	// already-used codes with one message to avoid oracle leakage.
	CodeInvalidCode        Code = "invalid_or_expired"
	CodeTooManyAttempts    Code = "too_many_attempts"
	CodeInvalidDestination Code = "invalid_destination"
	CodeSendFailed         Code = "send_failed"
)

// Error is a code-tagged error that optionally wraps a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match two domain errors by code, so tests and callers
// can compare against a freshly constructed error value.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	return ok && e.Code == te.Code
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput, CodeInvalidDestination,
		CodeLedgerNotConfigured:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidCode:
		return http.StatusUnauthorized
	case CodeForbidden, CodeWalletRejected:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited, CodeTooManyAttempts:
		return http.StatusTooManyRequests
	case CodeTimeout, CodeLedgerTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable, CodeLedgerUnreachable, CodeSendFailed:
		return http.StatusServiceUnavailable
	case CodeLedgerReverted:
		return http.StatusBadGateway
	case CodeRegistryInconsistent:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
