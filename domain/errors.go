package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode is the stable, machine-readable reason shared across transport layers.
type ErrorCode string

const (
	ErrCodeUnauthenticated   ErrorCode = "unauthenticated"
	ErrCodePendingApproval   ErrorCode = "pending_approval"
	ErrCodeBanned            ErrorCode = "banned"
	ErrCodeForbiddenRole     ErrorCode = "forbidden_role"
	ErrCodeForbidden         ErrorCode = "forbidden"
	ErrCodeNotFound          ErrorCode = "not_found"
	ErrCodeInvalidTransition ErrorCode = "invalid_transition"
	ErrCodeInvalid           ErrorCode = "invalid"
	ErrCodeConflict          ErrorCode = "conflict"
	ErrCodeConfiguration     ErrorCode = "configuration_error"
	ErrCodeStorage           ErrorCode = "storage_error"
	ErrCodeUpstreamTransport ErrorCode = "upstream_transport_error"
	ErrCodeUpstreamDomain    ErrorCode = "upstream_domain_error"
	ErrCodeInternal          ErrorCode = "internal"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches two domain errors by code and message so sentinel comparisons survive wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// StorageError classifies a local persistence failure.
func StorageError(op string, err error) *Error {
	return WrapError(ErrCodeStorage, op, err)
}

// UpstreamError is the single normalized failure shape of the marketplace client.
// HTTPStatus is zero when no response reached the client.
type UpstreamError struct {
	HTTPStatus int             `json:"http_status"`
	Message    string          `json:"message"`
	RawBody    json.RawMessage `json:"raw_body,omitempty"`
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	if e.HTTPStatus == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.HTTPStatus)
}

// Transport reports whether the failure happened before any response arrived.
func (e *UpstreamError) Transport() bool {
	return e != nil && e.HTTPStatus == 0
}

// Reason returns the stable reason string for the failure class.
func (e *UpstreamError) Reason() ErrorCode {
	if e.Transport() {
		return ErrCodeUpstreamTransport
	}
	return ErrCodeUpstreamDomain
}

// Common domain errors.
var (
	ErrUserNotFound     = NewError(ErrCodeNotFound, "user not found")
	ErrSessionNotFound  = NewError(ErrCodeNotFound, "session not found")
	ErrEntityNotFound   = NewError(ErrCodeNotFound, "entity not found")
	ErrSettingsNotFound = NewError(ErrCodeNotFound, "settings not found")
	ErrStateNotFound    = NewError(ErrCodeNotFound, "oauth state not found")

	ErrUnauthenticated = NewError(ErrCodeUnauthenticated, "not authenticated, please login with discord")
	ErrPendingApproval = NewError(ErrCodePendingApproval, "account pending approval")
	ErrBanned          = NewError(ErrCodeBanned, "account banned")
	ErrForbiddenRole   = NewError(ErrCodeForbiddenRole, "insufficient role")

	ErrOwnerImmutable  = NewError(ErrCodeForbidden, "owner cannot be banned")
	ErrAdminBanByOwner = NewError(ErrCodeForbidden, "only the owner can ban an admin")
	ErrOwnerRoleChange = NewError(ErrCodeInvalidTransition, "owner role cannot be changed")

	ErrNotConfigured  = NewError(ErrCodeConfiguration, "api key not configured, please configure in settings")
	ErrAccessConflict = NewError(ErrCodeConflict, "user changed concurrently")
	ErrInvalidPayload = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// ReasonOf returns the stable reason string for any error.
func ReasonOf(err error) ErrorCode {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Reason()
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return ErrCodeInternal
}
