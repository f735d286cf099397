package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// Common application errors used across services.
var (
	ErrInvalidToken       = errors.New("INVALID_TOKEN")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
)

// Error codes returned in the error envelope.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "forbidden"
	CodeNotFound             = "not_found"
	CodeConflict             = "conflict"
	CodeValidationFailed     = "validation_failed"
	CodeRateLimitExceeded    = "rate_limit_exceeded"
	CodeInternal             = "internal_error"
	CodeSessionNotFound      = "session_not_found"
	CodeSessionNotActive     = "session_not_active"
	CodeDuplicateBarcode     = "duplicate_barcode"
	CodeNoItemsToCommit      = "no_items_to_commit"
	CodeSubscriptionReadOnly = "subscription_read_only"
	CodePhotoLimitExceeded   = "photo_limit_exceeded"
	CodePhotoNotFound        = "photo_not_found"
	CodeItemNotFound         = "item_not_found"
	CodeTenantNotFound       = "tenant_not_found"
)

// AppError is an error that knows how it should be rendered over HTTP.
type AppError struct {
	Status  int
	Code    string
	Message string
	Details interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of e carrying structured details.
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewAppError builds an AppError.
func NewAppError(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func ValidationError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidRequest, message)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message)
}

func NotFound(code, message string) *AppError {
	return NewAppError(http.StatusNotFound, code, message)
}

func Conflict(code, message string) *AppError {
	return NewAppError(http.StatusConflict, code, message)
}

func BusinessRule(code, message string) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, code, message)
}

func RateLimited(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, CodeRateLimitExceeded, message)
}

// Internal wraps an unexpected failure. The cause is kept for logging only.
func Internal(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error", Err: err}
}

// AsAppError extracts an AppError from err, or wraps it as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
