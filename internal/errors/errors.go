package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents a structured application error with context
type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
	HTTPCode int    `json:"-"`
	Cause    error  `json:"-"`

	// Fields names each rejected request field with the rule it broke.
	Fields map[string]string `json:"fields,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeConfigError        = "CONFIG_ERROR"
	CodeOAuthError         = "OAUTH_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeUpstreamError      = "UPSTREAM_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Cache-specific error codes
	CodeCacheError       = "CACHE_ERROR"
	CodeCacheUnavailable = "CACHE_UNAVAILABLE"
)

func newError(code string, httpCode int, message string, cause error) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		HTTPCode: httpCode,
		Cause:    cause,
	}
}

// Error constructors
func ValidationError(message string, cause error) *AppError {
	return newError(CodeValidationFailed, http.StatusBadRequest, message, cause)
}

// FieldValidationError is a ValidationError listing the offending fields.
func FieldValidationError(message string, fields map[string]string, cause error) *AppError {
	err := newError(CodeValidationFailed, http.StatusBadRequest, message, cause)
	err.Fields = fields
	return err
}

func NotFoundError(message string, cause error) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, message, cause)
}

func ConflictError(message string, cause error) *AppError {
	return newError(CodeConflict, http.StatusConflict, message, cause)
}

func UnauthorizedError(message string, cause error) *AppError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, cause)
}

func ForbiddenError(message string, cause error) *AppError {
	return newError(CodeForbidden, http.StatusForbidden, message, cause)
}

func InternalError(message string, cause error) *AppError {
	return newError(CodeInternalError, http.StatusInternalServerError, message, cause)
}

func DatabaseError(message string, cause error) *AppError {
	return newError(CodeDatabaseError, http.StatusInternalServerError, message, cause)
}

func ConfigError(message string, cause error) *AppError {
	return newError(CodeConfigError, http.StatusInternalServerError, message, cause)
}

func OAuthError(message string, cause error) *AppError {
	return newError(CodeOAuthError, http.StatusBadRequest, message, cause)
}

func RateLimitedError(message string, cause error) *AppError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, message, cause)
}

func InvalidRequestError(message string, cause error) *AppError {
	return newError(CodeInvalidRequest, http.StatusBadRequest, message, cause)
}

func PayloadTooLargeError(message string, cause error) *AppError {
	return newError(CodePayloadTooLarge, http.StatusRequestEntityTooLarge, message, cause)
}

// UpstreamError reports a failed call to the storage provider or the summarizer.
func UpstreamError(message string, cause error) *AppError {
	return newError(CodeUpstreamError, http.StatusBadGateway, message, cause)
}

func ServiceUnavailableError(message string, cause error) *AppError {
	return newError(CodeServiceUnavailable, http.StatusServiceUnavailable, message, cause)
}

// Cache-specific error constructors
func CacheError(message string, cause error) *AppError {
	return newError(CodeCacheError, http.StatusInternalServerError, message, cause)
}

func CacheUnavailableError(message string, cause error) *AppError {
	return newError(CodeCacheUnavailable, http.StatusServiceUnavailable, message, cause)
}

// IsServerFault reports whether err is a failure of this service's own
// dependencies, whose details stay out of responses.
func IsServerFault(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return true
	}
	switch appErr.Code {
	case CodeInternalError, CodeDatabaseError, CodeConfigError, CodeCacheError:
		return true
	}
	return false
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code, message string) *AppError {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the original code but update message
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:     appErr.Code,
			Message:  fmt.Sprintf("%s: %s", message, appErr.Message),
			HTTPCode: appErr.HTTPCode,
			Cause:    appErr.Cause,
			Fields:   appErr.Fields,
		}
	}

	httpCode := http.StatusInternalServerError
	switch code {
	case CodeValidationFailed, CodeInvalidRequest, CodeOAuthError:
		httpCode = http.StatusBadRequest
	case CodeNotFound:
		httpCode = http.StatusNotFound
	case CodeConflict:
		httpCode = http.StatusConflict
	case CodeUnauthorized:
		httpCode = http.StatusUnauthorized
	case CodeForbidden:
		httpCode = http.StatusForbidden
	case CodePayloadTooLarge:
		httpCode = http.StatusRequestEntityTooLarge
	case CodeUpstreamError:
		httpCode = http.StatusBadGateway
	case CodeCacheUnavailable, CodeServiceUnavailable:
		httpCode = http.StatusServiceUnavailable
	case CodeRateLimited:
		httpCode = http.StatusTooManyRequests
	}

	return &AppError{
		Code:     code,
		Message:  message,
		HTTPCode: httpCode,
		Cause:    err,
	}
}

// IsType checks if an error is of a specific type/code
func IsType(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetHTTPCode extracts the HTTP status code from an error
func GetHTTPCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPCode
	}
	return http.StatusInternalServerError
}
