package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers. Every failure leaving the service carries
// one of these, a human-readable message, and optional structured details.
const (
	// Transport / remote-protocol errors from the FRED client.
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeTimeout           = "TIMEOUT"
	CodeNetworkError      = "NETWORK_ERROR"
	CodeHTTPError         = "HTTP_ERROR"

	// Job errors.
	CodeJobNotFound  = "JOB_NOT_FOUND"
	CodeJobError     = "JOB_ERROR"
	CodeJobCancelled = "JOB_CANCELLED"
	CodeJobState     = "JOB_INVALID_STATE"

	// Local-resource errors.
	CodePathSecurityViolation = "PATH_SECURITY_VIOLATION"
	CodeWritePermissionDenied = "WRITE_PERMISSION_DENIED"
	CodeStorageNotAvailable   = "STORAGE_NOT_AVAILABLE"

	// Tool-surface errors.
	CodeInvalidParameter    = "INVALID_PARAMETER"
	CodeInvalidProjectName  = "INVALID_PROJECT_NAME"
	CodeInvalidSubdirectory = "INVALID_SUBDIRECTORY"
	CodeInvalidStatusFilter = "INVALID_STATUS_FILTER"
	CodeProjectExists       = "PROJECT_EXISTS"
	CodeProjectNotFound     = "PROJECT_NOT_FOUND"
	CodeUnknownOperation    = "UNKNOWN_OPERATION"
)

// APIError is the structured error exchanged across every boundary of the
// service: client failures, job failures, and tool-surface validation all
// funnel into this shape.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func NewAPIErrorf(code, format string, args ...any) *APIError {
	return &APIError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a structured detail field and returns the error for
// chaining.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// AsAPIError unwraps err into an *APIError. Non-APIError values are wrapped
// under the given fallback code so a raw error never escapes to a caller.
func AsAPIError(err error, fallbackCode string) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(fallbackCode, err.Error())
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Code {
	case CodeNotFound, CodeJobNotFound, CodeProjectNotFound, CodeUnknownOperation:
		return http.StatusNotFound
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeNetworkError, CodeHTTPError:
		return http.StatusBadGateway
	case CodeInvalidParameter, CodeInvalidProjectName, CodeInvalidSubdirectory,
		CodeInvalidStatusFilter, CodePathSecurityViolation:
		return http.StatusBadRequest
	case CodeProjectExists, CodeJobState:
		return http.StatusConflict
	case CodeWritePermissionDenied, CodeStorageNotAvailable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
