// Package domain provides canonical error types for the assistant.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates the upstream rejected our credentials.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeConflict indicates the request does not fit the conversation's current stage.
	ErrorTypeConflict ErrorType = "conflict"

	// ErrorTypeBusy indicates another input is still being processed.
	ErrorTypeBusy ErrorType = "busy"

	// ErrorTypeTooLarge indicates an upload exceeded its size limit.
	ErrorTypeTooLarge ErrorType = "too_large"

	// ErrorTypeUnsupportedMedia indicates an upload had the wrong media type.
	ErrorTypeUnsupportedMedia ErrorType = "unsupported_media"

	// ErrorTypeRateLimit indicates rate limiting was triggered upstream.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeOverloaded indicates the upstream service is overloaded.
	ErrorTypeOverloaded ErrorType = "overloaded"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"
	ErrorCodeInvalidAPIKey     ErrorCode = "invalid_api_key"
	ErrorCodeModelNotFound     ErrorCode = "model_not_found"
)

// APIError is the canonical error returned by the upstream client and written
// by the HTTP layer.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Code is an optional specific error code
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeBusy, ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case ErrorTypeOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// Convenience constructors for common errors

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrConflict creates a conflict error.
func ErrConflict(message string) *APIError {
	return NewAPIError(ErrorTypeConflict, message)
}

// ErrBusy creates a busy error.
func ErrBusy(message string) *APIError {
	return NewAPIError(ErrorTypeBusy, message)
}

// ErrTooLarge creates a payload too large error.
func ErrTooLarge(message string) *APIError {
	return NewAPIError(ErrorTypeTooLarge, message)
}

// ErrUnsupportedMedia creates an unsupported media type error.
func ErrUnsupportedMedia(message string) *APIError {
	return NewAPIError(ErrorTypeUnsupportedMedia, message)
}

// ErrServer creates a server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// AsAPIError extracts an *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
