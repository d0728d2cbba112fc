package apierr

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/signalong/signalong-core/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// AUTH_ - Authentication and authorization errors
	ErrAuthMissing   ErrorCode = "AUTH_MISSING"
	ErrAuthInvalid   ErrorCode = "AUTH_INVALID"
	ErrAuthForbidden ErrorCode = "AUTH_FORBIDDEN"
	ErrAuthNoSession ErrorCode = "AUTH_NO_SESSION"

	// LESSON_ - Lesson and progress data errors
	ErrLessonNotFound   ErrorCode = "LESSON_NOT_FOUND"
	ErrLessonFetch      ErrorCode = "LESSON_FETCH_FAILED"
	ErrProgressUpdate   ErrorCode = "PROGRESS_UPDATE_FAILED"
	ErrStreakUpdate     ErrorCode = "STREAK_UPDATE_FAILED"
	ErrUpstreamTimeout  ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamFailed   ErrorCode = "UPSTREAM_FAILED"

	// CACHE_ - Cache store errors
	ErrCacheMiss           ErrorCode = "CACHE_MISS"
	ErrCacheInvalidPattern ErrorCode = "CACHE_INVALID_PATTERN"
	ErrCacheImportFailed   ErrorCode = "CACHE_IMPORT_FAILED"

	// WARM_ - Cache warming errors
	ErrWarmAlreadyRunning ErrorCode = "WARM_ALREADY_RUNNING"
	ErrWarmNoSession      ErrorCode = "WARM_NO_SESSION"
	ErrWarmFailed         ErrorCode = "WARM_FAILED"

	// SYSTEM_ - System and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"
	ErrSystemTimeout     ErrorCode = "SYSTEM_TIMEOUT"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON  ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	// RESOURCE_ - Resource errors
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int                    // HTTP status code (not serialized)
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// WriteErrorContext writes a structured error response, attaching the request
// ID from context and logging the error.
func WriteErrorContext(ctx context.Context, w http.ResponseWriter, err *Error) {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok && reqID != "" {
		err = err.WithRequestID(reqID)
	}
	logger.WarnContext(ctx, "api error", "code", err.Code, "message", err.Message, "status", err.Status())
	WriteError(w, err)
}

// Helper functions for common errors

// AuthMissing creates an authentication missing error
func AuthMissing(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(ErrAuthMissing, message, http.StatusUnauthorized)
}

// AuthInvalid creates an invalid authentication error
func AuthInvalid(message string) *Error {
	if message == "" {
		message = "Invalid authentication credentials"
	}
	return New(ErrAuthInvalid, message, http.StatusUnauthorized)
}

// AuthForbidden creates a forbidden error
func AuthForbidden(message string) *Error {
	if message == "" {
		message = "Access forbidden"
	}
	return New(ErrAuthForbidden, message, http.StatusForbidden)
}

// AuthNoSession signals that an authenticated session is required.
func AuthNoSession() *Error {
	return New(ErrAuthNoSession, "No authenticated session", http.StatusUnauthorized)
}

// LessonNotFound creates a lesson not found error
func LessonNotFound(message string) *Error {
	if message == "" {
		message = "Lesson not found"
	}
	return New(ErrLessonNotFound, message, http.StatusNotFound)
}

// LessonFetchFailed creates an upstream lesson fetch error
func LessonFetchFailed(message string) *Error {
	if message == "" {
		message = "Failed to fetch lesson data"
	}
	return New(ErrLessonFetch, message, http.StatusBadGateway)
}

// ProgressUpdateFailed creates a progress mutation error
func ProgressUpdateFailed(message string) *Error {
	if message == "" {
		message = "Failed to update progress"
	}
	return New(ErrProgressUpdate, message, http.StatusBadGateway)
}

// StreakUpdateFailed creates a streak mutation error
func StreakUpdateFailed(message string) *Error {
	if message == "" {
		message = "Failed to update streak"
	}
	return New(ErrStreakUpdate, message, http.StatusBadGateway)
}

// UpstreamFailed creates a generic upstream failure error
func UpstreamFailed(message string) *Error {
	if message == "" {
		message = "Learning API request failed"
	}
	return New(ErrUpstreamFailed, message, http.StatusBadGateway)
}

// UpstreamTimeout creates an upstream timeout error
func UpstreamTimeout(message string) *Error {
	if message == "" {
		message = "Learning API request timed out"
	}
	return New(ErrUpstreamTimeout, message, http.StatusGatewayTimeout)
}

// CacheMiss signals that cache-only data was requested but absent.
func CacheMiss(message string) *Error {
	if message == "" {
		message = "No cached data available"
	}
	return New(ErrCacheMiss, message, http.StatusNotFound)
}

// CacheInvalidPattern creates an invalid invalidation pattern error
func CacheInvalidPattern(message string) *Error {
	if message == "" {
		message = "Invalid cache invalidation pattern"
	}
	return New(ErrCacheInvalidPattern, message, http.StatusBadRequest)
}

// CacheImportFailed creates a snapshot import error
func CacheImportFailed(message string) *Error {
	if message == "" {
		message = "Failed to import cache snapshot"
	}
	return New(ErrCacheImportFailed, message, http.StatusBadRequest)
}

// WarmAlreadyRunning signals a concurrent warm run attempt.
func WarmAlreadyRunning() *Error {
	return New(ErrWarmAlreadyRunning, "Cache warming already in progress", http.StatusConflict)
}

// WarmNoSession signals warming was requested without a session.
func WarmNoSession() *Error {
	return New(ErrWarmNoSession, "Cache warming requires an authenticated session", http.StatusUnauthorized)
}

// ValidationInvalidJSON creates an invalid JSON body error
func ValidationInvalidJSON(message string) *Error {
	if message == "" {
		message = "Invalid JSON in request body"
	}
	return New(ErrValidationInvalidJSON, message, http.StatusBadRequest)
}

// ValidationMissingField creates a missing field error
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest)
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(message string) *Error {
	if message == "" {
		message = "Invalid value"
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest)
}

// ResourceNotFound creates a resource not found error
func ResourceNotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return New(ErrResourceNotFound, message, http.StatusNotFound)
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Global rate limit exceeded", http.StatusTooManyRequests)
}

// RateLimitIP creates a per-IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Too many requests from this IP", http.StatusTooManyRequests)
}
