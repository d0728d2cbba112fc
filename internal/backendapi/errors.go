package backendapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrorType classifies learning-API failures.
type ErrorType string

const (
	ErrorAuthFailed  ErrorType = "auth_failed"
	ErrorForbidden   ErrorType = "forbidden"
	ErrorNotFound    ErrorType = "not_found"
	ErrorRateLimited ErrorType = "rate_limited"
	ErrorServer      ErrorType = "server_error"
	ErrorBadRequest  ErrorType = "bad_request"
	ErrorEnvelope    ErrorType = "envelope_error"
	ErrorNetwork     ErrorType = "network_error"
	ErrorUnknown     ErrorType = "unknown"
)

// APIError is a classified failure from the learning API. It is produced
// either from a non-2xx HTTP status or from an envelope with success=false.
type APIError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("learning api: %s (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("learning api: %s: %s", e.Type, e.Message)
}

// IsAPIError unwraps err into an *APIError if possible.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404-class API error.
func IsNotFound(err error) bool {
	apiErr, ok := IsAPIError(err)
	return ok && apiErr.Type == ErrorNotFound
}

// classifyStatus maps an HTTP response with a non-2xx status to an APIError.
// The body is read (bounded) for a human-readable message.
func classifyStatus(resp *http.Response) *APIError {
	msg := ""
	if resp.Body != nil {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err == nil && len(body) > 0 {
			var envelope struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
				msg = envelope.Error
			} else {
				msg = string(body)
			}
		}
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: msg}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr.Type = ErrorAuthFailed
	case resp.StatusCode == http.StatusForbidden:
		apiErr.Type = ErrorForbidden
	case resp.StatusCode == http.StatusNotFound:
		apiErr.Type = ErrorNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Type = ErrorRateLimited
		apiErr.Retryable = true
	case resp.StatusCode >= 500:
		apiErr.Type = ErrorServer
		apiErr.Retryable = true
	case resp.StatusCode >= 400:
		apiErr.Type = ErrorBadRequest
	default:
		apiErr.Type = ErrorUnknown
	}
	return apiErr
}
