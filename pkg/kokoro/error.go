package kokoro

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an error response from the TTS server.
type Error struct {
	// HTTPStatus is the HTTP status code.
	HTTPStatus int `json:"status"`

	// Message is the server's error message, or the raw body when the
	// server did not answer structured JSON.
	Message string `json:"message"`

	// Type is the OpenAI-style error type, when present.
	Type string `json:"type,omitempty"`

	// RequestID is the client-generated X-Request-ID of the failed call.
	RequestID string `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("kokoro: status %d (request=%s)", e.HTTPStatus, e.RequestID)
	}
	return fmt.Sprintf("kokoro: %s (status=%d, request=%s)", e.Message, e.HTTPStatus, e.RequestID)
}

// IsNotFound returns true for unknown models, voices or paths.
func (e *Error) IsNotFound() bool {
	return e.HTTPStatus == http.StatusNotFound
}

// IsInvalidRequest returns true if the server rejected the request body.
func (e *Error) IsInvalidRequest() bool {
	return e.HTTPStatus == http.StatusBadRequest || e.HTTPStatus == http.StatusUnprocessableEntity
}

// IsServerError returns true if synthesis failed server-side.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus >= 500
}

// Retryable returns true if the request can be retried.
func (e *Error) Retryable() bool {
	return e.HTTPStatus == http.StatusTooManyRequests || e.IsServerError()
}

// AsError extracts *Error from an error.
//
//	if e, ok := kokoro.AsError(err); ok && e.IsServerError() {
//	    // synthesis failed on the server
//	}
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
