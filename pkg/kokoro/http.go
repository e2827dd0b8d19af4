package kokoro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// httpClient handles HTTP communication with the TTS server.
type httpClient struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
}

// newHTTPClient creates a new HTTP client.
func newHTTPClient(cfg *clientConfig) *httpClient {
	return &httpClient{
		client:     cfg.httpClient,
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		apiKey:     cfg.apiKey,
		maxRetries: cfg.maxRetries,
	}
}

// requestJSON makes a request expecting a JSON response, with retry
// support for transient failures.
func (h *httpClient) requestJSON(ctx context.Context, method, path string, body, result any) error {
	return h.withRetry(ctx, func() error {
		resp, reqID, err := h.do(ctx, method, path, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return parseError(data, resp.StatusCode, reqID)
		}
		if result != nil {
			if err := json.Unmarshal(data, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	})
}

// requestBinary makes a request expecting a binary payload. A JSON body
// in the response is an error payload regardless of status, since the
// audio endpoint never answers JSON on success.
func (h *httpClient) requestBinary(ctx context.Context, method, path string, body any) ([]byte, string, error) {
	var audio []byte
	var contentType string

	err := h.withRetry(ctx, func() error {
		resp, reqID, err := h.do(ctx, method, path, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return parseError(data, resp.StatusCode, reqID)
		}

		ct := resp.Header.Get("Content-Type")
		if strings.Contains(ct, "application/json") {
			return parseError(data, resp.StatusCode, reqID)
		}

		audio = data
		contentType = ct
		return nil
	})
	return audio, contentType, err
}

// get performs a bare GET without status handling; callers own the body.
func (h *httpClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	h.setHeaders(req, uuid.NewString())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// do performs a single request and returns the response plus the request
// id attached to it.
func (h *httpClient) do(ctx context.Context, method, path string, body any) (*http.Response, string, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, bodyReader)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	reqID := uuid.NewString()
	h.setHeaders(req, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	return resp, reqID, nil
}

// withRetry runs fn with exponential backoff: 1s, 2s, 4s, ...
func (h *httpClient) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if apiErr, ok := AsError(err); ok {
			if !apiErr.Retryable() {
				return err
			}
		}
		// Non-API errors (network errors) are retryable.
	}
	return lastErr
}

// setHeaders sets common headers for requests.
func (h *httpClient) setHeaders(req *http.Request, reqID string) {
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("User-Agent", "kokoctl/1.0")
	req.Header.Set("X-Request-ID", reqID)
}

// parseError turns an error response body into an *Error. OpenAI-style
// {"error": {...}} payloads are unwrapped; anything else is kept verbatim.
func parseError(body []byte, httpStatus int, reqID string) error {
	var wrapper struct {
		Error *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil {
		return &Error{
			HTTPStatus: httpStatus,
			Message:    wrapper.Error.Message,
			Type:       wrapper.Error.Type,
			RequestID:  reqID,
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &Error{
		HTTPStatus: httpStatus,
		Message:    msg,
		RequestID:  reqID,
	}
}
