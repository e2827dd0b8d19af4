package voicebank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kokotools/kokoctl/pkg/torchpt"
)

const (
	// DefaultTimeout bounds a single embedding download.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retries per voice.
	DefaultMaxRetries = 2
)

// ErrUnexpectedContent marks a response body that is not a tensor blob,
// typically an HTML error page served with status 200.
var ErrUnexpectedContent = errors.New("unexpected response content")

// ErrShapeMismatch marks an embedding whose declared shape differs from
// the expected one.
var ErrShapeMismatch = errors.New("embedding shape mismatch")

// HubError is a non-success HTTP status from the embedding mirror.
type HubError struct {
	// Voice is the voice id being fetched.
	Voice string

	// URL is the download URL.
	URL string

	// HTTPStatus is the response status code.
	HTTPStatus int

	// Body is a snippet of the response body for diagnostics.
	Body string
}

func (e *HubError) Error() string {
	return fmt.Sprintf("voicebank: hub returned %d for voice %q (%s)", e.HTTPStatus, e.Voice, e.URL)
}

// Retryable returns true if the status indicates a transient condition.
func (e *HubError) Retryable() bool {
	return e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= 500
}

// DecodeError is a payload that could not be decoded into a valid
// embedding tensor. It is never retried.
type DecodeError struct {
	// Voice is the voice id being fetched.
	Voice string

	// Err is the underlying cause.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("voicebank: decode voice %q: %v", e.Voice, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Fetcher downloads voice embeddings from a mirror.
type Fetcher struct {
	mirror      string
	httpClient  *http.Client
	maxRetries  int
	keepPartial bool
	shape       []int
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithMirror sets the download base URL.
func WithMirror(url string) FetchOption {
	return func(f *Fetcher) {
		f.mirror = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithRetry sets the maximum number of retries per voice.
func WithRetry(maxRetries int) FetchOption {
	return func(f *Fetcher) {
		f.maxRetries = maxRetries
	}
}

// WithKeepPartial makes FetchAll skip failed voices instead of aborting
// the batch.
func WithKeepPartial(keep bool) FetchOption {
	return func(f *Fetcher) {
		f.keepPartial = keep
	}
}

// WithShape sets the expected embedding shape. A nil shape disables the
// check.
func WithShape(shape []int) FetchOption {
	return func(f *Fetcher) {
		f.shape = shape
	}
}

// NewFetcher creates a fetcher with the default mirror, timeout and
// expected shape.
func NewFetcher(opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		mirror:     DefaultMirror,
		maxRetries: DefaultMaxRetries,
		shape:      DefaultShape,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return f
}

// URL returns the download URL for a voice id.
func (f *Fetcher) URL(voice string) string {
	return f.mirror + "/" + voice + ".pt"
}

// Fetch downloads and decodes a single voice embedding, retrying
// transient failures with exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context, voice string) (*torchpt.Tensor, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		tensor, err := f.fetchOnce(ctx, voice)
		if err == nil {
			return tensor, nil
		}
		lastErr = err

		var hubErr *HubError
		if errors.As(err, &hubErr) {
			if !hubErr.Retryable() {
				return nil, err
			}
			continue
		}
		var decErr *DecodeError
		if errors.As(err, &decErr) {
			// A malformed payload will not improve on retry.
			return nil, err
		}
		// Transport errors are retryable.
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, voice string) (*torchpt.Tensor, error) {
	url := f.URL(voice)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download voice %q: %w", voice, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &HubError{
			Voice:      voice,
			URL:        url,
			HTTPStatus: resp.StatusCode,
			Body:       string(snippet),
		}
	}

	// Mirrors serve HTML error pages with status 200 when a file is
	// missing or the request was rate-limited at the edge.
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return nil, &DecodeError{
			Voice: voice,
			Err:   fmt.Errorf("%w: mirror returned HTML (content-type %s)", ErrUnexpectedContent, ct),
		}
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download voice %q: %w", voice, err)
	}

	tensor, err := torchpt.LoadBytes(blob)
	if err != nil {
		return nil, &DecodeError{Voice: voice, Err: err}
	}

	if f.shape != nil && !shapeEqual(tensor.Shape, f.shape) {
		return nil, &DecodeError{
			Voice: voice,
			Err:   fmt.Errorf("%w: got %v, want %v", ErrShapeMismatch, tensor.Shape, f.shape),
		}
	}
	return tensor, nil
}

// FetchAll downloads the given voices sequentially in list order.
//
// By default the first failure aborts the batch so the caller never writes
// a partial registry. With WithKeepPartial failed voices are skipped; it is
// still an error when no voice succeeds.
func (f *Fetcher) FetchAll(ctx context.Context, voices []string) (*Registry, error) {
	reg := NewRegistry()
	var skipped []string

	for _, voice := range voices {
		slog.Info("downloading voice", "voice", voice, "url", f.URL(voice))

		tensor, err := f.Fetch(ctx, voice)
		if err != nil {
			if !f.keepPartial {
				return nil, fmt.Errorf("voice %q: %w", voice, err)
			}
			slog.Warn("skipping voice", "voice", voice, "err", err)
			skipped = append(skipped, voice)
			continue
		}

		slog.Debug("voice decoded", "voice", voice, "shape", tensor.Shape)
		reg.Add(voice, tensor)
	}

	if reg.Len() == 0 {
		return nil, fmt.Errorf("no voices fetched (%d requested, %d skipped)", len(voices), len(skipped))
	}
	if len(skipped) > 0 {
		slog.Warn("registry is partial", "fetched", reg.Len(), "skipped", skipped)
	}
	return reg, nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
