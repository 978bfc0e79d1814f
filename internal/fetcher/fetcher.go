package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single request including the body read.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent matches what the scheduled job has always sent.
	DefaultUserAgent = "Mozilla/5.0 (compatible; GitHub-Actions-Bot/1.0)"

	// DefaultMaxBodyBytes caps how much of a response is read into memory.
	DefaultMaxBodyBytes = 16 << 20
)

// Fetcher performs one authenticated GET and returns the decoded JSON body.
type Fetcher interface {
	Fetch(ctx context.Context, url, credential string) (json.RawMessage, error)
}

// Options configures an HTTPFetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// MaxBodyBytes bounds the response size; zero selects DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// Client overrides the underlying HTTP client (tests use httptest clients).
	Client *http.Client
}

// HTTPFetcher implements Fetcher over net/http. It never retries.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBody   int64
}

// New creates an HTTPFetcher, filling defaults for zero options.
func New(opts Options) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &HTTPFetcher{client: client, timeout: timeout, userAgent: userAgent, maxBody: maxBody}
}

// Fetch issues the request and classifies any failure as NetworkError,
// TimeoutError, HTTPStatusError or ParseError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, credential string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Authorization", AuthorizationHeader(credential))
	req.Header.Set("User-Agent", f.userAgent)

	slog.Debug("stats request", slog.String("url", url))

	res, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, url, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, f.maxBody+1))
	if err != nil {
		return nil, f.classify(ctx, url, err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, &ResponseTooLargeError{URL: url, StatusCode: res.StatusCode, Limit: f.maxBody}
	}
	slog.Debug("stats response", slog.Int("status", res.StatusCode), slog.String("url", url), slog.Int("bytes", len(body)))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &HTTPStatusError{URL: url, StatusCode: res.StatusCode, Body: string(body)}
	}

	var payload json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}
	return payload, nil
}

func (f *HTTPFetcher) classify(ctx context.Context, url string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{URL: url, Timeout: f.timeout}
	}
	return &NetworkError{URL: url, Err: err}
}

// AuthorizationHeader builds the bearer header value. Credentials that
// already carry the "Bearer " prefix are passed through unchanged.
func AuthorizationHeader(credential string) string {
	trimmed := strings.TrimSpace(credential)
	if len(trimmed) >= 7 && strings.EqualFold(trimmed[:7], "bearer ") {
		trimmed = strings.TrimSpace(trimmed[7:])
	}
	return fmt.Sprintf("Bearer %s", trimmed)
}

var _ Fetcher = (*HTTPFetcher)(nil)
