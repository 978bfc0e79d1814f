package fetcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/musicsnap/internal/model"
)

// NetworkError is a transport-level failure (DNS, connection refused, reset).
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError means no complete response arrived within the request bound.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout after %s", e.Timeout)
}

// HTTPStatusError carries a non-2xx status and the raw response body.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// ParseError means the body was not valid JSON.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResponseTooLargeError means the body exceeded the configured size bound
// and was not decoded.
type ResponseTooLargeError struct {
	URL        string
	StatusCode int
	Limit      int64
}

func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("response too large: HTTP %d body exceeds %d bytes", e.StatusCode, e.Limit)
}

// ErrorKind maps a fetch error to its model.ErrorKind* label.
// Unknown errors are reported as network failures.
func ErrorKind(err error) string {
	var (
		timeoutErr *TimeoutError
		statusErr  *HTTPStatusError
		parseErr   *ParseError
		sizeErr    *ResponseTooLargeError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return model.ErrorKindTimeout
	case errors.As(err, &statusErr):
		return model.ErrorKindHTTPStatus
	case errors.As(err, &parseErr), errors.As(err, &sizeErr):
		return model.ErrorKindParse
	default:
		return model.ErrorKindNetwork
	}
}

// IsStatus reports whether err is an HTTPStatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == code
	}
	return false
}
