// Package fetcher issues single authenticated GET requests against the
// stats.fm API and decodes the JSON response.
//
// Retry policy belongs to the caller: a failed request is reported once as a
// typed error (NetworkError, TimeoutError, HTTPStatusError, ParseError) and
// the pipeline records it as a failed outcome.
package fetcher
