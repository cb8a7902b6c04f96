// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
//
// The render core itself never returns errors for malformed markup; these
// sentinels cover the edges around it (wiki API, decoding, HTTP surface, CLI).
package errors

import "errors"

// Wiki API errors.
var (
	// ErrHTTPStatusNotOK indicates an HTTP response with a non-200 status code.
	ErrHTTPStatusNotOK = errors.New("HTTP status not OK")

	// ErrTooManyRedirects indicates too many HTTP redirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrAPIError indicates the wiki API answered with an error object.
	ErrAPIError = errors.New("wiki api error")

	// ErrNotFound indicates the requested page or revision does not exist.
	ErrNotFound = errors.New("not found")
)

// Response and parsing errors.
var (
	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrUnexpectedType indicates an unexpected type was encountered.
	ErrUnexpectedType = errors.New("unexpected type")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid config")
)

// Rate limiting and throttling errors.
var (
	// ErrRateLimited indicates rate limiting was triggered.
	ErrRateLimited = errors.New("rate limited")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
