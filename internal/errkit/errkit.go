// Package errkit provides error wrapping helpers shared across the service.
package errkit

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// WrapWithContext wraps an error with a context prefix, preserving the chain.
func WrapWithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// WrapWithContextf wraps an error with a formatted context prefix.
func WrapWithContextf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// minErrorStatusCode is the first HTTP status treated as an error.
const minErrorStatusCode = 400

// maxErrorBodyBytes caps how much of an error response body is retained.
const maxErrorBodyBytes = 4096

// HTTPError is a structured error for a non-2xx response from a collaborator.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP error (%d %s): %s", e.StatusCode, e.Status, e.Body)
	}
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

// ParseHTTPError returns an HTTPError when the response status is an error,
// nil otherwise. The body is read (truncated) for diagnostics.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode < minErrorStatusCode {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       fmt.Sprintf("read error body: %v", err),
		}
	}

	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// HTTPStatusCode extracts the status code when err is (or wraps) an HTTPError.
func HTTPStatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
