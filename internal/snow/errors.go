package snow

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the Table API. Callers should prefer the
// predicate functions (IsNotFound, IsUnauthorized, ...) over type assertions.
type APIError struct {
	operation  string
	statusCode int
	message    string
	detail     string
}

func (e *APIError) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s (%s)", e.operation, e.statusCode, e.message, e.detail)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

func newAPIError(operation string, statusCode int, message, detail string) *APIError {
	return &APIError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		detail:     detail,
	}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Message returns the error message reported by the instance.
func (e *APIError) Message() string { return e.message }

// Detail returns the optional error detail reported by the instance.
func (e *APIError) Detail() string { return e.detail }

// Operation returns a short description of the API call that failed.
func (e *APIError) Operation() string { return e.operation }

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatusCode(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an API error with HTTP 401 status.
func IsUnauthorized(err error) bool { return HasStatusCode(err, http.StatusUnauthorized) }

// IsForbidden reports whether err is an API error with HTTP 403 status.
func IsForbidden(err error) bool { return HasStatusCode(err, http.StatusForbidden) }

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}
