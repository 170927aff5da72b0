package githubapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors classify upstream failures for callers.
var (
	// ErrNotFound indicates the repository or resource does not exist or is hidden.
	ErrNotFound = errors.New("github: resource not found")
	// ErrForbidden indicates access is denied or the caller is rate-limited.
	ErrForbidden = errors.New("github: access forbidden")
	// ErrUnauthorized indicates the credential was rejected.
	ErrUnauthorized = errors.New("github: bad credentials")
	// ErrTransient indicates a retriable upstream failure that exhausted its retries.
	ErrTransient = errors.New("github: transient upstream failure")
)

// StatusError carries the HTTP status of an unclassified non-success response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: unexpected status %d", e.StatusCode)
}

// IsPermanent reports whether the error should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthorized)
}

func errorForStatus(statusCode int) error {
	switch statusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return &StatusError{StatusCode: statusCode}
}
