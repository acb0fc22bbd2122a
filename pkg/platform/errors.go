package platform

import (
	"errors"
	"fmt"
)

// Sentinel errors for client operations.
var (
	// ErrUnauthorized indicates the token was rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response from the platform API.
type APIError struct {
	// Op is the operation that failed ("ListBuckets", "CreateBucket").
	Op string

	// StatusCode is the HTTP status.
	StatusCode int

	// Message is the server-provided message, if the body carried one.
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// Unwrap maps well-known statuses to sentinel errors for errors.Is support.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 401, 403:
		return ErrUnauthorized
	case 404:
		return ErrNotFound
	default:
		return nil
	}
}
