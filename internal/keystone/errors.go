package keystone

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned when the backend rejects the credentials or cannot be reached.
	ErrAuthentication = errors.New("keystone authentication failed")
	// ErrCache is returned when the token cache store fails.
	ErrCache = errors.New("token cache failure")
	// ErrCatalogMalformed is returned when a backend response lacks expected fields.
	ErrCatalogMalformed = errors.New("malformed keystone response")
	// ErrReconciliation is returned when one or more corrective calls failed.
	ErrReconciliation = errors.New("endpoint reconciliation failed")
)

// APIError is a non-2xx answer from the identity backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
