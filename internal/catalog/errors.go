package catalog

import "fmt"

// ErrRateLimited indicates the service signalled a quota or rate-limit
// condition (HTTP 429, or a service-specific error code mapped to it).
// The retry wrapper treats it as transient; every other error is terminal.
type ErrRateLimited struct {
	Platform PlatformName
	Cause    error
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("%s: rate limited: %v", e.Platform, e.Cause)
}

func (e *ErrRateLimited) Unwrap() error { return e.Cause }

// ErrNotFound indicates the catalog has no record for the requested ID.
type ErrNotFound struct {
	Platform PlatformName
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Platform, e.ID)
}

// ErrUnavailable indicates a terminal fetch failure: network error,
// unexpected status, or a malformed response body.
type ErrUnavailable struct {
	Platform PlatformName
	Cause    error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s: unavailable: %v", e.Platform, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }
