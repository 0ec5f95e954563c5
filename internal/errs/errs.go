// Package errs defines the typed errors providers raise at the opaque
// boundary. "No match found" is deliberately not an error: orchestration
// treats it as a normal empty outcome.
package errs

import (
	"errors"
	"fmt"
)

// NotAuthenticatedError means a primary provider needs a login the user has
// not completed. Surfaced as a notification; the request still returns a
// best-effort result.
type NotAuthenticatedError struct {
	Provider string
}

func (e *NotAuthenticatedError) Error() string {
	return fmt.Sprintf("%s: user is not authenticated", e.Provider)
}

// NewNotAuthenticated creates a NotAuthenticatedError for the provider.
func NewNotAuthenticated(provider string) *NotAuthenticatedError {
	return &NotAuthenticatedError{Provider: provider}
}

// IsNotAuthenticated reports whether err is a NotAuthenticatedError, wrapped
// or not.
func IsNotAuthenticated(err error) bool {
	var target *NotAuthenticatedError
	return errors.As(err, &target)
}

// ProviderUnavailableError is a transient fetch failure from a provider
// endpoint. Retried only by moving through the fallback chain, never in a
// tight loop against the same endpoint.
type ProviderUnavailableError struct {
	Provider string
	URL      string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable (%s): %v", e.Provider, e.URL, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// NewProviderUnavailable wraps a transport error with provider context.
func NewProviderUnavailable(provider, url string, err error) *ProviderUnavailableError {
	return &ProviderUnavailableError{Provider: provider, URL: url, Err: err}
}

// IsProviderUnavailable reports whether err is a ProviderUnavailableError.
func IsProviderUnavailable(err error) bool {
	var target *ProviderUnavailableError
	return errors.As(err, &target)
}

// ParseError means a fetched page lacked the expected structure. The caller
// treats it as "no data this round" and may schedule a background re-fetch.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed for %s: %s", e.URL, e.Reason)
}

// NewParseError creates a ParseError for the page.
func NewParseError(url, reason string) *ParseError {
	return &ParseError{URL: url, Reason: reason}
}

// IsParseError reports whether err is a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// CacheCorruptionError means an on-disk cache entry failed to deserialize in
// every known format. The entry is treated as absent.
type CacheCorruptionError struct {
	Path string
	Err  error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("cache entry %s is corrupt: %v", e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// NewCacheCorruption wraps a deserialization failure with the entry path.
func NewCacheCorruption(path string, err error) *CacheCorruptionError {
	return &CacheCorruptionError{Path: path, Err: err}
}

// IsCacheCorruption reports whether err is a CacheCorruptionError.
func IsCacheCorruption(err error) bool {
	var target *CacheCorruptionError
	return errors.As(err, &target)
}
