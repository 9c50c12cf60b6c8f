// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// Authentication errors (session acquisition against the ERP)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthTimeout        = errors.New("authentication timed out")
	ErrAuthAmbiguous      = errors.New("login state could not be confirmed")
	ErrAuthCancelled      = errors.New("authentication cancelled")

	// Fetch errors (attendance endpoint)
	ErrHTTPStatus   = errors.New("unexpected http status")
	ErrNotJSONArray = errors.New("response is not a json array")
	ErrFetchTimeout = errors.New("fetch timed out")

	// Payload errors
	ErrEmptyPayload = errors.New("empty or malformed attendance payload")

	// Sync lifecycle errors
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrNeverSynced    = errors.New("no cached snapshot")

	// Persistence errors
	ErrStorage = errors.New("storage error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "session", "fetch", "sync"
	Op      string // Operation that failed, e.g., "Acquire", "Fetch"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// StatusError carries the HTTP status code of a failed attendance fetch.
type StatusError struct {
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

// Is makes StatusError match ErrHTTPStatus with errors.Is().
func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// IsAuthError reports whether the error belongs to the session-acquisition
// taxonomy (invalid credentials, timeout, ambiguous state, cancellation).
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrAuthTimeout) ||
		errors.Is(err, ErrAuthAmbiguous) ||
		errors.Is(err, ErrAuthCancelled)
}

// IsFetchError reports whether the error belongs to the fetch taxonomy.
func IsFetchError(err error) bool {
	return errors.Is(err, ErrHTTPStatus) ||
		errors.Is(err, ErrNotJSONArray) ||
		errors.Is(err, ErrFetchTimeout)
}

// IsRetryable reports whether a sync attempt may be retried. Credential and
// payload-shape failures are permanent; transport-level failures are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrHTTPStatus) ||
		errors.Is(err, ErrFetchTimeout) ||
		errors.Is(err, ErrAuthTimeout)
}

// UserGuidance maps an engine error to a short hint suitable for rendering
// to the student. The engine reports, the host application renders.
func UserGuidance(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Check your ERP username and password."
	case errors.Is(err, ErrAuthTimeout), errors.Is(err, ErrAuthAmbiguous):
		return "Session expired or could not be confirmed. Log in again."
	case errors.Is(err, ErrAuthCancelled):
		return "Login was cancelled."
	case errors.Is(err, ErrHTTPStatus), errors.Is(err, ErrFetchTimeout):
		return "Network unavailable or ERP is down. Try again later."
	case errors.Is(err, ErrNotJSONArray), errors.Is(err, ErrEmptyPayload):
		return "ERP returned no attendance data. You may be on the wrong page or not enrolled."
	case errors.Is(err, ErrSyncInProgress):
		return "A sync is already running."
	case errors.Is(err, ErrStorage):
		return "Attendance was fetched but could not be saved locally."
	default:
		return "Something went wrong. Try again."
	}
}
