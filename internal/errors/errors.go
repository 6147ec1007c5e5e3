package errors

import (
	"errors"
	"fmt"
)

// Custom error types for the URL shortener application.
// Handlers map these kinds to HTTP status codes, the CLI maps them to messages.

// ErrInvalidInput is the kind shared by every validation failure.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidURL is returned when the target URL is missing or malformed
var ErrInvalidURL = errors.New("invalid URL format")

// ErrInvalidShortCode is returned when the short code format is invalid
var ErrInvalidShortCode = errors.New("code must be 6-8 alphanumeric characters")

// ErrInvalidPagination is returned for an out-of-range offset or limit
var ErrInvalidPagination = errors.New("invalid pagination parameters")

// ErrShortCodeNotFound is returned when a short code doesn't exist in the database
var ErrShortCodeNotFound = errors.New("short code not found")

// ErrShortCodeTaken is returned when a code is already assigned to another link,
// either by the existence check or by the store's unique constraint.
var ErrShortCodeTaken = errors.New("code already exists")

// ErrShortCodeGenerationFailed is returned when we can't generate a unique short code
var ErrShortCodeGenerationFailed = errors.New("failed to generate unique short code")

// ErrDatabaseConnection is returned when the store is unreachable or an
// operation ran past its deadline.
var ErrDatabaseConnection = errors.New("database connection failed")

// ErrValidationFailed describes which input was rejected and why.
// It matches both ErrInvalidInput and its specific cause with errors.Is.
type ErrValidationFailed struct {
	Field  string
	Reason string
	Err    error
}

func (e ErrValidationFailed) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ErrValidationFailed) Unwrap() []error {
	return []error{ErrInvalidInput, e.Err}
}

// ErrURLCheckFailed is returned when URL health check fails
type ErrURLCheckFailed struct {
	URL    string
	Reason string
}

func (e ErrURLCheckFailed) Error() string {
	return fmt.Sprintf("failed to check URL %s: %s", e.URL, e.Reason)
}

// ErrConfigLoad is returned when configuration loading fails
type ErrConfigLoad struct {
	Path   string
	Reason string
}

func (e ErrConfigLoad) Error() string {
	return fmt.Sprintf("failed to load config from %s: %s", e.Path, e.Reason)
}

// Unavailable wraps err so that it matches ErrDatabaseConnection.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrDatabaseConnection, err)
}
