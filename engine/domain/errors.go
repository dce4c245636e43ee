package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for parse and pipeline failures.
var (
	ErrEmptyArchive  = errors.New("archive contains no posts")
	ErrNoAccount     = errors.New("archive has no account information")
	ErrBadTimestamp  = errors.New("unparseable timestamp")
	ErrThreadCycle   = errors.New("reply chain contains a cycle")
	ErrVectorSize    = errors.New("vector size mismatch")
	ErrJobNotFound   = errors.New("import job not found")
	ErrEmptyQuery    = errors.New("empty search query")
	ErrMissingPostID = errors.New("post has no id")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
