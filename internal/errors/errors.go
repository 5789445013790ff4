package errors

import (
	stderrors "errors"
	"fmt"
)

// QuarryError is the structured error type for Quarry.
// It provides rich context for error handling, logging, and user presentation.
type QuarryError struct {
	// Code is the unique error code (e.g., "ERR_203_INDEX_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *QuarryError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QuarryError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with QuarryError.
func (e *QuarryError) Is(target error) bool {
	if t, ok := target.(*QuarryError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *QuarryError) WithDetail(key, value string) *QuarryError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *QuarryError) WithSuggestion(suggestion string) *QuarryError {
	e.Suggestion = suggestion
	return e
}

// New creates a new QuarryError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *QuarryError {
	return &QuarryError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a QuarryError from an existing error.
// The error's message becomes the QuarryError message.
func Wrap(code string, err error) *QuarryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// IndexNotFound creates the error for a reference to an unknown index name.
func IndexNotFound(name string) *QuarryError {
	return New(ErrCodeIndexNotFound, fmt.Sprintf("index %q does not exist", name), nil).
		WithDetail("index", name).
		WithSuggestion("run 'quarry list' to see available indexes")
}

// DimensionMismatch creates the fatal configuration error for embedding
// dimension disagreement between the index and the current embedder.
func DimensionMismatch(index string, want, got int) *QuarryError {
	return New(ErrCodeDimensionMismatch,
		fmt.Sprintf("index %q expects %d-dimensional embeddings, embedder produces %d", index, want, got), nil).
		WithDetail("index", index).
		WithSuggestion("recreate the index or configure an embedder with matching dimensions")
}

// StoreUnavailable creates the fatal error for an unreachable index backend.
func StoreUnavailable(operation string, cause error) *QuarryError {
	return New(ErrCodeStoreUnavailable, fmt.Sprintf("index backend unreachable during %s", operation), cause).
		WithDetail("operation", operation)
}

// IsRetryable checks if an error is retryable. Wrapped errors are
// unwrapped to find the QuarryError.
func IsRetryable(err error) bool {
	var qe *QuarryError
	if stderrors.As(err, &qe) {
		return qe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the enclosing operation.
func IsFatal(err error) bool {
	var qe *QuarryError
	if stderrors.As(err, &qe) {
		return qe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a QuarryError anywhere in the
// chain. Returns empty string if no QuarryError is present.
func GetCode(err error) string {
	var qe *QuarryError
	if stderrors.As(err, &qe) {
		return qe.Code
	}
	return ""
}
