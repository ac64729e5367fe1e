package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrScorerUnavailable means the external scorer cannot be reached at all
// (no executable, circuit open, or not configured). Callers fall back to local scoring.
var ErrScorerUnavailable = errors.New("external scorer unavailable")

// ScoringProcessError reports a scorer run that exited non-zero or produced
// unusable output.
type ScoringProcessError struct {
	ExitCode int
	Stderr   string
	Reason   string
	Err      error
}

// Error implements the error interface
func (e *ScoringProcessError) Error() string {
	var b strings.Builder
	b.WriteString("scoring process failed")
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *ScoringProcessError) Unwrap() error {
	return e.Err
}

// ScoringTimeoutError reports a scorer run that did not finish within its deadline.
type ScoringTimeoutError struct {
	Timeout time.Duration
	Stderr  string
}

// Error implements the error interface
func (e *ScoringTimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("scoring process timed out after %s", e.Timeout)
	}
	return "scoring process timed out"
}

// IsScoringFailure reports whether err is a process or timeout failure of the scorer.
func IsScoringFailure(err error) bool {
	var procErr *ScoringProcessError
	var timeoutErr *ScoringTimeoutError
	return errors.As(err, &procErr) || errors.As(err, &timeoutErr)
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
