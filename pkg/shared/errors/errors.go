package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds shared by the analysis pipeline. Per-unit kinds are recorded
// in-band in the report; only ErrConfiguration aborts a run.
var (
	ErrUnreadableFile    = errors.New("file cannot be read")
	ErrMalformedResponse = errors.New("oracle response does not have the expected shape")
	ErrQuotaExhausted    = errors.New("oracle quota exhausted")
	ErrConfiguration     = errors.New("configuration failure")
)

// quotaStatus is the status string the Gemini API returns with HTTP 429.
const quotaStatus = "RESOURCE_EXHAUSTED"

// ConfigurationError reports a missing or invalid setting that makes the run impossible.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// APIError is a non-2xx answer from the oracle.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("oracle returned %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("oracle returned %d: %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrQuotaExhausted) match rate-limit answers.
func (e *APIError) Is(target error) bool {
	return target == ErrQuotaExhausted && e.IsQuota()
}

// IsQuota reports whether the oracle rejected the call because of its request quota.
func (e *APIError) IsQuota() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Status == quotaStatus
}

// AnalysisError is returned once every retry attempt for a unit of work failed.
type AnalysisError struct {
	Unit     string
	Attempts int
	Err      error
}

// Error implements the error interface for AnalysisError.
func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed for %s after %d attempt(s): %v", e.Unit, e.Attempts, e.Err)
}

// Unwrap exposes the last attempt's error.
func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// NewAnalysisError creates a new AnalysisError.
func NewAnalysisError(unit string, attempts int, err error) error {
	return &AnalysisError{Unit: unit, Attempts: attempts, Err: err}
}

// IsQuotaExhausted reports whether err carries a quota exhaustion signal.
func IsQuotaExhausted(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

// CommandError carries the process exit code a command wants to terminate with.
type CommandError struct {
	ExitCode int
	Err      error
}

// Error implements the error interface for CommandError.
func (e *CommandError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err with an exit code.
func NewCommandError(err error, code int) *CommandError {
	return &CommandError{ExitCode: code, Err: err}
}
