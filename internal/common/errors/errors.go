// Package errors provides standardized error codes for the query pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeCompletionTimeout        ErrorCode = "COMPLETION_TIMEOUT"
	ErrCodeCompletionUpstreamFailed ErrorCode = "COMPLETION_UPSTREAM_FAILED"

	ErrCodeIntentParsingFailed     ErrorCode = "INTENT_PARSING_FAILED"
	ErrCodeCommandValidationFailed ErrorCode = "COMMAND_VALIDATION_FAILED"
	ErrCodeInvalidFilterFormat     ErrorCode = "INVALID_FILTER_FORMAT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeVocabularyLoadFailed ErrorCode = "VOCABULARY_LOAD_FAILED"
	ErrCodeConfigInvalid        ErrorCode = "CONFIG_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewCompletionTimeoutError creates a completion timeout error. The caller
// falls back to the keyword parser rather than retrying.
func NewCompletionTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionTimeout,
		Message:   "Completion service timeout",
		Details:   fmt.Sprintf("call exceeded %s", timeout),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompletionUpstreamError creates an upstream failure error.
func NewCompletionUpstreamError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionUpstreamFailed,
		Message:   "Completion service error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewIntentParsingFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentParsingFailed,
		Message:   "Model reply could not be parsed into a command",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCommandValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCommandValidationFailed,
		Message:   "Command failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidFilterFormatError creates a non-retryable filter error.
func NewInvalidFilterFormatError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFilterFormat,
		Message:   "Invalid filter format",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Failed to connect to database",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Query execution failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Query execution timeout",
		Details:   fmt.Sprintf("Query exceeded %s timeout", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewVocabularyLoadFailedError(column string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVocabularyLoadFailed,
		Message:   "Failed to load column vocabulary",
		Details:   fmt.Sprintf("column: %s, error: %s", column, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfigInvalidError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Configuration is invalid",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeVocabularyLoadFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeCompletionUpstreamFailed:
		return 1

	default:
		return 0
	}
}

// IsRetryable unwraps err looking for a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// CodeOf returns the code of the first StandardError in the chain, or "".
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "COMPLETION") || strings.Contains(codeStr, "INTENT"):
		return "AI"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "VOCABULARY"):
		return "VOCABULARY"
	case strings.Contains(codeStr, "CONFIG"):
		return "CONFIG"
	default:
		return "OTHER"
	}
}
