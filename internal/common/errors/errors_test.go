package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	msgs   []string
	fields []map[string]interface{}
}

func (r *recordingLogger) Error(msg string, fields map[string]interface{}) {
	r.msgs = append(r.msgs, msg)
	r.fields = append(r.fields, fields)
}

func TestStandardError_Error(t *testing.T) {
	err := NewQueryTimeoutError(10 * time.Second)
	assert.Equal(t, "StandardError[QUERY_TIMEOUT]: Query execution timeout", err.Error())
	assert.True(t, err.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrCodeQueryExecutionFailed, "DATABASE"},
		{ErrCodeDatabaseConnectionFailed, "DATABASE"},
		{ErrCodeCompletionTimeout, "AI"},
		{ErrCodeIntentParsingFailed, "AI"},
		{ErrCodeInvalidFilterFormat, "VALIDATION"},
		{ErrCodeCommandValidationFailed, "VALIDATION"},
		{ErrCodeVocabularyLoadFailed, "VOCABULARY"},
		{ErrCodeConfigInvalid, "CONFIG"},
		{"SOMETHING", "OTHER"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCategory(tt.code))
		})
	}
}

func TestIsRetryable_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", NewQueryExecutionFailedError(fmt.Errorf("disk I/O error")))
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, ErrCodeQueryExecutionFailed, CodeOf(wrapped))

	assert.False(t, IsRetryable(NewInvalidFilterFormatError("bad")))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain")))
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeQueryExecutionFailed))
	assert.Equal(t, 1, GetRetryCount(ErrCodeQueryTimeout))
	assert.Equal(t, 0, GetRetryCount(ErrCodeCompletionTimeout))
}

func TestErrorHandler_Handle(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	stdErr := h.Handle("query-hrdata", fmt.Errorf("exec: %w", context.DeadlineExceeded), map[string]interface{}{
		"shape": "metric",
	})

	assert.Equal(t, ErrCodeQueryTimeout, stdErr.Code)
	require.Len(t, log.msgs, 1)
	assert.Equal(t, "query-hrdata", log.fields[0]["stage"])
	assert.Equal(t, "metric", log.fields[0]["shape"])
	assert.Equal(t, "DATABASE", log.fields[0]["errorCategory"])

	other := h.Handle("dispatch", fmt.Errorf("boom"), nil)
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), other.Code)

	passthrough := h.Handle("dispatch", NewQueryExecutionFailedError(fmt.Errorf("x")).WithMetadata("query", "metric"), nil)
	assert.Equal(t, ErrCodeQueryExecutionFailed, passthrough.Code)
	assert.Equal(t, "metric", log.fields[2]["query"])
}
