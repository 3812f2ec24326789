package errors

import (
	"context"
	"errors"
	"time"
)

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler normalizes and logs errors that must not reach the user verbatim.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err, logs it with the stage that produced it and returns
// the StandardError. Raw driver messages stay in the log.
func (h *ErrorHandler) Handle(stage string, err error, fields map[string]interface{}) *StandardError {
	stdErr := h.normalizeError(err)
	h.logError(stage, stdErr, fields)
	return stdErr
}

func (h *ErrorHandler) normalizeError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &StandardError{
			Code:      ErrCodeQueryTimeout,
			Message:   "Operation timed out",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(stage string, stdErr *StandardError, fields map[string]interface{}) {
	out := map[string]interface{}{
		"stage":         stage,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	h.logger.Error("stage failed", out)
}
