package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeDispatchFailed, 3},
		{ErrCodeOutputWriteFailed, 3},
		{ErrCodeNarrativeTimeout, 1},
		{ErrCodeEvaluationExists, 0},
		{ErrCodeInvalidTriggerPayload, 0},
		{"SOMETHING_ELSE", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetRetryCount(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewDispatchFailedError("sess-1", fmt.Errorf("queue full"))
	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "DISPATCH_FAILED", bpmnErr.Code)
	assert.True(t, bpmnErr.Retryable)
	assert.Equal(t, 3, bpmnErr.Retries)
	assert.Contains(t, bpmnErr.Details, "sess-1")

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "DISPATCH_FAILED", vars["errorCode"])
	assert.Equal(t, "DISPATCH_FAILED", vars["originalErrorCode"])
}

func TestConvertToBPMNError_NonRetryableHasNoRetries(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewEvaluationExistsError("sess-1"))
	assert.False(t, bpmnErr.Retryable)
	assert.Equal(t, 0, bpmnErr.Retries)
}

func TestNormalize(t *testing.T) {
	cause := stderrors.New("boom")
	wrapped := fmt.Errorf("trigger: %w", NewDispatchFailedError("s", cause))

	stdErr := Normalize(wrapped)
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeDispatchFailed, stdErr.Code)
	assert.True(t, stderrors.Is(stdErr, cause))

	plain := Normalize(stderrors.New("plain"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), plain.Code)
	assert.Equal(t, "plain", plain.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "ORCHESTRATION", GetErrorCategory(ErrCodeDispatchFailed))
	assert.Equal(t, "IDEMPOTENCY", GetErrorCategory(ErrCodeEvaluationExists))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeTelemetryReadFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeNarrativeProvidersExhausted))
	assert.Equal(t, "EVENTS", GetErrorCategory(ErrCodeEventPublishFailed))
	assert.Equal(t, "OTHER", GetErrorCategory("UNKNOWN"))
}
