package errors

import (
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeInvalidTriggerPayload ErrorCode = "INVALID_TRIGGER_PAYLOAD"
	ErrCodeDispatchFailed        ErrorCode = "DISPATCH_FAILED"
	ErrCodeEvaluationExists      ErrorCode = "EVALUATION_EXISTS"
	ErrCodePipelineRunning       ErrorCode = "PIPELINE_RUNNING"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeTelemetryReadFailed      ErrorCode = "TELEMETRY_READ_FAILED"
	ErrCodeOutputWriteFailed        ErrorCode = "OUTPUT_WRITE_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexFailed                   ErrorCode = "INDEX_FAILED"

	ErrCodeNarrativeTimeout            ErrorCode = "NARRATIVE_TIMEOUT"
	ErrCodeNarrativeProvidersExhausted ErrorCode = "NARRATIVE_PROVIDERS_EXHAUSTED"

	ErrCodeEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewInvalidTriggerPayloadError(details string) *StandardError {
	return newError(ErrCodeInvalidTriggerPayload, "Invalid session-ended payload", details, false, nil)
}

func NewDispatchFailedError(sessionID string, err error) *StandardError {
	return newError(ErrCodeDispatchFailed, "Evaluation pipeline could not be dispatched",
		fmt.Sprintf("sessionId: %s, error: %s", sessionID, err.Error()), true, err)
}

func NewEvaluationExistsError(sessionID string) *StandardError {
	return newError(ErrCodeEvaluationExists, "Session already evaluated",
		fmt.Sprintf("sessionId: %s", sessionID), false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError("RESOURCE_NOT_FOUND", fmt.Sprintf("Resource not found in %s", service), details, false, nil)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError("BUSINESS_RULE_VIOLATION", message, details, false, nil)
}

func NewAuthenticationError(details string) *StandardError {
	return newError("AUTHENTICATION_ERROR", "Authentication failed", details, false, nil)
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidTriggerPayload:         "INVALID_TRIGGER_PAYLOAD",
	ErrCodeDispatchFailed:                "DISPATCH_FAILED",
	ErrCodeEvaluationExists:              "EVALUATION_EXISTS",
	ErrCodePipelineRunning:               "PIPELINE_RUNNING",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeTelemetryReadFailed:           "TELEMETRY_READ_FAILED",
	ErrCodeOutputWriteFailed:             "OUTPUT_WRITE_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeIndexFailed:                   "INDEX_FAILED",
	ErrCodeNarrativeTimeout:              "NARRATIVE_TIMEOUT",
	ErrCodeNarrativeProvidersExhausted:   "NARRATIVE_PROVIDERS_EXHAUSTED",
	ErrCodeEventPublishFailed:            "EVENT_PUBLISH_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDispatchFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeTelemetryReadFailed,
		ErrCodeOutputWriteFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeIndexFailed,
		ErrCodeEventPublishFailed:
		return 3

	case ErrCodeNarrativeTimeout:
		return 1

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TRIGGER") || strings.Contains(codeStr, "DISPATCH") || strings.Contains(codeStr, "PIPELINE"):
		return "ORCHESTRATION"
	case strings.Contains(codeStr, "EVALUATION"):
		return "IDEMPOTENCY"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "TELEMETRY") || strings.Contains(codeStr, "OUTPUT"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NARRATIVE"):
		return "AI"
	case strings.Contains(codeStr, "EVENT"):
		return "EVENTS"
	default:
		return "OTHER"
	}
}
