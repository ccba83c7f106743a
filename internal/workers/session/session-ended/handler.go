package sessionended

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "interview-evaluator/internal/common/errors"
	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/common/validation"
	"interview-evaluator/internal/orchestrator"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "session-ended"

	reasonAlreadyEvaluated = "already_evaluated"
)

var schema = validation.MustCompile(inputSchema)

// Trigger starts the evaluation pipeline without waiting for it.
type Trigger interface {
	Trigger(ctx context.Context, sessionID string) error
}

type Handler struct {
	config       *Config
	trigger      Trigger
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, trigger Trigger, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		trigger:      trigger,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, job.Variables)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Handler) execute(ctx context.Context, variables string) (*Output, error) {
	input, err := parseInput(variables)
	if err != nil {
		return nil, err
	}

	err = h.trigger.Trigger(ctx, input.SessionID)
	switch {
	case err == nil:
		h.logger.Info("evaluation triggered", map[string]interface{}{"sessionId": input.SessionID})
		return &Output{Accepted: true, SessionID: input.SessionID}, nil

	case errors.Is(err, orchestrator.ErrAlreadyEvaluated):
		h.logger.Info("session already evaluated", map[string]interface{}{"sessionId": input.SessionID})
		return &Output{Accepted: false, SessionID: input.SessionID, Reason: reasonAlreadyEvaluated}, nil

	case errors.Is(err, orchestrator.ErrInvalidSession):
		return nil, apperrors.NewInvalidTriggerPayloadError(err.Error())

	default:
		return nil, apperrors.NewDispatchFailedError(input.SessionID, err)
	}
}

func parseInput(variables string) (*Input, error) {
	result, err := schema.ValidateJSON(variables)
	if err != nil {
		return nil, apperrors.NewInvalidTriggerPayloadError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidTriggerPayloadError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var raw struct {
		SessionID interface{}            `json:"sessionId"`
		Metadata  map[string]interface{} `json:"metadata"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(variables)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, apperrors.NewInvalidTriggerPayloadError(fmt.Sprintf("parse input: %v", err))
	}

	var sessionID string
	switch v := raw.SessionID.(type) {
	case string:
		sessionID = strings.TrimSpace(v)
	case json.Number:
		sessionID = v.String()
	}
	return &Input{SessionID: sessionID, Metadata: raw.Metadata}, nil
}
