// Package base holds the contract every scoring worker implements and the
// Run wrapper that turns any worker failure into a failed output.
package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/common/metrics"
	"interview-evaluator/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrNoOutput = errors.New("WORKER_NO_OUTPUT")

// Input is the immutable dispatch payload handed to a worker.
type Input struct {
	SessionID string                 `json:"sessionId"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Worker scores one modality of a session.
type Worker interface {
	Name() models.WorkerKind
	Process(ctx context.Context, in Input) (*models.WorkerOutput, error)
}

// Run executes w and always returns exactly one output. Errors and panics
// from Process become a failed output with no score.
func Run(ctx context.Context, w Worker, in Input, log logger.Logger) (out *models.WorkerOutput) {
	kind := w.Name()
	// Callers already scope log to the session.
	log = log.WithFields(map[string]interface{}{"workerKind": kind.String()})

	ctx, span := otel.Tracer("interview-evaluator/workers").Start(ctx, "worker."+kind.String())
	span.SetAttributes(attribute.String("session.id", in.SessionID))
	defer span.End()

	startedAt := time.Now().UTC()

	defer func() {
		if r := recover(); r != nil {
			out = failedOutput(kind, in.SessionID, startedAt, fmt.Errorf("panic: %v", r))
		}

		metrics.WorkerRuns.WithLabelValues(kind.String(), string(out.Status)).Inc()
		metrics.WorkerDuration.WithLabelValues(kind.String()).Observe(out.CompletedAt.Sub(startedAt).Seconds())

		if out.Status == models.StatusFailed {
			span.SetStatus(codes.Error, *out.ErrorMessage)
			log.Error("worker failed", map[string]interface{}{"error": *out.ErrorMessage})
			return
		}
		log.Info("worker completed", map[string]interface{}{
			"score":     *out.Score,
			"flagCount": len(out.Flags),
		})
	}()

	result, err := w.Process(ctx, in)
	if err == nil && result == nil {
		err = ErrNoOutput
	}
	if err != nil {
		return failedOutput(kind, in.SessionID, startedAt, err)
	}

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	result.WorkerKind = kind
	result.SessionID = in.SessionID
	result.StartedAt = startedAt
	result.CompletedAt = time.Now().UTC()
	result.Status = models.StatusCompleted
	result.ErrorMessage = nil

	score := 0.0
	if result.Score != nil {
		score = Clamp(*result.Score)
	}
	result.Score = &score

	if result.Findings == nil {
		result.Findings = map[string]interface{}{}
	}
	if result.Flags == nil {
		result.Flags = []models.Flag{}
	}

	return result
}

func failedOutput(kind models.WorkerKind, sessionID string, startedAt time.Time, err error) *models.WorkerOutput {
	msg := err.Error()
	return &models.WorkerOutput{
		ID:           uuid.NewString(),
		WorkerKind:   kind,
		SessionID:    sessionID,
		Findings:     map[string]interface{}{},
		Flags:        []models.Flag{},
		StartedAt:    startedAt,
		CompletedAt:  time.Now().UTC(),
		Status:       models.StatusFailed,
		ErrorMessage: &msg,
	}
}
