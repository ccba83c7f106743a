// Package events publishes pipeline lifecycle events to subscribers outside
// the evaluator.
package events

import (
	"context"
	"errors"
	"time"

	"interview-evaluator/internal/common/metrics"
)

// Type names an event channel.
type Type string

const (
	SessionEnded             Type = "session.ended"
	EvaluationRequested      Type = "evaluation.requested"
	AgentProcessingStarted   Type = "agent.processing_started"
	AgentProcessingCompleted Type = "agent.processing_completed"
	AgentProcessingFailed    Type = "agent.processing_failed"
	EvaluationCompleted      Type = "evaluation.completed"
)

type Event struct {
	Type      Type                   `json:"event_type"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// New stamps an event with the current UTC time.
func New(t Type, sessionID string, data map[string]interface{}) Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Event{Type: t, SessionID: sessionID, Timestamp: time.Now().UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MultiPublisher delivers to every sink and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func record(sink string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EventsPublished.WithLabelValues(sink, status).Inc()
}
