package events

import (
	"context"
	"encoding/json"
	"fmt"

	"interview-evaluator/internal/common/logger"
)

// TopicPublisher is satisfied by aws.SNSClient.
type TopicPublisher interface {
	PublishToTopic(ctx context.Context, message string, attributes map[string]string) (string, error)
}

// SNSPublisher forwards events to an SNS topic. Subscribers filter on the
// event_type and session_id message attributes.
type SNSPublisher struct {
	topic  TopicPublisher
	logger logger.Logger
}

func NewSNSPublisher(topic TopicPublisher, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		topic:  topic,
		logger: log.WithFields(map[string]interface{}{"component": "sns-events"}),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	messageID, err := p.topic.PublishToTopic(ctx, string(payload), map[string]string{
		"event_type": string(e.Type),
		"session_id": e.SessionID,
	})
	record("sns", err)
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", e.Type, err)
	}

	p.logger.Debug("published event", map[string]interface{}{
		"eventType": e.Type,
		"messageId": messageID,
	})
	return nil
}
