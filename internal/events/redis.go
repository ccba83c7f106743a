package events

import (
	"context"
	"encoding/json"
	"fmt"

	"interview-evaluator/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes each event as JSON on "<prefix>:<type>".
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
	logger logger.Logger
}

func NewRedisPublisher(client redis.UniversalClient, prefix string, log logger.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = "events"
	}
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		logger: log.WithFields(map[string]interface{}{"component": "redis-events"}),
	}
}

func (p *RedisPublisher) Channel(t Type) string {
	return p.prefix + ":" + string(t)
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.client.Publish(ctx, p.Channel(e.Type), string(payload)).Err()
	record("redis", err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}

	p.logger.Debug("published event", map[string]interface{}{
		"eventType": e.Type,
		"sessionId": e.SessionID,
	})
	return nil
}
