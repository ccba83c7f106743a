package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"interview-evaluator/internal/common/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fixedEvent() Event {
	return Event{
		Type:      AgentProcessingCompleted,
		SessionID: "session-1",
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Data:      map[string]interface{}{"agent_type": "coding"},
	}
}

func TestRedisPublisher_Publish(t *testing.T) {
	client, redisMock := redismock.NewClientMock()
	pub := NewRedisPublisher(client, "events", logger.NewNoOpLogger())

	e := fixedEvent()
	payload, err := json.Marshal(e)
	require.NoError(t, err)
	redisMock.ExpectPublish("events:agent.processing_completed", string(payload)).SetVal(1)

	require.NoError(t, pub.Publish(context.Background(), e))
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestRedisPublisher_PublishError(t *testing.T) {
	client, redisMock := redismock.NewClientMock()
	pub := NewRedisPublisher(client, "", logger.NewNoOpLogger())

	e := fixedEvent()
	e.Type = EvaluationCompleted
	payload, _ := json.Marshal(e)
	redisMock.ExpectPublish("events:evaluation.completed", string(payload)).SetErr(errors.New("connection refused"))

	err := pub.Publish(context.Background(), e)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluation.completed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEventJSONShape(t *testing.T) {
	data, err := json.Marshal(fixedEvent())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"event_type": "agent.processing_completed",
		"session_id": "session-1",
		"timestamp": "2026-03-01T10:00:00Z",
		"data": {"agent_type": "coding"}
	}`, string(data))
}

func TestNew_DefaultsData(t *testing.T) {
	e := New(SessionEnded, "session-9", nil)

	assert.Equal(t, SessionEnded, e.Type)
	assert.NotNil(t, e.Data)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, time.UTC, e.Timestamp.Location())
}

type MockTopic struct {
	mock.Mock
}

func (m *MockTopic) PublishToTopic(ctx context.Context, message string, attributes map[string]string) (string, error) {
	args := m.Called(ctx, message, attributes)
	return args.String(0), args.Error(1)
}

func TestSNSPublisher_Publish(t *testing.T) {
	topic := &MockTopic{}
	topic.On("PublishToTopic", mock.Anything, mock.MatchedBy(func(msg string) bool {
		var e Event
		return json.Unmarshal([]byte(msg), &e) == nil && e.SessionID == "session-1"
	}), map[string]string{
		"event_type": "agent.processing_completed",
		"session_id": "session-1",
	}).Return("msg-123", nil)

	pub := NewSNSPublisher(topic, logger.NewNoOpLogger())

	require.NoError(t, pub.Publish(context.Background(), fixedEvent()))
	topic.AssertExpectations(t)
}

func TestSNSPublisher_Error(t *testing.T) {
	topic := &MockTopic{}
	topic.On("PublishToTopic", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("throttled"))

	err := NewSNSPublisher(topic, logger.NewNoOpLogger()).Publish(context.Background(), fixedEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMultiPublisher(t *testing.T) {
	ok := &recordingPublisher{}
	broken := &recordingPublisher{err: errors.New("sink down")}
	last := &recordingPublisher{}

	err := MultiPublisher{ok, broken, last}.Publish(context.Background(), fixedEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, last.events, 1, "a failing sink must not stop delivery to later ones")
}

func TestMultiPublisher_AllSucceed(t *testing.T) {
	a, b := &recordingPublisher{}, &recordingPublisher{}
	assert.NoError(t, MultiPublisher{a, b}.Publish(context.Background(), fixedEvent()))
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), fixedEvent()))
}
