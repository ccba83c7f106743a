package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"interview-evaluator/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		RequestTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testClient()
	calls := 0

	result, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, stderrors.New("rpc error: code = Unavailable")
		}
		return "ok", nil
	}, "publish")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	c := testClient()
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, stderrors.New("message already exists")
	}, "publish")

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrorCode("BUSINESS_RULE_VIOLATION"), stdErr.Code)
}

func TestExecuteWithRetry_MapsTimeouts(t *testing.T) {
	c := testClient()

	_, err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, stderrors.New("context deadline exceeded")
	}, "publish")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorCode("TIMEOUT_ERROR"), errors.Normalize(err).Code)
}

func TestExecuteWithRetry_HonoursCancellation(t *testing.T) {
	c := testClient()
	c.config.RetryConfig.BaseDelay = time.Second
	c.config.RetryConfig.MaxDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, stderrors.New("connection refused")
	}, "publish")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
