package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrGuardHeld = errors.New("PIPELINE_RUNNING")

const guardKeyPrefix = "pipeline:running:"

// releaseScript deletes the key only if it still carries our token, so an
// expired lease cannot remove a newer holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunGuard is a per-session Redis lock that keeps two pipelines for the
// same session from running at once.
type RunGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Lease is a held guard.
type Lease struct {
	guard *RunGuard
	key   string
	token string
}

func NewRunGuard(client redis.UniversalClient, ttl time.Duration) *RunGuard {
	return &RunGuard{client: client, ttl: ttl}
}

// Acquire takes the session lock for the guard's TTL. It returns
// ErrGuardHeld if another run holds it.
func (g *RunGuard) Acquire(ctx context.Context, sessionID string) (*Lease, error) {
	key := guardKeyPrefix + sessionID
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run guard: %w", err)
	}
	if !ok {
		return nil, ErrGuardHeld
	}
	return &Lease{guard: g, key: key, token: token}, nil
}

// Release drops the lock if this lease still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.guard.client, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release run guard: %w", err)
	}
	return nil
}
