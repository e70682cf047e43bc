package redis

import (
	"context"
	"fmt"
	"time"

	"elearn-progress-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// acquireScript raises the counter to the persisted attempt count, then increments it only while
// it is below the limit. It returns -1 when the limit is reached.
var acquireScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local recorded = tonumber(ARGV[1])
if current < recorded then
  current = recorded
end
if current >= tonumber(ARGV[2]) then
  return -1
end
redis.call('SET', KEYS[1], current + 1, 'EX', ARGV[3])
return current + 1
`)

// AttemptGate is the shared app.AttemptGate used when several instances grade the same quiz.
// Counter key: quiz:{quizID}:attempts:{enrollmentID}
type AttemptGate struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptGate(client *redis.Client, ttl time.Duration) *AttemptGate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AttemptGate{client: client, ttl: ttl}
}

func (g *AttemptGate) Acquire(ctx context.Context, quizID, enrollmentID string, limit, recorded int) (func(), error) {
	if limit <= 0 {
		return func() {}, nil
	}
	key := g.key(quizID, enrollmentID)
	n, err := acquireScript.Run(ctx, g.client, []string{key}, recorded, limit, int(g.ttl.Seconds())).Int()
	if err != nil {
		return nil, fmt.Errorf("acquire attempt slot: %w", err)
	}
	if n < 0 {
		return nil, domain.ErrAttemptLimitReached
	}
	release := func() {
		_ = g.client.Decr(context.Background(), key).Err()
	}
	return release, nil
}

func (g *AttemptGate) key(quizID, enrollmentID string) string {
	return "quiz:" + quizID + ":attempts:" + enrollmentID
}
