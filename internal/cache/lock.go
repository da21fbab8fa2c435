package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultLockTTL = time.Hour

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds one lock per run kind across every replica. The TTL
// bounds how long a crashed holder can block its kind.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func lockKey(kind domain.RunKind) string {
	return keyPrefix + "lock:" + string(kind)
}

func (l *RedisLocker) TryLock(ctx context.Context, kind domain.RunKind) (func(), bool, error) {
	key := lockKey(kind)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s failed: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// the run context may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to release run lock")
		}
	}
	return release, true, nil
}
