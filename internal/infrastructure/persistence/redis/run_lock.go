package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token, so a
// run that outlived its TTL cannot drop a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a single-holder lock over SET NX with a TTL.
type RunLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRunLock creates a RunLock.
func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = TTLMaintenanceLock
	}
	return &RunLock{client: client, ttl: ttl}
}

// TryLock acquires key if it is free. When acquired is false another holder
// has it and release is nil.
func (l *RunLock) TryLock(ctx context.Context, key string) (release func(context.Context) error, acquired bool, err error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: lock %s: %v", ErrCacheConnection, key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
