package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"verigate/internal/income/ports"
	"verigate/pkg/platform/sentinel"
)

// releaseScript deletes the key only if it still carries our token, so a
// holder whose TTL lapsed cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a SET NX PX lock shared by every instance pointing at one Redis.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
}

func NewRedis(client redis.UniversalClient, ttl, wait time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, wait: wait}
}

// Lock acquires the lock for subject. The Redis key is namespaced with Key.
func (l *Redis) Lock(ctx context.Context, subject string) (ports.Unlock, error) {
	key := Key(subject)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w: %w", key, sentinel.ErrUnavailable, err)
		}
		if ok {
			return func(ctx context.Context) error {
				err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
				if err != nil && !errors.Is(err, redis.Nil) {
					return fmt.Errorf("release lock %s: %w", key, err)
				}
				return nil
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, sentinel.ErrLocked
		}
		if err := waitFor(ctx, pollInterval); err != nil {
			return nil, err
		}
	}
}
