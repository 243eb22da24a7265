package latch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "latch:"

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis is a Latch shared by every server instance pointing at the same
// Redis. When Redis is unreachable it grants the latch and returns the error
// so the caller can log it; correctness then rests on the storage layer.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	k := keyPrefix + key

	ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
	if err != nil {
		return noop, true, err
	}
	if !ok {
		return noop, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the request context may already be done
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, r.client, []string{k}, token).Err()
		})
	}, true, nil
}
