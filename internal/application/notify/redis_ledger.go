package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-certwatch/internal/shared/constants"
	"github.com/redis/go-redis/v9"
)

// RedisLedger shares dedup state between several certwatch processes.
type RedisLedger struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisLedger wraps an existing client.
func NewRedisLedger(client redis.Cmdable, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = constants.DedupTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

// DialRedisLedger connects to addr and verifies the connection.
func DialRedisLedger(ctx context.Context, addr string, ttl time.Duration) (*RedisLedger, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return NewRedisLedger(client, ttl), client, nil
}

func (l *RedisLedger) Seen(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Mark claims key with SET NX EX. A key that already exists is not an error.
func (l *RedisLedger) Mark(ctx context.Context, key string) error {
	if err := l.client.SetNX(ctx, key, 1, l.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}
