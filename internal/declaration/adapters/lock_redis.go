package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	"verdant/internal/declaration/ports"
	"verdant/pkg/platform/sentinel"
)

// RedisSubmitLocker guards submits across instances with a Redis lock.
type RedisSubmitLocker struct {
	client *redislock.Client
}

// NewRedisSubmitLocker wraps a redislock client.
func NewRedisSubmitLocker(client redislock.RedisClient) *RedisSubmitLocker {
	return &RedisSubmitLocker{client: redislock.New(client)}
}

func (l *RedisSubmitLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (ports.Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, fmt.Errorf("submit lock %s: %w", key, sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("submit lock %s: %w", key, errors.Join(sentinel.ErrUnavailable, err))
	}
	return redisLock{lock: lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		// expired before release
		return nil
	}
	return err
}
