package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/admitsync/admitsync/internal/domain"
)

const (
	runLockKey = "admitsync:run-lock"
	// generous ceiling for one full run; expiry only matters if the process
	// dies without releasing
	runLockTTL = 2 * time.Hour
)

// RedisRunLock serializes sync runs across processes with a SET NX lease.
type RedisRunLock struct {
	rdb *redis.Client
}

func NewRedisRunLock(rdb *redis.Client) *RedisRunLock {
	return &RedisRunLock{rdb: rdb}
}

func (l *RedisRunLock) Acquire(ctx context.Context) error {
	ok, err := l.rdb.SetNX(ctx, runLockKey, time.Now().Format(time.RFC3339), runLockTTL).Result()
	if err != nil {
		return errors.Wrap(err, "failed to acquire run lock")
	}
	if !ok {
		return domain.ErrRunBusy
	}
	return nil
}

func (l *RedisRunLock) Release(ctx context.Context) {
	l.rdb.Del(ctx, runLockKey)
}
