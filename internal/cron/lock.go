package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const fallbackLockTTL = 30 * time.Minute

// Locker hands out per-job leases so that only one cron worker replica runs a
// given job at a time. The returned release func is nil when ok is false.
type Locker interface {
	TryLock(ctx context.Context, job string) (release func(context.Context) error, ok bool, err error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	LockKey(parts ...string) string
}

// RedisLocker leases jobs through SET NX with a TTL. The TTL bounds how long
// a crashed replica can block a job.
type RedisLocker struct {
	store lockStore
	scope string
	ttl   time.Duration
}

// NewRedisLocker scopes leases by environment so that staging and
// production replicas sharing one redis never contend.
func NewRedisLocker(store lockStore, env string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for cron locks")
	}
	if env == "" {
		env = "local"
	}
	if ttl <= 0 {
		ttl = fallbackLockTTL
	}
	return &RedisLocker{store: store, scope: env, ttl: ttl}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, job string) (func(context.Context) error, bool, error) {
	if job == "" {
		return nil, false, errors.New("job name is required")
	}
	key := l.store.LockKey("cron", l.scope, job)
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("lease %s: %w", job, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if _, err := l.store.ReleaseIfOwner(ctx, key, owner); err != nil {
			return fmt.Errorf("release %s: %w", job, err)
		}
		return nil
	}
	return release, true, nil
}
