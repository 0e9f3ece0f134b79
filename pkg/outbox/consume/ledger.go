package consume

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/benefits-logistics/pkg/redis"
)

// Ledger remembers which events a named consumer already handled.
type Ledger interface {
	MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Forget(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type ledgerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

var _ ledgerStore = (*redis.Client)(nil)

// RedisLedger keeps processed markers under
// bl:idempotency:evt:processed:<consumer>:<event_id> for ttl.
type RedisLedger struct {
	store ledgerStore
	ttl   time.Duration
}

func NewRedisLedger(store ledgerStore, ttl time.Duration) (*RedisLedger, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ledger ttl must be positive")
	}
	return &RedisLedger{store: store, ttl: ttl}, nil
}

// MarkProcessed claims the event for the consumer and reports whether it had
// been claimed before.
func (l *RedisLedger) MarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	fresh, err := l.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Forget drops the claim so a redelivery is handled again.
func (l *RedisLedger) Forget(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return err
	}
	return l.store.Del(ctx, key)
}

func (l *RedisLedger) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return l.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
