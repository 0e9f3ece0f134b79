package consume

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type keyStore struct {
	keys    map[string]time.Duration
	deleted []string
	err     error
}

func (k *keyStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if k.err != nil {
		return false, k.err
	}
	if _, ok := k.keys[key]; ok {
		return false, nil
	}
	k.keys[key] = ttl
	return true, nil
}

func (k *keyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(k.keys, key)
		k.deleted = append(k.deleted, key)
	}
	return nil
}

func (k *keyStore) IdempotencyKey(scope, id string) string {
	return "bl:idempotency:" + scope + ":" + id
}

func TestRedisLedgerMarksPerConsumer(t *testing.T) {
	store := &keyStore{keys: map[string]time.Duration{}}
	ledger, err := NewRedisLedger(store, 72*time.Hour)
	require.NoError(t, err)
	id := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	seen, err := ledger.MarkProcessed(context.Background(), "logistics", id)
	require.NoError(t, err)
	require.False(t, seen)
	require.Equal(t, 72*time.Hour, store.keys["bl:idempotency:evt:processed:logistics:"+id.String()])

	seen, err = ledger.MarkProcessed(context.Background(), "logistics", id)
	require.NoError(t, err)
	require.True(t, seen)

	seen, err = ledger.MarkProcessed(context.Background(), "analytics", id)
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, ledger.Forget(context.Background(), "logistics", id))
	require.Equal(t, []string{"bl:idempotency:evt:processed:logistics:" + id.String()}, store.deleted)
	seen, err = ledger.MarkProcessed(context.Background(), "logistics", id)
	require.NoError(t, err)
	require.False(t, seen)
}

func TestRedisLedgerValidation(t *testing.T) {
	_, err := NewRedisLedger(nil, time.Hour)
	require.Error(t, err)
	_, err = NewRedisLedger(&keyStore{}, 0)
	require.Error(t, err)

	store := &keyStore{keys: map[string]time.Duration{}, err: errors.New("redis down")}
	ledger, err := NewRedisLedger(store, time.Hour)
	require.NoError(t, err)

	_, err = ledger.MarkProcessed(context.Background(), "", uuid.New())
	require.ErrorContains(t, err, "consumer name")
	_, err = ledger.MarkProcessed(context.Background(), "logistics", uuid.Nil)
	require.ErrorContains(t, err, "event id")
	_, err = ledger.MarkProcessed(context.Background(), "logistics", uuid.New())
	require.EqualError(t, err, "redis down")
}

func ExampleRedisLedger_MarkProcessed() {
	ledger, _ := NewRedisLedger(&keyStore{keys: map[string]time.Duration{}}, 24*time.Hour)
	id := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")
	for range 2 {
		seen, _ := ledger.MarkProcessed(context.Background(), "logistics", id)
		fmt.Println(seen)
	}
	// Output:
	// false
	// true
}
