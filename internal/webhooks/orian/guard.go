// Package orianwebhook suppresses duplicate deliveries of the same logistics
// center message.
package orianwebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/redis"
)

const scope = "orian-webhook"

// DeliveryGuard marks a (type, body) pair as seen for ttl. The center retries
// on timeouts, so a second identical delivery inside the window is dropped.
type DeliveryGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewDeliveryGuard(store redis.IdempotencyStore, ttl time.Duration) (*DeliveryGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &DeliveryGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark reports whether the delivery was already seen.
func (g *DeliveryGuard) CheckAndMark(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) (bool, error) {
	key := g.store.IdempotencyKey(scope, Fingerprint(messageType, body))
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set delivery key: %w", err)
	}
	return !set, nil
}

// Release forgets a delivery so the center's retry is accepted.
func (g *DeliveryGuard) Release(ctx context.Context, messageType enums.LogisticsMessageType, body []byte) error {
	return g.store.Del(ctx, g.store.IdempotencyKey(scope, Fingerprint(messageType, body)))
}

// Fingerprint is the hex sha256 of the message type and raw body.
func Fingerprint(messageType enums.LogisticsMessageType, body []byte) string {
	h := sha256.New()
	h.Write([]byte(messageType))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
