// Package consume is the subscriber side of the outbox: it parses relayed
// Pub/Sub messages, routes them to typed handlers and applies one ack policy
// for every worker.
package consume

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
)

// Delivery is one relayed outbox event. Version defaults to 1 and OccurredAt
// falls back to the relay's created_at attribute.
type Delivery struct {
	MessageID     string
	EventID       uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Version       int
	OccurredAt    time.Time
	Actor         *outbox.ActorRef
	Data          json.RawMessage
}

func (d Delivery) logFields() map[string]any {
	fields := map[string]any{
		"pubsub_message_id": d.MessageID,
		"event_type":        string(d.EventType),
		"aggregate_id":      d.AggregateID,
	}
	if d.EventID != uuid.Nil {
		fields["event_id"] = d.EventID.String()
	}
	if d.AggregateType != "" {
		fields["aggregate_type"] = string(d.AggregateType)
	}
	return fields
}

// Parse reads the relay attributes and the stored payload envelope. The
// returned Delivery is partially filled on error so it can still be logged.
func Parse(msg *gcppubsub.Message) (Delivery, error) {
	attr := func(key string) string { return strings.TrimSpace(msg.Attributes[key]) }
	d := Delivery{
		MessageID:   msg.ID,
		EventType:   enums.OutboxEventType(attr("event_type")),
		AggregateID: attr("aggregate_id"),
	}

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return d, fmt.Errorf("event_type: %w", err)
	}
	d.EventType = eventType
	if raw := attr("aggregate_type"); raw != "" {
		aggregateType, err := enums.ParseOutboxAggregateType(raw)
		if err != nil {
			return d, fmt.Errorf("aggregate_type: %w", err)
		}
		d.AggregateType = aggregateType
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return d, err
	}
	rawID := strings.TrimSpace(envelope.EventID)
	if rawID == "" {
		rawID = attr("event_id")
	}
	if rawID == "" {
		return d, errors.New("event id missing")
	}
	if d.EventID, err = uuid.Parse(rawID); err != nil {
		return d, fmt.Errorf("event id: %w", err)
	}

	d.Version = envelope.Version
	d.OccurredAt = envelope.OccurredAt
	if d.OccurredAt.IsZero() {
		if created, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			d.OccurredAt = created
		}
	}
	d.OccurredAt = d.OccurredAt.UTC()
	d.Actor = envelope.Actor
	d.Data = envelope.Data
	return d, nil
}
