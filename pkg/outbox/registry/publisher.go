// Package registry decides which topic each outbox event is published on
// and checks a row is publishable before the relay sends it.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/payloads"
)

// Route is where one event type goes and which aggregates may raise it.
type Route struct {
	EventType  enums.OutboxEventType
	Topic      string
	Aggregates []enums.OutboxAggregateType

	decode func(outbox.PayloadEnvelope) (any, error)
}

func route[T any](eventType enums.OutboxEventType, topic string, aggregates ...enums.OutboxAggregateType) Route {
	return Route{
		EventType:  eventType,
		Topic:      topic,
		Aggregates: aggregates,
		decode: func(env outbox.PayloadEnvelope) (any, error) {
			payload := new(T)
			if err := env.DecodeData(payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// ResolvedEvent is a row that passed validation, with its decoded payload.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// NewEventRegistry sends work events to the logistics topic and analytics
// facts to the analytics topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	logistics, analytics := strings.TrimSpace(cfg.LogisticsTopic), strings.TrimSpace(cfg.AnalyticsTopic)
	switch {
	case logistics == "":
		return nil, errors.New("logistics topic is required")
	case analytics == "":
		return nil, errors.New("analytics topic is required")
	}

	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]Route)}
	for _, r := range []Route{
		route[payloads.PurchaseOrderApprovedEvent](enums.EventPurchaseOrderApproved, logistics, enums.AggregatePurchaseOrder),
		route[payloads.CustomerOrderReadyEvent](enums.EventCustomerOrderReady, logistics, enums.AggregateCustomerOrder),
		route[payloads.LogisticsMessageReceivedEvent](enums.EventLogisticsMessageReceived, logistics, enums.AggregateLogisticsMessage),
		route[payloads.StockSnapshotStoredEvent](enums.EventStockSnapshotStored, logistics, enums.AggregateStockSnapshot),
		route[payloads.OrderStatusRecordedEvent](enums.EventOrderStatusRecorded, analytics, enums.AggregatePurchaseOrder, enums.AggregateCustomerOrder),
		route[payloads.ReceiptLineRecordedEvent](enums.EventReceiptLineRecorded, analytics, enums.AggregateInboundReceipt),
	} {
		reg.routes[r.EventType] = r
	}
	return reg, nil
}

// Topics lists the distinct topics events are published on.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, rt := range r.routes {
		if !slices.Contains(topics, rt.Topic) {
			topics = append(topics, rt.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve validates the row and decodes its typed payload. Every failure is
// permanent: the row will never become publishable by retrying.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[event.EventType]
	if !ok {
		return nil, Unpublishable(fmt.Errorf("unsupported event type %q", event.EventType))
	}
	if !slices.Contains(rt.Aggregates, event.AggregateType) {
		return nil, Unpublishable(fmt.Errorf("%s cannot be raised by aggregate %q", event.EventType, event.AggregateType))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return nil, Unpublishable(errors.New("missing aggregate_id"))
	}
	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, Unpublishable(err)
	}
	payload, err := rt.decode(env)
	if err != nil {
		return nil, Unpublishable(fmt.Errorf("%s: %w", event.EventType, err))
	}
	return &ResolvedEvent{Route: rt, Envelope: env, Payload: payload}, nil
}

// Unpublishable marks err as a permanent publish failure.
func Unpublishable(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeMalformedMessage, err, "unpublishable outbox event")
}
