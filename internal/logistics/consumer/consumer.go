// Package consumer drains the logistics topic and routes each outbox event to
// the logistics service that owns it.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/consume"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/payloads"
)

// Name scopes the processed-event ledger for this consumer.
const Name = "logistics"

type orderSender interface {
	SendPurchaseOrder(ctx context.Context, purchaseOrderID int64) error
	SendCustomerOrder(ctx context.Context, orderID int64) error
}

type messageProcessor interface {
	Process(ctx context.Context, messageID int64) error
}

type snapshotProcessor interface {
	Process(ctx context.Context, snapshotPath string, at time.Time) (*models.StockSnapshot, error)
}

type Params struct {
	Outbound  orderSender
	Messages  messageProcessor
	Snapshots snapshotProcessor
	Logger    *logger.Logger
}

// Routes sends approved purchase orders and ready customer orders to the
// center, applies received center messages and processes stored snapshots.
func Routes(params Params) (*consume.Router, error) {
	switch {
	case params.Outbound == nil:
		return nil, errors.New("outbound service is required")
	case params.Messages == nil:
		return nil, errors.New("message processor is required")
	case params.Snapshots == nil:
		return nil, errors.New("snapshot service is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	outbound, messages, snapshots, logg := params.Outbound, params.Messages, params.Snapshots, params.Logger

	router := consume.NewRouter()
	err := errors.Join(
		router.On(enums.EventPurchaseOrderApproved, consume.Handle(func(ctx context.Context, _ consume.Delivery, e *payloads.PurchaseOrderApprovedEvent) error {
			return outbound.SendPurchaseOrder(logg.WithField(ctx, "purchase_order_id", e.PurchaseOrderID), e.PurchaseOrderID)
		})),
		router.On(enums.EventCustomerOrderReady, consume.Handle(func(ctx context.Context, _ consume.Delivery, e *payloads.CustomerOrderReadyEvent) error {
			return outbound.SendCustomerOrder(logg.WithField(ctx, "order_id", e.OrderID), e.OrderID)
		})),
		router.On(enums.EventLogisticsMessageReceived, consume.Handle(func(ctx context.Context, _ consume.Delivery, e *payloads.LogisticsMessageReceivedEvent) error {
			return messages.Process(ctx, e.MessageID)
		})),
		router.On(enums.EventStockSnapshotStored, consume.Handle(func(ctx context.Context, d consume.Delivery, e *payloads.StockSnapshotStoredEvent) error {
			at := e.SnapshotAt
			if at.IsZero() {
				at = d.OccurredAt
			}
			_, err := snapshots.Process(ctx, e.Path, at)
			return err
		})),
	)
	if err != nil {
		return nil, err
	}
	return router, nil
}
