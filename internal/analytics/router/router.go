// Package router turns logistics analytics facts into BigQuery rows.
package router

import (
	"context"
	"errors"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/benefits-logistics/internal/analytics/types"
	"github.com/angelmondragon/benefits-logistics/internal/analytics/writer"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/consume"
	"github.com/angelmondragon/benefits-logistics/pkg/outbox/payloads"
)

// ConsumerName scopes the processed-event ledger for the analytics worker.
const ConsumerName = "analytics"

// Writer delivers BigQuery rows.
type Writer interface {
	InsertStatusEvent(ctx context.Context, row types.StatusEventRow) error
	InsertReceiptLine(ctx context.Context, row types.ReceiptLineRow) error
}

type facts struct {
	writer Writer
	logg   *logger.Logger
}

// Routes registers a row builder per analytics fact.
func Routes(w Writer, logg *logger.Logger) (*consume.Router, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	f := facts{writer: w, logg: logg}
	router := consume.NewRouter()
	if err := errors.Join(
		router.On(enums.EventOrderStatusRecorded, consume.Handle(f.statusRecorded)),
		router.On(enums.EventReceiptLineRecorded, consume.Handle(f.receiptLineRecorded)),
	); err != nil {
		return nil, err
	}
	return router, nil
}

func (f facts) statusRecorded(ctx context.Context, d consume.Delivery, e *payloads.OrderStatusRecordedEvent) error {
	ctx = f.logg.WithFields(ctx, map[string]any{
		"entity_kind": e.EntityKind,
		"entity_id":   e.EntityID,
		"status":      e.Status,
	})
	raw, err := writer.EncodeJSON(d.Data)
	if err != nil {
		return err
	}
	if err := f.writer.InsertStatusEvent(ctx, types.StatusEventRow{
		EventID:        d.EventID.String(),
		OccurredAt:     d.OccurredAt,
		StatusEventID:  e.StatusEventID,
		MessageID:      nullInt(e.MessageID),
		Center:         e.Center.String(),
		EntityKind:     string(e.EntityKind),
		EntityID:       e.EntityID,
		Status:         e.Status,
		StatusAt:       e.StatusAt.UTC(),
		BecameCurrent:  e.BecameCurrent,
		PreviousStatus: nullString(e.PreviousStatus),
		ArrivalLagSecs: arrivalLag(e.StatusAt, d.OccurredAt),
		Payload:        raw,
	}); err != nil {
		return err
	}
	f.logg.Debug(ctx, "status event row buffered")
	return nil
}

func (f facts) receiptLineRecorded(ctx context.Context, d consume.Delivery, e *payloads.ReceiptLineRecordedEvent) error {
	ctx = f.logg.WithFields(ctx, map[string]any{
		"receipt_code":      e.ReceiptCode,
		"receipt_line":      e.ReceiptLine,
		"purchase_order_id": e.PurchaseOrderID,
	})
	raw, err := writer.EncodeJSON(d.Data)
	if err != nil {
		return err
	}
	if err := f.writer.InsertReceiptLine(ctx, types.ReceiptLineRow{
		EventID:             d.EventID.String(),
		OccurredAt:          d.OccurredAt,
		ReceiptLineID:       e.ReceiptLineID,
		MessageID:           nullInt(e.MessageID),
		Center:              e.Center.String(),
		ReceiptCode:         e.ReceiptCode,
		ReceiptLine:         int64(e.ReceiptLine),
		PurchaseOrderID:     e.PurchaseOrderID,
		PurchaseOrderLineID: e.PurchaseOrderLineID,
		SKU:                 e.SKU,
		QuantityReceived:    int64(e.QuantityReceived),
		ReceiptCloseDate:    e.ReceiptCloseDate.UTC(),
		Payload:             raw,
	}); err != nil {
		return err
	}
	f.logg.Debug(ctx, "receipt line row buffered")
	return nil
}

// arrivalLag is how long after the center stamped a status the platform
// recorded it. Null when either side is unknown.
func arrivalLag(statusAt, recordedAt time.Time) cbigquery.NullInt64 {
	if statusAt.IsZero() || recordedAt.IsZero() {
		return cbigquery.NullInt64{}
	}
	return cbigquery.NullInt64{Int64: int64(recordedAt.Sub(statusAt) / time.Second), Valid: true}
}

func nullInt(v *int64) cbigquery.NullInt64 {
	if v == nil {
		return cbigquery.NullInt64{}
	}
	return cbigquery.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) cbigquery.NullString {
	if v == nil {
		return cbigquery.NullString{}
	}
	return cbigquery.NullString{StringVal: *v, Valid: true}
}
