package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// StatusEventRow mirrors the logistics_status_events BigQuery schema.
type StatusEventRow struct {
	EventID        string               `bigquery:"event_id"`
	OccurredAt     time.Time            `bigquery:"occurred_at"`
	StatusEventID  int64                `bigquery:"status_event_id"`
	MessageID      cbigquery.NullInt64  `bigquery:"message_id"`
	Center         string               `bigquery:"center"`
	EntityKind     string               `bigquery:"entity_kind"`
	EntityID       int64                `bigquery:"entity_id"`
	Status         string               `bigquery:"status"`
	StatusAt       time.Time            `bigquery:"status_at"`
	BecameCurrent  bool                 `bigquery:"became_current"`
	PreviousStatus cbigquery.NullString `bigquery:"previous_status"`
	ArrivalLagSecs cbigquery.NullInt64  `bigquery:"arrival_lag_seconds"`
	Payload        cbigquery.NullJSON   `bigquery:"payload"`
}

// ReceiptLineRow mirrors the logistics_receipt_lines BigQuery schema.
type ReceiptLineRow struct {
	EventID             string              `bigquery:"event_id"`
	OccurredAt          time.Time           `bigquery:"occurred_at"`
	ReceiptLineID       int64               `bigquery:"receipt_line_id"`
	MessageID           cbigquery.NullInt64 `bigquery:"message_id"`
	Center              string              `bigquery:"center"`
	ReceiptCode         string              `bigquery:"receipt_code"`
	ReceiptLine         int64               `bigquery:"receipt_line"`
	PurchaseOrderID     int64               `bigquery:"purchase_order_id"`
	PurchaseOrderLineID int64               `bigquery:"purchase_order_line_id"`
	SKU                 string              `bigquery:"sku"`
	QuantityReceived    int64               `bigquery:"quantity_received"`
	ReceiptCloseDate    time.Time           `bigquery:"receipt_close_date"`
	Payload             cbigquery.NullJSON  `bigquery:"payload"`
}
