package payloads

import (
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

// PurchaseOrderApprovedEvent is emitted when a purchase order transitions
// into APPROVED.
type PurchaseOrderApprovedEvent struct {
	PurchaseOrderID int64                     `json:"purchase_order_id"`
	PreviousStatus  enums.PurchaseOrderStatus `json:"previous_status"`
	ApprovedAt      time.Time                 `json:"approved_at"`
}

// CustomerOrderReadyEvent asks the worker to send a pending customer order
// to the logistics center.
type CustomerOrderReadyEvent struct {
	OrderID int64 `json:"order_id"`
}

// LogisticsMessageReceivedEvent points at a stored raw message awaiting
// processing.
type LogisticsMessageReceivedEvent struct {
	MessageID   int64                      `json:"message_id"`
	MessageType enums.LogisticsMessageType `json:"message_type"`
	Center      enums.LogisticsCenter      `json:"center"`
}

// StockSnapshotStoredEvent points at an archived stock snapshot object.
type StockSnapshotStoredEvent struct {
	Path       string                `json:"path"`
	SnapshotAt time.Time             `json:"snapshot_at"`
	Center     enums.LogisticsCenter `json:"center"`
}

// OrderStatusRecordedEvent mirrors a newly appended order status event.
type OrderStatusRecordedEvent struct {
	StatusEventID  int64                  `json:"status_event_id"`
	MessageID      *int64                 `json:"message_id,omitempty"`
	Center         enums.LogisticsCenter  `json:"center"`
	EntityKind     enums.StatusEntityKind `json:"entity_kind"`
	EntityID       int64                  `json:"entity_id"`
	Status         string                 `json:"status"`
	StatusAt       time.Time              `json:"status_at"`
	BecameCurrent  bool                   `json:"became_current"`
	PreviousStatus *string                `json:"previous_status,omitempty"`
}

// ReceiptLineRecordedEvent mirrors an upserted inbound receipt line.
type ReceiptLineRecordedEvent struct {
	ReceiptLineID       int64                 `json:"receipt_line_id"`
	MessageID           *int64                `json:"message_id,omitempty"`
	Center              enums.LogisticsCenter `json:"center"`
	ReceiptCode         string                `json:"receipt_code"`
	ReceiptLine         int                   `json:"receipt_line"`
	PurchaseOrderID     int64                 `json:"purchase_order_id"`
	PurchaseOrderLineID int64                 `json:"purchase_order_line_id"`
	SKU                 string                `json:"sku"`
	QuantityReceived    int                   `json:"quantity_received"`
	ReceiptCloseDate    time.Time             `json:"receipt_close_date"`
}
