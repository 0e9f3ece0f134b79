package models

import (
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

// LogisticsCenterMessage is a raw message received from the logistics
// center, stored before it is interpreted so it can be replayed.
type LogisticsCenterMessage struct {
	ID              int64                      `gorm:"column:id;primaryKey;autoIncrement"`
	Center          enums.LogisticsCenter      `gorm:"column:center;not null"`
	MessageType     enums.LogisticsMessageType `gorm:"column:message_type;not null"`
	RawBody         string                     `gorm:"column:raw_body;type:text;not null"`
	Attempts        int                        `gorm:"column:attempts;not null;default:0"`
	ProcessedAt     *time.Time                 `gorm:"column:processed_at"`
	ProcessingError *string                    `gorm:"column:processing_error"`
	ErrorCode       *string                    `gorm:"column:error_code"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

// InboundReceipt is the logistics center's record of goods received,
// unique per receipt code.
type InboundReceipt struct {
	ID               int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	Center           enums.LogisticsCenter `gorm:"column:center;not null;uniqueIndex:inbound_receipts_center_code_key"`
	ReceiptCode      string                `gorm:"column:receipt_code;not null;uniqueIndex:inbound_receipts_center_code_key"`
	ReceiptStartDate time.Time             `gorm:"column:receipt_start_date;not null"`
	ReceiptCloseDate time.Time             `gorm:"column:receipt_close_date;not null"`
	Lines            []InboundReceiptLine  `gorm:"foreignKey:ReceiptID"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// InboundReceiptLine is keyed by (receipt, line number).
type InboundReceiptLine struct {
	ID                       int64     `gorm:"column:id;primaryKey;autoIncrement"`
	LogisticsCenterMessageID *int64    `gorm:"column:logistics_center_message_id"`
	ReceiptID                int64     `gorm:"column:receipt_id;not null;uniqueIndex:inbound_receipt_lines_receipt_line_key"`
	ReceiptLine              int       `gorm:"column:receipt_line;not null;uniqueIndex:inbound_receipt_lines_receipt_line_key"`
	PurchaseOrderLineID      int64     `gorm:"column:purchase_order_line_id;not null"`
	QuantityReceived         int       `gorm:"column:quantity_received;not null"`
	CreatedAt                time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderStatusEvent is an append-only status report for a purchase order or a
// customer order. (entity, status, status time) is unique.
type OrderStatusEvent struct {
	ID                       int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	LogisticsCenterMessageID *int64                 `gorm:"column:logistics_center_message_id"`
	Center                   enums.LogisticsCenter  `gorm:"column:center;not null"`
	EntityKind               enums.StatusEntityKind `gorm:"column:entity_kind;not null;uniqueIndex:order_status_events_entity_status_time_key"`
	EntityID                 int64                  `gorm:"column:entity_id;not null;uniqueIndex:order_status_events_entity_status_time_key"`
	Status                   string                 `gorm:"column:status;not null;uniqueIndex:order_status_events_entity_status_time_key"`
	StatusDateTime           time.Time              `gorm:"column:status_date_time;not null;uniqueIndex:order_status_events_entity_status_time_key"`
	CreatedAt                time.Time              `gorm:"column:created_at;autoCreateTime"`
}

// StockSnapshot is a point-in-time stock report from the logistics center.
type StockSnapshot struct {
	ID                int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	Center            enums.LogisticsCenter `gorm:"column:center;not null;uniqueIndex:stock_snapshots_center_time_key"`
	SnapshotDateTime  time.Time             `gorm:"column:snapshot_date_time;not null;uniqueIndex:stock_snapshots_center_time_key"`
	SnapshotFilePath  string                `gorm:"column:snapshot_file_path;not null"`
	ProcessedDateTime time.Time             `gorm:"column:processed_date_time;not null"`
	Lines             []StockSnapshotLine   `gorm:"foreignKey:StockSnapshotID"`
}

// StockSnapshotLine is keyed by (snapshot, sku).
type StockSnapshotLine struct {
	ID              int64  `gorm:"column:id;primaryKey;autoIncrement"`
	StockSnapshotID int64  `gorm:"column:stock_snapshot_id;not null;uniqueIndex:stock_snapshot_lines_snapshot_sku_key"`
	SKU             string `gorm:"column:sku;not null;uniqueIndex:stock_snapshot_lines_snapshot_sku_key"`
	Quantity        int    `gorm:"column:quantity;not null"`
}
