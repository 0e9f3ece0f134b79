package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregatePurchaseOrder    OutboxAggregateType = "purchase_order"
	AggregateCustomerOrder    OutboxAggregateType = "customer_order"
	AggregateLogisticsMessage OutboxAggregateType = "logistics_message"
	AggregateStockSnapshot    OutboxAggregateType = "stock_snapshot"
	AggregateInboundReceipt   OutboxAggregateType = "inbound_receipt"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchaseOrder,
	AggregateCustomerOrder,
	AggregateLogisticsMessage,
	AggregateStockSnapshot,
	AggregateInboundReceipt,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventPurchaseOrderApproved    OutboxEventType = "purchase_order_approved"
	EventCustomerOrderReady       OutboxEventType = "customer_order_ready"
	EventLogisticsMessageReceived OutboxEventType = "logistics_message_received"
	EventStockSnapshotStored      OutboxEventType = "stock_snapshot_stored"
	EventOrderStatusRecorded      OutboxEventType = "order_status_recorded"
	EventReceiptLineRecorded      OutboxEventType = "receipt_line_recorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseOrderApproved,
	EventCustomerOrderReady,
	EventLogisticsMessageReceived,
	EventStockSnapshotStored,
	EventOrderStatusRecorded,
	EventReceiptLineRecorded,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsAnalytics reports whether the event feeds the analytics pipeline.
func (e OutboxEventType) IsAnalytics() bool {
	return e == EventOrderStatusRecorded || e == EventReceiptLineRecorded
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
