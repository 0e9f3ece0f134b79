package enums

import (
	"fmt"
	"strings"
)

// LogisticsCenter identifies the external warehouse a record belongs to.
type LogisticsCenter string

const (
	LogisticsCenterOrian LogisticsCenter = "ORIAN"
)

// String implements fmt.Stringer.
func (c LogisticsCenter) String() string {
	return string(c)
}

// IsValid reports whether the value is a known LogisticsCenter.
func (c LogisticsCenter) IsValid() bool {
	return c == LogisticsCenterOrian
}

// LogisticsMessageType is the declared type of a message received from the
// logistics center.
type LogisticsMessageType string

const (
	LogisticsMessageInboundReceipt    LogisticsMessageType = "INBOUND_RECEIPT"
	LogisticsMessageOrderStatusChange LogisticsMessageType = "ORDER_STATUS_CHANGE"
	LogisticsMessageShipOrder         LogisticsMessageType = "SHIP_ORDER"
)

var validLogisticsMessageTypes = []LogisticsMessageType{
	LogisticsMessageInboundReceipt,
	LogisticsMessageOrderStatusChange,
	LogisticsMessageShipOrder,
}

// String implements fmt.Stringer.
func (t LogisticsMessageType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LogisticsMessageType.
func (t LogisticsMessageType) IsValid() bool {
	for _, candidate := range validLogisticsMessageTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Slug is the URL form used by the webhook routes (inbound-receipt, ...).
func (t LogisticsMessageType) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(t)), "_", "-")
}

// ParseLogisticsMessageType accepts either the canonical value or its slug.
func ParseLogisticsMessageType(value string) (LogisticsMessageType, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), "-", "_"))
	for _, candidate := range validLogisticsMessageTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid logistics message type %q", value)
}

// StatusEntityKind identifies which entity an order status event tracks.
type StatusEntityKind string

const (
	StatusEntityPurchaseOrder StatusEntityKind = "purchase_order"
	StatusEntityCustomerOrder StatusEntityKind = "customer_order"
)

// IsValid reports whether the value is a known StatusEntityKind.
func (k StatusEntityKind) IsValid() bool {
	return k == StatusEntityPurchaseOrder || k == StatusEntityCustomerOrder
}

// Orian ORDERTYPE value for customer orders. Any other value refers to a
// purchase order (inbound).
const OrianOrderTypeCustomer = "CUSTOMER"
