package enums

import (
	"fmt"
	"strings"
)

// PurchaseOrderStatus is the procurement lifecycle of a purchase order.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusPending        PurchaseOrderStatus = "PENDING"
	PurchaseOrderStatusSentToSupplier PurchaseOrderStatus = "SENT_TO_SUPPLIER"
	PurchaseOrderStatusApproved       PurchaseOrderStatus = "APPROVED"
	PurchaseOrderStatusCancelled      PurchaseOrderStatus = "CANCELLED"
)

var validPurchaseOrderStatuses = []PurchaseOrderStatus{
	PurchaseOrderStatusPending,
	PurchaseOrderStatusSentToSupplier,
	PurchaseOrderStatusApproved,
	PurchaseOrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PurchaseOrderStatus.
func (s PurchaseOrderStatus) IsValid() bool {
	for _, candidate := range validPurchaseOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePurchaseOrderStatus converts raw input into a PurchaseOrderStatus.
func ParsePurchaseOrderStatus(value string) (PurchaseOrderStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPurchaseOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase order status %q", value)
}
