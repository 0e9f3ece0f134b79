package enums

// CustomerOrderStatus is the platform-side lifecycle of an employee order.
type CustomerOrderStatus string

const (
	CustomerOrderStatusIncomplete           CustomerOrderStatus = "INCOMPLETE"
	CustomerOrderStatusPending              CustomerOrderStatus = "PENDING"
	CustomerOrderStatusCancelled            CustomerOrderStatus = "CANCELLED"
	CustomerOrderStatusSentToLogisticCenter CustomerOrderStatus = "SENT_TO_LOGISTIC_CENTER"
)

// String implements fmt.Stringer.
func (s CustomerOrderStatus) String() string {
	return string(s)
}

// DeliveryLocation is an employee group's delivery policy.
type DeliveryLocation string

const (
	DeliveryLocationToHome   DeliveryLocation = "ToHome"
	DeliveryLocationToOffice DeliveryLocation = "ToOffice"
)

// IsOffice reports whether orders ship to the organization's office.
func (d DeliveryLocation) IsOffice() bool {
	return d == DeliveryLocationToOffice
}
