package orian

import "github.com/shopspring/decimal"

// Envelope is the outer document shared by requests and received messages.
type Envelope struct {
	DataCollection DataCollection `json:"DATACOLLECTION"`
}

// DataCollection holds the entity payload.
type DataCollection struct {
	Data any `json:"DATA"`
}

const (
	CompanyTypeVendor = "VENDOR"
	DefaultUOM        = "EACH"
	OrderTypeCustomer = "CUSTOMER"
	OrderTypeInbound  = "PURCHASE"
)

// Company upserts a supplier.
type Company struct {
	Consignee     string `json:"CONSIGNEE"`
	Company       string `json:"COMPANY"`
	CompanyType   string `json:"COMPANYTYPE"`
	CompanyName   string `json:"COMPANYNAME"`
	Street1       string `json:"STREET1"`
	City          string `json:"CITY"`
	Contact1Phone string `json:"CONTACT1PHONE"`
	Contact1Email string `json:"CONTACT1EMAIL"`
}

// Sku upserts a product.
type Sku struct {
	Consignee       string          `json:"CONSIGNEE"`
	SKU             string          `json:"SKU"`
	SKUDesc         string          `json:"SKUDESC"`
	ManufacturerSKU string          `json:"MANUFACTURERSKU"`
	DefaultUOM      string          `json:"DEFAULTUOM"`
	UnitPrice       decimal.Decimal `json:"UNITPRICE"`
}

// Line is one ordered SKU of an inbound or outbound.
type Line struct {
	OrderLine   int    `json:"ORDERLINE"`
	SKU         string `json:"SKU"`
	QtyOriginal int    `json:"QTYORIGINAL"`
}

// Lines is always sent as an array, even for a single line.
type Lines struct {
	Line []Line `json:"LINE"`
}

// Inbound announces a purchase order the warehouse should receive.
type Inbound struct {
	Consignee     string `json:"CONSIGNEE"`
	OrderID       string `json:"ORDERID"`
	OrderType     string `json:"ORDERTYPE"`
	ReferenceOrd  string `json:"REFERENCEORD"`
	SourceCompany string `json:"SOURCECOMPANY"`
	CreateDate    string `json:"CREATEDATE"`
	ExpectedDate  string `json:"EXPECTEDDATE"`
	Notes         string `json:"NOTES"`
	Lines         Lines  `json:"LINES"`
}

// Contact is the delivery contact of an outbound.
type Contact struct {
	Street1       string `json:"STREET1"`
	City          string `json:"CITY"`
	Contact1Name  string `json:"CONTACT1NAME"`
	Contact2Name  string `json:"CONTACT2NAME"`
	Contact1Phone string `json:"CONTACT1PHONE"`
	Contact2Phone string `json:"CONTACT2PHONE"`
	Contact1Email string `json:"CONTACT1EMAIL"`
	Contact2Email string `json:"CONTACT2EMAIL"`
}

// ShippingDetail carries free-text delivery instructions.
type ShippingDetail struct {
	DeliveryComments string `json:"DELIVERYCOMMENTS"`
}

// Outbound asks the warehouse to ship a customer order.
type Outbound struct {
	Consignee      string         `json:"CONSIGNEE"`
	OrderID        string         `json:"ORDERID"`
	OrderType      string         `json:"ORDERTYPE"`
	ReferenceOrd   string         `json:"REFERENCEORD"`
	TargetCompany  string         `json:"TARGETCOMPANY"`
	CreateDate     string         `json:"CREATEDATE"`
	RequestedDate  string         `json:"REQUESTEDDATE"`
	Contact        Contact        `json:"CONTACT"`
	ShippingDetail ShippingDetail `json:"SHIPPINGDETAIL"`
	Lines          Lines          `json:"LINES"`
}

// DateLayout is the date format exchanged with Orian, in its local timezone.
const DateLayout = "1/2/2006 3:04:05 PM"
