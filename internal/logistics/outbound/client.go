// Package outbound pushes suppliers, products, purchase orders and customer
// orders to the logistics center.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/benefits-logistics/internal/address"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/ids"
	"github.com/angelmondragon/benefits-logistics/internal/logistics/messages"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/metrics"
	"github.com/angelmondragon/benefits-logistics/pkg/orian"
)

// DummyCustomerID is the platform id of the placeholder customer company
// every outbound is addressed to.
const DummyCustomerID int64 = -999

type poster interface {
	Post(ctx context.Context, endpoint orian.Endpoint, data any) (orian.Result, error)
}

// Syncer submits single upserts. A rejected request is reported through the
// returned Result; only transport failures are errors.
type Syncer interface {
	SyncSupplier(ctx context.Context, supplier *models.Supplier) (orian.Result, error)
	SyncProduct(ctx context.Context, product *models.Product) (orian.Result, error)
	SyncInbound(ctx context.Context, po *models.PurchaseOrder, asOf time.Time) (orian.Result, error)
	SyncOutbound(ctx context.Context, order *models.CustomerOrder, asOf time.Time) (orian.Result, error)
}

// ClientParams wires a Client.
type ClientParams struct {
	Orian     poster
	Codec     ids.Codec
	Consignee string
	Location  *time.Location
	Metrics   *metrics.LogisticsMetrics
	Logger    *logger.Logger
}

// Client builds the Orian payloads for platform entities.
type Client struct {
	orian     poster
	codec     ids.Codec
	consignee string
	loc       *time.Location
	metrics   *metrics.LogisticsMetrics
	logg      *logger.Logger
}

// NewClient validates params and returns a Client.
func NewClient(params ClientParams) (*Client, error) {
	if params.Orian == nil {
		return nil, errors.New("orian client is required")
	}
	if params.Consignee == "" {
		return nil, errors.New("consignee is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		orian:     params.Orian,
		codec:     params.Codec,
		consignee: params.Consignee,
		loc:       loc,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (c *Client) SyncSupplier(ctx context.Context, supplier *models.Supplier) (orian.Result, error) {
	if supplier == nil {
		return orian.Result{}, errors.New("supplier is required")
	}
	return c.post(ctx, orian.EndpointCompany, c.CompanyPayload(supplier))
}

func (c *Client) SyncProduct(ctx context.Context, product *models.Product) (orian.Result, error) {
	if product == nil {
		return orian.Result{}, errors.New("product is required")
	}
	return c.post(ctx, orian.EndpointSku, c.SkuPayload(product))
}

func (c *Client) SyncInbound(ctx context.Context, po *models.PurchaseOrder, asOf time.Time) (orian.Result, error) {
	if po == nil {
		return orian.Result{}, errors.New("purchase order is required")
	}
	return c.post(ctx, orian.EndpointInbound, c.InboundPayload(po, asOf))
}

func (c *Client) SyncOutbound(ctx context.Context, order *models.CustomerOrder, asOf time.Time) (orian.Result, error) {
	if order == nil {
		return orian.Result{}, errors.New("customer order is required")
	}
	return c.post(ctx, orian.EndpointOutbound, c.OutboundPayload(order, asOf))
}

func (c *Client) post(ctx context.Context, endpoint orian.Endpoint, data any) (orian.Result, error) {
	ctx = c.logg.WithField(ctx, "orian_endpoint", string(endpoint))
	result, err := c.orian.Post(ctx, endpoint, data)
	switch {
	case err != nil:
		c.metrics.IncSyncRequest(string(endpoint), metrics.SyncOutcomeTransportFailure)
		c.logg.Error(ctx, "logistics center request failed", err)
	case !result.BusinessOK:
		c.metrics.IncSyncRequest(string(endpoint), metrics.SyncOutcomeBusinessFailure)
		ctx = c.logg.WithFields(ctx, map[string]any{
			"orian_error_code":    result.ErrorCode,
			"orian_error_message": result.ErrorMessage,
		})
		c.logg.Warn(ctx, "logistics center rejected request")
	default:
		c.metrics.IncSyncRequest(string(endpoint), metrics.SyncOutcomeOK)
	}
	return result, err
}

// CompanyPayload maps a supplier to a vendor company.
func (c *Client) CompanyPayload(supplier *models.Supplier) orian.Company {
	return orian.Company{
		Consignee:     c.consignee,
		Company:       c.codec.Encode(supplier.ID),
		CompanyType:   orian.CompanyTypeVendor,
		CompanyName:   supplier.Name,
		Street1:       address.StreetLine(supplier.Street, supplier.StreetNumber, ""),
		City:          supplier.City,
		Contact1Phone: supplier.PhoneNumber,
		Contact1Email: supplier.Email,
	}
}

// SkuPayload maps a product to a SKU.
func (c *Client) SkuPayload(product *models.Product) orian.Sku {
	return orian.Sku{
		Consignee:       c.consignee,
		SKU:             product.SKU,
		SKUDesc:         product.Name,
		ManufacturerSKU: product.Reference,
		DefaultUOM:      orian.DefaultUOM,
		UnitPrice:       product.CostPrice,
	}
}

// InboundPayload maps a purchase order and its lines, in persisted order.
func (c *Client) InboundPayload(po *models.PurchaseOrder, asOf time.Time) orian.Inbound {
	lines := make([]orian.Line, 0, len(po.Lines))
	for i, line := range po.Lines {
		sku := ""
		if line.Product != nil {
			sku = line.Product.SKU
		}
		lines = append(lines, orian.Line{OrderLine: i + 1, SKU: sku, QtyOriginal: line.QuantityOrdered})
	}

	notes := ""
	if po.Notes != nil {
		notes = *po.Notes
	}
	date := messages.FormatTime(asOf, c.loc)

	return orian.Inbound{
		Consignee:     c.consignee,
		OrderID:       c.codec.Encode(po.ID),
		OrderType:     orian.OrderTypeInbound,
		ReferenceOrd:  c.InboundReference(po),
		SourceCompany: c.codec.Encode(po.SupplierID),
		CreateDate:    date,
		ExpectedDate:  date,
		Notes:         notes,
		Lines:         orian.Lines{Line: lines},
	}
}

// InboundReference is the encoded campaign context of a purchase order, or
// empty when the order is not tied to one.
func (c *Client) InboundReference(po *models.PurchaseOrder) string {
	if po.EmployeeGroupCampaignID == nil {
		return ""
	}
	return c.codec.Encode(*po.EmployeeGroupCampaignID)
}

// OutboundPayload maps a customer order with its contact resolved from the
// delivery policy of the recipient's group.
func (c *Client) OutboundPayload(order *models.CustomerOrder, asOf time.Time) orian.Outbound {
	contact, comments := c.ResolveContact(order)
	date := messages.FormatTime(asOf, c.loc)

	reference := ""
	if group := order.Group(); group != nil && group.DeliveryLocation.IsOffice() {
		reference = c.codec.Encode(order.EmployeeGroupCampaignID)
	}

	lines := OutboundLines(order)
	wireLines := make([]orian.Line, 0, len(lines))
	for i, line := range lines {
		wireLines = append(wireLines, orian.Line{OrderLine: i + 1, SKU: line.SKU, QtyOriginal: line.Quantity})
	}

	return orian.Outbound{
		Consignee:      c.consignee,
		OrderID:        c.CustomerOrderID(order),
		OrderType:      orian.OrderTypeCustomer,
		ReferenceOrd:   reference,
		TargetCompany:  c.codec.Encode(DummyCustomerID),
		CreateDate:     date,
		RequestedDate:  date,
		Contact:        contact,
		ShippingDetail: orian.ShippingDetail{DeliveryComments: comments},
		Lines:          orian.Lines{Line: wireLines},
	}
}

// CustomerOrderID namespaces the order id by its organization name.
func (c *Client) CustomerOrderID(order *models.CustomerOrder) string {
	if org := order.Organization(); org != nil && ids.Namespace(org.Name) != "" {
		return ids.EncodeWithNamespace(org.Name, order.ID)
	}
	return c.codec.Encode(order.ID)
}

// ResolveContact picks the delivery address and contacts. Office delivery
// ships to the group's office with the organization manager as the primary
// contact and the employee as the secondary one. Home delivery uses the
// order's own contact details.
func (c *Client) ResolveContact(order *models.CustomerOrder) (orian.Contact, string) {
	employee := order.Employee
	if employee == nil {
		employee = &models.Employee{}
	}

	group := order.Group()
	if group != nil && group.DeliveryLocation.IsOffice() {
		manager := models.Organization{}
		if group.Organization != nil {
			manager = *group.Organization
		}
		return orian.Contact{
			Street1:       address.StreetLine(group.DeliveryStreet, group.DeliveryStreetNumber, group.DeliveryApartmentNumber),
			City:          group.DeliveryCity,
			Contact1Name:  manager.ManagerFullName,
			Contact2Name:  employee.FullName(),
			Contact1Phone: manager.ManagerPhoneNumber,
			Contact2Phone: employee.PhoneNumber,
			Contact1Email: manager.ManagerEmail,
			Contact2Email: employee.Email,
		}, ""
	}

	return orian.Contact{
		Street1:       address.StreetLine(order.DeliveryStreet, order.DeliveryStreetNumber, order.DeliveryApartmentNumber),
		City:          order.DeliveryCity,
		Contact1Name:  order.FullName,
		Contact2Name:  order.FullName,
		Contact1Phone: order.PhoneNumber,
		Contact2Phone: order.AdditionalPhoneNumber,
		Contact1Email: employee.Email,
		Contact2Email: "",
	}, order.DeliveryAdditionalDetails
}

// Line is a SKU and quantity the warehouse ships for an order.
type Line struct {
	SKU      string
	Quantity int
}

// OutboundLines lists what the warehouse ships for order. Money and
// supplier-shipped products are skipped, bundles expand into their
// components, and repeated SKUs are merged in first-seen order.
func OutboundLines(order *models.CustomerOrder) []Line {
	var lines []Line
	index := map[string]int{}
	add := func(product *models.Product, qty int) {
		if product == nil || qty <= 0 || !enums.ShipsThroughLogisticsCenter(product.ProductKind, product.ProductType) {
			return
		}
		if i, ok := index[product.SKU]; ok {
			lines[i].Quantity += qty
			return
		}
		index[product.SKU] = len(lines)
		lines = append(lines, Line{SKU: product.SKU, Quantity: qty})
	}

	for _, line := range order.Lines {
		product := line.Product
		if product == nil {
			continue
		}
		if product.ProductKind == enums.ProductKindBundle {
			if product.ProductType == enums.ProductTypeSentBySupplier {
				continue
			}
			for _, item := range product.BundleItems {
				add(item.Product, line.Quantity*item.Quantity)
			}
			continue
		}
		add(product, line.Quantity)
	}
	return lines
}

func describe(result orian.Result) string {
	if result.ErrorMessage != "" {
		return fmt.Sprintf("%s: %s", result.ErrorCode, result.ErrorMessage)
	}
	if result.ErrorCode != "" {
		return result.ErrorCode
	}
	return "no success status"
}
