package outbound

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/benefits-logistics/internal/logistics/ids"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/orian"
)

type postedRequest struct {
	endpoint orian.Endpoint
	data     any
}

type fakeOrian struct {
	results  map[orian.Endpoint]orian.Result
	errs     map[orian.Endpoint]error
	requests []postedRequest
}

func newFakeOrian() *fakeOrian {
	return &fakeOrian{results: map[orian.Endpoint]orian.Result{}, errs: map[orian.Endpoint]error{}}
}

func (f *fakeOrian) Post(_ context.Context, endpoint orian.Endpoint, data any) (orian.Result, error) {
	f.requests = append(f.requests, postedRequest{endpoint: endpoint, data: data})
	if err := f.errs[endpoint]; err != nil {
		return orian.Result{}, err
	}
	if result, ok := f.results[endpoint]; ok {
		return result, nil
	}
	return orian.Result{TransportOK: true, BusinessOK: true, Status: orian.SuccessStatus}, nil
}

func (f *fakeOrian) reject(endpoint orian.Endpoint) {
	f.results[endpoint] = orian.Result{TransportOK: true, ErrorCode: "InvalidFormatData"}
}

func (f *fakeOrian) endpoints() []orian.Endpoint {
	out := make([]orian.Endpoint, 0, len(f.requests))
	for _, req := range f.requests {
		out = append(out, req.endpoint)
	}
	return out
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestClient(t *testing.T, fake *fakeOrian) *Client {
	t.Helper()
	client, err := NewClient(ClientParams{
		Orian:     fake,
		Codec:     ids.NewCodec("PLATFORM"),
		Consignee: "AAA",
		Location:  time.UTC,
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	return client
}

func product(id int64, sku string) *models.Product {
	return &models.Product{
		ID:          id,
		SKU:         sku,
		Name:        "product " + sku,
		CostPrice:   decimal.NewFromInt(50),
		SalePrice:   decimal.NewFromInt(60),
		ProductKind: enums.ProductKindPhysical,
		ProductType: enums.ProductTypeRegular,
	}
}

func fixtureOrder(location enums.DeliveryLocation) *models.CustomerOrder {
	org := &models.Organization{
		ID:                 1,
		Name:               "Test organization",
		ManagerFullName:    "Test manager",
		ManagerPhoneNumber: "0500000009",
		ManagerEmail:       "manager@test.test",
	}
	group := &models.EmployeeGroup{
		ID:                      3,
		OrganizationID:          1,
		DeliveryCity:            "Office2",
		DeliveryStreet:          "Office street 2",
		DeliveryStreetNumber:    "3",
		DeliveryApartmentNumber: "4",
		DeliveryLocation:        location,
		Organization:            org,
	}
	return &models.CustomerOrder{
		ID:                        21,
		EmployeeGroupCampaignID:   8,
		Status:                    enums.CustomerOrderStatusPending,
		FullName:                  "Test name 3",
		PhoneNumber:               "0500000004",
		AdditionalPhoneNumber:     "050000005",
		DeliveryCity:              "City3",
		DeliveryStreet:            "Main3",
		DeliveryStreetNumber:      "3",
		DeliveryApartmentNumber:   "3",
		DeliveryAdditionalDetails: "Additional 3",
		Employee: &models.Employee{
			ID:            5,
			FirstName:     "Test",
			LastName:      "Employee 2",
			Email:         "test2@test.test",
			PhoneNumber:   "0520000002",
			EmployeeGroup: group,
		},
		Lines: []models.CustomerOrderLine{{ID: 1, ProductID: 1, Quantity: 4, Product: product(1, "1")}},
	}
}

func TestSyncOutboundOfficeDeliveryUsesManagerAndEmployee(t *testing.T) {
	fake := newFakeOrian()
	client := newTestClient(t, fake)
	order := fixtureOrder(enums.DeliveryLocationToOffice)

	result, err := client.SyncOutbound(context.Background(), order, time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, result.BusinessOK)
	require.Len(t, fake.requests, 1)
	require.Equal(t, orian.EndpointOutbound, fake.requests[0].endpoint)

	payload := fake.requests[0].data.(orian.Outbound)
	require.Equal(t, "PLATFORM_8", payload.ReferenceOrd)
	require.Equal(t, "Test organ_21", payload.OrderID)
	require.Equal(t, orian.OrderTypeCustomer, payload.OrderType)
	require.Equal(t, "PLATFORM_-999", payload.TargetCompany)
	require.Equal(t, "8/1/2024 12:00:00 PM", payload.CreateDate)

	contact := payload.Contact
	require.Equal(t, "3 Office street 2, 4", contact.Street1)
	require.Equal(t, "Office2", contact.City)
	require.Equal(t, "Test manager", contact.Contact1Name)
	require.Equal(t, "0500000009", contact.Contact1Phone)
	require.Equal(t, "manager@test.test", contact.Contact1Email)
	require.Equal(t, "Test Employee 2", contact.Contact2Name)
	require.Equal(t, "0520000002", contact.Contact2Phone)
	require.Equal(t, "test2@test.test", contact.Contact2Email)
	require.Empty(t, payload.ShippingDetail.DeliveryComments)

	require.Equal(t, []orian.Line{{OrderLine: 1, SKU: "1", QtyOriginal: 4}}, payload.Lines.Line)
}

func TestSyncOutboundHomeDeliveryUsesOrderContact(t *testing.T) {
	fake := newFakeOrian()
	client := newTestClient(t, fake)
	order := fixtureOrder(enums.DeliveryLocationToHome)

	_, err := client.SyncOutbound(context.Background(), order, time.Now())
	require.NoError(t, err)

	payload := fake.requests[0].data.(orian.Outbound)
	require.Empty(t, payload.ReferenceOrd)
	contact := payload.Contact
	require.Equal(t, "3 Main3, 3", contact.Street1)
	require.Equal(t, "City3", contact.City)
	require.Equal(t, "Test name 3", contact.Contact1Name)
	require.Equal(t, "Test name 3", contact.Contact2Name)
	require.Equal(t, "0500000004", contact.Contact1Phone)
	require.Equal(t, "050000005", contact.Contact2Phone)
	require.Equal(t, "test2@test.test", contact.Contact1Email)
	require.Empty(t, contact.Contact2Email)
	require.Equal(t, "Additional 3", payload.ShippingDetail.DeliveryComments)
}

func TestSyncOutboundWireKeys(t *testing.T) {
	fake := newFakeOrian()
	client := newTestClient(t, fake)

	_, err := client.SyncOutbound(context.Background(), fixtureOrder(enums.DeliveryLocationToOffice), time.Now())
	require.NoError(t, err)

	raw, err := json.Marshal(fake.requests[0].data)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"CONSIGNEE", "ORDERID", "REFERENCEORD", "CONTACT", "SHIPPINGDETAIL", "LINES"} {
		require.Contains(t, decoded, key)
	}
	contact := decoded["CONTACT"].(map[string]any)
	for _, key := range []string{"STREET1", "CITY", "CONTACT1NAME", "CONTACT2NAME", "CONTACT1PHONE", "CONTACT2PHONE", "CONTACT1EMAIL", "CONTACT2EMAIL"} {
		require.Contains(t, contact, key)
	}
}

func TestCustomerOrderIDFallsBackToPrefix(t *testing.T) {
	client := newTestClient(t, newFakeOrian())
	order := &models.CustomerOrder{ID: 9}
	require.Equal(t, "PLATFORM_9", client.CustomerOrderID(order))
}

func TestOutboundLinesFiltersAndExpandsBundles(t *testing.T) {
	money := product(2, "gift-card")
	money.ProductKind = enums.ProductKindMoney
	supplierShipped := product(3, "sofa")
	supplierShipped.ProductType = enums.ProductTypeSentBySupplier
	bundle := product(4, "bundle")
	bundle.ProductKind = enums.ProductKindBundle
	bundle.BundleItems = []models.ProductBundleItem{
		{ProductID: 1, Quantity: 2, Product: product(1, "1")},
		{ProductID: 5, Quantity: 1, Product: product(5, "5")},
	}

	order := &models.CustomerOrder{Lines: []models.CustomerOrderLine{
		{Quantity: 1, Product: product(1, "1")},
		{Quantity: 1, Product: money},
		{Quantity: 1, Product: supplierShipped},
		{Quantity: 3, Product: bundle},
	}}

	require.Equal(t, []Line{{SKU: "1", Quantity: 7}, {SKU: "5", Quantity: 3}}, OutboundLines(order))

	onlySkipped := &models.CustomerOrder{Lines: []models.CustomerOrderLine{{Quantity: 1, Product: money}}}
	require.Empty(t, OutboundLines(onlySkipped))
}

func TestSyncInboundPayload(t *testing.T) {
	fake := newFakeOrian()
	client := newTestClient(t, fake)
	campaignID := int64(77)
	po := &models.PurchaseOrder{
		ID:         12,
		SupplierID: 4,
		Lines: []models.PurchaseOrderLine{
			{ID: 1, QuantityOrdered: 2, Product: product(1, "1")},
			{ID: 2, QuantityOrdered: 3, Product: product(2, "2")},
		},
	}

	_, err := client.SyncInbound(context.Background(), po, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	payload := fake.requests[0].data.(orian.Inbound)
	require.Equal(t, "PLATFORM_12", payload.OrderID)
	require.Equal(t, "PLATFORM_4", payload.SourceCompany)
	require.Empty(t, payload.ReferenceOrd)
	require.Equal(t, []orian.Line{
		{OrderLine: 1, SKU: "1", QtyOriginal: 2},
		{OrderLine: 2, SKU: "2", QtyOriginal: 3},
	}, payload.Lines.Line)

	po.EmployeeGroupCampaignID = &campaignID
	require.Equal(t, "PLATFORM_77", client.InboundReference(po))
}

func TestSyncSupplierReportsBusinessFailureWithoutError(t *testing.T) {
	fake := newFakeOrian()
	fake.reject(orian.EndpointCompany)
	client := newTestClient(t, fake)

	result, err := client.SyncSupplier(context.Background(), &models.Supplier{ID: 1, Name: "supplier name"})
	require.NoError(t, err)
	require.False(t, result.BusinessOK)
	require.Equal(t, "InvalidFormatData", result.ErrorCode)

	payload := fake.requests[0].data.(orian.Company)
	require.Equal(t, "PLATFORM_1", payload.Company)
	require.Equal(t, orian.CompanyTypeVendor, payload.CompanyType)
}

func TestSyncProductPayload(t *testing.T) {
	fake := newFakeOrian()
	client := newTestClient(t, fake)
	p := product(1, "1")
	p.Reference = "MFR-1"

	_, err := client.SyncProduct(context.Background(), p)
	require.NoError(t, err)
	payload := fake.requests[0].data.(orian.Sku)
	require.Equal(t, "1", payload.SKU)
	require.Equal(t, "MFR-1", payload.ManufacturerSKU)
	require.True(t, payload.UnitPrice.Equal(decimal.NewFromInt(50)))
}
