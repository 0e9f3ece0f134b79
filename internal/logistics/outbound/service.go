package outbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
	"github.com/angelmondragon/benefits-logistics/pkg/orian"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the multi-step sends. Every rejection by the logistics center
// is returned as a BUSINESS_FAILURE error so the caller can retry.
type Service interface {
	SendPurchaseOrder(ctx context.Context, purchaseOrderID int64) error
	SendCustomerOrder(ctx context.Context, orderID int64) error
	SyncProductByID(ctx context.Context, productID int64) error
}

// ServiceParams wires a Service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Syncer   Syncer
	Location *time.Location
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	syncer Syncer
	loc    *time.Location
	logg   *logger.Logger
	now    func() time.Time
}

// NewService validates params and returns a Service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("outbound repository required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Syncer == nil {
		return nil, errors.New("syncer required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		syncer: params.Syncer,
		loc:    loc,
		logg:   params.Logger,
		now:    now,
	}, nil
}

// SendPurchaseOrder syncs the supplier, then every distinct product, then the
// inbound. The first failure aborts the chain.
func (s *service) SendPurchaseOrder(ctx context.Context, purchaseOrderID int64) error {
	ctx = s.logg.WithField(ctx, "purchase_order_id", purchaseOrderID)
	s.logg.Info(ctx, "sending purchase order to logistics center")

	po, err := s.repo.FindPurchaseOrder(ctx, purchaseOrderID)
	if err != nil {
		return notFound(err, "purchase order")
	}
	if po.Supplier == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "purchase order supplier not loaded")
	}

	s.logg.Info(ctx, "syncing supplier")
	result, err := s.syncer.SyncSupplier(ctx, po.Supplier)
	if err := requireSuccess(result, err, orian.EndpointCompany, "supplier"); err != nil {
		return err
	}

	s.logg.Info(ctx, "syncing products")
	for _, product := range distinctProducts(po) {
		result, err := s.syncer.SyncProduct(ctx, product)
		if err := requireSuccess(result, err, orian.EndpointSku, fmt.Sprintf("product %d", product.ID)); err != nil {
			return err
		}
	}

	s.logg.Info(ctx, "sending inbound")
	asOf := s.now().In(s.loc)
	result, err = s.syncer.SyncInbound(ctx, po, asOf)
	if err := requireSuccess(result, err, orian.EndpointInbound, "inbound"); err != nil {
		return err
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).MarkPurchaseOrderSent(ctx, po.ID, asOf)
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark purchase order sent")
	}

	s.logg.Info(ctx, "purchase order sent to logistics center")
	return nil
}

// SendCustomerOrder submits a pending order as an outbound. Orders that are no
// longer pending, or that hold nothing the warehouse ships, are skipped.
func (s *service) SendCustomerOrder(ctx context.Context, orderID int64) error {
	ctx = s.logg.WithField(ctx, "customer_order_id", orderID)
	s.logg.Info(ctx, "sending order to logistics center")

	order, err := s.repo.FindCustomerOrder(ctx, orderID)
	if err != nil {
		return notFound(err, "customer order")
	}
	if order.Status != enums.CustomerOrderStatusPending {
		s.logg.Warn(s.logg.WithField(ctx, "status", order.Status.String()), "order is no longer pending, not sending to logistics center")
		return nil
	}
	if len(OutboundLines(order)) == 0 {
		s.logg.Warn(ctx, "order only contains sent-by-supplier or money products, not sending to logistics center")
		return nil
	}

	asOf := s.now().In(s.loc)
	result, err := s.syncer.SyncOutbound(ctx, order, asOf)
	if err := requireSuccess(result, err, orian.EndpointOutbound, "outbound"); err != nil {
		return err
	}

	var updated bool
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		updated, err = s.repo.WithTx(tx).MarkCustomerOrderSent(ctx, order.ID)
		return err
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark customer order sent")
	}
	if !updated {
		s.logg.Warn(ctx, "order status changed while sending to logistics center")
	}

	s.logg.Info(ctx, "order sent to logistics center")
	return nil
}

// SyncProductByID pushes a single product.
func (s *service) SyncProductByID(ctx context.Context, productID int64) error {
	ctx = s.logg.WithField(ctx, "product_id", productID)
	s.logg.Info(ctx, "syncing product with logistics center")

	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return notFound(err, "product")
	}
	result, err := s.syncer.SyncProduct(ctx, product)
	if err := requireSuccess(result, err, orian.EndpointSku, fmt.Sprintf("product %d", product.ID)); err != nil {
		return err
	}

	s.logg.Info(ctx, "product synced with logistics center")
	return nil
}

// requireSuccess turns a rejected or failed sync into an error.
func requireSuccess(result orian.Result, err error, endpoint orian.Endpoint, subject string) error {
	if err != nil {
		return err
	}
	if result.BusinessOK {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeBusinessFailure, fmt.Sprintf("failed to add or update %s: %s", subject, describe(result))).
		WithDetails(map[string]any{
			"endpoint":      string(endpoint),
			"error_code":    result.ErrorCode,
			"error_message": result.ErrorMessage,
		})
}

func distinctProducts(po *models.PurchaseOrder) []*models.Product {
	seen := map[int64]struct{}{}
	products := make([]*models.Product, 0, len(po.Lines))
	for _, line := range po.Lines {
		if line.Product == nil {
			continue
		}
		if _, ok := seen[line.Product.ID]; ok {
			continue
		}
		seen[line.Product.ID] = struct{}{}
		products = append(products, line.Product)
	}
	return products
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load "+what)
}
