package outbound

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

// Repository loads the entities mirrored to the logistics center and records
// the outcome of a send.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, id int64) (*models.Product, error)
	FindPurchaseOrder(ctx context.Context, id int64) (*models.PurchaseOrder, error)
	FindCustomerOrder(ctx context.Context, id int64) (*models.CustomerOrder, error)
	MarkPurchaseOrderSent(ctx context.Context, purchaseOrderID int64, sentAt time.Time) error
	MarkCustomerOrderSent(ctx context.Context, orderID int64) (bool, error)
	ListPendingCustomerOrderIDs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an outbound repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindPurchaseOrder(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("purchase_order_lines.id ASC") }).
		Preload("Lines.Product").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindCustomerOrder(ctx context.Context, id int64) (*models.CustomerOrder, error) {
	var order models.CustomerOrder
	err := r.db.WithContext(ctx).
		Preload("Employee.EmployeeGroup.Organization").
		Preload("EmployeeGroupCampaign.EmployeeGroup.Organization").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("customer_order_lines.id ASC") }).
		Preload("Lines.Product.BundleItems", func(db *gorm.DB) *gorm.DB { return db.Order("product_bundle_items.id ASC") }).
		Preload("Lines.Product.BundleItems.Product").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPurchaseOrderSent records the quantities handed to the warehouse and
// stamps the first send time. A later send keeps the original stamp.
func (r *repository) MarkPurchaseOrderSent(ctx context.Context, purchaseOrderID int64, sentAt time.Time) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.PurchaseOrderLine{}).
		Where("purchase_order_id = ?", purchaseOrderID).
		Update("quantity_sent_to_logistics_center", gorm.Expr("quantity_ordered")).Error; err != nil {
		return err
	}
	return db.Model(&models.PurchaseOrder{}).
		Where("id = ? AND sent_to_logistics_center_at IS NULL", purchaseOrderID).
		Update("sent_to_logistics_center_at", sentAt.UTC()).Error
}

// MarkCustomerOrderSent moves a pending order to SENT_TO_LOGISTIC_CENTER and
// reports whether it was still pending.
func (r *repository) MarkCustomerOrderSent(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CustomerOrder{}).
		Where("id = ? AND status = ?", orderID, enums.CustomerOrderStatusPending).
		Update("status", enums.CustomerOrderStatusSentToLogisticCenter)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListPendingCustomerOrderIDs(ctx context.Context, olderThan time.Time, limit int) ([]int64, error) {
	var ids []int64
	query := r.db.WithContext(ctx).
		Model(&models.CustomerOrder{}).
		Where("status = ? AND order_date_time <= ?", enums.CustomerOrderStatusPending, olderThan.UTC()).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
