package inbound

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/benefits-logistics/internal/logistics/statemerge"
	"github.com/angelmondragon/benefits-logistics/pkg/db/models"
	"github.com/angelmondragon/benefits-logistics/pkg/enums"
	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

// Repository persists raw logistics center messages and the reconciled
// state derived from them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateMessage(ctx context.Context, msg *models.LogisticsCenterMessage) error
	FindMessage(ctx context.Context, id int64) (*models.LogisticsCenterMessage, error)
	MarkProcessed(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, code pkgerrors.Code, message string) error
	ListReplayable(ctx context.Context, createdBefore time.Time, limit int) ([]int64, error)

	UpsertReceipt(ctx context.Context, receipt *models.InboundReceipt) (*models.InboundReceipt, error)
	FindPurchaseOrderLine(ctx context.Context, purchaseOrderID int64, sku string) (*models.PurchaseOrderLine, error)
	FindReceiptLine(ctx context.Context, receiptID int64, lineNumber int) (*models.InboundReceiptLine, error)
	UpsertReceiptLine(ctx context.Context, line *models.InboundReceiptLine) (*models.InboundReceiptLine, error)
	RecomputeQuantityReceived(ctx context.Context, purchaseOrderLineID int64) error

	FindCustomerOrderOrganization(ctx context.Context, orderID int64) (*models.Organization, error)
	LockEntityStatus(ctx context.Context, kind enums.StatusEntityKind, id int64) (statemerge.Current, error)
	StatusEventExists(ctx context.Context, kind enums.StatusEntityKind, id int64, status string, at time.Time) (bool, error)
	InsertStatusEvent(ctx context.Context, event *models.OrderStatusEvent) (bool, error)
	UpdateEntityStatus(ctx context.Context, kind enums.StatusEntityKind, id int64, status string, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inbound repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateMessage(ctx context.Context, msg *models.LogisticsCenterMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *repository) FindMessage(ctx context.Context, id int64) (*models.LogisticsCenterMessage, error) {
	var msg models.LogisticsCenterMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.LogisticsCenterMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed_at":     at.UTC(),
			"processing_error": nil,
			"error_code":       nil,
			"attempts":         gorm.Expr("attempts + 1"),
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id int64, code pkgerrors.Code, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.LogisticsCenterMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processing_error": message,
			"error_code":       string(code),
			"attempts":         gorm.Expr("attempts + 1"),
		}).Error
}

// ListReplayable returns unprocessed messages received before createdBefore.
// Malformed messages are left for manual inspection.
func (r *repository) ListReplayable(ctx context.Context, createdBefore time.Time, limit int) ([]int64, error) {
	var ids []int64
	query := r.db.WithContext(ctx).
		Model(&models.LogisticsCenterMessage{}).
		Where("processed_at IS NULL").
		Where("(error_code IS NULL OR error_code <> ?)", string(pkgerrors.CodeMalformedMessage)).
		Where("created_at <= ?", createdBefore.UTC()).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// UpsertReceipt creates the receipt or overwrites its dates, keyed by
// (center, receipt code).
func (r *repository) UpsertReceipt(ctx context.Context, receipt *models.InboundReceipt) (*models.InboundReceipt, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "center"}, {Name: "receipt_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"receipt_start_date", "receipt_close_date", "updated_at"}),
	}).Create(receipt).Error
	if err != nil {
		return nil, err
	}

	var stored models.InboundReceipt
	if err := db.Where("center = ? AND receipt_code = ?", receipt.Center, receipt.ReceiptCode).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindPurchaseOrderLine resolves the purchase order line holding sku.
func (r *repository) FindPurchaseOrderLine(ctx context.Context, purchaseOrderID int64, sku string) (*models.PurchaseOrderLine, error) {
	var line models.PurchaseOrderLine
	err := r.db.WithContext(ctx).
		Joins("JOIN products ON products.id = purchase_order_lines.product_id").
		Where("purchase_order_lines.purchase_order_id = ? AND products.sku = ?", purchaseOrderID, sku).
		Order("purchase_order_lines.id ASC").
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) FindReceiptLine(ctx context.Context, receiptID int64, lineNumber int) (*models.InboundReceiptLine, error) {
	var line models.InboundReceiptLine
	if err := r.db.WithContext(ctx).
		Where("receipt_id = ? AND receipt_line = ?", receiptID, lineNumber).
		First(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// UpsertReceiptLine creates the line or overwrites its quantity and
// references, keyed by (receipt, line number).
func (r *repository) UpsertReceiptLine(ctx context.Context, line *models.InboundReceiptLine) (*models.InboundReceiptLine, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "receipt_id"}, {Name: "receipt_line"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity_received",
			"logistics_center_message_id",
			"purchase_order_line_id",
			"updated_at",
		}),
	}).Create(line).Error
	if err != nil {
		return nil, err
	}
	return r.FindReceiptLine(ctx, line.ReceiptID, line.ReceiptLine)
}

// RecomputeQuantityReceived sums every receipt line pointing at the purchase
// order line.
func (r *repository) RecomputeQuantityReceived(ctx context.Context, purchaseOrderLineID int64) error {
	sum := r.db.Model(&models.InboundReceiptLine{}).
		Select("COALESCE(SUM(quantity_received), 0)").
		Where("purchase_order_line_id = ?", purchaseOrderLineID)
	return r.db.WithContext(ctx).
		Model(&models.PurchaseOrderLine{}).
		Where("id = ?", purchaseOrderLineID).
		Update("quantity_received", sum).Error
}

func (r *repository) FindCustomerOrderOrganization(ctx context.Context, orderID int64) (*models.Organization, error) {
	var order models.CustomerOrder
	err := r.db.WithContext(ctx).
		Preload("Employee.EmployeeGroup.Organization").
		Preload("EmployeeGroupCampaign.EmployeeGroup.Organization").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return order.Organization(), nil
}

type statusRow struct {
	ID                      int64
	LogisticsCenterStatus   *string
	LogisticsCenterStatusAt *time.Time
}

// LockEntityStatus reads the entity's current status with a row lock held
// until the surrounding transaction ends.
func (r *repository) LockEntityStatus(ctx context.Context, kind enums.StatusEntityKind, id int64) (statemerge.Current, error) {
	table, err := statusTable(kind)
	if err != nil {
		return statemerge.Current{}, err
	}
	var row statusRow
	err = r.db.WithContext(ctx).
		Table(table).
		Select("id", "logistics_center_status", "logistics_center_status_at").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return statemerge.Current{}, err
	}
	current := statemerge.Current{Status: row.LogisticsCenterStatus}
	if row.LogisticsCenterStatusAt != nil {
		at := row.LogisticsCenterStatusAt.UTC()
		current.At = &at
	}
	return current, nil
}

func (r *repository) StatusEventExists(ctx context.Context, kind enums.StatusEntityKind, id int64, status string, at time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderStatusEvent{}).
		Where("entity_kind = ? AND entity_id = ? AND status = ? AND status_date_time = ?", kind, id, status, at.UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertStatusEvent appends the event and reports whether a row was written.
// A concurrent duplicate is absorbed by the unique key.
func (r *repository) InsertStatusEvent(ctx context.Context, event *models.OrderStatusEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateEntityStatus(ctx context.Context, kind enums.StatusEntityKind, id int64, status string, at time.Time) error {
	table, err := statusTable(kind)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Table(table).
		Where("id = ?", id).
		Updates(map[string]any{
			"logistics_center_status":    status,
			"logistics_center_status_at": at.UTC(),
		}).Error
}

func statusTable(kind enums.StatusEntityKind) (string, error) {
	switch kind {
	case enums.StatusEntityPurchaseOrder:
		return "purchase_orders", nil
	case enums.StatusEntityCustomerOrder:
		return "customer_orders", nil
	default:
		return "", fmt.Errorf("unknown status entity kind %q", kind)
	}
}
