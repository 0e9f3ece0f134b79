package models

import (
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

// PurchaseOrder is a procurement order placed with a supplier. Once approved
// it is announced to the logistics center as an inbound.
type PurchaseOrder struct {
	ID                      int64                     `gorm:"column:id;primaryKey;autoIncrement"`
	SupplierID              int64                     `gorm:"column:supplier_id;not null"`
	EmployeeGroupCampaignID *int64                    `gorm:"column:employee_group_campaign_id"`
	Notes                   *string                   `gorm:"column:notes"`
	Status                  enums.PurchaseOrderStatus `gorm:"column:status;not null;default:'PENDING'"`
	SentToLogisticsCenterAt *time.Time                `gorm:"column:sent_to_logistics_center_at"`
	LogisticsCenterStatus   *string                   `gorm:"column:logistics_center_status"`
	LogisticsCenterStatusAt *time.Time                `gorm:"column:logistics_center_status_at"`
	Supplier                *Supplier                 `gorm:"foreignKey:SupplierID"`
	Lines                   []PurchaseOrderLine       `gorm:"foreignKey:PurchaseOrderID"`
	CreatedAt               time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// PurchaseOrderLine is a single product line of a purchase order.
type PurchaseOrderLine struct {
	ID                            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PurchaseOrderID               int64     `gorm:"column:purchase_order_id;not null"`
	ProductID                     int64     `gorm:"column:product_id;not null"`
	QuantityOrdered               int       `gorm:"column:quantity_ordered;not null"`
	QuantitySentToLogisticsCenter int       `gorm:"column:quantity_sent_to_logistics_center;not null;default:0"`
	QuantityReceived              int       `gorm:"column:quantity_received;not null;default:0"`
	Product                       *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt                     time.Time `gorm:"column:created_at;autoCreateTime"`
}
