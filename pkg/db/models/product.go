package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

// Product is a catalog item. Mirrored to the logistics center as a SKU.
type Product struct {
	ID                           int64               `gorm:"column:id;primaryKey;autoIncrement"`
	SupplierID                   int64               `gorm:"column:supplier_id;not null"`
	BrandName                    string              `gorm:"column:brand_name;not null;default:''"`
	Name                         string              `gorm:"column:name;not null"`
	SKU                          string              `gorm:"column:sku;not null;uniqueIndex"`
	Reference                    string              `gorm:"column:reference;not null;default:''"`
	CostPrice                    decimal.Decimal     `gorm:"column:cost_price;type:numeric(12,2);not null"`
	SalePrice                    decimal.Decimal     `gorm:"column:sale_price;type:numeric(12,2);not null"`
	ProductKind                  enums.ProductKind   `gorm:"column:product_kind;not null;default:'PHYSICAL'"`
	ProductType                  enums.ProductType   `gorm:"column:product_type;not null;default:'REGULAR'"`
	LogisticsSnapshotStockLineID *int64              `gorm:"column:logistics_snapshot_stock_line_id"`
	Supplier                     *Supplier           `gorm:"foreignKey:SupplierID"`
	BundleItems                  []ProductBundleItem `gorm:"foreignKey:BundleProductID"`
	CreatedAt                    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductBundleItem is one component of a BUNDLE product.
type ProductBundleItem struct {
	ID              int64    `gorm:"column:id;primaryKey;autoIncrement"`
	BundleProductID int64    `gorm:"column:bundle_product_id;not null"`
	ProductID       int64    `gorm:"column:product_id;not null"`
	Quantity        int      `gorm:"column:quantity;not null;default:1"`
	Product         *Product `gorm:"foreignKey:ProductID"`
}
