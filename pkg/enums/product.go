package enums

// ProductKind describes what a product physically is.
type ProductKind string

const (
	ProductKindPhysical ProductKind = "PHYSICAL"
	ProductKindMoney    ProductKind = "MONEY"
	ProductKindBundle   ProductKind = "BUNDLE"
)

// ProductType describes how a product is fulfilled.
type ProductType string

const (
	ProductTypeRegular        ProductType = "REGULAR"
	ProductTypeLargeProduct   ProductType = "LARGE_PRODUCT"
	ProductTypeSentBySupplier ProductType = "SENT_BY_SUPPLIER"
)

// ShipsThroughLogisticsCenter reports whether a product of this kind and type
// is fulfilled by the warehouse.
func ShipsThroughLogisticsCenter(kind ProductKind, productType ProductType) bool {
	return kind != ProductKindMoney && productType != ProductTypeSentBySupplier
}
