package models

import (
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

// CustomerOrder is an employee's order, shipped by the logistics center as an
// outbound.
type CustomerOrder struct {
	ID                        int64                     `gorm:"column:id;primaryKey;autoIncrement"`
	EmployeeID                int64                     `gorm:"column:employee_id;not null"`
	EmployeeGroupCampaignID   int64                     `gorm:"column:employee_group_campaign_id;not null"`
	OrderDateTime             time.Time                 `gorm:"column:order_date_time;not null"`
	CostFromBudget            int                       `gorm:"column:cost_from_budget;not null;default:0"`
	CostAdded                 int                       `gorm:"column:cost_added;not null;default:0"`
	Status                    enums.CustomerOrderStatus `gorm:"column:status;not null;default:'PENDING'"`
	FullName                  string                    `gorm:"column:full_name;not null;default:''"`
	PhoneNumber               string                    `gorm:"column:phone_number;not null;default:''"`
	AdditionalPhoneNumber     string                    `gorm:"column:additional_phone_number;not null;default:''"`
	DeliveryCity              string                    `gorm:"column:delivery_city;not null;default:''"`
	DeliveryStreet            string                    `gorm:"column:delivery_street;not null;default:''"`
	DeliveryStreetNumber      string                    `gorm:"column:delivery_street_number;not null;default:''"`
	DeliveryApartmentNumber   string                    `gorm:"column:delivery_apartment_number;not null;default:''"`
	DeliveryAdditionalDetails string                    `gorm:"column:delivery_additional_details;not null;default:''"`
	LogisticsCenterStatus     *string                   `gorm:"column:logistics_center_status"`
	LogisticsCenterStatusAt   *time.Time                `gorm:"column:logistics_center_status_at"`
	Employee                  *Employee                 `gorm:"foreignKey:EmployeeID"`
	EmployeeGroupCampaign     *EmployeeGroupCampaign    `gorm:"foreignKey:EmployeeGroupCampaignID"`
	Lines                     []CustomerOrderLine       `gorm:"foreignKey:OrderID"`
	CreatedAt                 time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// CustomerOrderLine is one ordered product. Bundles expand into their
// components when sent to the logistics center.
type CustomerOrderLine struct {
	ID        int64    `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   int64    `gorm:"column:order_id;not null"`
	ProductID int64    `gorm:"column:product_id;not null"`
	Quantity  int      `gorm:"column:quantity;not null"`
	Product   *Product `gorm:"foreignKey:ProductID"`
}

// Group returns the recipient's employee group, falling back to the group of
// the campaign the order was placed in.
func (o *CustomerOrder) Group() *EmployeeGroup {
	if o.Employee != nil && o.Employee.EmployeeGroup != nil {
		return o.Employee.EmployeeGroup
	}
	if o.EmployeeGroupCampaign != nil && o.EmployeeGroupCampaign.EmployeeGroup != nil {
		return o.EmployeeGroupCampaign.EmployeeGroup
	}
	return nil
}

// Organization returns the organization of the order's group, if loaded.
func (o *CustomerOrder) Organization() *Organization {
	if group := o.Group(); group != nil {
		return group.Organization
	}
	return nil
}
