package models

import (
	"strings"
	"time"

	"github.com/angelmondragon/benefits-logistics/pkg/enums"
)

// Organization is a customer company whose employees receive benefits.
type Organization struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name               string    `gorm:"column:name;not null"`
	ManagerFullName    string    `gorm:"column:manager_full_name;not null"`
	ManagerPhoneNumber string    `gorm:"column:manager_phone_number;not null"`
	ManagerEmail       string    `gorm:"column:manager_email;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}

// EmployeeGroup groups employees that share a delivery policy.
type EmployeeGroup struct {
	ID                      int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	OrganizationID          int64                  `gorm:"column:organization_id;not null"`
	Name                    string                 `gorm:"column:name;not null"`
	DeliveryCity            string                 `gorm:"column:delivery_city;not null;default:''"`
	DeliveryStreet          string                 `gorm:"column:delivery_street;not null;default:''"`
	DeliveryStreetNumber    string                 `gorm:"column:delivery_street_number;not null;default:''"`
	DeliveryApartmentNumber string                 `gorm:"column:delivery_apartment_number;not null;default:''"`
	DeliveryLocation        enums.DeliveryLocation `gorm:"column:delivery_location;not null;default:'ToHome'"`
	Organization            *Organization          `gorm:"foreignKey:OrganizationID"`
}

// EmployeeGroupCampaign is a campaign as offered to one employee group.
type EmployeeGroupCampaign struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement"`
	EmployeeGroupID int64          `gorm:"column:employee_group_id;not null"`
	CampaignName    string         `gorm:"column:campaign_name;not null;default:''"`
	EmployeeGroup   *EmployeeGroup `gorm:"foreignKey:EmployeeGroupID"`
}

// Employee is an order recipient.
type Employee struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement"`
	EmployeeGroupID int64          `gorm:"column:employee_group_id;not null"`
	FirstName       string         `gorm:"column:first_name;not null"`
	LastName        string         `gorm:"column:last_name;not null"`
	Email           string         `gorm:"column:email;not null;default:''"`
	PhoneNumber     string         `gorm:"column:phone_number;not null;default:''"`
	EmployeeGroup   *EmployeeGroup `gorm:"foreignKey:EmployeeGroupID"`
}

// FullName joins the first and last name.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}
