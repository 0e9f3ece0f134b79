package models

import "time"

// Supplier is the vendor goods are procured from. Mirrored to the logistics
// center as a company.
type Supplier struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string    `gorm:"column:name;not null"`
	PhoneNumber  string    `gorm:"column:phone_number;not null;default:''"`
	Email        string    `gorm:"column:email;not null;default:''"`
	City         string    `gorm:"column:city;not null;default:''"`
	Street       string    `gorm:"column:street;not null;default:''"`
	StreetNumber string    `gorm:"column:street_number;not null;default:''"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
