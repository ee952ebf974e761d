package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/cabinetworks/contractor-backend/pkg/types"
)

// Customer is the homeowner or builder a proposal is addressed to.
type Customer struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:text;not null"`
	Email     string `gorm:"type:text"`
	Phone     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Manufacturer builds the cabinets and carries its order-email preferences.
type Manufacturer struct {
	ID                int64                `gorm:"primaryKey;autoIncrement"`
	Name              string               `gorm:"type:text;not null"`
	Email             string               `gorm:"type:text"`
	AutoEmailOnAccept bool                 `gorm:"not null"`
	OrderEmailMode    enums.OrderEmailMode `gorm:"type:text;not null"`
	OrderEmailSubject string               `gorm:"type:text"`
	OrderEmailBody    string               `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CatalogItem is a manufacturer's priced cabinet SKU.
type CatalogItem struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	ManufacturerID   int64  `gorm:"not null;uniqueIndex:catalog_items_manufacturer_code_key"`
	Code             string `gorm:"type:text;not null;uniqueIndex:catalog_items_manufacturer_code_key"`
	Description      string `gorm:"type:text"`
	UnitPriceCents   int64  `gorm:"not null"`
	AssemblyFeeCents int64  `gorm:"not null"`
}

// CatalogModification is a priced change that can be applied to a catalog item.
type CatalogModification struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ManufacturerID int64  `gorm:"not null;uniqueIndex:catalog_modifications_manufacturer_code_key"`
	Code           string `gorm:"type:text;not null;uniqueIndex:catalog_modifications_manufacturer_code_key"`
	Name           string `gorm:"type:text;not null"`
	PriceCents     int64  `gorm:"not null"`
}

// Group is a contractor organization. Its multiplier scales catalog parts prices.
type Group struct {
	ID              int64               `gorm:"primaryKey;autoIncrement"`
	Name            string              `gorm:"type:text;not null"`
	PriceMultiplier decimal.Decimal     `gorm:"type:numeric(8,4);not null"`
	Features        types.GroupFeatures `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// User is a platform account. Admins have no group.
type User struct {
	ID           int64          `gorm:"primaryKey;autoIncrement"`
	Email        string         `gorm:"type:text;not null"`
	Name         string         `gorm:"type:text;not null"`
	Role         enums.UserRole `gorm:"type:text;not null"`
	GroupID      *int64         `gorm:"index"`
	Active       bool           `gorm:"not null"`
	PasswordHash string         `gorm:"type:text" json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BrandingSetting customizes generated documents.
type BrandingSetting struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	CompanyName string `gorm:"type:text;not null"`
	HeaderText  string `gorm:"type:text"`
	FooterText  string `gorm:"type:text"`
	UpdatedAt   time.Time
}
