package models

import (
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/cabinetworks/contractor-backend/pkg/types"
)

// Order is the durable result of accepting a proposal. Exactly one exists per
// proposal, and its snapshot is written once on insert and never updated.
type Order struct {
	ID               int64             `gorm:"primaryKey;autoIncrement"`
	ProposalID       int64             `gorm:"not null;uniqueIndex:orders_proposal_id_key"`
	OrderNumber      string            `gorm:"type:text;not null;uniqueIndex:orders_order_number_key"`
	OwnerGroupID     int64             `gorm:"not null;index"`
	CustomerID       int64             `gorm:"not null"`
	ManufacturerID   int64             `gorm:"not null"`
	Status           enums.OrderStatus `gorm:"type:text;not null"`
	PartsCents       int64             `gorm:"not null"`
	AssemblyCents    int64             `gorm:"not null"`
	ModsCents        int64             `gorm:"not null"`
	SubtotalCents    int64             `gorm:"not null"`
	DiscountCents    int64             `gorm:"not null"`
	TaxCents         int64             `gorm:"not null"`
	DeliveryCents    int64             `gorm:"not null"`
	GrandTotalCents  int64             `gorm:"not null"`
	Currency         string            `gorm:"type:text;not null"`
	AcceptedVia      enums.ActorType   `gorm:"type:text;not null"`
	AcceptedByUserID *int64
	Snapshot         types.OrderSnapshot `gorm:"type:jsonb;serializer:json;not null;<-:create"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderNumberSequence holds the last order sequence handed out for a calendar day.
type OrderNumberSequence struct {
	Day       string `gorm:"type:text;primaryKey"`
	LastValue int64  `gorm:"not null"`
	UpdatedAt time.Time
}
