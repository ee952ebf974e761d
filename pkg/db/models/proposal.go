package models

import (
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/cabinetworks/contractor-backend/pkg/types"
)

// Proposal is a contractor's quote to a customer. Items reference catalog codes;
// pricing is resolved only when the proposal is accepted.
type Proposal struct {
	ID               int64                `gorm:"primaryKey;autoIncrement"`
	Status           enums.ProposalStatus `gorm:"type:text;not null"`
	OwnerGroupID     int64                `gorm:"not null;index"`
	CustomerID       int64                `gorm:"not null"`
	ManufacturerID   int64                `gorm:"not null"`
	Title            string               `gorm:"type:text;not null"`
	Items            []types.ProposalItem `gorm:"type:jsonb;serializer:json;not null"`
	DiscountCents    int64                `gorm:"not null"`
	DeliveryCents    int64                `gorm:"not null"`
	Currency         string               `gorm:"type:text;not null"`
	ClientTotals     *types.ClientTotals  `gorm:"type:jsonb;serializer:json"`
	SentAt           *time.Time
	AcceptedAt       *time.Time
	AcceptedByUserID *int64
	AcceptedVia      *enums.ActorType `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
