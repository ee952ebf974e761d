package models

import (
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/enums"
)

// Payment is the receivable derived from an order. One per order; the amount
// equals the order grand total at creation.
type Payment struct {
	ID          int64               `gorm:"primaryKey;autoIncrement"`
	OrderID     int64               `gorm:"not null;uniqueIndex:payments_order_id_key"`
	AmountCents int64               `gorm:"not null"`
	Currency    string              `gorm:"type:text;not null"`
	Status      enums.PaymentStatus `gorm:"type:text;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
