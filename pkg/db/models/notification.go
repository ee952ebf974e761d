package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cabinetworks/contractor-backend/pkg/enums"
)

// Notification stores in-app notification payloads addressed to a single user.
type Notification struct {
	ID              uuid.UUID                  `gorm:"type:uuid;primaryKey"`
	RecipientUserID int64                      `gorm:"not null;index"`
	Type            enums.NotificationType     `gorm:"type:text;not null"`
	Priority        enums.NotificationPriority `gorm:"type:text;not null"`
	Title           string                     `gorm:"type:text;not null"`
	Message         string                     `gorm:"type:text;not null"`
	Payload         map[string]any             `gorm:"type:jsonb;serializer:json"`
	IsRead          bool                       `gorm:"not null"`
	ReadAt          *time.Time
	CreatedAt       time.Time
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
