package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cabinetworks/contractor-backend/pkg/enums"
)

// AuditLog is an append-only record of a state-changing action. Diff is
// sanitized before it is persisted.
type AuditLog struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ActorType   enums.ActorType `gorm:"type:text;not null"`
	ActorUserID *int64
	ActorRef    string         `gorm:"type:text"`
	Action      string         `gorm:"type:text;not null;index"`
	TargetType  string         `gorm:"type:text;not null"`
	TargetID    string         `gorm:"type:text;not null"`
	Diff        map[string]any `gorm:"type:jsonb;serializer:json"`
	IP          string         `gorm:"type:text"`
	CreatedAt   time.Time
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
