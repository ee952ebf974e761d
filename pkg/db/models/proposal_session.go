package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProposalSession grants time-boxed public access to one proposal. Only the
// hash of the bearer token is stored.
type ProposalSession struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProposalID      int64     `gorm:"not null;index"`
	TokenHash       string    `gorm:"type:text;not null;uniqueIndex:proposal_sessions_token_hash_key"`
	CustomerEmail   string    `gorm:"type:text"`
	ExpiresAt       time.Time `gorm:"not null"`
	CreatedByUserID *int64
	LastUsedAt      *time.Time
	CreatedAt       time.Time
}

func (s *ProposalSession) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the session is no longer usable at now.
func (s ProposalSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
