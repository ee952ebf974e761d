package notifications

import (
	"context"

	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"gorm.io/gorm"
)

const defaultBatchSize = 100

// Repository exposes persistence helpers for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	ListForRecipient(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
}

type repositoryImpl struct {
	db        *gorm.DB
	batchSize int
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db, batchSize: defaultBatchSize}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx, batchSize: r.batchSize}
}

func (r *repositoryImpl) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&notifications, r.batchSize).Error
}

// ListForRecipient returns the newest notifications first.
func (r *repositoryImpl) ListForRecipient(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultBatchSize
	}
	var out []models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
