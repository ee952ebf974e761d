package users

import (
	"context"
	"errors"

	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"gorm.io/gorm"
)

// Repository exposes the user lookups the pipeline needs.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a user by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// RequireActive loads the user behind an authenticated request. A still-valid
// token for a deactivated or deleted account is FORBIDDEN.
func (r *Repository) RequireActive(ctx context.Context, id int64) (*models.User, error) {
	user, err := r.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user account is not active")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.Active {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user account is not active")
	}
	return user, nil
}

// ListActiveAdmins returns every active platform admin.
func (r *Repository) ListActiveAdmins(ctx context.Context) ([]models.User, error) {
	var admins []models.User
	if err := r.db.WithContext(ctx).
		Where("role = ? AND active = ?", enums.UserRoleAdmin, true).
		Order("id").
		Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}

// ListActiveGroupMembers returns active users belonging to the group, of any role.
func (r *Repository) ListActiveGroupMembers(ctx context.Context, groupID int64) ([]models.User, error) {
	var members []models.User
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND active = ?", groupID, true).
		Order("id").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}
