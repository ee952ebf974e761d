package proposals

import (
	"context"
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	"github.com/cabinetworks/contractor-backend/pkg/types"
	"gorm.io/gorm"
)

// Repository reads proposals and their collaborators and performs the two
// status transitions the pipeline owns.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to proposal operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a proposal by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := r.db.WithContext(ctx).First(&proposal, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *Repository) FindCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *Repository) FindManufacturer(ctx context.Context, id int64) (*models.Manufacturer, error) {
	var manufacturer models.Manufacturer
	if err := r.db.WithContext(ctx).First(&manufacturer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &manufacturer, nil
}

func (r *Repository) FindGroup(ctx context.Context, id int64) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// LoadCatalog returns the manufacturer's catalog rows referenced by items.
func (r *Repository) LoadCatalog(ctx context.Context, manufacturerID int64, items []types.ProposalItem) ([]models.CatalogItem, []models.CatalogModification, error) {
	codes, modCodes := referencedCodes(items)

	var catalog []models.CatalogItem
	if len(codes) > 0 {
		if err := r.db.WithContext(ctx).
			Where("manufacturer_id = ? AND code IN ?", manufacturerID, codes).
			Find(&catalog).Error; err != nil {
			return nil, nil, err
		}
	}

	var mods []models.CatalogModification
	if len(modCodes) > 0 {
		if err := r.db.WithContext(ctx).
			Where("manufacturer_id = ? AND code IN ?", manufacturerID, modCodes).
			Find(&mods).Error; err != nil {
			return nil, nil, err
		}
	}
	return catalog, mods, nil
}

// MarkAccepted moves an acceptable proposal to accepted. It reports false when
// the proposal was not in an acceptable state.
func (r *Repository) MarkAccepted(ctx context.Context, id int64, at time.Time, via enums.ActorType, byUserID *int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("id = ? AND status IN ?", id, enums.AcceptableStatuses()).
		Updates(map[string]any{
			"status":              enums.ProposalStatusAccepted,
			"accepted_at":         at,
			"accepted_via":        via,
			"accepted_by_user_id": byUserID,
			"updated_at":          at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkSent moves a draft proposal to sent. It reports false when the proposal
// was not a draft.
func (r *Repository) MarkSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("id = ? AND status = ?", id, enums.ProposalStatusDraft).
		Updates(map[string]any{
			"status":     enums.ProposalStatusSent,
			"sent_at":    at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func referencedCodes(items []types.ProposalItem) ([]string, []string) {
	seen := map[string]struct{}{}
	seenMods := map[string]struct{}{}
	var codes, modCodes []string
	for _, item := range items {
		if _, ok := seen[item.Code]; !ok {
			seen[item.Code] = struct{}{}
			codes = append(codes, item.Code)
		}
		for _, mod := range item.Modifications {
			if _, ok := seenMods[mod.Code]; !ok {
				seenMods[mod.Code] = struct{}{}
				modCodes = append(modCodes, mod.Code)
			}
		}
	}
	return codes, modCodes
}
