// Package branding reads document branding, falling back to configuration
// when no customization has been saved.
package branding

import (
	"context"
	"errors"
	"strings"

	"github.com/cabinetworks/contractor-backend/internal/documents"
	"github.com/cabinetworks/contractor-backend/pkg/config"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"gorm.io/gorm"
)

type Reader struct {
	db       *gorm.DB
	fallback config.BrandingConfig
}

func NewReader(db *gorm.DB, fallback config.BrandingConfig) *Reader {
	return &Reader{db: db, fallback: fallback}
}

// Current returns the most recently updated branding row merged over the
// configured defaults. Blank saved fields keep the default.
func (r *Reader) Current(ctx context.Context) (documents.Branding, error) {
	out := documents.Branding{
		CompanyName: r.fallback.CompanyName,
		HeaderText:  r.fallback.HeaderText,
		FooterText:  r.fallback.FooterText,
	}
	if r.db == nil {
		return out, nil
	}

	var row models.BrandingSetting
	err := r.db.WithContext(ctx).Order("updated_at DESC, id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, nil
	}
	if err != nil {
		return out, err
	}

	if v := strings.TrimSpace(row.CompanyName); v != "" {
		out.CompanyName = v
	}
	if v := strings.TrimSpace(row.HeaderText); v != "" {
		out.HeaderText = v
	}
	if v := strings.TrimSpace(row.FooterText); v != "" {
		out.FooterText = v
	}
	return out, nil
}
