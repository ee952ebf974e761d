package branding

import (
	"context"
	"testing"
	"time"

	"github.com/cabinetworks/contractor-backend/internal/documents"
	"github.com/cabinetworks/contractor-backend/pkg/config"
	"github.com/cabinetworks/contractor-backend/pkg/db/dbtest"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fallback = config.BrandingConfig{CompanyName: "Cabinet Works", HeaderText: "Manufacturer Order", FooterText: "Thank you"}

func TestCurrentFallsBackWithoutRow(t *testing.T) {
	got, err := NewReader(dbtest.Open(t), fallback).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, documents.Branding{CompanyName: "Cabinet Works", HeaderText: "Manufacturer Order", FooterText: "Thank you"}, got)
}

func TestCurrentMergesLatestRow(t *testing.T) {
	conn := dbtest.Open(t)
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, conn.Create(&models.BrandingSetting{CompanyName: "Old Name", UpdatedAt: older}).Error)
	require.NoError(t, conn.Create(&models.BrandingSetting{CompanyName: "Northside Cabinets", HeaderText: "  ", UpdatedAt: older.AddDate(0, 6, 0)}).Error)

	got, err := NewReader(conn, fallback).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Northside Cabinets", got.CompanyName)
	assert.Equal(t, "Manufacturer Order", got.HeaderText, "blank saved fields keep the default")
	assert.Equal(t, "Thank you", got.FooterText)
}

func TestCurrentWithoutDatabase(t *testing.T) {
	got, err := NewReader(nil, fallback).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Cabinet Works", got.CompanyName)
}
