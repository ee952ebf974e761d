package migrate

import (
	"context"
	"fmt"

	"github.com/cabinetworks/contractor-backend/pkg/config"
	"github.com/cabinetworks/contractor-backend/pkg/db"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations when running in dev with
// CONTRACTOR_AUTO_MIGRATE enabled. Other environments migrate
// through cmd/migrate before the API rolls out.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": EmbeddedDir})
	if err := ValidateFS(Embedded()); err != nil {
		return fmt.Errorf("embedded migrations invalid: %w", err)
	}
	if err := Run(ctx, sqlDB, EmbeddedDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	version, err := Version(ctx, sqlDB)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "migrations.applied")
	return nil
}
