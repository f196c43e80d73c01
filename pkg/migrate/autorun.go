package migrate

import (
	"context"
	"fmt"

	"github.com/neferdidi/boba-backend/pkg/config"
	"github.com/neferdidi/boba-backend/pkg/db"
	"github.com/neferdidi/boba-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations at boot when auto-migrate is enabled
// and the process runs in dev or against sqlite. Postgres outside dev is
// migrated with cmd/migrate only.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.FeatureFlags.AutoMigrate || (!cfg.App.IsDev() && !cfg.DB.IsSQLite()) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	before, err := Version(ctx, sqlDB, cfg.DB.Driver)
	if err != nil {
		return err
	}
	if err := Up(ctx, sqlDB, cfg.DB.Driver); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	after, err := Version(ctx, sqlDB, cfg.DB.Driver)
	if err != nil {
		return err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"from_version": before,
		"to_version":   after,
	}), "schema migrated")
	return nil
}
