package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/orderstock-backend/pkg/config"
	"github.com/angelmondragon/orderstock-backend/pkg/db"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
)

// MaybeRunDev applies migrations and loads the reference catalog in dev,
// each behind its own feature flag. Other environments are never touched.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	flags := cfg.FeatureFlags
	if !cfg.App.IsDev() || (!flags.AutoMigrate && !flags.SeedReferenceData) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})

	if flags.AutoMigrate {
		logg.Info(ctx, "running Goose migrations (dev auto-run)")
		if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
			return fmt.Errorf("running goose up: %w", err)
		}
		logg.Info(ctx, "Goose migrations completed")
	}

	if flags.SeedReferenceData {
		if err := SeedReferenceData(ctx, sqlDB); err != nil {
			return fmt.Errorf("seeding reference data: %w", err)
		}
		logg.Info(ctx, "reference catalog seeded")
	}
	return nil
}
