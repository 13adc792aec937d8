package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/db"
	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

// skipAutoRun explains why a boot should leave the schema alone. An empty
// result means the embedded migrations should be applied.
func skipAutoRun(cfg *config.Config) string {
	switch {
	case !cfg.FeatureFlags.AutoMigrate:
		return "auto migrate disabled"
	case !cfg.App.IsDev():
		return "auto migrate is dev only"
	case cfg.DB.Driver != "" && !strings.EqualFold(cfg.DB.Driver, db.DriverPostgres):
		return "embedded migrations target postgres"
	}
	return ""
}

// MaybeRunDev brings a dev database up to the embedded migrations when
// ELOCALPASS_AUTO_MIGRATE is set. Every other environment is left untouched.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if reason := skipAutoRun(cfg); reason != "" {
		logg.Debug(logg.WithField(ctx, "reason", reason), "migrate.autorun.skipped")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return err
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "migrate.autorun.done")
	return nil
}
