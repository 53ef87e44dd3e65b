package migration

import (
	"github.com/smallbiznis/subsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(migrateOnStart),
)

// migrateOnStart runs before the server and sweeper start. Other dialects get their
// schema from the test helper or from an operator.
func migrateOnStart(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if !cfg.DBAutoMigrate {
		return nil
	}
	log = log.Named("migration")
	if conn.Dialector.Name() != "postgres" {
		log.Warn("skipping migrations for non-postgres database", zap.String("type", cfg.DBType))
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	version, err := RunMigrations(sqlDB, log)
	if err != nil {
		return err
	}
	log.Info("schema ready", zap.Uint("version", version))
	return nil
}
