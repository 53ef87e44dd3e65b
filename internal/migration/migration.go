package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const migrationsTable = "subsync_schema_migrations"

// ErrDirtySchema means a previous run failed halfway. It needs a manual
// `migrate force` before the service can start.
var ErrDirtySchema = errors.New("dirty_schema")

// RunMigrations applies the embedded postgres schema and returns the
// resulting version.
func RunMigrations(db *sql.DB, log *zap.Logger) (uint, error) {
	if db == nil {
		return 0, errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return 0, fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return 0, fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable:  migrationsTable,
		StatementTimeout: time.Minute,
	})
	if err != nil {
		return 0, fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	// migrator.Close would close the shared *sql.DB.

	before, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return before, fmt.Errorf("%w at version %d", ErrDirtySchema, before)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fields := []zap.Field{zap.Error(err)}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			fields = append(fields, zap.String("pg_code", string(pqErr.Code)), zap.String("pg_table", pqErr.Table))
		}
		log.Error("schema migration failed", fields...)
		return before, fmt.Errorf("apply migrations: %w", err)
	}

	after, _, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if after != before {
		log.Info("schema migrated", zap.Uint("from", before), zap.Uint("to", after))
	}
	return after, nil
}
