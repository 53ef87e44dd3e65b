package db

import (
	"context"
	"fmt"

	"github.com/smallbiznis/subsync/internal/config"
	obslogger "github.com/smallbiznis/subsync/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

// Open connects to the configured database with tracing, pool stats and zap query logging.
func Open(lc fx.Lifecycle, appCfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(appCfg)
	if err != nil {
		return nil, err
	}
	cfg := configFrom(appCfg)

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(log, gormLoggerConfig(appCfg)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.Name))); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.Name,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, fmt.Errorf("register prometheus plugin: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(context.Context) error {
			log.Info("closing database")
			return sqlDB.Close()
		},
	})

	log.Info("database configured", zap.String("type", cfg.Type), zap.String("name", cfg.Name))
	return conn, nil
}

func gormLoggerConfig(appCfg config.Config) obslogger.GormLoggerConfig {
	cfg := obslogger.DefaultGormLoggerConfig()
	cfg.Expected = IsDuplicateKeyErr
	if appCfg.DBLogQueries {
		cfg.Level = gormlogger.Info
	}
	return cfg
}
