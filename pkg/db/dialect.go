package db

import (
	"fmt"
	"net"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/subsync/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Dialect picks the gorm dialector for DATABASE_TYPE. Connection strings are
// validated here so a bad DSN fails at startup, not on first query.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case "postgres", "postgresql":
		dsn := postgresDSN(cfg)
		if _, err := pgconn.ParseConfig(dsn); err != nil {
			return nil, fmt.Errorf("postgres dsn: %w", err)
		}
		return postgres.New(postgres.Config{DSN: dsn}), nil
	case "mysql":
		return mysql.Open(mysqlDSN(cfg)), nil
	case "sqlite":
		name := strings.TrimSpace(cfg.DBName)
		if name == "" {
			return nil, fmt.Errorf("sqlite database name is required")
		}
		if name != ":memory:" && !strings.HasSuffix(name, ".db") {
			name += ".db"
		}
		return sqlite.Open(name), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DBType)
	}
}

func postgresDSN(cfg config.Config) string {
	sslMode := strings.TrimSpace(cfg.DBSSLMode)
	if sslMode == "" {
		sslMode = "disable"
	}
	parts := []string{
		"host=" + quoteDSNValue(cfg.DBHost),
		"port=" + quoteDSNValue(cfg.DBPort),
		"dbname=" + quoteDSNValue(cfg.DBName),
		"user=" + quoteDSNValue(cfg.DBUser),
		"sslmode=" + sslMode,
		"TimeZone=UTC",
		"application_name=" + quoteDSNValue(applicationName(cfg)),
	}
	if cfg.DBPassword != "" {
		parts = append(parts, "password="+quoteDSNValue(cfg.DBPassword))
	}
	return strings.Join(parts, " ")
}

// quoteDSNValue quotes libpq keyword values that contain spaces or quotes.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func mysqlDSN(cfg config.Config) string {
	mc := mysqldriver.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func applicationName(cfg config.Config) string {
	if name := strings.TrimSpace(cfg.AppName); name != "" {
		return name
	}
	return "subsync"
}

// ForUpdate is the row lock suffix for the reads that precede a guarded
// write. SQLite serializes writers itself and rejects the clause.
func ForUpdate(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return ""
	}
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		return " FOR UPDATE"
	default:
		return ""
	}
}
