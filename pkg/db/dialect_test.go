package db

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/subsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectPicksDriver(t *testing.T) {
	tests := []struct {
		dbType string
		name   string
	}{
		{"postgres", "postgres"},
		{"PostgreSQL", "postgres"},
		{"mysql", "mysql"},
		{"sqlite", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			d, err := Dialect(config.Config{DBType: tt.dbType, DBHost: "localhost", DBPort: "5432", DBName: "subsync"})
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.ErrorContains(t, err, "oracle")

	_, err = Dialect(config.Config{DBType: "sqlite"})
	assert.Error(t, err)
}

func TestPostgresDSNQuotesValues(t *testing.T) {
	dsn := postgresDSN(config.Config{
		AppName:    "subsync-sweeper",
		DBHost:     "db.internal",
		DBPort:     "5433",
		DBName:     "subsync",
		DBUser:     "app",
		DBPassword: "p@ss 'word'",
	})

	parsed, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", parsed.Host)
	assert.Equal(t, uint16(5433), parsed.Port)
	assert.Equal(t, "subsync", parsed.Database)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss 'word'", parsed.Password)
	assert.Equal(t, "subsync-sweeper", parsed.RuntimeParams["application_name"])
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(config.Config{DBHost: "mysql", DBPort: "3306", DBName: "subsync", DBUser: "app", DBPassword: "secret"})
	assert.Contains(t, dsn, "app:secret@tcp(mysql:3306)/subsync?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestForUpdateNilSafe(t *testing.T) {
	assert.Empty(t, ForUpdate(nil))
}
