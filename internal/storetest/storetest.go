// Package storetest opens in-memory sqlite databases carrying the subsync schema.
package storetest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		provider_customer_id TEXT,
		default_payment_method_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_users_email ON users (LOWER(email))`,
	`CREATE UNIQUE INDEX ux_users_provider_customer_id ON users (provider_customer_id) WHERE provider_customer_id IS NOT NULL`,
	`CREATE TABLE products (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		provider_product_id TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE prices (
		id INTEGER PRIMARY KEY,
		product_id INTEGER NOT NULL REFERENCES products (id),
		provider_price_id TEXT NOT NULL UNIQUE,
		unit_amount INTEGER NOT NULL CHECK (unit_amount >= 0),
		currency TEXT NOT NULL,
		billing_interval TEXT NOT NULL CHECK (billing_interval IN ('day', 'week', 'month', 'year')),
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE subscriptions (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id),
		provider_subscription_id TEXT NOT NULL UNIQUE,
		price_id INTEGER NOT NULL REFERENCES prices (id),
		status TEXT NOT NULL CHECK (status IN ('ACTIVE', 'ACTIVE_UNTIL_END', 'INCOMPLETE', 'CANCELLED')),
		period_end DATETIME,
		last_event_at DATETIME,
		cancelled_at DATETIME,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_subscriptions_user_open ON subscriptions (user_id) WHERE status <> 'CANCELLED'`,
	`CREATE TABLE payment_methods (
		id INTEGER PRIMARY KEY,
		provider_customer_id TEXT NOT NULL,
		provider_payment_method_id TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE processed_events (
		id INTEGER PRIMARY KEY,
		provider TEXT NOT NULL,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		provider_subscription_id TEXT,
		outcome TEXT NOT NULL,
		payload TEXT,
		occurred_at DATETIME NOT NULL,
		processed_at DATETIME NOT NULL,
		UNIQUE (provider, event_id)
	)`,
}

var dbSeq atomic.Int64

// Open returns a fresh database with the full schema applied. Each call gets
// its own in-memory database pinned to a single connection.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:subsync_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// Fixture ids are fixed so tests can reference them without lookups.
const (
	UserID         int64 = 1001
	OtherUserID    int64 = 1002
	ProductID      int64 = 2001
	OtherProductID int64 = 2002
	BasicPriceID   int64 = 3001
	ProPriceID     int64 = 3002
	AddonPriceID   int64 = 3003
)

// SeedUser inserts a user row. customerID may be empty.
func SeedUser(t testing.TB, db *gorm.DB, id int64, email, customerID string) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var cust any
	if customerID != "" {
		cust = customerID
	}
	require.NoError(t, db.Exec(
		`INSERT INTO users (id, email, name, provider_customer_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, email, "", cust, now, now,
	).Error)
}

// SeedCatalog inserts two products: "pro-plan" with a monthly basic and pro
// price and "addon" with one yearly price.
func SeedCatalog(t testing.TB, db *gorm.DB) {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO products (id, code, name, description, provider_product_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{ProductID, "pro-plan", "Pro Plan", "everything", "prod_pro", now}},
		{`INSERT INTO products (id, code, name, description, provider_product_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{OtherProductID, "addon", "Addon", "", "prod_addon", now}},
		{`INSERT INTO prices (id, product_id, provider_price_id, unit_amount, currency, billing_interval, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{BasicPriceID, ProductID, "price_basic", 999, "USD", "month", now}},
		{`INSERT INTO prices (id, product_id, provider_price_id, unit_amount, currency, billing_interval, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{ProPriceID, ProductID, "price_pro", 1999, "USD", "month", now.Add(time.Hour)}},
		{`INSERT INTO prices (id, product_id, provider_price_id, unit_amount, currency, billing_interval, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{AddonPriceID, OtherProductID, "price_addon", 12000, "EUR", "year", now}},
	}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt.query, stmt.args...).Error)
	}
}
