package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsDuplicateKeyErr(&pq.Error{Code: "23505"}))
	assert.False(t, IsDuplicateKeyErr(&pq.Error{Code: "23503"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: subscriptions.provider_subscription_id")))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062 (23000): Duplicate entry")))
}
