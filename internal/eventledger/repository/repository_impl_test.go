package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/subsync/internal/eventledger/domain"
	"github.com/smallbiznis/subsync/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestRecordIsWriteOnce(t *testing.T) {
	db := storetest.Open(t)
	repo := Provide()
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	subID := "sub_1"

	first := &domain.ProcessedEvent{
		ID:                     1,
		Provider:               "stripe",
		EventID:                "evt_1",
		EventType:              "invoice.payment_failed",
		ProviderSubscriptionID: &subID,
		Outcome:                domain.OutcomeApplied,
		Payload:                datatypes.JSON(`{"id":"evt_1"}`),
		OccurredAt:             now,
		ProcessedAt:            now,
	}
	inserted, err := repo.Record(ctx, db, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *first
	dup.ID = 2
	dup.Outcome = domain.OutcomeNoop
	inserted, err = repo.Record(ctx, db, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	// same id under another provider is a different event
	other := *first
	other.ID = 3
	other.Provider = "fake"
	inserted, err = repo.Record(ctx, db, &other)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := repo.Find(ctx, db, "stripe", "evt_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.OutcomeApplied, got.Outcome)

	missing, err := repo.Find(ctx, db, "stripe", "evt_404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	events, err := repo.ListBySubscription(ctx, db, subID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
