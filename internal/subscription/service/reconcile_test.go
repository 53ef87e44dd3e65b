package service

import (
	"context"
	"testing"
	"time"

	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileAppliesRemoteCancellation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.create(t, aliceID, basicPrice)

	result, err := h.svc.ReconcileSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.ReconcileUnchanged, result)

	h.fake.SetRemoteStatus(sub.ProviderSubscriptionID, providerdomain.RemoteStatusCanceled)
	h.clock.Advance(time.Hour)

	result, err = h.svc.ReconcileSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.ReconcileUpdated, result)

	row := h.reload(t, sub.ID)
	assert.Equal(t, subscriptiondomain.StatusCancelled, row.Status)
	require.NotNil(t, row.CancelledAt)

	result, err = h.svc.ReconcileSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.ReconcileUnchanged, result)
}

func TestReconcileMissingRemoteCancels(t *testing.T) {
	h := newHarness(t)
	sub := h.insertSubscription(t, aliceID, "sub_gone", subscriptiondomain.StatusActive)

	result, err := h.svc.ReconcileSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.ReconcileMissing, result)
	assert.Equal(t, subscriptiondomain.StatusCancelled, h.reload(t, sub.ID).Status)
}

func TestReconcileRecoversPaymentFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.create(t, aliceID, basicPrice)
	remote, _ := h.fake.Subscription(sub.ProviderSubscriptionID)

	h.apply(t, invoiceEvent("evt_fail", providerdomain.EventInvoicePaymentFailed,
		h.clock.Now().Add(time.Minute), sub.ProviderSubscriptionID, remote.CustomerID))
	require.Equal(t, subscriptiondomain.StatusIncomplete, h.reload(t, sub.ID).Status)

	// the remote stayed active, so the sweep restores access
	h.clock.Advance(time.Hour)
	result, err := h.svc.ReconcileSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.ReconcileUpdated, result)
	assert.Equal(t, subscriptiondomain.StatusActive, h.reload(t, sub.ID).Status)
}

func TestReconcileDoesNotOverrideNewerEvent(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote, _ := h.fake.Subscription(sub.ProviderSubscriptionID)

	// an event stamped after the sweep's observation time
	h.apply(t, invoiceEvent("evt_future", providerdomain.EventInvoicePaymentFailed,
		h.clock.Now().Add(time.Hour), sub.ProviderSubscriptionID, remote.CustomerID))

	result, err := h.svc.ReconcileSubscription(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.ReconcileUnchanged, result)
	assert.Equal(t, subscriptiondomain.StatusIncomplete, h.reload(t, sub.ID).Status)
}

func TestReconcileProviderFailure(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	h.fake.FailNext("retrieve_subscription", providerdomain.ErrProviderUnavailable)

	_, err := h.svc.ReconcileSubscription(context.Background(), sub.ID)
	require.Error(t, err)
	assert.Equal(t, subscriptiondomain.KindProviderUnavailable, subscriptiondomain.KindOf(err))
	assert.Equal(t, subscriptiondomain.StatusActive, h.reload(t, sub.ID).Status)

	_, err = h.svc.ReconcileSubscription(context.Background(), 42)
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)
}

func TestListForSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.create(t, aliceID, basicPrice)

	items, err := h.svc.ListForSweep(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	h.clock.Advance(h.svc.cfg().SweepStaleAfter + time.Minute)
	items, err = h.svc.ListForSweep(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, sub.ID, items[0].ID)

	_, err = h.svc.ReconcileSubscription(ctx, sub.ID)
	require.NoError(t, err)
	items, err = h.svc.ListForSweep(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}
