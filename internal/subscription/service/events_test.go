package service

import (
	"context"
	"testing"
	"time"

	eventledgerdomain "github.com/smallbiznis/subsync/internal/eventledger/domain"
	"github.com/smallbiznis/subsync/internal/lock"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	"github.com/smallbiznis/subsync/internal/storetest"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remoteOf(t *testing.T, h *harness, sub subscriptiondomain.Subscription) providerdomain.RemoteSubscription {
	t.Helper()
	remote, ok := h.fake.Subscription(sub.ProviderSubscriptionID)
	require.True(t, ok)
	return remote
}

func TestScenarioD_DeletedEventIsAppliedOnce(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote := remoteOf(t, h, sub)
	remote.Status = providerdomain.RemoteStatusCanceled

	at := h.clock.Now().Add(time.Minute)
	event := subscriptionEvent("evt_deleted", providerdomain.EventSubscriptionDeleted, at, remote)

	first := h.apply(t, event)
	assert.Equal(t, eventledgerdomain.OutcomeApplied, first.Outcome)
	assert.Equal(t, subscriptiondomain.StatusCancelled, first.Status)
	assert.False(t, first.Duplicate)

	second := h.apply(t, event)
	assert.True(t, second.Duplicate)

	row := h.reload(t, sub.ID)
	assert.Equal(t, subscriptiondomain.StatusCancelled, row.Status)
	require.NotNil(t, row.CancelledAt)
	assert.True(t, row.CancelledAt.Equal(at))
	assert.Equal(t, sub.Version+1, row.Version)
	assert.EqualValues(t, 1, h.count(t, `SELECT COUNT(1) FROM processed_events WHERE event_id = ?`, "evt_deleted"))

	// the user may subscribe again once the old one is terminal
	again := h.create(t, aliceID, basicPrice)
	assert.NotEqual(t, sub.ID, again.ID)
	assert.NotEqual(t, sub.ProviderSubscriptionID, again.ProviderSubscriptionID)
}

func TestScenarioE_PaymentFailureThenRecovery(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote := remoteOf(t, h, sub)

	failed := h.apply(t, invoiceEvent("evt_failed", providerdomain.EventInvoicePaymentFailed,
		h.clock.Now().Add(time.Minute), sub.ProviderSubscriptionID, remote.CustomerID))
	assert.Equal(t, subscriptiondomain.StatusIncomplete, failed.Status)

	ok, err := h.svc.HasAccess(context.Background(), aliceID, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	succeeded := h.apply(t, invoiceEvent("evt_paid", providerdomain.EventInvoicePaymentSucceeded,
		h.clock.Now().Add(2*time.Minute), sub.ProviderSubscriptionID, remote.CustomerID))
	assert.Equal(t, eventledgerdomain.OutcomeApplied, succeeded.Outcome)
	assert.Equal(t, subscriptiondomain.StatusActive, succeeded.Status)
	assert.Equal(t, subscriptiondomain.StatusActive, h.reload(t, sub.ID).Status)
}

func TestScenarioF_OlderEventDeliveredLastIsIgnored(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote := remoteOf(t, h, sub)

	t1 := h.clock.Now().Add(time.Minute)
	t2 := h.clock.Now().Add(2 * time.Minute)

	newer := h.apply(t, invoiceEvent("evt_t2", providerdomain.EventInvoicePaymentSucceeded, t2, sub.ProviderSubscriptionID, remote.CustomerID))
	assert.Equal(t, eventledgerdomain.OutcomeNoop, newer.Outcome)

	older := h.apply(t, invoiceEvent("evt_t1", providerdomain.EventInvoicePaymentFailed, t1, sub.ProviderSubscriptionID, remote.CustomerID))
	assert.Equal(t, eventledgerdomain.OutcomeIgnoredStale, older.Outcome)

	row := h.reload(t, sub.ID)
	assert.Equal(t, subscriptiondomain.StatusActive, row.Status)
	require.NotNil(t, row.LastEventAt)
	assert.True(t, row.LastEventAt.Equal(t2))

	recorded, err := h.svc.ledger.Find(context.Background(), h.db, "fake", "evt_t1")
	require.NoError(t, err)
	require.NotNil(t, recorded)
	assert.Equal(t, eventledgerdomain.OutcomeIgnoredStale, recorded.Outcome)
}

func TestEventOlderThanUserActionIsStale(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote := remoteOf(t, h, sub)
	before := h.clock.Now().Add(-time.Minute)

	h.clock.Advance(time.Hour)
	_, err := h.svc.CancelSubscription(context.Background(), aliceID)
	require.NoError(t, err)

	result := h.apply(t, invoiceEvent("evt_old", providerdomain.EventInvoicePaymentFailed, before, sub.ProviderSubscriptionID, remote.CustomerID))
	assert.Equal(t, eventledgerdomain.OutcomeIgnoredStale, result.Outcome)
	assert.Equal(t, subscriptiondomain.StatusActiveUntilEnd, h.reload(t, sub.ID).Status)
}

func TestDeletionOlderThanUserActionStillCancels(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote := remoteOf(t, h, sub)
	deletedAt := h.clock.Now().Add(10 * time.Second)

	h.clock.Advance(20 * time.Second)
	cancelled, err := h.svc.CancelSubscription(context.Background(), aliceID)
	require.NoError(t, err)
	require.Equal(t, subscriptiondomain.StatusActiveUntilEnd, cancelled.Status)

	remote.Status = providerdomain.RemoteStatusCanceled
	result := h.apply(t, subscriptionEvent("evt_deleted_early", providerdomain.EventSubscriptionDeleted, deletedAt, remote))
	assert.Equal(t, eventledgerdomain.OutcomeApplied, result.Outcome)
	assert.Equal(t, subscriptiondomain.StatusCancelled, result.Status)

	row := h.reload(t, sub.ID)
	assert.Equal(t, subscriptiondomain.StatusCancelled, row.Status)
	require.NotNil(t, row.CancelledAt)
	assert.True(t, row.CancelledAt.Equal(deletedAt))
	require.NotNil(t, row.LastEventAt)
	assert.True(t, row.LastEventAt.Equal(h.clock.Now()), "last_event_at must not move back")

	ok, err := h.svc.HasAccess(context.Background(), aliceID, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProviderEventInSameSecondAsUserActionApplies(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote := remoteOf(t, h, sub)

	// provider timestamps have whole-second resolution
	h.clock.Advance(time.Minute + 700*time.Millisecond)
	second := h.clock.Now().Truncate(time.Second)
	_, err := h.svc.UpdateSubscription(context.Background(), aliceID, subscriptiondomain.UpdateSubscriptionRequest{PriceID: proPrice.String()})
	require.NoError(t, err)

	row := h.reload(t, sub.ID)
	require.NotNil(t, row.LastEventAt)
	assert.True(t, row.LastEventAt.Equal(second))

	result := h.apply(t, invoiceEvent("evt_proration_failed", providerdomain.EventInvoicePaymentFailed,
		second, sub.ProviderSubscriptionID, remote.CustomerID))
	assert.Equal(t, eventledgerdomain.OutcomeApplied, result.Outcome)
	assert.Equal(t, subscriptiondomain.StatusIncomplete, h.reload(t, sub.ID).Status)

	// a full second earlier is still stale
	older := h.apply(t, invoiceEvent("evt_before_update", providerdomain.EventInvoicePaymentSucceeded,
		second.Add(-time.Second), sub.ProviderSubscriptionID, remote.CustomerID))
	assert.Equal(t, eventledgerdomain.OutcomeIgnoredStale, older.Outcome)
}

func TestEventsOnCancelledSubscriptionAreNoops(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote := remoteOf(t, h, sub)

	h.apply(t, subscriptionEvent("evt_del", providerdomain.EventSubscriptionDeleted, h.clock.Now().Add(time.Minute), remote))
	result := h.apply(t, invoiceEvent("evt_paid_late", providerdomain.EventInvoicePaymentSucceeded,
		h.clock.Now().Add(2*time.Minute), sub.ProviderSubscriptionID, remote.CustomerID))

	assert.Equal(t, eventledgerdomain.OutcomeNoop, result.Outcome)
	assert.Equal(t, subscriptiondomain.StatusCancelled, h.reload(t, sub.ID).Status)
}

func TestUpdatedEventsScheduleAndClearCancellation(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote := remoteOf(t, h, sub)

	scheduled := remote
	scheduled.CancelAtPeriodEnd = true
	result := h.apply(t, subscriptionEvent("evt_sched", providerdomain.EventSubscriptionUpdated, h.clock.Now().Add(time.Minute), scheduled))
	assert.Equal(t, subscriptiondomain.StatusActiveUntilEnd, result.Status)
	row := h.reload(t, sub.ID)
	require.NotNil(t, row.PeriodEnd)
	assert.True(t, row.PeriodEnd.Equal(*remote.PeriodEnd))

	// clearing the flag on a new price adopts the catalog price
	cleared := remote
	cleared.PriceID = "price_pro"
	result = h.apply(t, subscriptionEvent("evt_clear", providerdomain.EventSubscriptionUpdated, h.clock.Now().Add(2*time.Minute), cleared))
	assert.Equal(t, eventledgerdomain.OutcomeApplied, result.Outcome)
	row = h.reload(t, sub.ID)
	assert.Equal(t, subscriptiondomain.StatusActive, row.Status)
	assert.Equal(t, proPrice, row.PriceID)
	assert.Nil(t, row.PeriodEnd)

	// unknown provider prices keep the current one
	cleared.PriceID = "price_unknown"
	result = h.apply(t, subscriptionEvent("evt_unknown_price", providerdomain.EventSubscriptionUpdated, h.clock.Now().Add(3*time.Minute), cleared))
	assert.Equal(t, eventledgerdomain.OutcomeNoop, result.Outcome)
	assert.Equal(t, proPrice, h.reload(t, sub.ID).PriceID)
}

func TestPaymentFailedIgnoredWhilePendingCancel(t *testing.T) {
	h := newHarness(t)
	sub := h.create(t, aliceID, basicPrice)
	remote := remoteOf(t, h, sub)
	_, err := h.svc.CancelSubscription(context.Background(), aliceID)
	require.NoError(t, err)

	result := h.apply(t, invoiceEvent("evt_fail_aue", providerdomain.EventInvoicePaymentFailed,
		h.clock.Now().Add(time.Minute), sub.ProviderSubscriptionID, remote.CustomerID))
	assert.Equal(t, eventledgerdomain.OutcomeIgnored, result.Outcome)
	assert.Equal(t, subscriptiondomain.StatusActiveUntilEnd, h.reload(t, sub.ID).Status)
}

func TestUnmatchedEvents(t *testing.T) {
	h := newHarness(t)
	storetest.SeedUser(t, h.db, storetest.OtherUserID, "bob@example.com", "cus_bob")

	t.Run("unknown customer is recorded and ignored", func(t *testing.T) {
		result := h.apply(t, invoiceEvent("evt_stranger", providerdomain.EventInvoicePaymentSucceeded,
			h.clock.Now(), "sub_stranger", "cus_stranger"))
		assert.Equal(t, eventledgerdomain.OutcomeIgnored, result.Outcome)
		assert.EqualValues(t, 1, h.count(t, `SELECT COUNT(1) FROM processed_events WHERE event_id = ?`, "evt_stranger"))
	})

	t.Run("known customer without local row asks for redelivery", func(t *testing.T) {
		_, err := h.svc.ApplyProviderEvent(context.Background(), invoiceEvent("evt_early", providerdomain.EventInvoicePaymentSucceeded,
			h.clock.Now(), "sub_not_yet", "cus_bob"))
		require.ErrorIs(t, err, subscriptiondomain.ErrUnmatchedEvent)
		assert.Equal(t, subscriptiondomain.KindConflict, subscriptiondomain.KindOf(err))
		assert.Zero(t, h.count(t, `SELECT COUNT(1) FROM processed_events WHERE event_id = ?`, "evt_early"))
	})

	t.Run("invoice without subscription is ignored", func(t *testing.T) {
		result := h.apply(t, invoiceEvent("evt_one_off", providerdomain.EventInvoicePaymentSucceeded, h.clock.Now(), "", "cus_bob"))
		assert.Equal(t, eventledgerdomain.OutcomeIgnored, result.Outcome)
	})

	t.Run("invalid events are rejected", func(t *testing.T) {
		_, err := h.svc.ApplyProviderEvent(context.Background(), providerdomain.Event{Provider: "fake", Type: providerdomain.EventCustomerCreated})
		assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidEvent)
	})
}

func TestEventWaitsForInFlightCreate(t *testing.T) {
	h := newHarness(t)
	storetest.SeedUser(t, h.db, storetest.OtherUserID, "bob@example.com", "cus_bob")
	ctx := context.Background()

	unlock, err := h.svc.locker.Lock(ctx, lock.UserKey(bobID))
	require.NoError(t, err)

	type outcome struct {
		result subscriptiondomain.ApplyResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := h.svc.ApplyProviderEvent(ctx, subscriptionEvent("evt_race", providerdomain.EventSubscriptionDeleted,
			h.clock.Now().Add(time.Minute),
			providerdomain.RemoteSubscription{ID: "sub_race", CustomerID: "cus_bob", Status: providerdomain.RemoteStatusCanceled}))
		done <- outcome{result, err}
	}()

	select {
	case <-done:
		t.Fatal("event applied while the user lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	sub := h.insertSubscription(t, bobID, "sub_race", subscriptiondomain.StatusActive)
	unlock()

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, eventledgerdomain.OutcomeApplied, got.result.Outcome)
	assert.Equal(t, subscriptiondomain.StatusCancelled, h.reload(t, sub.ID).Status)
}

func TestCustomerCreatedLinksUnlinkedUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event := providerdomain.Event{
		ID:         "evt_cus",
		Provider:   "fake",
		Type:       providerdomain.EventCustomerCreated,
		OccurredAt: h.clock.Now(),
		Data:       providerdomain.CustomerData{CustomerID: "cus_dashboard", Email: "Alice@Example.com"},
	}

	result := h.apply(t, event)
	assert.Equal(t, eventledgerdomain.OutcomeApplied, result.Outcome)
	assert.True(t, h.apply(t, event).Duplicate)

	user, err := h.svc.customersvc.GetUser(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, "cus_dashboard", user.CustomerID())

	event.ID = "evt_cus_2"
	event.Data = providerdomain.CustomerData{CustomerID: "cus_other", Email: "alice@example.com"}
	assert.Equal(t, eventledgerdomain.OutcomeNoop, h.apply(t, event).Outcome)
	user, err = h.svc.customersvc.GetUser(ctx, aliceID)
	require.NoError(t, err)
	assert.Equal(t, "cus_dashboard", user.CustomerID())

	event.ID = "evt_cus_3"
	event.Data = providerdomain.CustomerData{CustomerID: "cus_nobody", Email: "nobody@example.com"}
	assert.Equal(t, eventledgerdomain.OutcomeIgnored, h.apply(t, event).Outcome)
}

func TestPaymentMethodAttachedIsReusedLocally(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	storetest.SeedUser(t, h.db, storetest.OtherUserID, "bob@example.com", "cus_bob")
	h.fake.SeedCustomer("cus_bob", "bob@example.com")

	event := providerdomain.Event{
		ID:         "evt_pm",
		Provider:   "fake",
		Type:       providerdomain.EventPaymentMethodAttached,
		OccurredAt: h.clock.Now(),
		Data:       providerdomain.PaymentMethodData{PaymentMethodID: "pm_dashboard", CustomerID: "cus_bob"},
	}
	assert.Equal(t, eventledgerdomain.OutcomeApplied, h.apply(t, event).Outcome)
	assert.True(t, h.apply(t, event).Duplicate)
	assert.EqualValues(t, 1, h.count(t, `SELECT COUNT(1) FROM payment_methods WHERE provider_payment_method_id = ?`, "pm_dashboard"))

	bob, err := h.svc.customersvc.GetUser(ctx, bobID)
	require.NoError(t, err)
	bob, err = h.svc.customersvc.AttachPaymentMethod(ctx, bob, "pm_dashboard")
	require.NoError(t, err)
	assert.Equal(t, "pm_dashboard", bob.DefaultPaymentMethod())
	assert.Zero(t, h.fake.Calls("attach_payment_method"))
	assert.Equal(t, 1, h.fake.Calls("set_default_payment_method"))
}

func TestUnhandledEventTypeIsRecorded(t *testing.T) {
	h := newHarness(t)
	event := providerdomain.Event{
		ID:         "evt_charge",
		Provider:   "fake",
		Type:       "charge.refunded",
		OccurredAt: h.clock.Now(),
		Data:       providerdomain.UnhandledData{},
	}

	assert.Equal(t, eventledgerdomain.OutcomeUnhandled, h.apply(t, event).Outcome)
	assert.True(t, h.apply(t, event).Duplicate)
}
