package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/clock"
	"github.com/smallbiznis/subsync/internal/config"
	customerrepo "github.com/smallbiznis/subsync/internal/customer/repository"
	customerservice "github.com/smallbiznis/subsync/internal/customer/service"
	ledgerrepo "github.com/smallbiznis/subsync/internal/eventledger/repository"
	"github.com/smallbiznis/subsync/internal/lock"
	pricerepo "github.com/smallbiznis/subsync/internal/price/repository"
	priceservice "github.com/smallbiznis/subsync/internal/price/service"
	productrepo "github.com/smallbiznis/subsync/internal/product/repository"
	productservice "github.com/smallbiznis/subsync/internal/product/service"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	"github.com/smallbiznis/subsync/internal/provider/fake"
	"github.com/smallbiznis/subsync/internal/storetest"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/subsync/internal/subscription/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	aliceID    = snowflake.ID(storetest.UserID)
	bobID      = snowflake.ID(storetest.OtherUserID)
	productID  = snowflake.ID(storetest.ProductID)
	basicPrice = snowflake.ID(storetest.BasicPriceID)
	proPrice   = snowflake.ID(storetest.ProPriceID)
)

type harness struct {
	svc   *Service
	db    *gorm.DB
	fake  *fake.Gateway
	clock *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	gw := fake.New(clk.Now)
	h := newHarnessWithGateway(t, gw, clk, config.DefaultReconcileConfig())
	h.fake = gw
	return h
}

func newHarnessWithGateway(t *testing.T, gw providerdomain.Gateway, clk *clock.FakeClock, cfg config.ReconcileConfig) *harness {
	t.Helper()
	db := storetest.Open(t)
	storetest.SeedCatalog(t, db)
	storetest.SeedUser(t, db, storetest.UserID, "alice@example.com", "")

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	users := customerrepo.Provide()
	prices := pricerepo.Provide()
	products := productrepo.Provide()

	svc := NewService(ServiceParam{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Repo:    subscriptionrepo.Provide(),
		Ledger:  ledgerrepo.Provide(),
		Users:   users,
		Locker:  lock.NewKeyedMutex(),
		Gateway: gw,
		Config:  config.NewStaticReconcileConfigHolder(cfg),
		Customersvc: customerservice.New(customerservice.Params{
			DB: db, Log: log, GenID: node, Repo: users, Gateway: gw, Clock: clk,
		}),
		Pricesvc: priceservice.New(priceservice.Params{
			DB: db, Log: log, GenID: node, Repo: prices, ProductRepo: products,
		}),
		Productsvc: productservice.New(productservice.Params{
			DB: db, Log: log, GenID: node, Repo: products, PriceRepo: prices,
		}),
	}).(*Service)

	return &harness{svc: svc, db: db, clock: clk}
}

func (h *harness) create(t *testing.T, userID, priceID snowflake.ID) subscriptiondomain.Subscription {
	t.Helper()
	sub, err := h.svc.CreateSubscription(context.Background(), userID, subscriptiondomain.CreateSubscriptionRequest{
		PriceID:         priceID.String(),
		PaymentMethodID: "pm_card_visa",
	})
	require.NoError(t, err)
	return sub
}

func (h *harness) reload(t *testing.T, id snowflake.ID) subscriptiondomain.Subscription {
	t.Helper()
	sub, err := h.svc.repo.FindByID(context.Background(), h.db, id)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return *sub
}

func (h *harness) apply(t *testing.T, event providerdomain.Event) subscriptiondomain.ApplyResult {
	t.Helper()
	result, err := h.svc.ApplyProviderEvent(context.Background(), event)
	require.NoError(t, err)
	return result
}

func (h *harness) count(t *testing.T, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Raw(query, args...).Scan(&n).Error)
	return n
}

// insertSubscription writes a row directly, bypassing the provider.
func (h *harness) insertSubscription(t *testing.T, userID snowflake.ID, providerID string, status subscriptiondomain.SubscriptionStatus) subscriptiondomain.Subscription {
	t.Helper()
	now := h.clock.Now()
	sub := subscriptiondomain.Subscription{
		ID:                     h.svc.genID.Generate(),
		UserID:                 userID,
		ProviderSubscriptionID: providerID,
		PriceID:                basicPrice,
		Status:                 status,
		Version:                1,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	require.NoError(t, h.svc.repo.Insert(context.Background(), h.db, &sub))
	return sub
}

func subscriptionEvent(id string, typ providerdomain.EventType, at time.Time, remote providerdomain.RemoteSubscription) providerdomain.Event {
	return providerdomain.Event{
		ID:         id,
		Provider:   fake.ProviderName,
		Type:       typ,
		OccurredAt: at,
		Data:       providerdomain.SubscriptionData{Subscription: remote},
		Raw:        []byte(`{"id":"` + id + `"}`),
	}
}

func invoiceEvent(id string, typ providerdomain.EventType, at time.Time, subscriptionID, customerID string) providerdomain.Event {
	return providerdomain.Event{
		ID:         id,
		Provider:   fake.ProviderName,
		Type:       typ,
		OccurredAt: at,
		Data: providerdomain.InvoiceData{
			InvoiceID:      "in_" + id,
			CustomerID:     customerID,
			SubscriptionID: subscriptionID,
		},
	}
}
