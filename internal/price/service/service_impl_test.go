package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	pricerepo "github.com/smallbiznis/subsync/internal/price/repository"
	productrepo "github.com/smallbiznis/subsync/internal/product/repository"
	"github.com/smallbiznis/subsync/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) pricedomain.Service {
	t.Helper()
	db := storetest.Open(t)
	storetest.SeedCatalog(t, db)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        pricerepo.Provide(),
		ProductRepo: productrepo.Provide(),
	})
}

func TestResolvePriceReturnsEarliestPrice(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.ResolvePrice(context.Background(), snowflake.ID(storetest.ProductID))
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(storetest.BasicPriceID), got.ID)
	assert.Equal(t, "price_basic", got.ProviderPriceID)

	_, err = svc.ResolvePrice(context.Background(), snowflake.ID(999))
	assert.ErrorIs(t, err, pricedomain.ErrNotFound)
}

func TestGetByProviderPriceID(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.GetByProviderPriceID(context.Background(), "price_pro")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(storetest.ProPriceID), got.ID)

	_, err = svc.GetByProviderPriceID(context.Background(), "price_missing")
	assert.ErrorIs(t, err, pricedomain.ErrNotFound)
}

func TestCreateValidatesMinorUnitsAndCurrency(t *testing.T) {
	svc := newTestService(t)
	productID := snowflake.ID(storetest.ProductID).String()

	cases := []struct {
		name string
		req  pricedomain.CreateRequest
		err  error
	}{
		{"negative amount", pricedomain.CreateRequest{ProductID: productID, ProviderPriceID: "p1", UnitAmount: -1, Currency: "USD", Interval: "month"}, pricedomain.ErrInvalidUnitAmount},
		{"unknown currency", pricedomain.CreateRequest{ProductID: productID, ProviderPriceID: "p1", UnitAmount: 100, Currency: "ZZQ", Interval: "month"}, pricedomain.ErrInvalidCurrency},
		{"long currency", pricedomain.CreateRequest{ProductID: productID, ProviderPriceID: "p1", UnitAmount: 100, Currency: "USDX", Interval: "month"}, pricedomain.ErrInvalidCurrency},
		{"bad interval", pricedomain.CreateRequest{ProductID: productID, ProviderPriceID: "p1", UnitAmount: 100, Currency: "USD", Interval: "quarter"}, pricedomain.ErrInvalidInterval},
		{"missing provider id", pricedomain.CreateRequest{ProductID: productID, UnitAmount: 100, Currency: "USD", Interval: "month"}, pricedomain.ErrInvalidProviderID},
		{"unknown product", pricedomain.CreateRequest{ProductID: "12345", ProviderPriceID: "p1", UnitAmount: 100, Currency: "USD", Interval: "month"}, pricedomain.ErrInvalidProduct},
		{"duplicate provider id", pricedomain.CreateRequest{ProductID: productID, ProviderPriceID: "price_basic", UnitAmount: 100, Currency: "USD", Interval: "month"}, pricedomain.ErrDuplicatePrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestCreateNormalizesCurrency(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Create(context.Background(), pricedomain.CreateRequest{
		ProductID:       snowflake.ID(storetest.OtherProductID).String(),
		ProviderPriceID: "price_addon_monthly",
		UnitAmount:      1050,
		Currency:        "eur",
		Interval:        "Month",
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", resp.Currency)
	assert.Equal(t, "month", resp.Interval)
	assert.Equal(t, "10.50", resp.Amount)
}
