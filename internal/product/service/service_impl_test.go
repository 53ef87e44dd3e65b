package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	pricerepo "github.com/smallbiznis/subsync/internal/price/repository"
	"github.com/smallbiznis/subsync/internal/product/domain"
	productrepo "github.com/smallbiznis/subsync/internal/product/repository"
	"github.com/smallbiznis/subsync/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	db := storetest.Open(t)
	storetest.SeedCatalog(t, db)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      productrepo.Provide(),
		PriceRepo: pricerepo.Provide(),
	})
}

func TestListIncludesPrices(t *testing.T) {
	svc := newTestService(t)

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "pro-plan", items[0].Code)
	require.Len(t, items[0].Prices, 2)
	assert.Equal(t, "9.99", items[0].Prices[0].Amount)
	assert.Equal(t, "19.99", items[0].Prices[1].Amount)

	assert.Equal(t, "addon", items[1].Code)
	require.Len(t, items[1].Prices, 1)
	assert.Equal(t, "120.00", items[1].Prices[0].Amount)
}

func TestCreateSlugifiesCode(t *testing.T) {
	svc := newTestService(t)

	resp, err := svc.Create(context.Background(), domain.CreateRequest{
		Name:              "Team Plan",
		ProviderProductID: "prod_team",
	})
	require.NoError(t, err)
	assert.Equal(t, "team-plan", resp.Code)
	assert.Empty(t, resp.Prices)

	_, err = svc.Create(context.Background(), domain.CreateRequest{
		Name:              "Team Plan",
		ProviderProductID: "prod_team_2",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateProduct)

	_, err = svc.Create(context.Background(), domain.CreateRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidProviderID)
}

func TestResolveRefsByCodeAndID(t *testing.T) {
	svc := newTestService(t)

	ids, err := svc.ResolveRefs(context.Background(), []string{"Pro Plan", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{snowflake.ID(storetest.ProductID)}, ids)

	ids, err = svc.ResolveRefs(context.Background(), []string{snowflake.ID(storetest.OtherProductID).String()})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{snowflake.ID(storetest.OtherProductID)}, ids)

	ids, err = svc.ResolveRefs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
