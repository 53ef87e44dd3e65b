package seed

import (
	"context"

	"github.com/smallbiznis/subsync/internal/config"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	productdomain "github.com/smallbiznis/subsync/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("seed",
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, products productdomain.Service, prices pricedomain.Service) {
	if cfg.CatalogSeedFile == "" {
		return
	}
	log = log.Named("seed")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			catalog, err := LoadCatalog(cfg.CatalogSeedFile)
			if err != nil {
				return err
			}
			res, err := EnsureCatalog(ctx, products, prices, catalog)
			if err != nil {
				return err
			}
			log.Info("catalog seeded",
				zap.String("file", cfg.CatalogSeedFile),
				zap.Int("products_created", res.ProductsCreated),
				zap.Int("prices_created", res.PricesCreated),
			)
			return nil
		},
	})
}
