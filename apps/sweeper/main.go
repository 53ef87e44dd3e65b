package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/clock"
	"github.com/smallbiznis/subsync/internal/config"
	"github.com/smallbiznis/subsync/internal/customer"
	"github.com/smallbiznis/subsync/internal/eventledger"
	"github.com/smallbiznis/subsync/internal/lock"
	"github.com/smallbiznis/subsync/internal/metricspush"
	"github.com/smallbiznis/subsync/internal/observability"
	"github.com/smallbiznis/subsync/internal/price"
	"github.com/smallbiznis/subsync/internal/product"
	"github.com/smallbiznis/subsync/internal/provider"
	"github.com/smallbiznis/subsync/internal/subscription"
	"github.com/smallbiznis/subsync/internal/sweeper"
	"github.com/smallbiznis/subsync/pkg/db"
	"go.uber.org/fx"
)

// Runs only the reconciliation sweeper. Pair it with REDIS_ENABLED=true when
// an API process serves the same database, so both share the user locks.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		// Domain services required by the engine
		provider.Module,
		customer.Module,
		price.Module,
		product.Module,
		eventledger.Module,
		subscription.Module,

		// No server module!
		sweeper.Module,
		metricspush.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
