package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/clock"
	"github.com/smallbiznis/subsync/internal/config"
	"github.com/smallbiznis/subsync/internal/lock"
	"github.com/smallbiznis/subsync/internal/migration"
	"github.com/smallbiznis/subsync/internal/observability"
	"github.com/smallbiznis/subsync/internal/seed"
	"github.com/smallbiznis/subsync/internal/server"
	"github.com/smallbiznis/subsync/internal/sweeper"
	"github.com/smallbiznis/subsync/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		// HTTP surface plus the domain modules it serves
		server.Module,
		seed.Module,

		// Background reconciliation
		sweeper.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
