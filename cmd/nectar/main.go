package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nectar/internal/clock"
	"github.com/smallbiznis/nectar/internal/config"
	"github.com/smallbiznis/nectar/internal/fetcher"
	"github.com/smallbiznis/nectar/internal/migration"
	"github.com/smallbiznis/nectar/internal/observability"
	"github.com/smallbiznis/nectar/internal/scheduler"
	"github.com/smallbiznis/nectar/internal/scraper"
	"github.com/smallbiznis/nectar/internal/server"
	"github.com/smallbiznis/nectar/internal/store"
	"github.com/smallbiznis/nectar/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		store.Module,
		fetcher.Module,
		scraper.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(int64(cfg.SnowflakeNodeID))
	if err != nil {
		panic(err)
	}
	return node
}
