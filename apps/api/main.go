package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/migration"
	"github.com/smallbiznis/tirta/internal/observability"
	"github.com/smallbiznis/tirta/internal/server"
	"github.com/smallbiznis/tirta/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// No scheduler: billing jobs run in apps/scheduler
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
