package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tirta/internal/authorization"
	"github.com/smallbiznis/tirta/internal/clock"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/smallbiznis/tirta/internal/observability"
	"github.com/smallbiznis/tirta/internal/payment"
	"github.com/smallbiznis/tirta/internal/ratelimit"
	"github.com/smallbiznis/tirta/internal/reading"
	"github.com/smallbiznis/tirta/internal/scheduler"
	"github.com/smallbiznis/tirta/internal/tariff"
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

		// Domain services required by scheduler
		authorization.Module,
		tariff.Module,
		reading.Module,
		payment.Module,
		ratelimit.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
