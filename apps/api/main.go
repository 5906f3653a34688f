package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/audit"
	"github.com/smallbiznis/societyops/internal/clock"
	"github.com/smallbiznis/societyops/internal/config"
	"github.com/smallbiznis/societyops/internal/events"
	"github.com/smallbiznis/societyops/internal/flat"
	"github.com/smallbiznis/societyops/internal/lock"
	"github.com/smallbiznis/societyops/internal/maintenance"
	"github.com/smallbiznis/societyops/internal/migration"
	"github.com/smallbiznis/societyops/internal/observability"
	"github.com/smallbiznis/societyops/internal/overview"
	"github.com/smallbiznis/societyops/internal/ratelimit"
	"github.com/smallbiznis/societyops/internal/receipt"
	"github.com/smallbiznis/societyops/internal/server"
	"github.com/smallbiznis/societyops/pkg/db"
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
		lock.Module,

		audit.Module,
		events.Module,
		flat.Module,
		maintenance.Module,
		overview.Module,
		receipt.Module,
		ratelimit.Module,

		server.Module,
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
