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
	"github.com/smallbiznis/societyops/internal/observability"
	"github.com/smallbiznis/societyops/internal/scheduler"
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
		lock.Module,

		// Domain services required by scheduler
		audit.Module,
		events.Module,
		flat.Module,
		maintenance.Module,

		// No server module!
		scheduler.Module,
		fx.Invoke(scheduler.NewScheduler),
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
