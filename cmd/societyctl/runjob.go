package main

import (
	"context"
	"fmt"
	"strings"
	"time"

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
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func RunJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "run-job <name>",
		Short:     "Run one scheduler job immediately",
		Long:      "Run one scheduler job immediately. Jobs: " + strings.Join(scheduler.Jobs, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: scheduler.Jobs,
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")

			var sched *scheduler.Scheduler
			app := fx.New(
				fx.NopLogger,
				config.Module,
				observability.Module,
				fx.Provide(func() (*snowflake.Node, error) { return snowflake.NewNode(4) }),
				db.Module,
				clock.Module,
				lock.Module,
				audit.Module,
				events.Module,
				flat.Module,
				maintenance.Module,
				scheduler.Module,
				fx.Populate(&sched),
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer stopCancel()
				_ = app.Stop(stopCtx)
			}()

			if err := sched.RunJob(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s finished.\n", args[0])
			return nil
		},
	}

	cmd.Flags().Duration("timeout", 5*time.Minute, "Overall deadline for the run")
	return cmd
}
