package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/config"
	"github.com/smallbiznis/societyops/internal/migration"
	"github.com/smallbiznis/societyops/internal/seed"
	"github.com/smallbiznis/societyops/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed maintenance settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			skipSeed, _ := cmd.Flags().GetBool("skip-seed")

			cfg := config.Load()
			conn, err := db.Open(db.FromConfig(cfg))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if sqlDB, err := conn.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := migration.Apply(conn, cfg.DBType); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")

			if skipSeed {
				return nil
			}
			defaults, err := config.NewMaintenanceDefaultsHolder(zap.NewNop())
			if err != nil {
				return fmt.Errorf("load maintenance defaults: %w", err)
			}
			node, err := snowflake.NewNode(3)
			if err != nil {
				return err
			}
			if err := seed.EnsureMaintenanceSettings(cmd.Context(), conn, node, defaults.Get()); err != nil {
				return fmt.Errorf("seed maintenance settings: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Maintenance settings ready.")
			return nil
		},
	}

	cmd.Flags().Bool("skip-seed", false, "Do not create the default maintenance settings row")
	return cmd
}
