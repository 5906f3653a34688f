package migration

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/config"
	"github.com/smallbiznis/societyops/internal/seed"
	"github.com/smallbiznis/societyops/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, defaults *config.MaintenanceDefaultsHolder, genID *snowflake.Node, log *zap.Logger) error {
		if cfg.MigrateOnStart {
			if err := Apply(conn, cfg.DBType); err != nil {
				return err
			}
			log.Info("migrations applied", zap.String("db_type", cfg.DBType))
		}

		return seed.EnsureMaintenanceSettings(context.Background(), conn, genID, defaults.Get())
	}),
)

// Apply runs the schema migrations appropriate for the database dialect.
func Apply(conn *gorm.DB, dbType string) error {
	if strings.EqualFold(strings.TrimSpace(dbType), db.TypeSQLite) {
		return ApplySQLite(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
