package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/config"
	"github.com/smallbiznis/societyops/pkg/db"
	"gorm.io/gorm"
)

// EnsureMaintenanceSettings inserts the active maintenance settings row from
// defaults when the society has none yet. An existing active row is never touched.
func EnsureMaintenanceSettings(ctx context.Context, conn *gorm.DB, node *snowflake.Node, defaults config.MaintenanceDefaults) error {
	if conn == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Raw(`SELECT COUNT(1) FROM maintenance_settings WHERE is_active = ?`, true).
			Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		start := defaults.ReceiptStart
		if start < 1 {
			start = 1
		}
		now := time.Now().UTC()
		err := tx.Exec(
			`INSERT INTO maintenance_settings (
				id, base_maintenance_fee, late_payment_penalty, penalty_due_date,
				receipt_prefix, current_receipt_sequence, is_active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			node.Generate(),
			defaults.Fee(),
			defaults.Penalty(),
			defaults.PenaltyDueDay,
			defaults.ReceiptPrefix,
			start,
			true,
			now,
			now,
		).Error
		if db.IsDuplicateKeyErr(err) {
			// another instance seeded concurrently
			return nil
		}
		return err
	})
}
