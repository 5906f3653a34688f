package seed_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/config"
	"github.com/smallbiznis/societyops/internal/migration/migrationtest"
	"github.com/smallbiznis/societyops/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureMaintenanceSettingsSeedsOnce(t *testing.T) {
	conn := migrationtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ctx := context.Background()
	defaults := config.DefaultMaintenanceDefaults()
	require.NoError(t, seed.EnsureMaintenanceSettings(ctx, conn, node, defaults))

	defaults.ReceiptPrefix = "OTHER-"
	require.NoError(t, seed.EnsureMaintenanceSettings(ctx, conn, node, defaults))

	var rows []struct {
		ReceiptPrefix          string
		CurrentReceiptSequence int64
	}
	require.NoError(t, conn.Raw(`SELECT receipt_prefix, current_receipt_sequence FROM maintenance_settings`).Scan(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "RCP-", rows[0].ReceiptPrefix)
	assert.Equal(t, int64(1), rows[0].CurrentReceiptSequence)
}
