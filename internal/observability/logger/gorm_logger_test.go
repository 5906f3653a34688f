package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql   string
		op    string
		table string
	}{
		{`SELECT * FROM "flats" WHERE id = ?`, "SELECT", "flats"},
		{`INSERT INTO maintenance_payments (id) VALUES (?)`, "INSERT", "maintenance_payments"},
		{`UPDATE flats SET occupancy_status = ? WHERE id = ? AND version = ?`, "UPDATE", "flats"},
		{`WITH active AS (SELECT flat_id FROM flat_assignments) SELECT 1`, "SELECT", "flat_assignments"},
		{``, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		require.Equal(t, tc.op, op, tc.sql)
		require.Equal(t, tc.table, table, tc.sql)
	}
}

func TestGormLoggerDowngradesExpectedErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))
	ctx := context.Background()

	duplicate := errors.New("UNIQUE constraint failed: maintenance_payments.flat_id")
	l := NewGormLogger(GormLoggerConfig{
		Level:    gormlogger.Warn,
		Expected: func(err error) bool { return err == duplicate },
	})

	sql := func() (string, int64) { return "INSERT INTO maintenance_payments (id) VALUES (?)", 0 }
	l.Trace(ctx, time.Now(), sql, duplicate)
	l.Trace(ctx, time.Now(), sql, errors.New("connection reset"))
	l.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	require.Equal(t, "maintenance_payments", entries[1].ContextMap()["db.table"])
}

func TestGormLoggerSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))
	ctx := context.Background()

	l := NewGormLogger(DefaultGormLoggerConfig()).LogMode(gormlogger.Silent)
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	require.Zero(t, logs.Len())
}
