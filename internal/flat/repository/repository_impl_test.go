package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/societyops/internal/flat/domain"
	"github.com/smallbiznis/societyops/internal/migration/migrationtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestForUpdate(t *testing.T) {
	const query = "SELECT id FROM flat_assignments WHERE flat_id = ?"

	assert.Equal(t, query+" FOR UPDATE", forUpdate(query, "postgres"))
	assert.Equal(t, query, forUpdate(query, "sqlite"))
}

func TestFindActiveAssignmentInsideTransaction(t *testing.T) {
	conn := migrationtest.Open(t)
	ctx := context.Background()
	r := Provide()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	flat := &domain.Flat{
		ID:              101,
		Block:           "A",
		FlatNumber:      "A-101",
		FloorNumber:     1,
		OccupancyStatus: domain.OccupancyVacant,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, r.InsertFlat(ctx, conn, flat))

	err := conn.Transaction(func(tx *gorm.DB) error {
		active, err := r.FindActiveAssignment(ctx, tx, flat.ID)
		require.NoError(t, err)
		assert.Nil(t, active)

		require.NoError(t, r.InsertAssignment(ctx, tx, &domain.Assignment{
			ID:             201,
			FlatID:         flat.ID,
			ResidentID:     "res-1",
			AssignmentType: domain.AssignmentOwner,
			StartDate:      now,
			IsActive:       true,
			CreatedBy:      "secretary",
			CreatedAt:      now,
			UpdatedAt:      now,
		}))

		active, err = r.FindActiveAssignment(ctx, tx, flat.ID)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "A-101", active.FlatNumber)
		assert.Equal(t, "res-1", active.ResidentID)
		return nil
	})
	require.NoError(t, err)
}
