package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/flat/domain"
	"gorm.io/gorm"
)

const flatColumns = `id, block, flat_number, floor_number, carpet_area, flat_type,
	occupancy_status, current_resident_id, ownership_type, possession_date,
	lease_start_date, lease_end_date, created_at, updated_at`

const assignmentColumns = `a.id, a.flat_id, f.flat_number, f.block, a.resident_id,
	a.assignment_type, a.start_date, a.end_date, a.is_active, a.notes, a.created_by,
	a.ended_at, a.ended_by, a.created_at, a.updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertFlat(ctx context.Context, db *gorm.DB, flat *domain.Flat) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO flats (`+flatColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		flat.ID,
		flat.Block,
		flat.FlatNumber,
		flat.FloorNumber,
		flat.CarpetArea,
		flat.FlatType,
		flat.OccupancyStatus,
		flat.CurrentResidentID,
		flat.OwnershipType,
		flat.PossessionDate,
		flat.LeaseStartDate,
		flat.LeaseEndDate,
		flat.CreatedAt,
		flat.UpdatedAt,
	).Error
}

func (r *repo) FindFlatByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Flat, error) {
	var flat domain.Flat
	err := db.WithContext(ctx).Raw(
		`SELECT `+flatColumns+` FROM flats WHERE id = ?`,
		id,
	).Scan(&flat).Error
	if err != nil {
		return nil, err
	}
	if flat.ID == 0 {
		return nil, nil
	}
	return &flat, nil
}

func (r *repo) ListFlats(ctx context.Context, db *gorm.DB, filter domain.ListFlatsFilter) ([]*domain.Flat, error) {
	var (
		flats      []*domain.Flat
		conditions []string
		args       []any
	)
	if block := strings.TrimSpace(filter.Block); block != "" {
		conditions = append(conditions, "block = ?")
		args = append(args, block)
	}
	if filter.OccupancyStatus != "" {
		conditions = append(conditions, "occupancy_status = ?")
		args = append(args, filter.OccupancyStatus)
	}

	query := `SELECT ` + flatColumns + ` FROM flats`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY flat_number ASC, block ASC, id ASC`

	if err := db.WithContext(ctx).Raw(query, args...).Scan(&flats).Error; err != nil {
		return nil, err
	}
	return flats, nil
}

func (r *repo) OccupyFlat(ctx context.Context, db *gorm.DB, flat *domain.Flat) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE flats
		 SET occupancy_status = ?, current_resident_id = ?, ownership_type = ?,
		     possession_date = ?, lease_start_date = ?, lease_end_date = ?, updated_at = ?
		 WHERE id = ? AND occupancy_status = ?`,
		domain.OccupancyOccupied,
		flat.CurrentResidentID,
		flat.OwnershipType,
		flat.PossessionDate,
		flat.LeaseStartDate,
		flat.LeaseEndDate,
		flat.UpdatedAt,
		flat.ID,
		domain.OccupancyVacant,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) VacateFlat(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE flats
		 SET occupancy_status = ?, current_resident_id = NULL, ownership_type = NULL,
		     possession_date = NULL, lease_start_date = NULL, lease_end_date = NULL, updated_at = ?
		 WHERE id = ? AND occupancy_status = ?`,
		domain.OccupancyVacant,
		now,
		id,
		domain.OccupancyOccupied,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) OverwriteOccupancy(ctx context.Context, db *gorm.DB, flat *domain.Flat) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE flats
		 SET occupancy_status = ?, current_resident_id = ?, ownership_type = ?,
		     possession_date = ?, lease_start_date = ?, lease_end_date = ?, updated_at = ?
		 WHERE id = ? AND occupancy_status <> ?`,
		flat.OccupancyStatus,
		flat.CurrentResidentID,
		flat.OwnershipType,
		flat.PossessionDate,
		flat.LeaseStartDate,
		flat.LeaseEndDate,
		flat.UpdatedAt,
		flat.ID,
		domain.OccupancyPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertAssignment(ctx context.Context, db *gorm.DB, assignment *domain.Assignment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO flat_assignments (
			id, flat_id, resident_id, assignment_type, start_date, end_date, is_active,
			notes, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		assignment.ID,
		assignment.FlatID,
		assignment.ResidentID,
		assignment.AssignmentType,
		assignment.StartDate,
		assignment.EndDate,
		assignment.IsActive,
		assignment.Notes,
		assignment.CreatedBy,
		assignment.CreatedAt,
		assignment.UpdatedAt,
	).Error
}

func (r *repo) FindActiveAssignment(ctx context.Context, db *gorm.DB, flatID snowflake.ID) (*domain.Assignment, error) {
	var assignment domain.Assignment
	query := `SELECT ` + assignmentColumns + `
		 FROM flat_assignments a JOIN flats f ON f.id = a.flat_id
		 WHERE a.flat_id = ? AND a.is_active = ?`
	err := db.WithContext(ctx).Raw(forUpdate(query, db.Dialector.Name()), flatID, true).Scan(&assignment).Error
	if err != nil {
		return nil, err
	}
	if assignment.ID == 0 {
		return nil, nil
	}
	return &assignment, nil
}

func (r *repo) DeactivateAssignment(ctx context.Context, db *gorm.DB, assignment *domain.Assignment) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE flat_assignments
		 SET is_active = ?, end_date = ?, ended_at = ?, ended_by = ?, updated_at = ?
		 WHERE id = ? AND is_active = ?`,
		false,
		assignment.EndDate,
		assignment.EndedAt,
		assignment.EndedBy,
		assignment.UpdatedAt,
		assignment.ID,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListAssignments(ctx context.Context, db *gorm.DB, filter domain.ListAssignmentsFilter) ([]*domain.Assignment, error) {
	var (
		assignments []*domain.Assignment
		conditions  []string
		args        []any
	)
	if filter.FlatID != 0 {
		conditions = append(conditions, "a.flat_id = ?")
		args = append(args, filter.FlatID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "a.is_active = ?")
		args = append(args, true)
	}

	query := `SELECT ` + assignmentColumns + ` FROM flat_assignments a JOIN flats f ON f.id = a.flat_id`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY f.flat_number ASC, f.block ASC, a.created_at DESC, a.id DESC`

	if err := db.WithContext(ctx).Raw(query, args...).Scan(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repo) ListDrift(ctx context.Context, db *gorm.DB) ([]domain.Drift, error) {
	var drift []domain.Drift
	err := db.WithContext(ctx).Raw(
		`SELECT f.id AS flat_id, f.block, f.flat_number, f.occupancy_status,
		        COUNT(a.id) AS active_assignments
		 FROM flats f
		 LEFT JOIN flat_assignments a ON a.flat_id = f.id AND a.is_active = ?
		 WHERE f.occupancy_status <> ?
		 GROUP BY f.id, f.block, f.flat_number, f.occupancy_status
		 HAVING (f.occupancy_status = ? AND COUNT(a.id) <> 1)
		     OR (f.occupancy_status = ? AND COUNT(a.id) <> 0)
		 ORDER BY f.flat_number ASC, f.block ASC`,
		true,
		domain.OccupancyPending,
		domain.OccupancyOccupied,
		domain.OccupancyVacant,
	).Scan(&drift).Error
	if err != nil {
		return nil, err
	}
	return drift, nil
}

// forUpdate locks the selected rows for the rest of the transaction. SQLite
// has no row locks and serializes writers instead.
func forUpdate(query, dialect string) string {
	if dialect == "sqlite" {
		return query
	}
	return query + " FOR UPDATE"
}
