package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFlatsFilter struct {
	Block           string
	OccupancyStatus OccupancyStatus
}

type ListAssignmentsFilter struct {
	FlatID     snowflake.ID
	ActiveOnly bool
}

type Repository interface {
	InsertFlat(ctx context.Context, db *gorm.DB, flat *Flat) error
	FindFlatByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Flat, error)
	ListFlats(ctx context.Context, db *gorm.DB, filter ListFlatsFilter) ([]*Flat, error)

	// OccupyFlat moves a vacant flat to occupied, copying the derived fields
	// from flat. It reports false when the flat is missing or not vacant.
	OccupyFlat(ctx context.Context, db *gorm.DB, flat *Flat) (bool, error)
	// VacateFlat moves an occupied flat to vacant and clears its derived fields.
	// It reports false when the flat is not occupied.
	VacateFlat(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	// OverwriteOccupancy rewrites derived fields unless the flat is pending.
	OverwriteOccupancy(ctx context.Context, db *gorm.DB, flat *Flat) (bool, error)

	InsertAssignment(ctx context.Context, db *gorm.DB, assignment *Assignment) error
	FindActiveAssignment(ctx context.Context, db *gorm.DB, flatID snowflake.ID) (*Assignment, error)
	DeactivateAssignment(ctx context.Context, db *gorm.DB, assignment *Assignment) (bool, error)
	ListAssignments(ctx context.Context, db *gorm.DB, filter ListAssignmentsFilter) ([]*Assignment, error)

	ListDrift(ctx context.Context, db *gorm.DB) ([]Drift, error)
}
