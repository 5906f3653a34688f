package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societyops/internal/apperr"
)

type CreateFlatRequest struct {
	Block       string           `json:"block" validate:"required,max=32"`
	FlatNumber  string           `json:"flat_number" validate:"required,max=32"`
	FloorNumber int              `json:"floor_number" validate:"gte=0"`
	CarpetArea  *decimal.Decimal `json:"carpet_area"`
	FlatType    string           `json:"flat_type" validate:"max=32"`
	Actor       string           `json:"-" validate:"required"`
}

type CreateAssignmentRequest struct {
	FlatID         snowflake.ID   `json:"flat_id" validate:"required"`
	ResidentID     string         `json:"resident_id" validate:"required,max=64"`
	AssignmentType AssignmentType `json:"assignment_type" validate:"required,oneof=owner tenant"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        *time.Time     `json:"end_date"`
	Notes          *string        `json:"notes"`
	Actor          string         `json:"-" validate:"required"`
}

type RemoveAssignmentRequest struct {
	FlatID  snowflake.ID `json:"flat_id" validate:"required"`
	EndDate *time.Time   `json:"end_date"`
	Actor   string       `json:"-" validate:"required"`
}

type ListFlatsRequest struct {
	Block           string
	OccupancyStatus OccupancyStatus
}

type ListAssignmentsRequest struct {
	FlatID     snowflake.ID
	ActiveOnly bool
}

type Service interface {
	CreateFlat(ctx context.Context, req CreateFlatRequest) (Flat, error)
	GetFlat(ctx context.Context, id snowflake.ID) (Flat, error)
	ListFlats(ctx context.Context, req ListFlatsRequest) ([]Flat, error)

	CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (Assignment, error)
	RemoveAssignment(ctx context.Context, req RemoveAssignmentRequest) error
	ListAssignments(ctx context.Context, req ListAssignmentsRequest) ([]Assignment, error)

	ReconcileFlat(ctx context.Context, id snowflake.ID, actor string) (Flat, error)
	FindOccupancyDrift(ctx context.Context) ([]Drift, error)
}

var (
	ErrFlatNotFound   = apperr.New(apperr.KindNotFound, "flat_not_found", "flat not found")
	ErrFlatNotVacant  = apperr.New(apperr.KindConflict, "flat_not_vacant", "flat is not vacant")
	ErrDuplicateFlat  = apperr.New(apperr.KindConflict, "duplicate_flat", "flat number already exists in this block")
	ErrInvalidStatus  = apperr.Validation("occupancy_status", "invalid_value", "occupancy_status must be one of: vacant occupied pending")
	ErrStartDate      = apperr.Validation("start_date", "required", "start_date is required")
	ErrInvalidEndDate = apperr.Validation("end_date", "invalid_date_range", "end_date must not be before start_date")

	// The store disagrees with itself; callers should reconcile instead of retrying.
	ErrActiveAssignmentExists = apperr.New(apperr.KindInconsistentState, "active_assignment_exists", "flat is vacant but already has an active assignment")
	ErrFlatStateMismatch      = apperr.New(apperr.KindInconsistentState, "flat_state_mismatch", "flat has an active assignment but is not occupied")
)
