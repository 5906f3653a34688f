package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type OccupancyStatus string

const (
	OccupancyVacant   OccupancyStatus = "vacant"
	OccupancyOccupied OccupancyStatus = "occupied"
	// OccupancyPending is owned by workflows outside this service and is never
	// set or cleared by assignment commands.
	OccupancyPending OccupancyStatus = "pending"
)

type AssignmentType string

const (
	AssignmentOwner  AssignmentType = "owner"
	AssignmentTenant AssignmentType = "tenant"
)

func (t AssignmentType) Valid() bool {
	return t == AssignmentOwner || t == AssignmentTenant
}

type Flat struct {
	ID                snowflake.ID        `gorm:"primaryKey" json:"id"`
	Block             string              `gorm:"not null" json:"block"`
	FlatNumber        string              `gorm:"not null" json:"flat_number"`
	FloorNumber       int                 `gorm:"not null" json:"floor_number"`
	CarpetArea        decimal.NullDecimal `json:"carpet_area"`
	FlatType          string              `json:"flat_type"`
	OccupancyStatus   OccupancyStatus     `gorm:"not null" json:"occupancy_status"`
	CurrentResidentID *string             `json:"current_resident_id"`
	OwnershipType     *AssignmentType     `json:"ownership_type"`
	PossessionDate    *time.Time          `json:"possession_date"`
	LeaseStartDate    *time.Time          `json:"lease_start_date"`
	LeaseEndDate      *time.Time          `json:"lease_end_date"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type Assignment struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	FlatID         snowflake.ID   `gorm:"not null" json:"flat_id"`
	FlatNumber     string         `gorm:"->" json:"flat_number,omitempty"`
	Block          string         `gorm:"->" json:"block,omitempty"`
	ResidentID     string         `gorm:"not null" json:"resident_id"`
	AssignmentType AssignmentType `gorm:"not null" json:"assignment_type"`
	StartDate      time.Time      `gorm:"not null" json:"start_date"`
	EndDate        *time.Time     `json:"end_date"`
	IsActive       bool           `gorm:"not null" json:"is_active"`
	Notes          *string        `json:"notes,omitempty"`
	CreatedBy      string         `gorm:"not null" json:"created_by"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	EndedBy        *string        `json:"ended_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Drift describes a flat whose occupancy status disagrees with its active assignments.
type Drift struct {
	FlatID            snowflake.ID    `json:"flat_id"`
	Block             string          `json:"block"`
	FlatNumber        string          `json:"flat_number"`
	OccupancyStatus   OccupancyStatus `json:"occupancy_status"`
	ActiveAssignments int             `json:"active_assignments"`
}
