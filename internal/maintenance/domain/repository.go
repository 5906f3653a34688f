package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListPaymentsFilter struct {
	FlatNumber   string
	Status       PaymentStatus
	PaymentMonth *time.Time
	Limit        int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByFlatMonth(ctx context.Context, db *gorm.DB, flatNumber string, month time.Time) (*Payment, error)
	List(ctx context.Context, db *gorm.DB, filter ListPaymentsFilter) ([]*Payment, error)
	// Update writes every mutable column, guarded by the status and updated_at
	// the caller read.
	Update(ctx context.Context, db *gorm.DB, payment *Payment, expected PaymentStatus, readAt time.Time) (bool, error)
	ListPendingThrough(ctx context.Context, db *gorm.DB, month time.Time, limit int) ([]*Payment, error)
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to PaymentStatus, now time.Time) (bool, error)

	FindActiveSettings(ctx context.Context, db *gorm.DB) (*Settings, error)
	UpdateActiveSettings(ctx context.Context, db *gorm.DB, settings *Settings) (bool, error)
	// AllocateReceipt increments the active sequence in one statement and
	// returns the number it issued together with the settings in force.
	AllocateReceipt(ctx context.Context, db *gorm.DB, now time.Time) (*ReceiptAllocation, error)
}
