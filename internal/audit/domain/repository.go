package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ListFilter narrows the audit trail. An Action ending in ".*" matches the
// whole family, e.g. "payment.*".
type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
