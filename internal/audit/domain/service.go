package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/societyops/internal/apperr"
	"github.com/smallbiznis/societyops/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry is one audited command. An empty ActorID falls back to the request
// actor, and an empty ActorType to system.
type Entry struct {
	ActorType  ActorType
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record writes entry using db, which callers pass as their open transaction.
	Record(ctx context.Context, db *gorm.DB, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = apperr.Validation("page_token", "invalid_page_token", "page_token is invalid")
	ErrInvalidTimeRange = apperr.Validation("start_at", "invalid_time_range", "start_at must not be after end_at")
	ErrInvalidAction    = apperr.Validation("action", "required", "audit action is required")
)
