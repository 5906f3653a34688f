package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordPublished RecordStatus = "published"
	RecordFailed    RecordStatus = "failed"
)

// Record is an outbox row in domain_events.
type Record struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	EventType     Type           `json:"event_type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	Payload       datatypes.JSON `json:"payload"`
	Status        RecordStatus   `json:"status"`
	Attempts      int            `json:"attempts"`
	LastError     *string        `json:"last_error,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	PublishedAt   *time.Time     `json:"published_at,omitempty"`
}

var ErrUnknownEventType = errors.New("events: unknown event type")

type OutboxParams struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

// Outbox is a Bus that stores events in domain_events inside the caller's
// transaction. The relay forwards them after commit.
type Outbox struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutbox(p OutboxParams) *Outbox {
	return &Outbox{
		log:   p.Log.Named("events.outbox"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (o *Outbox) Publish(ctx context.Context, tx *gorm.DB, event Event) error {
	if event == nil {
		return errors.New("events: nil event")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}

	record := Record{
		ID:            o.genID.Generate(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		Payload:       datatypes.JSON(payload),
		Status:        RecordPending,
		OccurredAt:    o.clock.Now(),
	}
	if err := insertRecord(ctx, tx, &record); err != nil {
		return fmt.Errorf("store %s: %w", event.EventType(), err)
	}

	o.log.Debug("event queued",
		zap.String("event_type", string(record.EventType)),
		zap.String("aggregate_id", record.AggregateID),
		zap.String("event_id", record.ID.String()),
	)
	return nil
}

// Decode rebuilds the typed event stored in a record.
func Decode(record Record) (Event, error) {
	var (
		event Event
		err   error
	)
	switch record.EventType {
	case TypeAssignmentCreated:
		var e AssignmentCreated
		err = json.Unmarshal(record.Payload, &e)
		event = e
	case TypeAssignmentRemoved:
		var e AssignmentRemoved
		err = json.Unmarshal(record.Payload, &e)
		event = e
	case TypePaymentCreated:
		var e PaymentCreated
		err = json.Unmarshal(record.Payload, &e)
		event = e
	case TypePaymentStatusChanged:
		var e PaymentStatusChanged
		err = json.Unmarshal(record.Payload, &e)
		event = e
	case TypePaymentVerified:
		var e PaymentVerified
		err = json.Unmarshal(record.Payload, &e)
		event = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, record.EventType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", record.EventType, err)
	}
	return event, nil
}

const recordColumns = `id, event_type, aggregate_type, aggregate_id, payload, status,
	attempts, last_error, occurred_at, published_at`

func insertRecord(ctx context.Context, db *gorm.DB, r *Record) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO domain_events (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.EventType,
		r.AggregateType,
		r.AggregateID,
		r.Payload,
		r.Status,
		r.Attempts,
		r.LastError,
		r.OccurredAt,
		r.PublishedAt,
	).Error
}

// ListRecords returns outbox rows in insertion order. An empty status lists all.
func ListRecords(ctx context.Context, db *gorm.DB, status RecordStatus, limit int) ([]Record, error) {
	var records []Record
	query := `SELECT ` + recordColumns + ` FROM domain_events`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func markPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE domain_events
		 SET status = ?, attempts = ?, last_error = NULL, published_at = ?
		 WHERE id = ? AND status = ?`,
		RecordPublished,
		attempts,
		now,
		id,
		RecordPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func markAttemptFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, status RecordStatus, lastErr string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE domain_events
		 SET status = ?, attempts = ?, last_error = ?
		 WHERE id = ? AND status = ?`,
		status,
		attempts,
		lastErr,
		id,
		RecordPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
