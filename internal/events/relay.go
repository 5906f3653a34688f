package events

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/societyops/internal/clock"
	"github.com/smallbiznis/societyops/internal/config"
	"github.com/smallbiznis/societyops/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts = 5
	sendTriesPerRun    = 3
	lastErrorMaxLen    = 512
)

type RelayResult struct {
	Published int
	Failed    int
	Deferred  int
}

type RelayParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Sink    Sink
	Config  config.Config
	Metrics *metrics.Metrics `optional:"true"`
}

// Relay forwards pending outbox rows to the sink in insertion order.
type Relay struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	sink        Sink
	metrics     *metrics.Metrics
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

func NewRelay(p RelayParams) *Relay {
	maxAttempts := p.Config.Scheduler.RelayMaxRetries
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Relay{
		db:          p.DB,
		log:         p.Log.Named("events.relay"),
		clock:       p.Clock,
		sink:        p.Sink,
		metrics:     p.Metrics,
		maxAttempts: maxAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// RelayPending sends up to batch pending records. Delivery stops at the first
// record the sink rejects so later events never overtake it; that record is
// retried on the next run until it exhausts its attempts and is parked as
// failed.
func (r *Relay) RelayPending(ctx context.Context, batch int) (RelayResult, error) {
	var result RelayResult

	records, err := ListRecords(ctx, r.db, RecordPending, batch)
	if err != nil {
		return result, err
	}

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			result.Deferred += len(records) - i
			return result, err
		}

		msg := messageFromRecord(record)
		_, sendErr := backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, r.sink.Send(ctx, msg)
		}, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(sendTriesPerRun))

		attempts := record.Attempts + 1
		if sendErr == nil {
			if _, err := markPublished(ctx, r.db, record.ID, attempts, r.clock.Now()); err != nil {
				return result, err
			}
			result.Published++
			r.metrics.RecordEventRelayed(ctx, string(record.EventType), "published")
			continue
		}

		status := RecordPending
		if attempts >= r.maxAttempts {
			status = RecordFailed
		}
		if _, err := markAttemptFailed(ctx, r.db, record.ID, attempts, status, truncate(sendErr.Error(), lastErrorMaxLen)); err != nil {
			return result, errors.Join(sendErr, err)
		}

		r.log.Warn("event relay failed",
			zap.String("event_id", record.ID.String()),
			zap.String("event_type", string(record.EventType)),
			zap.Int("attempts", attempts),
			zap.String("status", string(status)),
			zap.Error(sendErr),
		)

		if status == RecordFailed {
			result.Failed++
			r.metrics.RecordEventRelayed(ctx, string(record.EventType), "failed")
			continue
		}
		r.metrics.RecordEventRelayed(ctx, string(record.EventType), "deferred")
		result.Deferred += len(records) - i
		return result, nil
	}

	return result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
