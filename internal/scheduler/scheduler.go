package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/clock"
	"github.com/smallbiznis/societyops/internal/events"
	flatdomain "github.com/smallbiznis/societyops/internal/flat/domain"
	"github.com/smallbiznis/societyops/internal/lock"
	maintenancedomain "github.com/smallbiznis/societyops/internal/maintenance/domain"
	obsmetrics "github.com/smallbiznis/societyops/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobMarkOverdue    = "mark_overdue"
	JobEventRelay     = "event_relay"
	JobOccupancyAudit = "occupancy_audit"
)

// Jobs lists every job name in run order.
var Jobs = []string{JobMarkOverdue, JobEventRelay, JobOccupancyAudit}

var (
	ErrInvalidConfig = errors.New("scheduler: missing dependency")
	ErrUnknownJob    = errors.New("scheduler: unknown job")
)

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Maintenance maintenancedomain.Service
	Flats       flatdomain.Service
	Relay       *events.Relay
	Guard       *lock.Guard `optional:"true"`
	Config      Config      `optional:"true"`
}

type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	maintenance maintenancedomain.Service
	flats       flatdomain.Service
	relay       *events.Relay
	guard       *lock.Guard
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Maintenance == nil || p.Flats == nil || p.Relay == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		maintenance: p.Maintenance,
		flats:       p.Flats,
		relay:       p.Relay,
		guard:       p.Guard,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withJobLock(ctx, name, fn)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks up the remainder
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// withJobLock skips the run when another instance holds the job lock.
func (s *Scheduler) withJobLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ok, release, err := s.guard.TryJob(ctx, name)
	if err != nil {
		return err
	}
	defer release()
	if !ok {
		s.logger(ctx).Debug("scheduler.job.skipped", zap.String("reason", "locked"))
		return nil
	}
	return fn(ctx)
}

func (s *Scheduler) jobFunc(name string) (func(context.Context) error, bool) {
	switch name {
	case JobMarkOverdue:
		return s.MarkOverdueJob, true
	case JobEventRelay:
		return s.EventRelayJob, true
	case JobOccupancyAudit:
		return s.OccupancyAuditJob, true
	}
	return nil, false
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	for _, name := range Jobs {
		if !s.isJobEnabled(name) {
			continue
		}
		err = errors.Join(err, s.RunJob(parent, name))
	}

	return err
}

// RunJob runs a single named job regardless of EnabledJobs.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	fn, ok := s.jobFunc(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	return s.runJob(ctx, name, s.cfg.BatchSize, s.cfg.JobTimeout, fn)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty means every job runs (monolith mode)
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// MarkOverdueJob moves pending payments past their due date to overdue.
func (s *Scheduler) MarkOverdueJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobMarkOverdue, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	marked, err := s.maintenance.MarkOverdue(ctx, s.clock.Now(), s.cfg.BatchSize)
	run.AddProcessed(marked)
	obsmetrics.Scheduler().AddBatchProcessed(JobMarkOverdue, "maintenance_payment", marked)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.payment.overdue.failed", err)
		return err
	}
	if marked == 0 {
		run.Defer(obsmetrics.SchedulerBatchDeferredReasonEmpty)
	}
	return nil
}

// EventRelayJob drains pending outbox rows to the sink. It keeps pulling
// full batches until the outbox is empty or the sink starts rejecting.
func (s *Scheduler) EventRelayJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobEventRelay, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := s.relay.RelayPending(ctx, s.cfg.BatchSize)
		sent := result.Published + result.Failed
		run.AddProcessed(sent)
		schedMetrics.AddBatchProcessed(JobEventRelay, "domain_event", sent)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.event.relay.failed", err)
			return err
		}
		if result.Failed > 0 {
			run.IncError()
		}
		if result.Deferred > 0 {
			run.Defer(obsmetrics.SchedulerBatchDeferredReasonSinkFailed)
			return nil
		}
		if sent == 0 && run.processedCount == 0 {
			run.Defer(obsmetrics.SchedulerBatchDeferredReasonEmpty)
		}
		if sent < s.cfg.BatchSize {
			return nil
		}
	}
}

// OccupancyAuditJob reports flats whose stored occupancy disagrees with
// their active assignments. It never repairs them.
func (s *Scheduler) OccupancyAuditJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobOccupancyAudit, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	drift, err := s.flats.FindOccupancyDrift(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.occupancy.audit.failed", err)
		return err
	}
	obsmetrics.Scheduler().SetOccupancyDrift(len(drift))
	run.AddProcessed(len(drift))

	log := s.logger(ctx)
	for _, d := range drift {
		log.Warn("occupancy.drift",
			zap.String("flat_id", d.FlatID.String()),
			zap.String("block", d.Block),
			zap.String("flat_number", d.FlatNumber),
			zap.String("occupancy_status", string(d.OccupancyStatus)),
			zap.Int("active_assignments", d.ActiveAssignments),
		)
	}
	return nil
}
