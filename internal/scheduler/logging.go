package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/societyops/internal/observability/context"
	obslogger "github.com/smallbiznis/societyops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/societyops/internal/observability/metrics"
	"go.uber.org/zap"
)

const schedulerActor = "scheduler"

// jobRun accumulates the outcome of one job invocation. Nested job calls
// from RunOnce reuse the run placed on the context by the outermost call.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time

	processedCount int
	errorCount     int
	deferReason    string
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

// Defer records why the run left work for the next tick.
func (r *jobRun) Defer(reason string) {
	if r == nil {
		return
	}
	r.deferReason = reason
	obsmetrics.Scheduler().IncBatchDeferred(r.job, reason)
}

func (r *jobRun) outcome() string {
	switch {
	case r.errorCount > 0:
		return "failed"
	case r.deferReason != "":
		return "deferred"
	default:
		return "completed"
	}
}

func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeSystem, schedulerActor)
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	log := obslogger.WithContext(ctx, s.log)
	if run := jobRunFromContext(ctx); run != nil {
		log = log.With(zap.String("job", run.job), zap.String("run_id", run.runID))
	}
	return log
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.job.start", zap.Int("batch_size", run.batchSize))
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("outcome", run.outcome()),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	if run.deferReason != "" {
		fields = append(fields, zap.String("defer_reason", run.deferReason))
	}
	if run.errorCount > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	run.IncError()
	s.logger(ctx).Error(msg, append([]zap.Field{
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	}, fields...)...)
}
