package metrics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/societyops/internal/apperr"
	"gorm.io/gorm"
)

const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonInconsistentState    = "inconsistent_state"
	SchedulerJobReasonBusinessRule         = "business_rule"
	SchedulerJobReasonUnknown              = "unknown"
)

// Postgres SQLSTATE codes the jobs can hit under contention.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
)

// jobReasons is checked in order; the first match labels the error.
var jobReasons = []struct {
	reason string
	match  func(error) bool
}{
	{SchedulerJobReasonDeadlineExceeded, isDeadline},
	{SchedulerJobReasonDBLockTimeout, pgCode(pgLockNotAvailable)},
	{SchedulerJobReasonSerializationFailure, pgCode(pgSerializationFailure)},
	{SchedulerJobReasonUniqueViolation, isUniqueViolation},
	{SchedulerJobReasonInconsistentState, kindIs(apperr.KindInconsistentState)},
	{SchedulerJobReasonBusinessRule, kindIs(apperr.KindValidation, apperr.KindConflict, apperr.KindNotFound, apperr.KindInvalidTransition)},
}

// ClassifySchedulerJobReason maps a job error to a metric label.
func ClassifySchedulerJobReason(err error) string {
	if err == nil {
		return SchedulerJobReasonUnknown
	}
	for _, r := range jobReasons {
		if r.match(err) {
			return r.reason
		}
	}
	return SchedulerJobReasonUnknown
}

// ClassifySchedulerErrorType is the coarser grouping used in log lines.
func ClassifySchedulerErrorType(err error) string {
	switch {
	case err == nil:
		return SchedulerErrorTypeUnknown
	case isDeadline(err):
		return SchedulerErrorTypeDeadlineExceeded
	case isAppError(err):
		return SchedulerErrorTypeBusinessRule
	case isDBError(err):
		return SchedulerErrorTypeDB
	default:
		return SchedulerErrorTypeUnknown
	}
}

// IsSchedulerErrorRetryable is true for errors the next tick can clear on
// its own: deadlines, lock waits and serialization aborts.
func IsSchedulerErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	return isDeadline(err) ||
		pgCode(pgLockNotAvailable)(err) ||
		pgCode(pgSerializationFailure)(err)
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func isAppError(err error) bool {
	_, ok := apperr.As(err)
	return ok
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || pgCode(pgUniqueViolation)(err)
}

func pgCode(code string) func(error) bool {
	return func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == code
	}
}

func kindIs(kinds ...apperr.Kind) func(error) bool {
	return func(err error) bool {
		got := apperr.KindOf(err)
		for _, k := range kinds {
			if got == k {
				return true
			}
		}
		return false
	}
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	for _, target := range []error{
		gorm.ErrInvalidDB,
		gorm.ErrInvalidTransaction,
		gorm.ErrInvalidData,
		gorm.ErrMissingWhereClause,
		gorm.ErrDuplicatedKey,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
