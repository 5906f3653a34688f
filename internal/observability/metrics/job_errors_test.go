package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/societyops/internal/apperr"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerErrorType(t *testing.T) {
	assert.Equal(t, SchedulerErrorTypeUnknown, ClassifySchedulerErrorType(nil))
	assert.Equal(t, SchedulerErrorTypeDeadlineExceeded, ClassifySchedulerErrorType(fmt.Errorf("relay: %w", context.Canceled)))
	assert.Equal(t, SchedulerErrorTypeBusinessRule, ClassifySchedulerErrorType(apperr.New(apperr.KindConflict, "flat_busy", "")))
	assert.Equal(t, SchedulerErrorTypeDB, ClassifySchedulerErrorType(&pgconn.PgError{Code: "08006"}))
	assert.Equal(t, SchedulerErrorTypeDB, ClassifySchedulerErrorType(gorm.ErrInvalidTransaction))
	assert.Equal(t, SchedulerErrorTypeUnknown, ClassifySchedulerErrorType(gorm.ErrRecordNotFound))
	assert.Equal(t, SchedulerErrorTypeUnknown, ClassifySchedulerErrorType(errors.New("boom")))
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	assert.False(t, IsSchedulerErrorRetryable(nil))
	assert.True(t, IsSchedulerErrorRetryable(context.DeadlineExceeded))
	assert.True(t, IsSchedulerErrorRetryable(&pgconn.PgError{Code: "55P03"}))
	assert.True(t, IsSchedulerErrorRetryable(fmt.Errorf("mark overdue: %w", &pgconn.PgError{Code: "40001"})))
	assert.False(t, IsSchedulerErrorRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsSchedulerErrorRetryable(apperr.New(apperr.KindInvalidTransition, "invalid_status_transition", "")))
}
