package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societyops/internal/clock"
)

type PenaltyResult struct {
	Penalty  decimal.Decimal `json:"penalty"`
	DaysLate int             `json:"days_late"`
}

// DueDate is the dueDay-th day of paymentMonth's month, clamped to the
// month's length.
func DueDate(paymentMonth time.Time, dueDay int) time.Time {
	month := clock.MonthStart(paymentMonth)
	if dueDay < 1 {
		dueDay = 1
	}
	if last := clock.DaysInMonth(month); dueDay > last {
		dueDay = last
	}
	return month.AddDate(0, 0, dueDay-1)
}

// CalculatePenalty applies the flat late fee when paymentDate falls strictly
// after the due date. Paying on the due date itself is on time.
func CalculatePenalty(paymentDate, paymentMonth time.Time, dueDay int, penalty decimal.Decimal) PenaltyResult {
	due := DueDate(paymentMonth, dueDay)
	paid := clock.TruncateDay(paymentDate)
	if !paid.After(due) {
		return PenaltyResult{Penalty: decimal.Zero, DaysLate: 0}
	}
	return PenaltyResult{
		Penalty:  penalty,
		DaysLate: int(paid.Sub(due).Hours() / 24),
	}
}

// IsPastDue reports whether a payment for paymentMonth is overdue on asOf.
func IsPastDue(paymentMonth time.Time, dueDay int, asOf time.Time) bool {
	return clock.TruncateDay(asOf).After(DueDate(paymentMonth, dueDay))
}
