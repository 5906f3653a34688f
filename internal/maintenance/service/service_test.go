package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societyops/internal/apperr"
	auditrepository "github.com/smallbiznis/societyops/internal/audit/repository"
	auditservice "github.com/smallbiznis/societyops/internal/audit/service"
	"github.com/smallbiznis/societyops/internal/clock"
	"github.com/smallbiznis/societyops/internal/config"
	"github.com/smallbiznis/societyops/internal/events"
	"github.com/smallbiznis/societyops/internal/maintenance/domain"
	"github.com/smallbiznis/societyops/internal/maintenance/repository"
	"github.com/smallbiznis/societyops/internal/maintenance/service"
	"github.com/smallbiznis/societyops/internal/migration/migrationtest"
	"github.com/smallbiznis/societyops/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	svc      domain.Service
	settings domain.SettingsService
}

func newHarness(t *testing.T) harness {
	t.Helper()
	conn := migrationtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	require.NoError(t, seed.EnsureMaintenanceSettings(context.Background(), conn, node, config.DefaultMaintenanceDefaults()))

	params := service.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
		Bus:   events.NewOutbox(events.OutboxParams{Log: log, GenID: node, Clock: clk}),
		Audit: auditservice.NewService(auditservice.Params{
			DB:    conn,
			Log:   log,
			GenID: node,
			Clock: clk,
			Repo:  auditrepository.Provide(),
		}),
	}
	return harness{
		db:       conn,
		clock:    clk,
		svc:      service.New(params),
		settings: service.NewSettings(params),
	}
}

func (h harness) eventTypes(t *testing.T) []events.Type {
	t.Helper()
	records, err := events.ListRecords(context.Background(), h.db, "", 0)
	require.NoError(t, err)
	out := make([]events.Type, 0, len(records))
	for _, r := range records {
		out = append(out, r.EventType)
	}
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cashPayment(flat string, month, paid time.Time) domain.CreatePaymentRequest {
	return domain.CreatePaymentRequest{
		FlatNumber:    flat,
		PaymentMonth:  month,
		BaseAmount:    decimal.NewFromInt(2500),
		PaymentDate:   paid,
		PaymentMethod: domain.MethodCash,
		Actor:         "treasurer",
	}
}

func TestCreatePaymentIssuesSequentialReceipts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 5)))
	require.NoError(t, err)
	second, err := h.svc.CreatePayment(ctx, cashPayment("A-102", day(2026, 3, 1), day(2026, 3, 6)))
	require.NoError(t, err)

	assert.Equal(t, "RCP-1", first.ReceiptNumber)
	assert.Equal(t, "RCP-2", second.ReceiptNumber)
	assert.Equal(t, domain.StatusPending, first.Status)

	settings, err := h.settings.GetActiveSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), settings.CurrentReceiptSequence)
	assert.Equal(t, []events.Type{events.TypePaymentCreated, events.TypePaymentCreated}, h.eventTypes(t))
}

func TestCreatePaymentComputesPenalty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	onTime, err := h.svc.CreatePayment(ctx, cashPayment("A-101", time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC), day(2026, 3, 10)))
	require.NoError(t, err)
	assert.Equal(t, day(2026, 3, 1), onTime.PaymentMonth)
	assert.True(t, onTime.PenaltyAmount.IsZero())
	assert.Equal(t, 0, onTime.DaysLate)
	assert.True(t, onTime.TotalAmount.Equal(decimal.NewFromInt(2500)))

	late, err := h.svc.CreatePayment(ctx, cashPayment("A-102", day(2026, 3, 1), day(2026, 3, 14)))
	require.NoError(t, err)
	assert.True(t, late.PenaltyAmount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 4, late.DaysLate)
	assert.True(t, late.TotalAmount.Equal(decimal.NewFromInt(2700)))

	stored, err := h.svc.GetPayment(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(stored.BaseAmount.Add(stored.PenaltyAmount)))
	assert.Equal(t, 4, stored.DaysLate)
}

func TestCreatePaymentDefaultsBaseAmountFromSettings(t *testing.T) {
	h := newHarness(t)
	req := cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 2))
	req.BaseAmount = decimal.Zero

	payment, err := h.svc.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, payment.BaseAmount.Equal(decimal.NewFromInt(2500)))
}

func TestCreatePaymentRejectsDuplicateMonth(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 5)))
	require.NoError(t, err)

	_, err = h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 3, 25), day(2026, 3, 26)))
	require.ErrorIs(t, err, domain.ErrDuplicatePayment)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	existing, err := h.svc.CheckExistingPayment(ctx, "A-101", day(2026, 3, 9))
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, "RCP-1", existing.ReceiptNumber)

	missing, err := h.svc.CheckExistingPayment(ctx, "A-101", day(2026, 4, 1))
	require.NoError(t, err)
	assert.Nil(t, missing)

	next, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 4, 1), day(2026, 4, 2)))
	require.NoError(t, err)
	assert.Equal(t, "RCP-2", next.ReceiptNumber)
}

func TestConcurrentPaymentsGetDistinctReceipts(t *testing.T) {
	h := newHarness(t)

	const callers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		receipts []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := h.svc.CreatePayment(context.Background(), cashPayment(fmt.Sprintf("B-%d", i), day(2026, 3, 1), day(2026, 3, 2)))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			receipts = append(receipts, p.ReceiptNumber)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, receipts, callers)
	want := make([]string, 0, callers)
	for i := 1; i <= callers; i++ {
		want = append(want, fmt.Sprintf("RCP-%d", i))
	}
	sort.Strings(receipts)
	sort.Strings(want)
	assert.Equal(t, want, receipts)
}

func TestConcurrentDuplicatePaymentsLeaveNoGap(t *testing.T) {
	h := newHarness(t)

	const callers = 6
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.CreatePayment(context.Background(), cashPayment("C-1", day(2026, 3, 1), day(2026, 3, 2)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrDuplicatePayment):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, duplicates)

	next, err := h.svc.CreatePayment(context.Background(), cashPayment("C-2", day(2026, 3, 1), day(2026, 3, 2)))
	require.NoError(t, err)
	assert.Equal(t, "RCP-2", next.ReceiptNumber)
}

func TestCreatePaymentValidatesMethodFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 2))
	req.PaymentMethod = domain.MethodCheque
	_, err := h.svc.CreatePayment(ctx, req)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "cheque_number", appErr.Field)

	req.PaymentMethod = domain.MethodUPIIMPS
	_, err = h.svc.CreatePayment(ctx, req)
	appErr, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "transaction_reference", appErr.Field)

	ref := "UTR-778"
	req.TransactionReference = &ref
	payment, err := h.svc.CreatePayment(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, payment.TransactionReference)
	assert.Equal(t, "UTR-778", *payment.TransactionReference)

	bad := cashPayment("A-102", day(2026, 3, 1), day(2026, 3, 2))
	bad.BaseAmount = decimal.NewFromInt(-1)
	_, err = h.svc.CreatePayment(ctx, bad)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	bad = cashPayment("A-102", day(2026, 3, 1), day(2026, 3, 2))
	bad.Status = domain.StatusVerified
	_, err = h.svc.CreatePayment(ctx, bad)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	bad = cashPayment("A-102", time.Time{}, day(2026, 3, 2))
	_, err = h.svc.CreatePayment(ctx, bad)
	require.ErrorIs(t, err, domain.ErrPaymentMonth)
}

func TestUpdatePaymentTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	payment, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 5)))
	require.NoError(t, err)

	status := func(s domain.PaymentStatus) *domain.PaymentStatus { return &s }

	_, err = h.svc.UpdatePayment(ctx, payment.ID, domain.UpdatePaymentRequest{Status: status(domain.StatusVerified), Actor: "auditor"})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

	same, err := h.svc.UpdatePayment(ctx, payment.ID, domain.UpdatePaymentRequest{Status: status(domain.StatusPending), Actor: "auditor"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, same.Status)

	paid, err := h.svc.UpdatePayment(ctx, payment.ID, domain.UpdatePaymentRequest{Status: status(domain.StatusPaid), Actor: "treasurer"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.Nil(t, paid.VerifiedAt)

	h.clock.Advance(2 * time.Hour)
	verified, err := h.svc.UpdatePayment(ctx, payment.ID, domain.UpdatePaymentRequest{Status: status(domain.StatusVerified), Actor: "auditor"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, verified.Status)
	require.NotNil(t, verified.VerifiedAt)
	assert.True(t, h.clock.Now().Equal(*verified.VerifiedAt))
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, "auditor", *verified.VerifiedBy)

	notes := "late entry"
	_, err = h.svc.UpdatePayment(ctx, payment.ID, domain.UpdatePaymentRequest{Notes: &notes, Actor: "treasurer"})
	require.ErrorIs(t, err, domain.ErrPaymentVerified)

	_, err = h.svc.UpdatePayment(ctx, payment.ID, domain.UpdatePaymentRequest{Status: status(domain.StatusPaid), Actor: "treasurer"})
	require.ErrorIs(t, err, domain.ErrPaymentVerified)

	assert.Equal(t, []events.Type{
		events.TypePaymentCreated,
		events.TypePaymentStatusChanged,
		events.TypePaymentStatusChanged,
		events.TypePaymentVerified,
	}, h.eventTypes(t))

	_, err = h.svc.UpdatePayment(ctx, snowflake.ID(1), domain.UpdatePaymentRequest{Notes: &notes, Actor: "treasurer"})
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestUpdatePaymentRecomputesPenalty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	payment, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 5)))
	require.NoError(t, err)
	assert.True(t, payment.PenaltyAmount.IsZero())

	lateDate := day(2026, 3, 15)
	updated, err := h.svc.UpdatePayment(ctx, payment.ID, domain.UpdatePaymentRequest{PaymentDate: &lateDate, Actor: "treasurer"})
	require.NoError(t, err)
	assert.True(t, updated.PenaltyAmount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 5, updated.DaysLate)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(2700)))

	base := decimal.NewFromInt(3000)
	updated, err = h.svc.UpdatePayment(ctx, payment.ID, domain.UpdatePaymentRequest{BaseAmount: &base, Actor: "treasurer"})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(3200)))

	notes := "receipt reprinted"
	updated, err = h.svc.UpdatePayment(ctx, payment.ID, domain.UpdatePaymentRequest{Notes: &notes, Actor: "treasurer"})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(3200)))
	assert.Equal(t, "RCP-1", updated.ReceiptNumber)
}

func TestUpdatePaymentMonthCollision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 5)))
	require.NoError(t, err)
	april, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 4, 1), day(2026, 4, 5)))
	require.NoError(t, err)

	march := day(2026, 3, 1)
	_, err = h.svc.UpdatePayment(ctx, april.ID, domain.UpdatePaymentRequest{PaymentMonth: &march, Actor: "treasurer"})
	require.ErrorIs(t, err, domain.ErrDuplicatePayment)
}

func TestMarkOverdue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	feb, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 2, 1), day(2026, 2, 5)))
	require.NoError(t, err)
	march, err := h.svc.CreatePayment(ctx, cashPayment("A-102", day(2026, 3, 1), day(2026, 3, 5)))
	require.NoError(t, err)
	paidReq := cashPayment("A-103", day(2026, 2, 1), day(2026, 2, 5))
	paidReq.Status = domain.StatusPaid
	_, err = h.svc.CreatePayment(ctx, paidReq)
	require.NoError(t, err)

	n, err := h.svc.MarkOverdue(ctx, day(2026, 3, 10), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.svc.GetPayment(ctx, feb.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, got.Status)
	got, err = h.svc.GetPayment(ctx, march.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	n, err = h.svc.MarkOverdue(ctx, day(2026, 3, 11), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = h.svc.MarkOverdue(ctx, day(2026, 3, 11), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	status := domain.StatusPaid
	settled, err := h.svc.UpdatePayment(ctx, feb.ID, domain.UpdatePaymentRequest{Status: &status, Actor: "treasurer"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, settled.Status)
}

func TestListPaymentsMostRecentFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i, flat := range []string{"A-101", "A-102", "A-103"} {
		_, err := h.svc.CreatePayment(ctx, cashPayment(flat, day(2026, 3, 1), day(2026, 3, 2+i)))
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
	}

	payments, err := h.svc.ListPayments(ctx, domain.ListPaymentsRequest{})
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, "A-103", payments[0].FlatNumber)
	assert.Equal(t, "A-101", payments[2].FlatNumber)

	payments, err = h.svc.ListPayments(ctx, domain.ListPaymentsRequest{FlatNumber: "A-102"})
	require.NoError(t, err)
	require.Len(t, payments, 1)

	_, err = h.svc.ListPayments(ctx, domain.ListPaymentsRequest{Status: "lost"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListPaymentsReturnsEveryMatchWithoutLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const total = 501
	for i := 0; i < total; i++ {
		_, err := h.svc.CreatePayment(ctx, cashPayment(fmt.Sprintf("B-%03d", i), day(2026, 3, 1), day(2026, 3, 5)))
		require.NoError(t, err)
	}

	payments, err := h.svc.ListPayments(ctx, domain.ListPaymentsRequest{})
	require.NoError(t, err)
	assert.Len(t, payments, total)

	payments, err = h.svc.ListPayments(ctx, domain.ListPaymentsRequest{PaymentMonth: ptrTime(day(2026, 3, 12))})
	require.NoError(t, err)
	assert.Len(t, payments, total)

	payments, err = h.svc.ListPayments(ctx, domain.ListPaymentsRequest{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, payments, 10)
}

func TestCreatePaymentReportsReusedReceiptNumber(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 5)))
	require.NoError(t, err)
	require.NoError(t, h.db.Exec(`UPDATE maintenance_settings SET current_receipt_sequence = 1`).Error)

	_, err = h.svc.CreatePayment(ctx, cashPayment("A-102", day(2026, 3, 1), day(2026, 3, 6)))
	require.ErrorIs(t, err, domain.ErrDuplicateReceipt)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	payments, err := h.svc.ListPayments(ctx, domain.ListPaymentsRequest{})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestPaymentUpdateFromStaleReadIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	repo := repository.Provide()

	created, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 5)))
	require.NoError(t, err)
	stale, err := repo.FindByID(ctx, h.db, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stale)

	h.clock.Advance(time.Minute)
	notes := "cash counted twice"
	_, err = h.svc.UpdatePayment(ctx, created.ID, domain.UpdatePaymentRequest{Notes: &notes, Actor: "treasurer"})
	require.NoError(t, err)

	lost := *stale
	lost.BaseAmount = decimal.NewFromInt(3000)
	lost.TotalAmount = decimal.NewFromInt(3000)
	lost.UpdatedAt = h.clock.Now()
	ok, err := repo.Update(ctx, h.db, &lost, stale.Status, stale.UpdatedAt)
	require.NoError(t, err)
	assert.False(t, ok)

	current, err := h.svc.GetPayment(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, current.BaseAmount.Equal(decimal.NewFromInt(2500)))
	require.NotNil(t, current.Notes)
	assert.Equal(t, notes, *current.Notes)

	fresh := current
	fresh.BaseAmount = decimal.NewFromInt(3000)
	fresh.TotalAmount = decimal.NewFromInt(3000)
	fresh.UpdatedAt = h.clock.Now().Add(time.Minute)
	ok, err = repo.Update(ctx, h.db, &fresh, current.Status, current.UpdatedAt)
	require.NoError(t, err)
	assert.True(t, ok)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestUpdateSettingsKeepsSequence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreatePayment(ctx, cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 2)))
	require.NoError(t, err)

	fee := decimal.NewFromInt(3000)
	dueDay := 5
	prefix := "SOC/"
	updated, err := h.settings.UpdateSettings(ctx, domain.UpdateSettingsRequest{
		BaseMaintenanceFee: &fee,
		PenaltyDueDate:     &dueDay,
		ReceiptPrefix:      &prefix,
		Actor:              "admin",
	})
	require.NoError(t, err)
	assert.True(t, updated.BaseMaintenanceFee.Equal(fee))
	assert.Equal(t, 5, updated.PenaltyDueDate)
	assert.Equal(t, int64(2), updated.CurrentReceiptSequence)

	req := cashPayment("A-102", day(2026, 3, 1), day(2026, 3, 6))
	req.BaseAmount = decimal.Zero
	payment, err := h.svc.CreatePayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "SOC/2", payment.ReceiptNumber)
	assert.True(t, payment.TotalAmount.Equal(decimal.NewFromInt(3200)))

	badDay := 32
	_, err = h.settings.UpdateSettings(ctx, domain.UpdateSettingsRequest{PenaltyDueDate: &badDay, Actor: "admin"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	empty := " "
	_, err = h.settings.UpdateSettings(ctx, domain.UpdateSettingsRequest{ReceiptPrefix: &empty, Actor: "admin"})
	require.ErrorIs(t, err, domain.ErrEmptyReceiptPrefix)
}

func TestCreatePaymentWithoutSettings(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Exec(`DELETE FROM maintenance_settings`).Error)

	_, err := h.svc.CreatePayment(context.Background(), cashPayment("A-101", day(2026, 3, 1), day(2026, 3, 2)))
	require.ErrorIs(t, err, domain.ErrSettingsNotFound)
}
