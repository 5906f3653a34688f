package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societyops/internal/apperr"
	auditdomain "github.com/smallbiznis/societyops/internal/audit/domain"
	"github.com/smallbiznis/societyops/internal/clock"
	"github.com/smallbiznis/societyops/internal/events"
	"github.com/smallbiznis/societyops/internal/maintenance/domain"
	"github.com/smallbiznis/societyops/internal/observability/metrics"
	"github.com/smallbiznis/societyops/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	receiptIndex  = "ux_maintenance_payments_receipt"
	receiptColumn = "maintenance_payments.receipt_number"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Bus     events.Bus
	Audit   auditdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	bus     events.Bus
	audit   auditdomain.Service
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("maintenance.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		bus:     p.Bus,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *Service) CalculatePenalty(paymentDate, paymentMonth time.Time, dueDay int, penalty decimal.Decimal) domain.PenaltyResult {
	return domain.CalculatePenalty(paymentDate, paymentMonth, dueDay, penalty)
}

func (s *Service) CheckExistingPayment(ctx context.Context, flatNumber string, paymentMonth time.Time) (*domain.Payment, error) {
	flatNumber = strings.TrimSpace(flatNumber)
	if flatNumber == "" {
		return nil, apperr.Validation("flat_number", "required", "flat_number is required")
	}
	if paymentMonth.IsZero() {
		return nil, domain.ErrPaymentMonth
	}
	return s.repo.FindByFlatMonth(ctx, s.db, flatNumber, clock.MonthStart(paymentMonth))
}

func (s *Service) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest) (domain.Payment, error) {
	req.FlatNumber = strings.TrimSpace(req.FlatNumber)
	if err := apperr.ValidateStruct(req); err != nil {
		return domain.Payment{}, err
	}
	if req.PaymentMonth.IsZero() {
		return domain.Payment{}, domain.ErrPaymentMonth
	}
	if req.PaymentDate.IsZero() {
		return domain.Payment{}, domain.ErrPaymentDate
	}
	if req.BaseAmount.IsNegative() {
		return domain.Payment{}, domain.ErrNegativeAmount.WithField("base_amount")
	}
	status := req.Status
	if status == "" {
		status = domain.StatusPending
	}

	payment := domain.Payment{
		FlatNumber:           req.FlatNumber,
		ResidentID:           trimmed(req.ResidentID),
		PaymentMonth:         clock.MonthStart(req.PaymentMonth),
		BaseAmount:           req.BaseAmount,
		PaymentDate:          clock.TruncateDay(req.PaymentDate),
		PaymentMethod:        req.PaymentMethod,
		Status:               status,
		ChequeNumber:         trimmed(req.ChequeNumber),
		ChequeDate:           truncatePtr(req.ChequeDate),
		BankName:             trimmed(req.BankName),
		TransactionReference: trimmed(req.TransactionReference),
		Notes:                req.Notes,
		CreatedBy:            req.Actor,
	}
	if err := domain.ValidateMethodFields(payment); err != nil {
		return domain.Payment{}, err
	}

	existing, err := s.repo.FindByFlatMonth(ctx, s.db, payment.FlatNumber, payment.PaymentMonth)
	if err != nil {
		return domain.Payment{}, err
	}
	if existing != nil {
		return domain.Payment{}, domain.ErrDuplicatePayment
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		alloc, err := s.repo.AllocateReceipt(ctx, tx, now)
		if err != nil {
			return err
		}
		if alloc == nil {
			return domain.ErrSettingsNotFound
		}
		receipt, err := domain.FormatReceiptNumber(alloc.ReceiptPrefix, alloc.IssuedSequence)
		if err != nil {
			return fmt.Errorf("format receipt: %w", err)
		}

		if payment.BaseAmount.IsZero() {
			payment.BaseAmount = alloc.BaseMaintenanceFee
		}
		applyPenalty(&payment, alloc.PenaltyDueDate, alloc.LatePaymentPenalty)

		payment.ID = s.genID.Generate()
		payment.ReceiptNumber = receipt
		payment.CreatedAt = now
		payment.UpdatedAt = now

		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			if db.IsDuplicateKeyErr(err) {
				if db.IsUniqueViolationOn(err, receiptIndex, receiptColumn) {
					return domain.ErrDuplicateReceipt
				}
				return domain.ErrDuplicatePayment
			}
			return err
		}

		if err := s.bus.Publish(ctx, tx, events.PaymentCreated{Payment: payment}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			ActorID:    req.Actor,
			Action:     "payment.created",
			TargetType: "maintenance_payment",
			TargetID:   payment.ID.String(),
			Metadata: map[string]any{
				"flat_number":           payment.FlatNumber,
				"payment_month":         payment.PaymentMonth.Format("2006-01"),
				"receipt_number":        payment.ReceiptNumber,
				"total_amount":          payment.TotalAmount.StringFixed(2),
				"payment_method":        string(payment.PaymentMethod),
				"cheque_number":         payment.ChequeNumber,
				"transaction_reference": payment.TransactionReference,
			},
		})
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.metrics.RecordPayment(ctx, string(payment.PaymentMethod), string(payment.Status), payment.PenaltyAmount.IsPositive())
	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("flat_number", payment.FlatNumber),
		zap.String("receipt_number", payment.ReceiptNumber),
		zap.Int("days_late", payment.DaysLate),
	)
	return payment, nil
}

func (s *Service) UpdatePayment(ctx context.Context, id snowflake.ID, req domain.UpdatePaymentRequest) (domain.Payment, error) {
	if err := apperr.ValidateStruct(req); err != nil {
		return domain.Payment{}, err
	}
	if req.BaseAmount != nil && req.BaseAmount.IsNegative() {
		return domain.Payment{}, domain.ErrNegativeAmount.WithField("base_amount")
	}

	var (
		updated    domain.Payment
		from       domain.PaymentStatus
		transition bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrPaymentNotFound
		}
		if current.Status == domain.StatusVerified {
			return domain.ErrPaymentVerified
		}

		from = current.Status
		next := *current
		now := s.clock.Now()

		if req.Status != nil && *req.Status != current.Status {
			if !domain.CanTransition(current.Status, *req.Status) {
				return domain.ErrInvalidTransition.WithMessage("cannot move payment from %s to %s", current.Status, *req.Status)
			}
			next.Status = *req.Status
			transition = true
			if next.Status == domain.StatusVerified {
				actor := req.Actor
				next.VerifiedAt = &now
				next.VerifiedBy = &actor
			}
		}

		recompute := false
		if req.BaseAmount != nil && !req.BaseAmount.Equal(current.BaseAmount) {
			next.BaseAmount = *req.BaseAmount
			recompute = true
		}
		if req.PaymentDate != nil {
			d := clock.TruncateDay(*req.PaymentDate)
			if !d.Equal(clock.TruncateDay(current.PaymentDate)) {
				next.PaymentDate = d
				recompute = true
			}
		}
		if req.PaymentMonth != nil {
			m := clock.MonthStart(*req.PaymentMonth)
			if !m.Equal(clock.MonthStart(current.PaymentMonth)) {
				next.PaymentMonth = m
				recompute = true
			}
		}
		if req.ResidentID != nil {
			next.ResidentID = trimmed(req.ResidentID)
		}
		if req.PaymentMethod != nil {
			next.PaymentMethod = *req.PaymentMethod
		}
		if req.ChequeNumber != nil {
			next.ChequeNumber = trimmed(req.ChequeNumber)
		}
		if req.ChequeDate != nil {
			next.ChequeDate = truncatePtr(req.ChequeDate)
		}
		if req.BankName != nil {
			next.BankName = trimmed(req.BankName)
		}
		if req.TransactionReference != nil {
			next.TransactionReference = trimmed(req.TransactionReference)
		}
		if req.Notes != nil {
			next.Notes = req.Notes
		}
		if err := domain.ValidateMethodFields(next); err != nil {
			return err
		}

		if recompute {
			settings, err := s.repo.FindActiveSettings(ctx, tx)
			if err != nil {
				return err
			}
			if settings == nil {
				return domain.ErrSettingsNotFound
			}
			applyPenalty(&next, settings.PenaltyDueDate, settings.LatePaymentPenalty)
		}
		next.UpdatedAt = now

		ok, err := s.repo.Update(ctx, tx, &next, current.Status, current.UpdatedAt)
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicatePayment
			}
			return err
		}
		if !ok {
			return domain.ErrPaymentModified
		}

		if transition {
			if err := s.bus.Publish(ctx, tx, events.PaymentStatusChanged{Payment: next, From: from, To: next.Status}); err != nil {
				return err
			}
			if next.Status == domain.StatusVerified {
				if err := s.bus.Publish(ctx, tx, events.PaymentVerified{Payment: next}); err != nil {
					return err
				}
			}
		}

		metadata := map[string]any{
			"recomputed": recompute,
		}
		if transition {
			metadata["from"] = string(from)
			metadata["to"] = string(next.Status)
		}
		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			ActorID:    req.Actor,
			Action:     "payment.updated",
			TargetType: "maintenance_payment",
			TargetID:   next.ID.String(),
			Metadata:   metadata,
		}); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	if transition {
		s.metrics.RecordPaymentTransition(ctx, string(from), string(updated.Status))
		s.log.Info("payment status changed",
			zap.String("payment_id", updated.ID.String()),
			zap.String("from", string(from)),
			zap.String("to", string(updated.Status)),
		)
	}
	return updated, nil
}

func (s *Service) GetPayment(ctx context.Context, id snowflake.ID) (domain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment == nil {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return *payment, nil
}

func (s *Service) ListPayments(ctx context.Context, req domain.ListPaymentsRequest) ([]domain.Payment, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, apperr.Validation("status", "invalid_value", "status must be one of: pending paid overdue verified")
	}
	filter := domain.ListPaymentsFilter{
		FlatNumber: req.FlatNumber,
		Status:     req.Status,
		Limit:      max(req.Limit, 0),
	}
	if req.PaymentMonth != nil {
		month := clock.MonthStart(*req.PaymentMonth)
		filter.PaymentMonth = &month
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}
	return payments, nil
}

func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	settings, err := s.repo.FindActiveSettings(ctx, s.db)
	if err != nil {
		return 0, err
	}
	if settings == nil {
		return 0, domain.ErrSettingsNotFound
	}

	// Candidates run through the current month; IsPastDue drops the ones
	// still inside their grace period.
	candidates, err := s.repo.ListPendingThrough(ctx, s.db, clock.MonthStart(asOf), limit)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		if !domain.IsPastDue(candidate.PaymentMonth, settings.PenaltyDueDate, asOf) {
			continue
		}

		moved := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.clock.Now()
			ok, err := s.repo.TransitionStatus(ctx, tx, candidate.ID, domain.StatusPending, domain.StatusOverdue, now)
			if err != nil || !ok {
				return err
			}
			next := *candidate
			next.Status = domain.StatusOverdue
			next.UpdatedAt = now
			if err := s.bus.Publish(ctx, tx, events.PaymentStatusChanged{Payment: next, From: domain.StatusPending, To: domain.StatusOverdue}); err != nil {
				return err
			}
			if err := s.audit.Record(ctx, tx, auditdomain.Entry{
				ActorType:  auditdomain.ActorTypeSystem,
				ActorID:    "scheduler",
				Action:     "payment.marked_overdue",
				TargetType: "maintenance_payment",
				TargetID:   candidate.ID.String(),
				Metadata: map[string]any{
					"flat_number":   candidate.FlatNumber,
					"payment_month": candidate.PaymentMonth.Format("2006-01"),
				},
			}); err != nil {
				return err
			}
			moved = true
			return nil
		})
		if err != nil {
			return marked, err
		}
		if moved {
			marked++
			s.metrics.RecordPaymentTransition(ctx, string(domain.StatusPending), string(domain.StatusOverdue))
		}
	}

	if marked > 0 {
		s.log.Info("payments marked overdue", zap.Int("count", marked), zap.Time("as_of", asOf))
	}
	return marked, nil
}

func applyPenalty(p *domain.Payment, dueDay int, penalty decimal.Decimal) {
	result := domain.CalculatePenalty(p.PaymentDate, p.PaymentMonth, dueDay, penalty)
	p.PenaltyAmount = result.Penalty
	p.DaysLate = result.DaysLate
	p.TotalAmount = p.BaseAmount.Add(result.Penalty)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func truncatePtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := clock.TruncateDay(*t)
	return &d
}
