package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societyops/internal/maintenance/domain"
	"gorm.io/gorm"
)

const paymentColumns = `id, flat_number, resident_id, payment_month, base_amount, penalty_amount,
	days_late, total_amount, payment_date, payment_method, status, receipt_number,
	cheque_number, cheque_date, bank_name, transaction_reference, notes,
	verified_at, verified_by, created_by, created_at, updated_at`

const settingsColumns = `id, base_maintenance_fee, late_payment_penalty, penalty_due_date,
	receipt_prefix, current_receipt_sequence, is_active, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO maintenance_payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.FlatNumber,
		p.ResidentID,
		p.PaymentMonth,
		p.BaseAmount,
		p.PenaltyAmount,
		p.DaysLate,
		p.TotalAmount,
		p.PaymentDate,
		p.PaymentMethod,
		p.Status,
		p.ReceiptNumber,
		p.ChequeNumber,
		p.ChequeDate,
		p.BankName,
		p.TransactionReference,
		p.Notes,
		p.VerifiedAt,
		p.VerifiedBy,
		p.CreatedBy,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM maintenance_payments WHERE id = ?`,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) FindByFlatMonth(ctx context.Context, db *gorm.DB, flatNumber string, month time.Time) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM maintenance_payments
		 WHERE flat_number = ? AND payment_month = ?`,
		flatNumber,
		month,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPaymentsFilter) ([]*domain.Payment, error) {
	var (
		payments   []*domain.Payment
		conditions []string
		args       []any
	)
	if flat := strings.TrimSpace(filter.FlatNumber); flat != "" {
		conditions = append(conditions, "flat_number = ?")
		args = append(args, flat)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.PaymentMonth != nil {
		conditions = append(conditions, "payment_month = ?")
		args = append(args, *filter.PaymentMonth)
	}

	query := `SELECT ` + paymentColumns + ` FROM maintenance_payments`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	if err := db.WithContext(ctx).Raw(query, args...).Scan(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, p *domain.Payment, expected domain.PaymentStatus, readAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE maintenance_payments
		 SET resident_id = ?, payment_month = ?, base_amount = ?, penalty_amount = ?,
		     days_late = ?, total_amount = ?, payment_date = ?, payment_method = ?,
		     status = ?, cheque_number = ?, cheque_date = ?, bank_name = ?,
		     transaction_reference = ?, notes = ?, verified_at = ?, verified_by = ?,
		     updated_at = ?
		 WHERE id = ? AND status = ? AND updated_at = ?`,
		p.ResidentID,
		p.PaymentMonth,
		p.BaseAmount,
		p.PenaltyAmount,
		p.DaysLate,
		p.TotalAmount,
		p.PaymentDate,
		p.PaymentMethod,
		p.Status,
		p.ChequeNumber,
		p.ChequeDate,
		p.BankName,
		p.TransactionReference,
		p.Notes,
		p.VerifiedAt,
		p.VerifiedBy,
		p.UpdatedAt,
		p.ID,
		expected,
		readAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListPendingThrough(ctx context.Context, db *gorm.DB, month time.Time, limit int) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	query := `SELECT ` + paymentColumns + `
		 FROM maintenance_payments
		 WHERE status = ? AND payment_month <= ?
		 ORDER BY payment_month ASC, id ASC`
	args := []any{domain.StatusPending, month}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.PaymentStatus, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE maintenance_payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		now,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) FindActiveSettings(ctx context.Context, db *gorm.DB) (*domain.Settings, error) {
	var settings domain.Settings
	err := db.WithContext(ctx).Raw(
		`SELECT `+settingsColumns+` FROM maintenance_settings WHERE is_active = ?`,
		true,
	).Scan(&settings).Error
	if err != nil {
		return nil, err
	}
	if settings.ID == 0 {
		return nil, nil
	}
	return &settings, nil
}

func (r *repo) UpdateActiveSettings(ctx context.Context, db *gorm.DB, s *domain.Settings) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE maintenance_settings
		 SET base_maintenance_fee = ?, late_payment_penalty = ?, penalty_due_date = ?,
		     receipt_prefix = ?, updated_at = ?
		 WHERE id = ? AND is_active = ?`,
		s.BaseMaintenanceFee,
		s.LatePaymentPenalty,
		s.PenaltyDueDate,
		s.ReceiptPrefix,
		s.UpdatedAt,
		s.ID,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AllocateReceipt(ctx context.Context, db *gorm.DB, now time.Time) (*domain.ReceiptAllocation, error) {
	var rows []domain.ReceiptAllocation
	err := db.WithContext(ctx).Raw(
		`UPDATE maintenance_settings
		 SET current_receipt_sequence = current_receipt_sequence + 1, updated_at = ?
		 WHERE is_active = ?
		 RETURNING base_maintenance_fee, late_payment_penalty, penalty_due_date,
		           receipt_prefix, current_receipt_sequence - 1 AS issued_sequence`,
		now,
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
