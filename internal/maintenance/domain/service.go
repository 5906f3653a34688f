package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societyops/internal/apperr"
)

type CreatePaymentRequest struct {
	FlatNumber           string          `json:"flat_number" validate:"required,max=32"`
	ResidentID           *string         `json:"resident_id"`
	PaymentMonth         time.Time       `json:"payment_month"`
	BaseAmount           decimal.Decimal `json:"base_amount"`
	PaymentDate          time.Time       `json:"payment_date"`
	PaymentMethod        PaymentMethod   `json:"payment_method" validate:"required,oneof=cash cheque upi_imps bank_transfer"`
	Status               PaymentStatus   `json:"status" validate:"omitempty,oneof=pending paid"`
	ChequeNumber         *string         `json:"cheque_number"`
	ChequeDate           *time.Time      `json:"cheque_date"`
	BankName             *string         `json:"bank_name"`
	TransactionReference *string         `json:"transaction_reference"`
	Notes                *string         `json:"notes"`
	Actor                string          `json:"-" validate:"required"`
}

// UpdatePaymentRequest is a partial update; nil fields are left unchanged.
type UpdatePaymentRequest struct {
	ResidentID           *string          `json:"resident_id"`
	PaymentMonth         *time.Time       `json:"payment_month"`
	BaseAmount           *decimal.Decimal `json:"base_amount"`
	PaymentDate          *time.Time       `json:"payment_date"`
	PaymentMethod        *PaymentMethod   `json:"payment_method" validate:"omitempty,oneof=cash cheque upi_imps bank_transfer"`
	Status               *PaymentStatus   `json:"status" validate:"omitempty,oneof=pending paid overdue verified"`
	ChequeNumber         *string          `json:"cheque_number"`
	ChequeDate           *time.Time       `json:"cheque_date"`
	BankName             *string          `json:"bank_name"`
	TransactionReference *string          `json:"transaction_reference"`
	Notes                *string          `json:"notes"`
	Actor                string           `json:"-" validate:"required"`
}

// ListPaymentsRequest filters payments. A positive Limit keeps only the most
// recent matches; otherwise every match is returned.
type ListPaymentsRequest struct {
	FlatNumber   string
	Status       PaymentStatus
	PaymentMonth *time.Time
	Limit        int
}

type UpdateSettingsRequest struct {
	BaseMaintenanceFee *decimal.Decimal `json:"base_maintenance_fee"`
	LatePaymentPenalty *decimal.Decimal `json:"late_payment_penalty"`
	PenaltyDueDate     *int             `json:"penalty_due_date" validate:"omitempty,gte=1,lte=31"`
	ReceiptPrefix      *string          `json:"receipt_prefix" validate:"omitempty,max=16"`
	Actor              string           `json:"-" validate:"required"`
}

type Service interface {
	CalculatePenalty(paymentDate, paymentMonth time.Time, dueDay int, penalty decimal.Decimal) PenaltyResult
	CheckExistingPayment(ctx context.Context, flatNumber string, paymentMonth time.Time) (*Payment, error)
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (Payment, error)
	UpdatePayment(ctx context.Context, id snowflake.ID, req UpdatePaymentRequest) (Payment, error)
	GetPayment(ctx context.Context, id snowflake.ID) (Payment, error)
	ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, error)
	// MarkOverdue moves pending payments whose due date passed before asOf to
	// overdue and returns how many moved.
	MarkOverdue(ctx context.Context, asOf time.Time, limit int) (int, error)
}

type SettingsService interface {
	GetActiveSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (Settings, error)
}

var (
	ErrPaymentNotFound  = apperr.New(apperr.KindNotFound, "payment_not_found", "payment not found")
	ErrSettingsNotFound = apperr.New(apperr.KindNotFound, "maintenance_settings_not_found", "no active maintenance settings")
	ErrDuplicatePayment = apperr.New(apperr.KindConflict, "duplicate_payment", "a payment for this flat and month already exists")
	ErrDuplicateReceipt = apperr.New(apperr.KindConflict, "duplicate_receipt", "receipt number already issued")
	ErrPaymentModified  = apperr.New(apperr.KindConflict, "payment_modified", "payment was modified concurrently")

	ErrInvalidTransition = apperr.New(apperr.KindInvalidTransition, "invalid_status_transition", "status transition is not allowed")
	ErrPaymentVerified   = apperr.New(apperr.KindInvalidTransition, "payment_verified", "verified payments cannot be changed")

	ErrInvalidMethod      = apperr.Validation("payment_method", "invalid_value", "payment_method must be one of: cash cheque upi_imps bank_transfer")
	ErrPaymentMonth       = apperr.Validation("payment_month", "required", "payment_month is required")
	ErrPaymentDate        = apperr.Validation("payment_date", "required", "payment_date is required")
	ErrNegativeAmount     = apperr.Validation("amount", "negative_amount", "amounts must not be negative")
	ErrEmptyReceiptPrefix = apperr.Validation("receipt_prefix", "required", "receipt_prefix must not be empty")
)
