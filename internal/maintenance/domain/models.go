package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCheque       PaymentMethod = "cheque"
	MethodUPIIMPS      PaymentMethod = "upi_imps"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusPaid     PaymentStatus = "paid"
	StatusOverdue  PaymentStatus = "overdue"
	StatusVerified PaymentStatus = "verified"
)

type Payment struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	FlatNumber           string          `gorm:"not null" json:"flat_number"`
	ResidentID           *string         `json:"resident_id"`
	PaymentMonth         time.Time       `gorm:"not null" json:"payment_month"`
	BaseAmount           decimal.Decimal `gorm:"not null" json:"base_amount"`
	PenaltyAmount        decimal.Decimal `gorm:"not null" json:"penalty_amount"`
	DaysLate             int             `gorm:"not null" json:"days_late"`
	TotalAmount          decimal.Decimal `gorm:"not null" json:"total_amount"`
	PaymentDate          time.Time       `gorm:"not null" json:"payment_date"`
	PaymentMethod        PaymentMethod   `gorm:"not null" json:"payment_method"`
	Status               PaymentStatus   `gorm:"not null" json:"status"`
	ReceiptNumber        string          `gorm:"not null" json:"receipt_number"`
	ChequeNumber         *string         `json:"cheque_number,omitempty"`
	ChequeDate           *time.Time      `json:"cheque_date,omitempty"`
	BankName             *string         `json:"bank_name,omitempty"`
	TransactionReference *string         `json:"transaction_reference,omitempty"`
	Notes                *string         `json:"notes,omitempty"`
	VerifiedAt           *time.Time      `json:"verified_at"`
	VerifiedBy           *string         `json:"verified_by"`
	CreatedBy            string          `gorm:"not null" json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Settings is the single active maintenance configuration. Payments only ever
// advance CurrentReceiptSequence.
type Settings struct {
	ID                     snowflake.ID    `gorm:"primaryKey" json:"id"`
	BaseMaintenanceFee     decimal.Decimal `json:"base_maintenance_fee"`
	LatePaymentPenalty     decimal.Decimal `json:"late_payment_penalty"`
	PenaltyDueDate         int             `json:"penalty_due_date"`
	ReceiptPrefix          string          `json:"receipt_prefix"`
	CurrentReceiptSequence int64           `json:"current_receipt_sequence"`
	IsActive               bool            `json:"is_active"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// ReceiptAllocation is the settings snapshot returned by a receipt sequence
// increment together with the sequence number that was issued.
type ReceiptAllocation struct {
	BaseMaintenanceFee decimal.Decimal
	LatePaymentPenalty decimal.Decimal
	PenaltyDueDate     int
	ReceiptPrefix      string
	IssuedSequence     int64
}
