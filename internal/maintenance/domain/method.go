package domain

import (
	"strings"

	"github.com/smallbiznis/societyops/internal/apperr"
)

// ValidateMethodFields checks that the fields required by the payment method
// are present. Fields of other methods are ignored.
func ValidateMethodFields(p Payment) error {
	switch p.PaymentMethod {
	case MethodCash:
		return nil
	case MethodCheque:
		if blank(p.ChequeNumber) {
			return apperr.Validation("cheque_number", "required", "cheque_number is required for cheque payments")
		}
		if p.ChequeDate == nil || p.ChequeDate.IsZero() {
			return apperr.Validation("cheque_date", "required", "cheque_date is required for cheque payments")
		}
		if blank(p.BankName) {
			return apperr.Validation("bank_name", "required", "bank_name is required for cheque payments")
		}
		return nil
	case MethodUPIIMPS, MethodBankTransfer:
		if blank(p.TransactionReference) {
			return apperr.Validation("transaction_reference", "required", "transaction_reference is required for "+string(p.PaymentMethod)+" payments")
		}
		return nil
	default:
		return ErrInvalidMethod
	}
}

func blank(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}
