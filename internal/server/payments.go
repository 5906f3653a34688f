package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	maintenancedomain "github.com/smallbiznis/societyops/internal/maintenance/domain"
	"github.com/smallbiznis/societyops/internal/receipt"
)

type createPaymentRequest struct {
	FlatNumber           string          `json:"flat_number"`
	ResidentID           *string         `json:"resident_id"`
	PaymentMonth         string          `json:"payment_month"`
	BaseAmount           decimal.Decimal `json:"base_amount"`
	PaymentDate          string          `json:"payment_date"`
	PaymentMethod        string          `json:"payment_method"`
	Status               string          `json:"status"`
	ChequeNumber         *string         `json:"cheque_number"`
	ChequeDate           *string         `json:"cheque_date"`
	BankName             *string         `json:"bank_name"`
	TransactionReference *string         `json:"transaction_reference"`
	Notes                *string         `json:"notes"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	month, err := parseRequiredMonth("payment_month", req.PaymentMonth)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	paidOn, err := parseRequiredDate("payment_date", req.PaymentDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	chequeDate, err := parseOptionalDate("cheque_date", req.ChequeDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.maintenanceSvc.CreatePayment(c.Request.Context(), maintenancedomain.CreatePaymentRequest{
		FlatNumber:           strings.TrimSpace(req.FlatNumber),
		ResidentID:           req.ResidentID,
		PaymentMonth:         month,
		BaseAmount:           req.BaseAmount,
		PaymentDate:          paidOn,
		PaymentMethod:        maintenancedomain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Status:               maintenancedomain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		ChequeNumber:         req.ChequeNumber,
		ChequeDate:           chequeDate,
		BankName:             req.BankName,
		TransactionReference: req.TransactionReference,
		Notes:                req.Notes,
		Actor:                actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": payment})
}

type updatePaymentRequest struct {
	ResidentID           *string          `json:"resident_id"`
	PaymentMonth         *string          `json:"payment_month"`
	BaseAmount           *decimal.Decimal `json:"base_amount"`
	PaymentDate          *string          `json:"payment_date"`
	PaymentMethod        *string          `json:"payment_method"`
	Status               *string          `json:"status"`
	ChequeNumber         *string          `json:"cheque_number"`
	ChequeDate           *string          `json:"cheque_date"`
	BankName             *string          `json:"bank_name"`
	TransactionReference *string          `json:"transaction_reference"`
	Notes                *string          `json:"notes"`
}

func (s *Server) UpdatePayment(c *gin.Context) {
	id, err := parseSnowflakeID("id", c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	month, err := parseOptionalMonth("payment_month", req.PaymentMonth)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	paidOn, err := parseOptionalDate("payment_date", req.PaymentDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	chequeDate, err := parseOptionalDate("cheque_date", req.ChequeDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	update := maintenancedomain.UpdatePaymentRequest{
		ResidentID:           req.ResidentID,
		PaymentMonth:         month,
		BaseAmount:           req.BaseAmount,
		PaymentDate:          paidOn,
		ChequeNumber:         req.ChequeNumber,
		ChequeDate:           chequeDate,
		BankName:             req.BankName,
		TransactionReference: req.TransactionReference,
		Notes:                req.Notes,
		Actor:                actorFrom(c),
	}
	if req.PaymentMethod != nil {
		method := maintenancedomain.PaymentMethod(strings.ToLower(strings.TrimSpace(*req.PaymentMethod)))
		update.PaymentMethod = &method
	}
	if req.Status != nil {
		status := maintenancedomain.PaymentStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		update.Status = &status
	}

	payment, err := s.maintenanceSvc.UpdatePayment(c.Request.Context(), id, update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := parseSnowflakeID("id", c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.maintenanceSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) ListPayments(c *gin.Context) {
	var query struct {
		FlatNumber   string `form:"flat_number"`
		Status       string `form:"status"`
		PaymentMonth string `form:"payment_month"`
		Limit        int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if query.Limit < 0 {
		AbortWithError(c, newValidationError("limit", "out_of_range", "limit must not be negative"))
		return
	}

	month, err := parseOptionalMonth("payment_month", &query.PaymentMonth)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payments, err := s.maintenanceSvc.ListPayments(c.Request.Context(), maintenancedomain.ListPaymentsRequest{
		FlatNumber:   strings.TrimSpace(query.FlatNumber),
		Status:       maintenancedomain.PaymentStatus(strings.ToLower(strings.TrimSpace(query.Status))),
		PaymentMonth: month,
		Limit:        query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) CheckExistingPayment(c *gin.Context) {
	flatNumber := strings.TrimSpace(c.Query("flat_number"))
	if flatNumber == "" {
		AbortWithError(c, newValidationError("flat_number", "required", "flat_number is required"))
		return
	}
	month, err := parseRequiredMonth("payment_month", c.Query("payment_month"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	existing, err := s.maintenanceSvc.CheckExistingPayment(c.Request.Context(), flatNumber, month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exists": existing != nil, "data": existing})
}

type calculatePenaltyRequest struct {
	PaymentDate  string `json:"payment_date"`
	PaymentMonth string `json:"payment_month"`
}

// CalculatePenalty previews the late fee under the active settings.
func (s *Server) CalculatePenalty(c *gin.Context) {
	var req calculatePenaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paidOn, err := parseRequiredDate("payment_date", req.PaymentDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	month, err := parseRequiredMonth("payment_month", req.PaymentMonth)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	settings, err := s.settingsSvc.GetActiveSettings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result := s.maintenanceSvc.CalculatePenalty(paidOn, month, settings.PenaltyDueDate, settings.LatePaymentPenalty)
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) DownloadReceipt(c *gin.Context) {
	id, err := parseSnowflakeID("id", c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	payment, err := s.maintenanceSvc.GetPayment(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := s.receipts.FromPayment(payment)
	doc, err := s.receipts.Render(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", receipt.FileName(data)))
	c.Data(http.StatusOK, "application/pdf", body)
}
