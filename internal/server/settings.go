package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	maintenancedomain "github.com/smallbiznis/societyops/internal/maintenance/domain"
)

func (s *Server) GetSettings(c *gin.Context) {
	settings, err := s.settingsSvc.GetActiveSettings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

type updateSettingsRequest struct {
	BaseMaintenanceFee *decimal.Decimal `json:"base_maintenance_fee"`
	LatePaymentPenalty *decimal.Decimal `json:"late_payment_penalty"`
	PenaltyDueDate     *int             `json:"penalty_due_date"`
	ReceiptPrefix      *string          `json:"receipt_prefix"`
}

func (s *Server) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	settings, err := s.settingsSvc.UpdateSettings(c.Request.Context(), maintenancedomain.UpdateSettingsRequest{
		BaseMaintenanceFee: req.BaseMaintenanceFee,
		LatePaymentPenalty: req.LatePaymentPenalty,
		PenaltyDueDate:     req.PenaltyDueDate,
		ReceiptPrefix:      req.ReceiptPrefix,
		Actor:              actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}
