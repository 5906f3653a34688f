package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) OccupancyStats(c *gin.Context) {
	stats, err := s.overviewSvc.OccupancyStats(c.Request.Context(), strings.TrimSpace(c.Query("block")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) PaymentStats(c *gin.Context) {
	month := c.Query("payment_month")
	parsed, err := parseOptionalMonth("payment_month", &month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stats, err := s.overviewSvc.PaymentStats(c.Request.Context(), parsed)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
