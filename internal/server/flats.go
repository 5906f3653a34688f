package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	flatdomain "github.com/smallbiznis/societyops/internal/flat/domain"
)

type createFlatRequest struct {
	Block       string           `json:"block"`
	FlatNumber  string           `json:"flat_number"`
	FloorNumber int              `json:"floor_number"`
	CarpetArea  *decimal.Decimal `json:"carpet_area"`
	FlatType    string           `json:"flat_type"`
}

func (s *Server) CreateFlat(c *gin.Context) {
	var req createFlatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	flat, err := s.flatSvc.CreateFlat(c.Request.Context(), flatdomain.CreateFlatRequest{
		Block:       strings.TrimSpace(req.Block),
		FlatNumber:  strings.TrimSpace(req.FlatNumber),
		FloorNumber: req.FloorNumber,
		CarpetArea:  req.CarpetArea,
		FlatType:    strings.TrimSpace(req.FlatType),
		Actor:       actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": flat})
}

func (s *Server) ListFlats(c *gin.Context) {
	var query struct {
		Block           string `form:"block"`
		OccupancyStatus string `form:"occupancy_status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	flats, err := s.flatSvc.ListFlats(c.Request.Context(), flatdomain.ListFlatsRequest{
		Block:           strings.TrimSpace(query.Block),
		OccupancyStatus: flatdomain.OccupancyStatus(strings.TrimSpace(query.OccupancyStatus)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": flats})
}

func (s *Server) GetFlat(c *gin.Context) {
	id, err := parseSnowflakeID("id", c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	flat, err := s.flatSvc.GetFlat(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": flat})
}

func (s *Server) ReconcileFlat(c *gin.Context) {
	id, err := parseSnowflakeID("id", c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	flat, err := s.flatSvc.ReconcileFlat(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": flat})
}

func (s *Server) ListOccupancyDrift(c *gin.Context) {
	drift, err := s.flatSvc.FindOccupancyDrift(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": drift})
}

type createAssignmentRequest struct {
	ResidentID     string  `json:"resident_id"`
	AssignmentType string  `json:"assignment_type"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date"`
	Notes          *string `json:"notes"`
}

func (s *Server) CreateAssignment(c *gin.Context) {
	flatID, err := parseSnowflakeID("flat_id", c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseRequiredDate("start_date", req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	endDate, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	assignment, err := s.flatSvc.CreateAssignment(c.Request.Context(), flatdomain.CreateAssignmentRequest{
		FlatID:         flatID,
		ResidentID:     strings.TrimSpace(req.ResidentID),
		AssignmentType: flatdomain.AssignmentType(strings.ToLower(strings.TrimSpace(req.AssignmentType))),
		StartDate:      startDate,
		EndDate:        endDate,
		Notes:          req.Notes,
		Actor:          actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": assignment})
}

type removeAssignmentRequest struct {
	EndDate *string `json:"end_date"`
}

func (s *Server) RemoveAssignment(c *gin.Context) {
	flatID, err := parseSnowflakeID("flat_id", c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req removeAssignmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	endDate, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.flatSvc.RemoveAssignment(c.Request.Context(), flatdomain.RemoveAssignmentRequest{
		FlatID:  flatID,
		EndDate: endDate,
		Actor:   actorFrom(c),
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListFlatAssignments(c *gin.Context) {
	flatID, err := parseSnowflakeID("flat_id", c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.listAssignments(c, flatID)
}

func (s *Server) ListAssignments(c *gin.Context) {
	flatID, err := parseOptionalSnowflakeID("flat_id", c.Query("flat_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.listAssignments(c, flatID)
}

func (s *Server) listAssignments(c *gin.Context, flatID snowflake.ID) {
	activeOnly, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_value", "active must be a boolean"))
		return
	}

	req := flatdomain.ListAssignmentsRequest{FlatID: flatID}
	if activeOnly != nil {
		req.ActiveOnly = *activeOnly
	}
	assignments, err := s.flatSvc.ListAssignments(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": assignments})
}
