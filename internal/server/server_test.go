package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/societyops/internal/apperr"
	auditrepository "github.com/smallbiznis/societyops/internal/audit/repository"
	auditservice "github.com/smallbiznis/societyops/internal/audit/service"
	"github.com/smallbiznis/societyops/internal/clock"
	"github.com/smallbiznis/societyops/internal/config"
	"github.com/smallbiznis/societyops/internal/events"
	flatdomain "github.com/smallbiznis/societyops/internal/flat/domain"
	flatrepository "github.com/smallbiznis/societyops/internal/flat/repository"
	flatservice "github.com/smallbiznis/societyops/internal/flat/service"
	maintenancerepository "github.com/smallbiznis/societyops/internal/maintenance/repository"
	maintenanceservice "github.com/smallbiznis/societyops/internal/maintenance/service"
	"github.com/smallbiznis/societyops/internal/migration/migrationtest"
	"github.com/smallbiznis/societyops/internal/observability"
	"github.com/smallbiznis/societyops/internal/overview"
	"github.com/smallbiznis/societyops/internal/receipt"
	"github.com/smallbiznis/societyops/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := migrationtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	require.NoError(t, seed.EnsureMaintenanceSettings(context.Background(), conn, node, config.DefaultMaintenanceDefaults()))

	bus := events.NewOutbox(events.OutboxParams{Log: log, GenID: node, Clock: clk})
	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})
	flats := flatservice.New(flatservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  flatrepository.Provide(),
		Bus:   bus,
		Audit: audit,
	})
	maintenanceParams := maintenanceservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  maintenancerepository.Provide(),
		Bus:   bus,
		Audit: audit,
	}
	maintenance := maintenanceservice.New(maintenanceParams)

	cfg := config.Config{SocietyName: "Green Meadows CHS"}
	return NewServer(ServerParams{
		Gin:            NewEngine(observability.Config{}, nil),
		Cfg:            cfg,
		Log:            log,
		FlatSvc:        flats,
		MaintenanceSvc: maintenance,
		SettingsSvc:    maintenanceservice.NewSettings(maintenanceParams),
		OverviewSvc:    overview.New(overview.Params{Log: log, Flats: flats, Maintenance: maintenance}),
		Receipts:       receipt.New(cfg),
		AuditSvc:       audit,
	})
}

type apiResponse struct {
	Data   json.RawMessage `json:"data"`
	Exists bool            `json:"exists"`
	Error  *errorPayload   `json:"error"`
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderActor, "secretary")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Header().Get("Content-Type") != "application/pdf" && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func createFlat(t *testing.T, s *Server, number string) flatdomain.Flat {
	t.Helper()
	rec, resp := do(t, s, http.MethodPost, "/api/flats", gin.H{"block": "A", "flat_number": number, "floor_number": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var flat flatdomain.Flat
	require.NoError(t, json.Unmarshal(resp.Data, &flat))
	return flat
}

func TestFlatAndAssignmentRoutes(t *testing.T) {
	s := newTestServer(t)
	flat := createFlat(t, s, "101")
	assert.Equal(t, flatdomain.OccupancyVacant, flat.OccupancyStatus)

	rec, resp := do(t, s, http.MethodPost, "/api/flats", gin.H{"block": "A", "flat_number": "101"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_flat", resp.Error.Code)

	path := "/api/flats/" + flat.ID.String() + "/assignments"
	rec, _ = do(t, s, http.MethodPost, path, gin.H{
		"resident_id":     "res-9",
		"assignment_type": "tenant",
		"start_date":      "2026-03-01",
		"end_date":        "2027-02-28",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, resp = do(t, s, http.MethodPost, path, gin.H{
		"resident_id":     "res-10",
		"assignment_type": "owner",
		"start_date":      "2026-03-02",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "flat_not_vacant", resp.Error.Code)

	rec, resp = do(t, s, http.MethodGet, "/api/flats/"+flat.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got flatdomain.Flat
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, flatdomain.OccupancyOccupied, got.OccupancyStatus)

	rec, _ = do(t, s, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, resp = do(t, s, http.MethodGet, "/api/overview/occupancy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats overview.OccupancyStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Vacant)
}

func TestPaymentRoutes(t *testing.T) {
	s := newTestServer(t)

	body := gin.H{
		"flat_number":    "A-101",
		"payment_month":  "2026-03",
		"base_amount":    "2500",
		"payment_date":   "2026-03-14",
		"payment_method": "cash",
		"status":         "paid",
	}
	rec, resp := do(t, s, http.MethodPost, "/api/payments", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID            snowflake.ID `json:"id"`
		ReceiptNumber string       `json:"receipt_number"`
		DaysLate      int          `json:"days_late"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "RCP-1", created.ReceiptNumber)
	assert.Equal(t, 4, created.DaysLate)

	rec, resp = do(t, s, http.MethodPost, "/api/payments", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_payment", resp.Error.Code)

	rec, resp = do(t, s, http.MethodGet, "/api/maintenance/existing-payment?flat_number=A-101&payment_month=2026-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Exists)

	paymentPath := "/api/payments/" + created.ID.String()
	rec, _ = do(t, s, http.MethodPatch, paymentPath, gin.H{"status": "verified"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp = do(t, s, http.MethodPatch, paymentPath, gin.H{"notes": "late entry"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_transition", resp.Error.Type)

	rec, _ = do(t, s, http.MethodGet, paymentPath+"/receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec, resp = do(t, s, http.MethodGet, "/api/payments/12345", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "payment_not_found", resp.Error.Code)
}

func TestPaymentValidationErrors(t *testing.T) {
	s := newTestServer(t)

	rec, resp := do(t, s, http.MethodPost, "/api/payments", gin.H{
		"flat_number":    "A-101",
		"payment_month":  "2026-03",
		"payment_date":   "14/03/2026",
		"payment_method": "cash",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	require.Len(t, resp.Error.Errors, 1)
	assert.Equal(t, "payment_date", resp.Error.Errors[0].Field)

	rec, resp = do(t, s, http.MethodPost, "/api/payments", gin.H{
		"flat_number":    "A-101",
		"payment_month":  "2026-03",
		"payment_date":   "2026-03-05",
		"payment_method": "cheque",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", resp.Error.Type)
}

func TestCalculatePenaltyUsesActiveSettings(t *testing.T) {
	s := newTestServer(t)

	rec, resp := do(t, s, http.MethodPost, "/api/maintenance/penalty", gin.H{
		"payment_date":  "2026-04-02",
		"payment_month": "2026-03",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		Penalty  string `json:"penalty"`
		DaysLate int    `json:"days_late"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 23, result.DaysLate)
	assert.Equal(t, "200", result.Penalty)
}

func TestMissingActorIsRejected(t *testing.T) {
	s := newTestServer(t)
	raw, _ := json.Marshal(gin.H{"block": "B", "flat_number": "201"})
	req := httptest.NewRequest(http.MethodPost, "/api/flats", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMapErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"validation", apperr.Validation("flat_number", "required", "flat_number is required"), http.StatusBadRequest, "validation_error"},
		{"not found", flatdomain.ErrFlatNotFound, http.StatusNotFound, "not_found"},
		{"conflict", flatdomain.ErrFlatNotVacant, http.StatusConflict, "conflict"},
		{"transition", apperr.New(apperr.KindInvalidTransition, "invalid_status_transition", "no"), http.StatusUnprocessableEntity, "invalid_transition"},
		{"inconsistent", flatdomain.ErrFlatStateMismatch, http.StatusConflict, "inconsistent_state"},
		{"internal", assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec, resp := do(t, s, http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error.Type)
}
