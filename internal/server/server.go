package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/societyops/internal/audit/domain"
	"github.com/smallbiznis/societyops/internal/config"
	flatdomain "github.com/smallbiznis/societyops/internal/flat/domain"
	maintenancedomain "github.com/smallbiznis/societyops/internal/maintenance/domain"
	"github.com/smallbiznis/societyops/internal/observability"
	obslogger "github.com/smallbiznis/societyops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/societyops/internal/observability/metrics"
	obstracing "github.com/smallbiznis/societyops/internal/observability/tracing"
	"github.com/smallbiznis/societyops/internal/overview"
	"github.com/smallbiznis/societyops/internal/ratelimit"
	"github.com/smallbiznis/societyops/internal/receipt"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	flatSvc        flatdomain.Service
	maintenanceSvc maintenancedomain.Service
	settingsSvc    maintenancedomain.SettingsService
	overviewSvc    *overview.Service
	receipts       *receipt.PDFRenderer
	auditSvc       auditdomain.Service
	limiter        writeLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	FlatSvc        flatdomain.Service
	MaintenanceSvc maintenancedomain.Service
	SettingsSvc    maintenancedomain.SettingsService
	OverviewSvc    *overview.Service
	Receipts       *receipt.PDFRenderer
	AuditSvc       auditdomain.Service
	Limiter        *ratelimit.WriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		flatSvc:        p.FlatSvc,
		maintenanceSvc: p.MaintenanceSvc,
		settingsSvc:    p.SettingsSvc,
		overviewSvc:    p.OverviewSvc,
		receipts:       p.Receipts,
		auditSvc:       p.AuditSvc,
	}
	if p.Limiter.Enabled() {
		svc.limiter = p.Limiter
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(WriteRateLimit(s.limiter, s.log))

	api.POST("/flats", s.CreateFlat)
	api.GET("/flats", s.ListFlats)
	api.GET("/flats/:id", s.GetFlat)
	api.POST("/flats/:id/reconcile", s.ReconcileFlat)
	api.POST("/flats/:id/assignments", s.CreateAssignment)
	api.DELETE("/flats/:id/assignments", s.RemoveAssignment)
	api.GET("/flats/:id/assignments", s.ListFlatAssignments)
	api.GET("/assignments", s.ListAssignments)
	api.GET("/occupancy/drift", s.ListOccupancyDrift)

	api.POST("/payments", s.CreatePayment)
	api.GET("/payments", s.ListPayments)
	api.GET("/payments/:id", s.GetPayment)
	api.PATCH("/payments/:id", s.UpdatePayment)
	api.GET("/payments/:id/receipt", s.DownloadReceipt)

	api.GET("/maintenance/existing-payment", s.CheckExistingPayment)
	api.POST("/maintenance/penalty", s.CalculatePenalty)
	api.GET("/maintenance/settings", s.GetSettings)
	api.PATCH("/maintenance/settings", s.UpdateSettings)

	api.GET("/overview/occupancy", s.OccupancyStats)
	api.GET("/overview/payments", s.PaymentStats)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
