package overview

import (
	"context"
	"time"

	flatdomain "github.com/smallbiznis/societyops/internal/flat/domain"
	maintenancedomain "github.com/smallbiznis/societyops/internal/maintenance/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Flats       flatdomain.Service
	Maintenance maintenancedomain.Service
}

// Service recomputes statistics from the current records on every call.
type Service struct {
	log         *zap.Logger
	flats       flatdomain.Service
	maintenance maintenancedomain.Service
}

func New(p Params) *Service {
	return &Service{
		log:         p.Log.Named("overview.service"),
		flats:       p.Flats,
		maintenance: p.Maintenance,
	}
}

func (s *Service) OccupancyStats(ctx context.Context, block string) (OccupancyStats, error) {
	flats, err := s.flats.ListFlats(ctx, flatdomain.ListFlatsRequest{Block: block})
	if err != nil {
		return OccupancyStats{}, err
	}
	return ComputeOccupancyStats(flats), nil
}

// PaymentStats summarizes a month's payments, or every payment when month is nil.
func (s *Service) PaymentStats(ctx context.Context, month *time.Time) (PaymentStats, error) {
	payments, err := s.maintenance.ListPayments(ctx, maintenancedomain.ListPaymentsRequest{PaymentMonth: month})
	if err != nil {
		return PaymentStats{}, err
	}
	return ComputePaymentStats(payments), nil
}

var Module = fx.Module("overview.service",
	fx.Provide(New),
)
