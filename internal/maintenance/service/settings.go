package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/societyops/internal/apperr"
	auditdomain "github.com/smallbiznis/societyops/internal/audit/domain"
	"github.com/smallbiznis/societyops/internal/maintenance/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SettingsService struct {
	*Service
}

func NewSettings(p Params) domain.SettingsService {
	svc := newService(p)
	svc.log = p.Log.Named("maintenance.settings")
	return &SettingsService{Service: svc}
}

func (s *SettingsService) GetActiveSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.FindActiveSettings(ctx, s.db)
	if err != nil {
		return domain.Settings{}, err
	}
	if settings == nil {
		return domain.Settings{}, domain.ErrSettingsNotFound
	}
	return *settings, nil
}

// UpdateSettings changes fee, penalty, due day and prefix. The receipt
// sequence only ever moves through payment creation.
func (s *SettingsService) UpdateSettings(ctx context.Context, req domain.UpdateSettingsRequest) (domain.Settings, error) {
	if err := apperr.ValidateStruct(req); err != nil {
		return domain.Settings{}, err
	}
	if req.BaseMaintenanceFee != nil && req.BaseMaintenanceFee.IsNegative() {
		return domain.Settings{}, domain.ErrNegativeAmount.WithField("base_maintenance_fee")
	}
	if req.LatePaymentPenalty != nil && req.LatePaymentPenalty.IsNegative() {
		return domain.Settings{}, domain.ErrNegativeAmount.WithField("late_payment_penalty")
	}
	if req.ReceiptPrefix != nil && strings.TrimSpace(*req.ReceiptPrefix) == "" {
		return domain.Settings{}, domain.ErrEmptyReceiptPrefix
	}

	var updated domain.Settings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindActiveSettings(ctx, tx)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrSettingsNotFound
		}

		next := *current
		if req.BaseMaintenanceFee != nil {
			next.BaseMaintenanceFee = *req.BaseMaintenanceFee
		}
		if req.LatePaymentPenalty != nil {
			next.LatePaymentPenalty = *req.LatePaymentPenalty
		}
		if req.PenaltyDueDate != nil {
			next.PenaltyDueDate = *req.PenaltyDueDate
		}
		if req.ReceiptPrefix != nil {
			next.ReceiptPrefix = strings.TrimSpace(*req.ReceiptPrefix)
		}
		next.UpdatedAt = s.clock.Now()

		ok, err := s.repo.UpdateActiveSettings(ctx, tx, &next)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrSettingsNotFound
		}

		reloaded, err := s.repo.FindActiveSettings(ctx, tx)
		if err != nil {
			return err
		}
		if reloaded == nil {
			return domain.ErrSettingsNotFound
		}
		updated = *reloaded

		return s.audit.Record(ctx, tx, auditdomain.Entry{
			ActorID:    req.Actor,
			Action:     "maintenance_settings.updated",
			TargetType: "maintenance_settings",
			TargetID:   updated.ID.String(),
			Metadata: map[string]any{
				"base_maintenance_fee": updated.BaseMaintenanceFee.StringFixed(2),
				"late_payment_penalty": updated.LatePaymentPenalty.StringFixed(2),
				"penalty_due_date":     updated.PenaltyDueDate,
				"receipt_prefix":       updated.ReceiptPrefix,
			},
		})
	})
	if err != nil {
		return domain.Settings{}, err
	}

	s.log.Info("maintenance settings updated",
		zap.String("base_maintenance_fee", updated.BaseMaintenanceFee.StringFixed(2)),
		zap.Int("penalty_due_date", updated.PenaltyDueDate),
	)
	return updated, nil
}
