package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societyops/internal/apperr"
	auditdomain "github.com/smallbiznis/societyops/internal/audit/domain"
	"github.com/smallbiznis/societyops/internal/clock"
	"github.com/smallbiznis/societyops/internal/events"
	"github.com/smallbiznis/societyops/internal/flat/domain"
	"github.com/smallbiznis/societyops/internal/lock"
	"github.com/smallbiznis/societyops/internal/observability/metrics"
	"github.com/smallbiznis/societyops/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Bus     events.Bus
	Audit   auditdomain.Service
	Guard   *lock.Guard      `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	bus     events.Bus
	audit   auditdomain.Service
	guard   *lock.Guard
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("flat.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		bus:     p.Bus,
		audit:   p.Audit,
		guard:   p.Guard,
		metrics: p.Metrics,
	}
}

func (s *Service) CreateFlat(ctx context.Context, req domain.CreateFlatRequest) (domain.Flat, error) {
	req.Block = strings.TrimSpace(req.Block)
	req.FlatNumber = strings.TrimSpace(req.FlatNumber)
	req.FlatType = strings.TrimSpace(req.FlatType)
	if err := apperr.ValidateStruct(req); err != nil {
		return domain.Flat{}, err
	}

	now := s.clock.Now()
	flat := domain.Flat{
		ID:              s.genID.Generate(),
		Block:           req.Block,
		FlatNumber:      req.FlatNumber,
		FloorNumber:     req.FloorNumber,
		FlatType:        req.FlatType,
		OccupancyStatus: domain.OccupancyVacant,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.CarpetArea != nil {
		flat.CarpetArea = decimal.NewNullDecimal(*req.CarpetArea)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertFlat(ctx, tx, &flat); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateFlat
			}
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			ActorID:    req.Actor,
			Action:     "flat.created",
			TargetType: "flat",
			TargetID:   flat.ID.String(),
			Metadata: map[string]any{
				"block":       flat.Block,
				"flat_number": flat.FlatNumber,
			},
		})
	})
	if err != nil {
		return domain.Flat{}, err
	}
	return flat, nil
}

func (s *Service) GetFlat(ctx context.Context, id snowflake.ID) (domain.Flat, error) {
	flat, err := s.repo.FindFlatByID(ctx, s.db, id)
	if err != nil {
		return domain.Flat{}, err
	}
	if flat == nil {
		return domain.Flat{}, domain.ErrFlatNotFound
	}
	return *flat, nil
}

func (s *Service) ListFlats(ctx context.Context, req domain.ListFlatsRequest) ([]domain.Flat, error) {
	switch req.OccupancyStatus {
	case "", domain.OccupancyVacant, domain.OccupancyOccupied, domain.OccupancyPending:
	default:
		return nil, domain.ErrInvalidStatus
	}

	items, err := s.repo.ListFlats(ctx, s.db, domain.ListFlatsFilter{
		Block:           req.Block,
		OccupancyStatus: req.OccupancyStatus,
	})
	if err != nil {
		return nil, err
	}

	flats := make([]domain.Flat, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		flats = append(flats, *item)
	}
	return flats, nil
}

func (s *Service) CreateAssignment(ctx context.Context, req domain.CreateAssignmentRequest) (domain.Assignment, error) {
	req.ResidentID = strings.TrimSpace(req.ResidentID)
	if err := apperr.ValidateStruct(req); err != nil {
		return domain.Assignment{}, err
	}
	if req.StartDate.IsZero() {
		return domain.Assignment{}, domain.ErrStartDate
	}

	start := clock.TruncateDay(req.StartDate)
	var end *time.Time
	if req.EndDate != nil {
		e := clock.TruncateDay(*req.EndDate)
		if e.Before(start) {
			return domain.Assignment{}, domain.ErrInvalidEndDate
		}
		end = &e
	}

	var assignment domain.Assignment
	err := s.guard.WithFlat(ctx, req.FlatID.String(), func() error {
		now := s.clock.Now()
		assignment = domain.Assignment{
			ID:             s.genID.Generate(),
			FlatID:         req.FlatID,
			ResidentID:     req.ResidentID,
			AssignmentType: req.AssignmentType,
			StartDate:      start,
			EndDate:        end,
			IsActive:       true,
			Notes:          req.Notes,
			CreatedBy:      req.Actor,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			flat := occupiedBy(req.FlatID, assignment, now)
			ok, err := s.repo.OccupyFlat(ctx, tx, &flat)
			if err != nil {
				return err
			}
			if !ok {
				current, err := s.repo.FindFlatByID(ctx, tx, req.FlatID)
				if err != nil {
					return err
				}
				if current == nil {
					return domain.ErrFlatNotFound
				}
				return domain.ErrFlatNotVacant
			}

			if err := s.repo.InsertAssignment(ctx, tx, &assignment); err != nil {
				if db.IsDuplicateKeyErr(err) {
					s.log.Error("vacant flat already has an active assignment",
						zap.String("flat_id", req.FlatID.String()),
						zap.Error(err),
					)
					return domain.ErrActiveAssignmentExists
				}
				return err
			}

			updated, err := s.repo.FindFlatByID(ctx, tx, req.FlatID)
			if err != nil {
				return err
			}
			if updated == nil {
				return domain.ErrFlatNotFound
			}
			assignment.FlatNumber = updated.FlatNumber
			assignment.Block = updated.Block

			if err := s.bus.Publish(ctx, tx, events.AssignmentCreated{Assignment: assignment, Flat: *updated}); err != nil {
				return err
			}
			return s.audit.Record(ctx, tx, auditdomain.Entry{
				ActorID:    req.Actor,
				Action:     "assignment.created",
				TargetType: "flat",
				TargetID:   req.FlatID.String(),
				Metadata: map[string]any{
					"assignment_id":   assignment.ID.String(),
					"resident_id":     assignment.ResidentID,
					"assignment_type": string(assignment.AssignmentType),
					"start_date":      start.Format(clock.DateLayout),
				},
			})
		})
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	s.metrics.RecordAssignment(ctx, "created", string(domain.OccupancyOccupied))
	s.log.Info("assignment created",
		zap.String("flat_id", req.FlatID.String()),
		zap.String("assignment_id", assignment.ID.String()),
		zap.String("assignment_type", string(assignment.AssignmentType)),
	)
	return assignment, nil
}

func (s *Service) RemoveAssignment(ctx context.Context, req domain.RemoveAssignmentRequest) error {
	if err := apperr.ValidateStruct(req); err != nil {
		return err
	}

	var removed *domain.Assignment
	err := s.guard.WithFlat(ctx, req.FlatID.String(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			flat, err := s.repo.FindFlatByID(ctx, tx, req.FlatID)
			if err != nil {
				return err
			}
			if flat == nil {
				return domain.ErrFlatNotFound
			}

			active, err := s.repo.FindActiveAssignment(ctx, tx, req.FlatID)
			if err != nil {
				return err
			}
			if active == nil {
				return nil
			}

			now := s.clock.Now()
			endDate := clock.TruncateDay(now)
			if req.EndDate != nil {
				endDate = clock.TruncateDay(*req.EndDate)
			}
			if endDate.Before(active.StartDate) {
				return domain.ErrInvalidEndDate
			}
			actor := req.Actor
			active.EndDate = &endDate
			active.EndedAt = &now
			active.EndedBy = &actor
			active.UpdatedAt = now

			ok, err := s.repo.DeactivateAssignment(ctx, tx, active)
			if err != nil {
				return err
			}
			if !ok {
				// Removed concurrently by another caller.
				return nil
			}
			active.IsActive = false

			vacated, err := s.repo.VacateFlat(ctx, tx, req.FlatID, now)
			if err != nil {
				return err
			}
			if !vacated {
				s.log.Error("flat with an active assignment is not occupied",
					zap.String("flat_id", req.FlatID.String()),
					zap.String("occupancy_status", string(flat.OccupancyStatus)),
				)
				return domain.ErrFlatStateMismatch
			}

			updated, err := s.repo.FindFlatByID(ctx, tx, req.FlatID)
			if err != nil {
				return err
			}
			if updated == nil {
				return domain.ErrFlatNotFound
			}

			if err := s.bus.Publish(ctx, tx, events.AssignmentRemoved{Assignment: *active, Flat: *updated}); err != nil {
				return err
			}
			if err := s.audit.Record(ctx, tx, auditdomain.Entry{
				ActorID:    req.Actor,
				Action:     "assignment.removed",
				TargetType: "flat",
				TargetID:   req.FlatID.String(),
				Metadata: map[string]any{
					"assignment_id": active.ID.String(),
					"resident_id":   active.ResidentID,
					"end_date":      endDate.Format(clock.DateLayout),
				},
			}); err != nil {
				return err
			}
			removed = active
			return nil
		})
	})
	if err != nil {
		return err
	}
	if removed == nil {
		return nil
	}

	s.metrics.RecordAssignment(ctx, "removed", string(domain.OccupancyVacant))
	s.log.Info("assignment removed",
		zap.String("flat_id", req.FlatID.String()),
		zap.String("assignment_id", removed.ID.String()),
	)
	return nil
}

func (s *Service) ListAssignments(ctx context.Context, req domain.ListAssignmentsRequest) ([]domain.Assignment, error) {
	items, err := s.repo.ListAssignments(ctx, s.db, domain.ListAssignmentsFilter{
		FlatID:     req.FlatID,
		ActiveOnly: req.ActiveOnly,
	})
	if err != nil {
		return nil, err
	}

	assignments := make([]domain.Assignment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		assignments = append(assignments, *item)
	}
	return assignments, nil
}

// ReconcileFlat rewrites the flat's derived fields from its active assignment.
// Pending flats are returned unchanged.
func (s *Service) ReconcileFlat(ctx context.Context, id snowflake.ID, actor string) (domain.Flat, error) {
	if strings.TrimSpace(actor) == "" {
		return domain.Flat{}, apperr.Validation("actor", "required", "actor is required")
	}

	var result domain.Flat
	err := s.guard.WithFlat(ctx, id.String(), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			flat, err := s.repo.FindFlatByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if flat == nil {
				return domain.ErrFlatNotFound
			}
			if flat.OccupancyStatus == domain.OccupancyPending {
				result = *flat
				return nil
			}

			active, err := s.repo.FindActiveAssignment(ctx, tx, id)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			target := vacantFlat(id, now)
			if active != nil {
				target = occupiedBy(id, *active, now)
			}
			if sameOccupancy(*flat, target) {
				result = *flat
				return nil
			}

			if _, err := s.repo.OverwriteOccupancy(ctx, tx, &target); err != nil {
				return err
			}
			updated, err := s.repo.FindFlatByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if updated == nil {
				return domain.ErrFlatNotFound
			}
			result = *updated

			s.log.Warn("flat occupancy reconciled",
				zap.String("flat_id", id.String()),
				zap.String("from", string(flat.OccupancyStatus)),
				zap.String("to", string(updated.OccupancyStatus)),
			)
			return s.audit.Record(ctx, tx, auditdomain.Entry{
				ActorID:    actor,
				Action:     "flat.reconciled",
				TargetType: "flat",
				TargetID:   id.String(),
				Metadata: map[string]any{
					"from": string(flat.OccupancyStatus),
					"to":   string(updated.OccupancyStatus),
				},
			})
		})
	})
	if err != nil {
		return domain.Flat{}, fmt.Errorf("reconcile flat %s: %w", id, err)
	}
	return result, nil
}

func (s *Service) FindOccupancyDrift(ctx context.Context) ([]domain.Drift, error) {
	return s.repo.ListDrift(ctx, s.db)
}

// occupiedBy returns the derived flat fields for an active assignment.
func occupiedBy(flatID snowflake.ID, a domain.Assignment, now time.Time) domain.Flat {
	resident := a.ResidentID
	ownership := a.AssignmentType
	possession := a.StartDate
	flat := domain.Flat{
		ID:                flatID,
		OccupancyStatus:   domain.OccupancyOccupied,
		CurrentResidentID: &resident,
		OwnershipType:     &ownership,
		PossessionDate:    &possession,
		LeaseEndDate:      a.EndDate,
		UpdatedAt:         now,
	}
	if a.AssignmentType == domain.AssignmentTenant {
		leaseStart := a.StartDate
		flat.LeaseStartDate = &leaseStart
	}
	return flat
}

func vacantFlat(flatID snowflake.ID, now time.Time) domain.Flat {
	return domain.Flat{
		ID:              flatID,
		OccupancyStatus: domain.OccupancyVacant,
		UpdatedAt:       now,
	}
}

func sameOccupancy(a, b domain.Flat) bool {
	return a.OccupancyStatus == b.OccupancyStatus &&
		equalString(a.CurrentResidentID, b.CurrentResidentID) &&
		equalString((*string)(a.OwnershipType), (*string)(b.OwnershipType)) &&
		equalDate(a.PossessionDate, b.PossessionDate) &&
		equalDate(a.LeaseStartDate, b.LeaseStartDate) &&
		equalDate(a.LeaseEndDate, b.LeaseEndDate)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return clock.TruncateDay(*a).Equal(clock.TruncateDay(*b))
}
