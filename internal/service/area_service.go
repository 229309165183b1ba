package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/repository"
	"github.com/maninjwa/stock-count-backend/internal/workflow"
)

type AreaService interface {
	Create(ctx context.Context, actor policy.Actor, req dto.CreateAreaRequest) (*model.Area, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Area, error)
	ListByStockCount(ctx context.Context, actor policy.Actor, stockCountID uuid.UUID) ([]model.Area, error)
	Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateAreaRequest) (*model.Area, error)
	Transition(ctx context.Context, actor policy.Actor, id uuid.UUID, to model.AreaStatus) (*model.Area, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error
}

type areaService struct {
	Deps
	trigger ReconcileTrigger
}

func NewAreaService(deps Deps, trigger ReconcileTrigger) AreaService {
	return &areaService{Deps: deps, trigger: trigger}
}

func (s *areaService) Create(ctx context.Context, actor policy.Actor, req dto.CreateAreaRequest) (*model.Area, error) {
	if err := s.Policy.Authorize(actor, policy.Area, policy.Create, uuid.Nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	area := &model.Area{
		ID:           uuid.New(),
		StockCountID: req.StockCountID,
		Name:         req.Name,
		Description:  req.Description,
		Status:       model.AreaNotStarted,
	}
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		sc, err := tx.StockCounts().FindByID(ctx, req.StockCountID)
		if err != nil {
			return storeErr(err, "stock count", req.StockCountID)
		}
		if workflow.StockCount.Terminal(sc.Status) {
			return apierror.Conflict("stock count %s is %s", sc.ID, sc.Status)
		}
		return storeErr(tx.Areas().Create(ctx, area), "area", area.ID)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("area_id", area.ID.String()).Str("stock_count_id", area.StockCountID.String()).Msg("area created")
	return area, nil
}

func (s *areaService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Area, error) {
	if err := s.Policy.Authorize(actor, policy.Area, policy.Read, uuid.Nil); err != nil {
		return nil, err
	}
	area, err := s.Store.Areas().FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "area", id)
	}
	return area, nil
}

func (s *areaService) ListByStockCount(ctx context.Context, actor policy.Actor, stockCountID uuid.UUID) ([]model.Area, error) {
	if _, err := s.Policy.ListScope(actor, policy.Area); err != nil {
		return nil, err
	}
	return s.Store.Areas().ListByStockCount(ctx, stockCountID)
}

func (s *areaService) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateAreaRequest) (*model.Area, error) {
	if err := s.Policy.Authorize(actor, policy.Area, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	var out *model.Area
	err := s.inTx(ctx, func(tx repository.Store) error {
		area, err := tx.Areas().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "area", id)
		}
		if req.Name != nil {
			area.Name = *req.Name
		}
		if req.Description != nil {
			area.Description = *req.Description
		}
		if err := touchArea(ctx, tx, area); err != nil {
			return err
		}
		out = area
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition applies a requested status change together with its guards and the
// decisions it carries down to the assignments.
func (s *areaService) Transition(ctx context.Context, actor policy.Actor, id uuid.UUID, to model.AreaStatus) (*model.Area, error) {
	if err := s.Policy.Authorize(actor, policy.Area, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	if !workflow.Area.Known(to) {
		return nil, apierror.Validation("unknown area status", map[string]string{"status": "oneof"})
	}
	var out *model.Area
	err := s.inTx(ctx, func(tx repository.Store) error {
		area, err := tx.Areas().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "area", id)
		}
		if err := workflow.Area.Check(area.Status, to); err != nil {
			return err
		}
		if err := s.guard(ctx, tx, area, to); err != nil {
			return err
		}
		if err := s.setAreaStatus(ctx, tx, area, to); err != nil {
			return err
		}
		switch to {
		case model.AreaInProgress:
			if err := s.startStockCount(ctx, tx, area.StockCountID); err != nil {
				return err
			}
		case model.AreaApproved:
			if err := s.decideAssignments(ctx, tx, area.ID, model.AssignmentApproved); err != nil {
				return err
			}
		case model.AreaRejected:
			if err := s.decideAssignments(ctx, tx, area.ID, model.AssignmentRejected); err != nil {
				return err
			}
		}
		out = area
		return nil
	})
	if err != nil {
		return nil, err
	}
	if to == model.AreaPendingComparison {
		fire(ctx, s.trigger, id)
	}
	return out, nil
}

func (s *areaService) guard(ctx context.Context, tx repository.Store, area *model.Area, to model.AreaStatus) error {
	switch to {
	case model.AreaPendingComparison:
		all, err := tx.Assignments().ListByArea(ctx, area.ID)
		if err != nil {
			return err
		}
		active := activeAssignments(all)
		if len(active) != model.AssignmentsPerArea || !allSubmitted(active) {
			return apierror.Conflict("area %s needs %d submitted assignments", area.ID, model.AssignmentsPerArea)
		}
	case model.AreaPendingApproval:
		if _, err := latestComparison(ctx, tx, area.ID); err != nil {
			return err
		}
	case model.AreaApproved:
		cmp, err := latestComparison(ctx, tx, area.ID)
		if err != nil {
			return err
		}
		discs, err := tx.Discrepancies().ListByComparison(ctx, cmp.ID)
		if err != nil {
			return err
		}
		for _, d := range discs {
			if d.Status != model.DiscrepancyApproved {
				return apierror.Conflict("discrepancy %s is %s, every discrepancy must be %s", d.ID, d.Status, model.DiscrepancyApproved)
			}
		}
	}
	return nil
}

// latestComparison returns the most recently processed comparison of the area.
func latestComparison(ctx context.Context, tx repository.Store, areaID uuid.UUID) (*model.Comparison, error) {
	cmps, err := tx.Comparisons().ListByArea(ctx, areaID)
	if err != nil {
		return nil, err
	}
	if len(cmps) == 0 {
		return nil, apierror.Conflict("area %s has no comparison", areaID)
	}
	return &cmps[len(cmps)-1], nil
}

func (s *areaService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if err := s.Policy.Authorize(actor, policy.Area, policy.Delete, uuid.Nil); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Areas().FindByID(ctx, id); err != nil {
			return storeErr(err, "area", id)
		}
		asgs, err := tx.Assignments().ListByArea(ctx, id)
		if err != nil {
			return err
		}
		if len(asgs) > 0 {
			return apierror.Conflict("area %s still has %d assignments", id, len(asgs))
		}
		cmps, err := tx.Comparisons().ListByArea(ctx, id)
		if err != nil {
			return err
		}
		if len(cmps) > 0 {
			return apierror.Conflict("area %s still has %d comparisons", id, len(cmps))
		}
		return storeErr(tx.Areas().Delete(ctx, id), "area", id)
	})
}
