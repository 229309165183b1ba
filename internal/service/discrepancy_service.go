package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/repository"
	"github.com/maninjwa/stock-count-backend/internal/workflow"
)

type DiscrepancyService interface {
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Discrepancy, error)
	ListByComparison(ctx context.Context, actor policy.Actor, comparisonID uuid.UUID) ([]model.Discrepancy, error)
	Resolve(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.ResolveDiscrepancyRequest) (*model.Discrepancy, error)
	Approve(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Discrepancy, error)
	Transition(ctx context.Context, actor policy.Actor, id uuid.UUID, to model.DiscrepancyStatus) (*model.Discrepancy, error)
}

type discrepancyService struct{ Deps }

func NewDiscrepancyService(deps Deps) DiscrepancyService {
	return &discrepancyService{Deps: deps}
}

func (s *discrepancyService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Discrepancy, error) {
	if err := s.Policy.Authorize(actor, policy.Discrepancy, policy.Read, uuid.Nil); err != nil {
		return nil, err
	}
	d, err := s.Store.Discrepancies().FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "discrepancy", id)
	}
	return d, nil
}

func (s *discrepancyService) ListByComparison(ctx context.Context, actor policy.Actor, comparisonID uuid.UUID) ([]model.Discrepancy, error) {
	if _, err := s.Policy.ListScope(actor, policy.Discrepancy); err != nil {
		return nil, err
	}
	return s.Store.Discrepancies().ListByComparison(ctx, comparisonID)
}

// Resolve records the actor as resolver of an OPEN discrepancy.
func (s *discrepancyService) Resolve(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.ResolveDiscrepancyRequest) (*model.Discrepancy, error) {
	if err := s.Policy.Authorize(actor, policy.Discrepancy, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	return s.move(ctx, id, model.DiscrepancyResolved, func(d *model.Discrepancy) {
		now := s.now()
		resolver := actor.ID
		d.ResolvedBy = &resolver
		d.ResolvedAt = &now
		d.Notes = req.Notes
	})
}

func (s *discrepancyService) Approve(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Discrepancy, error) {
	if err := s.Policy.Authorize(actor, policy.Discrepancy, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	return s.move(ctx, id, model.DiscrepancyApproved, nil)
}

func (s *discrepancyService) Transition(ctx context.Context, actor policy.Actor, id uuid.UUID, to model.DiscrepancyStatus) (*model.Discrepancy, error) {
	if !workflow.Discrepancy.Known(to) {
		return nil, apierror.Validation("unknown discrepancy status", map[string]string{"status": "oneof"})
	}
	if to == model.DiscrepancyResolved {
		return s.Resolve(ctx, actor, id, dto.ResolveDiscrepancyRequest{})
	}
	if err := s.Policy.Authorize(actor, policy.Discrepancy, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	return s.move(ctx, id, to, nil)
}

func (s *discrepancyService) move(ctx context.Context, id uuid.UUID, to model.DiscrepancyStatus, apply func(*model.Discrepancy)) (*model.Discrepancy, error) {
	var out *model.Discrepancy
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		d, err := tx.Discrepancies().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "discrepancy", id)
		}
		if err := workflow.Discrepancy.Check(d.Status, to); err != nil {
			return err
		}
		from := d.Status
		d.Status = to
		if apply != nil {
			apply(d)
		}
		if err := tx.Discrepancies().Update(ctx, d); err != nil {
			return storeErr(err, "discrepancy", id)
		}
		s.transitioned("discrepancy", id, string(from), string(to))
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
