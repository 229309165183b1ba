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

type StockCountService interface {
	Create(ctx context.Context, actor policy.Actor, req dto.CreateStockCountRequest) (*model.StockCount, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.StockCount, error)
	List(ctx context.Context, actor policy.Actor) ([]model.StockCount, error)
	Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateStockCountRequest) (*model.StockCount, error)
	Transition(ctx context.Context, actor policy.Actor, id uuid.UUID, to model.StockCountStatus) (*model.StockCount, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error
}

type stockCountService struct{ Deps }

func NewStockCountService(deps Deps) StockCountService {
	return &stockCountService{Deps: deps}
}

func (s *stockCountService) Create(ctx context.Context, actor policy.Actor, req dto.CreateStockCountRequest) (*model.StockCount, error) {
	if err := s.Policy.Authorize(actor, policy.StockCount, policy.Create, uuid.Nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	sc := &model.StockCount{
		ID:        uuid.New(),
		Name:      req.Name,
		Date:      req.Date,
		Type:      req.Type,
		Status:    model.StockCountCreated,
		CreatedBy: actor.ID,
	}
	if err := s.Store.StockCounts().Create(ctx, sc); err != nil {
		return nil, storeErr(err, "stock count", sc.ID)
	}
	log.Info().Str("stock_count_id", sc.ID.String()).Str("name", sc.Name).Msg("stock count created")
	return sc, nil
}

func (s *stockCountService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.StockCount, error) {
	if err := s.Policy.Authorize(actor, policy.StockCount, policy.Read, uuid.Nil); err != nil {
		return nil, err
	}
	sc, err := s.Store.StockCounts().FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "stock count", id)
	}
	return sc, nil
}

func (s *stockCountService) List(ctx context.Context, actor policy.Actor) ([]model.StockCount, error) {
	if _, err := s.Policy.ListScope(actor, policy.StockCount); err != nil {
		return nil, err
	}
	return s.Store.StockCounts().List(ctx)
}

func (s *stockCountService) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateStockCountRequest) (*model.StockCount, error) {
	if err := s.Policy.Authorize(actor, policy.StockCount, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	var out *model.StockCount
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		sc, err := tx.StockCounts().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "stock count", id)
		}
		if workflow.StockCount.Terminal(sc.Status) {
			return apierror.Conflict("stock count %s is %s", id, sc.Status)
		}
		if req.Name != nil {
			sc.Name = *req.Name
		}
		if req.Date != nil {
			sc.Date = *req.Date
		}
		if req.Type != nil {
			sc.Type = *req.Type
		}
		if err := tx.StockCounts().Update(ctx, sc); err != nil {
			return storeErr(err, "stock count", id)
		}
		out = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition applies a requested status change. Approval requires every area of the
// stock count to be approved.
func (s *stockCountService) Transition(ctx context.Context, actor policy.Actor, id uuid.UUID, to model.StockCountStatus) (*model.StockCount, error) {
	if err := s.Policy.Authorize(actor, policy.StockCount, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	if !workflow.StockCount.Known(to) {
		return nil, apierror.Validation("unknown stock count status", map[string]string{"status": "oneof"})
	}
	var out *model.StockCount
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		sc, err := tx.StockCounts().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "stock count", id)
		}
		if err := workflow.StockCount.Check(sc.Status, to); err != nil {
			return err
		}
		if to == model.StockCountApproved {
			areas, err := tx.Areas().ListByStockCount(ctx, id)
			if err != nil {
				return err
			}
			if len(areas) == 0 {
				return apierror.Conflict("stock count %s has no areas", id)
			}
			for _, a := range areas {
				if a.Status != model.AreaApproved {
					return apierror.Conflict("area %s is %s, every area must be %s", a.ID, a.Status, model.AreaApproved)
				}
			}
		}
		from := sc.Status
		sc.Status = to
		if err := tx.StockCounts().Update(ctx, sc); err != nil {
			return storeErr(err, "stock count", id)
		}
		s.transitioned("stock count", id, string(from), string(to))
		out = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *stockCountService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if err := s.Policy.Authorize(actor, policy.StockCount, policy.Delete, uuid.Nil); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.StockCounts().FindByID(ctx, id); err != nil {
			return storeErr(err, "stock count", id)
		}
		areas, err := tx.Areas().ListByStockCount(ctx, id)
		if err != nil {
			return err
		}
		if len(areas) > 0 {
			return apierror.Conflict("stock count %s still has %d areas", id, len(areas))
		}
		return storeErr(tx.StockCounts().Delete(ctx, id), "stock count", id)
	})
}
