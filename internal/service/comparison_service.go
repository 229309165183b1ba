package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/reconcile"
	"github.com/maninjwa/stock-count-backend/internal/repository"
	"github.com/maninjwa/stock-count-backend/internal/workflow"
)

type ComparisonService interface {
	ReconcileTrigger

	// Reconcile runs reconciliation of an area on behalf of actor.
	Reconcile(ctx context.Context, actor policy.Actor, areaID uuid.UUID) (*model.Comparison, error)
	// ReconcileArea runs reconciliation as the system. It returns the existing
	// comparison when the current pair of assignments was already reconciled.
	ReconcileArea(ctx context.Context, areaID uuid.UUID) (*model.Comparison, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Comparison, error)
	ListByArea(ctx context.Context, actor policy.Actor, areaID uuid.UUID) ([]model.Comparison, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error
}

type comparisonService struct {
	Deps
	locker   infra.Locker
	notifier Notifier
}

// NewComparisonService builds the reconciliation service. locker and notifier may be nil.
func NewComparisonService(deps Deps, locker infra.Locker, notifier Notifier) ComparisonService {
	if locker == nil {
		locker = infra.NopLocker{}
	}
	return &comparisonService{Deps: deps, locker: locker, notifier: notifier}
}

func lockKey(areaID uuid.UUID) string { return "reconcile:area:" + areaID.String() }

func (s *comparisonService) TriggerReconcile(ctx context.Context, areaID uuid.UUID) error {
	_, err := s.ReconcileArea(ctx, areaID)
	return err
}

func (s *comparisonService) Reconcile(ctx context.Context, actor policy.Actor, areaID uuid.UUID) (*model.Comparison, error) {
	if err := s.Policy.Authorize(actor, policy.Comparison, policy.Create, uuid.Nil); err != nil {
		return nil, err
	}
	return s.ReconcileArea(ctx, areaID)
}

func (s *comparisonService) ReconcileArea(ctx context.Context, areaID uuid.UUID) (*model.Comparison, error) {
	start := time.Now()
	unlock, err := s.locker.Lock(ctx, lockKey(areaID))
	switch {
	case errors.Is(err, infra.ErrLockNotObtained):
		s.Metrics.ReconcileFailed()
		return nil, apierror.Conflict("area %s is being reconciled by another worker", areaID)
	case err != nil:
		// the area version still serializes writers
		log.Warn().Err(err).Str("area_id", areaID.String()).Msg("reconcile: lock unavailable, continuing without it")
	default:
		defer unlock()
	}

	var (
		out     *model.Comparison
		created bool
		result  reconcile.Result
	)
	err = s.inTx(ctx, func(tx repository.Store) error {
		out, created = nil, false
		area, err := tx.Areas().FindByID(ctx, areaID)
		if err != nil {
			return storeErr(err, "area", areaID)
		}
		all, err := tx.Assignments().ListByArea(ctx, areaID)
		if err != nil {
			return err
		}
		active := activeAssignments(all)
		if len(active) != model.AssignmentsPerArea {
			return apierror.Conflict("area %s has %d active assignments, %d are compared", areaID, len(active), model.AssignmentsPerArea)
		}
		first, second := reconcile.Order(active[0], active[1])

		cmps, err := tx.Comparisons().ListByArea(ctx, areaID)
		if err != nil {
			return err
		}
		for i := range cmps {
			if cmps[i].Covers(first.ID, second.ID) {
				out = &cmps[i]
				return nil
			}
		}

		if area.Status != model.AreaPendingComparison {
			return apierror.Conflict("area %s is %s, not %s", areaID, area.Status, model.AreaPendingComparison)
		}
		if !allSubmitted(active) {
			return apierror.Conflict("area %s has assignments that are not submitted", areaID)
		}

		firstItems, err := itemsOf(ctx, tx, first.ID)
		if err != nil {
			return err
		}
		secondItems, err := itemsOf(ctx, tx, second.ID)
		if err != nil {
			return err
		}
		result = reconcile.Compare(firstItems, secondItems)

		cmp := &model.Comparison{
			ID:                 uuid.New(),
			AreaID:             areaID,
			FirstAssignmentID:  first.ID,
			SecondAssignmentID: second.ID,
			Status:             model.ComparisonPending,
			ProcessedAt:        s.now(),
		}
		if err := workflow.Comparison.Check(cmp.Status, result.Status); err != nil {
			return err
		}
		cmp.Status = result.Status
		cmp.VarianceRate = result.VarianceRate
		if err := tx.Comparisons().Create(ctx, cmp); err != nil {
			return storeErr(err, "comparison", cmp.ID)
		}
		for _, d := range reconcile.Discrepancies(result, cmp.ID) {
			if err := tx.Discrepancies().Create(ctx, &d); err != nil {
				return storeErr(err, "discrepancy", d.ID)
			}
		}
		if err := s.setAreaStatus(ctx, tx, area, model.AreaPendingApproval); err != nil {
			return err
		}
		out, created = cmp, true
		return nil
	})
	if err != nil {
		s.Metrics.ReconcileFailed()
		log.Error().Err(err).Str("area_id", areaID.String()).Msg("reconcile: failed")
		return nil, err
	}
	if !created {
		return out, nil
	}

	divergent := len(result.Divergent())
	s.Metrics.Reconciled(string(out.Status), divergent, time.Since(start).Seconds())
	log.Info().
		Str("area_id", areaID.String()).
		Str("comparison_id", out.ID.String()).
		Str("status", string(out.Status)).
		Int("discrepancies", divergent).
		Float64("variance_rate", out.VarianceRate).
		Msg("reconcile: area reconciled")

	if s.notifier != nil {
		if err := s.notifier.ComparisonReady(ctx, areaID, out.ID); err != nil {
			log.Warn().Err(err).Str("comparison_id", out.ID.String()).Msg("reconcile: notification failed")
		}
	}
	return out, nil
}

func (s *comparisonService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Comparison, error) {
	if err := s.Policy.Authorize(actor, policy.Comparison, policy.Read, uuid.Nil); err != nil {
		return nil, err
	}
	cmp, err := s.Store.Comparisons().FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "comparison", id)
	}
	return cmp, nil
}

func (s *comparisonService) ListByArea(ctx context.Context, actor policy.Actor, areaID uuid.UUID) ([]model.Comparison, error) {
	if _, err := s.Policy.ListScope(actor, policy.Comparison); err != nil {
		return nil, err
	}
	return s.Store.Comparisons().ListByArea(ctx, areaID)
}

// Delete removes a comparison with its discrepancies. Comparisons under review or
// approved are kept.
func (s *comparisonService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if err := s.Policy.Authorize(actor, policy.Comparison, policy.Delete, uuid.Nil); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		cmp, err := tx.Comparisons().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "comparison", id)
		}
		area, err := tx.Areas().FindByID(ctx, cmp.AreaID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if area != nil && (area.Status == model.AreaPendingApproval || area.Status == model.AreaApproved) {
			return apierror.Conflict("comparison %s belongs to area %s which is %s", id, area.ID, area.Status)
		}
		if err := tx.Discrepancies().DeleteByComparison(ctx, id); err != nil {
			return fmt.Errorf("delete discrepancies of comparison %s: %w", id, err)
		}
		return storeErr(tx.Comparisons().Delete(ctx, id), "comparison", id)
	})
}
