// Package service implements the stock-count operations. Every operation takes the
// acting identity explicitly and authorizes it against the policy table before
// touching the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/metrics"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/repository"
)

const defaultMaxRetries = 3

// Deps are shared by every service.
type Deps struct {
	Store   repository.Store
	Policy  *policy.Engine
	Metrics *metrics.Metrics
	// Now defaults to time.Now in UTC.
	Now func() time.Time
	// MaxRetries bounds the attempts of a transaction that loses an area version race.
	MaxRetries int
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d Deps) maxRetries() int {
	if d.MaxRetries > 0 {
		return d.MaxRetries
	}
	return defaultMaxRetries
}

// inTx runs fn in a transaction and re-runs it from scratch when an optimistic area
// write fails. fn must re-read everything it depends on.
func (d Deps) inTx(ctx context.Context, fn func(tx repository.Store) error) error {
	var err error
	for attempt := 1; attempt <= d.maxRetries(); attempt++ {
		err = d.Store.WithTx(ctx, fn)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		d.Metrics.ReconcileRetried()
		log.Debug().Int("attempt", attempt).Msg("service: concurrent area update, retrying")
	}
	return apierror.Wrap(apierror.KindConflict, "the area was modified concurrently, try again", err)
}

// storeErr converts repository errors to apierror kinds. Version conflicts stay
// matchable with errors.Is so that inTx can retry them.
func storeErr(err error, entity string, id any) error {
	switch {
	case err == nil:
		return nil
	case apierror.KindOf(err) != "":
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apierror.NotFound(entity, id)
	case errors.Is(err, repository.ErrDuplicate):
		return apierror.Wrap(apierror.KindConflict, fmt.Sprintf("%s %v already exists", entity, id), err)
	case errors.Is(err, repository.ErrVersionConflict):
		return apierror.Wrap(apierror.KindConflict, fmt.Sprintf("%s %v was modified concurrently", entity, id), err)
	default:
		return fmt.Errorf("%s %v: %w", entity, id, err)
	}
}

func (d Deps) transitioned(entity string, id uuid.UUID, from, to string) {
	d.Metrics.Transitioned(entity, to)
	log.Info().
		Str("entity", entity).
		Str("id", id.String()).
		Str("from", from).
		Str("to", to).
		Msg("status transition")
}

// authorizeRead checks a single-record read of an owner-scoped resource. findErr is
// the result of loading the record. Actors who read only their own records get
// PermissionDenied for a missing id too, so the answer does not reveal whether it exists.
func (d Deps) authorizeRead(actor policy.Actor, res policy.Resource, entity string, id, owner uuid.UUID, findErr error) error {
	if findErr != nil {
		if errors.Is(findErr, repository.ErrNotFound) && !d.Policy.GroupAllows(actor, res, policy.Read) {
			return d.Policy.Authorize(actor, res, policy.Read, uuid.Nil)
		}
		return storeErr(findErr, entity, id)
	}
	return d.Policy.Authorize(actor, res, policy.Read, owner)
}

// visible filters records down to those the scope may read.
func visible[T any](scope policy.Scope, records []T, owner func(T) uuid.UUID) []T {
	if scope.All {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if scope.Visible(owner(r)) {
			out = append(out, r)
		}
	}
	return out
}

// ReconcileTrigger starts reconciliation of an area whose two assignments are submitted.
type ReconcileTrigger interface {
	TriggerReconcile(ctx context.Context, areaID uuid.UUID) error
}

// Notifier is told when a comparison is ready for supervisor review.
type Notifier interface {
	ComparisonReady(ctx context.Context, areaID, comparisonID uuid.UUID) error
}

// fire runs the trigger after a transaction has committed. A failure leaves the area
// in PENDING_COMPARISON, where the sweep or a manual reconcile picks it up.
func fire(ctx context.Context, t ReconcileTrigger, areaID uuid.UUID) {
	if t == nil {
		return
	}
	if err := t.TriggerReconcile(ctx, areaID); err != nil {
		log.Error().Err(err).Str("area_id", areaID.String()).Msg("service: reconciliation trigger failed")
	}
}
