package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/repository"
	"github.com/maninjwa/stock-count-backend/internal/repository/memstore"
)

// ── Authorization ─────────────────────────────────────────────────────────────

func TestCounterCannotReadStockCount(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)

	_, err := f.stockCounts.Get(f.ctx, f.alice, s.stockCount.ID)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	_, err = f.stockCounts.List(f.ctx, f.alice)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	assert.Equal(t, 2.0, f.counter(t, "stockcount_policy_denied_total"))
}

func TestPermissionDenied_LeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)
	before := f.area(t, s.area.ID).Version

	_, err := f.areas.Transition(f.ctx, f.alice, s.area.ID, model.AreaInProgress)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	assert.Equal(t, model.AreaNotStarted, f.area(t, s.area.ID).Status)
	assert.Equal(t, before, f.area(t, s.area.ID).Version)

	_, err = f.stockCounts.Create(f.ctx, f.supervisor, dto.CreateStockCountRequest{Name: "x", Type: "FULL"})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied, "permission is checked before validation")

	err = f.stockCounts.Delete(f.ctx, f.supervisor, s.stockCount.ID)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	// bob may not count on alice's assignment
	_, err = f.sessions.Start(f.ctx, f.bob, dto.StartSessionRequest{AssignmentID: s.first.ID})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	assert.Equal(t, model.AssignmentAssigned, f.assignment(t, s.first.ID).Status)

	// supervisors review but never count
	_, err = f.sessions.Start(f.ctx, f.supervisor, dto.StartSessionRequest{AssignmentID: s.first.ID})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	_, err = f.discrepancies.ListByComparison(f.ctx, f.alice, uuid.New())
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
}

func TestOwnerReads_DoNotRevealExistence(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)
	sess := f.count(t, f.bob, s.second, counted{sku: "X1", itemNumber: "1", qty: 2})
	items, err := f.store.Items().ListBySession(f.ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	missing := uuid.New()
	for _, id := range []uuid.UUID{s.second.ID, missing} {
		_, err := f.assignments.Get(f.ctx, f.alice, id)
		assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	}
	for _, id := range []uuid.UUID{sess.ID, missing} {
		_, err := f.sessions.Get(f.ctx, f.alice, id)
		assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	}
	for _, id := range []uuid.UUID{items[0].ID, missing} {
		_, err := f.sessions.GetItem(f.ctx, f.alice, id)
		assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	}
	for _, id := range []uuid.UUID{f.bob.ID, missing} {
		_, err := f.users.Get(f.ctx, f.alice, id)
		assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	}

	// group readers still see the difference
	_, err = f.assignments.Get(f.ctx, f.supervisor, missing)
	assert.ErrorIs(t, err, apierror.ErrNotFound)
	_, err = f.sessions.Get(f.ctx, f.supervisor, missing)
	assert.ErrorIs(t, err, apierror.ErrNotFound)

	own, err := f.assignments.Get(f.ctx, f.alice, s.first.ID)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, own.UserID)
}

func TestOwnerScopedLists(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)
	f.count(t, f.alice, s.first, counted{sku: "X1", itemNumber: "1", qty: 2})
	f.count(t, f.bob, s.second, counted{sku: "X1", itemNumber: "1", qty: 3})

	mine, err := f.assignments.ListByArea(f.ctx, f.alice, s.area.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.alice.ID, mine[0].UserID)

	all, err := f.assignments.ListByArea(f.ctx, f.supervisor, s.area.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	items, err := f.sessions.FindItemsBySKU(f.ctx, f.alice, "X1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	items, err = f.sessions.FindItemsByItemNumber(f.ctx, f.supervisor, "1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	_, err = f.assignments.Get(f.ctx, f.alice, s.second.ID)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
}

func TestUserUpdate_OwnerMayNotEscalate(t *testing.T) {
	f := newFixture(t)

	name := "Alice A."
	u, err := f.users.Update(f.ctx, f.alice, f.alice.ID, dto.UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, u.Name)

	role := string(model.RoleSupervisor)
	_, err = f.users.Update(f.ctx, f.alice, f.alice.ID, dto.UpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	admin := true
	_, err = f.users.Update(f.ctx, f.alice, f.alice.ID, dto.UpdateUserRequest{Admin: &admin})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	stored, err := f.store.Users().FindByID(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCounter, stored.Role)
	assert.False(t, stored.Admin)

	_, err = f.users.Update(f.ctx, f.alice, f.bob.ID, dto.UpdateUserRequest{Name: &name})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	u, err = f.users.Update(f.ctx, f.admin, f.alice.ID, dto.UpdateUserRequest{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, model.RoleSupervisor, u.Role)
}

func TestUserCreate_DuplicateEmailIsConflict(t *testing.T) {
	f := newFixture(t)
	req := dto.CreateUserRequest{Email: "Dana@Example.com", Name: "Dana", Role: "COUNTER", Password: "password123"}
	u, err := f.users.Create(f.ctx, f.admin, req)
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", u.Email)
	assert.NotEqual(t, "password123", u.PasswordHash)

	_, err = f.users.Create(f.ctx, f.admin, req)
	assert.ErrorIs(t, err, apierror.ErrConflict)

	_, err = f.users.Create(f.ctx, f.supervisor, req)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	visible, err := f.users.List(f.ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, visible, 1, "counters only see themselves")
	assert.Equal(t, f.alice.ID, visible[0].ID)
}

// ── Assignments ───────────────────────────────────────────────────────────────

func TestAssignment_TwoPerAreaDistinctUsers(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)

	_, err := f.assignments.Create(f.ctx, f.supervisor, dto.CreateAssignmentRequest{AreaID: s.area.ID, UserID: f.carol.ID})
	assert.ErrorIs(t, err, apierror.ErrConflict)

	other, err := f.areas.Create(f.ctx, f.supervisor, dto.CreateAreaRequest{
		StockCountID: s.stockCount.ID, Name: "Zone 2", Description: "Dock",
	})
	require.NoError(t, err)
	_, err = f.assignments.Create(f.ctx, f.supervisor, dto.CreateAssignmentRequest{AreaID: other.ID, UserID: f.carol.ID})
	require.NoError(t, err)
	_, err = f.assignments.Create(f.ctx, f.supervisor, dto.CreateAssignmentRequest{AreaID: other.ID, UserID: f.carol.ID})
	assert.ErrorIs(t, err, apierror.ErrConflict)

	_, err = f.assignments.Create(f.ctx, f.supervisor, dto.CreateAssignmentRequest{AreaID: other.ID, UserID: uuid.New()})
	assert.ErrorIs(t, err, apierror.ErrNotFound)

	_, err = f.assignments.Create(f.ctx, f.supervisor, dto.CreateAssignmentRequest{AreaID: other.ID})
	assert.ErrorIs(t, err, apierror.ErrValidation)
}

func TestAssignment_ReassignOnlyBeforeCounting(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)

	asg, err := f.assignments.Update(f.ctx, f.supervisor, s.second.ID, dto.UpdateAssignmentRequest{UserID: &f.carol.ID})
	require.NoError(t, err)
	assert.Equal(t, f.carol.ID, asg.UserID)

	_, err = f.assignments.Update(f.ctx, f.supervisor, s.second.ID, dto.UpdateAssignmentRequest{UserID: &f.alice.ID})
	assert.ErrorIs(t, err, apierror.ErrConflict, "alice already counts this area")

	f.count(t, f.alice, s.first)
	_, err = f.assignments.Update(f.ctx, f.supervisor, s.first.ID, dto.UpdateAssignmentRequest{UserID: &f.bob.ID})
	assert.ErrorIs(t, err, apierror.ErrConflict)
}

// ── Sessions and items ────────────────────────────────────────────────────────

func TestSession_StartIsIdempotentByClientID(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)
	id := uuid.New()

	first, err := f.sessions.Start(f.ctx, f.alice, dto.StartSessionRequest{ID: &id, AssignmentID: s.first.ID})
	require.NoError(t, err)
	again, err := f.sessions.Start(f.ctx, f.alice, dto.StartSessionRequest{ID: &id, AssignmentID: s.first.ID})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	sessions, err := f.store.Sessions().ListByAssignment(f.ctx, s.first.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	_, err = f.sessions.Start(f.ctx, f.bob, dto.StartSessionRequest{ID: &id, AssignmentID: s.second.ID})
	assert.ErrorIs(t, err, apierror.ErrConflict, "another owner replaying the id")

	_, err = f.sessions.Start(f.ctx, f.alice, dto.StartSessionRequest{AssignmentID: s.first.ID})
	assert.ErrorIs(t, err, apierror.ErrConflict, "one open session per assignment")
}

func TestSession_PauseResumeAndItemRules(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)
	sess := f.count(t, f.alice, s.first)

	itemID := uuid.New()
	qty := 5
	req := dto.AddItemRequest{ID: &itemID, ItemNumber: "1001", SKU: "X1", Quantity: &qty}
	item, err := f.sessions.AddItem(f.ctx, f.alice, sess.ID, req)
	require.NoError(t, err)
	replay, err := f.sessions.AddItem(f.ctx, f.alice, sess.ID, req)
	require.NoError(t, err)
	assert.Equal(t, item, replay)

	_, err = f.sessions.AddItem(f.ctx, f.bob, sess.ID, dto.AddItemRequest{ItemNumber: "1", SKU: "X", Quantity: &qty})
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	paused, err := f.sessions.Pause(f.ctx, f.alice, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionPaused, paused.Status)
	_, err = f.sessions.Pause(f.ctx, f.alice, sess.ID)
	assert.ErrorIs(t, err, apierror.ErrInvalidTransition)
	_, err = f.sessions.Pause(f.ctx, f.supervisor, sess.ID)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)

	// a paused session still accepts corrections
	newQty := 6
	updated, err := f.sessions.UpdateItem(f.ctx, f.alice, item.ID, dto.UpdateItemRequest{Quantity: &newQty})
	require.NoError(t, err)
	assert.Equal(t, 6, updated.Quantity)

	_, err = f.sessions.Resume(f.ctx, f.alice, sess.ID)
	require.NoError(t, err)
	done, err := f.sessions.Complete(f.ctx, f.alice, sess.ID, dto.CompleteSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, done.Status)
	require.NotNil(t, done.EndTime)
	assert.Equal(t, model.AssignmentInProgress, f.assignment(t, s.first.ID).Status, "completing without submit")

	_, err = f.sessions.AddItem(f.ctx, f.alice, sess.ID, dto.AddItemRequest{ItemNumber: "2", SKU: "Y", Quantity: &qty})
	assert.ErrorIs(t, err, apierror.ErrConflict)
	err = f.sessions.DeleteItem(f.ctx, f.alice, item.ID)
	assert.ErrorIs(t, err, apierror.ErrConflict)
	_, err = f.sessions.Resume(f.ctx, f.alice, sess.ID)
	assert.ErrorIs(t, err, apierror.ErrInvalidTransition, "COMPLETED is terminal")
}

// ── Deletes ───────────────────────────────────────────────────────────────────

func TestDelete_BlocksAndCascades(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)
	sess := f.count(t, f.alice, s.first, counted{sku: "X1", itemNumber: "1", qty: 1}, counted{sku: "X2", itemNumber: "2", qty: 1})

	assert.ErrorIs(t, f.stockCounts.Delete(f.ctx, f.admin, s.stockCount.ID), apierror.ErrConflict)
	assert.ErrorIs(t, f.areas.Delete(f.ctx, f.supervisor, s.area.ID), apierror.ErrConflict)
	assert.ErrorIs(t, f.assignments.Delete(f.ctx, f.supervisor, s.first.ID), apierror.ErrConflict)
	assert.ErrorIs(t, f.users.Delete(f.ctx, f.admin, f.alice.ID), apierror.ErrConflict)

	require.NoError(t, f.sessions.Delete(f.ctx, f.supervisor, sess.ID))
	items, err := f.store.Items().ListBySession(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, f.assignments.Delete(f.ctx, f.supervisor, s.first.ID))
	require.NoError(t, f.assignments.Delete(f.ctx, f.supervisor, s.second.ID))
	require.NoError(t, f.users.Delete(f.ctx, f.admin, f.alice.ID))
	require.NoError(t, f.areas.Delete(f.ctx, f.supervisor, s.area.ID))
	require.NoError(t, f.stockCounts.Delete(f.ctx, f.admin, s.stockCount.ID))

	assert.ErrorIs(t, f.stockCounts.Delete(f.ctx, f.admin, s.stockCount.ID), apierror.ErrNotFound)
}

func TestSessionDelete_RefusedOnceSubmitted(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)
	f.countAndSubmit(t, s,
		[]counted{{sku: "X1", itemNumber: "1", qty: 10}},
		[]counted{{sku: "X1", itemNumber: "1", qty: 8}},
	)
	require.Equal(t, model.AreaPendingApproval, f.area(t, s.area.ID).Status)
	before := f.area(t, s.area.ID).Version

	err := f.sessions.Delete(f.ctx, f.supervisor, s.secondCount.ID)
	assert.ErrorIs(t, err, apierror.ErrConflict)

	items, err := f.store.Items().ListBySession(f.ctx, s.secondCount.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, before, f.area(t, s.area.ID).Version)
}

func TestSessionDelete_BumpsAreaVersion(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)
	sess := f.count(t, f.alice, s.first, counted{sku: "X1", itemNumber: "1", qty: 1})
	before := f.area(t, s.area.ID).Version

	require.NoError(t, f.sessions.Delete(f.ctx, f.supervisor, sess.ID))
	assert.Greater(t, f.area(t, s.area.ID).Version, before)
}

func TestStockCountUpdate_NeverRevivesCancelled(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 20; i++ {
		sc, err := f.stockCounts.Create(f.ctx, f.admin, dto.CreateStockCountRequest{
			Name: "Race", Date: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), Type: "FULL",
		})
		require.NoError(t, err)

		name := "Renamed"
		var wg sync.WaitGroup
		var updateErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, updateErr = f.stockCounts.Update(f.ctx, f.admin, sc.ID, dto.UpdateStockCountRequest{Name: &name})
		}()
		go func() {
			defer wg.Done()
			_, err := f.stockCounts.Transition(f.ctx, f.admin, sc.ID, model.StockCountCancelled)
			assert.NoError(t, err)
		}()
		wg.Wait()

		stored, err := f.store.StockCounts().FindByID(f.ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StockCountCancelled, stored.Status)
		if updateErr != nil {
			assert.ErrorIs(t, updateErr, apierror.ErrConflict)
		}
	}
}

func TestComparisonDelete_KeepsReviewedComparisons(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)
	f.countAndSubmit(t, s,
		[]counted{{sku: "X1", itemNumber: "1", qty: 1}},
		[]counted{{sku: "X1", itemNumber: "1", qty: 2}},
	)
	cmps, err := f.store.Comparisons().ListByArea(f.ctx, s.area.ID)
	require.NoError(t, err)
	require.Len(t, cmps, 1)

	assert.ErrorIs(t, f.comparisons.Delete(f.ctx, f.supervisor, cmps[0].ID), apierror.ErrConflict)

	_, err = f.areas.Transition(f.ctx, f.supervisor, s.area.ID, model.AreaRejected)
	require.NoError(t, err)
	require.NoError(t, f.comparisons.Delete(f.ctx, f.supervisor, cmps[0].ID))
	discs, err := f.store.Discrepancies().ListByComparison(f.ctx, cmps[0].ID)
	require.NoError(t, err)
	assert.Empty(t, discs)
}

// ── Reconciliation retries ────────────────────────────────────────────────────

// submitWithoutTrigger leaves the area in PENDING_COMPARISON.
func submitWithoutTrigger(t *testing.T, f *fixture) *areaSetup {
	t.Helper()
	f.withTrigger(nil)
	s := f.prepareArea(t)
	f.countAndSubmit(t, s,
		[]counted{{sku: "X1", itemNumber: "1", qty: 10}},
		[]counted{{sku: "X1", itemNumber: "1", qty: 8}},
	)
	require.Equal(t, model.AreaPendingComparison, f.area(t, s.area.ID).Status)
	return s
}

func TestReconcile_RetriesVersionConflict(t *testing.T) {
	f := newFixture(t)
	s := submitWithoutTrigger(t, f)

	failures := 1
	f.store.SetHooks(memstore.Hooks{BeforeAreaUpdate: func(model.Area) error {
		if failures > 0 {
			failures--
			return repository.ErrVersionConflict
		}
		return nil
	}})

	cmp, err := f.comparisons.ReconcileArea(f.ctx, s.area.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ComparisonDiscrepancy, cmp.Status)
	assert.Equal(t, 1.0, f.counter(t, "stockcount_reconcile_retries_total"))

	cmps, err := f.store.Comparisons().ListByArea(f.ctx, s.area.ID)
	require.NoError(t, err)
	assert.Len(t, cmps, 1, "the failed attempt was rolled back")
	assert.Equal(t, model.AreaPendingApproval, f.area(t, s.area.ID).Status)
}

func TestReconcile_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture(t)
	s := submitWithoutTrigger(t, f)
	f.store.SetHooks(memstore.Hooks{BeforeAreaUpdate: func(model.Area) error {
		return repository.ErrVersionConflict
	}})

	_, err := f.comparisons.ReconcileArea(f.ctx, s.area.ID)
	assert.ErrorIs(t, err, apierror.ErrConflict)
	assert.Equal(t, float64(defaultMaxRetries), f.counter(t, "stockcount_reconcile_retries_total"))

	f.store.SetHooks(memstore.Hooks{})
	cmps, err := f.store.Comparisons().ListByArea(f.ctx, s.area.ID)
	require.NoError(t, err)
	assert.Empty(t, cmps)
	assert.Equal(t, model.AreaPendingComparison, f.area(t, s.area.ID).Status)
}

func TestReconcile_RequiresPermissionAndReadiness(t *testing.T) {
	f := newFixture(t)
	s := f.prepareArea(t)

	_, err := f.comparisons.Reconcile(f.ctx, f.alice, s.area.ID)
	assert.ErrorIs(t, err, apierror.ErrPermissionDenied)
	_, err = f.comparisons.Reconcile(f.ctx, f.supervisor, s.area.ID)
	assert.ErrorIs(t, err, apierror.ErrConflict, "nothing submitted yet")
	_, err = f.comparisons.Reconcile(f.ctx, f.supervisor, uuid.New())
	assert.ErrorIs(t, err, apierror.ErrNotFound)
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(context.Context, string) (func(), error) { return nil, l.err }

func TestReconcile_LockErrors(t *testing.T) {
	f := newFixture(t)
	s := submitWithoutTrigger(t, f)

	busy := NewComparisonService(f.deps, failingLocker{err: infra.ErrLockNotObtained}, nil)
	_, err := busy.ReconcileArea(f.ctx, s.area.ID)
	assert.ErrorIs(t, err, apierror.ErrConflict)

	// an unreachable lock backend falls back to the version check
	down := NewComparisonService(f.deps, failingLocker{err: errors.New("dial tcp: connection refused")}, nil)
	cmp, err := down.ReconcileArea(f.ctx, s.area.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ComparisonDiscrepancy, cmp.Status)
}

// ── Notification ──────────────────────────────────────────────────────────────

type recordingNotifier struct {
	areas []uuid.UUID
}

func (n *recordingNotifier) ComparisonReady(_ context.Context, areaID, _ uuid.UUID) error {
	n.areas = append(n.areas, areaID)
	return errors.New("smtp down")
}

func TestReconcile_NotifiesOnceAndIgnoresNotifierErrors(t *testing.T) {
	f := newFixture(t)
	s := submitWithoutTrigger(t, f)
	n := &recordingNotifier{}
	svc := NewComparisonService(f.deps, nil, n)

	_, err := svc.ReconcileArea(f.ctx, s.area.ID)
	require.NoError(t, err)
	_, err = svc.ReconcileArea(f.ctx, s.area.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{s.area.ID}, n.areas)
}
