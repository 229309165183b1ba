package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/repository"
	"github.com/maninjwa/stock-count-backend/internal/workflow"
)

// The helpers below run inside a transaction and carry the derived transitions that
// follow from counting activity. They act as the system and skip the policy table.

// touchArea bumps the area version so that two transactions deciding on the same
// area cannot both commit.
func touchArea(ctx context.Context, tx repository.Store, area *model.Area) error {
	return storeErr(tx.Areas().Update(ctx, area), "area", area.ID)
}

func (d Deps) setAreaStatus(ctx context.Context, tx repository.Store, area *model.Area, to model.AreaStatus) error {
	from := area.Status
	if err := workflow.Area.Check(from, to); err != nil {
		return err
	}
	area.Status = to
	if err := storeErr(tx.Areas().Update(ctx, area), "area", area.ID); err != nil {
		return err
	}
	d.transitioned("area", area.ID, string(from), string(to))
	return nil
}

// startStockCount moves a CREATED stock count to IN_PROGRESS once one of its areas starts.
func (d Deps) startStockCount(ctx context.Context, tx repository.Store, id uuid.UUID) error {
	sc, err := tx.StockCounts().FindByID(ctx, id)
	if err != nil {
		return storeErr(err, "stock count", id)
	}
	if sc.Status != model.StockCountCreated {
		return nil
	}
	sc.Status = model.StockCountInProgress
	if err := storeErr(tx.StockCounts().Update(ctx, sc), "stock count", id); err != nil {
		return err
	}
	d.transitioned("stock count", id, string(model.StockCountCreated), string(sc.Status))
	return nil
}

// startArea moves a NOT_STARTED area to IN_PROGRESS and its stock count along with it.
// Areas already started only get their version bumped.
func (d Deps) startArea(ctx context.Context, tx repository.Store, area *model.Area) error {
	if area.Status != model.AreaNotStarted {
		return touchArea(ctx, tx, area)
	}
	if err := d.setAreaStatus(ctx, tx, area, model.AreaInProgress); err != nil {
		return err
	}
	return d.startStockCount(ctx, tx, area.StockCountID)
}

// startAssignment runs when counting begins on an ASSIGNED assignment.
func (d Deps) startAssignment(ctx context.Context, tx repository.Store, asg *model.Assignment) error {
	if err := workflow.Assignment.Check(asg.Status, model.AssignmentInProgress); err != nil {
		return err
	}
	now := d.now()
	asg.Status = model.AssignmentInProgress
	asg.StartedAt = &now
	if err := storeErr(tx.Assignments().Update(ctx, asg), "assignment", asg.ID); err != nil {
		return err
	}
	d.transitioned("assignment", asg.ID, string(model.AssignmentAssigned), string(asg.Status))

	area, err := tx.Areas().FindByID(ctx, asg.AreaID)
	if err != nil {
		return storeErr(err, "area", asg.AreaID)
	}
	return d.startArea(ctx, tx, area)
}

// openSession returns the first session of the assignment that is not COMPLETED,
// ignoring the session with id except.
func openSession(ctx context.Context, tx repository.Store, assignmentID, except uuid.UUID) (*model.CountSession, error) {
	sessions, err := tx.Sessions().ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID != except && sessions[i].Open() {
			return &sessions[i], nil
		}
	}
	return nil, nil
}

// submitAssignment marks asg SUBMITTED. When it completes the pair of its area, the
// area moves to PENDING_COMPARISON and ready is true; the caller triggers
// reconciliation after commit.
func (d Deps) submitAssignment(ctx context.Context, tx repository.Store, asg *model.Assignment) (ready bool, err error) {
	if err := workflow.Assignment.Check(asg.Status, model.AssignmentSubmitted); err != nil {
		return false, err
	}
	open, err := openSession(ctx, tx, asg.ID, uuid.Nil)
	if err != nil {
		return false, storeErr(err, "assignment", asg.ID)
	}
	if open != nil {
		return false, apierror.Conflict("assignment %s still has open session %s", asg.ID, open.ID)
	}

	now := d.now()
	asg.Status = model.AssignmentSubmitted
	asg.CompletedAt = &now
	if err := storeErr(tx.Assignments().Update(ctx, asg), "assignment", asg.ID); err != nil {
		return false, err
	}
	d.transitioned("assignment", asg.ID, string(model.AssignmentInProgress), string(asg.Status))

	area, err := tx.Areas().FindByID(ctx, asg.AreaID)
	if err != nil {
		return false, storeErr(err, "area", asg.AreaID)
	}
	all, err := tx.Assignments().ListByArea(ctx, area.ID)
	if err != nil {
		return false, storeErr(err, "area", area.ID)
	}
	active := activeAssignments(all)
	if len(active) != model.AssignmentsPerArea || !allSubmitted(active) || area.Status != model.AreaInProgress {
		return false, touchArea(ctx, tx, area)
	}
	if err := d.setAreaStatus(ctx, tx, area, model.AreaPendingComparison); err != nil {
		return false, err
	}
	return true, nil
}

func activeAssignments(all []model.Assignment) []model.Assignment {
	out := make([]model.Assignment, 0, len(all))
	for _, a := range all {
		if a.Active() {
			out = append(out, a)
		}
	}
	return out
}

func allSubmitted(asgs []model.Assignment) bool {
	for _, a := range asgs {
		if a.Status != model.AssignmentSubmitted {
			return false
		}
	}
	return true
}

// decideAssignments carries an area decision down to its submitted assignments.
func (d Deps) decideAssignments(ctx context.Context, tx repository.Store, areaID uuid.UUID, to model.AssignmentStatus) error {
	all, err := tx.Assignments().ListByArea(ctx, areaID)
	if err != nil {
		return storeErr(err, "area", areaID)
	}
	for i := range all {
		asg := &all[i]
		if asg.Status != model.AssignmentSubmitted {
			continue
		}
		asg.Status = to
		if err := storeErr(tx.Assignments().Update(ctx, asg), "assignment", asg.ID); err != nil {
			return err
		}
		d.transitioned("assignment", asg.ID, string(model.AssignmentSubmitted), string(to))
	}
	return nil
}

// itemsOf returns every item recorded under the assignment, across its sessions.
func itemsOf(ctx context.Context, tx repository.Store, assignmentID uuid.UUID) ([]model.CountItem, error) {
	sessions, err := tx.Sessions().ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	var items []model.CountItem
	for _, s := range sessions {
		batch, err := tx.Items().ListBySession(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}
	return items, nil
}
