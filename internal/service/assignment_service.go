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

type AssignmentService interface {
	Create(ctx context.Context, actor policy.Actor, req dto.CreateAssignmentRequest) (*model.Assignment, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Assignment, error)
	ListByArea(ctx context.Context, actor policy.Actor, areaID uuid.UUID) ([]model.Assignment, error)
	ListByUser(ctx context.Context, actor policy.Actor, userID uuid.UUID) ([]model.Assignment, error)
	Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateAssignmentRequest) (*model.Assignment, error)
	Transition(ctx context.Context, actor policy.Actor, id uuid.UUID, to model.AssignmentStatus) (*model.Assignment, error)
	Submit(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Assignment, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error
}

type assignmentService struct {
	Deps
	trigger ReconcileTrigger
}

func NewAssignmentService(deps Deps, trigger ReconcileTrigger) AssignmentService {
	return &assignmentService{Deps: deps, trigger: trigger}
}

func assignmentOwner(a model.Assignment) uuid.UUID { return a.UserID }

// Create assigns a counter to an area. An area holds at most two active assignments,
// each for a different user.
func (s *assignmentService) Create(ctx context.Context, actor policy.Actor, req dto.CreateAssignmentRequest) (*model.Assignment, error) {
	if err := s.Policy.Authorize(actor, policy.Assignment, policy.Create, uuid.Nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	var out *model.Assignment
	err := s.inTx(ctx, func(tx repository.Store) error {
		area, err := tx.Areas().FindByID(ctx, req.AreaID)
		if err != nil {
			return storeErr(err, "area", req.AreaID)
		}
		if area.Status != model.AreaNotStarted && area.Status != model.AreaInProgress {
			return apierror.Conflict("area %s is %s and accepts no assignments", area.ID, area.Status)
		}
		if _, err := tx.Users().FindByID(ctx, req.UserID); err != nil {
			return storeErr(err, "user", req.UserID)
		}
		existing, err := tx.Assignments().ListByArea(ctx, area.ID)
		if err != nil {
			return err
		}
		active := activeAssignments(existing)
		if len(active) >= model.AssignmentsPerArea {
			return apierror.Conflict("area %s already has %d assignments", area.ID, model.AssignmentsPerArea)
		}
		for _, a := range active {
			if a.UserID == req.UserID {
				return apierror.Conflict("user %s is already assigned to area %s", req.UserID, area.ID)
			}
		}
		asg := &model.Assignment{
			ID:         uuid.New(),
			AreaID:     area.ID,
			UserID:     req.UserID,
			Status:     model.AssignmentAssigned,
			AssignedAt: s.now(),
		}
		if err := tx.Assignments().Create(ctx, asg); err != nil {
			return storeErr(err, "assignment", asg.ID)
		}
		out = asg
		return touchArea(ctx, tx, area)
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("assignment_id", out.ID.String()).
		Str("area_id", out.AreaID.String()).
		Str("user_id", out.UserID.String()).
		Msg("assignment created")
	return out, nil
}

func (s *assignmentService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Assignment, error) {
	asg, err := s.Store.Assignments().FindByID(ctx, id)
	var owner uuid.UUID
	if err == nil {
		owner = asg.UserID
	}
	if err := s.authorizeRead(actor, policy.Assignment, "assignment", id, owner, err); err != nil {
		return nil, err
	}
	return asg, nil
}

func (s *assignmentService) ListByArea(ctx context.Context, actor policy.Actor, areaID uuid.UUID) ([]model.Assignment, error) {
	scope, err := s.Policy.ListScope(actor, policy.Assignment)
	if err != nil {
		return nil, err
	}
	asgs, err := s.Store.Assignments().ListByArea(ctx, areaID)
	if err != nil {
		return nil, err
	}
	return visible(scope, asgs, assignmentOwner), nil
}

func (s *assignmentService) ListByUser(ctx context.Context, actor policy.Actor, userID uuid.UUID) ([]model.Assignment, error) {
	scope, err := s.Policy.ListScope(actor, policy.Assignment)
	if err != nil {
		return nil, err
	}
	asgs, err := s.Store.Assignments().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return visible(scope, asgs, assignmentOwner), nil
}

// Update reassigns the counter while the assignment has not started.
func (s *assignmentService) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateAssignmentRequest) (*model.Assignment, error) {
	if err := s.Policy.Authorize(actor, policy.Assignment, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	var out *model.Assignment
	err := s.inTx(ctx, func(tx repository.Store) error {
		asg, err := tx.Assignments().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "assignment", id)
		}
		if req.UserID == nil || *req.UserID == asg.UserID {
			out = asg
			return nil
		}
		if asg.Status != model.AssignmentAssigned {
			return apierror.Conflict("assignment %s is %s and can no longer be reassigned", id, asg.Status)
		}
		if _, err := tx.Users().FindByID(ctx, *req.UserID); err != nil {
			return storeErr(err, "user", *req.UserID)
		}
		siblings, err := tx.Assignments().ListByArea(ctx, asg.AreaID)
		if err != nil {
			return err
		}
		for _, a := range activeAssignments(siblings) {
			if a.ID != asg.ID && a.UserID == *req.UserID {
				return apierror.Conflict("user %s is already assigned to area %s", *req.UserID, asg.AreaID)
			}
		}
		asg.UserID = *req.UserID
		if err := tx.Assignments().Update(ctx, asg); err != nil {
			return storeErr(err, "assignment", id)
		}
		area, err := tx.Areas().FindByID(ctx, asg.AreaID)
		if err != nil {
			return storeErr(err, "area", asg.AreaID)
		}
		out = asg
		return touchArea(ctx, tx, area)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition applies a requested status change. SUBMITTED goes through Submit;
// APPROVED and REJECTED are only accepted while the area awaits approval.
func (s *assignmentService) Transition(ctx context.Context, actor policy.Actor, id uuid.UUID, to model.AssignmentStatus) (*model.Assignment, error) {
	if err := s.Policy.Authorize(actor, policy.Assignment, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	if !workflow.Assignment.Known(to) {
		return nil, apierror.Validation("unknown assignment status", map[string]string{"status": "oneof"})
	}
	if to == model.AssignmentSubmitted {
		return s.submit(ctx, id)
	}
	var out *model.Assignment
	err := s.inTx(ctx, func(tx repository.Store) error {
		asg, err := tx.Assignments().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "assignment", id)
		}
		if to == model.AssignmentInProgress {
			out = asg
			return s.startAssignment(ctx, tx, asg)
		}
		if err := workflow.Assignment.Check(asg.Status, to); err != nil {
			return err
		}
		area, err := tx.Areas().FindByID(ctx, asg.AreaID)
		if err != nil {
			return storeErr(err, "area", asg.AreaID)
		}
		if area.Status != model.AreaPendingApproval {
			return apierror.Conflict("area %s is %s, assignments are decided during approval", area.ID, area.Status)
		}
		from := asg.Status
		asg.Status = to
		if err := tx.Assignments().Update(ctx, asg); err != nil {
			return storeErr(err, "assignment", id)
		}
		s.transitioned("assignment", asg.ID, string(from), string(to))
		out = asg
		return touchArea(ctx, tx, area)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *assignmentService) Submit(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.Assignment, error) {
	if err := s.Policy.Authorize(actor, policy.Assignment, policy.Update, uuid.Nil); err != nil {
		return nil, err
	}
	return s.submit(ctx, id)
}

func (s *assignmentService) submit(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	var (
		out   *model.Assignment
		ready bool
	)
	err := s.inTx(ctx, func(tx repository.Store) error {
		asg, err := tx.Assignments().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "assignment", id)
		}
		ready, err = s.submitAssignment(ctx, tx, asg)
		if err != nil {
			return err
		}
		out = asg
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ready {
		fire(ctx, s.trigger, out.AreaID)
	}
	return out, nil
}

func (s *assignmentService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if err := s.Policy.Authorize(actor, policy.Assignment, policy.Delete, uuid.Nil); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx repository.Store) error {
		asg, err := tx.Assignments().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "assignment", id)
		}
		sessions, err := tx.Sessions().ListByAssignment(ctx, id)
		if err != nil {
			return err
		}
		if len(sessions) > 0 {
			return apierror.Conflict("assignment %s still has %d sessions", id, len(sessions))
		}
		if err := tx.Assignments().Delete(ctx, id); err != nil {
			return storeErr(err, "assignment", id)
		}
		area, err := tx.Areas().FindByID(ctx, asg.AreaID)
		if err != nil {
			return storeErr(err, "area", asg.AreaID)
		}
		return touchArea(ctx, tx, area)
	})
}
