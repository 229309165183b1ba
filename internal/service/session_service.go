package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/repository"
	"github.com/maninjwa/stock-count-backend/internal/workflow"
)

// SessionService covers counting sessions and the items recorded in them.
type SessionService interface {
	Start(ctx context.Context, actor policy.Actor, req dto.StartSessionRequest) (*model.CountSession, error)
	Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.CountSession, error)
	ListByAssignment(ctx context.Context, actor policy.Actor, assignmentID uuid.UUID) ([]model.CountSession, error)
	Pause(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.CountSession, error)
	Resume(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.CountSession, error)
	Complete(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.CompleteSessionRequest) (*model.CountSession, error)
	Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error

	AddItem(ctx context.Context, actor policy.Actor, sessionID uuid.UUID, req dto.AddItemRequest) (*model.CountItem, error)
	GetItem(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.CountItem, error)
	ListItems(ctx context.Context, actor policy.Actor, sessionID uuid.UUID) ([]model.CountItem, error)
	FindItemsBySKU(ctx context.Context, actor policy.Actor, sku string) ([]model.CountItem, error)
	FindItemsByItemNumber(ctx context.Context, actor policy.Actor, itemNumber string) ([]model.CountItem, error)
	UpdateItem(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateItemRequest) (*model.CountItem, error)
	DeleteItem(ctx context.Context, actor policy.Actor, id uuid.UUID) error
}

type sessionService struct {
	Deps
	trigger ReconcileTrigger
}

func NewSessionService(deps Deps, trigger ReconcileTrigger) SessionService {
	return &sessionService{Deps: deps, trigger: trigger}
}

func sessionOwner(s model.CountSession) uuid.UUID { return s.UserID }
func itemOwner(i model.CountItem) uuid.UUID { return i.UserID }

// Start opens a counting session on one of the actor's own assignments. The first
// session of an assignment starts the assignment, its area and its stock count.
// A replayed request with the same client id returns the session it created.
func (s *sessionService) Start(ctx context.Context, actor policy.Actor, req dto.StartSessionRequest) (*model.CountSession, error) {
	if err := s.Policy.Authorize(actor, policy.CountSession, policy.Create, actor.ID); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	id := uuid.New()
	if req.ID != nil && *req.ID != uuid.Nil {
		id = *req.ID
	}
	var out *model.CountSession
	err := s.inTx(ctx, func(tx repository.Store) error {
		prev, err := tx.Sessions().FindByID(ctx, id)
		switch {
		case err == nil:
			if prev.UserID != actor.ID || prev.AssignmentID != req.AssignmentID {
				return apierror.Conflict("count session %s already exists", id)
			}
			out = prev
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		asg, err := tx.Assignments().FindByID(ctx, req.AssignmentID)
		if err != nil {
			return storeErr(err, "assignment", req.AssignmentID)
		}
		if asg.UserID != actor.ID {
			return apierror.PermissionDenied("assignment %s belongs to another user", asg.ID)
		}
		if asg.Status != model.AssignmentAssigned && asg.Status != model.AssignmentInProgress {
			return apierror.Conflict("assignment %s is %s", asg.ID, asg.Status)
		}
		open, err := openSession(ctx, tx, asg.ID, uuid.Nil)
		if err != nil {
			return err
		}
		if open != nil {
			return apierror.Conflict("assignment %s already has open session %s", asg.ID, open.ID)
		}

		sess := &model.CountSession{
			ID:           id,
			AssignmentID: asg.ID,
			UserID:       actor.ID,
			Status:       model.SessionActive,
			StartTime:    s.now(),
		}
		if err := tx.Sessions().Create(ctx, sess); err != nil {
			return storeErr(err, "count session", id)
		}
		if asg.Status == model.AssignmentAssigned {
			if err := s.startAssignment(ctx, tx, asg); err != nil {
				return err
			}
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sessionService) Get(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.CountSession, error) {
	sess, err := s.Store.Sessions().FindByID(ctx, id)
	var owner uuid.UUID
	if err == nil {
		owner = sess.UserID
	}
	if err := s.authorizeRead(actor, policy.CountSession, "count session", id, owner, err); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *sessionService) ListByAssignment(ctx context.Context, actor policy.Actor, assignmentID uuid.UUID) ([]model.CountSession, error) {
	scope, err := s.Policy.ListScope(actor, policy.CountSession)
	if err != nil {
		return nil, err
	}
	sessions, err := s.Store.Sessions().ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return visible(scope, sessions, sessionOwner), nil
}

func (s *sessionService) Pause(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.CountSession, error) {
	out, _, err := s.move(ctx, actor, id, model.SessionPaused, false)
	return out, err
}

func (s *sessionService) Resume(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.CountSession, error) {
	out, _, err := s.move(ctx, actor, id, model.SessionActive, false)
	return out, err
}

// Complete ends the session. With Submit set, the assignment is submitted in the same
// transaction and, when that completes the area's pair, reconciliation is triggered.
func (s *sessionService) Complete(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.CompleteSessionRequest) (*model.CountSession, error) {
	out, areaID, err := s.move(ctx, actor, id, model.SessionCompleted, req.Submit)
	if err != nil {
		return nil, err
	}
	if areaID != uuid.Nil {
		fire(ctx, s.trigger, areaID)
	}
	return out, nil
}

// move applies a session transition. ready is the area to reconcile, if any.
func (s *sessionService) move(ctx context.Context, actor policy.Actor, id uuid.UUID, to model.SessionStatus, submit bool) (out *model.CountSession, ready uuid.UUID, err error) {
	err = s.inTx(ctx, func(tx repository.Store) error {
		out, ready = nil, uuid.Nil
		sess, err := tx.Sessions().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "count session", id)
		}
		if err := s.Policy.Authorize(actor, policy.CountSession, policy.Update, sess.UserID); err != nil {
			return err
		}
		if err := workflow.Session.Check(sess.Status, to); err != nil {
			return err
		}
		from := sess.Status
		sess.Status = to
		if to == model.SessionCompleted {
			now := s.now()
			sess.EndTime = &now
		}
		if err := tx.Sessions().Update(ctx, sess); err != nil {
			return storeErr(err, "count session", id)
		}
		s.transitioned("count session", id, string(from), string(to))
		out = sess
		if !submit {
			return nil
		}
		asg, err := tx.Assignments().FindByID(ctx, sess.AssignmentID)
		if err != nil {
			return storeErr(err, "assignment", sess.AssignmentID)
		}
		ok, err := s.submitAssignment(ctx, tx, asg)
		if err != nil {
			return err
		}
		if ok {
			ready = asg.AreaID
		}
		return nil
	})
	if err != nil {
		return nil, uuid.Nil, err
	}
	return out, ready, nil
}

// Delete removes a session together with its items. Sessions of a submitted
// assignment are evidence for the area's comparison and cannot be deleted.
func (s *sessionService) Delete(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	if err := s.Policy.Authorize(actor, policy.CountSession, policy.Delete, uuid.Nil); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx repository.Store) error {
		sess, err := tx.Sessions().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "count session", id)
		}
		asg, err := tx.Assignments().FindByID(ctx, sess.AssignmentID)
		if err != nil {
			return storeErr(err, "assignment", sess.AssignmentID)
		}
		if asg.Status != model.AssignmentAssigned && asg.Status != model.AssignmentInProgress {
			return apierror.Conflict("count session %s belongs to assignment %s which is %s", id, asg.ID, asg.Status)
		}
		area, err := tx.Areas().FindByID(ctx, asg.AreaID)
		if err != nil {
			return storeErr(err, "area", asg.AreaID)
		}
		if err := touchArea(ctx, tx, area); err != nil {
			return err
		}
		if err := tx.Items().DeleteBySession(ctx, id); err != nil {
			return err
		}
		return storeErr(tx.Sessions().Delete(ctx, id), "count session", id)
	})
}

// writableSession loads a session the actor owns and may still record items in.
func writableSession(ctx context.Context, tx repository.Store, actor policy.Actor, id uuid.UUID) (*model.CountSession, error) {
	sess, err := tx.Sessions().FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "count session", id)
	}
	if sess.UserID != actor.ID && !actor.IsSystem() {
		return nil, apierror.PermissionDenied("count session %s belongs to another user", id)
	}
	if !sess.Open() {
		return nil, apierror.Conflict("count session %s is %s", id, sess.Status)
	}
	return sess, nil
}

// AddItem records one observation. A replayed request with the same client id
// returns the item it created.
func (s *sessionService) AddItem(ctx context.Context, actor policy.Actor, sessionID uuid.UUID, req dto.AddItemRequest) (*model.CountItem, error) {
	if err := s.Policy.Authorize(actor, policy.CountItem, policy.Create, actor.ID); err != nil {
		return nil, err
	}
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	id := uuid.New()
	if req.ID != nil && *req.ID != uuid.Nil {
		id = *req.ID
	}
	var out *model.CountItem
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		prev, err := tx.Items().FindByID(ctx, id)
		switch {
		case err == nil:
			if prev.UserID != actor.ID || prev.SessionID != sessionID {
				return apierror.Conflict("count item %s already exists", id)
			}
			out = prev
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		if _, err := writableSession(ctx, tx, actor, sessionID); err != nil {
			return err
		}
		item := &model.CountItem{
			ID:            id,
			SessionID:     sessionID,
			UserID:        actor.ID,
			ItemNumber:    req.ItemNumber,
			SKU:           req.SKU,
			UPC:           req.UPC,
			Description:   req.Description,
			Quantity:      *req.Quantity,
			UnitOfMeasure: req.UnitOfMeasure,
			Location:      req.Location,
			PhotoURL:      req.PhotoURL,
			Notes:         req.Notes,
		}
		if err := tx.Items().Create(ctx, item); err != nil {
			return storeErr(err, "count item", id)
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sessionService) GetItem(ctx context.Context, actor policy.Actor, id uuid.UUID) (*model.CountItem, error) {
	item, err := s.Store.Items().FindByID(ctx, id)
	var owner uuid.UUID
	if err == nil {
		owner = item.UserID
	}
	if err := s.authorizeRead(actor, policy.CountItem, "count item", id, owner, err); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *sessionService) ListItems(ctx context.Context, actor policy.Actor, sessionID uuid.UUID) ([]model.CountItem, error) {
	return s.listItems(ctx, actor, func(r repository.ItemRepository) ([]model.CountItem, error) {
		return r.ListBySession(ctx, sessionID)
	})
}

func (s *sessionService) FindItemsBySKU(ctx context.Context, actor policy.Actor, sku string) ([]model.CountItem, error) {
	return s.listItems(ctx, actor, func(r repository.ItemRepository) ([]model.CountItem, error) {
		return r.ListBySKU(ctx, sku)
	})
}

func (s *sessionService) FindItemsByItemNumber(ctx context.Context, actor policy.Actor, itemNumber string) ([]model.CountItem, error) {
	return s.listItems(ctx, actor, func(r repository.ItemRepository) ([]model.CountItem, error) {
		return r.ListByItemNumber(ctx, itemNumber)
	})
}

func (s *sessionService) listItems(ctx context.Context, actor policy.Actor, query func(repository.ItemRepository) ([]model.CountItem, error)) ([]model.CountItem, error) {
	scope, err := s.Policy.ListScope(actor, policy.CountItem)
	if err != nil {
		return nil, err
	}
	items, err := query(s.Store.Items())
	if err != nil {
		return nil, err
	}
	return visible(scope, items, itemOwner), nil
}

func (s *sessionService) UpdateItem(ctx context.Context, actor policy.Actor, id uuid.UUID, req dto.UpdateItemRequest) (*model.CountItem, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	var out *model.CountItem
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		item, err := tx.Items().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "count item", id)
		}
		if err := s.Policy.Authorize(actor, policy.CountItem, policy.Update, item.UserID); err != nil {
			return err
		}
		if _, err := writableSession(ctx, tx, actor, item.SessionID); err != nil {
			return err
		}
		applyItemUpdate(item, req)
		if err := tx.Items().Update(ctx, item); err != nil {
			return storeErr(err, "count item", id)
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applyItemUpdate(item *model.CountItem, req dto.UpdateItemRequest) {
	if req.ItemNumber != nil {
		item.ItemNumber = *req.ItemNumber
	}
	if req.SKU != nil {
		item.SKU = *req.SKU
	}
	if req.UPC != nil {
		item.UPC = *req.UPC
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	if req.UnitOfMeasure != nil {
		item.UnitOfMeasure = *req.UnitOfMeasure
	}
	if req.Location != nil {
		item.Location = *req.Location
	}
	if req.PhotoURL != nil {
		item.PhotoURL = *req.PhotoURL
	}
	if req.Notes != nil {
		item.Notes = *req.Notes
	}
}

func (s *sessionService) DeleteItem(ctx context.Context, actor policy.Actor, id uuid.UUID) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		item, err := tx.Items().FindByID(ctx, id)
		if err != nil {
			return storeErr(err, "count item", id)
		}
		if err := s.Policy.Authorize(actor, policy.CountItem, policy.Delete, item.UserID); err != nil {
			return err
		}
		if _, err := writableSession(ctx, tx, actor, item.SessionID); err != nil {
			return err
		}
		return storeErr(tx.Items().Delete(ctx, id), "count item", id)
	})
}
