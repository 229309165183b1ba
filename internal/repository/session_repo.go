package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

type SessionRepository interface {
	Create(ctx context.Context, s *model.CountSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CountSession, error)
	// ListByAssignment returns the sessions ordered by start time.
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]model.CountSession, error)
	Update(ctx context.Context, s *model.CountSession) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type sessionRepo struct{ table[model.CountSession] }

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepo{table[model.CountSession]{db: db, order: "start_time ASC, id ASC"}}
}

func (r *sessionRepo) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]model.CountSession, error) {
	return r.list(ctx, "assignment_id = ?", assignmentID)
}
