package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

type AssignmentRepository interface {
	Create(ctx context.Context, a *model.Assignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	ListByArea(ctx context.Context, areaID uuid.UUID) ([]model.Assignment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Assignment, error)
	Update(ctx context.Context, a *model.Assignment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type assignmentRepo struct{ table[model.Assignment] }

func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{table[model.Assignment]{db: db, order: "assigned_at ASC, id ASC"}}
}

func (r *assignmentRepo) ListByArea(ctx context.Context, areaID uuid.UUID) ([]model.Assignment, error) {
	return r.list(ctx, "area_id = ?", areaID)
}

func (r *assignmentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Assignment, error) {
	return r.list(ctx, "user_id = ?", userID)
}
