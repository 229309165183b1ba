package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

type AreaRepository interface {
	Create(ctx context.Context, a *model.Area) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Area, error)
	ListByStockCount(ctx context.Context, stockCountID uuid.UUID) ([]model.Area, error)
	ListByStatus(ctx context.Context, status model.AreaStatus) ([]model.Area, error)
	// Update writes a only if the stored version still equals a.Version, then bumps
	// a.Version. A stale a yields ErrVersionConflict.
	Update(ctx context.Context, a *model.Area) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type areaRepo struct{ table[model.Area] }

func NewAreaRepository(db *gorm.DB) AreaRepository {
	return &areaRepo{table[model.Area]{db: db, order: "name ASC"}}
}

func (r *areaRepo) ListByStockCount(ctx context.Context, stockCountID uuid.UUID) ([]model.Area, error) {
	return r.list(ctx, "stock_count_id = ?", stockCountID)
}

func (r *areaRepo) ListByStatus(ctx context.Context, status model.AreaStatus) ([]model.Area, error) {
	return r.list(ctx, "status = ?", status)
}

func (r *areaRepo) Update(ctx context.Context, a *model.Area) error {
	res := r.db.WithContext(ctx).
		Model(&model.Area{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]any{
			"name":        a.Name,
			"description": a.Description,
			"status":      a.Status,
			"version":     a.Version + 1,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, a.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	a.Version++
	return nil
}
