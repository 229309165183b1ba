package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

type ComparisonRepository interface {
	Create(ctx context.Context, c *model.Comparison) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Comparison, error)
	// ListByArea returns the comparisons of an area, oldest first.
	ListByArea(ctx context.Context, areaID uuid.UUID) ([]model.Comparison, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type comparisonRepo struct{ table[model.Comparison] }

func NewComparisonRepository(db *gorm.DB) ComparisonRepository {
	return &comparisonRepo{table[model.Comparison]{db: db, order: "processed_at ASC, id ASC"}}
}

func (r *comparisonRepo) ListByArea(ctx context.Context, areaID uuid.UUID) ([]model.Comparison, error) {
	return r.list(ctx, "area_id = ?", areaID)
}
