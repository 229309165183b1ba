package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

type DiscrepancyRepository interface {
	Create(ctx context.Context, d *model.Discrepancy) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Discrepancy, error)
	ListByComparison(ctx context.Context, comparisonID uuid.UUID) ([]model.Discrepancy, error)
	Update(ctx context.Context, d *model.Discrepancy) error
	DeleteByComparison(ctx context.Context, comparisonID uuid.UUID) error
}

type discrepancyRepo struct{ table[model.Discrepancy] }

func NewDiscrepancyRepository(db *gorm.DB) DiscrepancyRepository {
	return &discrepancyRepo{table[model.Discrepancy]{db: db, order: "sku ASC, item_number ASC"}}
}

func (r *discrepancyRepo) ListByComparison(ctx context.Context, comparisonID uuid.UUID) ([]model.Discrepancy, error) {
	return r.list(ctx, "comparison_id = ?", comparisonID)
}

func (r *discrepancyRepo) DeleteByComparison(ctx context.Context, comparisonID uuid.UUID) error {
	return r.deleteWhere(ctx, "comparison_id = ?", comparisonID)
}
