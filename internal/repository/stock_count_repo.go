package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

type StockCountRepository interface {
	Create(ctx context.Context, s *model.StockCount) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.StockCount, error)
	List(ctx context.Context) ([]model.StockCount, error)
	Update(ctx context.Context, s *model.StockCount) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type stockCountRepo struct{ table[model.StockCount] }

func NewStockCountRepository(db *gorm.DB) StockCountRepository {
	return &stockCountRepo{table[model.StockCount]{db: db, order: "date DESC, name ASC"}}
}

func (r *stockCountRepo) List(ctx context.Context) ([]model.StockCount, error) {
	return r.list(ctx, nil)
}
