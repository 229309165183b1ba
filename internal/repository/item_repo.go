package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

type ItemRepository interface {
	Create(ctx context.Context, i *model.CountItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CountItem, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.CountItem, error)
	ListByItemNumber(ctx context.Context, itemNumber string) ([]model.CountItem, error)
	ListBySKU(ctx context.Context, sku string) ([]model.CountItem, error)
	Update(ctx context.Context, i *model.CountItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
}

type itemRepo struct{ table[model.CountItem] }

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepo{table[model.CountItem]{db: db, order: "created_at ASC, id ASC"}}
}

func (r *itemRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.CountItem, error) {
	return r.list(ctx, "session_id = ?", sessionID)
}

func (r *itemRepo) ListByItemNumber(ctx context.Context, itemNumber string) ([]model.CountItem, error) {
	return r.list(ctx, "item_number = ?", itemNumber)
}

func (r *itemRepo) ListBySKU(ctx context.Context, sku string) ([]model.CountItem, error) {
	return r.list(ctx, "sku = ?", sku)
}

func (r *itemRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	return r.deleteWhere(ctx, "session_id = ?", sessionID)
}
