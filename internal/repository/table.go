package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

// table implements the CRUD shared by every entity repository.
type table[T model.Record] struct {
	db    *gorm.DB
	order string
}

func (t table[T]) Create(ctx context.Context, v *T) error {
	return translate(t.db.WithContext(ctx).Create(v).Error)
}

func (t table[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var v T
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (t table[T]) Update(ctx context.Context, v *T) error {
	return translate(t.db.WithContext(ctx).Save(v).Error)
}

func (t table[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res := t.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t table[T]) list(ctx context.Context, query any, args ...any) ([]T, error) {
	var out []T
	q := t.db.WithContext(ctx)
	if query != nil {
		q = q.Where(query, args...)
	}
	err := q.Order(t.order).Find(&out).Error
	return out, translate(err)
}

func (t table[T]) deleteWhere(ctx context.Context, query any, args ...any) error {
	return translate(t.db.WithContext(ctx).Where(query, args...).Delete(new(T)).Error)
}
